package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"clgrpell/pkg/clgrperrors"
)

// Config is the file configuration of clgrpell. Run parameters
// (D_max, files, a, m, ell, folder) come from the command line.
type Config struct {
	Logger      LoggerConfig      `yaml:"logger" validate:"required"`
	Oracle      OracleConfig      `yaml:"oracle" validate:"required"`
	Output      OutputConfig      `yaml:"output"`
	Coordinator CoordinatorConfig `yaml:"coordinator" validate:"required"`
	ZooKeeper   ZooKeeperConfig   `yaml:"zookeeper"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// OracleConfig bounds every structure computation; zero disables a bound.
type OracleConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	MaxSteps          int64         `yaml:"max_steps" validate:"gte=0"`
	MaxSubgroup       int           `yaml:"max_subgroup" validate:"gte=0"`
	MinGeneratorBound int64         `yaml:"min_generator_bound" validate:"gte=2"`
}

type OutputConfig struct {
	// gzip level, 0 selects the default
	CompressionLevel int `yaml:"compression_level" validate:"gte=-3,lte=9"`
}

type CoordinatorConfig struct {
	Listen      string        `yaml:"listen" validate:"required"`
	Advertise   string        `yaml:"advertise" validate:"omitempty,url"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

type ZooKeeperConfig struct {
	Servers        []string      `yaml:"servers" validate:"dive,hostname_port"`
	Root           string        `yaml:"root" validate:"required,startswith=/"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

// Default returns a baseline config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "INFO",
			JSON:  false,
		},
		Oracle: OracleConfig{
			Timeout:           time.Minute,
			MaxSteps:          50_000_000,
			MaxSubgroup:       1 << 22,
			MinGeneratorBound: 100,
		},
		Coordinator: CoordinatorConfig{
			Listen:      ":7070",
			PollTimeout: 30 * time.Second,
		},
		ZooKeeper: ZooKeeperConfig{
			Root:           "/clgrpell",
			SessionTimeout: 10 * time.Second,
		},
	}
}

var validate = validator.New()

// Validate checks the struct tags and the duration fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: config: %w", clgrperrors.ErrInvalidArgument, err)
	}
	if c.Oracle.Timeout < 0 || c.Coordinator.PollTimeout < 0 || c.ZooKeeper.SessionTimeout < 0 {
		return fmt.Errorf("%w: config: negative duration", clgrperrors.ErrInvalidArgument)
	}
	return nil
}

// Load reads the YAML file at path over Default(). A missing file yields the
// defaults and found == false.
func Load(path string) (cfg Config, found bool, err error) {
	cfg = Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, false, nil
		}
		return cfg, false, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, true, fmt.Errorf("%w: config %s: %w", clgrperrors.ErrInvalidArgument, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, true, err
	}
	return cfg, true, nil
}
