package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"clgrpell/internal/dispatch"
	"clgrpell/internal/engine"
	"clgrpell/internal/oracle"
	"clgrpell/pkg/batch"
	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/config"
	"clgrpell/pkg/factortable"
	"clgrpell/pkg/types"
)

// initConfig loads the YAML config. A missing file yields config.Default().
func initConfig(path string) (config.Config, error) {
	cfg, found, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if !found {
		slog.Info("config file not found, using default config", "path", path)
	}
	return cfg, nil
}

// initLogger installs the global slog.Logger (JSON or text) on stdout.
func initLogger(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logger.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logger.JSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("logger initialized", "level", level, "json", cfg.Logger.JSON)
}

// parseParams reads D_max files a m ell folder.
func parseParams(args []string) (batch.Params, error) {
	var p batch.Params
	if len(args) != 6 {
		return p, fmt.Errorf("%w: want 6 arguments, got %d", clgrperrors.ErrInvalidArgument, len(args))
	}

	ints := make([]int64, 5)
	names := []string{"D_max", "files", "a", "m", "ell"}
	for i, name := range names {
		v, err := strconv.ParseInt(args[i], 10, 64)
		if err != nil {
			return p, fmt.Errorf("%w: %s: %q is not an integer", clgrperrors.ErrInvalidArgument, name, args[i])
		}
		ints[i] = v
	}
	if ints[1] > int64(^uint32(0)>>1) {
		return p, fmt.Errorf("%w: files: %d is too large", clgrperrors.ErrInvalidArgument, ints[1])
	}

	p = batch.Params{
		DMax:   ints[0],
		Files:  int(ints[1]),
		A:      ints[2],
		M:      ints[3],
		Ell:    ints[4],
		Folder: args[5],
	}
	return p, p.Validate()
}

func oracleConfig(cfg *config.Config) oracle.Config {
	return oracle.Config{
		Timeout:           cfg.Oracle.Timeout,
		MaxSteps:          cfg.Oracle.MaxSteps,
		MaxSubgroup:       cfg.Oracle.MaxSubgroup,
		MinGeneratorBound: cfg.Oracle.MinGeneratorBound,
	}
}

// newFactory builds one engine per worker. Workers of the same process
// share a single factor table, built on first use.
func newFactory(params batch.Params, cfg *config.Config) dispatch.ProcessorFactory {
	table := sync.OnceValues(func() (*factortable.Table, error) {
		t, err := engine.BuildTable(params)
		if err == nil {
			slog.Info("factor table built", "bound", t.Bound(), "max_factors", t.MaxFactors())
		}
		return t, err
	})
	oc := oracleConfig(cfg)
	level := cfg.Output.CompressionLevel

	return dispatch.EngineFactory(func() (*engine.Engine, error) {
		t, err := table()
		if err != nil {
			return nil, err
		}
		return engine.New(params, t, oracle.NewSylow(oc), level, slog.Default()), nil
	})
}

func printBanner(cmd *cobra.Command, p batch.Params) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "clgrpell: D_max=%d, files=%d, a=%d, m=%d, ell=%d, folder=%s\n",
		p.DMax, p.Files, p.A, p.M, p.Ell, p.Folder)
	fmt.Fprintf(out, "D_total=%d\n", p.DTotal())
}

func printSummary(cmd *cobra.Command, s types.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "All files processed.")
	if len(s.Failed) > 0 {
		fmt.Fprintf(out, "%d of %d shards failed: %v\n", len(s.Failed), s.Files, s.Failed)
	}
}
