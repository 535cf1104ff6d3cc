// Package oracle determines the structure of the class group of a negative
// discriminant given its class number.
package oracle

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Oracle computes the invariant factors of the subgroup of order
// order/initPow of the class group of disc.
type Oracle interface {
	Structure(ctx context.Context, disc, initPow, order int64, scratch *Scratch) (Structure, error)
}

// Structure holds invariant factors, largest first, each dividing the previous.
// The trivial group is Structure{1}.
type Structure []int64

func (s Structure) Rank() int { return len(s) }

// Order is the product of the factors.
func (s Structure) Order() int64 {
	o := int64(1)
	for _, f := range s {
		o *= f
	}
	return o
}

func (s Structure) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = strconv.FormatInt(f, 10)
	}
	return strings.Join(parts, " ")
}

// Config bounds a single Structure call. Zero values disable a bound.
type Config struct {
	Timeout           time.Duration
	MaxSteps          int64
	MaxSubgroup       int
	MinGeneratorBound int64
}

func DefaultConfig() Config {
	return Config{
		Timeout:           time.Minute,
		MaxSteps:          50_000_000,
		MaxSubgroup:       1 << 22,
		MinGeneratorBound: 100,
	}
}
