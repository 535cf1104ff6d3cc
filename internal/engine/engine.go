// Package engine extends every discriminant of a shard by the prime
// conductor ell and writes the resulting class group structures.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"clgrpell/internal/oracle"
	"clgrpell/pkg/batch"
	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/compression"
	"clgrpell/pkg/factortable"
	"clgrpell/pkg/metrics"
	"clgrpell/pkg/nt"
	"clgrpell/pkg/types"
)

// Result describes one processed shard.
type Result struct {
	Index     types.ShardIndex
	Status    types.ShardStatus
	Lines     int64
	Malformed int64
	Elapsed   time.Duration
}

// Engine processes shards for one worker. It is not safe for concurrent use
// by several goroutines; the factor table it reads may be shared.
type Engine struct {
	params batch.Params
	table  iFactorTable
	oracle oracle.Oracle
	level  int
	logger *slog.Logger
}

func New(params batch.Params, table iFactorTable, o oracle.Oracle, compressionLevel int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		params: params,
		table:  table,
		oracle: o,
		level:  compressionLevel,
		logger: logger,
	}
}

// BuildTable sieves the factor table covering every extended class number of
// the run.
func BuildTable(p batch.Params) (*factortable.Table, error) {
	bound := batch.TableBound(p)
	primes := nt.Primes(max(nt.Isqrt(bound)+1, 64))
	return factortable.Build(bound, primes)
}

// ProcessShard extends every line of shard index. A non-nil error comes with
// StatusFailed, after which the worker may continue, or StatusFatal.
func (e *Engine) ProcessShard(ctx context.Context, index types.ShardIndex) (res Result, err error) {
	start := time.Now()
	res = Result{Index: index}
	defer func() {
		res.Elapsed = time.Since(start)
		metrics.ObserveShard(res.Status, res.Elapsed)
	}()

	outPath := e.params.OutputPath(index)
	if _, err := os.Stat(outPath); err == nil {
		e.logger.Info("output exists, skipping shard", "index", index, "path", outPath)
		res.Status = types.StatusSkipped
		return res, nil
	}

	inPath := e.params.InputPath(index)
	in, err := compression.Open(inPath)
	if err != nil {
		res.Status = types.StatusFailed
		return res, fmt.Errorf("%w: %s: %w", clgrperrors.ErrInputUnavailable, inPath, err)
	}
	defer in.Close()

	if err := os.MkdirAll(e.params.OutputDir(), 0o755); err != nil {
		res.Status = types.StatusFatal
		return res, fmt.Errorf("create output dir: %w", err)
	}
	out, err := compression.Create(outPath, e.level)
	if err != nil {
		res.Status = types.StatusFailed
		return res, fmt.Errorf("create %s: %w", outPath, err)
	}

	bound := batch.ScratchBound(e.params, index)
	x := NewExtender(e.params, index, e.table, e.oracle, oracle.NewScratch(oracle.ScratchSize(bound)))

	for {
		line, ok := in.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			out.Abort()
			res.Status = types.StatusFailed
			return res, err
		}

		rec, valid, err := x.Step(ctx, line)
		if !valid {
			res.Malformed++
			metrics.IncMalformedLine()
			continue
		}
		if err != nil {
			out.Abort()
			res.Status = e.classify(err)
			return res, fmt.Errorf("shard %d: %w", index, err)
		}
		metrics.IncLine(rec.Kron)

		if err := out.WriteLine(Format(rec)); err != nil {
			out.Abort()
			res.Status = types.StatusFailed
			return res, fmt.Errorf("write %s: %w", outPath, err)
		}
		res.Lines++
	}
	if err := in.Err(); err != nil {
		out.Abort()
		res.Status = types.StatusFailed
		return res, fmt.Errorf("%w: read %s: %w", clgrperrors.ErrInputUnavailable, inPath, err)
	}

	size, err := out.Commit()
	if err != nil {
		res.Status = types.StatusFailed
		return res, err
	}
	res.Status = types.StatusDone
	e.logger.Info("shard processed",
		"index", index,
		"ell", e.params.Ell,
		"lines", res.Lines,
		"bytes", size,
		"seconds", time.Since(start).Seconds(),
	)
	return res, nil
}

// classify maps a line error to the shard outcome.
func (e *Engine) classify(err error) types.ShardStatus {
	switch {
	case errors.Is(err, clgrperrors.ErrTableUndersized):
		return types.StatusFatal
	case errors.Is(err, clgrperrors.ErrStructureTimedOut):
		metrics.IncOracleFailure("timeout")
	case errors.Is(err, clgrperrors.ErrOrderMismatch):
		metrics.IncOracleFailure("mismatch")
	default:
		metrics.IncOracleFailure("other")
	}
	return types.StatusFailed
}
