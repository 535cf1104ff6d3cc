package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"clgrpell/internal/engine"
	"clgrpell/pkg/types"
)

type iWorkerQueue interface {
	Next(ctx context.Context, w types.WorkerID) (types.ShardIndex, error)
	Report(ctx context.Context, r types.Report) error
}

// ShardProcessor is implemented by *engine.Engine.
type ShardProcessor interface {
	ProcessShard(ctx context.Context, index types.ShardIndex) (engine.Result, error)
}

// ProcessorFactory prepares a worker's engine, building its factor table.
type ProcessorFactory func() (ShardProcessor, error)

// EngineFactory adapts a constructor returning *engine.Engine.
func EngineFactory(build func() (*engine.Engine, error)) ProcessorFactory {
	return func() (ShardProcessor, error) {
		e, err := build()
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// Worker processes the indices its queue hands it until the stop sentinel.
type Worker struct {
	id      types.WorkerID
	queue   iWorkerQueue
	factory ProcessorFactory
	logger  *slog.Logger
}

func NewWorker(id types.WorkerID, queue iWorkerQueue, factory ProcessorFactory, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		id:      id,
		queue:   queue,
		factory: factory,
		logger:  logger.With("worker", id),
	}
}

// Run returns nil once the sentinel arrives, or the fatal error that made
// the worker stop.
func (w *Worker) Run(ctx context.Context) error {
	proc, setupErr := w.factory()

	for {
		index, err := w.queue.Next(ctx, w.id)
		if err != nil {
			return err
		}
		if index == types.NoMoreWork {
			w.logger.Debug("no more work")
			return setupErr
		}

		if setupErr != nil {
			w.logger.Error("worker setup failed", "index", index, "error", setupErr)
			_ = w.queue.Report(ctx, types.Report{
				Worker: w.id,
				Index:  index,
				Status: types.StatusFatal,
				Error:  setupErr.Error(),
			})
			return setupErr
		}

		res, err := proc.ProcessShard(ctx, index)
		report := types.Report{
			Worker:  w.id,
			Index:   index,
			Status:  res.Status,
			Lines:   res.Lines,
			Elapsed: res.Elapsed,
		}
		if err != nil {
			report.Error = err.Error()
			if res.Status == types.StatusFatal {
				w.logger.Error("fatal shard error", "index", index, "error", err)
			} else {
				w.logger.Warn("shard abandoned", "index", index, "error", err)
			}
		}
		if err := w.queue.Report(ctx, report); err != nil {
			return fmt.Errorf("report shard %d: %w", index, err)
		}
		if res.Status == types.StatusFatal {
			return err
		}
	}
}
