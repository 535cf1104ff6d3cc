package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"clgrpell/pkg/batch"
	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/metrics"
	"clgrpell/pkg/types"
)

type iCoordinatorQueue interface {
	Workers() int
	Assign(ctx context.Context, w types.WorkerID, index types.ShardIndex) error
	Receive(ctx context.Context) (types.Report, error)
}

// Coordinator owns the shard indices of one batch and hands them out one at
// a time to whichever worker reports first.
type Coordinator struct {
	params batch.Params
	queue  iCoordinatorQueue
	ledger *Ledger
	logger *slog.Logger
}

func NewCoordinator(params batch.Params, queue iCoordinatorQueue, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		params: params,
		queue:  queue,
		ledger: NewLedger(params.Files),
		logger: logger.With("worker", types.CoordinatorID),
	}
}

func (c *Coordinator) Ledger() *Ledger { return c.ledger }

// Verify checks that every input shard exists and that there is at least
// one worker.
func (c *Coordinator) Verify() error {
	for i := 0; i < c.params.Files; i++ {
		path := c.params.InputPath(types.ShardIndex(i))
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %s", clgrperrors.ErrMissingInput, path)
		}
	}
	if c.queue.Workers() < 1 {
		return fmt.Errorf("%w: %d workers", clgrperrors.ErrTooFewProcesses, c.queue.Workers())
	}
	c.logger.Info("input verified", "files", c.params.Files)
	return nil
}

// Run verifies the batch, then dispatches every index exactly once and
// stops every worker. It returns early on a fatal worker report.
func (c *Coordinator) Run(ctx context.Context) (types.Summary, error) {
	if err := c.Verify(); err != nil {
		return c.ledger.Summary(), err
	}

	workers := c.queue.Workers()
	files := c.params.Files
	active := workers
	metrics.SetWorkersActive(active)

	// prime: one index per worker, the rest stop immediately
	for w := 1; w <= workers; w++ {
		id := types.WorkerID(w)
		if w <= files {
			if err := c.assign(ctx, id, types.ShardIndex(w-1)); err != nil {
				return c.ledger.Summary(), err
			}
			continue
		}
		if err := c.queue.Assign(ctx, id, types.NoMoreWork); err != nil {
			return c.ledger.Summary(), err
		}
		active--
	}
	metrics.SetWorkersActive(active)
	next := min(workers, files)

	for active > 0 {
		r, err := c.queue.Receive(ctx)
		if err != nil {
			return c.ledger.Summary(), err
		}
		if err := c.ledger.Complete(r); err != nil {
			return c.ledger.Summary(), err
		}
		c.logReport(r)
		if r.Status == types.StatusFatal {
			return c.ledger.Summary(), fmt.Errorf("%w: worker %d, shard %d: %s", clgrperrors.ErrWorkerFatal, r.Worker, r.Index, r.Error)
		}

		if next < files {
			if err := c.assign(ctx, r.Worker, types.ShardIndex(next)); err != nil {
				return c.ledger.Summary(), err
			}
			next++
			continue
		}
		if err := c.queue.Assign(ctx, r.Worker, types.NoMoreWork); err != nil {
			return c.ledger.Summary(), err
		}
		active--
		metrics.SetWorkersActive(active)
	}

	s := c.ledger.Summary()
	c.logger.Info("all files processed",
		"files", s.Files,
		"done", s.Done,
		"skipped", s.Skipped,
		"failed", len(s.Failed),
	)
	return s, nil
}

func (c *Coordinator) assign(ctx context.Context, w types.WorkerID, index types.ShardIndex) error {
	if err := c.ledger.Dispatch(w, index); err != nil {
		return err
	}
	if err := c.queue.Assign(ctx, w, index); err != nil {
		return err
	}
	metrics.IncDispatched()
	c.logger.Debug("shard assigned", "to", w, "index", index)
	return nil
}

func (c *Coordinator) logReport(r types.Report) {
	attrs := []any{"from", r.Worker, "index", r.Index, "status", r.Status, "lines", r.Lines}
	switch r.Status {
	case types.StatusFailed:
		c.logger.Warn("shard failed", append(attrs, "error", r.Error)...)
	case types.StatusFatal:
		c.logger.Error("shard fatal", append(attrs, "error", r.Error)...)
	default:
		c.logger.Debug("shard reported", attrs...)
	}
}

// IsStopped reports whether err only reflects the run being cancelled.
func IsStopped(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
