package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"clgrpell/pkg/batch"
	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/types"
)

// RunInProcess runs one coordinator and procs-1 workers as goroutines over a
// channel Hub. Each worker calls factory once for its own engine.
func RunInProcess(ctx context.Context, params batch.Params, procs int, factory ProcessorFactory, logger *slog.Logger) (types.Summary, error) {
	if procs < 2 {
		return types.Summary{Files: params.Files}, fmt.Errorf("%w: got %d", clgrperrors.ErrTooFewProcesses, procs)
	}
	if logger == nil {
		logger = slog.Default()
	}

	hub := NewHub(procs - 1)
	coord := NewCoordinator(params, hub, logger)

	g, gctx := errgroup.WithContext(ctx)
	var summary types.Summary
	g.Go(func() error {
		var err error
		summary, err = coord.Run(gctx)
		return err
	})
	for w := 1; w < procs; w++ {
		worker := NewWorker(types.WorkerID(w), hub, factory, logger)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	err := g.Wait()
	return summary, err
}
