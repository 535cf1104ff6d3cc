// Package dispatch hands shard indices from the coordinator to workers and
// collects their completion reports.
package dispatch

import (
	"context"
	"fmt"

	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/types"
)

// Hub is the in-memory message queue between the coordinator and its
// workers: one single-slot assignment queue per worker and a shared report
// queue. Worker ids run from 1 to Workers().
type Hub struct {
	assignments []chan types.ShardIndex
	reports     chan types.Report
}

func NewHub(workers int) *Hub {
	h := &Hub{
		assignments: make([]chan types.ShardIndex, workers),
		reports:     make(chan types.Report, max(workers, 1)),
	}
	for i := range h.assignments {
		h.assignments[i] = make(chan types.ShardIndex, 1)
	}
	return h
}

func (h *Hub) Workers() int { return len(h.assignments) }

func (h *Hub) queue(w types.WorkerID) (chan types.ShardIndex, error) {
	if w < 1 || int(w) > len(h.assignments) {
		return nil, fmt.Errorf("%w: unknown worker %d", clgrperrors.ErrProtocol, w)
	}
	return h.assignments[w-1], nil
}

// Assign sends index to worker w.
func (h *Hub) Assign(ctx context.Context, w types.WorkerID, index types.ShardIndex) error {
	q, err := h.queue(w)
	if err != nil {
		return err
	}
	select {
	case q <- index:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks for the next report from any worker.
func (h *Hub) Receive(ctx context.Context) (types.Report, error) {
	select {
	case r := <-h.reports:
		return r, nil
	case <-ctx.Done():
		return types.Report{}, ctx.Err()
	}
}

// Next blocks until worker w has an assignment.
func (h *Hub) Next(ctx context.Context, w types.WorkerID) (types.ShardIndex, error) {
	q, err := h.queue(w)
	if err != nil {
		return types.NoMoreWork, err
	}
	select {
	case idx := <-q:
		return idx, nil
	case <-ctx.Done():
		return types.NoMoreWork, ctx.Err()
	}
}

// Report queues a completion report.
func (h *Hub) Report(ctx context.Context, r types.Report) error {
	if _, err := h.queue(r.Worker); err != nil {
		return err
	}
	select {
	case h.reports <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
