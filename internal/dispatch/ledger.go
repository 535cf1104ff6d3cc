package dispatch

import (
	"fmt"
	"sync"

	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/types"
)

// Ledger tracks which worker holds which index. Every index is dispatched
// at most once, a worker holds at most one index, and only the holder may
// complete it.
type Ledger struct {
	mu      sync.Mutex
	shards  []types.ShardState
	holding map[types.WorkerID]types.ShardIndex
}

func NewLedger(files int) *Ledger {
	l := &Ledger{
		shards:  make([]types.ShardState, files),
		holding: make(map[types.WorkerID]types.ShardIndex),
	}
	for i := range l.shards {
		l.shards[i].Index = types.ShardIndex(i)
	}
	return l
}

func (l *Ledger) Dispatch(w types.WorkerID, index types.ShardIndex) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || int(index) >= len(l.shards) {
		return fmt.Errorf("%w: index %d out of range", clgrperrors.ErrProtocol, index)
	}
	if held, ok := l.holding[w]; ok {
		return fmt.Errorf("%w: worker %d still holds %d", clgrperrors.ErrProtocol, w, held)
	}
	if s := l.shards[index]; s.Worker != 0 {
		return fmt.Errorf("%w: index %d already went to worker %d", clgrperrors.ErrProtocol, index, s.Worker)
	}
	l.shards[index].Worker = w
	l.holding[w] = index
	return nil
}

// Complete records r and releases the index held by r.Worker.
func (l *Ledger) Complete(r types.Report) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.holding[r.Worker]
	if !ok || held != r.Index {
		return fmt.Errorf("%w: worker %d reported %d without holding it", clgrperrors.ErrProtocol, r.Worker, r.Index)
	}
	delete(l.holding, r.Worker)
	l.shards[r.Index].Status = r.Status
	return nil
}

// Holding returns the index w holds.
func (l *Ledger) Holding(w types.WorkerID) (types.ShardIndex, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.holding[w]
	return idx, ok
}

func (l *Ledger) Shards() []types.ShardState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.ShardState(nil), l.shards...)
}

func (l *Ledger) Summary() types.Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := types.Summary{Files: len(l.shards)}
	for _, sh := range l.shards {
		if sh.Worker != 0 {
			s.Dispatched++
		}
		switch sh.Status {
		case types.StatusDone:
			s.Done++
		case types.StatusSkipped:
			s.Skipped++
		case types.StatusFailed, types.StatusFatal:
			s.Failed = append(s.Failed, sh.Index)
		}
	}
	return s
}
