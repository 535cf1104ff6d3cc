package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"clgrpell/internal/engine"
	"clgrpell/internal/oracle"
	"clgrpell/pkg/batch"
	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/compression"
	"clgrpell/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testParams(t *testing.T, files int, withInputs bool) batch.Params {
	t.Helper()
	p := batch.Params{DMax: int64(files) * 8 * 4, Files: files, A: 7, M: 8, Ell: 3, Folder: t.TempDir()}
	require.NoError(t, p.Validate())
	if withInputs {
		require.NoError(t, os.MkdirAll(p.InputDir(), 0o755))
		for i := 0; i < files; i++ {
			require.NoError(t, os.WriteFile(p.InputPath(types.ShardIndex(i)), nil, 0o644))
		}
	}
	return p
}

type event struct {
	report bool
	index  types.ShardIndex
}

// recordingQueue logs every assignment and report per worker.
type recordingQueue struct {
	*Hub
	mu     sync.Mutex
	events map[types.WorkerID][]event
}

func newRecordingQueue(workers int) *recordingQueue {
	return &recordingQueue{Hub: NewHub(workers), events: map[types.WorkerID][]event{}}
}

func (q *recordingQueue) Next(ctx context.Context, w types.WorkerID) (types.ShardIndex, error) {
	idx, err := q.Hub.Next(ctx, w)
	if err == nil {
		q.mu.Lock()
		q.events[w] = append(q.events[w], event{index: idx})
		q.mu.Unlock()
	}
	return idx, err
}

func (q *recordingQueue) Report(ctx context.Context, r types.Report) error {
	q.mu.Lock()
	q.events[r.Worker] = append(q.events[r.Worker], event{report: true, index: r.Index})
	q.mu.Unlock()
	return q.Hub.Report(ctx, r)
}

// fakeProcessor completes shards with a status chosen per index.
type fakeProcessor struct {
	mu        sync.Mutex
	processed []types.ShardIndex
	outcome   func(types.ShardIndex) (types.ShardStatus, error)
}

func (p *fakeProcessor) ProcessShard(_ context.Context, index types.ShardIndex) (engine.Result, error) {
	p.mu.Lock()
	p.processed = append(p.processed, index)
	p.mu.Unlock()

	status, err := types.StatusDone, error(nil)
	if p.outcome != nil {
		status, err = p.outcome(index)
	}
	return engine.Result{Index: index, Status: status, Lines: 1}, err
}

func (p *fakeProcessor) factory() ProcessorFactory {
	return func() (ShardProcessor, error) { return p, nil }
}

func runWithQueue(t *testing.T, p batch.Params, q *recordingQueue, proc *fakeProcessor) (types.Summary, error) {
	t.Helper()
	ctx := context.Background()
	coord := NewCoordinator(p, q, nil)

	var wg sync.WaitGroup
	errs := make([]error, q.Workers())
	for w := 1; w <= q.Workers(); w++ {
		wg.Add(1)
		worker := NewWorker(types.WorkerID(w), q, proc.factory(), nil)
		go func() {
			defer wg.Done()
			errs[w-1] = worker.Run(ctx)
		}()
	}
	s, err := coord.Run(ctx)
	wg.Wait()
	for _, werr := range errs {
		require.NoError(t, werr)
	}
	return s, err
}

func TestDispatchFairness(t *testing.T) {
	p := testParams(t, 10, true)
	q := newRecordingQueue(3)
	proc := &fakeProcessor{}

	s, err := runWithQueue(t, p, q, proc)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Done)
	assert.Equal(t, 10, s.Dispatched)

	// every index processed exactly once
	got := append([]types.ShardIndex(nil), proc.processed...)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := make([]types.ShardIndex, 10)
	for i := range want {
		want[i] = types.ShardIndex(i)
	}
	assert.Equal(t, want, got)

	// workers alternate assignment and report and end on the sentinel
	for w := types.WorkerID(1); w <= 3; w++ {
		evs := q.events[w]
		require.NotEmpty(t, evs)
		assert.Equal(t, types.ShardIndex(w-1), evs[0].index, "worker %d primed with its own index", w)
		for i, ev := range evs[:len(evs)-1] {
			if i%2 == 0 {
				assert.False(t, ev.report, "worker %d event %d", w, i)
				assert.True(t, evs[i+1].report)
				assert.Equal(t, ev.index, evs[i+1].index)
			}
		}
		last := evs[len(evs)-1]
		assert.False(t, last.report)
		assert.Equal(t, types.NoMoreWork, last.index)
	}
}

func TestMoreWorkersThanFiles(t *testing.T) {
	p := testParams(t, 2, true)
	q := newRecordingQueue(5)
	proc := &fakeProcessor{}

	s, err := runWithQueue(t, p, q, proc)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Done)
	assert.ElementsMatch(t, []types.ShardIndex{0, 1}, proc.processed)

	for w := types.WorkerID(3); w <= 5; w++ {
		assert.Equal(t, []event{{index: types.NoMoreWork}}, q.events[w])
	}
}

func TestFailedShardsAreReportedNotFatal(t *testing.T) {
	p := testParams(t, 6, true)
	q := newRecordingQueue(2)
	proc := &fakeProcessor{outcome: func(i types.ShardIndex) (types.ShardStatus, error) {
		switch {
		case i%3 == 0:
			return types.StatusFailed, fmt.Errorf("shard %d: %w", i, clgrperrors.ErrStructureTimedOut)
		case i == 4:
			return types.StatusSkipped, nil
		}
		return types.StatusDone, nil
	}}

	s, err := runWithQueue(t, p, q, proc)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Done)
	assert.Equal(t, 1, s.Skipped)
	assert.ElementsMatch(t, []types.ShardIndex{0, 3}, s.Failed)
}

func TestMissingInputAbortsBeforeDispatch(t *testing.T) {
	p := testParams(t, 3, true)
	require.NoError(t, os.Remove(p.InputPath(1)))

	proc := &fakeProcessor{}
	_, err := RunInProcess(context.Background(), p, 3, proc.factory(), nil)
	assert.ErrorIs(t, err, clgrperrors.ErrMissingInput)
	assert.Contains(t, err.Error(), p.InputPath(1))
	assert.Empty(t, proc.processed)
}

func TestTooFewProcesses(t *testing.T) {
	p := testParams(t, 2, true)
	_, err := RunInProcess(context.Background(), p, 1, (&fakeProcessor{}).factory(), nil)
	assert.ErrorIs(t, err, clgrperrors.ErrTooFewProcesses)

	coord := NewCoordinator(p, NewHub(0), nil)
	assert.ErrorIs(t, coord.Verify(), clgrperrors.ErrTooFewProcesses)
}

func TestFatalReportAbortsRun(t *testing.T) {
	p := testParams(t, 8, true)
	proc := &fakeProcessor{outcome: func(i types.ShardIndex) (types.ShardStatus, error) {
		if i == 2 {
			return types.StatusFatal, fmt.Errorf("line 1: %w", clgrperrors.ErrTableUndersized)
		}
		return types.StatusDone, nil
	}}

	_, err := RunInProcess(context.Background(), p, 3, proc.factory(), nil)
	require.Error(t, err)
	assert.True(t, clgrperrors.IsFatal(err), "%v", err)
}

func TestWorkerSetupFailureIsFatal(t *testing.T) {
	p := testParams(t, 4, true)
	factory := func() (ShardProcessor, error) {
		return nil, fmt.Errorf("factor table: %w", clgrperrors.ErrPrimeTableTooSmall)
	}

	_, err := RunInProcess(context.Background(), p, 2, factory, nil)
	require.Error(t, err)
	assert.True(t, clgrperrors.IsFatal(err), "%v", err)
}

func TestCancelledRunStopsWorkers(t *testing.T) {
	p := testParams(t, 4, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunInProcess(ctx, p, 3, (&fakeProcessor{}).factory(), nil)
	assert.True(t, IsStopped(err), "%v", err)
}

func TestRunInProcessWithEngine(t *testing.T) {
	p := batch.Params{DMax: 64, Files: 2, A: 7, M: 8, Ell: 3, Folder: t.TempDir()}
	for i := types.ShardIndex(0); i < 2; i++ {
		require.NoError(t, os.MkdirAll(filepath.Dir(p.InputPath(i)), 0o755))
		w, err := compression.Create(p.InputPath(i), 0)
		require.NoError(t, err)
		require.NoError(t, w.WriteLine("1 1"))
		_, err = w.Commit()
		require.NoError(t, err)
	}

	table, err := engine.BuildTable(p)
	require.NoError(t, err)
	factory := EngineFactory(func() (*engine.Engine, error) {
		return engine.New(p, table, oracle.NewSylow(oracle.DefaultConfig()), 0, nil), nil
	})

	s, err := RunInProcess(context.Background(), p, 3, factory, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Done)
	assert.FileExists(t, p.OutputPath(0))
	assert.FileExists(t, p.OutputPath(1))

	// a second run skips both shards
	s, err = RunInProcess(context.Background(), p, 2, factory, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Skipped)
}
