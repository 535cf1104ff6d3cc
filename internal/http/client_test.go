package http

import (
	"context"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"clgrpell/internal/dispatch"
	"clgrpell/internal/engine"
	"clgrpell/pkg/batch"
	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/rpc"
	"clgrpell/pkg/types"
)

type countingProcessor struct {
	mu   sync.Mutex
	seen map[types.ShardIndex]int
}

func (p *countingProcessor) ProcessShard(_ context.Context, index types.ShardIndex) (engine.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[index]++
	return engine.Result{Index: index, Status: types.StatusDone, Lines: 2}, nil
}

type cluster struct {
	params batch.Params
	hub    *dispatch.Hub
	coord  *dispatch.Coordinator
	server *Server
	ts     *httptest.Server
}

func newCluster(t *testing.T, files, workers int) *cluster {
	t.Helper()
	p := batch.Params{DMax: int64(files) * 32, Files: files, A: 7, M: 8, Ell: 3, Folder: t.TempDir()}
	require.NoError(t, p.Validate())
	require.NoError(t, os.MkdirAll(p.InputDir(), 0o755))
	for i := 0; i < files; i++ {
		require.NoError(t, os.WriteFile(p.InputPath(types.ShardIndex(i)), nil, 0o644))
	}

	hub := dispatch.NewHub(workers)
	coord := dispatch.NewCoordinator(p, hub, nil)
	server := NewServer(hub, coord.Ledger(), rpc.Job{RunID: "rpc-test", Params: p},
		Options{PollTimeout: 20 * time.Millisecond}, nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &cluster{params: p, hub: hub, coord: coord, server: server, ts: ts}
}

func TestRemoteWorkers(t *testing.T) {
	c := newCluster(t, 7, 2)
	ctx := context.Background()
	proc := &countingProcessor{seen: map[types.ShardIndex]int{}}

	g, gctx := errgroup.WithContext(ctx)
	var summary types.Summary
	g.Go(func() error {
		var err error
		summary, err = c.coord.Run(gctx)
		return err
	})
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			client := rpc.NewClient(c.ts.URL + "/")
			id, job, err := client.Register(gctx)
			if err != nil {
				return err
			}
			if job.Params != c.params {
				t.Errorf("worker %d got params %+v", id, job.Params)
			}
			factory := func() (dispatch.ShardProcessor, error) { return proc, nil }
			return dispatch.NewWorker(id, client, factory, nil).Run(gctx)
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 7, summary.Done)
	assert.Len(t, proc.seen, 7)
	for index, n := range proc.seen {
		assert.Equal(t, 1, n, "index %d", index)
	}

	select {
	case <-c.server.Done():
	case <-time.After(time.Second):
		t.Fatal("server not done after both workers stopped")
	}
}

func TestRegisterConflict(t *testing.T) {
	c := newCluster(t, 1, 1)
	client := rpc.NewClient(c.ts.URL)
	ctx := context.Background()

	id, _, err := client.Register(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.WorkerID(1), id)

	_, _, err = client.Register(ctx)
	assert.ErrorIs(t, err, clgrperrors.ErrNoWorkerSlot)
}

func TestJobAndHealth(t *testing.T) {
	c := newCluster(t, 2, 3)
	client := rpc.NewClient(c.ts.URL)
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))
	job, err := client.Job(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rpc-test", job.RunID)
	assert.Equal(t, 3, job.Workers)
	assert.Equal(t, c.params, job.Params)
}

func TestNextHonoursContext(t *testing.T) {
	c := newCluster(t, 1, 1)
	client := rpc.NewClient(c.ts.URL)
	_, _, err := client.Register(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = client.Next(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnregisteredWorker(t *testing.T) {
	c := newCluster(t, 1, 1)
	client := rpc.NewClient(c.ts.URL)

	_, err := client.Next(context.Background(), 1)
	assert.ErrorContains(t, err, "404")
	err = client.Report(context.Background(), types.Report{Worker: 1, Index: 0})
	assert.ErrorContains(t, err, "404")
}
