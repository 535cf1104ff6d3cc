package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/types"
)

func TestLedgerOwnership(t *testing.T) {
	l := NewLedger(3)

	require.NoError(t, l.Dispatch(1, 0))
	assert.ErrorIs(t, l.Dispatch(1, 1), clgrperrors.ErrProtocol, "worker already holds an index")
	assert.ErrorIs(t, l.Dispatch(2, 0), clgrperrors.ErrProtocol, "index already dispatched")
	assert.ErrorIs(t, l.Dispatch(2, 3), clgrperrors.ErrProtocol, "out of range")
	assert.ErrorIs(t, l.Dispatch(2, types.NoMoreWork), clgrperrors.ErrProtocol)

	assert.ErrorIs(t, l.Complete(types.Report{Worker: 2, Index: 0}), clgrperrors.ErrProtocol, "not the holder")
	idx, ok := l.Holding(1)
	require.True(t, ok)
	assert.Equal(t, types.ShardIndex(0), idx)

	require.NoError(t, l.Complete(types.Report{Worker: 1, Index: 0, Status: types.StatusDone}))
	_, ok = l.Holding(1)
	assert.False(t, ok)
	assert.ErrorIs(t, l.Complete(types.Report{Worker: 1, Index: 0}), clgrperrors.ErrProtocol, "reported twice")

	require.NoError(t, l.Dispatch(1, 1))
	require.NoError(t, l.Complete(types.Report{Worker: 1, Index: 1, Status: types.StatusFailed}))
	require.NoError(t, l.Dispatch(2, 2))

	s := l.Summary()
	assert.Equal(t, types.Summary{Files: 3, Dispatched: 3, Done: 1, Failed: []types.ShardIndex{1}}, s)

	shards := l.Shards()
	require.Len(t, shards, 3)
	assert.Equal(t, types.ShardState{Index: 2, Worker: 2}, shards[2])
}

func TestHubRejectsUnknownWorker(t *testing.T) {
	h := NewHub(2)
	ctx := context.Background()

	assert.ErrorIs(t, h.Assign(ctx, 0, 1), clgrperrors.ErrProtocol)
	assert.ErrorIs(t, h.Assign(ctx, 3, 1), clgrperrors.ErrProtocol)
	_, err := h.Next(ctx, 5)
	assert.ErrorIs(t, err, clgrperrors.ErrProtocol)
	assert.ErrorIs(t, h.Report(ctx, types.Report{Worker: -1}), clgrperrors.ErrProtocol)
}

func TestHubDelivers(t *testing.T) {
	h := NewHub(2)
	ctx := context.Background()

	require.NoError(t, h.Assign(ctx, 2, 7))
	idx, err := h.Next(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, types.ShardIndex(7), idx)

	require.NoError(t, h.Report(ctx, types.Report{Worker: 2, Index: 7, Status: types.StatusDone}))
	r, err := h.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.WorkerID(2), r.Worker)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.Next(cctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = h.Receive(cctx)
	assert.ErrorIs(t, err, context.Canceled)
}
