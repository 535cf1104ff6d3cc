package growth

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clgrpell/pkg/compression"
	"clgrpell/pkg/types"
)

func TestValuationAndProfile(t *testing.T) {
	assert.Equal(t, 0, Valuation(0, 3))
	assert.Equal(t, 0, Valuation(10, 3))
	assert.Equal(t, 3, Valuation(54, 3))
	assert.Equal(t, 0, Valuation(8, 1))

	assert.Equal(t, Profile{3, 1}, ProfileOf([]uint64{3, 2, 27, 4}, 3))
	assert.Equal(t, Profile{}, ProfileOf(nil, 5))

	p := Profile{2, 1, 1}
	assert.Equal(t, 2, p.Count(1))
	assert.Equal(t, 0, p.Count(3))
	assert.Equal(t, 2, p.Max())
	assert.Equal(t, 0, Profile{}.Max())
}

func TestCompareModes(t *testing.T) {
	tests := []struct {
		name      string
		base, ext Profile
		n         int
		has       bool
		strict    bool
		any       bool
		net       bool
	}{
		{"no factor", Profile{2}, Profile{3}, 1, false, false, false, false},
		{"factor replaced", Profile{2}, Profile{3}, 2, true, true, true, true},
		{"factor kept and new one", Profile{1}, Profile{2, 1}, 1, true, false, true, true},
		{"no growth", Profile{1}, Profile{1, 1}, 1, true, false, false, false},
		{"factor replaced by a larger one", Profile{2, 1}, Profile{2, 2}, 1, true, true, true, true},
		{"larger factor already there", Profile{2, 1}, Profile{2, 2, 1}, 1, true, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for mode, want := range map[Mode]bool{ModeStrict: tt.strict, ModeAny: tt.any, ModeNet: tt.net} {
				has, grew := Compare(tt.base, tt.ext, tt.n, mode)
				assert.Equal(t, tt.has, has, "mode %s", mode)
				assert.Equal(t, want, grew, "mode %s", mode)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("net")
	assert.True(t, ok)
	assert.Equal(t, ModeNet, m)

	m, ok = ParseMode("fuzzy")
	assert.False(t, ok)
	assert.Equal(t, ModeStrict, m)
}

func TestParseLines(t *testing.T) {
	dist, inv, ok := parseBase("3 12 6 2")
	require.True(t, ok)
	assert.Equal(t, int64(3), dist)
	assert.Equal(t, []uint64{6, 2}, inv)

	_, _, ok = parseBase("3")
	assert.False(t, ok)
	_, _, ok = parseBase("x 1")
	assert.False(t, ok)

	dist, kron, inv, ok := parseExt("2\t-1\t9 3 junk")
	require.True(t, ok)
	assert.Equal(t, int64(2), dist)
	assert.Equal(t, types.Inert, kron)
	assert.Equal(t, []uint64{9, 3}, inv)

	_, _, _, ok = parseExt("2 x 9")
	assert.False(t, ok)
}

func writeShard(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	w, err := compression.Create(path, 0)
	require.NoError(t, err)
	for _, l := range lines {
		require.NoError(t, w.WriteLine(l))
	}
	_, err = w.Commit()
	require.NoError(t, err)
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	a := &Analyzer{Folder: t.TempDir(), Ell: 3, DMax: 64, Files: 1, Mode: ModeStrict}
	p := a.params(Class{7, 8})
	writeShard(t, p.InputPath(0), "1 9 9", "2 3 3", "1 6 6 3", "bad")
	writeShard(t, p.OutputPath(0), "1\t-1\t27", "2\t1\t3 3", "1\t0\t9 3", "1\t1\t3")
	return a
}

func TestPair(t *testing.T) {
	a := newTestAnalyzer(t)
	var events []Event
	a.OnGrowth = func(e Event) { events = append(events, e) }

	r, err := a.Pair(context.Background(), Class{7, 8}, 0)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), r.Total)
	assert.Equal(t, map[int]Counts{1: {2, 1}, 2: {1, 1}}, r.ByN)
	assert.Equal(t, map[KronKey]Counts{
		{2, types.Inert}:    {1, 1},
		{1, types.Split}:    {1, 0},
		{1, types.Ramified}: {1, 1},
	}, r.ByKron)

	require.Len(t, events, 2)
	assert.Equal(t, Event{D: 15, N: 2, Kron: types.Inert, Base: Profile{2}, Ext: Profile{3}}, events[0])
	assert.Equal(t, int64(15+16+8), events[1].D)
	assert.Equal(t, 1, events[1].N)
}

func TestPairMissingShard(t *testing.T) {
	a := newTestAnalyzer(t)
	_, err := a.Pair(context.Background(), Class{3, 8}, 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun(t *testing.T) {
	a := newTestAnalyzer(t)
	var failed []Class
	a.OnError = func(c Class, _ types.ShardIndex, _ error) { failed = append(failed, c) }

	classes, total, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, classes, 4)
	assert.ElementsMatch(t, []Class{{8, 16}, {4, 16}, {3, 8}}, failed)
	assert.Equal(t, uint64(0), classes[0].Results.Total)
	assert.Equal(t, uint64(3), classes[3].Results.Total)
	assert.Equal(t, uint64(3), total.Total)
	assert.Equal(t, []int{1, 2}, total.Ns())

	var buf bytes.Buffer
	WriteReport(&buf, a.Ell, classes, total)
	out := buf.String()
	assert.Contains(t, out, "7 mod 8:")
	assert.Contains(t, out, "Total discriminants: 3")
	assert.Contains(t, out, "   1            2            1   50.0000%")
	assert.Contains(t, out, "kron= 0 (ramified): factor=1, growth=1 (100.00%)")
}

func TestRunCancelled(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCountsRate(t *testing.T) {
	assert.Equal(t, 0.0, Counts{}.Rate())
	assert.Equal(t, 25.0, Counts{WithFactor: 4, WithGrowth: 1}.Rate())
}
