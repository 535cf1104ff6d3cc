package growth

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"clgrpell/pkg/batch"
	"clgrpell/pkg/compression"
	"clgrpell/pkg/types"
)

// Class is a residue class a mod m of discriminant magnitudes.
type Class struct {
	A int64
	M int64
}

func (c Class) String() string { return fmt.Sprintf("%d mod %d", c.A, c.M) }

// Classes are the congruence classes of fundamental discriminants.
var Classes = []Class{{8, 16}, {4, 16}, {3, 8}, {7, 8}}

type Counts struct {
	WithFactor uint64
	WithGrowth uint64
}

// Rate is the share of WithFactor that grew, in percent.
func (c Counts) Rate() float64 {
	if c.WithFactor == 0 {
		return 0
	}
	return 100 * float64(c.WithGrowth) / float64(c.WithFactor)
}

type KronKey struct {
	N    int
	Kron types.Kron
}

type Results struct {
	Total  uint64
	ByN    map[int]Counts
	ByKron map[KronKey]Counts
}

func NewResults() Results {
	return Results{ByN: map[int]Counts{}, ByKron: map[KronKey]Counts{}}
}

func (r *Results) Merge(o Results) {
	r.Total += o.Total
	for n, c := range o.ByN {
		cur := r.ByN[n]
		cur.WithFactor += c.WithFactor
		cur.WithGrowth += c.WithGrowth
		r.ByN[n] = cur
	}
	for k, c := range o.ByKron {
		cur := r.ByKron[k]
		cur.WithFactor += c.WithFactor
		cur.WithGrowth += c.WithGrowth
		r.ByKron[k] = cur
	}
}

// Ns lists the exponents seen, ascending.
func (r Results) Ns() []int {
	ns := make([]int, 0, len(r.ByN))
	for n := range r.ByN {
		ns = append(ns, n)
	}
	sort.Ints(ns)
	return ns
}

func (r *Results) record(n int, kron types.Kron, growth bool) {
	c := r.ByN[n]
	k := r.ByKron[KronKey{n, kron}]
	c.WithFactor++
	k.WithFactor++
	if growth {
		c.WithGrowth++
		k.WithGrowth++
	}
	r.ByN[n] = c
	r.ByKron[KronKey{n, kron}] = k
}

// Event describes one discriminant whose ℓ^N factor grew.
type Event struct {
	D    int64
	N    int
	Kron types.Kron
	Base Profile
	Ext  Profile
}

// Analyzer walks the base and ℓ shard pairs of a tabulation folder.
type Analyzer struct {
	Folder string
	Ell    int64
	DMax   int64
	Files  int
	Mode   Mode

	// OnGrowth, when set, is called for every growing discriminant. Calls
	// are serialized.
	OnGrowth func(Event)
	// OnError, when set, receives shard pairs that could not be read. Such
	// pairs count as empty.
	OnError func(c Class, index types.ShardIndex, err error)

	Logger *slog.Logger

	mu sync.Mutex
}

func (a *Analyzer) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

func (a *Analyzer) params(c Class) batch.Params {
	return batch.Params{DMax: a.DMax, Files: a.Files, A: c.A, M: c.M, Ell: a.Ell, Folder: a.Folder}
}

// ClassResult pairs a congruence class with its merged counts.
type ClassResult struct {
	Class   Class
	Results Results
}

// Run analyzes every class and returns the per-class results and the
// grand total.
func (a *Analyzer) Run(ctx context.Context) ([]ClassResult, Results, error) {
	total := NewResults()
	out := make([]ClassResult, 0, len(Classes))
	for _, c := range Classes {
		a.logger().Info("processing class", "class", c.String())
		r, err := a.Class(ctx, c)
		if err != nil {
			return out, total, err
		}
		total.Merge(r)
		out = append(out, ClassResult{Class: c, Results: r})
	}
	return out, total, nil
}

// Class processes every shard pair of c in parallel.
func (a *Analyzer) Class(ctx context.Context, c Class) (Results, error) {
	parts := make([]Results, a.Files)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < a.Files; i++ {
		index := types.ShardIndex(i)
		g.Go(func() error {
			r, err := a.Pair(gctx, c, index)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if a.OnError != nil {
					a.OnError(c, index, err)
				}
				r = NewResults()
			}
			parts[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return NewResults(), err
	}

	merged := NewResults()
	for _, r := range parts {
		merged.Merge(r)
	}
	return merged, nil
}

// Pair zips the base shard with its ℓ shard line by line. Reading stops at
// the shorter file; a pair with an unparsable side is skipped without
// advancing D.
func (a *Analyzer) Pair(ctx context.Context, c Class, index types.ShardIndex) (Results, error) {
	p := a.params(c)
	base, err := compression.Open(p.InputPath(index))
	if err != nil {
		return Results{}, err
	}
	defer base.Close()
	ext, err := compression.Open(p.OutputPath(index))
	if err != nil {
		return Results{}, err
	}
	defer ext.Close()

	ell := uint64(a.Ell)
	res := NewResults()
	d := p.Start(index)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		bl, ok := base.Next()
		if !ok {
			break
		}
		el, ok := ext.Next()
		if !ok {
			break
		}

		bdist, binv, ok := parseBase(bl)
		if !ok {
			continue
		}
		edist, kron, einv, ok := parseExt(el)
		if !ok {
			continue
		}
		if bdist != edist {
			a.logger().Warn("distance mismatch", "class", c.String(), "index", index, "D", d, "base", bdist, "ext", edist)
		}

		d += bdist * p.M
		res.Total++

		bp, ep := ProfileOf(binv, ell), ProfileOf(einv, ell)
		for n := 1; n <= max(bp.Max(), ep.Max()); n++ {
			has, grew := Compare(bp, ep, n, a.Mode)
			if !has {
				continue
			}
			res.record(n, kron, grew)
			if grew && a.OnGrowth != nil {
				a.mu.Lock()
				a.OnGrowth(Event{D: d, N: n, Kron: kron, Base: bp, Ext: ep})
				a.mu.Unlock()
			}
		}
	}
	if err := base.Err(); err != nil {
		return res, err
	}
	if err := ext.Err(); err != nil {
		return res, err
	}
	return res, nil
}
