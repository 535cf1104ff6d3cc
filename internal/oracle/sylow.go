package oracle

import (
	"context"
	"fmt"
	"math"

	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/nt"
	"clgrpell/pkg/qform"
)

// SylowOracle enumerates each non-cyclic Sylow subgroup from powers of
// small prime forms and reads its invariants off the p-power torsion counts.
type SylowOracle struct {
	cfg Config
}

func NewSylow(cfg Config) *SylowOracle {
	return &SylowOracle{cfg: cfg}
}

type sylowPart struct {
	p int64
	// exponents of the cyclic p-factors, descending
	exps []int
}

func (o *SylowOracle) Structure(ctx context.Context, disc, initPow, order int64, scratch *Scratch) (Structure, error) {
	if order <= 0 || initPow <= 0 || order%initPow != 0 {
		return nil, fmt.Errorf("%w: order %d, init_pow %d", clgrperrors.ErrInvalidArgument, order, initPow)
	}
	n := order / initPow
	if n == 1 {
		return Structure{1}, nil
	}

	g, err := qform.NewGroup(disc)
	if err != nil {
		return nil, err
	}
	if scratch == nil {
		scratch = NewScratch(0)
	}
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	run := &sylowRun{
		cfg:      o.cfg,
		ctx:      ctx,
		g:        g,
		order:    order,
		scratch:  scratch,
		genBound: generatorBound(disc, o.cfg.MinGeneratorBound),
	}

	primes, exps := nt.Factorize(n)
	parts := make([]sylowPart, 0, len(primes))
	for i, p := range primes {
		if exps[i] == 1 {
			parts = append(parts, sylowPart{p: p, exps: []int{1}})
			continue
		}
		part, err := run.sylow(p, exps[i])
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return assemble(parts), nil
}

// generatorBound is Bach's bound 6 ln^2|disc| on the norms of prime forms
// needed to generate the class group, raised to floor.
func generatorBound(disc int64, floor int64) int64 {
	l := math.Log(math.Abs(float64(disc)))
	return max(int64(6*l*l)+1, floor)
}

// assemble merges the p-parts into invariant factors by the Chinese remainder
// theorem: factor i is the product of the i-th largest p-factor of every p.
func assemble(parts []sylowPart) Structure {
	rank := 0
	for _, part := range parts {
		rank = max(rank, len(part.exps))
	}
	if rank == 0 {
		return Structure{1}
	}
	s := make(Structure, rank)
	for i := range s {
		s[i] = 1
	}
	for _, part := range parts {
		for i, e := range part.exps {
			pe, _ := nt.PowChecked(part.p, e)
			s[i] *= pe
		}
	}
	return s
}

type sylowRun struct {
	cfg      Config
	ctx      context.Context
	g        *qform.Group
	order    int64
	scratch  *Scratch
	genBound int64
	steps    int64
}

func (r *sylowRun) compose(x, y qform.Form) (qform.Form, error) {
	r.steps++
	if r.cfg.MaxSteps > 0 && r.steps > r.cfg.MaxSteps {
		return qform.Form{}, fmt.Errorf("%w: disc %d: composition budget %d exhausted", clgrperrors.ErrStructureTimedOut, r.g.Discriminant(), r.cfg.MaxSteps)
	}
	if r.steps&1023 == 0 {
		if err := r.ctx.Err(); err != nil {
			return qform.Form{}, fmt.Errorf("%w: disc %d: %w", clgrperrors.ErrStructureTimedOut, r.g.Discriminant(), err)
		}
	}
	return r.g.Compose(x, y), nil
}

// sylow enumerates the Sylow p-subgroup of order p^e.
func (r *sylowRun) sylow(p int64, e int) (sylowPart, error) {
	disc := r.g.Discriminant()
	target, ok := nt.PowChecked(p, e)
	if !ok || (r.cfg.MaxSubgroup > 0 && target > int64(r.cfg.MaxSubgroup)) {
		return sylowPart{}, fmt.Errorf("%w: disc %d: %d-subgroup of order %d exceeds the enumeration cap", clgrperrors.ErrStructureTimedOut, disc, p, target)
	}
	cofactor := r.order / target

	s := r.scratch
	s.reset()
	s.add(r.g.Identity())

	for _, q := range s.generators(r.genBound) {
		if int64(s.Len()) == target {
			break
		}
		if err := r.ctx.Err(); err != nil {
			return sylowPart{}, fmt.Errorf("%w: disc %d: %w", clgrperrors.ErrStructureTimedOut, disc, err)
		}
		f, ok := r.g.PrimeForm(q)
		if !ok {
			continue
		}
		x := r.g.Pow(f, cofactor)
		if s.contains(x) {
			continue
		}
		if err := r.extend(x, target); err != nil {
			return sylowPart{}, err
		}
	}
	if int64(s.Len()) != target {
		return sylowPart{}, fmt.Errorf("%w: disc %d: generators up to %d span %d of %d elements in the %d-subgroup",
			clgrperrors.ErrStructureTimedOut, disc, r.genBound, s.Len(), target, p)
	}

	return r.invariants(p, e)
}

// extend replaces S by S<x>: with j the least exponent such that x^j lies
// in S, the cosets S x^i for 0 < i < j are new and distinct.
func (r *sylowRun) extend(x qform.Form, target int64) error {
	s := r.scratch
	base := s.Len()

	y, j := x, int64(1)
	for !s.contains(y) {
		if int64(base)*(j+1) > target {
			return fmt.Errorf("%w: disc %d: subgroup exceeds order %d", clgrperrors.ErrOrderMismatch, r.g.Discriminant(), target)
		}
		var err error
		if y, err = r.compose(y, x); err != nil {
			return err
		}
		j++
	}

	xi := r.g.Identity()
	for i := int64(1); i < j; i++ {
		var err error
		if xi, err = r.compose(xi, x); err != nil {
			return err
		}
		for k := 0; k < base; k++ {
			z, err := r.compose(s.elems[k], xi)
			if err != nil {
				return err
			}
			if _, loaded := s.q.LoadOrStore(z.Key(), 0); loaded {
				return fmt.Errorf("%w: disc %d: coset element %v repeated", clgrperrors.ErrOrderMismatch, r.g.Discriminant(), z)
			}
			s.elems = append(s.elems, z)
			s.order = append(s.order, -1)
		}
	}
	for k := base; k < len(s.elems); k++ {
		s.r.Store(s.elems[k].Key(), k)
	}
	s.q = newFormTable()
	return nil
}

// invariants derives the cyclic decomposition of the enumerated p-group from
// N_k = #{x : x^(p^k) = 1}: log_p(N_k / N_(k-1)) factors have order >= p^k.
func (r *sylowRun) invariants(p int64, e int) (sylowPart, error) {
	s := r.scratch
	for i := range s.elems {
		if _, err := r.elementOrder(i, p, e); err != nil {
			return sylowPart{}, err
		}
	}

	counts := make([]int64, e+1)
	for _, k := range s.order {
		counts[k]++
	}
	// cumulative: counts[k] = N_k
	for k := 1; k <= e; k++ {
		counts[k] += counts[k-1]
	}

	atLeast := make([]int, e+2)
	for k := 1; k <= e; k++ {
		ratio := counts[k] / counts[k-1]
		for ratio > 1 {
			ratio /= p
			atLeast[k]++
		}
	}

	var exps []int
	for k := e; k >= 1; k-- {
		for c := atLeast[k] - atLeast[k+1]; c > 0; c-- {
			exps = append(exps, k)
		}
	}
	return sylowPart{p: p, exps: exps}, nil
}

// elementOrder returns k with elems[i] of order p^k, following the chain of
// p-th powers through the enumerated subgroup.
func (r *sylowRun) elementOrder(i int, p int64, e int) (int, error) {
	s := r.scratch
	if s.order[i] >= 0 {
		return int(s.order[i]), nil
	}
	idx, depth := i, 0
	for !r.g.IsIdentity(s.elems[idx]) {
		if s.order[idx] >= 0 {
			depth += int(s.order[idx])
			break
		}
		if depth >= e {
			return 0, fmt.Errorf("%w: disc %d: %v has order beyond %d^%d", clgrperrors.ErrOrderMismatch, r.g.Discriminant(), s.elems[i], p, e)
		}
		next, ok := s.index(r.g.Pow(s.elems[idx], p))
		if !ok {
			return 0, fmt.Errorf("%w: disc %d: subgroup not closed under powering", clgrperrors.ErrOrderMismatch, r.g.Discriminant())
		}
		idx = next
		depth++
	}
	if depth > e {
		return 0, fmt.Errorf("%w: disc %d: %v has order beyond %d^%d", clgrperrors.ErrOrderMismatch, r.g.Discriminant(), s.elems[i], p, e)
	}
	s.order[i] = int8(depth)
	return depth, nil
}
