// Package factortable precomputes the distinct prime factors of every integer
// up to a class-number bound, so the engine can strip trivially cyclic primes
// without factoring at line time.
package factortable

import (
	"fmt"
	"math"

	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/nt"
)

// Table maps h in [0, Bound()] to the distinct primes of h in increasing order.
// Entry h occupies stride slots of data: a count followed by up to maxFactors primes.
// A built table is read-only and safe to share.
type Table struct {
	bound      int64
	maxFactors int
	stride     int
	data       []uint32
}

// Build sieves the table for [0, hMax]. primes must be the consecutive primes
// starting at 2, include every prime up to isqrt(hMax), and have a product
// exceeding hMax.
func Build(hMax int64, primes []int64) (*Table, error) {
	if hMax < 0 || hMax > math.MaxUint32 {
		return nil, fmt.Errorf("%w: factor table bound %d", clgrperrors.ErrInvalidArgument, hMax)
	}

	maxFactors, err := maxDistinctFactors(hMax, primes)
	if err != nil {
		return nil, err
	}

	root := nt.Isqrt(hMax)
	if root >= 2 && (len(primes) == 0 || nt.NextPrime(primes[len(primes)-1]+1) <= root) {
		return nil, fmt.Errorf("%w: need primes up to %d to sieve %d", clgrperrors.ErrPrimeTableTooSmall, root, hMax)
	}

	t := &Table{
		bound:      hMax,
		maxFactors: maxFactors,
		stride:     maxFactors + 1,
	}
	t.data = make([]uint32, (hMax+1)*int64(t.stride))

	rest := make([]uint32, hMax+1)
	for i := range rest {
		rest[i] = uint32(i)
	}

	for _, p := range primes {
		if p > root {
			break
		}
		for j := p; j <= hMax; j += p {
			t.push(j, uint32(p))
			for rest[j]%uint32(p) == 0 {
				rest[j] /= uint32(p)
			}
		}
	}
	// what is left above 1 is a single prime larger than isqrt(hMax)
	for j := int64(2); j <= hMax; j++ {
		if rest[j] > 1 {
			t.push(j, rest[j])
		}
	}

	return t, nil
}

// maxDistinctFactors returns k-1 for the smallest k with p_1*...*p_k > hMax.
func maxDistinctFactors(hMax int64, primes []int64) (int, error) {
	product, k := int64(1), 0
	for product <= hMax {
		if k >= len(primes) {
			return 0, fmt.Errorf("%w: product of %d primes does not exceed %d", clgrperrors.ErrPrimeTableTooSmall, len(primes), hMax)
		}
		next, ok := nt.MulChecked(product, primes[k])
		k++
		if !ok {
			break
		}
		product = next
	}
	if k == 0 {
		return 0, nil
	}
	return k - 1, nil
}

func (t *Table) push(h int64, p uint32) {
	base := h * int64(t.stride)
	n := t.data[base]
	t.data[base+1+int64(n)] = p
	t.data[base] = n + 1
}

// Factors returns the distinct primes of h. The slice aliases the table and
// must not be modified.
func (t *Table) Factors(h int64) ([]uint32, error) {
	if h < 0 || h > t.bound {
		return nil, fmt.Errorf("%w: h=%d outside [0, %d]", clgrperrors.ErrTableUndersized, h, t.bound)
	}
	base := h * int64(t.stride)
	n := int64(t.data[base])
	return t.data[base+1 : base+1+n], nil
}

// Bound is the largest h the table covers.
func (t *Table) Bound() int64 { return t.bound }

// MaxFactors is the largest number of distinct primes any covered h can have.
func (t *Table) MaxFactors() int { return t.maxFactors }
