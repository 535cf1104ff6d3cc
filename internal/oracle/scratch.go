package oracle

import (
	"github.com/zhangyunhao116/skipmap"

	"clgrpell/pkg/nt"
	"clgrpell/pkg/qform"
)

type formTable = skipmap.FuncMap[qform.Key, int]

// Scratch is the working memory of one Structure call. It is reused across
// the lines of a shard and must not be shared between goroutines.
type Scratch struct {
	// r holds the subgroup enumerated so far, keyed to its index in elems
	r *formTable
	// q receives the cosets of one extension step before they join r
	q     *formTable
	elems []qform.Form
	order []int8

	primes []int64
}

// NewScratch preallocates room for size subgroup elements.
func NewScratch(size int) *Scratch {
	if size < 1 {
		size = 1
	}
	s := &Scratch{
		elems: make([]qform.Form, 0, size),
		order: make([]int8, 0, size),
	}
	s.reset()
	return s
}

// ScratchSize sizes the element list for class numbers up to bound: the
// first prime at or above 2*isqrt(bound)-1.
func ScratchSize(bound int64) int {
	n := 2*nt.Isqrt(bound) - 1
	if n < 2 {
		n = 2
	}
	return int(nt.NextPrime(n))
}

func newFormTable() *formTable {
	return skipmap.NewFunc[qform.Key, int](qform.Less)
}

func (s *Scratch) reset() {
	s.r = newFormTable()
	s.q = newFormTable()
	s.elems = s.elems[:0]
	s.order = s.order[:0]
}

func (s *Scratch) add(f qform.Form) {
	s.r.Store(f.Key(), len(s.elems))
	s.elems = append(s.elems, f)
	s.order = append(s.order, -1)
}

func (s *Scratch) contains(f qform.Form) bool {
	_, ok := s.r.Load(f.Key())
	return ok
}

func (s *Scratch) index(f qform.Form) (int, bool) {
	return s.r.Load(f.Key())
}

// generators returns the primes up to bound, extending the cached sieve.
func (s *Scratch) generators(bound int64) []int64 {
	if n := len(s.primes); n == 0 || s.primes[n-1] < bound {
		s.primes = nt.Primes(bound)
	}
	end := len(s.primes)
	for end > 0 && s.primes[end-1] > bound {
		end--
	}
	return s.primes[:end]
}

// Len is the size of the subgroup currently enumerated.
func (s *Scratch) Len() int { return len(s.elems) }
