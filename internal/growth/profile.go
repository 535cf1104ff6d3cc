// Package growth compares base class groups with their ℓ-extensions and
// counts discriminants where a ℤ/ℓ^N factor grows to ℤ/ℓ^(N+1).
package growth

import (
	"sort"
	"strconv"
	"strings"

	"clgrpell/pkg/types"
)

type Mode string

const (
	// ModeStrict: an ℓ^N factor disappears and an ℓ^(N+1) factor appears.
	ModeStrict Mode = "strict"
	// ModeAny: the base has ℓ^N and the extension has ℓ^(N+1).
	ModeAny Mode = "any"
	// ModeNet: the number of ℓ^(N+1) factors increases.
	ModeNet Mode = "net"
)

// ParseMode falls back to ModeStrict for unknown names; ok reports whether
// s was recognized.
func ParseMode(s string) (m Mode, ok bool) {
	switch Mode(s) {
	case ModeStrict, ModeAny, ModeNet:
		return Mode(s), true
	default:
		return ModeStrict, false
	}
}

// Valuation is the largest k with ell^k | n; 0 for n == 0.
func Valuation(n, ell uint64) int {
	if n == 0 || ell < 2 {
		return 0
	}
	k := 0
	for n%ell == 0 {
		n /= ell
		k++
	}
	return k
}

// Profile holds the positive ℓ-adic valuations of a group's invariant
// factors in descending order, e.g. [2 1] for ℤ/ℓ² × ℤ/ℓ.
type Profile []int

func ProfileOf(invariants []uint64, ell uint64) Profile {
	p := Profile{}
	for _, c := range invariants {
		if v := Valuation(c, ell); v > 0 {
			p = append(p, v)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(p)))
	return p
}

// Count returns how many factors have valuation exactly n.
func (p Profile) Count(n int) int {
	c := 0
	for _, v := range p {
		if v == n {
			c++
		}
	}
	return c
}

func (p Profile) Max() int {
	if len(p) == 0 {
		return 0
	}
	return p[0]
}

// Compare reports whether base carries a ℤ/ℓ^n factor and, if so, whether
// ext shows growth to ℓ^(n+1) under mode.
func Compare(base, ext Profile, n int, mode Mode) (hasFactor, growth bool) {
	baseN := base.Count(n)
	if baseN == 0 {
		return false, false
	}
	baseN1, extN, extN1 := base.Count(n+1), ext.Count(n), ext.Count(n+1)

	switch mode {
	case ModeAny:
		return true, extN1 > 0
	case ModeNet:
		return true, extN1 > baseN1
	default:
		return true, extN1 > baseN1 && extN < baseN
	}
}

// parseBase reads "dist h c1 ... ct".
func parseBase(line string) (dist int64, invariants []uint64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, nil, false
	}
	dist, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, nil, false
	}
	if _, err := strconv.ParseUint(fields[1], 10, 64); err != nil {
		return 0, nil, false
	}
	return dist, parseInvariants(fields[2:]), true
}

// parseExt reads "dist kron c1 ... ck".
func parseExt(line string) (dist int64, kron types.Kron, invariants []uint64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, 0, nil, false
	}
	dist, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, nil, false
	}
	k, err := strconv.ParseInt(fields[1], 10, 8)
	if err != nil {
		return 0, 0, nil, false
	}
	return dist, types.Kron(k), parseInvariants(fields[2:]), true
}

// parseInvariants skips tokens that are not unsigned integers.
func parseInvariants(fields []string) []uint64 {
	out := make([]uint64, 0, len(fields))
	for _, f := range fields {
		if c, err := strconv.ParseUint(f, 10, 64); err == nil {
			out = append(out, c)
		}
	}
	return out
}
