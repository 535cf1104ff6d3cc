package nt

import (
	"math"
	"math/bits"
)

// ClassNumberBound is Ramaré's explicit upper bound on the class number of an
// imaginary quadratic field of discriminant -absD:
//
//	h <= (1/pi) sqrt(|D|) (log(|D|)/2 + 2.5 - log 6)
func ClassNumberBound(absD int64) int64 {
	if absD < 3 {
		return 1
	}
	d := float64(absD)
	return int64((1/math.Pi)*math.Sqrt(d)*(0.5*math.Log(d)+2.5-math.Log(6))) + 1
}

// Isqrt returns floor(sqrt(n)) for n >= 0.
func Isqrt(n int64) int64 {
	if n < 2 {
		return n
	}
	r := int64(math.Sqrt(float64(n)))
	for {
		sq, ok := MulChecked(r, r)
		if ok && sq <= n {
			break
		}
		r--
	}
	for {
		sq, ok := MulChecked(r+1, r+1)
		if !ok || sq > n {
			return r
		}
		r++
	}
}

// MulChecked returns a*b for non-negative operands and reports whether the
// product fits in an int64.
func MulChecked(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

// PowChecked returns base^exp and whether it fits in an int64.
func PowChecked(base int64, exp int) (int64, bool) {
	result := int64(1)
	for i := 0; i < exp; i++ {
		var ok bool
		if result, ok = MulChecked(result, base); !ok {
			return 0, false
		}
	}
	return result, true
}
