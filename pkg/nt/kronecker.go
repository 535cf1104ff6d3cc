// Package nt holds the small number-theory helpers shared by the factor table,
// the quadratic-form arithmetic and the extension engine.
package nt

// tab2 is (a/2) indexed by a mod 8.
var tab2 = [8]int{0, 1, 0, -1, 0, -1, 0, 1}

// Kronecker returns the Kronecker symbol (a/b), one of -1, 0, 1.
func Kronecker(a, b int64) int {
	if b == 0 {
		if a == 1 || a == -1 {
			return 1
		}
		return 0
	}
	if a&1 == 0 && b&1 == 0 {
		return 0
	}

	v := 0
	for b&1 == 0 {
		v++
		b >>= 1
	}
	k := 1
	if v&1 == 1 {
		k = tab2[a&7]
	}
	if b < 0 {
		b = -b
		if a < 0 {
			k = -k
		}
	}

	// b is odd and positive from here on.
	for {
		if a == 0 {
			if b > 1 {
				return 0
			}
			return k
		}
		v = 0
		for a&1 == 0 {
			v++
			a >>= 1
		}
		if v&1 == 1 {
			k *= tab2[b&7]
		}
		if a&b&2 != 0 {
			k = -k
		}
		r := a
		if r < 0 {
			r = -r
		}
		a = b % r
		b = r
	}
}
