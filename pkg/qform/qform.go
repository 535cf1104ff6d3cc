// Package qform implements the class group of primitive positive definite
// binary quadratic forms of a fixed negative discriminant.
//
// Reduced forms always fit in int64 when the discriminant does; composition
// and reduction run on math/big temporaries owned by the Group, so a Group
// must not be shared between goroutines.
package qform

import (
	"fmt"
	"math/big"

	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/nt"
)

// Form is the binary quadratic form ax^2 + bxy + cy^2.
type Form struct {
	A, B, C int64
}

// Key identifies a reduced form; C follows from A, B and the discriminant.
type Key struct {
	A, B int64
}

func (f Form) Key() Key { return Key{A: f.A, B: f.B} }

func (f Form) String() string { return fmt.Sprintf("(%d, %d, %d)", f.A, f.B, f.C) }

// Less orders keys; used by the sorted scratch tables.
func Less(x, y Key) bool {
	if x.A != y.A {
		return x.A < y.A
	}
	return x.B < y.B
}

// Group performs arithmetic in the form class group of one discriminant.
type Group struct {
	disc     int64
	identity Form

	d big.Int
	// composition temporaries
	a1, b1, c1, a2, b2, c2 big.Int
	s, n, u, dd, d1        big.Int
	x2, y1, y2, v1, v2, r  big.Int
	a3, b3, c3, t          big.Int
}

// NewGroup returns the group for disc, which must be negative and 0 or 1 mod 4.
func NewGroup(disc int64) (*Group, error) {
	if disc >= 0 || (disc&3 != 0 && disc&3 != 1) {
		return nil, fmt.Errorf("%w: discriminant %d", clgrperrors.ErrInvalidArgument, disc)
	}
	g := &Group{disc: disc}
	g.d.SetInt64(disc)

	b := disc & 1
	g.identity = Form{A: 1, B: b, C: (b - disc) / 4}
	return g, nil
}

func (g *Group) Discriminant() int64 { return g.disc }

func (g *Group) Identity() Form { return g.identity }

// IsIdentity reports whether the reduced form f is the principal form.
func (g *Group) IsIdentity(f Form) bool { return f.A == 1 }

// Inverse returns the reduced inverse of the reduced form f.
func (g *Group) Inverse(f Form) Form {
	if f.B == f.A || f.A == f.C || f.B == 0 {
		return f
	}
	return Form{A: f.A, B: -f.B, C: f.C}
}

// Reduce returns the unique reduced form equivalent to f.
func (g *Group) Reduce(f Form) Form {
	g.a3.SetInt64(f.A)
	g.b3.SetInt64(f.B)
	g.c3.SetInt64(f.C)
	return g.reduce()
}

// reduce reduces (a3, b3, c3) in place and returns it as a Form.
func (g *Group) reduce() Form {
	a, b, c := &g.a3, &g.b3, &g.c3
	for {
		if !g.normal() {
			// b = 2aq + r with 0 <= r < 2a, moved into (-a, a]
			g.t.Lsh(a, 1)
			q, r := new(big.Int), new(big.Int)
			q.DivMod(b, &g.t, r)
			if r.Cmp(a) > 0 {
				r.Sub(r, &g.t)
				q.Add(q, big.NewInt(1))
			}
			// c -= q (b + r) / 2
			g.t.Add(b, r)
			g.t.Mul(&g.t, q)
			g.t.Rsh(&g.t, 1)
			c.Sub(c, &g.t)
			b.Set(r)
		}
		switch cmp := a.Cmp(c); {
		case cmp > 0:
			b.Neg(b)
			g.t.Set(a)
			a.Set(c)
			c.Set(&g.t)
			continue
		case cmp == 0 && b.Sign() < 0:
			b.Neg(b)
		}
		return Form{A: a.Int64(), B: b.Int64(), C: c.Int64()}
	}
}

// normal reports -a < b <= a for (a3, b3).
func (g *Group) normal() bool {
	if g.b3.Cmp(&g.a3) > 0 {
		return false
	}
	g.t.Neg(&g.a3)
	return g.b3.Cmp(&g.t) > 0
}

// Compose returns the reduced product of the reduced forms f1 and f2
// (Cohen, A Course in Computational Algebraic Number Theory, 5.4.7).
func (g *Group) Compose(f1, f2 Form) Form {
	if f1.A > f2.A {
		f1, f2 = f2, f1
	}
	g.a1.SetInt64(f1.A)
	g.b1.SetInt64(f1.B)
	g.c1.SetInt64(f1.C)
	g.a2.SetInt64(f2.A)
	g.b2.SetInt64(f2.B)
	g.c2.SetInt64(f2.C)

	// s = (b1 + b2) / 2, n = b2 - s
	g.s.Add(&g.b1, &g.b2)
	g.s.Rsh(&g.s, 1)
	g.n.Sub(&g.b2, &g.s)

	// first Euclidean step
	if g.t.Rem(&g.a2, &g.a1).Sign() == 0 {
		g.y1.SetInt64(0)
		g.dd.Set(&g.a1)
	} else {
		g.dd.GCD(&g.u, nil, &g.a2, &g.a1)
		g.y1.Set(&g.u)
	}

	// second Euclidean step
	if g.t.Rem(&g.s, &g.dd).Sign() == 0 {
		g.y2.SetInt64(-1)
		g.x2.SetInt64(0)
		g.d1.Set(&g.dd)
	} else {
		g.d1.GCD(&g.x2, &g.y2, &g.s, &g.dd)
		g.y2.Neg(&g.y2)
	}

	// v1 = a1/d1, v2 = a2/d1, r = (y1 y2 n - x2 c2) mod v1
	g.v1.Quo(&g.a1, &g.d1)
	g.v2.Quo(&g.a2, &g.d1)
	g.r.Mul(&g.y1, &g.y2)
	g.r.Mul(&g.r, &g.n)
	g.t.Mul(&g.x2, &g.c2)
	g.r.Sub(&g.r, &g.t)
	g.r.Mod(&g.r, &g.v1)

	// b3 = b2 + 2 v2 r, a3 = v1 v2, c3 = (b3^2 - D) / 4a3
	g.b3.Mul(&g.v2, &g.r)
	g.b3.Lsh(&g.b3, 1)
	g.b3.Add(&g.b3, &g.b2)
	g.a3.Mul(&g.v1, &g.v2)
	g.c3.Mul(&g.b3, &g.b3)
	g.c3.Sub(&g.c3, &g.d)
	g.t.Lsh(&g.a3, 2)
	g.c3.Quo(&g.c3, &g.t)

	return g.reduce()
}

func (g *Group) Square(f Form) Form { return g.Compose(f, f) }

// Pow returns f^e for e >= 0.
func (g *Group) Pow(f Form, e int64) Form {
	result := g.identity
	base := f
	for e > 0 {
		if e&1 == 1 {
			result = g.Compose(result, base)
		}
		e >>= 1
		if e > 0 {
			base = g.Square(base)
		}
	}
	return result
}

// PrimeForm returns the reduced primitive form of norm p for a prime p that
// splits or ramifies in the order, and false when no invertible one exists.
func (g *Group) PrimeForm(p int64) (Form, bool) {
	k := nt.Kronecker(g.disc, p)
	if k < 0 {
		return Form{}, false
	}

	var b int64
	switch {
	case p == 2 && k == 1:
		b = 1
	case p == 2:
		if g.disc&7 == 0 {
			b = 0
		} else {
			b = 2
		}
	case k == 0:
		b = (g.disc & 1) * p
	default:
		dm := new(big.Int).Mod(&g.d, big.NewInt(p))
		root := new(big.Int).ModSqrt(dm, big.NewInt(p))
		if root == nil {
			return Form{}, false
		}
		b = root.Int64()
		if b&1 != g.disc&1 {
			b = p - b
		}
	}

	// c = (b^2 - D) / 4p
	bb := big.NewInt(b)
	num := new(big.Int).Mul(bb, bb)
	num.Sub(num, &g.d)
	den := big.NewInt(4 * p)
	c, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() != 0 || !c.IsInt64() {
		return Form{}, false
	}

	f := Form{A: p, B: b, C: c.Int64()}
	if gcd3(f.A, f.B, f.C) != 1 {
		return Form{}, false
	}
	return g.Reduce(f), true
}

func gcd3(a, b, c int64) int64 {
	return gcd(gcd(a, b), c)
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
