package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clgrpell/internal/oracle"
	"clgrpell/pkg/batch"
	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/metrics"
	"clgrpell/pkg/nt"
	"clgrpell/pkg/types"
)

type iFactorTable interface {
	Factors(h int64) ([]uint32, error)
}

// Record is one extended discriminant.
type Record struct {
	Dist    int64
	H       int64
	D       int64
	Kron    types.Kron
	HExt    int64
	DSub    int64
	InitPow int64
	Factors oracle.Structure
}

// Extender walks the lines of one shard, keeping the running discriminant.
type Extender struct {
	ell, m  int64
	ell2    int64
	ell4    int64
	d       int64
	table   iFactorTable
	oracle  oracle.Oracle
	scratch *oracle.Scratch
}

func NewExtender(p batch.Params, index types.ShardIndex, table iFactorTable, o oracle.Oracle, scratch *oracle.Scratch) *Extender {
	ell4, _ := nt.PowChecked(p.Ell, 4)
	return &Extender{
		ell:     p.Ell,
		m:       p.M,
		ell2:    p.Ell * p.Ell,
		ell4:    ell4,
		d:       p.Start(index),
		table:   table,
		oracle:  o,
		scratch: scratch,
	}
}

// D is the running discriminant magnitude.
func (x *Extender) D() int64 { return x.d }

// ParseLine reads the leading "dist h" of an input line. Lines with fewer
// fields, non-integer fields or a non-positive h are malformed.
func ParseLine(line string) (dist, h int64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, 0, false
	}
	dist, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	h, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return dist, h, true
}

// Step processes one input line. ok is false for a malformed line, which
// leaves the running discriminant unchanged.
func (x *Extender) Step(ctx context.Context, line string) (rec Record, ok bool, err error) {
	dist, h, ok := ParseLine(line)
	if !ok {
		return Record{}, false, nil
	}

	step, mulOK := nt.MulChecked(abs(dist), x.m)
	if !mulOK {
		return Record{}, true, fmt.Errorf("%w: dist %d overflows the running discriminant", clgrperrors.ErrInvalidArgument, dist)
	}
	if dist < 0 {
		step = -step
	}
	x.d += step

	rec = Record{Dist: dist, H: h, D: x.d}
	rec.Kron = types.Kron(nt.Kronecker(-x.d, x.ell))

	if err := x.scale(&rec); err != nil {
		return rec, true, err
	}
	if rec.InitPow, err = StripCyclic(x.table, rec.HExt); err != nil {
		return rec, true, err
	}

	start := time.Now()
	s, err := x.oracle.Structure(ctx, -rec.DSub, rec.InitPow, rec.HExt, x.scratch)
	metrics.ObserveOracle(time.Since(start))
	if err != nil {
		return rec, true, fmt.Errorf("D = %d: %w", rec.D, err)
	}
	rec.Factors = s
	rec.Factors[0] *= rec.InitPow

	return rec, true, nil
}

// scale derives the class number and discriminant of the order of
// conductor ell from the splitting type.
func (x *Extender) scale(rec *Record) error {
	var mult, dmult int64
	switch rec.Kron {
	case types.Ramified:
		mult, dmult = x.ell, x.ell2
	case types.Inert:
		mult, dmult = x.ell*(x.ell+1), x.ell4
	default:
		mult, dmult = x.ell*(x.ell-1), x.ell4
	}

	var ok1, ok2 bool
	rec.HExt, ok1 = nt.MulChecked(rec.H, mult)
	rec.DSub, ok2 = nt.MulChecked(rec.D, dmult)
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: D = %d, h = %d overflow after extension", clgrperrors.ErrInvalidArgument, rec.D, rec.H)
	}
	return nil
}

// StripCyclic returns the product of the primes dividing h exactly once.
// Their Sylow subgroups are cyclic, so they only scale the largest factor.
func StripCyclic(table iFactorTable, h int64) (int64, error) {
	primes, err := table.Factors(h)
	if err != nil {
		return 0, err
	}
	initPow, rest := int64(1), h
	for _, p := range primes {
		rest /= int64(p)
		if rest%int64(p) != 0 {
			initPow *= int64(p)
		}
	}
	return initPow, nil
}

// Format renders rec as "dist<TAB>kron<TAB>f1 f2 ... fk".
func Format(rec Record) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(rec.Dist, 10))
	b.WriteByte('\t')
	b.WriteString(strconv.Itoa(int(rec.Kron)))
	b.WriteByte('\t')
	for i, f := range rec.Factors {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatInt(f, 10))
	}
	return b.String()
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
