// Package batch describes one run: the residue class, the shard layout on
// disk and the bounds derived from them.
package batch

import (
	"fmt"
	"math"
	"path/filepath"

	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/nt"
	"clgrpell/pkg/types"
)

// Params are the run parameters shared by the coordinator and every worker.
type Params struct {
	DMax   int64  `json:"d_max"`
	Files  int    `json:"files"`
	A      int64  `json:"a"`
	M      int64  `json:"m"`
	Ell    int64  `json:"ell"`
	Folder string `json:"folder"`
}

// Validate rejects parameters no shard can be processed with.
func (p Params) Validate() error {
	switch {
	case p.DMax <= 0:
		return fmt.Errorf("%w: D_max must be positive, got %d", clgrperrors.ErrInvalidArgument, p.DMax)
	case p.Files <= 0:
		return fmt.Errorf("%w: files must be positive, got %d", clgrperrors.ErrInvalidArgument, p.Files)
	case p.M <= 0:
		return fmt.Errorf("%w: m must be positive, got %d", clgrperrors.ErrInvalidArgument, p.M)
	case p.A < 0 || p.A >= p.M:
		return fmt.Errorf("%w: a must lie in [0, %d), got %d", clgrperrors.ErrInvalidArgument, p.M, p.A)
	case !nt.IsPrime(p.Ell):
		return fmt.Errorf("%w: ell must be prime, got %d", clgrperrors.ErrInvalidArgument, p.Ell)
	case p.Folder == "":
		return fmt.Errorf("%w: folder is empty", clgrperrors.ErrInvalidArgument)
	}

	span, ok := nt.MulChecked(int64(p.Files), p.M)
	if !ok || p.DMax%span != 0 {
		return fmt.Errorf("%w: files*m = %d*%d must divide D_max = %d", clgrperrors.ErrInvalidArgument, p.Files, p.M, p.DMax)
	}
	ell4, ok := nt.PowChecked(p.Ell, 4)
	if !ok {
		return fmt.Errorf("%w: ell^4 overflows for ell = %d", clgrperrors.ErrInvalidArgument, p.Ell)
	}
	if _, ok := nt.MulChecked(p.DMax+p.A, ell4); !ok {
		return fmt.Errorf("%w: D_max*ell^4 overflows 64 bits", clgrperrors.ErrInvalidArgument)
	}
	if TableBound(p) > math.MaxUint32 {
		return fmt.Errorf("%w: class number bound %d exceeds the factor table range", clgrperrors.ErrInvalidArgument, TableBound(p))
	}
	return nil
}

// DTotal is the number of discriminants of the residue class per shard.
func (p Params) DTotal() int64 {
	return p.DMax / (int64(p.Files) * p.M)
}

// Start is the running discriminant before the first line of shard index.
func (p Params) Start(index types.ShardIndex) int64 {
	return int64(index)*p.DTotal()*p.M + p.A
}

// ShardMax bounds every discriminant of shard index.
func (p Params) ShardMax(index types.ShardIndex) int64 {
	return p.Start(index + 1)
}

func (p Params) baseName() string {
	return fmt.Sprintf("cl%dmod%d", p.A, p.M)
}

func (p Params) extName() string {
	return fmt.Sprintf("cl%dmod%dl%d", p.A, p.M, p.Ell)
}

func (p Params) InputDir() string {
	return filepath.Join(p.Folder, p.baseName())
}

func (p Params) InputPath(index types.ShardIndex) string {
	return filepath.Join(p.InputDir(), fmt.Sprintf("%s.%d.gz", p.baseName(), index))
}

func (p Params) OutputDir() string {
	return filepath.Join(p.Folder, p.extName())
}

func (p Params) OutputPath(index types.ShardIndex) string {
	return filepath.Join(p.OutputDir(), fmt.Sprintf("%s.%d.gz", p.extName(), index))
}

// TableBound is the largest extended class number a worker can meet:
// the class number bound at D_max times the inert factor ell(ell+1).
func TableBound(p Params) int64 {
	b, ok := nt.MulChecked(nt.ClassNumberBound(p.DMax), p.Ell*(p.Ell+1))
	if !ok {
		return math.MaxInt64
	}
	return b
}

// ScratchBound bounds the class numbers the oracle meets in shard index.
func ScratchBound(p Params, index types.ShardIndex) int64 {
	ell4, _ := nt.PowChecked(p.Ell, 4)
	d, ok := nt.MulChecked(p.ShardMax(index), ell4)
	if !ok {
		d = math.MaxInt64
	}
	return nt.ClassNumberBound(d)
}
