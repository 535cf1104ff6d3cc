package batch

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clgrpell/pkg/clgrperrors"
)

func scenarioParams(folder string) Params {
	return Params{DMax: 64, Files: 2, A: 7, M: 8, Ell: 3, Folder: folder}
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, scenarioParams("/data").Validate())

	cases := map[string]func(p *Params){
		"non-positive D_max": func(p *Params) { p.DMax = 0 },
		"no files":           func(p *Params) { p.Files = 0 },
		"zero modulus":       func(p *Params) { p.M = 0 },
		"negative a":         func(p *Params) { p.A = -1 },
		"a not below m":      func(p *Params) { p.A = 8 },
		"composite ell":      func(p *Params) { p.Ell = 9 },
		"ell one":            func(p *Params) { p.Ell = 1 },
		"empty folder":       func(p *Params) { p.Folder = "" },
		"uneven split":       func(p *Params) { p.Files = 3 },
		"overflow":           func(p *Params) { p.DMax = math.MaxInt64 / 16 * 16; p.Files = 1; p.M = 16; p.A = 7 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := scenarioParams("/data")
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), clgrperrors.ErrInvalidArgument)
		})
	}
}

func TestParamsLayout(t *testing.T) {
	p := scenarioParams("/data")

	assert.Equal(t, int64(4), p.DTotal())
	assert.Equal(t, int64(7), p.Start(0))
	assert.Equal(t, int64(39), p.Start(1))
	assert.Equal(t, int64(71), p.ShardMax(1))

	assert.Equal(t, filepath.Join("/data", "cl7mod8"), p.InputDir())
	assert.Equal(t, filepath.Join("/data", "cl7mod8", "cl7mod8.1.gz"), p.InputPath(1))
	assert.Equal(t, filepath.Join("/data", "cl7mod8l3"), p.OutputDir())
	assert.Equal(t, filepath.Join("/data", "cl7mod8l3", "cl7mod8l3.0.gz"), p.OutputPath(0))
}

func TestTableBound(t *testing.T) {
	p := scenarioParams("/data")
	// Ramaré's bound at 64 is 8, times ell(ell+1) = 12.
	assert.Equal(t, int64(96), TableBound(p))
	assert.Positive(t, ScratchBound(p, 0))
	assert.LessOrEqual(t, ScratchBound(p, 0), ScratchBound(p, 1))
}
