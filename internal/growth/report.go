package growth

import (
	"fmt"
	"io"
	"strings"

	"clgrpell/pkg/types"
)

var krons = []types.Kron{types.Inert, types.Ramified, types.Split}

// WriteHeader prints the analysis banner.
func WriteHeader(w io.Writer, a *Analyzer) {
	fmt.Fprintln(w, "ℓ-adic growth analysis")
	fmt.Fprintln(w, "======================")
	fmt.Fprintf(w, "folder: %s\n", a.Folder)
	fmt.Fprintf(w, "ℓ=%d\n", a.Ell)
	fmt.Fprintf(w, "D_max=%d, files=%d\n", a.DMax, a.Files)
	fmt.Fprintf(w, "Target: all N where ℤ/%d^N ℤ → ℤ/%d^(N+1)ℤ growth\n", a.Ell, a.Ell)
	fmt.Fprintf(w, "Detection mode: %s\n\n", a.Mode)
}

// WriteEvent prints one growing discriminant.
func WriteEvent(w io.Writer, e Event) {
	fmt.Fprintf(w, "D=%d: N=%d, kron=%d, fund_profile=%v, ell_profile=%v\n", e.D, e.N, e.Kron, e.Base, e.Ext)
}

// WriteReport prints the per-class results, the grand total and the
// summary table.
func WriteReport(w io.Writer, ell int64, classes []ClassResult, total Results) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Results by congruence class")
	fmt.Fprintln(w, "===========================")
	for _, cr := range classes {
		r := cr.Results
		fmt.Fprintf(w, "\n%s:\n", cr.Class)
		fmt.Fprintf(w, "  Total discriminants: %d\n", r.Total)
		for _, n := range r.Ns() {
			c := r.ByN[n]
			fmt.Fprintf(w, "  N=%d: with ℓ^%d factor: %d, with growth to ℓ^%d: %d (%.2f%%)\n",
				n, n, c.WithFactor, n+1, c.WithGrowth, c.Rate())
			writeKrons(w, "      ", r, n)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Grand Total (all congruence classes)")
	fmt.Fprintln(w, "====================================")
	fmt.Fprintf(w, "Total discriminants: %d\n\n", total.Total)

	ns := total.Ns()
	fmt.Fprintln(w, "Summary table:")
	fmt.Fprintf(w, "%4s %12s %12s %10s\n", "N", "with_factor", "with_growth", "rate")
	fmt.Fprintln(w, strings.Repeat("-", 42))
	for _, n := range ns {
		c := total.ByN[n]
		fmt.Fprintf(w, "%4d %12d %12d %9.4f%%\n", n, c.WithFactor, c.WithGrowth, c.Rate())
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Detailed breakdown by N and Kronecker symbol:")
	for _, n := range ns {
		c := total.ByN[n]
		fmt.Fprintf(w, "\nN=%d: ℤ/%d^%dℤ → ℤ/%d^%dℤ\n", n, ell, n, ell, n+1)
		fmt.Fprintf(w, "  Total: with_factor=%d, with_growth=%d (%.4f%%)\n", c.WithFactor, c.WithGrowth, c.Rate())
		writeKrons(w, "  ", total, n)
	}
}

func writeKrons(w io.Writer, indent string, r Results, n int) {
	for _, k := range krons {
		c, ok := r.ByKron[KronKey{n, k}]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%skron=%2d (%s): factor=%d, growth=%d (%.2f%%)\n",
			indent, k, k, c.WithFactor, c.WithGrowth, c.Rate())
	}
}
