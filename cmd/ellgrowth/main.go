package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clgrpell/internal/growth"
	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/types"
)

var (
	ell     int64
	dMax    int64
	files   int
	verbose bool
	mode    string

	rootCmd = &cobra.Command{
		Use:   "ellgrowth folder",
		Short: "Count discriminants with ℓ-adic growth in class groups",
		Long: `ellgrowth reads the base shards cl<a>mod<m>/ and the ℓ shards
cl<a>mod<m>l<ell>/ of every fundamental congruence class and counts the
discriminants where a ℤ/ℓ^N factor grows to ℤ/ℓ^(N+1).`,
		Args: cobra.ExactArgs(1),
		RunE: run,
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.Int64VarP(&ell, "ell", "e", 0, "prime ℓ for the growth analysis")
	flags.Int64VarP(&dMax, "d-max", "D", 0, "maximum |discriminant|")
	flags.IntVarP(&files, "files", "f", 0, "number of files per class")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print every growing discriminant")
	flags.StringVar(&mode, "mode", string(growth.ModeStrict), "growth detection mode: strict, any or net")
	_ = rootCmd.MarkFlagRequired("ell")
	_ = rootCmd.MarkFlagRequired("d-max")
	_ = rootCmd.MarkFlagRequired("files")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if ell < 2 || dMax <= 0 || files <= 0 {
		return fmt.Errorf("%w: ell=%d, D_max=%d, files=%d", clgrperrors.ErrInvalidArgument, ell, dMax, files)
	}
	cmd.SilenceUsage = true

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	m, ok := growth.ParseMode(mode)
	if !ok {
		fmt.Fprintf(errOut, "unknown mode %q, using %s\n", mode, m)
	}

	a := &growth.Analyzer{
		Folder: args[0],
		Ell:    ell,
		DMax:   dMax,
		Files:  files,
		Mode:   m,
		OnError: func(c growth.Class, index types.ShardIndex, err error) {
			fmt.Fprintf(errOut, "Error processing file %d for %dmod%d: %v\n", index, c.A, c.M, err)
		},
		Logger: slog.New(slog.NewTextHandler(errOut, nil)),
	}
	if verbose {
		a.OnGrowth = func(e growth.Event) { growth.WriteEvent(out, e) }
	}

	growth.WriteHeader(out, a)
	classes, total, err := a.Run(cmd.Context())
	if err != nil {
		return err
	}
	growth.WriteReport(out, ell, classes, total)
	return nil
}
