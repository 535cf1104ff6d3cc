package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clgrpell/internal/dispatch"
)

const usageArgs = `Arguments:
  D_max   maximum |discriminant|
  files   number of input files (files*m must divide D_max)
  a       congruence class (|D| = a mod m)
  m       modulus (8 or 16)
  ell     prime for the Kronecker symbol and the order extension
  folder  base folder containing the cl<a>mod<m>/ directories
`

var (
	configPath string
	procs      int

	rootCmd = &cobra.Command{
		Use:   "clgrpell D_max files a m ell folder",
		Short: "Extend tabulated class groups of imaginary quadratic fields by a prime conductor",
		Long: `clgrpell reads class numbers of fundamental discriminants -D from
gzip shards and writes the class group structure of the order of conductor
ell in each field, one output shard per input shard.`,
		Args: cobra.ExactArgs(6),
		RunE: runLocal,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	rootCmd.Flags().IntVarP(&procs, "procs", "n", 2, "number of processes including the coordinator")
	rootCmd.SetUsageTemplate(rootCmd.UsageTemplate() + "\n" + usageArgs)

	rootCmd.AddCommand(coordinatorCmd, workerCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// runLocal runs the coordinator and procs-1 workers in this process.
func runLocal(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := initConfig(configPath)
	if err != nil {
		return err
	}
	initLogger(&cfg)

	params, err := parseParams(args)
	if err != nil {
		return err
	}
	printBanner(cmd, params)

	summary, err := dispatch.RunInProcess(cmd.Context(), params, procs, newFactory(params, &cfg), nil)
	if err != nil {
		return err
	}
	printSummary(cmd, summary)
	return nil
}
