package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"clgrpell/internal/dispatch"
	coordhttp "clgrpell/internal/http"
	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/cluster"
	"clgrpell/pkg/config"
	"clgrpell/pkg/rpc"
)

const stopGrace = 5 * time.Second

var (
	workers   int
	listen    string
	advertise string
	zkServers []string

	coordinatorCmd = &cobra.Command{
		Use:   "coordinator D_max files a m ell folder",
		Short: "Serve shard indices to remote workers over HTTP",
		Args:  cobra.ExactArgs(6),
		RunE:  runCoordinator,
	}
)

func init() {
	coordinatorCmd.Flags().IntVar(&workers, "workers", 1, "number of remote workers to wait for")
	coordinatorCmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides coordinator.listen)")
	coordinatorCmd.Flags().StringVar(&advertise, "advertise", "", "URL workers use to reach this coordinator")
	coordinatorCmd.Flags().StringSliceVar(&zkServers, "zk", nil, "ZooKeeper servers host:port,... to publish the coordinator in")
}

// applyFlags lets command line flags override the config file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Coordinator.Listen = listen
	}
	if flags.Changed("advertise") {
		cfg.Coordinator.Advertise = advertise
	}
	if flags.Changed("zk") {
		cfg.ZooKeeper.Servers = zkServers
	}
	return cfg.Validate()
}

func runCoordinator(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

	cfg, err := initConfig(configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}
	initLogger(&cfg)

	params, err := parseParams(args)
	if err != nil {
		return err
	}
	if workers < 1 {
		return fmt.Errorf("%w: --workers %d", clgrperrors.ErrTooFewProcesses, workers)
	}
	printBanner(cmd, params)

	runID := uuid.NewString()
	logger := slog.Default().With("run", runID)
	hub := dispatch.NewHub(workers)
	coord := dispatch.NewCoordinator(params, hub, logger)
	if err := coord.Verify(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "All %d input files verified.\n", params.Files)

	server := coordhttp.NewServer(hub, coord.Ledger(), rpc.Job{RunID: runID, Params: params}, coordhttp.Options{
		Listen:      cfg.Coordinator.Listen,
		Advertise:   cfg.Coordinator.Advertise,
		PollTimeout: cfg.Coordinator.PollTimeout,
	}, logger)
	if err := server.Start(); err != nil {
		return err
	}
	defer func() {
		if err := server.Stop(); err != nil {
			logger.Warn("Error stopping server", "error", err)
		}
	}()

	var dir *cluster.Directory
	if len(cfg.ZooKeeper.Servers) > 0 {
		dir, err = cluster.NewDirectory(cfg.ZooKeeper.Servers, cfg.ZooKeeper.Root, cfg.ZooKeeper.SessionTimeout, logger)
		if err != nil {
			return err
		}
		defer dir.Close()
		if err := dir.PublishCoordinator(ctx, cluster.CoordinatorInfo{RunID: runID, URL: server.URL}); err != nil {
			return err
		}
	}

	summary, err := coord.Run(ctx)
	if err != nil {
		return err
	}

	// workers still have to collect their stop sentinel
	select {
	case <-server.Done():
	case <-ctx.Done():
	case <-time.After(2*cfg.Coordinator.PollTimeout + stopGrace):
		logger.Warn("not every worker collected its stop signal")
	}

	if dir != nil {
		if ids, err := dir.Workers(); err == nil {
			logger.Info("workers registered in zookeeper", "ids", ids)
		}
	}
	printSummary(cmd, summary)
	return nil
}
