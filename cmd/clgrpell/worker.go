package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"clgrpell/internal/dispatch"
	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/cluster"
	"clgrpell/pkg/rpc"
)

var (
	coordinatorURL string

	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "Join a coordinator and process the shards it assigns",
		Args:  cobra.NoArgs,
		RunE:  runWorker,
	}
)

func init() {
	workerCmd.Flags().StringVar(&coordinatorURL, "coordinator", "", "coordinator URL")
	workerCmd.Flags().StringSliceVar(&zkServers, "zk", nil, "ZooKeeper servers host:port,... to discover the coordinator")
}

func runWorker(cmd *cobra.Command, _ []string) error {
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

	url := coordinatorURL
	var dir *cluster.Directory
	if url == "" {
		if len(cfg.ZooKeeper.Servers) == 0 {
			return fmt.Errorf("%w: need --coordinator or --zk", clgrperrors.ErrInvalidArgument)
		}
		dir, err = cluster.NewDirectory(cfg.ZooKeeper.Servers, cfg.ZooKeeper.Root, cfg.ZooKeeper.SessionTimeout, nil)
		if err != nil {
			return err
		}
		defer dir.Close()

		info, err := dir.Coordinator(ctx)
		if err != nil {
			return err
		}
		url = info.URL
	}

	client := rpc.NewClient(url)
	id, job, err := client.Register(ctx)
	if err != nil {
		return err
	}
	if err := job.Params.Validate(); err != nil {
		return err
	}
	logger := slog.Default().With("run", job.RunID)
	logger.Info("joined coordinator", "url", client.URL(), "worker", id, "files", job.Params.Files)

	if dir != nil {
		host, _ := os.Hostname()
		if err := dir.RegisterWorker(ctx, id, host); err != nil {
			logger.Warn("zookeeper registration failed", "error", err)
		}
	}

	return dispatch.NewWorker(id, client, newFactory(job.Params, &cfg), logger).Run(ctx)
}
