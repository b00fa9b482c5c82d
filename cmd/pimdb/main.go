// Command pimdb maintains a local relational copy of the IMDb dataset
// exports: download the dataset files, transfer them into staging tables,
// build the normalized schema, and run ad-hoc queries against the result.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pimdb/internal/config"
	"pimdb/internal/download"
	"pimdb/internal/metrics"
	"pimdb/internal/metrics/prompush"
	"pimdb/internal/pipeline"
	"pimdb/internal/storage"
	_ "pimdb/internal/storage/all"
)

func main() {
	log.SetFlags(log.LstdFlags)
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config.Config{}
	var metricsGateway string

	root := &cobra.Command{
		Use:           "pimdb",
		Short:         "maintain a local, normalized copy of the IMDb datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if metricsGateway != "" {
				metrics.SetBackend(prompush.New(metricsGateway, "pimdb").Grouping("database", storage.KindFromDSN(cfg.Database)))
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if err := metrics.Flush(); err != nil {
				log.Printf("warning: cannot push metrics: %v", err)
			}
		},
	}
	root.PersistentFlags().StringVarP(&cfg.Database, "database", "d", "pimdb.db", "database connection string (postgres:// URL or SQLite file path)")
	root.PersistentFlags().StringVar(&cfg.DatasetFolder, "dataset-folder", ".", "folder holding the downloaded dataset files")
	root.PersistentFlags().IntVar(&cfg.BatchSize, "bulk", pipeline.DefaultBatchSize, "number of rows per bulk insert batch")
	root.PersistentFlags().StringVar(&metricsGateway, "metrics-gateway", "", "Prometheus Pushgateway URL to push run metrics to")

	root.AddCommand(newDownloadCmd(cfg))
	root.AddCommand(newTransferCmd(cfg))
	root.AddCommand(newBuildCmd(cfg))
	root.AddCommand(newQueryCmd(cfg))
	return root
}

// lint validates cfg for mode, printing every issue and failing on errors.
func lint(cfg *config.Config, mode config.Mode) error {
	issues := cfg.Lint(mode)
	for _, issue := range issues {
		log.Print(issue)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("invalid configuration")
	}
	return nil
}

// signalContext cancels on SIGINT/SIGTERM so an interrupted run stops at
// the next batch boundary.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	return storage.New(ctx, storage.Config{DSN: cfg.Database})
}

func newDownloadCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [dataset...]",
		Short: "download dataset files from datasets.imdbws.com",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Datasets = args
			if err := lint(cfg, config.ModeDownload); err != nil {
				return err
			}
			ids, err := cfg.DatasetIDs()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			client := &download.Client{}
			for _, id := range ids {
				if _, err := client.Fetch(ctx, id, cfg.DatasetFolder, cfg.Force); err != nil {
					return fmt.Errorf("download: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cfg.Force, "force", false, "download even when the upstream file is unchanged")
	return cmd
}

func newTransferCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer [dataset...]",
		Short: "load dataset files into deduplicated staging tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Datasets = args
			if err := lint(cfg, config.ModeTransfer); err != nil {
				return err
			}
			ids, err := cfg.DatasetIDs()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			repo, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			summaries, err := pipeline.Transfer(ctx, repo, pipeline.Options{
				DatasetFolder: cfg.DatasetFolder,
				BatchSize:     cfg.BatchSize,
				Drop:          cfg.Drop,
				Datasets:      ids,
			})
			pipeline.LogSummary(summaries)
			if err != nil {
				return fmt.Errorf("transfer: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cfg.Drop, "drop", false, "drop and recreate staging tables instead of truncating them")
	return cmd
}

func newBuildCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "derive the normalized tables from the staging tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := lint(cfg, config.ModeBuild); err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			repo, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			summaries, err := pipeline.Build(ctx, repo, pipeline.Options{BatchSize: cfg.BatchSize})
			pipeline.LogSummary(summaries)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			return nil
		},
	}
}

func newQueryCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "run a SQL statement and print the result as tab separated lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := lint(cfg, config.ModeQuery); err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			repo, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()
			return runQuery(ctx, repo, args[0], cmd.OutOrStdout())
		},
	}
}
