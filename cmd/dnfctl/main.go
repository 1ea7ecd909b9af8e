package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"dnfcomposer/internal/storage"
	"dnfcomposer/pkg/dnfcomposer"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the state resolved by the root command into its subcommands.
type cli struct {
	configPath string
	envFile    string
	cfg        config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "dnfctl",
		Short: "Compose and run dynamic neural field simulations",
		Long: `dnfctl builds neural field architectures, steps them in time and
manages the learned coupling weights they persist.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, c.configPath, c.envFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = logger
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (yaml, json or toml)")
	pf.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading DNF_* variables")
	pf.String("store", storage.DefaultStoreKind(), "weight store backend: file|memory|sqlite")
	pf.String("weights-dir", "weights", "directory of the file weight store")
	pf.String("db-path", "dnfcomposer.db", "database of the sqlite weight store")
	pf.Float64("delta-t", 5, "simulation time step")
	pf.String("log-level", "info", "debug|info|warn|error")
	pf.String("artifacts-dir", "", "write run artifacts and the run index under this directory")

	root.AddCommand(
		c.newRunCmd(),
		c.newTrainCmd(),
		c.newWeightsCmd(),
		c.newRunsCmd(),
		newVersionCmd(),
	)
	return root
}

func (c *cli) open(ctx context.Context) (*dnfcomposer.Engine, error) {
	opts := c.cfg.engineOptions()
	opts.Logger = c.logger
	return dnfcomposer.Open(ctx, opts)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dnfctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "dnfctl %s\n", version)
			return err
		},
	}
}
