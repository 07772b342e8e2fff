package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elyterrax/elyctl/pkg/config"
	"github.com/elyterrax/elyctl/pkg/launcher"
	"github.com/elyterrax/elyctl/pkg/probe"
)

var flagMode string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Load the environment, probe the database and launch the service",
	Long: `Start the Elyterra backend service on 0.0.0.0:8000.

Development mode runs a single worker with source auto-reload. Production
mode runs a fixed pool of workers sharing one listener. The database probe
runs first; an unreachable database is a warning, not a hard gate.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadEnvironment(true)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		production := cfg.IsProduction()
		switch flagMode {
		case "":
			// mode follows the configured environment
		case "dev":
			production = false
		case "prod":
			production = true
		default:
			return fmt.Errorf("invalid mode %q: must be dev or prod", flagMode)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runProbe(ctx, cfg, log)

		workers := 1
		if production {
			workers = cfg.Workers
		}
		l := launcher.New(launcher.Options{
			Addr:       cfg.ListenAddr(),
			Workers:    workers,
			Reload:     !production,
			WorkerArgs: serveWorkerArgs(),
		}, log)
		return l.Run(ctx)
	},
}

// serveWorkerArgs builds the argv workers are re-exec'd with. The persistent
// flags must travel along or the worker would fall back to ./.env and
// override the configuration the parent was started with.
func serveWorkerArgs() []string {
	args := []string{"serve", "--env-file", flagEnvFile}
	if flagLogLevel != "" {
		args = append(args, "--log-level", flagLogLevel)
	}
	return args
}

// runProbe performs the best-effort database precondition check.
func runProbe(ctx context.Context, cfg *config.Config, log *zap.Logger) {
	st := probe.Run(ctx, probe.Target{
		AdminURL: cfg.AdminDatabaseURL(),
		Database: cfg.PostgresDB,
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
	}, log)
	if !st.Reachable {
		log.Warn("starting in degraded mode: the service will fail fast if storage stays unreachable")
	}
}

func init() {
	startCmd.Flags().StringVar(&flagMode, "mode", "", "launch mode: dev or prod (defaults to the configured environment)")
	rootCmd.AddCommand(startCmd)
}
