package cmd

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elyterrax/elyctl/pkg/launcher"
	"github.com/elyterrax/elyctl/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run one HTTP worker",
	Long: `Run a single HTTP worker serving the info and health endpoints.

When spawned by 'elyctl start' the worker inherits the shared listener;
run standalone it binds the configured address itself.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadEnvironment(false)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ln, inherited, err := launcher.InheritedListener()
		if err != nil {
			return err
		}
		if !inherited {
			ln, err = net.Listen("tcp", cfg.ListenAddr())
			if err != nil {
				return err
			}
			log.Info("listening", zap.String("addr", cfg.ListenAddr()))
		}
		defer ln.Close()

		// The pool connects lazily; a down database degrades /db/health
		// instead of blocking startup.
		var db server.Pinger
		if pool, err := pgxpool.New(ctx, cfg.DatabaseURL); err == nil {
			defer pool.Close()
			db = pool
		} else {
			log.Warn("database pool unavailable", zap.Error(err))
		}

		return server.New(cfg, db, log).Run(ctx, ln)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
