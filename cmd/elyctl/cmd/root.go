package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elyterrax/elyctl/pkg/config"
	"github.com/elyterrax/elyctl/pkg/envfile"
	"github.com/elyterrax/elyctl/pkg/logging"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "elyctl",
	Short: "Operational tooling for the Elyterra backend",
	Long: `elyctl bundles the operational surface of the Elyterra backend:
environment bootstrap, database connectivity checks, schema migrations,
service launch and project archival.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagEnvFile  string
	flagLogLevel string
)

// Execute runs the root command. Usage and help exit zero; real errors exit
// non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "environment file to load")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error or none")
}

// newLogger builds the process logger, preferring the flag over configuration.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := flagLogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	return logging.New(level)
}

// loadEnvironment reads the env file and exports it. When required is false
// a missing file (and template) is tolerated: configuration then comes from
// process environment and defaults alone.
func loadEnvironment(required bool) (*config.Config, error) {
	fs := afero.NewOsFs()
	res, err := envfile.Load(fs, flagEnvFile, flagEnvFile+".example")
	switch {
	case err == nil:
		if res.FromTemplate {
			fmt.Fprintf(os.Stderr, "Seeded %s from template; review its values before deploying.\n", res.Path)
		}
		if err := envfile.Export(res.Values); err != nil {
			return nil, err
		}
	case errors.Is(err, envfile.ErrMissing) && !required:
		// fall back to ambient environment
	default:
		return nil, err
	}
	return config.Load()
}
