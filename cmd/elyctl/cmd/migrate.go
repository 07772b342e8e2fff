package cmd

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/spf13/cobra"

	"github.com/elyterrax/elyctl/pkg/migrate"
)

var (
	flagDriver           string
	flagDatabase         string
	flagMigrationPattern string
	flagSchemaTable      string
	flagNoChecksums      bool
	flagResetYes         bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema revision chain",
	Long: `Manage the linear chain of schema revisions.

Revisions live as paired files: NNN.do.<name>.sql applies a change and
NNN.undo.<name>.sql reverts it.`,
	// Unknown subcommands print help and exit zero; they mutate nothing.
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var migrateCreateCmd = &cobra.Command{
	Use:   "create <message>",
	Short: "Generate a new do/undo revision pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || strings.TrimSpace(strings.Join(args, " ")) == "" {
			return fmt.Errorf("%w\nUsage: elyctl migrate create <message>", migrate.ErrNoDescription)
		}
		doPath, undoPath, err := migrate.CreateMigration(migrationConfig(), strings.Join(args, " "), "int")
		if err != nil {
			return err
		}
		fmt.Println("Created", doPath)
		fmt.Println("Created", undoPath)
		return nil
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every unapplied revision up to the chain head",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(func(o *migrate.Orchestrator) error {
			applied, err := o.Up(cmd.Context())
			if err != nil {
				return err
			}
			reportApplied("Applied", applied)
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [n]",
	Short: "Revert the most recently applied revision, or the most recent n",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("step count must be a number, got %q", args[0])
			}
			steps = n
		}
		return withOrchestrator(func(o *migrate.Orchestrator) error {
			reverted, err := o.Down(cmd.Context(), steps)
			if err != nil {
				return err
			}
			reportApplied("Reverted", reverted)
			return nil
		})
	},
}

var migrateHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List all known revisions in chain order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(func(o *migrate.Orchestrator) error {
			entries, err := o.History(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No revisions found.")
				return nil
			}
			for _, e := range entries {
				marker := " "
				runAt := ""
				if e.Applied {
					marker = "*"
					runAt = "  (applied " + e.RunAt + ")"
				}
				fmt.Printf("%s %03d %s%s\n", marker, e.Version, e.Name, runAt)
			}
			return nil
		})
	},
}

var migrateCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Report the currently applied revision pointer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(func(o *migrate.Orchestrator) error {
			ver, err := o.Current(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Current revision: %d\n", ver)
			return nil
		})
	},
}

var migrateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Revert every applied revision back to the empty base state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(func(o *migrate.Orchestrator) error {
			reverted, err := o.Reset(cmd.Context(), confirmReset)
			if errors.Is(err, migrate.ErrCanceled) {
				fmt.Println("Reset cancelled. No changes made.")
				return nil
			}
			if err != nil {
				return err
			}
			reportApplied("Reverted", reverted)
			return nil
		})
	},
}

// confirmReset shows the plan and requires the literal string "yes" on
// standard input, unless --yes was passed.
func confirmReset(plan []migrate.Migration) (bool, error) {
	if len(plan) == 0 {
		fmt.Println("Nothing to revert.")
		return true, nil
	}
	fmt.Printf("This will revert %d revision(s):\n", len(plan))
	for _, m := range plan {
		fmt.Printf("  - %03d %s\n", m.Version, m.Name)
	}
	if flagResetYes {
		return true, nil
	}
	fmt.Print("Type 'yes' to confirm: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	return strings.TrimSpace(line) == "yes", nil
}

// migrationConfig builds the revision-chain configuration from flags.
func migrationConfig() migrate.Config {
	return migrate.Config{
		Driver:           flagDriver,
		SchemaTable:      flagSchemaTable,
		MigrationPattern: flagMigrationPattern,
		NoChecksums:      flagNoChecksums,
	}
}

// withOrchestrator opens the database connection, builds the orchestrator
// and hands it to fn.
func withOrchestrator(fn func(*migrate.Orchestrator) error) error {
	cfg, err := loadEnvironment(false)
	if err != nil {
		return err
	}

	mcfg := migrationConfig()
	var driverName, dsn string
	switch strings.ToLower(mcfg.Driver) {
	case "pg":
		driverName = "pgx"
		dsn = cfg.DatabaseURL
	case "sqlite3":
		driverName = "sqlite3"
		dsn = flagDatabase
		if dsn == "" {
			return fmt.Errorf("a database file is required for the sqlite3 driver")
		}
	default:
		return fmt.Errorf("unsupported driver %q: must be pg or sqlite3", mcfg.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	o, err := migrate.New(mcfg, db)
	if err != nil {
		return err
	}
	return fn(o)
}

func reportApplied(verb string, migs []migrate.Migration) {
	if len(migs) == 0 {
		fmt.Println("Nothing to do; schema is up to date.")
		return
	}
	fmt.Printf("%s %d revision(s):\n", verb, len(migs))
	for _, m := range migs {
		fmt.Printf("  - %03d %s (%s)\n", m.Version, m.Name, m.Filename)
	}
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&flagDriver, "driver", "pg", "database driver: pg or sqlite3")
	migrateCmd.PersistentFlags().StringVar(&flagDatabase, "database", "", "database file (sqlite3 driver only)")
	migrateCmd.PersistentFlags().StringVar(&flagMigrationPattern, "migration-pattern", "migrations/*.sql", "glob pattern for revision files")
	migrateCmd.PersistentFlags().StringVar(&flagSchemaTable, "schema-table", "schemaversion", "name of the revision table")
	migrateCmd.PersistentFlags().BoolVar(&flagNoChecksums, "no-checksums", false, "skip checksum validation of applied revisions")
	migrateResetCmd.Flags().BoolVar(&flagResetYes, "yes", false, "skip the interactive confirmation")

	migrateCmd.AddCommand(
		migrateCreateCmd,
		migrateUpCmd,
		migrateDownCmd,
		migrateHistoryCmd,
		migrateCurrentCmd,
		migrateResetCmd,
	)
	rootCmd.AddCommand(migrateCmd)
}
