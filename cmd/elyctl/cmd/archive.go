package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/elyterrax/elyctl/pkg/archive"
	"github.com/elyterrax/elyctl/pkg/logging"
)

var archiveCmd = &cobra.Command{
	Use:   "archive [dir]",
	Short: "Snapshot the project tree into a timestamped zip bundle",
	Long: `Snapshot the project tree into <dir-basename>_<timestamp>.zip, written
one directory above the tree.

When the tree is under version control the file list comes from git,
including untracked-but-not-ignored files. Otherwise exclusions are derived
from the ignore file plus a fixed set (VCS metadata, prior archives, OS
metadata files).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}
		level := flagLogLevel
		if level == "" {
			level = logging.LevelInfo
		}
		log, err := logging.New(level)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		res, err := archive.Create(archive.Options{Dir: dir}, log)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s (%d files, %d bytes)\n", res.Path, res.Files, res.Size)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}
