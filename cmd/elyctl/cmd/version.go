package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version of the CLI.
const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the elyctl version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("elyctl version:", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
