package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version 版本号
const Version = "1.0.1"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
