package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/tripwire"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tripwire",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tripwire version %s\n", strings.TrimSpace(tripwire.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
