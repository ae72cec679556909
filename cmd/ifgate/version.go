package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/ifgate"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ifgate",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ifgate version %s\n", strings.TrimSpace(ifgate.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
