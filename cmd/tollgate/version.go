package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/tollgate"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tollgate",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tollgate version %s\n", strings.TrimSpace(tollgate.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
