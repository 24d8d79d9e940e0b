package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfib/fibcore/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("fibd dev build")
			return
		}
		fmt.Printf("fibd %s (%s)\n", version.Version, version.GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
