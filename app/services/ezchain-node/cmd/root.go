// Package cmd contains the ezchain-node command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// build is the git version of this program, set via build flags.
var build = "develop"

var rootCmd = &cobra.Command{
	Use:   "ezchain-node",
	Short: "Run and inspect an EZchain value-centric blockchain node",
}

// Execute runs the command tree, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
