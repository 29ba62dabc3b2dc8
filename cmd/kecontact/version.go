package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/kecontact/kecontact-go/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the library version",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("kecontact %s (%s)\n", version.Library, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
