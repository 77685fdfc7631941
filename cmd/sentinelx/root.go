package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sentinelx",
	Short: "Industrial link sentinel",
	Long:  "SENTINEL-X watches an industrial control link, cross-checks register telemetry against a visual reasoning feed, and isolates the controller when a physical attack is confirmed.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
