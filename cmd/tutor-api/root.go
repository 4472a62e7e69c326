package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tutor-api",
	Short: "Tutor support service",
	Long: `tutor-api serves the tutor registration, scheduling and matching API
and runs the background auto-approval sweep for stale registrations.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, sweepCmd, versionCmd)
}
