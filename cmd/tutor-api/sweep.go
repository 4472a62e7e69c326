package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one auto-approval sweep and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.sweeper.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		a.logger.Info("sweep finished",
			zap.Time("cutoff", report.Cutoff),
			zap.Int("scanned", report.Scanned),
			zap.Int("approved", report.Approved),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
			zap.Bool("locked", report.Locked),
		)
		return nil
	},
}
