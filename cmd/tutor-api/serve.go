package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Nhien18112/system-with-dbs/internal/server"
	"github.com/Nhien18112/system-with-dbs/internal/service"
	"github.com/Nhien18112/system-with-dbs/pkg/jobs"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the auto-approval sweep",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests and jobs")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sched := jobs.NewScheduler(a.logger)
	if a.cfg.Sweep.Enabled {
		if err := a.sweeper.Register(sched, a.cfg.Sweep.Schedule); err != nil {
			return err
		}
		sched.Start()
		a.logger.Info("auto-approval sweep scheduled",
			zap.String("schedule", a.cfg.Sweep.Schedule),
			zap.Duration("staleness_horizon", a.cfg.Sweep.StalenessHorizon),
			zap.Time("next_run", sched.Next(service.SweepJobName)),
		)
	}

	router := server.NewRouter(a.cfg, a.logger, a.metrics, a.handlers())
	srv := server.New(a.cfg, router, a.logger)
	runErr := srv.Run(ctx, shutdownTimeout)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sched.Stop(stopCtx)

	return runErr
}
