package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stockwatch/internal/config"
	"stockwatch/internal/logger"
	"stockwatch/internal/scheduler"
	"stockwatch/internal/server"
)

// NewWatchCmd creates the long-running scheduled command
func NewWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Run monitoring passes on a cron schedule until interrupted",
		Long: `Run "check" on the cron schedule from schedule.cron (default every 15
minutes) in schedule.timezone. A pass that is still running when the next one
is due causes that firing to be skipped, so two passes never share the state
store.

With server.listen (or --listen) set, a read-only status endpoint serves
/health, /api/status and /api/state while watching.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, _ := cmd.Flags().GetBool("now")
			spec, _ := cmd.Flags().GetString("cron")
			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				appConfig.Server.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, appConfig, spec, now, cmd.OutOrStdout())
		},
	}

	watchCmd.Flags().Bool("now", true, "Run one pass immediately before waiting for the schedule")
	watchCmd.Flags().String("cron", "", "Override schedule.cron for this run")
	watchCmd.Flags().String("listen", "", "Serve the status endpoint on this address (overrides server.listen)")
	return watchCmd
}

func runWatch(ctx context.Context, cfg *config.Config, spec string, now bool, w io.Writer) error {
	if spec == "" {
		spec = cfg.Schedule.Cron
	}

	m, stateStore, err := buildMonitor(cfg, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := stateStore.Close(); err != nil {
			logger.Error("Failed to close state store", err)
		}
	}()

	sched, err := scheduler.NewScheduler(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	nextRun := func() string {
		next, err := scheduler.NextAfter(spec, time.Now().In(sched.Location()))
		if err != nil {
			return ""
		}
		return next.Format("2006-01-02 15:04:05 MST")
	}

	tracker := server.NewTracker()
	if cfg.Server.Listen != "" {
		srv := server.New(server.Options{
			Addr:         cfg.Server.Listen,
			ReadTimeout:  cfg.ServerReadTimeout(),
			WriteTimeout: cfg.ServerWriteTimeout(),
		}, tracker, stateStore)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("Status server stopped", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to stop status server", err)
			}
		}()
	}

	pass := func() {
		out := m.Run(ctx)
		tracker.Record(out)
		printOutcome(w, out)
		logger.Info("Next monitoring pass scheduled", "next", nextRun())
	}

	if err := sched.Schedule(spec, pass); err != nil {
		return err
	}

	if now {
		pass()
	}

	sched.Start()
	logger.Info("Watching targets",
		"cron", spec,
		"timezone", sched.Location().String(),
		"targets", len(cfg.Targets),
		"next", nextRun())

	<-ctx.Done()
	logger.Info("Shutting down, waiting for the running pass to finish")
	sched.Stop()
	return nil
}
