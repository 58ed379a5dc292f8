package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	appLog "loadshedcal/internal/log"
	"loadshedcal/internal/metrics"
	"loadshedcal/internal/schedule"
	"loadshedcal/internal/web"
)

func newServeCmd(e *env) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve outage calendars over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				e.cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, e)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func serve(ctx context.Context, e *env) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.New(reg)
	if err != nil {
		return err
	}

	p, err := e.provider(rec)
	if err != nil {
		return err
	}

	appLog.Info("effective config",
		"listen", e.cfg.Listen,
		"timezone", e.cfg.Timezone,
		"forecast_days", e.cfg.ForecastDays,
		"refresh", e.cfg.Refresh,
		"source", e.cfg.Source.Kind,
		"basic_auth", e.cfg.BasicAuth != nil,
	)

	watcher, err := schedule.NewWatcher(p, e.cfg.Refresh, e.loc, rec, nil)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}

	err = web.NewServer(e.cfg, p, rec, web.WithStatus(watcher.Status)).Run(ctx)
	appLog.Info("loadshedcal exiting")
	return err
}
