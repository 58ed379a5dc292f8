package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"loadshedcal/internal/ics"
	"loadshedcal/internal/model"
	"loadshedcal/internal/outage"
)

func newCalendarCmd(e *env) *cobra.Command {
	var (
		zone       int
		noForecast bool
	)
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print the outage calendar of a zone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if zone < 0 {
				return fmt.Errorf("--zone must not be negative, got %d", zone)
			}
			windows, err := e.windows(cmd.Context(), time.Now(), noForecast)
			if err != nil {
				return err
			}
			events := outage.Resolve(windows, zone)
			_, err = fmt.Fprint(cmd.OutOrStdout(), ics.NewRenderer(e.cfg.ProductID).Render(events))
			return err
		},
	}
	cmd.Flags().IntVar(&zone, "zone", 0, "Zone number (1-16)")
	cmd.Flags().BoolVar(&noForecast, "no-forecast", false, "Only include announced windows")
	_ = cmd.MarkFlagRequired("zone")
	return cmd
}

// windows fetches the announced schedule and, unless noForecast is set,
// appends the configured forecast.
func (e *env) windows(ctx context.Context, now time.Time, noForecast bool) ([]model.StageWindow, error) {
	p, err := e.provider(nil)
	if err != nil {
		return nil, err
	}
	now = now.In(e.loc)
	windows, err := p.Windows(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}
	if noForecast {
		return windows, nil
	}
	return outage.Extend(windows, now, e.cfg.ForecastDays)
}
