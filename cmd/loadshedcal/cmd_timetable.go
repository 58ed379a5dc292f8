package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"loadshedcal/internal/model"
	"loadshedcal/internal/timetable"
)

func newTimetableCmd(e *env) *cobra.Command {
	var (
		stage int
		zone  int
		date  string
	)
	cmd := &cobra.Command{
		Use:   "timetable",
		Short: "Print the rotation blocks of a zone for a date and the day after",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !model.ValidStage(stage) {
				return fmt.Errorf("--stage must be between %d and %d, got %d", model.MinStage, model.MaxStage, stage)
			}
			if zone < 0 {
				return fmt.Errorf("--zone must not be negative, got %d", zone)
			}
			ref := time.Now().In(e.loc)
			if date != "" {
				var err error
				if ref, err = time.ParseInLocation(time.DateOnly, date, e.loc); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			for _, iv := range timetable.For(stage, zone, ref) {
				if _, err := fmt.Fprintf(out, "%s  %s - %s\n",
					iv.Start.Format(time.DateOnly), iv.Start.Format("15:04"), iv.End.Format("15:04")); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&stage, "stage", 0, "Load-shedding stage (1-8)")
	cmd.Flags().IntVar(&zone, "zone", 0, "Zone number (1-16)")
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("zone")
	return cmd
}
