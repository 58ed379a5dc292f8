package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const windowLayout = "2006-01-02 15:04"

func newScheduleCmd(e *env) *cobra.Command {
	var noForecast bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the announced stage windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			windows, err := e.windows(cmd.Context(), time.Now(), noForecast)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range windows {
				if _, err := fmt.Fprintf(out, "%s  %s  %s\n",
					w.Start.Format(windowLayout), w.End.Format(windowLayout), w.Title()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noForecast, "no-forecast", false, "Only print announced windows")
	return cmd
}
