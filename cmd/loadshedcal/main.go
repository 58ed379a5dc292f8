package main

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"loadshedcal/internal/config"
	appLog "loadshedcal/internal/log"
	"loadshedcal/internal/metrics"
	"loadshedcal/internal/schedule"
)

const defaultConfigPath = "/etc/loadshedcal/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand needs once the config is loaded.
type env struct {
	configPath string
	cfg        *config.Config
	loc        *time.Location
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:          "loadshedcal",
		Short:        "Per-zone load-shedding outage calendars",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load()
		},
	}
	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", defaultConfigPath, "Path to config file")

	root.AddCommand(
		newServeCmd(e),
		newCalendarCmd(e),
		newTimetableCmd(e),
		newScheduleCmd(e),
	)
	return root
}

func (e *env) load() error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", e.configPath, err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	appLog.Setup(os.Stderr, appLog.Format(cfg.Log.Format), appLog.Level(cfg.Log.Level))

	e.cfg = cfg
	e.loc = loc
	return nil
}

// provider builds the configured schedule source.
func (e *env) provider(rec *metrics.Recorder) (schedule.Provider, error) {
	return schedule.New(schedule.Options{
		Kind:     schedule.Kind(e.cfg.Source.Kind),
		URL:      e.cfg.Source.URL,
		Selector: e.cfg.Source.Selector,
		CacheDir: e.cfg.Source.CacheDir,
		Timeout:  e.cfg.Source.Timeout(),
		MaxStale: e.cfg.Source.MaxStale(),
		Location: e.loc,
		Metrics:  rec,
	})
}
