package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "loadshedcal/internal/log"
	"loadshedcal/internal/metrics"
	"loadshedcal/internal/model"
)

// DefaultRefresh polls the upstream every quarter hour.
const DefaultRefresh = "*/15 * * * *"

// Watcher polls a Provider on a cron schedule. Polling keeps the fetch cache
// warm for request-time lookups and reports stage changes; it never stores
// resolved outage events.
type Watcher struct {
	provider Provider
	rec      *metrics.Recorder
	now      func() time.Time
	cron     *cron.Cron
	spec     string

	mu        sync.Mutex
	lastStage int
	lastCheck time.Time
}

// NewWatcher validates spec (standard five-field cron) and prepares a Watcher.
func NewWatcher(p Provider, spec string, loc *time.Location, rec *metrics.Recorder, now func() time.Time) (*Watcher, error) {
	if spec == "" {
		spec = DefaultRefresh
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("schedule: refresh spec %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Watcher{
		provider: p,
		rec:      rec,
		now:      now,
		cron:     cron.New(cron.WithLocation(loc)),
		spec:     spec,
	}, nil
}

// Start runs one poll immediately and then on schedule until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := w.cron.AddFunc(w.spec, func() { w.Poll(ctx) }); err != nil {
		return err
	}
	go w.Poll(ctx)
	w.cron.Start()
	appLog.Info("schedule watcher started", "refresh", w.spec)

	go func() {
		<-ctx.Done()
		<-w.cron.Stop().Done()
		appLog.Info("schedule watcher stopped")
	}()
	return nil
}

// Poll fetches the schedule once and records the latest announced stage.
func (w *Watcher) Poll(ctx context.Context) {
	now := w.now()
	windows, err := w.provider.Windows(ctx, now)
	if err != nil {
		appLog.Error("schedule refresh failed", err)
		return
	}

	stage := currentStage(windows, now)

	w.mu.Lock()
	prev := w.lastStage
	w.lastStage = stage
	w.lastCheck = now
	w.mu.Unlock()

	w.rec.AnnouncedStage(stage)
	if stage != prev {
		appLog.Info("announced stage changed", "from", prev, "to", stage, "windows", len(windows))
	} else {
		appLog.Debug("schedule refreshed", "stage", stage, "windows", len(windows))
	}
}

// Status reports the last observed stage and when it was observed.
func (w *Watcher) Status() (stage int, checked time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastStage, w.lastCheck
}

// currentStage is the stage of the window covering now, else of the latest
// window, else 0.
func currentStage(windows []model.StageWindow, now time.Time) int {
	var latest *model.StageWindow
	for i := range windows {
		w := &windows[i]
		if !now.Before(w.Start) && now.Before(w.End) {
			return w.Stage
		}
		if latest == nil || w.End.After(latest.End) {
			latest = w
		}
	}
	if latest == nil {
		return 0
	}
	return latest.Stage
}
