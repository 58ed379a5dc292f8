// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Recorder groups the service collectors. A nil *Recorder discards everything.
type Recorder struct {
	calendarRequests *prometheus.CounterVec
	scheduleFetches  *prometheus.CounterVec
	outageEvents     *prometheus.CounterVec
	announcedStage   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg, reusing any that are already
// registered. If reg is nil a fresh registry is used.
func New(reg *prometheus.Registry) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{gatherer: reg}

	var err error
	if r.calendarRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loadshed_calendar_requests_total",
		Help: "Calendar requests by HTTP status code",
	}, []string{"code"})); err != nil {
		return nil, err
	}
	if r.scheduleFetches, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loadshed_schedule_fetch_total",
		Help: "Announcement schedule retrievals by source and result",
	}, []string{"source", "result"})); err != nil {
		return nil, err
	}
	if r.outageEvents, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loadshed_outage_events_total",
		Help: "Outage events served, confirmed or forecast",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if r.announcedStage, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loadshed_announced_stage",
		Help: "Stage of the latest announced window seen by the refresh watcher",
	})); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

func (r *Recorder) CalendarRequest(code int) {
	if r == nil {
		return
	}
	r.calendarRequests.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (r *Recorder) ScheduleFetch(source string, err error) {
	if r == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.scheduleFetches.WithLabelValues(source, result).Inc()
}

func (r *Recorder) OutageEvents(confirmed, forecast int) {
	if r == nil {
		return
	}
	r.outageEvents.WithLabelValues("confirmed").Add(float64(confirmed))
	r.outageEvents.WithLabelValues("forecast").Add(float64(forecast))
}

func (r *Recorder) AnnouncedStage(stage int) {
	if r == nil {
		return
	}
	r.announcedStage.Set(float64(stage))
}
