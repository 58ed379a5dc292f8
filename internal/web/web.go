package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"loadshedcal/internal/config"
	"loadshedcal/internal/ics"
	appLog "loadshedcal/internal/log"
	"loadshedcal/internal/metrics"
	"loadshedcal/internal/model"
	"loadshedcal/internal/outage"
	"loadshedcal/internal/schedule"
	"loadshedcal/internal/timetable"
)

const msgBadZone = "Missing or malformed zone_id"

// Server serves per-zone outage calendars and the supporting JSON APIs.
// Every calendar request asks the provider for the current schedule and
// resolves it afresh; nothing is cached here.
type Server struct {
	cfg      *config.Config
	provider schedule.Provider
	renderer *ics.Renderer
	metrics  *metrics.Recorder
	loc      *time.Location
	now      func() time.Time
	status   func() (int, time.Time)
	router   chi.Router
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithRenderer replaces the calendar renderer built from cfg.ProductID.
func WithRenderer(r *ics.Renderer) Option {
	return func(s *Server) { s.renderer = r }
}

// WithStatus reports the background poller's last observed stage in
// /api/schedule.
func WithStatus(status func() (stage int, checked time.Time)) Option {
	return func(s *Server) { s.status = status }
}

// NewServer constructs a new Server. rec may be nil.
func NewServer(cfg *config.Config, p schedule.Provider, rec *metrics.Recorder, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		provider: p,
		renderer: ics.NewRenderer(cfg.ProductID),
		metrics:  rec,
		loc:      resolveLocationOrLocal(cfg.Timezone),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "timezone", s.loc.String())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleCalendar)
	r.Get("/calendar", s.handleCalendar)
	r.Get("/api/schedule", s.handleSchedule)
	r.Get("/api/timetable", s.handleTimetable)
	r.Handle("/metrics", s.metrics.Handler())

	s.router = r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="loadshedcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requestLogger logs one line per request once the response is written.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar serves the outage calendar of one zone.
//
// GET /calendar?zone_id=N (also GET /?zone_id=N)
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	zone, ok := parseZone(r.URL.Query().Get("zone_id"))
	if !ok {
		s.metrics.CalendarRequest(http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, msgBadZone)
		return
	}

	windows, err := s.windows(r.Context())
	if err != nil {
		appLog.Error("calendar: schedule unavailable", err, "zone", zone)
		s.metrics.CalendarRequest(http.StatusInternalServerError)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve the load-shedding schedule")
		return
	}

	events := outage.Resolve(windows, zone)
	var forecast int
	for _, ev := range events {
		if ev.Forecast {
			forecast++
		}
	}
	s.metrics.OutageEvents(len(events)-forecast, forecast)
	s.metrics.CalendarRequest(http.StatusOK)

	w.Header().Set("Content-Type", ics.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.renderer.Render(events)))
}

// scheduleResponse is the JSON response shape for /api/schedule.
type scheduleResponse struct {
	Timezone    string              `json:"timezone"`
	GeneratedAt time.Time           `json:"generated_at"`
	Windows     []model.StageWindow `json:"windows"`
	Watcher     *watcherStatus      `json:"watcher,omitempty"`
}

// watcherStatus is the last stage seen by background polling. CheckedAt is
// absent until the first successful poll.
type watcherStatus struct {
	AnnouncedStage int        `json:"announced_stage"`
	CheckedAt      *time.Time `json:"checked_at,omitempty"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	windows, err := s.windows(r.Context())
	if err != nil {
		appLog.Error("api schedule: schedule unavailable", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve the load-shedding schedule")
		return
	}
	if windows == nil {
		windows = []model.StageWindow{}
	}
	resp := scheduleResponse{
		Timezone:    s.loc.String(),
		GeneratedAt: s.now().In(s.loc),
		Windows:     windows,
	}
	if s.status != nil {
		stage, checked := s.status()
		resp.Watcher = &watcherStatus{AnnouncedStage: stage}
		if !checked.IsZero() {
			checked = checked.In(s.loc)
			resp.Watcher.CheckedAt = &checked
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// timetableResponse is the JSON response shape for /api/timetable.
type timetableResponse struct {
	Stage     int              `json:"stage"`
	Zone      int              `json:"zone"`
	Date      string           `json:"date"`
	Intervals []model.Interval `json:"intervals"`
}

// handleTimetable returns the candidate outage blocks of a zone for a date
// and the day after, independent of any announcement.
//
// GET /api/timetable?stage=S&zone_id=N[&date=YYYY-MM-DD]
//   - date defaults to today in the configured timezone.
func (s *Server) handleTimetable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	zone, ok := parseZone(q.Get("zone_id"))
	if !ok {
		writeError(w, http.StatusBadRequest, msgBadZone)
		return
	}
	stage, err := strconv.Atoi(q.Get("stage"))
	if err != nil || !model.ValidStage(stage) {
		writeError(w, http.StatusBadRequest, "Missing or malformed stage")
		return
	}

	date := s.now().In(s.loc)
	if raw := q.Get("date"); raw != "" {
		date, err = time.ParseInLocation(time.DateOnly, raw, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Malformed date, expected YYYY-MM-DD")
			return
		}
	}

	intervals := timetable.For(stage, zone, date)
	if intervals == nil {
		intervals = []model.Interval{}
	}
	writeJSON(w, http.StatusOK, timetableResponse{
		Stage:     stage,
		Zone:      zone,
		Date:      date.Format(time.DateOnly),
		Intervals: intervals,
	})
}

// windows fetches the announced schedule and appends the forecast.
func (s *Server) windows(ctx context.Context) ([]model.StageWindow, error) {
	now := s.now().In(s.loc)
	windows, err := s.provider.Windows(ctx, now)
	if err != nil {
		return nil, err
	}
	return outage.Extend(windows, now, s.cfg.ForecastDays)
}

// parseZone accepts a non-negative decimal integer.
func parseZone(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	zone, err := strconv.Atoi(raw)
	if err != nil || zone < 0 {
		return 0, false
	}
	return zone, true
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Message string `json:"message"`
	}
	writeJSON(w, status, errResp{Message: msg})
}
