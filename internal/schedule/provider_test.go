package schedule

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadshedcal/internal/metrics"
	"loadshedcal/internal/model"
)

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewJSONProvider(t *testing.T) {
	srv := serve(t, "application/json", feedBody)
	rec, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	p, err := New(Options{Kind: KindJSON, URL: srv.URL, CacheDir: t.TempDir(), Location: sast, Metrics: rec})
	require.NoError(t, err)

	windows, err := p.Windows(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 4, windows[0].Stage)
}

func TestNewHTMLProvider(t *testing.T) {
	srv := serve(t, "text/html", announcementPage)

	p, err := New(Options{Kind: KindHTML, URL: srv.URL, CacheDir: t.TempDir(), Location: sast})
	require.NoError(t, err)

	windows, err := p.Windows(context.Background(), time.Date(2023, time.April, 10, 9, 41, 0, 0, sast))
	require.NoError(t, err)
	assert.Len(t, windows, 3)
}

func TestNewHTMLProviderMissingMarkup(t *testing.T) {
	srv := serve(t, "text/html", "<html><body>maintenance</body></html>")

	p, err := New(Options{Kind: KindHTML, URL: srv.URL, CacheDir: t.TempDir(), Location: sast})
	require.NoError(t, err)

	_, err = p.Windows(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrMarkupNotFound)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(Options{Kind: "rss"})
	assert.Error(t, err)
}

func TestNewRejectsBadSelector(t *testing.T) {
	_, err := New(Options{Kind: KindHTML, Selector: "div[", CacheDir: t.TempDir(), Location: sast})
	assert.Error(t, err)

	_, err = New(Options{Kind: KindBrowser, Selector: "a[href", Location: sast})
	assert.Error(t, err)
}

func TestDefaultURL(t *testing.T) {
	assert.Equal(t, DefaultJSONURL, DefaultURL(KindJSON))
	assert.Equal(t, DefaultPageURL, DefaultURL(KindHTML))
	assert.Equal(t, DefaultPageURL, DefaultURL(KindBrowser))
}

func TestWatcherPoll(t *testing.T) {
	now := time.Date(2023, time.April, 8, 12, 0, 0, 0, sast)
	windows := []model.StageWindow{
		model.NewStageWindow(now.Add(-7*time.Hour), now.Add(10*time.Hour), 4),
		model.NewStageWindow(now.Add(10*time.Hour), now.Add(17*time.Hour), 2),
	}
	var fail bool
	p := ProviderFunc(func(context.Context, time.Time) ([]model.StageWindow, error) {
		if fail {
			return nil, errors.New("upstream down")
		}
		return windows, nil
	})

	w, err := NewWatcher(p, "", sast, nil, func() time.Time { return now })
	require.NoError(t, err)

	w.Poll(context.Background())
	stage, checked := w.Status()
	assert.Equal(t, 4, stage)
	assert.Equal(t, now, checked)

	fail = true
	w.Poll(context.Background())
	stage, _ = w.Status()
	assert.Equal(t, 4, stage)
}

func TestNewWatcherRejectsBadSpec(t *testing.T) {
	_, err := NewWatcher(ProviderFunc(nil), "every now and then", sast, nil, nil)
	assert.Error(t, err)
}

func TestCurrentStage(t *testing.T) {
	base := time.Date(2023, time.April, 8, 0, 0, 0, 0, sast)
	windows := []model.StageWindow{
		model.NewStageWindow(base.Add(5*time.Hour), base.Add(10*time.Hour), 2),
		model.NewStageWindow(base.Add(10*time.Hour), base.Add(22*time.Hour), 5),
	}

	assert.Equal(t, 2, currentStage(windows, base.Add(5*time.Hour)))
	assert.Equal(t, 5, currentStage(windows, base.Add(10*time.Hour)))
	assert.Equal(t, 5, currentStage(windows, base.Add(30*time.Hour)))
	assert.Equal(t, 0, currentStage(nil, base))
}
