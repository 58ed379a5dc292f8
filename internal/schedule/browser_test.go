package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBrowserOptionsDefaults(t *testing.T) {
	o := BrowserOptions{URL: "https://example.com"}.withDefaults()
	assert.Equal(t, DefaultSelector, o.Selector)
	assert.Equal(t, DefaultBrowserTimeout, o.Timeout)

	o = BrowserOptions{Selector: "main", Timeout: time.Second}.withDefaults()
	assert.Equal(t, "main", o.Selector)
	assert.Equal(t, time.Second, o.Timeout)
}

func TestRenderPageRequiresURL(t *testing.T) {
	_, err := RenderPage(context.Background(), BrowserOptions{})
	assert.Error(t, err)
}
