// Package schedule retrieves announced load-shedding stage windows from the
// municipal feed or web page.
package schedule

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"loadshedcal/internal/metrics"
	"loadshedcal/internal/model"
)

// Kind selects how announcements are retrieved.
type Kind string

const (
	KindJSON    Kind = "json"
	KindHTML    Kind = "html"
	KindBrowser Kind = "browser"
)

// Default upstream locations per kind.
const (
	DefaultJSONURL = "https://d42sspn7yra3u.cloudfront.net/coct-load-shedding-extended-status.json"
	DefaultPageURL = "https://www.capetown.gov.za/Family%20and%20home/Residential-utility-services/Residential-electricity-services/Load-shedding-and-outages"
)

// Provider returns the announced stage windows, in announcement order.
// now is used for year inference and "underway" windows.
type Provider interface {
	Windows(ctx context.Context, now time.Time) ([]model.StageWindow, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, now time.Time) ([]model.StageWindow, error)

func (f ProviderFunc) Windows(ctx context.Context, now time.Time) ([]model.StageWindow, error) {
	return f(ctx, now)
}

// Options configures New.
type Options struct {
	Kind     Kind
	URL      string
	Selector string
	CacheDir string
	Timeout  time.Duration
	// MaxStale bounds how old a cached body may be when the upstream fails.
	MaxStale time.Duration
	Location *time.Location
	Metrics  *metrics.Recorder
}

// DefaultURL returns the upstream location used for kind when none is configured.
func DefaultURL(kind Kind) string {
	if kind == KindJSON {
		return DefaultJSONURL
	}
	return DefaultPageURL
}

// New builds the provider for opts.Kind.
func New(opts Options) (Provider, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.URL == "" {
		opts.URL = DefaultURL(opts.Kind)
	}
	src := Source{ID: string(opts.Kind), URL: opts.URL}
	if opts.Kind == KindHTML || opts.Kind == KindBrowser {
		if _, err := CompileSelector(opts.Selector); err != nil {
			return nil, err
		}
	}

	var p Provider
	switch opts.Kind {
	case KindJSON:
		p = &JSONFeed{fetcher: NewFetcher(opts.CacheDir, opts.Timeout, opts.MaxStale), src: src, loc: opts.Location}
	case KindHTML:
		p = &Page{fetcher: NewFetcher(opts.CacheDir, opts.Timeout, opts.MaxStale), src: src, selector: opts.Selector, loc: opts.Location}
	case KindBrowser:
		p = &BrowserPage{
			opts: BrowserOptions{URL: opts.URL, Selector: opts.Selector, Timeout: opts.Timeout},
			loc:  opts.Location,
		}
	default:
		return nil, fmt.Errorf("schedule: unknown source kind %q", opts.Kind)
	}
	return instrumented{next: p, source: src.ID, rec: opts.Metrics}, nil
}

// JSONFeed reads the structured status feed.
type JSONFeed struct {
	fetcher *Fetcher
	src     Source
	loc     *time.Location
}

func (p *JSONFeed) Windows(ctx context.Context, _ time.Time) ([]model.StageWindow, error) {
	res, err := p.fetcher.Fetch(ctx, p.src)
	if err != nil {
		return nil, err
	}
	return ParseJSON(res.Body, p.loc)
}

// Page scrapes the static announcement page.
type Page struct {
	fetcher  *Fetcher
	src      Source
	selector string
	loc      *time.Location
}

func (p *Page) Windows(ctx context.Context, now time.Time) ([]model.StageWindow, error) {
	res, err := p.fetcher.Fetch(ctx, p.src)
	if err != nil {
		return nil, err
	}
	return ParseHTML(bytes.NewReader(res.Body), p.selector, p.loc, now)
}

// BrowserPage scrapes the announcement page after rendering it in Chromium.
type BrowserPage struct {
	opts BrowserOptions
	loc  *time.Location
}

func (p *BrowserPage) Windows(ctx context.Context, now time.Time) ([]model.StageWindow, error) {
	body, err := RenderPage(ctx, p.opts)
	if err != nil {
		return nil, err
	}
	return ParseHTML(bytes.NewReader(body), p.opts.Selector, p.loc, now)
}

type instrumented struct {
	next   Provider
	source string
	rec    *metrics.Recorder
}

func (i instrumented) Windows(ctx context.Context, now time.Time) ([]model.StageWindow, error) {
	windows, err := i.next.Windows(ctx, now)
	i.rec.ScheduleFetch(i.source, err)
	return windows, err
}
