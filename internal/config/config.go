package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment overrides, e.g. LOADSHEDCAL_SOURCE__KIND=html.
const EnvPrefix = "LOADSHEDCAL_"

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Africa/Johannesburg"
	defaultRefresh      = "*/15 * * * *"
	defaultForecastDays = 3
	defaultSourceKind   = "json"
	defaultCacheDir     = "/var/lib/loadshedcal/feed-cache"
	defaultTimeoutSec   = 15
	defaultMaxStaleMin  = 360
	defaultSelector     = "div.section-pull"
	defaultLogLevel     = "info"
	defaultLogFormat    = "json"
)

// SourceConfig describes where announcements come from.
type SourceConfig struct {
	// Kind is one of "json", "html" or "browser".
	Kind string `yaml:"kind" json:"kind"`
	// URL overrides the default upstream for Kind.
	URL string `yaml:"url" json:"url"`
	// CacheDir holds HTTP validators and the last good body.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// TimeoutSeconds bounds a single fetch or page render.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// MaxStaleMinutes limits how old the cached body may be when it stands
	// in for a failed fetch.
	MaxStaleMinutes int `yaml:"max_stale_minutes" json:"max_stale_minutes"`
	// Selector locates the announcement block for html/browser sources.
	Selector string `yaml:"selector" json:"selector"`
}

// Timeout returns TimeoutSeconds as a duration.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// MaxStale returns MaxStaleMinutes as a duration.
func (s SourceConfig) MaxStale() time.Duration {
	return time.Duration(s.MaxStaleMinutes) * time.Minute
}

// LogConfig controls process logging.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone announcements are published in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// ForecastDays is how many whole days are projected past the announced
	// schedule. Zero disables forecasts.
	ForecastDays int `yaml:"forecast_days" json:"forecast_days"`

	// ProductID is written as the calendar PRODID. Empty uses the built-in one.
	ProductID string `yaml:"product_id" json:"product_id"`

	// Refresh is the cron spec for background schedule polling.
	Refresh string `yaml:"refresh" json:"refresh"`

	Source SourceConfig `yaml:"source" json:"source"`
	Log    LogConfig    `yaml:"log" json:"log"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		ForecastDays: defaultForecastDays,
		Refresh:      defaultRefresh,
		Source: SourceConfig{
			Kind:            defaultSourceKind,
			CacheDir:        defaultCacheDir,
			TimeoutSeconds:  defaultTimeoutSec,
			MaxStaleMinutes: defaultMaxStaleMin,
			Selector:        defaultSelector,
		},
		Log: LogConfig{Level: defaultLogLevel, Format: defaultLogFormat},
	}
}

// Normalize fills in missing values with defaults. ForecastDays is left
// alone since zero is meaningful.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Refresh == "" {
		c.Refresh = defaultRefresh
	}
	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	if c.Source.Kind == "" {
		c.Source.Kind = defaultSourceKind
	}
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = defaultCacheDir
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = defaultTimeoutSec
	}
	if c.Source.MaxStaleMinutes <= 0 {
		c.Source.MaxStaleMinutes = defaultMaxStaleMin
	}
	if c.Source.Selector == "" {
		c.Source.Selector = defaultSelector
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	switch c.Source.Kind {
	case "json", "html", "browser":
	default:
		errs = append(errs, fmt.Errorf("source.kind: unknown kind %q", c.Source.Kind))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if _, err := cron.ParseStandard(c.Refresh); err != nil {
		errs = append(errs, fmt.Errorf("refresh: %w", err))
	}
	if _, err := cascadia.Parse(c.Source.Selector); err != nil {
		errs = append(errs, fmt.Errorf("source.selector: %w", err))
	}
	if c.ForecastDays < 0 {
		errs = append(errs, fmt.Errorf("forecast_days: must not be negative, got %d", c.ForecastDays))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load reads configuration from the YAML file at path and applies
// LOADSHEDCAL_ environment overrides ("__" separates nesting levels).
//
// Behavior:
//   - If the file does not exist, the default config is written there
//     (0600) and returned, still subject to environment overrides.
//   - Otherwise the file is parsed, defaults fill the gaps and the result
//     is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	k := koanf.New(".")
	if err := k.Load(koanfDefaults{}, nil); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if err := Save(path, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps LOADSHEDCAL_SOURCE__CACHE_DIR to source.cache_dir.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// koanfDefaults feeds DefaultConfig into koanf so that a partial file only
// overrides what it names.
type koanfDefaults struct{}

func (koanfDefaults) ReadBytes() ([]byte, error) {
	return nil, errors.New("koanfDefaults does not support ReadBytes")
}

func (koanfDefaults) Read() (map[string]any, error) {
	d := DefaultConfig()
	return map[string]any{
		"listen":        d.Listen,
		"timezone":      d.Timezone,
		"forecast_days": d.ForecastDays,
		"refresh":       d.Refresh,
		"source": map[string]any{
			"kind":              d.Source.Kind,
			"cache_dir":         d.Source.CacheDir,
			"timeout_seconds":   d.Source.TimeoutSeconds,
			"max_stale_minutes": d.Source.MaxStaleMinutes,
			"selector":          d.Source.Selector,
		},
		"log": map[string]any{
			"level":  d.Log.Level,
			"format": d.Log.Format,
		},
	}, nil
}

// Save writes cfg to path as YAML.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".loadshedcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
