// Package config loads the ideshell configuration.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (Default)
//  2. The TOML file, by default ~/.config/ideshell/config.toml
//  3. A .env file next to the working directory, if present
//  4. IDESHELL_* environment variables
//
// Watcher reloads the file when it changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IDESHELL_"

// Config is the full configuration.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Storage StorageConfig `toml:"storage"`
	Plugins PluginsConfig `toml:"plugins"`
	AI      AIConfig      `toml:"ai"`
	UI      UIConfig      `toml:"ui"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// StorageConfig configures local storage.
type StorageConfig struct {
	// Path of the storage document. Empty keeps everything in memory.
	Path string `toml:"path"`
}

// PluginsConfig configures the plugin hosts.
type PluginsConfig struct {
	// Enabled lists the plugins enabled at startup. Empty means all.
	Enabled []string `toml:"enabled"`
	// Disabled lists plugins never enabled at startup. It wins over Enabled.
	Disabled []string `toml:"disabled"`
	// StartupDelay postpones bundled plugins' activity-bar entries.
	StartupDelay Duration `toml:"startup_delay"`
	// ScriptDirs are searched for Lua plugins.
	ScriptDirs []string `toml:"script_dirs"`
	// ScriptTimeout bounds each Lua call.
	ScriptTimeout Duration `toml:"script_timeout"`
	// FeedPath replaces the RSS plugin's bundled feed.
	FeedPath string `toml:"feed_path"`
	// FeedSchedule is a cron schedule for re-reading the feed.
	FeedSchedule string `toml:"feed_schedule"`
}

// AIConfig selects the AI backend.
type AIConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	BaseURL   string `toml:"base_url"`
	// MaxFailures opens the provider circuit after that many failures in a row.
	MaxFailures uint32 `toml:"max_failures"`
}

// UIConfig configures the outer surfaces.
type UIConfig struct {
	// Render draws the workbench in the terminal.
	Render bool `toml:"render"`
	Width  int  `toml:"width"`
	Height int  `toml:"height"`
	// HTTPAddr serves the inspection endpoint when set, e.g. "127.0.0.1:7777".
	HTTPAddr string `toml:"http_addr"`
}

// Duration is a time.Duration written as a string ("150ms", "2s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Plugins: PluginsConfig{
			StartupDelay:  Duration{100 * time.Millisecond},
			ScriptTimeout: Duration{5 * time.Second},
		},
		AI: AIConfig{Provider: "stub", APIKeyEnv: "OPENAI_API_KEY"},
		UI: UIConfig{Width: 100, Height: 30},
	}
}

// DefaultPath returns ~/.config/ideshell/config.toml, or config.toml in the
// working directory when there is no user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "ideshell", "config.toml")
}

// Load reads path over the defaults and applies the .env file and the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := cfg.parse(path, data); err != nil {
				return nil, err
			}
		}
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML data over the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.parse("<data>", data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parse(source string, data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			perr.Message = serr.String()
		}
		return perr
	}
	return nil
}

// ApplyEnv overrides fields from IDESHELL_* variables looked up through
// lookup. List values are comma separated; script_dirs uses the OS path
// list separator.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	list := func(key, sep string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = splitList(v, sep)
		}
	}
	var errs []error
	dur := func(key string, dst *Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, &EnvError{Key: EnvPrefix + key, Err: err})
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, &EnvError{Key: EnvPrefix + key, Err: err})
				return
			}
			*dst = b
		}
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("STORAGE_PATH", &c.Storage.Path)
	list("PLUGINS_ENABLED", ",", &c.Plugins.Enabled)
	list("PLUGINS_DISABLED", ",", &c.Plugins.Disabled)
	dur("PLUGINS_STARTUP_DELAY", &c.Plugins.StartupDelay)
	list("PLUGINS_SCRIPT_DIRS", string(os.PathListSeparator), &c.Plugins.ScriptDirs)
	dur("PLUGINS_SCRIPT_TIMEOUT", &c.Plugins.ScriptTimeout)
	str("PLUGINS_FEED_PATH", &c.Plugins.FeedPath)
	str("PLUGINS_FEED_SCHEDULE", &c.Plugins.FeedSchedule)
	str("AI_PROVIDER", &c.AI.Provider)
	str("AI_MODEL", &c.AI.Model)
	str("AI_API_KEY_ENV", &c.AI.APIKeyEnv)
	str("AI_BASE_URL", &c.AI.BaseURL)
	boolean("UI_RENDER", &c.UI.Render)
	str("UI_HTTP_ADDR", &c.UI.HTTPAddr)
	return errors.Join(errs...)
}

func splitList(v, sep string) []string {
	var out []string
	for _, part := range strings.Split(v, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Levels accepted by LogConfig.Level.
var Levels = []string{"debug", "info", "warn", "error"}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(Levels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, &ValidationError{Path: "log.level", Value: c.Log.Level,
			Message: "must be one of " + strings.Join(Levels, ", ")})
	}
	if c.Plugins.StartupDelay.Duration < 0 {
		errs = append(errs, &ValidationError{Path: "plugins.startup_delay", Value: c.Plugins.StartupDelay.String(),
			Message: "must not be negative"})
	}
	if c.Plugins.ScriptTimeout.Duration <= 0 {
		errs = append(errs, &ValidationError{Path: "plugins.script_timeout", Value: c.Plugins.ScriptTimeout.String(),
			Message: "must be positive"})
	}
	if c.UI.Width < 0 || c.UI.Height < 0 {
		errs = append(errs, &ValidationError{Path: "ui", Value: fmt.Sprintf("%dx%d", c.UI.Width, c.UI.Height),
			Message: "size must not be negative"})
	}
	return errors.Join(errs...)
}

// PluginAllowed reports whether plugin id should be enabled at startup.
func (c *Config) PluginAllowed(id string) bool {
	if slices.Contains(c.Plugins.Disabled, id) {
		return false
	}
	return len(c.Plugins.Enabled) == 0 || slices.Contains(c.Plugins.Enabled, id)
}
