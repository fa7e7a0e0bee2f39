// Package config resolves process configuration for QuickRizz.
//
// Values come from, in order of precedence: environment variables with the
// QR_ prefix (e.g. "mem_min_jaccard" → QR_MEM_MIN_JACCARD), an optional YAML
// config file, and the defaults below. The API key and the identity fields
// keep their historical unprefixed names: OPENAI_API_KEY, QUICKRIZZ_NAME and
// QUICKRIZZ_STYLE.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bdobrica/quickrizz/internal/quickrizz/gateway"
	"github.com/bdobrica/quickrizz/internal/quickrizz/memory"
)

// Viper keys.
const (
	KeyAPIKey        = "api_key"
	KeyBaseURL       = "base_url"
	KeyModel         = "model"
	KeyMaxTokens     = "max_tokens"
	KeyMinIntervalMS = "min_interval_ms"
	KeyMaxRetries    = "max_retries"
	KeyBackoffBase   = "backoff_base"
	KeyBackoffCap    = "backoff_cap"
	KeyTimeout       = "timeout"
	KeyName          = "name"
	KeyStyle         = "style"
	KeyContextWindow = "context_window"
	KeyMemEnable     = "mem_enable"
	KeyMemTopKKeys   = "mem_topk_keys"
	KeyMemMinJaccard = "mem_min_jaccard"
	KeyMemMinLen     = "mem_min_len"
	KeyMemPrefLiked  = "mem_pref_liked"
	KeyMemMergeLimit = "mem_merge_limit"
	KeyMinSpiceFloor = "min_spice_floor"
	KeyDB            = "db"
	KeyCommits       = "commits"
	KeySlang         = "slang"
	KeyHTTPAddr      = "http_addr"
	KeyLogLevel      = "log_level"
	KeyMetrics       = "metrics_interval"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "QR"

var defaults = map[string]any{
	KeyBaseURL:       "https://api.openai.com/v1",
	KeyModel:         "gpt-4o-mini",
	KeyMaxTokens:     120,
	KeyMinIntervalMS: 2500,
	KeyMaxRetries:    4,
	KeyBackoffBase:   0.9,
	KeyBackoffCap:    8.0,
	KeyTimeout:       gateway.DefaultTimeout,
	KeyName:          "Wingman",
	KeyStyle:         "playful, concise, confident, flirty",
	KeyContextWindow: 10,
	KeyMemEnable:     true,
	KeyMemTopKKeys:   5,
	KeyMemMinJaccard: 0.22,
	KeyMemMinLen:     6,
	KeyMemPrefLiked:  true,
	KeyMemMergeLimit: 3,
	KeyMinSpiceFloor: 2,
	KeyDB:            "qrizz.db",
	KeyCommits:       "qr_commits.json",
	KeySlang:         "",
	KeyHTTPAddr:      ":8000",
	KeyLogLevel:      "info",
	KeyMetrics:       time.Minute,
}

// unprefixed maps keys to the environment variables they are read from
// instead of QR_<KEY>.
var unprefixed = map[string]string{
	KeyAPIKey: "OPENAI_API_KEY",
	KeyName:   "QUICKRIZZ_NAME",
	KeyStyle:  "QUICKRIZZ_STYLE",
}

// ErrMissingAPIKey is returned by RequireAPIKey.
var ErrMissingAPIKey = errors.New("config: OPENAI_API_KEY not set")

// Config is the resolved configuration.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	MinInterval time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Timeout     time.Duration

	Name  string
	Style string

	ContextWindow int

	MemEnable     bool
	MemTopKKeys   int
	MemMinJaccard float64
	MemMinLen     int
	MemPrefLiked  bool
	MemMergeLimit int

	MinSpiceFloor int

	DBPath      string
	CommitsPath string
	SlangPath   string

	HTTPAddr string
	LogLevel slog.Level

	// MetricsInterval is how often metrics are exported; zero disables them.
	MetricsInterval time.Duration
}

// NewViper returns a Viper instance with defaults and environment binding
// in place. When configFile is non-empty it is read as YAML.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k, env := range unprefixed {
		if err := v.BindEnv(k, env); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load resolves a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		APIKey:        strings.TrimSpace(v.GetString(KeyAPIKey)),
		BaseURL:       v.GetString(KeyBaseURL),
		Model:         v.GetString(KeyModel),
		MaxTokens:     v.GetInt(KeyMaxTokens),
		MinInterval:   time.Duration(v.GetInt(KeyMinIntervalMS)) * time.Millisecond,
		MaxRetries:    v.GetInt(KeyMaxRetries),
		BackoffBase:   seconds(v.GetFloat64(KeyBackoffBase)),
		BackoffCap:    seconds(v.GetFloat64(KeyBackoffCap)),
		Timeout:       v.GetDuration(KeyTimeout),
		Name:          strings.TrimSpace(v.GetString(KeyName)),
		Style:         strings.TrimSpace(v.GetString(KeyStyle)),
		ContextWindow: v.GetInt(KeyContextWindow),
		MemEnable:     v.GetBool(KeyMemEnable),
		MemTopKKeys:   v.GetInt(KeyMemTopKKeys),
		MemMinJaccard: v.GetFloat64(KeyMemMinJaccard),
		MemMinLen:     v.GetInt(KeyMemMinLen),
		MemPrefLiked:  v.GetBool(KeyMemPrefLiked),
		MemMergeLimit: v.GetInt(KeyMemMergeLimit),
		MinSpiceFloor: v.GetInt(KeyMinSpiceFloor),
		DBPath:        v.GetString(KeyDB),
		CommitsPath:   v.GetString(KeyCommits),
		SlangPath:     v.GetString(KeySlang),
		HTTPAddr:      v.GetString(KeyHTTPAddr),

		MetricsInterval: v.GetDuration(KeyMetrics),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return nil, fmt.Errorf("config: log_level: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Validate reports the first structural problem in c.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: must not be nil")
	}
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.Model != "", "model must not be empty"},
		{c.BaseURL != "", "base_url must not be empty"},
		{c.MaxTokens > 0, "max_tokens must be positive"},
		{c.MinInterval >= 0, "min_interval_ms must not be negative"},
		{c.MaxRetries >= 1, "max_retries must be at least 1"},
		{c.BackoffBase > 0, "backoff_base must be positive"},
		{c.BackoffCap >= c.BackoffBase, "backoff_cap must not be below backoff_base"},
		{c.Timeout > 0, "timeout must be positive"},
		{c.ContextWindow >= 1, "context_window must be at least 1"},
		{c.MemTopKKeys >= 1, "mem_topk_keys must be at least 1"},
		{c.MemMinJaccard > 0 && c.MemMinJaccard <= 1, "mem_min_jaccard must be in (0, 1]"},
		{c.MemMinLen >= 1, "mem_min_len must be at least 1"},
		{c.MemMergeLimit >= 0, "mem_merge_limit must not be negative"},
		{c.MinSpiceFloor >= 0 && c.MinSpiceFloor <= 3, "min_spice_floor must be in [0, 3]"},
		{c.DBPath != "", "db must not be empty"},
		{c.CommitsPath != "", "commits must not be empty"},
		{c.HTTPAddr != "", "http_addr must not be empty"},
		{c.MetricsInterval >= 0, "metrics_interval must not be negative"},
	}
	for _, ch := range checks {
		if !ch.ok {
			return fmt.Errorf("config: %s", ch.msg)
		}
	}
	return nil
}

// RequireAPIKey fails when no API key is configured.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Gateway returns the gateway settings.
func (c *Config) Gateway() gateway.Config {
	return gateway.Config{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		MinInterval: c.MinInterval,
		MaxAttempts: c.MaxRetries,
		BackoffBase: c.BackoffBase,
		BackoffCap:  c.BackoffCap,
		Timeout:     c.Timeout,
	}
}

// Memory returns the recall index settings.
func (c *Config) Memory() memory.Options {
	return memory.Options{
		Disabled:    !c.MemEnable,
		TopK:        c.MemTopKKeys,
		MinJaccard:  c.MemMinJaccard,
		MinLen:      c.MemMinLen,
		PreferLiked: c.MemPrefLiked,
	}
}

// LogValue implements slog.LogValuer. The API key is never logged.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("model", c.Model),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Duration("min_interval", c.MinInterval),
		slog.Int("max_retries", c.MaxRetries),
		slog.Bool("mem_enable", c.MemEnable),
		slog.Int("min_spice_floor", c.MinSpiceFloor),
		slog.String("db", c.DBPath),
		slog.String("commits", c.CommitsPath),
		slog.String("http_addr", c.HTTPAddr),
		slog.Duration("metrics_interval", c.MetricsInterval),
	)
}
