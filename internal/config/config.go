package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

// Timings bounds every wait the engine performs
type Timings struct {
	// Navigate caps opening the URL and waiting for the network to settle
	Navigate time.Duration
	// ContainerWait caps waiting for the review list to appear
	ContainerWait time.Duration
	// Grace is the pause before retrying an unresolved review list
	Grace time.Duration
	// ExpandWait is the pause after activating the expand control
	ExpandWait time.Duration
	// Render is the pause after the review list appears
	Render time.Duration
	// Response caps the advisory wait for the widget's batch-fetch response
	Response time.Duration
	// Change caps the wait for page content to change after navigation
	Change time.Duration
	// Settle is the fixed delay after a page-number or generic next click
	Settle time.Duration
	// Overlay caps each overlay suppression technique
	Overlay time.Duration
}

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool
	// LogFile receives a rotated JSON copy of the log when set
	LogFile string

	// Browser session
	Headless    bool
	ChromePath  string
	UserAgent   string
	Proxy       string
	SessionName string
	Headers     []string
	Timeout     time.Duration
	Retries     int

	// Diagnostics
	Diagnostics    bool
	DiagnosticsDir string

	// Network policy
	BlockPatterns []string

	// Batch
	Concurrency    int
	RateLimitRPS   float64
	RateLimitBurst int
	CacheTTL       time.Duration
	CacheMaxSize   int
	// CachePath is the report cache database shared across runs; "" disables it
	CachePath string

	Timings Timings
}

// Defaults returns a Config populated with default values only
func Defaults() *Config {
	return &Config{
		LogLevel:       DefaultLogLevel,
		JSONLog:        DefaultJSONLog,
		Headless:       DefaultHeadless,
		UserAgent:      DefaultUserAgent,
		Timeout:        DefaultSessionTimeout,
		Retries:        DefaultRetries,
		Diagnostics:    DiagnosticsDefault(DefaultHeadless, os.Getenv(EnvPrefix+"ENV")),
		DiagnosticsDir: DefaultDiagnosticsDir,
		Concurrency:    DefaultConcurrency,
		RateLimitRPS:   DefaultRateLimitRPS,
		RateLimitBurst: DefaultRateLimitBurst,
		CacheTTL:       DefaultCacheTTL,
		CacheMaxSize:   DefaultCacheMaxSize,
		CachePath:      DefaultCachePath(),
		Timings:        DefaultTimings(),
	}
}

// DefaultTimings returns the waits tuned for the live widget
func DefaultTimings() Timings {
	return Timings{
		Navigate:      DefaultNavigateTimeout,
		ContainerWait: DefaultContainerWait,
		Grace:         DefaultGraceWait,
		ExpandWait:    DefaultExpandWait,
		Render:        DefaultRenderWait,
		Response:      DefaultResponseTimeout,
		Change:        DefaultChangeTimeout,
		Settle:        DefaultSettleWait,
		Overlay:       DefaultOverlayStepTimeout,
	}
}

// DiagnosticsDefault enables diagnostics for visible browsers or a development environment
func DiagnosticsDefault(headless bool, env string) bool {
	return !headless || strings.EqualFold(env, "development")
}

// Load builds a Config by combining defaults, environment variables, and CLI flags.
// Caller should pass the executing *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()

	// Override from environment variables
	if v := os.Getenv(EnvPrefix + "USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv(EnvPrefix + "PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv(EnvPrefix + "CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv(EnvPrefix + "DIAGNOSTICS_DIR"); v != "" {
		cfg.DiagnosticsDir = v
	}
	if v := os.Getenv(EnvPrefix + "CACHE"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv(EnvPrefix + "HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Headless = b
		}
	}

	// Read CLI flags if provided
	if cmd != nil {
		flags := cmd.Flags()
		if s := flagString(cmd, "user-agent"); s != "" {
			cfg.UserAgent = s
		}
		if s := flagString(cmd, "proxy"); s != "" {
			cfg.Proxy = s
		}
		if s := flagString(cmd, "chrome-path"); s != "" {
			cfg.ChromePath = s
		}
		if s := flagString(cmd, "session"); s != "" {
			cfg.SessionName = s
		}
		if s := flagString(cmd, "diagnostics-dir"); s != "" {
			cfg.DiagnosticsDir = s
		}
		if s := flagString(cmd, "cache"); s != "" {
			cfg.CachePath = s
		}
		if flagString(cmd, "no-cache") == "true" {
			cfg.CachePath = ""
		}
		if s := flagString(cmd, "log-file"); s != "" {
			cfg.LogFile = s
		}
		if s := flagString(cmd, "timeout"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("invalid --timeout %q: %w", s, err)
			}
			cfg.Timeout = d
		}
		if flagString(cmd, "json") == "true" {
			cfg.JSONLog = true
		}
		if flagString(cmd, "verbose") == "true" {
			cfg.LogLevel = "debug"
		}
		if flagString(cmd, "quiet") == "true" {
			cfg.LogLevel = "error"
		}
		if flagString(cmd, "headful") == "true" {
			cfg.Headless = false
		}
		if v, err := flags.GetStringArray("header"); err == nil && len(v) > 0 {
			cfg.Headers = v
		}
		if v, err := flags.GetStringArray("block"); err == nil && len(v) > 0 {
			cfg.BlockPatterns = v
		}
		if v, err := flags.GetInt("retries"); err == nil && flags.Changed("retries") {
			cfg.Retries = v
		}
		if v, err := flags.GetInt("concurrency"); err == nil && flags.Changed("concurrency") {
			cfg.Concurrency = v
		}
		if v, err := flags.GetFloat64("rate"); err == nil && flags.Changed("rate") {
			cfg.RateLimitRPS = v
		}
	}

	// Diagnostics follow headless unless set explicitly
	cfg.Diagnostics = DiagnosticsDefault(cfg.Headless, os.Getenv(EnvPrefix+"ENV"))
	if cmd != nil {
		if f := cmd.Flags().Lookup("diagnostics"); f != nil && f.Changed {
			cfg.Diagnostics = f.Value.String() == "true"
		}
	}

	for _, p := range []*string{&cfg.ChromePath, &cfg.DiagnosticsDir, &cfg.LogFile, &cfg.CachePath} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", *p, err)
		}
		*p = expanded
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func flagString(cmd *cobra.Command, name string) string {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}
