package config

import (
	"os"
	"path/filepath"
	"time"
)

// EnvPrefix prefixes every environment variable the tool reads
const EnvPrefix = "REVSCRAPE_"

// Default constants for application configuration
const (
	DefaultLogLevel       = "info"
	DefaultJSONLog        = false
	DefaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	DefaultHeadless       = true
	DefaultSessionTimeout = 5 * time.Minute
	DefaultRetries        = 2
	DefaultDiagnosticsDir = "diagnostics"

	DefaultConcurrency    = 2
	DefaultMaxConcurrency = 10
	DefaultRateLimitRPS   = 0.5
	DefaultRateLimitBurst = 1
	DefaultCacheTTL       = 6 * time.Hour
	DefaultCacheMaxSize   = 256
	DefaultCacheFile      = "reports.db"

	DefaultNavigateTimeout    = 30 * time.Second
	DefaultContainerWait      = 15 * time.Second
	DefaultGraceWait          = 3 * time.Second
	DefaultExpandWait         = 2 * time.Second
	DefaultRenderWait         = 2 * time.Second
	DefaultResponseTimeout    = 10 * time.Second
	DefaultChangeTimeout      = 30 * time.Second
	DefaultSettleWait         = 2 * time.Second
	DefaultOverlayStepTimeout = 5 * time.Second

	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 1024
)

// DefaultCachePath returns the report cache location under the user cache
// directory, or "" when there is none.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "revscrape", DefaultCacheFile)
}
