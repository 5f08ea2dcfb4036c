// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/law-makers/revscrape/internal/auth"
	"github.com/law-makers/revscrape/internal/cache"
	"github.com/law-makers/revscrape/internal/config"
	"github.com/law-makers/revscrape/internal/engine"
	"github.com/law-makers/revscrape/internal/engine/batch"
	"github.com/law-makers/revscrape/internal/engine/dynamic"
	"github.com/law-makers/revscrape/internal/engine/static"
	"github.com/law-makers/revscrape/internal/netpolicy"
	"github.com/law-makers/revscrape/internal/page"
	"github.com/law-makers/revscrape/internal/proxy"
	"github.com/law-makers/revscrape/internal/ratelimit"
	"github.com/law-makers/revscrape/internal/utils/headers"
	urlutil "github.com/law-makers/revscrape/internal/utils/url"
	"github.com/law-makers/revscrape/pkg/models"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once per command invocation. Use Close() to release the cache.
// Cache is nil when caching is disabled or the database cannot be opened.
// Browsers are not held here: every session launches and closes its own.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Sessions    *auth.Store
	Policy      *netpolicy.Policy
	Cache       cache.Cache
	RateLimiter ratelimit.RateLimiter
	Proxies     *proxy.Pool
	Opener      page.Opener
	Harvester   *engine.Harvester
	startTime   time.Time
}

// Rotation limits for the optional log file
const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 3
	logFileMaxAgeDays = 28
)

// ConfigureLogging sets the global zerolog level and writer from cfg.
// When cfg.LogFile is set every event is also written there as JSON.
func ConfigureLogging(cfg *config.Config, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	if w == nil {
		w = os.Stderr
	}
	if !cfg.JSONLog {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	if cfg.LogFile != "" {
		w = zerolog.MultiLevelWriter(w, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			MaxAge:     logFileMaxAgeDays,
			Compress:   true,
		})
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Parses extra request headers
//   - Loads the saved cookie session named by the config, if any
//   - Builds the request policy, proxy pool, rate limiter and result cache
//   - Creates the Chrome page opener and the harvester over it
//
// If any step fails, an error is returned.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := log.Logger

	hdrs, err := headers.Parse(cfg.Headers)
	if err != nil {
		return nil, err
	}

	store := auth.NewStore()
	var cookies []auth.Cookie
	if cfg.SessionName != "" {
		session, err := store.Load(cfg.SessionName)
		if err != nil {
			return nil, fmt.Errorf("load session %q: %w", cfg.SessionName, err)
		}
		cookies = session.Cookies
		for k, v := range session.Headers {
			if _, set := hdrs[k]; !set {
				hdrs[k] = v
			}
		}
		logger.Debug().
			Str("session", cfg.SessionName).
			Int("cookies", len(cookies)).
			Msg("Cookie session loaded")
	}

	policy := netpolicy.New(cfg.BlockPatterns...)
	proxies := proxy.NewPool(proxy.Parse(cfg.Proxy), 0)
	limiter := ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	var reports cache.Cache
	if cfg.CachePath != "" {
		store, err := cache.Open(cfg.CachePath, cfg.CacheMaxSize, cfg.CacheTTL)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.CachePath).Msg("Report cache unavailable, continuing without it")
		} else {
			reports = store
		}
	}

	opts := dynamic.OptionsFromConfig(cfg, hdrs, cookies, policy)
	// proxies are chosen per session from the pool
	opts.Proxy = ""
	opener := dynamic.NewOpener(opts)

	logger.Debug().
		Bool("headless", cfg.Headless).
		Bool("diagnostics", cfg.Diagnostics).
		Int("proxies", proxies.Len()).
		Str("cache", cfg.CachePath).
		Strs("block", policy.Patterns()).
		Msg("Application initialized")

	return &Application{
		Config:      cfg,
		Logger:      &logger,
		Sessions:    store,
		Policy:      policy,
		Cache:       reports,
		RateLimiter: limiter,
		Proxies:     proxies,
		Opener:      opener,
		Harvester:   engine.NewHarvester(opener, cfg),
		startTime:   time.Now(),
	}, nil
}

// Scrape serves url from the report cache when a recent complete report
// exists, otherwise it runs one live session over the next proxy in the pool.
// The bool reports a cache hit.
func (a *Application) Scrape(ctx context.Context, url string) (*models.Report, bool, error) {
	key := cache.Key(url)
	if a.Cache != nil {
		if report, ok := a.Cache.Get(key); ok {
			a.Logger.Info().Str("url", url).Msg("Serving reviews from cache")
			return report, true, nil
		}
	}

	proxyAddr := a.Proxies.Next()
	report, err := a.Harvester.RunWith(ctx, url, page.OpenOptions{Proxy: proxyAddr})
	if err != nil && proxyAddr != "" && engine.IsRetryable(err) {
		a.Proxies.MarkFailed(proxyAddr)
	}
	if err == nil && a.Cache != nil && cache.Cacheable(report) {
		a.Cache.Set(key, report, a.Config.CacheTTL)
	}
	return report, false, err
}

// Batch returns a runner sharing this application's cache, limiter and proxies
func (a *Application) Batch(concurrency int, progress io.Writer) *batch.Runner {
	if concurrency > config.DefaultMaxConcurrency {
		a.Logger.Warn().
			Int("requested", concurrency).
			Int("max", config.DefaultMaxConcurrency).
			Msg("Concurrency capped")
		concurrency = config.DefaultMaxConcurrency
	}
	return batch.New(a.Harvester, batch.Options{
		Concurrency: concurrency,
		Limiter:     a.RateLimiter,
		Proxies:     a.Proxies,
		Cache:       a.Cache,
		CacheTTL:    a.Config.CacheTTL,
		Progress:    progress,
	})
}

// Replay runs a session over saved widget pages instead of a live browser.
// The first file is the landing page; the rest are the following widget pages.
func (a *Application) Replay(ctx context.Context, paths ...string) (*models.Report, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("replay needs at least one HTML file")
	}
	docs, err := static.ReadFiles(paths...)
	if err != nil {
		return nil, err
	}
	target, err := urlutil.FileURL(paths[0])
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", paths[0], err)
	}

	h := engine.NewHarvester(static.NewOpener(docs...), a.Config)
	return h.Run(ctx, target)
}

// Close releases the application's resources.
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Closing report cache")
		}
	}

	blocked, allowed := a.Policy.Stats()
	a.Logger.Debug().
		Int64("blocked_requests", blocked).
		Int64("allowed_requests", allowed).
		Dur("uptime", time.Since(a.startTime)).
		Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
