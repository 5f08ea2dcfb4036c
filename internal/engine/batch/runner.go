// Package batch runs many independent scraping sessions concurrently.
package batch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/semaphore"

	"github.com/law-makers/revscrape/internal/cache"
	"github.com/law-makers/revscrape/internal/engine"
	"github.com/law-makers/revscrape/internal/page"
	"github.com/law-makers/revscrape/internal/proxy"
	"github.com/law-makers/revscrape/internal/ratelimit"
	"github.com/law-makers/revscrape/pkg/models"
)

// Scraper runs one session with explicit page options
type Scraper interface {
	RunWith(ctx context.Context, url string, opts page.OpenOptions) (*models.Report, error)
}

// Options configures a Runner. Zero values disable the optional parts.
type Options struct {
	// Concurrency is the number of simultaneous sessions; <= 0 auto-tunes
	Concurrency int
	Limiter     ratelimit.RateLimiter
	Proxies     *proxy.Pool
	Cache       cache.Cache
	CacheTTL    time.Duration
	// Progress receives a progress bar when set
	Progress io.Writer
}

// Runner fans URLs out over a bounded number of sessions
type Runner struct {
	scraper Scraper
	opts    Options
}

// New creates a Runner
func New(scraper Scraper, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = OptimalConcurrency()
	}
	return &Runner{scraper: scraper, opts: opts}
}

// Concurrency returns the effective number of parallel sessions
func (r *Runner) Concurrency() int {
	return r.opts.Concurrency
}

// Run starts a session per distinct URL and streams results as sessions
// finish. The channel is closed once every URL has a result.
func (r *Runner) Run(ctx context.Context, urls []string) <-chan models.BatchResult {
	urls = Interleave(dedupe(urls, cache.Key))
	results := make(chan models.BatchResult, len(urls))

	bar := r.newBar(len(urls))

	go func() {
		defer close(results)

		sem := semaphore.NewWeighted(int64(r.opts.Concurrency))
		var wg sync.WaitGroup

		for _, u := range urls {
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- models.BatchResult{URL: u, Error: err}
				bar.Add(1)
				continue
			}

			wg.Add(1)
			go func(u string) {
				defer wg.Done()
				defer sem.Release(1)

				results <- r.one(ctx, u)
				bar.Add(1)
			}(u)
		}

		wg.Wait()
		bar.Finish()
	}()

	return results
}

// RunAll is Run collected into the order of the distinct input URLs
func (r *Runner) RunAll(ctx context.Context, urls []string) []models.BatchResult {
	order := dedupe(urls, cache.Key)
	index := make(map[string]int, len(order))
	for i, u := range order {
		index[u] = i
	}

	out := make([]models.BatchResult, len(order))
	for res := range r.Run(ctx, urls) {
		out[index[res.URL]] = res
	}
	return out
}

// one runs or serves from cache a single URL
func (r *Runner) one(ctx context.Context, u string) models.BatchResult {
	key := cache.Key(u)
	if r.opts.Cache != nil {
		if report, ok := r.opts.Cache.Get(key); ok {
			return models.BatchResult{URL: u, Report: report, Cached: true}
		}
	}

	if r.opts.Limiter != nil {
		if err := r.opts.Limiter.Wait(ctx, u); err != nil {
			return models.BatchResult{URL: u, Error: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	var proxyAddr string
	if r.opts.Proxies != nil {
		proxyAddr = r.opts.Proxies.Next()
	}

	report, err := r.scraper.RunWith(ctx, u, page.OpenOptions{Proxy: proxyAddr})
	if err != nil {
		if proxyAddr != "" && engine.IsRetryable(err) {
			r.opts.Proxies.MarkFailed(proxyAddr)
		}
		log.Warn().Err(err).Str("url", u).Str("proxy", proxyAddr).Msg("Batch session failed")
		return models.BatchResult{URL: u, Report: report, Error: err}
	}

	if proxyAddr != "" {
		r.opts.Proxies.MarkHealthy(proxyAddr)
	}
	if r.opts.Cache != nil && cache.Cacheable(report) {
		r.opts.Cache.Set(key, report, r.opts.CacheTTL)
	}
	return models.BatchResult{URL: u, Report: report}
}

func (r *Runner) newBar(n int) *progressbar.ProgressBar {
	if r.opts.Progress == nil {
		return progressbar.NewOptions(n, progressbar.OptionSetVisibility(false))
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(r.opts.Progress),
		progressbar.OptionSetDescription("Scraping"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}
