package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/revscrape/internal/cache"
	"github.com/law-makers/revscrape/internal/engine"
	"github.com/law-makers/revscrape/internal/page"
	"github.com/law-makers/revscrape/internal/proxy"
	"github.com/law-makers/revscrape/pkg/models"
)

type fakeScraper struct {
	mu      sync.Mutex
	calls   []string
	proxies []string
	active  atomic.Int32
	peak    atomic.Int32
	fail    map[string]error
	stop    map[string]models.StopReason
}

func openCache(t *testing.T) *cache.Store {
	t.Helper()
	c, err := cache.Open(":memory:", 10, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func (f *fakeScraper) RunWith(ctx context.Context, url string, opts page.OpenOptions) (*models.Report, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.proxies = append(f.proxies, opts.Proxy)
	f.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	report := &models.Report{URL: url, Records: models.ScrapeResult{{Name: url}}, Stop: models.StopCompleted}
	if stop, ok := f.stop[url]; ok {
		report.Stop = stop
	}
	if err := f.fail[url]; err != nil {
		report.Records = models.ScrapeResult{}
		return report, err
	}
	return report, nil
}

func TestRunner_ConcurrencyBound(t *testing.T) {
	f := &fakeScraper{}
	r := New(f, Options{Concurrency: 2})

	urls := []string{
		"https://a.example.com/1", "https://a.example.com/2", "https://b.example.com/1",
		"https://c.example.com/1", "https://b.example.com/2",
	}
	results := r.RunAll(context.Background(), urls)

	require.Len(t, results, 5)
	for i, res := range results {
		assert.Equal(t, urls[i], res.URL, "results follow input order")
		assert.NoError(t, res.Error)
		require.NotNil(t, res.Report)
	}
	assert.LessOrEqual(t, f.peak.Load(), int32(2))
	assert.Len(t, f.calls, 5)
}

func TestRunner_ErrorsAndDuplicates(t *testing.T) {
	boom := engine.NewEngineError(engine.ErrCodeContainerNotFound, "no reviews", engine.ErrContainerNotFound)
	f := &fakeScraper{fail: map[string]error{"https://b.example.com/": boom}}
	r := New(f, Options{Concurrency: 3})

	results := r.RunAll(context.Background(), []string{
		"https://a.example.com/", "https://b.example.com/", "https://A.example.com/#reviews",
	})

	require.Len(t, results, 2, "duplicate URL collapsed")
	assert.NoError(t, results[0].Error)
	assert.ErrorIs(t, results[1].Error, engine.ErrContainerNotFound)
	require.NotNil(t, results[1].Report)
	assert.Empty(t, results[1].Report.Records)
}

func TestRunner_CacheServesRepeats(t *testing.T) {
	f := &fakeScraper{}
	c := openCache(t)
	r := New(f, Options{Concurrency: 1, Cache: c})

	first := r.RunAll(context.Background(), []string{"https://a.example.com/p"})
	require.Len(t, first, 1)
	assert.False(t, first[0].Cached)

	second := r.RunAll(context.Background(), []string{"https://a.example.com/p"})
	require.Len(t, second, 1)
	assert.True(t, second[0].Cached)
	assert.Equal(t, first[0].Report.Records, second[0].Report.Records)
	assert.Len(t, f.calls, 1)
}

func TestRunner_FailedSessionsAreNotCached(t *testing.T) {
	f := &fakeScraper{fail: map[string]error{"https://a.example.com/p": errors.New("boom")}}
	c := openCache(t)
	r := New(f, Options{Concurrency: 1, Cache: c})

	r.RunAll(context.Background(), []string{"https://a.example.com/p"})
	r.RunAll(context.Background(), []string{"https://a.example.com/p"})
	assert.Len(t, f.calls, 2)
}

func TestRunner_PartialReportsAreNotCached(t *testing.T) {
	f := &fakeScraper{stop: map[string]models.StopReason{
		"https://a.example.com/p": models.StopNavigationFailed,
		"https://b.example.com/p": models.StopTimeout,
		"https://c.example.com/p": models.StopExhausted,
	}}
	c := openCache(t)
	r := New(f, Options{Concurrency: 1, Cache: c})

	urls := []string{"https://a.example.com/p", "https://b.example.com/p", "https://c.example.com/p"}
	r.RunAll(context.Background(), urls)
	second := r.RunAll(context.Background(), urls)

	assert.Len(t, f.calls, 5, "only the exhausted report is served from cache")
	assert.False(t, second[0].Cached)
	assert.False(t, second[1].Cached)
	assert.True(t, second[2].Cached)
}

func TestRunner_ProxyRotationAndFailure(t *testing.T) {
	openErr := engine.NewEngineError(engine.ErrCodeSessionError, "open page session", engine.ErrSessionFailed).WithRetry()
	f := &fakeScraper{fail: map[string]error{"https://a.example.com/1": openErr}}
	pool := proxy.NewPool([]string{"http://p1:8080", "http://p2:8080"}, time.Hour)
	r := New(f, Options{Concurrency: 1, Proxies: pool})

	r.RunAll(context.Background(), []string{"https://a.example.com/1"})
	require.Equal(t, []string{"http://p1:8080"}, f.proxies)

	// p1 failed with a retryable error, so both following sessions use p2
	r.RunAll(context.Background(), []string{"https://b.example.com/1", "https://c.example.com/1"})
	assert.Equal(t, []string{"http://p1:8080", "http://p2:8080", "http://p2:8080"}, f.proxies)
}

func TestRunner_CancelledContext(t *testing.T) {
	f := &fakeScraper{}
	r := New(f, Options{Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count := 0
	for res := range r.Run(ctx, []string{"https://a.example.com/1", "https://b.example.com/1", "https://c.example.com/1"}) {
		count++
		if res.Error != nil {
			assert.ErrorIs(t, res.Error, context.Canceled)
		}
	}
	assert.Equal(t, 3, count)
}

func TestInterleave(t *testing.T) {
	got := Interleave([]string{
		"https://a.com/1", "https://a.com/2", "https://a.com/3", "https://b.com/1", "https://c.com/1", "https://b.com/2",
	})
	want := []string{
		"https://a.com/1", "https://b.com/1", "https://c.com/1", "https://a.com/2", "https://b.com/2", "https://a.com/3",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Interleave() mismatch (-want +got):\n%s", diff)
	}
}

func TestOptimalConcurrency(t *testing.T) {
	n := OptimalConcurrency()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 10)
}
