package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/revscrape/internal/config"
	"github.com/law-makers/revscrape/internal/engine"
	"github.com/law-makers/revscrape/internal/engine/static"
	"github.com/law-makers/revscrape/internal/page"
	urlutil "github.com/law-makers/revscrape/internal/utils/url"
	"github.com/law-makers/revscrape/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	ms := time.Millisecond
	cfg := config.Defaults()
	cfg.Retries = 0
	cfg.Diagnostics = false
	cfg.DiagnosticsDir = t.TempDir()
	cfg.CachePath = filepath.Join(t.TempDir(), "reports.db")
	cfg.Timeout = 10 * time.Second
	cfg.Timings = config.Timings{
		Navigate:      time.Second,
		ContainerWait: 50 * ms,
		Grace:         ms,
		ExpandWait:    ms,
		Render:        ms,
		Response:      20 * ms,
		Change:        200 * ms,
		Settle:        ms,
		Overlay:       50 * ms,
	}
	return cfg
}

func TestNew(t *testing.T) {
	cfg := testConfig(t)
	cfg.Proxy = "http://p1:8080, http://p2:8080"
	cfg.Headers = []string{"Accept-Language: en-US"}
	cfg.BlockPatterns = []string{"https://tracker.example.com/"}

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Equal(t, 2, a.Proxies.Len())
	assert.Contains(t, a.Policy.Patterns(), "https://tracker.example.com/")
	assert.NotNil(t, a.Harvester)
	assert.NotNil(t, a.Opener)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Headers = []string{"no colon"}
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close(context.Background())

	testdata := filepath.Join("..", "engine", "static", "testdata")
	report, err := a.Replay(context.Background(),
		filepath.Join(testdata, "widget-page1.html"),
		filepath.Join(testdata, "widget-page2.html"),
	)
	require.NoError(t, err)
	require.Len(t, report.Records, 6)
	assert.Equal(t, "Alice M.", report.Records[0].Name)
	assert.Equal(t, "Finn T.", report.Records[5].Name)
	assert.Equal(t, models.StopCompleted, report.Stop)

	_, err = a.Replay(context.Background())
	assert.Error(t, err)

	_, err = a.Replay(context.Background(), filepath.Join(testdata, "missing.html"))
	assert.Error(t, err)
}

func TestBatchCapsConcurrency(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Equal(t, config.DefaultMaxConcurrency, a.Batch(50, nil).Concurrency())
	assert.Equal(t, 3, a.Batch(3, nil).Concurrency())
}

func TestConfigureLogging(t *testing.T) {
	defer func(l zerolog.Logger, lvl zerolog.Level) {
		log.Logger = l
		zerolog.SetGlobalLevel(lvl)
	}(log.Logger, zerolog.GlobalLevel())

	var buf bytes.Buffer
	cfg := config.Defaults()
	cfg.JSONLog = true
	cfg.LogLevel = "warn"
	ConfigureLogging(cfg, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestConfigureLogging_File(t *testing.T) {
	defer func(l zerolog.Logger, lvl zerolog.Level) {
		log.Logger = l
		zerolog.SetGlobalLevel(lvl)
	}(log.Logger, zerolog.GlobalLevel())

	var buf bytes.Buffer
	cfg := config.Defaults()
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "revscrape.log")
	ConfigureLogging(cfg, &buf)

	log.Info().Str("url", "https://shop.example.com").Msg("Session started")

	raw, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"url":"https://shop.example.com"`)
	assert.Contains(t, buf.String(), "Session started")
}

func TestScrape_ReusesReportsAcrossRuns(t *testing.T) {
	cfg := testConfig(t)
	testdata := filepath.Join("..", "engine", "static", "testdata")
	docs, err := static.ReadFiles(
		filepath.Join(testdata, "widget-page1.html"),
		filepath.Join(testdata, "widget-page2.html"),
	)
	require.NoError(t, err)
	target, err := urlutil.FileURL(filepath.Join(testdata, "widget-page1.html"))
	require.NoError(t, err)

	first, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, first.Cache)
	first.Harvester = engine.NewHarvester(static.NewOpener(docs...), cfg)

	report, cached, err := first.Scrape(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, report.Records, 6)
	require.NoError(t, first.Close(context.Background()))

	second, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer second.Close(context.Background())
	second.Harvester = engine.NewHarvester(page.OpenerFunc(func(context.Context, page.OpenOptions) (page.Page, error) {
		return nil, errors.New("browser must not be opened")
	}), cfg)

	report, cached, err = second.Scrape(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, cached)
	require.Len(t, report.Records, 6)
	assert.Equal(t, "Alice M.", report.Records[0].Name)
}

func TestNew_CacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.CachePath = ""

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close(context.Background())
	assert.Nil(t, a.Cache)
	assert.Equal(t, 3, a.Batch(3, nil).Concurrency())
}
