package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/revscrape/internal/config"
	"github.com/law-makers/revscrape/internal/diagnostics"
	"github.com/law-makers/revscrape/internal/engine/metadata"
	"github.com/law-makers/revscrape/internal/extract"
	"github.com/law-makers/revscrape/internal/navigation"
	"github.com/law-makers/revscrape/internal/overlay"
	"github.com/law-makers/revscrape/internal/page"
	"github.com/law-makers/revscrape/internal/pagination"
	"github.com/law-makers/revscrape/internal/reqctx"
	"github.com/law-makers/revscrape/internal/retry"
	"github.com/law-makers/revscrape/internal/selectors"
	urlutil "github.com/law-makers/revscrape/internal/utils/url"
	"github.com/law-makers/revscrape/pkg/models"
)

const (
	pollInterval = 250 * time.Millisecond

	// widgetProbe lists elements that look like the widget when the container is missing
	widgetProbe = `[class*="yotpo"], [id*="yotpo"]`
	probeLimit  = 10

	// mainWidgetMarker identifies item-list variants that are also the container
	mainWidgetMarker = "yotpo-reviews-main-widget"
)

// Harvester runs one scraping session per call over pages from its Opener
type Harvester struct {
	opener  page.Opener
	cfg     *config.Config
	catalog selectors.Catalog

	// newSink builds the diagnostics sink of one session
	newSink func(sessionID, url string, logger zerolog.Logger) diagnostics.Sink
}

var _ Scraper = (*Harvester)(nil)

// NewHarvester creates a Harvester using the default selector catalog
func NewHarvester(opener page.Opener, cfg *config.Config) *Harvester {
	h := &Harvester{
		opener:  opener,
		cfg:     cfg,
		catalog: selectors.DefaultCatalog(),
	}
	h.newSink = h.fileSink
	return h
}

// WithCatalog replaces the selector catalog used by new sessions
func (h *Harvester) WithCatalog(cat selectors.Catalog) *Harvester {
	h.catalog = cat
	return h
}

// WithSink replaces the diagnostics sink factory
func (h *Harvester) WithSink(newSink func(sessionID, url string, logger zerolog.Logger) diagnostics.Sink) *Harvester {
	h.newSink = newSink
	return h
}

// Name returns the name of this scraper
func (h *Harvester) Name() string {
	return "ReviewHarvester"
}

func (h *Harvester) fileSink(sessionID, url string, logger zerolog.Logger) diagnostics.Sink {
	if !h.cfg.Diagnostics {
		return diagnostics.Nop{}
	}
	return diagnostics.NewFileSink(filepath.Join(h.cfg.DiagnosticsDir, sessionID), url, logger)
}

// Scrape harvests url and returns whatever records were collected. It never
// fails: errors are logged and yield an empty or partial result.
func (h *Harvester) Scrape(ctx context.Context, url string) models.ScrapeResult {
	report, err := h.Run(ctx, url)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Scrape failed")
	}
	if report == nil || report.Records == nil {
		return models.ScrapeResult{}
	}
	return report.Records
}

// session is the state of one Run
type session struct {
	*Harvester
	p       page.Page
	url     string
	catalog selectors.Catalog
	sink    diagnostics.Sink
	logger  zerolog.Logger
	report  *models.Report
}

// Run harvests url and reports how the session ended. The returned report is
// never nil. Only session-fatal conditions return an error: an invalid URL, a
// page that cannot be opened or loaded, or a review list that never appears
// (ErrContainerNotFound). Navigation failures end the loop with partial results.
func (h *Harvester) Run(ctx context.Context, url string) (*models.Report, error) {
	return h.RunWith(ctx, url, page.OpenOptions{Proxy: h.cfg.Proxy})
}

// RunWith is Run with explicit page session options, such as a rotated proxy
func (h *Harvester) RunWith(ctx context.Context, url string, opts page.OpenOptions) (report *models.Report, err error) {
	ctx = reqctx.WithSession(ctx, url)
	sc := reqctx.FromContext(ctx)
	logger := log.With().Str("session_id", sc.SessionID).Str("url", url).Logger()

	report = &models.Report{
		SessionID:  sc.SessionID,
		URL:        url,
		Records:    models.ScrapeResult{},
		Pagination: models.PaginationState{TotalPages: 1, Source: models.PaginationSinglePage},
		StartedAt:  sc.StartTime,
	}
	defer func() {
		report.Duration = time.Since(sc.StartTime)
	}()

	if err := urlutil.ValidateURL(url); err != nil {
		report.Stop = models.StopSessionError
		return report, NewEngineError(ErrCodeValidation, "invalid target", fmt.Errorf("%w: %v", ErrInvalidURL, err))
	}

	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	s := &session{
		Harvester: h,
		url:       url,
		catalog:   h.catalog.Clone(),
		sink:      h.newSink(sc.SessionID, url, logger),
		logger:    logger,
		report:    report,
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Session panicked")
			report.Stop = models.StopSessionError
			err = NewEngineError(ErrCodeSessionError, "session panicked", fmt.Errorf("%w: %v", ErrUnexpectedShutdown, r))
		}
	}()

	logger.Debug().Bool("diagnostics", h.cfg.Diagnostics).Str("proxy", opts.Proxy).Msg("Starting review harvest")

	p, err := h.opener.Open(ctx, opts)
	if err != nil {
		report.Stop = models.StopSessionError
		return report, NewEngineError(ErrCodeSessionError, "open page session", fmt.Errorf("%w: %v", ErrSessionFailed, err)).WithRetry()
	}
	s.p = p
	defer func() {
		if cerr := p.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("Closing page session")
		}
		logger.Debug().Msg("Page session released")
	}()

	if err := s.run(ctx); err != nil {
		s.snapshot(ctx, "error-state", "Page state when error occurred")
		return report, err
	}

	logger.Info().
		Int("records", len(report.Records)).
		Int("pages", report.PagesVisited).
		Str("stop", string(report.Stop)).
		Msg("Scraping complete")
	return report, nil
}

func (s *session) run(ctx context.Context) error {
	if err := s.navigate(ctx); err != nil {
		s.report.Stop = models.StopSessionError
		return err
	}
	s.snapshot(ctx, "01-initial-load", "After initial page load")

	itemList, err := s.resolveItemList(ctx)
	if err != nil {
		s.report.Stop = models.StopContainerNotFound
		return err
	}
	s.describeProduct(ctx)

	if err := sleep(ctx, s.cfg.Timings.Render); err != nil {
		s.report.Stop = models.StopTimeout
		return nil
	}

	itemSel, visible := s.resolveItems(ctx, itemList)
	s.logger.Debug().Str("item_selector", itemSel).Int("visible", visible).Msg("Review items located")
	s.snapshot(ctx, "04-reviews-found", "After reviews selector found")

	overlay.New(s.logger, s.cfg.Timings.Overlay).Suppress(ctx, s.p)

	state := pagination.New(s.catalog, s.logger).Discover(ctx, s.p, visible)
	s.report.Pagination = state
	if state.Source != models.PaginationFromMetadata {
		s.snapshot(ctx, "05-pagination-error", "Pagination info missing")
	}
	s.logPagination(state)

	s.harvest(ctx, itemSel, state.TotalPages)
	return nil
}

func (s *session) navigate(ctx context.Context) error {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = s.cfg.Retries + 1

	err := retry.WithRetry(ctx, rc, func(ctx context.Context) error {
		navCtx, cancel := context.WithTimeout(ctx, s.cfg.Timings.Navigate)
		defer cancel()
		err := s.p.Navigate(navCtx, s.url)
		if err != nil && unrecoverableNavigation(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return NewEngineError(ErrCodeSessionError, "initial navigation", fmt.Errorf("%w: %v", ErrSessionFailed, err)).
			WithDetail("url", s.url)
	}
	s.logger.Debug().Msg("Page loaded")
	return nil
}

// unrecoverableNavErrors are Chrome net errors a reload cannot fix
var unrecoverableNavErrors = []string{
	"net::ERR_NAME_NOT_RESOLVED",
	"net::ERR_INVALID_URL",
	"net::ERR_UNKNOWN_URL_SCHEME",
	"net::ERR_CERT_",
	"net::ERR_BLOCKED_BY_CLIENT",
}

func unrecoverableNavigation(err error) bool {
	msg := err.Error()
	for _, code := range unrecoverableNavErrors {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// resolveItemList locates the review list: immediately, after the grace
// interval, after one expand click, then by polling up to the container wait.
func (s *session) resolveItemList(ctx context.Context) (string, error) {
	if _, err := selectors.Resolve(ctx, s.p, s.catalog, selectors.Container); err != nil {
		s.logger.Warn().Msg("Main widget container not found")
		s.probeWidget(ctx)
	}

	m, err := selectors.Resolve(ctx, s.p, s.catalog, selectors.ItemList)
	if err != nil {
		s.logger.Debug().Dur("grace", s.cfg.Timings.Grace).Msg("Review list not found, waiting for dynamic content")
		if err := sleep(ctx, s.cfg.Timings.Grace); err != nil {
			return "", s.containerNotFound(ctx, err)
		}
		s.snapshot(ctx, "02-after-wait", "After waiting for dynamic content")
		m, err = selectors.Resolve(ctx, s.p, s.catalog, selectors.ItemList)
	}

	if err != nil {
		if expanded := s.expand(ctx); expanded {
			m, err = selectors.Resolve(ctx, s.p, s.catalog, selectors.ItemList)
		}
	}

	if err != nil {
		m, err = s.waitItemList(ctx)
	}

	if err != nil {
		return "", s.containerNotFound(ctx, err)
	}

	s.catalog.Pin(selectors.ItemList, m.Selector)
	if strings.Contains(m.Selector, mainWidgetMarker) {
		s.catalog.Pin(selectors.Container, m.Selector)
	}
	s.logger.Debug().Str("selector", m.Selector).Int("candidate", m.Index).Msg("Review list resolved")
	return m.Selector, nil
}

func (s *session) expand(ctx context.Context) bool {
	for _, sel := range s.catalog.Candidates(selectors.ExpandControl) {
		n, err := s.p.Count(ctx, sel)
		if err != nil || n == 0 {
			continue
		}
		s.logger.Debug().Str("selector", sel).Msg("Clicking expand control")
		if err := s.p.Click(ctx, sel, 0); err != nil {
			s.logger.Debug().Err(err).Msg("Expand click failed")
			return false
		}
		if err := sleep(ctx, s.cfg.Timings.ExpandWait); err != nil {
			return false
		}
		s.snapshot(ctx, "02b-after-expand-click", "After clicking expand button")
		return true
	}
	return false
}

func (s *session) waitItemList(ctx context.Context) (selectors.Match, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.Timings.ContainerWait)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		m, err := selectors.Resolve(waitCtx, s.p, s.catalog, selectors.ItemList)
		if err == nil {
			return m, nil
		}
		select {
		case <-waitCtx.Done():
			return selectors.Match{}, fmt.Errorf("%w: %v", ErrWaitTimeout, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func (s *session) containerNotFound(ctx context.Context, cause error) error {
	s.snapshot(ctx, "03-selector-not-found", "Full page HTML when selector not found")
	return NewEngineError(ErrCodeContainerNotFound, "review list never appeared", fmt.Errorf("%w: %v", ErrContainerNotFound, cause)).
		WithDetail("candidates", s.catalog.Candidates(selectors.ItemList))
}

// resolveItems picks the item selector, preferring candidates scoped to the
// resolved list, and returns it with the number of visible items.
func (s *session) resolveItems(ctx context.Context, itemList string) (string, int) {
	var scoped []string
	for _, c := range s.catalog.Candidates(selectors.Item) {
		scoped = append(scoped, itemList+" "+c)
	}
	scoped = append(scoped, s.catalog.Candidates(selectors.Item)...)

	m, err := selectors.Resolve(ctx, s.p, selectors.Catalog{selectors.Item: scoped}, selectors.Item)
	if err != nil {
		s.logger.Warn().Str("item_list", itemList).Msg("Review list has no items")
		return scoped[0], 0
	}
	return m.Selector, m.Count
}

// harvest extracts every page, advancing until the last page or a failure
func (s *session) harvest(ctx context.Context, itemSel string, totalPages int) {
	extractor := extract.New(s.catalog, s.logger)
	chain := navigation.NewChain(s.catalog, itemSel, navigation.Timings{
		Response: s.cfg.Timings.Response,
		Change:   s.cfg.Timings.Change,
		Settle:   s.cfg.Timings.Settle,
	}, s.logger)

	for current := 1; ; current++ {
		res, err := extractor.Page(ctx, s.p, itemSel)
		if err != nil {
			s.logger.Warn().Err(err).Int("page", current).Msg("Could not read review items")
			s.report.Stop = models.StopPageFailed
			if ctx.Err() != nil {
				s.report.Stop = models.StopTimeout
			}
			return
		}
		s.report.Records = append(s.report.Records, res.Records...)
		s.report.PagesVisited = current
		s.logger.Info().Int("page", current).Int("reviews", len(res.Records)).Int("skipped", len(res.Skipped)).Msg("Harvested page")

		if ctx.Err() != nil {
			s.logger.Warn().Str("code", string(ErrCodeWaitTimeout)).Int("page", current).Msg("Session deadline reached")
			s.report.Stop = models.StopTimeout
			return
		}

		outcome := chain.Advance(ctx, s.p, current, totalPages)
		switch outcome.Kind {
		case models.Exhausted:
			s.report.Stop = models.StopCompleted
			return
		case models.Advanced:
			s.snapshot(ctx, fmt.Sprintf("07-page-%d-loaded", current+1), fmt.Sprintf("Page %d loaded", current+1))
			continue
		}

		s.snapshot(ctx, fmt.Sprintf("06-page-%d-navigation-failed", current), fmt.Sprintf("Page %d - Navigation failed", current))
		if ctx.Err() != nil {
			s.logger.Warn().Str("code", string(ErrCodeWaitTimeout)).Int("page", current).Msg("Session deadline reached while advancing")
			s.report.Stop = models.StopTimeout
			return
		}
		visibleNow, _ := s.p.Count(ctx, itemSel)
		if visibleNow == 0 {
			s.logger.Info().Int("page", current).Msg("No reviews visible, stopping pagination")
			s.report.Stop = models.StopExhausted
			return
		}

		navErr := NewEngineError(ErrCodeNavigationFailed, outcome.Reason, ErrNavigationFailed).
			WithDetail("page", current).
			WithDetail("total_pages", totalPages)
		s.logger.Warn().Err(navErr).Int("records", len(s.report.Records)).Msg("Stopping early with partial results")
		s.report.Stop = models.StopNavigationFailed
		return
	}
}

// describeProduct records the product details of the page; failures only log
func (s *session) describeProduct(ctx context.Context) {
	html, err := s.p.Content(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Could not read page for product details")
		return
	}
	info, err := metadata.Extract(html, s.url)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Could not parse product details")
		return
	}
	s.report.Product = info
	s.logger.Debug().
		Str("product", info.Name).
		Str("product_id", info.ProductID).
		Str("app_key", info.AppKey).
		Msg("Product identified")
}

func (s *session) logPagination(state models.PaginationState) {
	ev := s.logger.Info().Int("pages", state.TotalPages).Str("source", string(state.Source))
	if state.TotalItems != nil {
		ev = ev.Int("total_reviews", *state.TotalItems).Bool("estimated", state.Estimated)
	}
	if state.PerPage != nil {
		ev = ev.Int("per_page", *state.PerPage)
	}
	ev.Msg("Pagination discovered")
}

// probeWidget logs widget-like elements to help keep the catalog current
func (s *session) probeWidget(ctx context.Context) {
	controls, err := s.p.Controls(ctx, widgetProbe)
	if err != nil {
		return
	}
	if len(controls) > probeLimit {
		controls = controls[:probeLimit]
	}
	for _, c := range controls {
		text := c.Text
		if len(text) > 100 {
			text = text[:100]
		}
		s.logger.Debug().
			Str("id", c.Attrs["id"]).
			Str("class", c.Attrs["class"]).
			Str("text", text).
			Msg("Widget-like element")
	}
}

func (s *session) snapshot(ctx context.Context, name, description string) {
	// snapshots run even after the session deadline so the failure state is kept
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	s.sink.Snapshot(ctx, name, description, s.p)
}

// sleep waits d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsContainerNotFound reports whether err ended a session because the review list never appeared
func IsContainerNotFound(err error) bool {
	return errors.Is(err, ErrContainerNotFound)
}
