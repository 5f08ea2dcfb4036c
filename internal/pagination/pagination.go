// Package pagination works out how many widget pages a session has to visit.
package pagination

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/law-makers/revscrape/internal/errcode"
	"github.com/law-makers/revscrape/internal/page"
	"github.com/law-makers/revscrape/internal/selectors"
	"github.com/law-makers/revscrape/pkg/models"
)

const (
	attrTotal   = "data-total"
	attrPerPage = "data-per-page"

	// pagerProbe finds pager-like elements when the declared pager is missing
	pagerProbe = `[class*="pager"], [class*="pagination"], [data-total]`
	probeLimit = 5
)

var widgetTotalRe = regexp.MustCompile(`(?i)(\d[\d,]*)\s*(?:reviews?|total)`)

// Discoverer computes a PaginationState in tiers: explicit pager metadata,
// page-number labels, a known total over the visible items when pager
// controls exist, then a single-page fallback.
type Discoverer struct {
	Catalog selectors.Catalog
	Logger  zerolog.Logger
}

// New creates a Discoverer over the session catalog
func New(cat selectors.Catalog, logger zerolog.Logger) *Discoverer {
	return &Discoverer{Catalog: cat, Logger: logger}
}

// Discover reads the current page once. visible is the number of items
// currently rendered and is only used for estimates. TotalPages is never < 1.
func (d *Discoverer) Discover(ctx context.Context, p page.Page, visible int) models.PaginationState {
	totalItems, perPage := d.readMetadata(ctx, p)

	if positive(totalItems) && positive(perPage) {
		state := models.PaginationState{
			TotalItems: totalItems,
			PerPage:    perPage,
			TotalPages: ceilDiv(*totalItems, *perPage),
			Source:     models.PaginationFromMetadata,
		}
		d.Logger.Debug().
			Int("total_items", *totalItems).
			Int("per_page", *perPage).
			Int("total_pages", state.TotalPages).
			Msg("Pagination from pager metadata")
		return state
	}

	if maxPage := d.maxPageLabel(ctx, p); maxPage > 0 {
		state := models.PaginationState{
			TotalItems: totalItems,
			PerPage:    perPage,
			TotalPages: maxPage,
			Source:     models.PaginationFromLinks,
		}
		if !positive(state.PerPage) && visible > 0 {
			state.PerPage = intPtr(visible)
		}
		if !positive(state.TotalItems) && visible > 0 {
			state.TotalItems = intPtr(visible * maxPage)
			state.Estimated = true
		}
		d.Logger.Debug().
			Int("total_pages", maxPage).
			Bool("estimated", state.Estimated).
			Msg("Pagination inferred from page links")
		return state
	}

	if positive(totalItems) && visible > 0 && d.hasControls(ctx, p) {
		state := models.PaginationState{
			TotalItems: totalItems,
			PerPage:    intPtr(visible),
			TotalPages: ceilDiv(*totalItems, visible),
			Source:     models.PaginationFromMetadata,
		}
		d.Logger.Debug().
			Int("total_items", *totalItems).
			Int("per_page", visible).
			Int("total_pages", state.TotalPages).
			Msg("Pagination from total over visible items")
		return state
	}

	d.Logger.Warn().
		Str("code", string(errcode.PaginationUnknown)).
		Msg("No pagination metadata or page links, assuming a single page")
	d.probe(ctx, p)

	return models.PaginationState{
		TotalItems: totalItems,
		PerPage:    perPage,
		TotalPages: 1,
		Source:     models.PaginationSinglePage,
	}
}

// readMetadata returns the pager's declared counts. A missing data-total
// falls back to the total stated by the star summary widget.
func (d *Discoverer) readMetadata(ctx context.Context, p page.Page) (totalItems, perPage *int) {
	for _, pager := range d.Catalog.Candidates(selectors.Pager) {
		total, okTotal, err := p.Attr(ctx, pager, attrTotal)
		if err != nil {
			continue
		}
		per, okPer, _ := p.Attr(ctx, pager, attrPerPage)
		if okTotal {
			totalItems = parseCount(total)
		}
		if okPer {
			perPage = parseCount(per)
		}
		if okTotal || okPer {
			break
		}
	}

	if totalItems == nil {
		totalItems = d.widgetTotal(ctx, p)
	}
	return totalItems, perPage
}

func (d *Discoverer) widgetTotal(ctx context.Context, p page.Page) *int {
	for _, widget := range d.Catalog.Candidates(selectors.StarWidget) {
		text, err := p.Text(ctx, widget)
		if err != nil {
			continue
		}
		if total := ParseWidgetTotal(text); total != nil {
			d.Logger.Debug().Int("total_items", *total).Msg("Total reviews from star widget")
			return total
		}
	}
	return nil
}

// maxPageLabel returns the largest positive integer label among pagination
// controls, or 0 when there are none.
func (d *Discoverer) maxPageLabel(ctx context.Context, p page.Page) int {
	for _, links := range d.Catalog.Candidates(selectors.PaginationLinks) {
		controls, err := p.Controls(ctx, links)
		if err != nil || len(controls) == 0 {
			continue
		}
		maxPage := 0
		for _, c := range controls {
			if n, ok := PageLabel(c.Text); ok && n > maxPage {
				maxPage = n
			}
		}
		if maxPage > 0 {
			return maxPage
		}
	}
	return 0
}

// hasControls reports whether any pagination control is rendered, even one
// without a page-number label.
func (d *Discoverer) hasControls(ctx context.Context, p page.Page) bool {
	for _, links := range d.Catalog.Candidates(selectors.PaginationLinks) {
		if controls, err := p.Controls(ctx, links); err == nil && len(controls) > 0 {
			return true
		}
	}
	for _, next := range d.Catalog.Candidates(selectors.NextControl) {
		if n, err := p.Count(ctx, next); err == nil && n > 0 {
			return true
		}
	}
	return false
}

// probe logs a few pager-like elements to help maintain the catalog
func (d *Discoverer) probe(ctx context.Context, p page.Page) {
	controls, err := p.Controls(ctx, pagerProbe)
	if err != nil || len(controls) == 0 {
		return
	}
	if len(controls) > probeLimit {
		controls = controls[:probeLimit]
	}
	for _, c := range controls {
		d.Logger.Debug().
			Str("class", c.Attrs["class"]).
			Str("data_total", c.Attrs[attrTotal]).
			Str("text", truncate(c.Text, 100)).
			Msg("Pager-like element")
	}
}

// PageLabel parses a control label as a positive page number
func PageLabel(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ParseWidgetTotal extracts "N reviews" or "N total" from summary text
func ParseWidgetTotal(text string) *int {
	m := widgetTotalRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return parseCount(strings.ReplaceAll(m[1], ",", ""))
}

func parseCount(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func ceilDiv(total, per int) int {
	pages := (total + per - 1) / per
	if pages < 1 {
		return 1
	}
	return pages
}

func positive(n *int) bool {
	return n != nil && *n > 0
}

func intPtr(n int) *int {
	return &n
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
