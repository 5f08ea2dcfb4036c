// Package extract maps rendered review item nodes to ReviewRecords.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/law-makers/revscrape/internal/errcode"
	"github.com/law-makers/revscrape/internal/page"
	"github.com/law-makers/revscrape/internal/selectors"
	"github.com/law-makers/revscrape/pkg/models"
)

var shortDateRe = regexp.MustCompile(`(\d{2}/\d{2}/\d{2})`)

// ItemError describes one item that could not be mapped to a record
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// PageResult is what one page visit produced
type PageResult struct {
	Records models.ScrapeResult
	Skipped []*ItemError
}

// Extractor turns each item node into exactly one record
type Extractor struct {
	Catalog selectors.Catalog
	Logger  zerolog.Logger
}

// New creates an Extractor over the session catalog
func New(cat selectors.Catalog, logger zerolog.Logger) *Extractor {
	return &Extractor{Catalog: cat, Logger: logger}
}

// Page extracts every node matching itemSelector in DOM order. Items that fail
// are skipped and reported; only a failure to read the items at all is returned.
func (e *Extractor) Page(ctx context.Context, p page.Page, itemSelector string) (PageResult, error) {
	items, err := p.OuterHTML(ctx, itemSelector)
	if err != nil {
		return PageResult{}, fmt.Errorf("read items %q: %w", itemSelector, err)
	}

	result := PageResult{Records: make(models.ScrapeResult, 0, len(items))}
	for i, markup := range items {
		record, err := e.Item(markup)
		if err != nil {
			itemErr := &ItemError{Index: i, Err: err}
			result.Skipped = append(result.Skipped, itemErr)
			e.Logger.Warn().Err(err).Str("code", string(errcode.ItemExtraction)).Int("item", i).Msg("Skipping review item")
			continue
		}
		result.Records = append(result.Records, record)
	}

	if len(result.Records) > 0 {
		first := result.Records[0]
		e.Logger.Debug().
			Str("name", first.Name).
			Str("rating", first.Rating).
			Str("date", first.Date).
			Msg("Sample review")
	}
	return result, nil
}

// Item maps one item's markup to a record. Each field resolves independently
// and falls back to models.NotAvailable.
func (e *Extractor) Item(markup string) (record models.ReviewRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return models.ReviewRecord{}, fmt.Errorf("parse item: %w", err)
	}
	item := doc.Find("body")
	if item.Children().Length() == 0 {
		return models.ReviewRecord{}, fmt.Errorf("empty item markup")
	}

	record = models.NewReviewRecord()
	if v, ok := selectors.TextIn(item, e.Catalog.Candidates(selectors.Name)); ok {
		record.Name = v
	}
	if v, ok := e.rating(item); ok {
		record.Rating = v
	}
	if v, ok := selectors.TextIn(item, e.Catalog.Candidates(selectors.Title)); ok {
		record.Title = v
	}
	if v, ok := selectors.TextIn(item, e.Catalog.Candidates(selectors.Description)); ok {
		record.Description = v
	}
	if v, ok := e.date(item); ok {
		record.Date = v
	}
	return record, nil
}

// rating prefers screen-reader text, then an accessible label mentioning stars or rating
func (e *Extractor) rating(item *goquery.Selection) (string, bool) {
	if v, ok := selectors.TextIn(item, e.Catalog.Candidates(selectors.Rating)); ok {
		return v, true
	}
	if el, ok := selectors.FirstIn(item, e.Catalog.Candidates(selectors.RatingLabel)); ok {
		if label := strings.TrimSpace(el.AttrOr("aria-label", "")); label != "" {
			return label, true
		}
	}
	return "", false
}

// date prefers the formatted date region, then isolates dd/dd/dd from a
// labelled date region, then uses that region's full text.
func (e *Extractor) date(item *goquery.Selection) (string, bool) {
	if v, ok := selectors.TextIn(item, e.Catalog.Candidates(selectors.Date)); ok {
		return v, true
	}
	v, ok := selectors.TextIn(item, e.Catalog.Candidates(selectors.DateLabel))
	if !ok {
		return "", false
	}
	return IsolateDate(v), true
}

// IsolateDate returns the first two-digit/two-digit/two-digit substring of
// text, or text unchanged when there is none.
func IsolateDate(text string) string {
	if m := shortDateRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}
