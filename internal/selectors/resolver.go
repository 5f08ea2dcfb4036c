package selectors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoMatch is returned when no candidate of a field matches
var ErrNoMatch = errors.New("no selector candidate matched")

// Querier is the part of a page session the resolver needs
type Querier interface {
	Count(ctx context.Context, selector string) (int, error)
}

// Match records which candidate of a field resolved and how many nodes it matched
type Match struct {
	Field    Field
	Selector string
	// Index is the candidate's position in the catalog, 0 being the primary
	Index int
	Count int
}

// Default reports whether the primary candidate matched
func (m Match) Default() bool {
	return m.Index == 0
}

// Resolve tries the candidates of field in priority order and returns the
// earliest one matching at least one node. Query errors on a single candidate
// are treated as no match so an invalid variant never masks later ones;
// a cancelled ctx aborts resolution.
func Resolve(ctx context.Context, q Querier, cat Catalog, field Field) (Match, error) {
	candidates := cat.Candidates(field)
	if len(candidates) == 0 {
		return Match{}, fmt.Errorf("field %q: %w", field, ErrNoMatch)
	}

	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return Match{}, err
		}
		n, err := q.Count(ctx, candidate)
		if err != nil || n == 0 {
			continue
		}
		return Match{Field: field, Selector: candidate, Index: i, Count: n}, nil
	}

	return Match{}, fmt.Errorf("field %q: %w", field, ErrNoMatch)
}

// FirstIn returns the first match of the highest-priority candidate that
// matches inside item, or an empty selection and false.
func FirstIn(item *goquery.Selection, candidates []string) (*goquery.Selection, bool) {
	for _, candidate := range candidates {
		if found := safeFind(item, candidate); found.Length() > 0 {
			return found.First(), true
		}
	}
	return item.Slice(0, 0), false
}

// TextIn returns the trimmed text of the first candidate that matches inside
// item with non-empty text.
func TextIn(item *goquery.Selection, candidates []string) (string, bool) {
	for _, candidate := range candidates {
		found := safeFind(item, candidate)
		if found.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(found.First().Text()); text != "" {
			return text, true
		}
	}
	return "", false
}

// safeFind shields callers from goquery's panic on an unparseable selector
func safeFind(item *goquery.Selection, selector string) (found *goquery.Selection) {
	defer func() {
		if r := recover(); r != nil {
			found = item.Slice(0, 0)
		}
	}()
	return item.Find(selector)
}
