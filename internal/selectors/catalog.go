// Package selectors holds the ordered candidate selectors for every logical
// field of the review widget and resolves them against a live page or an
// item subtree.
package selectors

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Field is a logical region or value of the widget
type Field string

const (
	Container       Field = "container"
	ItemList        Field = "itemList"
	Item            Field = "item"
	Name            Field = "name"
	Rating          Field = "rating"
	Title           Field = "title"
	Description     Field = "description"
	Date            Field = "date"
	Pager           Field = "pager"
	NextControl     Field = "nextControl"
	PreviousControl Field = "previousControl"
	ExpandControl   Field = "expandControl"

	// RatingLabel holds accessible-label fallbacks for Rating
	RatingLabel Field = "ratingLabel"
	// DateLabel holds generic date/time regions whose text needs the date isolated
	DateLabel Field = "dateLabel"
	// PaginationLinks matches page-number controls
	PaginationLinks Field = "paginationLinks"
	// GenericNext matches any next-shaped control
	GenericNext Field = "genericNext"
	// StarWidget is the summary widget that may state the total review count
	StarWidget Field = "starWidget"
)

// pinnable fields may be replaced by their matched candidate once resolved
var pinnable = map[Field]bool{
	Container: true,
	ItemList:  true,
}

// Catalog maps each field to its candidates, highest priority first
type Catalog map[Field][]string

// DefaultCatalog returns the known selector variants of the widget
func DefaultCatalog() Catalog {
	return Catalog{
		Container: {
			"div.yotpo.yotpo-main-widget",
			"div#yotpo-reviews-main-widget",
			"div.yotpo-reviews-main-widget",
		},
		ItemList: {
			"div.yotpo-reviews",
			"div#yotpo-reviews-main-widget",
			"div.yotpo-reviews-main-widget",
			"div.yotpo-main-layout",
		},
		Item: {
			"div.yotpo-review",
			`[class*="yotpo-review"]`,
		},
		Name: {
			"span.yotpo-reviewer-name",
			"span.yotpo-user-name",
			`[class*="reviewer-name"]`,
			`[class*="user-name"]`,
		},
		Rating: {
			"div.yotpo-review-rating-title span.sr-only",
			"div.yotpo-review-stars span.sr-only",
		},
		RatingLabel: {
			`[aria-label*="star"]`,
			`[aria-label*="rating"]`,
		},
		Title: {
			"p.yotpo-review-title",
			"div.yotpo-review-rating-title",
			`[class*="review-title"]`,
		},
		Description: {
			"div.yotpo-review-content",
			"div.content-review",
			`[class*="review-content"]`,
		},
		Date: {
			"div.yotpo-date-format",
		},
		DateLabel: {
			"div.yotpo-review-date",
			"span.yotpo-review-date",
		},
		Pager: {
			"div.yotpo-pager[data-total]",
		},
		PaginationLinks: {
			"nav.yotpo-reviews-pagination-container a, nav.yotpo-reviews-pagination-container button",
			`nav[class*="pagination"] a, nav[class*="pagination"] button`,
		},
		NextControl: {
			`nav.yotpo-reviews-pagination-container a[aria-label*="next" i]`,
			`nav.yotpo-reviews-pagination-container a[aria-label="Navigate to next page"]`,
			"div.yotpo-pager a[rel^=next]",
		},
		PreviousControl: {
			`nav.yotpo-reviews-pagination-container a[aria-label*="previous" i]`,
			`nav.yotpo-reviews-pagination-container a[aria-label="Navigate to previous page"]`,
		},
		GenericNext: {
			`a[aria-label*="next" i], button[aria-label*="next" i], a[class*="next"], button[class*="next"], a[rel*="next"], [data-direction="next"]`,
		},
		ExpandControl: {
			"button.yotpo-sr-bottom-line-summary",
		},
		StarWidget: {
			"#yotpo-reviews-star-ratings-widget",
		},
	}
}

// Clone returns a deep copy so a session can pin entries without touching the source
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for field, candidates := range c {
		out[field] = append([]string(nil), candidates...)
	}
	return out
}

// Candidates returns the ordered candidates for field
func (c Catalog) Candidates(field Field) []string {
	return c[field]
}

// Primary returns the highest-priority candidate for field
func (c Catalog) Primary(field Field) string {
	if candidates := c[field]; len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

// Pin replaces the candidates of a container-level field with the matched one.
// Pinning any other field is a no-op and returns false.
func (c Catalog) Pin(field Field, selector string) bool {
	if !pinnable[field] || selector == "" {
		return false
	}
	c[field] = []string{selector}
	return true
}

// Validate checks that every field has at least one candidate and every
// candidate is a parseable CSS selector.
func (c Catalog) Validate() error {
	for field, candidates := range c {
		if len(candidates) == 0 {
			return fmt.Errorf("field %q has no candidates", field)
		}
		for _, candidate := range candidates {
			if _, err := cascadia.ParseGroupWithPseudoElements(candidate); err != nil {
				return fmt.Errorf("field %q candidate %q: %w", field, candidate, err)
			}
		}
	}
	return nil
}
