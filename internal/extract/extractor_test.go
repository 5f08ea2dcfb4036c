package extract

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/revscrape/internal/errcode"
	"github.com/law-makers/revscrape/internal/page/pagetest"
	"github.com/law-makers/revscrape/internal/selectors"
	"github.com/law-makers/revscrape/pkg/models"
)

const fullItem = `<div class="yotpo-review">
  <span class="yotpo-reviewer-name">Jane D.</span>
  <div class="yotpo-review-rating-title"><span class="sr-only">5.0 star rating</span></div>
  <p class="yotpo-review-title">Love it</p>
  <div class="yotpo-review-content">Fits perfectly.</div>
  <div class="yotpo-date-format">03/14/24</div>
</div>`

func newExtractor() *Extractor {
	return New(selectors.DefaultCatalog(), zerolog.Nop())
}

func TestItem_AllFields(t *testing.T) {
	rec, err := newExtractor().Item(fullItem)
	require.NoError(t, err)

	assert.Equal(t, models.ReviewRecord{
		Name:        "Jane D.",
		Rating:      "5.0 star rating",
		Title:       "Love it",
		Description: "Fits perfectly.",
		Date:        "03/14/24",
	}, rec)
}

func TestItem_MissingFieldIsIndependent(t *testing.T) {
	markup := `<div class="yotpo-review">
  <span class="yotpo-user-name">Sam</span>
  <div class="content-review">Solid.</div>
</div>`

	rec, err := newExtractor().Item(markup)
	require.NoError(t, err)

	assert.Equal(t, "Sam", rec.Name)
	assert.Equal(t, "Solid.", rec.Description)
	assert.Equal(t, models.NotAvailable, rec.Rating)
	assert.Equal(t, models.NotAvailable, rec.Title)
	assert.Equal(t, models.NotAvailable, rec.Date)
}

func TestItem_RatingFromAccessibleLabelOnly(t *testing.T) {
	markup := `<div class="yotpo-review">
  <span class="yotpo-reviewer-name">Lee</span>
  <div class="yotpo-review-stars" aria-label="4 out of 5 stars"><i></i></div>
</div>`

	rec, err := newExtractor().Item(markup)
	require.NoError(t, err)
	assert.Equal(t, "4 out of 5 stars", rec.Rating)
	assert.Equal(t, "Lee", rec.Name)
}

func TestItem_DateFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			"labelled date isolated",
			`<div class="yotpo-review"><div class="yotpo-review-date">Published date 01/02/23</div></div>`,
			"01/02/23",
		},
		{
			"labelled date without pattern",
			`<span class="yotpo-review-date">2 weeks ago</span>`,
			"2 weeks ago",
		},
		{
			"format region wins",
			`<div><div class="yotpo-date-format">Jan 2, 2023</div><div class="yotpo-review-date">Published 01/02/23</div></div>`,
			"Jan 2, 2023",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := newExtractor().Item(tt.markup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Date)
		})
	}
}

func TestPage_SkipsBadItemsAndKeepsOrder(t *testing.T) {
	p := &pagetest.Fake{
		OuterHTMLFn: func(context.Context, string) ([]string, error) {
			return []string{
				`<div class="yotpo-review"><span class="yotpo-reviewer-name">A</span></div>`,
				``,
				`<div class="yotpo-review"><span class="yotpo-reviewer-name">B</span></div>`,
			}, nil
		},
	}

	var logs bytes.Buffer
	res, err := New(selectors.DefaultCatalog(), zerolog.New(&logs)).Page(context.Background(), p, "div.yotpo-review")
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"code":"`+string(errcode.ItemExtraction)+`"`)

	require.Len(t, res.Records, 2)
	assert.Equal(t, "A", res.Records[0].Name)
	assert.Equal(t, "B", res.Records[1].Name)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 1, res.Skipped[0].Index)
}

func TestPage_ReadFailure(t *testing.T) {
	p := &pagetest.Fake{
		OuterHTMLFn: func(context.Context, string) ([]string, error) {
			return nil, errors.New("target closed")
		},
	}

	_, err := newExtractor().Page(context.Background(), p, "div.yotpo-review")
	assert.Error(t, err)
}

func TestIsolateDate(t *testing.T) {
	assert.Equal(t, "12/31/99", IsolateDate("Reviewed 12/31/99 by X"))
	assert.Equal(t, "yesterday", IsolateDate("yesterday"))
}
