package navigation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/revscrape/internal/page"
	"github.com/law-makers/revscrape/internal/page/pagetest"
	"github.com/law-makers/revscrape/internal/selectors"
	"github.com/law-makers/revscrape/pkg/models"
)

const marker = "div.yotpo-review"

func fastTimings() Timings {
	return Timings{Response: 20 * time.Millisecond, Change: 50 * time.Millisecond, Settle: time.Millisecond}
}

func newChain() *Chain {
	return NewChain(selectors.DefaultCatalog(), marker, fastTimings(), zerolog.Nop())
}

// controlsBySelector scripts Controls from a fixed table
func controlsBySelector(table map[string][]page.Control) func(context.Context, string) ([]page.Control, error) {
	return func(_ context.Context, sel string) ([]page.Control, error) {
		return table[sel], nil
	}
}

func TestAdvance_ExhaustedOnLastPage(t *testing.T) {
	p := &pagetest.Fake{}
	out := newChain().Advance(context.Background(), p, 3, 3)

	assert.Equal(t, models.Exhausted, out.Kind)
	assert.Empty(t, p.Calls())
}

func TestAdvance_NextControlWinsWithSingleActivation(t *testing.T) {
	cat := selectors.DefaultCatalog()
	next := cat.Primary(selectors.NextControl)
	p := &pagetest.Fake{
		ControlsFn: controlsBySelector(map[string][]page.Control{
			next: {{Index: 0, Text: "Next", Attrs: map[string]string{"aria-label": "Navigate to next page"}}},
			cat.Primary(selectors.PaginationLinks): {{Index: 0, Text: "1"}, {Index: 1, Text: "2"}},
		}),
		TextFn: func(context.Context, string) (string, error) { return "first review", nil },
		WaitResponseFn: func(ctx context.Context, match page.ResponseMatcher) error {
			if match(page.Response{URL: "https://staticw2.yotpo.com/batch/app_key/abc", Status: 200}) {
				return nil
			}
			return errors.New("unexpected matcher")
		},
	}

	out := newChain().Advance(context.Background(), p, 1, 5)

	require.Equal(t, models.Advanced, out.Kind)
	assert.Equal(t, "next-control", out.Strategy)
	assert.Equal(t, 1, p.CallCount("Click("))
	assert.Equal(t, 1, p.CallCount("Click("+next+",0)"))
	assert.Equal(t, 0, p.CallCount("Controls("+cat.Primary(selectors.PaginationLinks)))
	assert.Equal(t, 0, p.CallCount("Controls("+cat.Primary(selectors.GenericNext)))
}

func TestAdvance_MissingBatchResponseIsAdvisory(t *testing.T) {
	cat := selectors.DefaultCatalog()
	p := &pagetest.Fake{
		ControlsFn: controlsBySelector(map[string][]page.Control{
			cat.Primary(selectors.NextControl): {{Index: 0}},
		}),
		WaitResponseFn: func(ctx context.Context, _ page.ResponseMatcher) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}

	out := newChain().Advance(context.Background(), p, 1, 2)
	assert.Equal(t, models.Advanced, out.Kind)
	assert.Equal(t, "next-control", out.Strategy)
}

func TestAdvance_DisabledNextFallsToPageNumber(t *testing.T) {
	cat := selectors.DefaultCatalog()
	links := cat.Primary(selectors.PaginationLinks)
	p := &pagetest.Fake{
		ControlsFn: controlsBySelector(map[string][]page.Control{
			cat.Primary(selectors.NextControl): {{Index: 0, Attrs: map[string]string{"aria-disabled": "true"}}},
			links: {
				{Index: 0, Text: "1"},
				{Index: 1, Text: "2"},
				{Index: 2, Text: "3"},
			},
		}),
	}

	out := newChain().Advance(context.Background(), p, 2, 3)

	require.Equal(t, models.Advanced, out.Kind)
	assert.Equal(t, "page-number", out.Strategy)
	assert.Equal(t, []string{"Click(" + links + ",2)"}, filter(p.Calls(), "Click("))
}

func TestAdvance_PageNumberRequiresContentChange(t *testing.T) {
	cat := selectors.DefaultCatalog()
	generic := cat.Primary(selectors.GenericNext)
	p := &pagetest.Fake{
		ControlsFn: controlsBySelector(map[string][]page.Control{
			cat.Primary(selectors.PaginationLinks): {{Index: 0, Text: "1"}, {Index: 1, Text: "2"}},
			generic: {
				{Index: 0, Attrs: map[string]string{"class": "next disabled"}},
				{Index: 1, Attrs: map[string]string{"class": "next"}},
			},
		}),
		WaitTextChangeFn: func(ctx context.Context, _, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}

	out := newChain().Advance(context.Background(), p, 1, 2)

	require.Equal(t, models.Advanced, out.Kind)
	assert.Equal(t, "generic-next", out.Strategy)
	assert.Equal(t, []string{
		"Click(" + cat.Primary(selectors.PaginationLinks) + ",1)",
		"Click(" + generic + ",1)",
	}, filter(p.Calls(), "Click("))
}

func TestAdvance_AllStrategiesFail(t *testing.T) {
	p := &pagetest.Fake{}

	out := newChain().Advance(context.Background(), p, 2, 5)

	assert.Equal(t, models.Failed, out.Kind)
	assert.Contains(t, out.Reason, "next-control")
	assert.Contains(t, out.Reason, "page-number")
	assert.Contains(t, out.Reason, "generic-next")
	assert.Equal(t, 0, p.CallCount("Click("))
}

func TestBatchResponse(t *testing.T) {
	tests := []struct {
		resp page.Response
		want bool
	}{
		{page.Response{URL: "https://staticw2.yotpo.com/batch/app_key/xyz", Status: 200}, true},
		{page.Response{URL: "https://staticw2.yotpo.com/batch/app_key/xyz", Status: 500}, false},
		{page.Response{URL: "http://staticw2.yotpo.com/batch/app_key/xyz", Status: 200}, false},
		{page.Response{URL: "https://p.yotpo.com/batch/app_key", Status: 200}, false},
		{page.Response{URL: "https://staticw2.yotpo.com/v1/widget", Status: 200}, false},
		{page.Response{URL: "::bad::", Status: 200}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BatchResponse(tt.resp), tt.resp.URL)
	}
}

func filter(calls []string, prefix string) []string {
	var out []string
	for _, c := range calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c)
		}
	}
	return out
}
