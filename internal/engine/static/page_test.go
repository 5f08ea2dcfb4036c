package static

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/revscrape/internal/page"
)

const (
	fixturePage1 = "testdata/widget-page1.html"
	fixturePage2 = "testdata/widget-page2.html"
)

func loadFixtures(t *testing.T) *Page {
	t.Helper()
	p, err := Load(fixturePage1, fixturePage2)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(context.Background(), "file:///fixtures"))
	return p
}

func TestNew_NoDocuments(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = Load("testdata/missing.html")
	assert.Error(t, err)
}

func TestPage_RequiresNavigate(t *testing.T) {
	p, err := New("<html><body><p>x</p></body></html>")
	require.NoError(t, err)

	_, err = p.Count(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNotNavigated)
	_, err = p.Content(context.Background())
	assert.ErrorIs(t, err, ErrNotNavigated)
}

func TestPage_Queries(t *testing.T) {
	ctx := context.Background()
	p := loadFixtures(t)

	n, err := p.Count(ctx, "div.yotpo-reviews div.yotpo-review")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	text, err := p.Text(ctx, "span.yotpo-reviewer-name")
	require.NoError(t, err)
	assert.Equal(t, "Alice M.", text)

	_, err = p.Text(ctx, "span.missing")
	assert.ErrorIs(t, err, page.ErrNotFound)

	total, ok, err := p.Attr(ctx, "div.yotpo-pager[data-total]", "data-total")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "6", total)

	_, ok, err = p.Attr(ctx, "div.yotpo-pager", "data-missing")
	require.NoError(t, err)
	assert.False(t, ok)

	items, err := p.OuterHTML(ctx, "div.yotpo-review")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Contains(t, items[0], "Alice M.")
	assert.Contains(t, items[2], "Cara P.")
}

func TestPage_InvalidSelector(t *testing.T) {
	p := loadFixtures(t)
	_, err := p.Count(context.Background(), "div[")
	assert.Error(t, err)
}

func TestPage_CaseInsensitiveAttribute(t *testing.T) {
	p := loadFixtures(t)
	n, err := p.Count(context.Background(), `nav.yotpo-reviews-pagination-container a[aria-label*="NEXT" i]`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPage_Controls(t *testing.T) {
	p, err := New(`<html><body>
		<button disabled>1</button>
		<a class="disabled">2</a>
		<a aria-label="Next">3</a>
	</body></html>`)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(context.Background(), "file:///x"))

	controls, err := p.Controls(context.Background(), "button, a")
	require.NoError(t, err)
	require.Len(t, controls, 3)

	assert.True(t, controls[0].DisabledProp)
	assert.True(t, controls[0].Disabled())
	assert.False(t, controls[1].DisabledProp)
	assert.True(t, controls[1].Disabled())
	assert.False(t, controls[2].Disabled())
	assert.Equal(t, "Next", controls[2].Attrs["aria-label"])
	assert.Equal(t, 2, controls[2].Index)
}

func TestPage_ClickSwitchesDocument(t *testing.T) {
	ctx := context.Background()
	p := loadFixtures(t)

	require.NoError(t, p.Click(ctx, `nav a[aria-label="Navigate to next page"]`, 0))
	assert.Equal(t, 2, p.CurrentPage())
	assert.Equal(t, 1, p.Clicks())

	text, err := p.Text(ctx, "span.yotpo-reviewer-name")
	require.NoError(t, err)
	assert.Equal(t, "Dan R.", text)

	// disabled next on the last page is a no-op
	require.NoError(t, p.Click(ctx, `nav a[aria-label="Navigate to next page"]`, 0))
	assert.Equal(t, 2, p.CurrentPage())

	// page-number label
	require.NoError(t, p.Click(ctx, "nav.yotpo-reviews-pagination-container a", 1))
	assert.Equal(t, 1, p.CurrentPage())
	assert.Equal(t, 2, p.Clicks())
}

func TestPage_ClickGotoAttr(t *testing.T) {
	ctx := context.Background()
	p, err := New(
		`<html><body><span data-static-goto="3">jump</span><p>one</p></body></html>`,
		`<html><body><p>two</p></body></html>`,
		`<html><body><p>three</p></body></html>`,
	)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(ctx, "file:///x"))

	require.NoError(t, p.Click(ctx, "span", 0))
	text, err := p.Text(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "three", text)
}

func TestPage_ClickOutOfRange(t *testing.T) {
	p := loadFixtures(t)
	err := p.Click(context.Background(), "span.yotpo-reviewer-name", 7)
	assert.ErrorIs(t, err, page.ErrNotFound)

	// a control that leads nowhere leaves the document alone
	require.NoError(t, p.Click(context.Background(), "span.yotpo-reviewer-name", 0))
	assert.Equal(t, 1, p.CurrentPage())
	assert.Equal(t, 0, p.Clicks())
}

func TestPage_WaitTextChange(t *testing.T) {
	ctx := context.Background()
	p := loadFixtures(t)
	baseline, err := p.Text(ctx, "div.yotpo-review")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err = p.WaitTextChange(waitCtx, "div.yotpo-review", baseline)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, p.Click(ctx, "nav a", 2))
	assert.NoError(t, p.WaitTextChange(ctx, "div.yotpo-review", baseline))
}

func TestPage_WaitResponse(t *testing.T) {
	p := loadFixtures(t)
	err := p.WaitResponse(context.Background(), func(page.Response) bool { return true })
	assert.ErrorIs(t, err, page.ErrNoNetwork)
}

func TestPage_RemoveAndWatch(t *testing.T) {
	ctx := context.Background()
	p, err := New(
		`<html><body><div class="promo-popup">a</div><a>2</a><p>one</p></body></html>`,
		`<html><body><div class="late-popup big">b</div><a aria-label="x">2</a><p>two</p></body></html>`,
	)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(ctx, "file:///x"))

	n, err := p.Remove(ctx, `div[class*="popup"]`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var removed []string
	require.NoError(t, p.WatchRemove(ctx, `div[class*="popup"]`, func(desc string) {
		removed = append(removed, desc)
	}))

	require.NoError(t, p.Click(ctx, "a", 0))
	count, err := p.Count(ctx, `div[class*="popup"]`)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, []string{"div.late-popup.big"}, removed)
}

func TestPage_KeysAndPointer(t *testing.T) {
	p := loadFixtures(t)
	assert.NoError(t, p.PressKey(context.Background(), "Escape"))
	assert.Error(t, p.PressKey(context.Background(), ""))
	assert.NoError(t, p.ClickAt(context.Background(), 0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.ClickAt(ctx, 0, 0), context.Canceled)
}

func TestPage_ContentAndClose(t *testing.T) {
	ctx := context.Background()
	p := loadFixtures(t)

	html, err := p.Content(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "yotpo-main-widget")

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, p.IsClosed())

	_, err = p.Count(ctx, "p")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Navigate(ctx, "file:///x"), ErrClosed)
}

func TestOpener_FreshPagePerSession(t *testing.T) {
	docs, err := ReadFiles(fixturePage1, fixturePage2)
	require.NoError(t, err)
	o := NewOpener(docs...)

	a, err := o.Open(context.Background(), page.OpenOptions{})
	require.NoError(t, err)
	b, err := o.Open(context.Background(), page.OpenOptions{})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Len(t, o.Opened(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Open(ctx, page.OpenOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
