// Package static replays saved widget pages through the page.Page interface.
// Each document is one widget page; activating a page-number or next-shaped
// control switches to the matching document.
package static

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/revscrape/internal/page"
)

// GotoAttr on a control names the 1-based document a click switches to
const GotoAttr = "data-static-goto"

var (
	ErrClosed       = errors.New("static page closed")
	ErrNotNavigated = errors.New("static page not navigated")
	ErrNoDocuments  = errors.New("static page needs at least one document")
)

var nextShaped = regexp.MustCompile(`(?i)next`)

type watcher struct {
	selector  string
	onRemoved func(string)
}

// Page is a page.Page over a fixed sequence of parsed documents
type Page struct {
	mu        sync.Mutex
	sources   []string
	doc       *goquery.Document
	current   int
	navigated bool
	closed    bool
	watchers  []watcher
	clicks    int
}

var _ page.Page = (*Page)(nil)

// New creates a page over the given HTML documents, in widget page order
func New(documents ...string) (*Page, error) {
	if len(documents) == 0 {
		return nil, ErrNoDocuments
	}
	return &Page{sources: documents}, nil
}

// Load reads each path as one document
func Load(paths ...string) (*Page, error) {
	docs, err := ReadFiles(paths...)
	if err != nil {
		return nil, err
	}
	return New(docs...)
}

// ReadFiles returns the contents of each path
func ReadFiles(paths ...string) ([]string, error) {
	docs := make([]string, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		docs = append(docs, string(b))
	}
	return docs, nil
}

// CurrentPage returns the 1-based index of the active document
func (p *Page) CurrentPage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current + 1
}

// Clicks returns how many Click calls switched documents
func (p *Page) Clicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks
}

// IsClosed reports whether Close was called
func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Navigate loads the first document; the URL only labels the session
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if err := p.load(0); err != nil {
		return err
	}
	p.navigated = true
	log.Debug().Str("url", url).Int("documents", len(p.sources)).Msg("Static page loaded")
	return nil
}

// load parses document i and applies standing watchers (lock held)
func (p *Page) load(i int) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.sources[i]))
	if err != nil {
		return fmt.Errorf("parse document %d: %w", i+1, err)
	}
	p.doc = doc
	p.current = i
	for _, w := range p.watchers {
		p.removeMatching(w.selector, w.onRemoved)
	}
	return nil
}

// find returns the matches of selector in the active document (lock held)
func (p *Page) find(ctx context.Context, selector string) (*goquery.Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.closed {
		return nil, ErrClosed
	}
	if !p.navigated {
		return nil, ErrNotNavigated
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return p.doc.FindMatcher(m), nil
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.find(ctx, selector)
	if err != nil {
		return 0, err
	}
	return sel.Length(), nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.find(ctx, selector)
	if err != nil {
		return "", err
	}
	if sel.Length() == 0 {
		return "", page.ErrNotFound
	}
	return strings.TrimSpace(sel.First().Text()), nil
}

func (p *Page) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.find(ctx, selector)
	if err != nil {
		return "", false, err
	}
	if sel.Length() == 0 {
		return "", false, page.ErrNotFound
	}
	v, ok := sel.First().Attr(name)
	return v, ok, nil
}

func (p *Page) OuterHTML(ctx context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.find(ctx, selector)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, sel.Length())
	var firstErr error
	sel.Each(func(_ int, s *goquery.Selection) {
		h, err := goquery.OuterHtml(s)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		out = append(out, h)
	})
	return out, firstErr
}

func (p *Page) Controls(ctx context.Context, selector string) ([]page.Control, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.find(ctx, selector)
	if err != nil {
		return nil, err
	}
	controls := make([]page.Control, 0, sel.Length())
	sel.Each(func(i int, s *goquery.Selection) {
		controls = append(controls, control(i, s))
	})
	return controls, nil
}

func control(i int, s *goquery.Selection) page.Control {
	attrs := make(map[string]string)
	for _, a := range s.Nodes[0].Attr {
		attrs[a.Key] = a.Val
	}
	_, disabled := attrs["disabled"]
	tag := goquery.NodeName(s)
	return page.Control{
		Index:        i,
		Text:         strings.TrimSpace(s.Text()),
		Attrs:        attrs,
		DisabledProp: disabled && (tag == "button" || tag == "input"),
	}
}

// Click switches documents when the control names a target page, carries an
// integer label, or is next-shaped. Any other click is a no-op.
func (p *Page) Click(ctx context.Context, selector string, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := p.find(ctx, selector)
	if err != nil {
		return err
	}
	if index < 0 || index >= sel.Length() {
		return fmt.Errorf("click %q[%d]: %w", selector, index, page.ErrNotFound)
	}
	c := control(index, sel.Eq(index))
	if c.Disabled() {
		return nil
	}

	target, ok := p.target(c)
	if !ok || target < 1 || target > len(p.sources) || target-1 == p.current {
		return nil
	}
	if err := p.load(target - 1); err != nil {
		return err
	}
	p.clicks++
	return nil
}

// target works out which document a control leads to (lock held)
func (p *Page) target(c page.Control) (int, bool) {
	if v, ok := c.Attrs[GotoAttr]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	if n, err := strconv.Atoi(c.Text); err == nil {
		return n, true
	}
	for _, key := range []string{"aria-label", "class", "rel", "data-direction"} {
		if nextShaped.MatchString(c.Attrs[key]) {
			return p.current + 2, true
		}
	}
	if strings.EqualFold(c.Text, "next") {
		return p.current + 2, true
	}
	return 0, false
}

// WaitTextChange returns once the first match's text differs from baseline.
// Static content only changes on Click, so an unchanged text waits out ctx.
func (p *Page) WaitTextChange(ctx context.Context, selector, baseline string) error {
	text, err := p.Text(ctx, selector)
	if err != nil && !errors.Is(err, page.ErrNotFound) {
		return err
	}
	if text != baseline {
		return nil
	}
	<-ctx.Done()
	return fmt.Errorf("text of %q unchanged: %w", selector, ctx.Err())
}

// WaitResponse always fails: saved documents have no network
func (p *Page) WaitResponse(context.Context, page.ResponseMatcher) error {
	return page.ErrNoNetwork
}

func (p *Page) Remove(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.find(ctx, selector); err != nil {
		return 0, err
	}
	return p.removeMatching(selector, nil), nil
}

// WatchRemove removes matches now and from every document switched to later
func (p *Page) WatchRemove(ctx context.Context, selector string, onRemoved func(string)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.find(ctx, selector); err != nil {
		return err
	}
	p.removeMatching(selector, onRemoved)
	p.watchers = append(p.watchers, watcher{selector: selector, onRemoved: onRemoved})
	return nil
}

// removeMatching deletes matches of selector from the active document (lock held)
func (p *Page) removeMatching(selector string, onRemoved func(string)) int {
	if p.doc == nil {
		return 0
	}
	sel := p.doc.Find(selector)
	n := sel.Length()
	if onRemoved != nil {
		sel.Each(func(_ int, s *goquery.Selection) {
			onRemoved(describe(s))
		})
	}
	sel.Remove()
	return n
}

func describe(s *goquery.Selection) string {
	desc := goquery.NodeName(s)
	if class, ok := s.Attr("class"); ok && class != "" {
		desc += "." + strings.Join(strings.Fields(class), ".")
	}
	return desc
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("empty key")
	}
	return ctx.Err()
}

func (p *Page) ClickAt(ctx context.Context, _, _ float64) error {
	return ctx.Err()
}

func (p *Page) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrClosed
	}
	if !p.navigated {
		return "", ErrNotNavigated
	}
	return p.doc.Html()
}

// Close releases the documents. It is safe to call more than once.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.doc = nil
	return nil
}

// Opener hands out a fresh Page over the same documents for every session
type Opener struct {
	documents []string

	mu     sync.Mutex
	opened []*Page
}

var _ page.Opener = (*Opener)(nil)

// NewOpener creates an Opener over documents
func NewOpener(documents ...string) *Opener {
	return &Opener{documents: documents}
}

// Open returns a new, not yet navigated Page
func (o *Opener) Open(ctx context.Context, _ page.OpenOptions) (page.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := New(o.documents...)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.opened = append(o.opened, p)
	o.mu.Unlock()
	return p, nil
}

// Opened returns every Page handed out so far
func (o *Opener) Opened() []*Page {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Page(nil), o.opened...)
}
