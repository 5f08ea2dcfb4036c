package dynamic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/revscrape/internal/page"
	"github.com/law-makers/revscrape/internal/retry"
)

const changePollInterval = 100 * time.Millisecond

// ErrClosed is returned by every method after Close
var ErrClosed = errors.New("browser page closed")

// namedKeys maps key names to chromedp key sequences
var namedKeys = map[string]string{
	"Escape":    kb.Escape,
	"Enter":     kb.Enter,
	"Tab":       kb.Tab,
	"ArrowDown": kb.ArrowDown,
	"PageDown":  kb.PageDown,
}

// Page is one Chrome tab driven through chromedp
type Page struct {
	ctx     context.Context
	release func()
	opts    Options

	closeOnce sync.Once
	closed    chan struct{}

	net      *netState
	watchMu  sync.Mutex
	watchers map[int]func(string)
	nextID   int
}

var _ page.Page = (*Page)(nil)

func newPage(ctx context.Context, release func(), opts Options) *Page {
	return &Page{
		ctx:      ctx,
		release:  release,
		opts:     opts,
		closed:   make(chan struct{}),
		net:      newNetState(),
		watchers: make(map[int]func(string)),
	}
}

// run executes actions on the tab, bounded by ctx as well as the tab's lifetime
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ctxErr, err)
		}
		return err
	}
	return nil
}

// eval runs a JavaScript function expression with JSON-encoded arguments
func (p *Page) eval(ctx context.Context, fn string, res any, args ...any) error {
	encoded := make([]byte, 0, 64)
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode argument %d: %w", i, err)
		}
		if i > 0 {
			encoded = append(encoded, ',')
		}
		encoded = append(encoded, b...)
	}
	expr := fmt.Sprintf("(%s)(%s)", fn, encoded)
	return p.run(ctx, chromedp.Evaluate(expr, res))
}

// Navigate opens url, requires a non-error document response and waits for
// the network to go quiet.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.net.beginNavigation()
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	if status := p.net.documentStatus(); status >= 400 {
		return retry.NewHTTPError(status, fmt.Sprintf("document returned %d", status), url)
	}

	if err := p.waitIdle(ctx); err != nil {
		log.Debug().Err(err).Str("url", url).Msg("Network never went idle, continuing")
	}

	var info struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := p.eval(ctx, jsPageInfo, &info); err == nil {
		log.Debug().Str("title", info.Title).Str("final_url", info.URL).Msg("Page loaded")
	}
	return nil
}

// waitIdle blocks until at most IdleMaxInflight requests have been pending
// for IdleWindow, or ctx is done.
func (p *Page) waitIdle(ctx context.Context) error {
	if p.opts.IdleWindow <= 0 {
		return nil
	}
	ticker := time.NewTicker(p.opts.IdleWindow / 5)
	defer ticker.Stop()
	for {
		if p.net.quietFor(p.opts.IdleWindow, p.opts.IdleMaxInflight) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.closed:
			return ErrClosed
		case <-ticker.C:
		}
	}
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := p.eval(ctx, jsCount, &n, selector); err != nil {
		return 0, fmt.Errorf("count %q: %w", selector, err)
	}
	return n, nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	var text *string
	if err := p.eval(ctx, jsText, &text, selector); err != nil {
		return "", fmt.Errorf("text %q: %w", selector, err)
	}
	if text == nil {
		return "", page.ErrNotFound
	}
	return *text, nil
}

func (p *Page) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	var res struct {
		Found bool   `json:"found"`
		Has   bool   `json:"has"`
		Value string `json:"value"`
	}
	if err := p.eval(ctx, jsAttr, &res, selector, name); err != nil {
		return "", false, fmt.Errorf("attr %q %s: %w", selector, name, err)
	}
	if !res.Found {
		return "", false, page.ErrNotFound
	}
	return res.Value, res.Has, nil
}

func (p *Page) OuterHTML(ctx context.Context, selector string) ([]string, error) {
	var html []string
	if err := p.eval(ctx, jsOuterHTML, &html, selector); err != nil {
		return nil, fmt.Errorf("outer html %q: %w", selector, err)
	}
	return html, nil
}

func (p *Page) Controls(ctx context.Context, selector string) ([]page.Control, error) {
	var raw []struct {
		Text     string            `json:"text"`
		Attrs    map[string]string `json:"attrs"`
		Disabled bool              `json:"disabled"`
	}
	if err := p.eval(ctx, jsControls, &raw, selector); err != nil {
		return nil, fmt.Errorf("controls %q: %w", selector, err)
	}
	controls := make([]page.Control, len(raw))
	for i, r := range raw {
		controls[i] = page.Control{Index: i, Text: r.Text, Attrs: r.Attrs, DisabledProp: r.Disabled}
	}
	return controls, nil
}

// Click dispatches a real mouse click on the index-th match, falling back to
// a DOM click when the node cannot be clicked with the pointer.
func (p *Page) Click(ctx context.Context, selector string, index int) error {
	var nodes []*cdp.Node
	err := p.run(ctx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(index+1)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.MouseClickNode(nodes[index]).Do(ctx)
		}),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("click %q[%d]: %w", selector, index, err)
	}

	log.Debug().Err(err).Str("selector", selector).Int("index", index).Msg("Pointer click failed, using DOM click")
	var clicked bool
	if err := p.eval(ctx, jsClick, &clicked, selector, index); err != nil {
		return fmt.Errorf("click %q[%d]: %w", selector, index, err)
	}
	if !clicked {
		return fmt.Errorf("click %q[%d]: %w", selector, index, page.ErrNotFound)
	}
	return nil
}

func (p *Page) WaitTextChange(ctx context.Context, selector, baseline string) error {
	var changed bool
	err := p.run(ctx, chromedp.PollFunction(jsTextChanged, &changed,
		chromedp.WithPollingArgs(selector, baseline),
		chromedp.WithPollingInterval(changePollInterval),
		chromedp.WithPollingTimeout(0),
	))
	if err != nil {
		return fmt.Errorf("wait for %q to change: %w", selector, err)
	}
	return nil
}

func (p *Page) WaitResponse(ctx context.Context, match page.ResponseMatcher) error {
	ch, cancel := p.net.await(match)
	defer cancel()
	select {
	case <-ch:
		return nil
	case <-p.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Page) Remove(ctx context.Context, selector string) (int, error) {
	var n int
	if err := p.eval(ctx, jsRemove, &n, selector); err != nil {
		return 0, fmt.Errorf("remove %q: %w", selector, err)
	}
	return n, nil
}

// WatchRemove installs a MutationObserver that deletes matching nodes as they
// are added. Removals are reported through the page binding.
func (p *Page) WatchRemove(ctx context.Context, selector string, onRemoved func(string)) error {
	p.watchMu.Lock()
	p.nextID++
	id := p.nextID
	if onRemoved != nil {
		p.watchers[id] = onRemoved
	}
	p.watchMu.Unlock()

	if err := p.eval(ctx, jsWatchRemove, nil, selector, removalBinding, id); err != nil {
		p.watchMu.Lock()
		delete(p.watchers, id)
		p.watchMu.Unlock()
		return fmt.Errorf("watch %q: %w", selector, err)
	}
	return nil
}

func (p *Page) notifyRemoved(id int, desc string) {
	p.watchMu.Lock()
	fn := p.watchers[id]
	p.watchMu.Unlock()
	if fn != nil {
		fn(desc)
	}
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("empty key")
	}
	if seq, ok := namedKeys[key]; ok {
		key = seq
	}
	return p.run(ctx, chromedp.KeyEvent(key))
}

func (p *Page) ClickAt(ctx context.Context, x, y float64) error {
	return p.run(ctx, chromedp.MouseClickXY(x, y))
}

func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}

// Close shuts the tab and its browser process. It is safe to call more than once.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		if p.opts.Policy != nil {
			blocked, allowed := p.opts.Policy.Stats()
			log.Debug().Int64("blocked", blocked).Int64("allowed", allowed).Msg("Request policy summary")
		}
		if err := chromedp.Cancel(p.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Msg("Closing browser")
		}
		p.release()
	})
	return nil
}
