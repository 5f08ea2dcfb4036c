// Package pagetest provides a scriptable page.Page for unit tests.
package pagetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/law-makers/revscrape/internal/page"
)

// Fake implements page.Page. Each method delegates to its Fn field when set
// and otherwise returns a zero value; every call is recorded.
type Fake struct {
	NavigateFn       func(ctx context.Context, url string) error
	CountFn          func(ctx context.Context, selector string) (int, error)
	TextFn           func(ctx context.Context, selector string) (string, error)
	AttrFn           func(ctx context.Context, selector, name string) (string, bool, error)
	OuterHTMLFn      func(ctx context.Context, selector string) ([]string, error)
	ControlsFn       func(ctx context.Context, selector string) ([]page.Control, error)
	ClickFn          func(ctx context.Context, selector string, index int) error
	WaitTextChangeFn func(ctx context.Context, selector, baseline string) error
	WaitResponseFn   func(ctx context.Context, match page.ResponseMatcher) error
	RemoveFn         func(ctx context.Context, selector string) (int, error)
	WatchRemoveFn    func(ctx context.Context, selector string, onRemoved func(string)) error
	PressKeyFn       func(ctx context.Context, key string) error
	ClickAtFn        func(ctx context.Context, x, y float64) error
	ContentFn        func(ctx context.Context) (string, error)

	mu     sync.Mutex
	calls  []string
	closed int
}

var _ page.Page = (*Fake)(nil)

func (f *Fake) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// Calls returns every recorded call in order, e.g. "Click(a.next,0)"
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many recorded calls start with prefix
func (f *Fake) CallCount(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// Closed returns how many times Close was called
func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.record("Navigate(%s)", url)
	if f.NavigateFn != nil {
		return f.NavigateFn(ctx, url)
	}
	return nil
}

func (f *Fake) Count(ctx context.Context, selector string) (int, error) {
	f.record("Count(%s)", selector)
	if f.CountFn != nil {
		return f.CountFn(ctx, selector)
	}
	return 0, nil
}

func (f *Fake) Text(ctx context.Context, selector string) (string, error) {
	f.record("Text(%s)", selector)
	if f.TextFn != nil {
		return f.TextFn(ctx, selector)
	}
	return "", page.ErrNotFound
}

func (f *Fake) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	f.record("Attr(%s,%s)", selector, name)
	if f.AttrFn != nil {
		return f.AttrFn(ctx, selector, name)
	}
	return "", false, nil
}

func (f *Fake) OuterHTML(ctx context.Context, selector string) ([]string, error) {
	f.record("OuterHTML(%s)", selector)
	if f.OuterHTMLFn != nil {
		return f.OuterHTMLFn(ctx, selector)
	}
	return nil, nil
}

func (f *Fake) Controls(ctx context.Context, selector string) ([]page.Control, error) {
	f.record("Controls(%s)", selector)
	if f.ControlsFn != nil {
		return f.ControlsFn(ctx, selector)
	}
	return nil, nil
}

func (f *Fake) Click(ctx context.Context, selector string, index int) error {
	f.record("Click(%s,%d)", selector, index)
	if f.ClickFn != nil {
		return f.ClickFn(ctx, selector, index)
	}
	return nil
}

func (f *Fake) WaitTextChange(ctx context.Context, selector, baseline string) error {
	f.record("WaitTextChange(%s)", selector)
	if f.WaitTextChangeFn != nil {
		return f.WaitTextChangeFn(ctx, selector, baseline)
	}
	return nil
}

func (f *Fake) WaitResponse(ctx context.Context, match page.ResponseMatcher) error {
	f.record("WaitResponse")
	if f.WaitResponseFn != nil {
		return f.WaitResponseFn(ctx, match)
	}
	return page.ErrNoNetwork
}

func (f *Fake) Remove(ctx context.Context, selector string) (int, error) {
	f.record("Remove(%s)", selector)
	if f.RemoveFn != nil {
		return f.RemoveFn(ctx, selector)
	}
	return 0, nil
}

func (f *Fake) WatchRemove(ctx context.Context, selector string, onRemoved func(string)) error {
	f.record("WatchRemove(%s)", selector)
	if f.WatchRemoveFn != nil {
		return f.WatchRemoveFn(ctx, selector, onRemoved)
	}
	return nil
}

func (f *Fake) PressKey(ctx context.Context, key string) error {
	f.record("PressKey(%s)", key)
	if f.PressKeyFn != nil {
		return f.PressKeyFn(ctx, key)
	}
	return nil
}

func (f *Fake) ClickAt(ctx context.Context, x, y float64) error {
	f.record("ClickAt(%v,%v)", x, y)
	if f.ClickAtFn != nil {
		return f.ClickAtFn(ctx, x, y)
	}
	return nil
}

func (f *Fake) Content(ctx context.Context) (string, error) {
	f.record("Content")
	if f.ContentFn != nil {
		return f.ContentFn(ctx)
	}
	return "<html></html>", nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}
