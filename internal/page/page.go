// Package page defines the live page-interaction handle the extraction engine
// drives. Implementations live in internal/engine/dynamic (headless Chrome) and
// internal/engine/static (saved HTML replay).
package page

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a selector matches no node
var ErrNotFound = errors.New("no node matches selector")

// ErrNoNetwork is returned by WaitResponse on pages without a network layer
var ErrNoNetwork = errors.New("page has no network layer")

// Control is a snapshot of one interactive element (link or button)
type Control struct {
	Index int
	Text  string
	Attrs map[string]string
	// DisabledProp mirrors the element's disabled DOM property
	DisabledProp bool
}

// Disabled reports whether the control is marked disabled by an explicit
// disabled attribute or property, a "disabled" class, or aria-disabled="true".
func (c Control) Disabled() bool {
	if c.DisabledProp {
		return true
	}
	if _, ok := c.Attrs["disabled"]; ok {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(c.Attrs["aria-disabled"]), "true") {
		return true
	}
	for _, class := range strings.Fields(c.Attrs["class"]) {
		if class == "disabled" {
			return true
		}
	}
	return false
}

// Response describes a network response observed by the page
type Response struct {
	URL    string
	Status int
}

// ResponseMatcher selects the responses WaitResponse waits for
type ResponseMatcher func(Response) bool

// Page is a live, borrowed page-interaction handle. Methods are called
// sequentially by one session, except WaitResponse which may run alongside
// the call that triggers the response. Blocking methods honour ctx deadlines.
type Page interface {
	// Navigate opens url and waits until the content has settled
	Navigate(ctx context.Context, url string) error
	// Count returns the number of nodes matching selector
	Count(ctx context.Context, selector string) (int, error)
	// Text returns the trimmed text of the first match or ErrNotFound
	Text(ctx context.Context, selector string) (string, error)
	// Attr returns an attribute of the first match
	Attr(ctx context.Context, selector, name string) (string, bool, error)
	// OuterHTML returns the markup of every match in DOM order
	OuterHTML(ctx context.Context, selector string) ([]string, error)
	// Controls snapshots every match as a Control in DOM order
	Controls(ctx context.Context, selector string) ([]Control, error)
	// Click activates the index-th match of selector
	Click(ctx context.Context, selector string, index int) error
	// WaitTextChange blocks until the first match's trimmed text differs from baseline
	WaitTextChange(ctx context.Context, selector, baseline string) error
	// WaitResponse blocks until a response satisfying match is observed
	WaitResponse(ctx context.Context, match ResponseMatcher) error
	// Remove deletes every current match and returns how many were removed
	Remove(ctx context.Context, selector string) (int, error)
	// WatchRemove removes any node matching selector added from now on for the
	// rest of the session; onRemoved (may be nil) is told about each removal.
	WatchRemove(ctx context.Context, selector string, onRemoved func(desc string)) error
	// PressKey dispatches a single key press (e.g. "Escape")
	PressKey(ctx context.Context, key string) error
	// ClickAt dispatches a pointer click at viewport coordinates
	ClickAt(ctx context.Context, x, y float64) error
	// Content returns the current serialised document
	Content(ctx context.Context) (string, error)
	// Close releases the underlying session resource
	Close() error
}

// OpenOptions are per-session settings passed to an Opener
type OpenOptions struct {
	Proxy string
}

// Opener creates page sessions. The caller owns the returned Page and must Close it.
type Opener interface {
	Open(ctx context.Context, opts OpenOptions) (Page, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(ctx context.Context, opts OpenOptions) (Page, error)

// Open calls f
func (f OpenerFunc) Open(ctx context.Context, opts OpenOptions) (Page, error) {
	return f(ctx, opts)
}
