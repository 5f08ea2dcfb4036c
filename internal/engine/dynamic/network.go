package dynamic

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/revscrape/internal/netpolicy"
	"github.com/law-makers/revscrape/internal/page"
)

// consoleNoise matches browser console output that never affects the widget
var consoleNoise = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Content Security Policy`),
	regexp.MustCompile(`(?i)Refused to evaluate.*unsafe-eval`),
	regexp.MustCompile(`(?i)script-src 'none'`),
	regexp.MustCompile(`(?i)net::ERR_FAILED`),
	regexp.MustCompile(`(?i)CORS policy`),
	regexp.MustCompile(`(?i)Access to XMLHttpRequest`),
}

// IsConsoleNoise reports whether a console message should not be forwarded
func IsConsoleNoise(text string) bool {
	for _, re := range consoleNoise {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

type responseWaiter struct {
	match page.ResponseMatcher
	done  chan struct{}
}

// netState tracks in-flight requests, the main document status and response waiters
type netState struct {
	mu        sync.Mutex
	inflight  map[network.RequestID]struct{}
	last      time.Time
	docStatus int
	docSeen   bool
	waiters   map[*responseWaiter]struct{}
}

func newNetState() *netState {
	return &netState{
		inflight: make(map[network.RequestID]struct{}),
		last:     time.Now(),
		waiters:  make(map[*responseWaiter]struct{}),
	}
}

func (n *netState) beginNavigation() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.docSeen = false
	n.docStatus = 0
	n.inflight = make(map[network.RequestID]struct{})
	n.last = time.Now()
}

func (n *netState) started(id network.RequestID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inflight[id] = struct{}{}
	n.last = time.Now()
}

func (n *netState) finished(id network.RequestID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.inflight[id]; ok {
		delete(n.inflight, id)
		n.last = time.Now()
	}
}

// quietFor reports whether no more than maxInflight requests have been
// pending and nothing has started or finished for window
func (n *netState) quietFor(window time.Duration, maxInflight int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.inflight) <= maxInflight && time.Since(n.last) >= window
}

func (n *netState) documentStatus() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.docStatus
}

func (n *netState) response(r page.Response, document bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if document && !n.docSeen {
		n.docSeen = true
		n.docStatus = r.Status
	}
	for w := range n.waiters {
		if w.match(r) {
			close(w.done)
			delete(n.waiters, w)
		}
	}
}

// await registers a waiter; the returned cancel must be called when done
func (n *netState) await(match page.ResponseMatcher) (<-chan struct{}, func()) {
	w := &responseWaiter{match: match, done: make(chan struct{})}
	n.mu.Lock()
	n.waiters[w] = struct{}{}
	n.mu.Unlock()
	return w.done, func() {
		n.mu.Lock()
		delete(n.waiters, w)
		n.mu.Unlock()
	}
}

// onEvent handles target events. It must not block: CDP commands are sent
// from separate goroutines.
func (p *Page) onEvent(ev any) {
	switch ev := ev.(type) {
	case *fetch.EventRequestPaused:
		go p.resolveRequest(ev)

	case *network.EventRequestWillBeSent:
		p.net.started(ev.RequestID)

	case *network.EventLoadingFinished:
		p.net.finished(ev.RequestID)

	case *network.EventLoadingFailed:
		p.net.finished(ev.RequestID)

	case *network.EventResponseReceived:
		if ev.Response == nil {
			return
		}
		p.net.response(page.Response{URL: ev.Response.URL, Status: int(ev.Response.Status)}, ev.Type == network.ResourceTypeDocument)

	case *runtime.EventBindingCalled:
		if ev.Name != removalBinding {
			return
		}
		var payload struct {
			ID   int    `json:"id"`
			Desc string `json:"desc"`
		}
		if err := json.Unmarshal([]byte(ev.Payload), &payload); err == nil {
			go p.notifyRemoved(payload.ID, payload.Desc)
		}

	case *runtime.EventConsoleAPICalled:
		if !p.opts.ForwardConsole {
			return
		}
		text := consoleText(ev.Args)
		if text == "" || IsConsoleNoise(text) {
			return
		}
		log.Debug().Str("type", string(ev.Type)).Str("text", text).Msg("Browser console")

	case *runtime.EventExceptionThrown:
		if !p.opts.ForwardConsole || ev.ExceptionDetails == nil {
			return
		}
		msg := ev.ExceptionDetails.Text
		if ev.ExceptionDetails.Exception != nil && ev.ExceptionDetails.Exception.Description != "" {
			msg = ev.ExceptionDetails.Exception.Description
		}
		log.Debug().Str("error", msg).Msg("Page error")
	}
}

// resolveRequest continues or fails a paused request according to the policy
func (p *Page) resolveRequest(ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(p.ctx, c.Target)

	url := ""
	if ev.Request != nil {
		url = ev.Request.URL
	}

	var err error
	if p.opts.Policy != nil && p.opts.Policy.Decide(url) == netpolicy.Block {
		log.Debug().Str("url", url).Msg("Blocked request")
		err = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
	} else {
		err = fetch.ContinueRequest(ev.RequestID).Do(execCtx)
	}
	if err != nil {
		select {
		case <-p.closed:
		default:
			log.Debug().Err(err).Str("url", url).Msg("Resolving intercepted request")
		}
	}
}

// consoleText joins console arguments the way the browser prints them
func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		switch {
		case len(arg.Value) > 0:
			var s string
			if err := json.Unmarshal(arg.Value, &s); err == nil {
				parts = append(parts, s)
			} else {
				parts = append(parts, string(arg.Value))
			}
		case arg.Description != "":
			parts = append(parts, arg.Description)
		}
	}
	return strings.Join(parts, " ")
}
