// Package netpolicy decides which outgoing browser requests are aborted.
package netpolicy

import (
	"strings"
	"sync/atomic"
)

// AnalyticsBeacon is the widget's "reviews shown" tracking request
const AnalyticsBeacon = "https://p.yotpo.com/i?e=se&se_ca=reviews&se_ac=shown&se_psk"

// Decision is the verdict for one request
type Decision int

const (
	Continue Decision = iota
	Block
)

func (d Decision) String() string {
	if d == Block {
		return "block"
	}
	return "continue"
}

// Policy blocks every request whose URL contains one of its patterns and lets
// all others through. It is safe for concurrent use.
type Policy struct {
	patterns []string
	blocked  atomic.Int64
	allowed  atomic.Int64
}

// New creates a policy blocking the analytics beacon plus extra patterns
func New(extra ...string) *Policy {
	patterns := []string{AnalyticsBeacon}
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Policy{patterns: patterns}
}

// Decide returns Block for a matching URL and records the outcome
func (p *Policy) Decide(url string) Decision {
	for _, pattern := range p.patterns {
		if strings.Contains(url, pattern) {
			p.blocked.Add(1)
			return Block
		}
	}
	p.allowed.Add(1)
	return Continue
}

// Patterns returns the active patterns
func (p *Policy) Patterns() []string {
	return append([]string(nil), p.patterns...)
}

// Stats returns how many requests were blocked and allowed so far
func (p *Policy) Stats() (blocked, allowed int64) {
	return p.blocked.Load(), p.allowed.Load()
}
