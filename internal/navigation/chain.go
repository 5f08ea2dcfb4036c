// Package navigation advances the review widget to its next page using an
// ordered chain of strategies and verifies that the content actually changed.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/law-makers/revscrape/internal/page"
	"github.com/law-makers/revscrape/internal/selectors"
	"github.com/law-makers/revscrape/pkg/models"
)

var (
	ErrNoControl       = errors.New("no matching control")
	ErrControlDisabled = errors.New("control is disabled")
	ErrNoContentChange = errors.New("content did not change")
)

// Timings bounds every wait a strategy performs
type Timings struct {
	// Response caps the advisory wait for the batch-fetch response
	Response time.Duration
	// Change caps the wait for the first item's text to differ from its baseline
	Change time.Duration
	// Settle is the fixed delay after activating a page-number or generic control
	Settle time.Duration
}

// DefaultTimings matches the widget's usual loading behaviour
func DefaultTimings() Timings {
	return Timings{
		Response: 10 * time.Second,
		Change:   30 * time.Second,
		Settle:   2 * time.Second,
	}
}

// Strategy is one way of advancing from page current to current+1.
// A nil error means the advance succeeded.
type Strategy interface {
	Name() string
	Advance(ctx context.Context, p page.Page, current int) error
}

// Chain tries its strategies in order and stops at the first success
type Chain struct {
	Strategies []Strategy
	Logger     zerolog.Logger
}

// NewChain builds the next-control, page-number, generic-next chain.
// marker is the selector whose first match's text is the content-change baseline.
func NewChain(cat selectors.Catalog, marker string, timings Timings, logger zerolog.Logger) *Chain {
	base := verifier{marker: marker, timings: timings, logger: logger}
	return &Chain{
		Strategies: []Strategy{
			&NextControl{verifier: base, Candidates: cat.Candidates(selectors.NextControl)},
			&PageNumber{verifier: base, Candidates: cat.Candidates(selectors.PaginationLinks)},
			&GenericNext{verifier: base, Candidates: cat.Candidates(selectors.GenericNext)},
		},
		Logger: logger,
	}
}

// Advance moves from page current (1-based) towards total
func (c *Chain) Advance(ctx context.Context, p page.Page, current, total int) models.NavigationOutcome {
	if current >= total {
		return models.NavigationOutcome{Kind: models.Exhausted, Reason: "last page reached"}
	}

	var reasons []string
	for _, s := range c.Strategies {
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, err.Error())
			break
		}

		start := time.Now()
		err := s.Advance(ctx, p, current)
		if err == nil {
			c.Logger.Debug().
				Str("strategy", s.Name()).
				Int("page", current+1).
				Dur("elapsed", time.Since(start)).
				Msg("Advanced page")
			return models.NavigationOutcome{Kind: models.Advanced, Strategy: s.Name()}
		}

		c.Logger.Debug().Err(err).Str("strategy", s.Name()).Int("page", current).Msg("Navigation strategy failed")
		reasons = append(reasons, fmt.Sprintf("%s: %v", s.Name(), err))
	}

	return models.NavigationOutcome{Kind: models.Failed, Reason: strings.Join(reasons, "; ")}
}

// verifier holds what every strategy needs to confirm an advance
type verifier struct {
	marker  string
	timings Timings
	logger  zerolog.Logger
}

func (v verifier) baseline(ctx context.Context, p page.Page) string {
	text, err := p.Text(ctx, v.marker)
	if err != nil {
		return ""
	}
	return text
}

func (v verifier) waitChange(ctx context.Context, p page.Page, baseline string) error {
	changeCtx, cancel := context.WithTimeout(ctx, v.timings.Change)
	defer cancel()

	if err := p.WaitTextChange(changeCtx, v.marker, baseline); err != nil {
		return fmt.Errorf("%w: %v", ErrNoContentChange, err)
	}
	return nil
}

func (v verifier) settle(ctx context.Context) error {
	if v.timings.Settle <= 0 {
		return nil
	}
	t := time.NewTimer(v.timings.Settle)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// firstEnabled returns the first enabled control across candidates that keep satisfies
func firstEnabled(ctx context.Context, p page.Page, candidates []string, keep func(page.Control) bool) (string, page.Control, error) {
	sawDisabled := false
	for _, sel := range candidates {
		controls, err := p.Controls(ctx, sel)
		if err != nil {
			continue
		}
		for _, c := range controls {
			if !keep(c) {
				continue
			}
			if c.Disabled() {
				sawDisabled = true
				continue
			}
			return sel, c, nil
		}
	}
	if sawDisabled {
		return "", page.Control{}, ErrControlDisabled
	}
	return "", page.Control{}, ErrNoControl
}

func anyControl(page.Control) bool { return true }
