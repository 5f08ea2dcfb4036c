// Package overlay removes dialogs, popups and other transient layers that can
// block interaction with the review widget.
package overlay

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/law-makers/revscrape/internal/page"
)

// DefaultPatterns matches the role and class heuristics for blocking overlays
var DefaultPatterns = []string{
	`[role="dialog"]`,
	`[aria-modal="true"]`,
	`div[class*="modal"]`,
	`div[class*="popup"]`,
	`div[class*="overlay"]`,
}

// Report summarises one suppression pass
type Report struct {
	Removed      int
	Watching     bool
	KeyDismissed bool
	ClickedAway  bool
}

// Suppressor removes overlays once and keeps a standing watch for new ones
type Suppressor struct {
	Patterns []string
	// StepTimeout bounds each individual technique
	StepTimeout time.Duration
	Logger      zerolog.Logger
}

// New creates a Suppressor using DefaultPatterns
func New(logger zerolog.Logger, stepTimeout time.Duration) *Suppressor {
	if stepTimeout <= 0 {
		stepTimeout = 5 * time.Second
	}
	return &Suppressor{
		Patterns:    DefaultPatterns,
		StepTimeout: stepTimeout,
		Logger:      logger,
	}
}

func (s *Suppressor) selector() string {
	return strings.Join(s.Patterns, ", ")
}

// Suppress runs every technique against p. It never fails: each technique's
// error is logged and the next one still runs.
func (s *Suppressor) Suppress(ctx context.Context, p page.Page) Report {
	var report Report
	sel := s.selector()

	s.step(ctx, "remove", func(ctx context.Context) error {
		n, err := p.Remove(ctx, sel)
		report.Removed = n
		if n > 0 {
			s.Logger.Debug().Int("count", n).Msg("Removed overlays")
		}
		return err
	})

	s.step(ctx, "watch", func(ctx context.Context) error {
		err := p.WatchRemove(ctx, sel, func(desc string) {
			s.Logger.Debug().Str("node", desc).Msg("Removed injected overlay")
		})
		report.Watching = err == nil
		return err
	})

	s.step(ctx, "escape", func(ctx context.Context) error {
		err := p.PressKey(ctx, "Escape")
		report.KeyDismissed = err == nil
		return err
	})

	s.step(ctx, "click-away", func(ctx context.Context) error {
		err := p.ClickAt(ctx, 0, 0)
		report.ClickedAway = err == nil
		return err
	})

	return report
}

func (s *Suppressor) step(ctx context.Context, name string, fn func(context.Context) error) {
	stepCtx, cancel := context.WithTimeout(ctx, s.StepTimeout)
	defer cancel()

	if err := fn(stepCtx); err != nil {
		s.Logger.Debug().Err(err).Str("technique", name).Msg("Overlay suppression step failed")
	}
}
