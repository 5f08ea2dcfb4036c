package navigation

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/law-makers/revscrape/internal/page"
	"github.com/law-makers/revscrape/internal/pagination"
)

const (
	batchHost       = "staticw2.yotpo.com"
	batchPathPrefix = "/batch/app_key"
)

// BatchResponse matches the widget's successful batch-fetch response
func BatchResponse(r page.Response) bool {
	if r.Status != 200 {
		return false
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return false
	}
	return u.Scheme == "https" && u.Hostname() == batchHost && strings.HasPrefix(u.Path, batchPathPrefix)
}

// NextControl clicks the widget's own next button and requires the first
// item's text to change. The batch-fetch response is only logged.
type NextControl struct {
	verifier
	Candidates []string
}

func (s *NextControl) Name() string { return "next-control" }

func (s *NextControl) Advance(ctx context.Context, p page.Page, current int) error {
	sel, control, err := s.find(ctx, p)
	if err != nil {
		return err
	}

	baseline := s.baseline(ctx, p)

	respCtx, cancelResp := context.WithTimeout(ctx, s.timings.Response)
	defer cancelResp()
	respDone := make(chan error, 1)
	go func() {
		respDone <- p.WaitResponse(respCtx, BatchResponse)
	}()

	if err := p.Click(ctx, sel, control.Index); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}

	if err := s.waitChange(ctx, p, baseline); err != nil {
		return err
	}

	select {
	case err := <-respDone:
		if err != nil {
			s.logger.Debug().Err(err).Int("page", current+1).Msg("Batch response not observed")
		} else {
			s.logger.Debug().Int("page", current+1).Msg("Batch response observed")
		}
	default:
		s.logger.Debug().Int("page", current+1).Msg("Content changed before batch response")
	}
	return nil
}

// find returns the first node of the first present candidate. Only that node
// is considered: a disabled next button means the widget has no next page.
func (s *NextControl) find(ctx context.Context, p page.Page) (string, page.Control, error) {
	for _, sel := range s.Candidates {
		controls, err := p.Controls(ctx, sel)
		if err != nil || len(controls) == 0 {
			continue
		}
		if controls[0].Disabled() {
			return "", page.Control{}, ErrControlDisabled
		}
		return sel, controls[0], nil
	}
	return "", page.Control{}, ErrNoControl
}

// PageNumber clicks the pagination control labelled current+1, waits the
// settle interval and requires a content change.
type PageNumber struct {
	verifier
	Candidates []string
}

func (s *PageNumber) Name() string { return "page-number" }

func (s *PageNumber) Advance(ctx context.Context, p page.Page, current int) error {
	target := current + 1
	sel, control, err := firstEnabled(ctx, p, s.Candidates, func(c page.Control) bool {
		n, ok := pagination.PageLabel(c.Text)
		return ok && n == target
	})
	if err != nil {
		return fmt.Errorf("page %d: %w", target, err)
	}

	baseline := s.baseline(ctx, p)
	if err := p.Click(ctx, sel, control.Index); err != nil {
		return fmt.Errorf("click page %d: %w", target, err)
	}
	if err := s.settle(ctx); err != nil {
		return err
	}
	return s.waitChange(ctx, p, baseline)
}

// GenericNext clicks the first enabled next-shaped control anywhere on the
// page and waits the settle interval. It does not verify the advance.
type GenericNext struct {
	verifier
	Candidates []string
}

func (s *GenericNext) Name() string { return "generic-next" }

func (s *GenericNext) Advance(ctx context.Context, p page.Page, current int) error {
	sel, control, err := firstEnabled(ctx, p, s.Candidates, anyControl)
	if err != nil {
		return err
	}
	if err := p.Click(ctx, sel, control.Index); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	s.logger.Debug().Int("page", current+1).Str("selector", sel).Msg("Clicked generic next control")
	return s.settle(ctx)
}
