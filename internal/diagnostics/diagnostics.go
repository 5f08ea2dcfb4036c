// Package diagnostics persists named snapshots of the rendered page so a
// failed or surprising run can be inspected afterwards.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/law-makers/revscrape/internal/utils/output"
)

// widgetOutline selects the subtree written to the .outline.txt companion file
const widgetOutline = `[class*="yotpo"]`

// Source supplies the content to snapshot; page.Page satisfies it
type Source interface {
	Content(ctx context.Context) (string, error)
}

// Sink accepts named snapshots. Implementations never return errors.
type Sink interface {
	Snapshot(ctx context.Context, name, description string, src Source)
}

// Nop discards every snapshot
type Nop struct{}

// Snapshot does nothing
func (Nop) Snapshot(context.Context, string, string, Source) {}

// FileSink writes each snapshot as name.html, plus a Markdown rendition and an
// outline of the widget subtree when one is present.
type FileSink struct {
	Dir     string
	BaseURL string
	Logger  zerolog.Logger

	mu      sync.Mutex
	written []string
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewFileSink creates a sink writing under dir. The directory is created lazily.
func NewFileSink(dir, baseURL string, logger zerolog.Logger) *FileSink {
	return &FileSink{Dir: dir, BaseURL: baseURL, Logger: logger}
}

// Snapshot captures src and writes it. Failures are logged and swallowed.
func (s *FileSink) Snapshot(ctx context.Context, name, description string, src Source) {
	if err := s.write(ctx, name, src); err != nil {
		s.Logger.Warn().Err(err).Str("snapshot", name).Msg("Failed to save diagnostic snapshot")
		return
	}
	s.Logger.Debug().Str("snapshot", name).Str("description", description).Str("dir", s.Dir).Msg("Saved diagnostic snapshot")
}

// Written returns the base names of the snapshots written so far
func (s *FileSink) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

func (s *FileSink) write(ctx context.Context, name string, src Source) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot panicked: %v", r)
		}
	}()

	content, err := src.Content(ctx)
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.Dir, err)
	}

	base := filepath.Join(s.Dir, sanitize(name))
	if err := os.WriteFile(base+".html", []byte(content), 0o644); err != nil {
		return err
	}

	if mdStr, err := output.HTMLToMarkdown(s.BaseURL, content); err == nil {
		if err := os.WriteFile(base+".md", []byte(mdStr), 0o644); err != nil {
			return err
		}
	} else {
		s.Logger.Debug().Err(err).Str("snapshot", name).Msg("Markdown rendition skipped")
	}

	if outline, err := output.Outline(content, widgetOutline); err == nil && outline != "" {
		if err := os.WriteFile(base+".outline.txt", []byte(outline), 0o644); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.written = append(s.written, sanitize(name))
	s.mu.Unlock()
	return nil
}

func sanitize(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".html")
	name = unsafeName.ReplaceAllString(name, "_")
	if name == "" {
		return "snapshot"
	}
	return name
}
