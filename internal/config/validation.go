package config

import (
	"fmt"
	"time"

	"github.com/law-makers/revscrape/internal/utils/headers"
)

func validate(c *Config) error {
	if c.Timeout <= 0 {
		return fmt.Errorf("session timeout must be > 0")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must be >= 0")
	}
	if c.Concurrency <= 0 || c.Concurrency > DefaultMaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d", DefaultMaxConcurrency)
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate must be > 0")
	}
	if c.CacheMaxSize <= 0 {
		return fmt.Errorf("cache size must be > 0")
	}
	if c.Diagnostics && c.DiagnosticsDir == "" {
		return fmt.Errorf("diagnostics directory must be set when diagnostics are enabled")
	}
	if _, err := headers.Parse(c.Headers); err != nil {
		return err
	}

	t := c.Timings
	for _, w := range []struct {
		name string
		d    time.Duration
	}{
		{"navigate", t.Navigate},
		{"container wait", t.ContainerWait},
		{"response", t.Response},
		{"change", t.Change},
		{"overlay", t.Overlay},
	} {
		if w.d <= 0 {
			return fmt.Errorf("%s timeout must be > 0", w.name)
		}
	}
	return nil
}
