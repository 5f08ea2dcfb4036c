package batch

import (
	urlutil "github.com/law-makers/revscrape/internal/utils/url"
)

// Interleave reorders urls round robin across their hosts so consecutive
// sessions hit different shops. Order within one host is preserved.
func Interleave(urls []string) []string {
	groups := make(map[string][]string)
	var hosts []string
	for _, u := range urls {
		host := urlutil.Domain(u)
		if _, ok := groups[host]; !ok {
			hosts = append(hosts, host)
		}
		groups[host] = append(groups[host], u)
	}

	out := make([]string, 0, len(urls))
	for len(out) < len(urls) {
		for _, host := range hosts {
			if q := groups[host]; len(q) > 0 {
				out = append(out, q[0])
				groups[host] = q[1:]
			}
		}
	}
	return out
}

// dedupe drops repeated URLs, keeping the first occurrence
func dedupe(urls []string, key func(string) string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		k := key(u)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, u)
	}
	return out
}
