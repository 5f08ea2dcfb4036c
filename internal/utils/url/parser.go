package urlutil

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ValidateURL accepts absolute http(s) URLs with a host, and file URLs with a path
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https":
		if parsed.Host == "" {
			return fmt.Errorf("invalid URL: missing host")
		}
	case "file":
		if parsed.Path == "" {
			return fmt.Errorf("invalid URL: missing file path")
		}
	default:
		return fmt.Errorf("invalid URL scheme: must be http, https or file, got %q", parsed.Scheme)
	}

	return nil
}

// ResolveURL resolves a possibly-relative href against a base URL and returns a string
func ResolveURL(base, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// Domain returns the host of urlStr, or "" when it has none
func Domain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// FileURL converts a local path to an absolute file:// URL
func FileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
