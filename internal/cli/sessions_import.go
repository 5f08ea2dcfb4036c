package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/revscrape/internal/auth"
	"github.com/law-makers/revscrape/internal/ui"
	urlutil "github.com/law-makers/revscrape/internal/utils/url"
)

var (
	importURL    string
	importFormat string
)

// sessionsImportCmd represents the sessions import command
var sessionsImportCmd = &cobra.Command{
	Use:   "import <session-name>",
	Short: "Import cookies exported from a browser",
	Long: `Create a session from cookies read on standard input.

Formats:
  json      DevTools or extension export: an array of cookie objects
  netscape  cookies.txt as written by curl or browser extensions
  header    a single Cookie request header: "name=value; name2=value2"`,
	Example: `  # Netscape/curl cookies.txt
  revscrape sessions import shop-eu --url=https://shop.example.com --format=netscape < cookies.txt

  # JSON export
  revscrape sessions import shop-eu --url=https://shop.example.com --format=json < cookies.json

  # Cookie header copied from DevTools
  echo "consent=yes; region=EU" | revscrape sessions import shop-eu --url=https://shop.example.com --format=header`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsImport,
}

func init() {
	sessionsCmd.AddCommand(sessionsImportCmd)

	sessionsImportCmd.Flags().StringVar(&importURL, "url", "", "Website URL for this session (required)")
	sessionsImportCmd.Flags().StringVar(&importFormat, "format", "netscape", "Import format: json, netscape, header")
	sessionsImportCmd.MarkFlagRequired("url")
}

// readCookies parses r in the named format
func readCookies(r io.Reader, format, rawURL string) ([]auth.Cookie, error) {
	switch format {
	case "json":
		return auth.ParseJSON(r)
	case "netscape":
		return auth.ParseNetscape(r)
	case "header":
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		header := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(b)), "Cookie:"))
		return auth.ParseHeader(header, urlutil.Domain(rawURL)), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (use: json, netscape, header)", format)
	}
}

func runSessionsImport(cmd *cobra.Command, args []string) error {
	store, err := sessionStore(cmd)
	if err != nil {
		return err
	}
	name := args[0]

	if err := urlutil.ValidateURL(importURL); err != nil {
		return err
	}

	cookies, err := readCookies(cmd.InOrStdin(), importFormat, importURL)
	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("no cookies imported")
	}

	session := auth.NewSession(name, importURL, cookies)
	if err := store.Save(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n%s Session '%s' created\n", ui.Success("✓"), name)
	fmt.Fprintf(w, "   Cookies: %d (%d for %s)\n", len(cookies), len(session.ForURL(importURL)), urlutil.Domain(importURL))
	if !session.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "   Expires: %s\n", session.ExpiresAt.Format(time.RFC1123))
	}
	fmt.Fprintf(w, "\nUse with:\n  revscrape scrape <url> --session=%s\n\n", name)
	return nil
}
