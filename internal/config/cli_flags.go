package config

import (
	"github.com/spf13/cobra"
)

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Suppress all output except errors")
	pf.Bool("json", false, "Log in JSON format")
	pf.String("log-file", "", "Also write JSON logs to this file, rotated by size")
	pf.String("proxy", "", "HTTP/SOCKS5 proxy, or a comma separated list rotated per session")
	pf.String("timeout", DefaultSessionTimeout.String(), "Hard timeout for one scraping session")
	pf.String("user-agent", "", "Custom user agent string")
	pf.String("chrome-path", "", "Path to the Chrome/Chromium binary")
	pf.String("session", "", "Saved cookie session to load before navigation")
	pf.StringArrayP("header", "H", nil, "Extra request header (\"Name: value\"), repeatable")
	pf.StringArray("block", nil, "Additional URL prefix to block, repeatable")
	pf.Bool("headful", false, "Show the browser window (enables diagnostics)")
	pf.Bool("diagnostics", false, "Write numbered HTML snapshots of each stage")
	pf.String("diagnostics-dir", "", "Directory for diagnostic snapshots (default \""+DefaultDiagnosticsDir+"\")")
	pf.Int("retries", DefaultRetries, "Retries for the initial page load")
	pf.String("cache", "", "Report cache database shared across runs (default under the user cache dir)")
	pf.Bool("no-cache", false, "Neither read nor write the report cache")
}

// RegisterBatchFlags registers flags used only by batch runs
func RegisterBatchFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("concurrency", "c", DefaultConcurrency, "Concurrent browser sessions")
	cmd.Flags().Float64("rate", DefaultRateLimitRPS, "Sessions started per second per domain")
}
