package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/law-makers/revscrape/internal/config"
	"github.com/law-makers/revscrape/internal/ui"
	"github.com/law-makers/revscrape/internal/utils/output"
	urlutil "github.com/law-makers/revscrape/internal/utils/url"
	"github.com/law-makers/revscrape/pkg/models"
)

var batchOutputDir string

var batchCmd = &cobra.Command{
	Use:   "batch <url...|@file>",
	Short: "Extract reviews from many product pages concurrently",
	Long: `Run one independent browser session per URL, a few at a time, spacing out
sessions against the same shop. Arguments starting with @ name a file with
one URL per line; blank lines and lines starting with # are ignored.`,
	Example: `  # Two pages, results summarised
  revscrape batch https://a.example.com/p/1 https://b.example.com/p/2

  # URLs from a file, one JSON report per page
  revscrape batch @urls.txt -c 4 --output-dir reviews/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "", "Write one JSON report per URL into this directory")
	config.RegisterBatchFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	urls, err := expandTargets(args)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given")
	}
	if batchOutputDir != "" {
		if err := os.MkdirAll(batchOutputDir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	runner := a.Batch(a.Config.Concurrency, os.Stderr)
	results := runner.RunAll(cmd.Context(), urls)

	failed := 0
	total := 0
	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	for i, res := range results {
		line := summarize(res)
		if res.Error != nil {
			failed++
		}
		if res.Report != nil {
			total += len(res.Report.Records)
			if batchOutputDir != "" {
				path := filepath.Join(batchOutputDir, fmt.Sprintf("%03d-%s.json", i+1, fileSafe(urlutil.Domain(res.URL))))
				if err := output.Save(res.Report, path); err != nil {
					line += " " + ui.Error("save failed: "+err.Error())
				}
			}
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\n%s %d reviews from %d pages (%d failed)\n", ui.Bold("Total:"), total, len(results), failed)
	if failed == len(results) {
		return fmt.Errorf("all %d sessions failed", failed)
	}
	return nil
}

// summarize renders one batch result as a status line
func summarize(res models.BatchResult) string {
	n := 0
	if res.Report != nil {
		n = len(res.Report.Records)
	}
	switch {
	case res.Error != nil:
		return fmt.Sprintf("%s %s %s", ui.Error("✗"), res.URL, ui.Dim(fmt.Sprintf("(%d records) %v", n, res.Error)))
	case res.Cached:
		return fmt.Sprintf("%s %s %s", ui.Success("✓"), res.URL, ui.Dim(fmt.Sprintf("%d records, cached", n)))
	default:
		return fmt.Sprintf("%s %s %s", ui.Success("✓"), res.URL, ui.Dim(fmt.Sprintf("%d records, %s", n, res.Report.Stop)))
	}
}

// expandTargets resolves @file arguments into URLs
func expandTargets(args []string) ([]string, error) {
	var urls []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "@") {
			urls = append(urls, arg)
			continue
		}
		f, err := os.Open(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, fmt.Errorf("read URL list: %w", err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			urls = append(urls, line)
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read URL list: %w", err)
		}
	}
	return urls, nil
}

// fileSafe replaces characters that are awkward in file names
func fileSafe(s string) string {
	if s == "" {
		return "page"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\', '?', '*':
			return '_'
		}
		return r
	}, s)
}
