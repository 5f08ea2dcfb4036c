package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/law-makers/revscrape/internal/engine"
	"github.com/law-makers/revscrape/internal/ui"
)

var scrapeOutput string

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Extract every review from one product page",
	Long: `Open the product page, locate the review widget and collect the reviews of
every widget page. Records gathered before a failure are still printed.`,
	Example: `  # Print reviews to the terminal
  revscrape scrape https://shop.example.com/products/tee

  # Save as CSV with a visible browser and diagnostics
  revscrape scrape https://shop.example.com/products/tee -o reviews.csv --headful

  # Ignore reports cached by earlier runs
  revscrape scrape https://shop.example.com/products/tee --no-cache

  # Use saved consent cookies
  revscrape scrape https://shop.example.com/products/tee --session=shop-eu`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "Write results to a .json, .csv, .md or .db file")
}

func runScrape(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	report, cached, err := a.Scrape(cmd.Context(), args[0])
	if cached {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s reviews from a previous run (use --no-cache to refresh)\n", ui.Dim("cached:"))
	}
	if report != nil && len(report.Records) > 0 {
		if emitErr := emit(cmd.OutOrStdout(), report, scrapeOutput); emitErr != nil {
			return emitErr
		}
	}
	if err != nil {
		if errors.Is(err, engine.ErrContainerNotFound) {
			return fmt.Errorf("no review widget found on %s: %w", args[0], err)
		}
		return err
	}
	if len(report.Records) == 0 {
		return emit(cmd.OutOrStdout(), report, scrapeOutput)
	}
	return nil
}
