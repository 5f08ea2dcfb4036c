package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var replayOutput string

var replayCmd = &cobra.Command{
	Use:   "replay <page1.html> [page2.html...]",
	Short: "Run the extraction over saved widget pages",
	Long: `Replay runs the full extraction flow against saved HTML files instead of a
live browser. The first file is the landing page; clicking a page number or
the next control switches to the matching file.

Useful for checking selector changes against diagnostic snapshots.`,
	Example: `  revscrape replay diagnostics/abc/01-initial-load.html page2.html`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", "", "Write results to a .json, .csv, .md or .db file")
}

func runReplay(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	report, err := a.Replay(cmd.Context(), args...)
	if report != nil {
		if emitErr := emit(cmd.OutOrStdout(), report, replayOutput); emitErr != nil {
			return emitErr
		}
	}
	return err
}
