package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/law-makers/revscrape/internal/ui"
	"github.com/law-makers/revscrape/internal/utils/output"
	"github.com/law-makers/revscrape/pkg/models"
)

const (
	titlePreview       = 40
	descriptionPreview = 80
)

// printReport writes a human readable summary of report to w
func printReport(w io.Writer, report *models.Report) {
	status := ui.Success(string(report.Stop))
	switch report.Stop {
	case models.StopCompleted:
	case models.StopSessionError, models.StopContainerNotFound:
		status = ui.Error(string(report.Stop))
	default:
		status = ui.Warn(string(report.Stop))
	}

	fmt.Fprintf(w, "\n%s %s\n", ui.Bold("Reviews from"), ui.Accent(report.URL))
	fmt.Fprintf(w, "%s %d   %s %d/%d (%s)   %s %s   %s %s\n",
		ui.Dim("records"), len(report.Records),
		ui.Dim("pages"), report.PagesVisited, report.Pagination.TotalPages, report.Pagination.Source,
		ui.Dim("stop"), status,
		ui.Dim("took"), report.Duration.Round(10*time.Millisecond))
	if len(report.Records) == 0 {
		fmt.Fprintln(w)
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Reviewer", "Rating", "Date", "Title", "Review"})
	for i, r := range report.Records {
		title := r.Title
		if title == models.NotAvailable {
			title = ""
		}
		t.AppendRow(table.Row{i + 1, r.Name, r.Rating, r.Date, preview(title, titlePreview), preview(r.Description, descriptionPreview)})
	}
	t.Render()
	fmt.Fprintln(w)
}

// newTable returns a table writer rendering to w
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// preview shortens s to at most n runes on one line
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// emit saves report to path when set, otherwise prints it
func emit(w io.Writer, report *models.Report, path string) error {
	if path == "" {
		printReport(w, report)
		return nil
	}
	if err := output.Save(report, path); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %d reviews saved to %s\n", ui.Success("✓"), len(report.Records), path)
	return nil
}
