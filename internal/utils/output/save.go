package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/law-makers/revscrape/pkg/models"
)

// Save writes report to path in the format named by its extension
func Save(report *models.Report, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SaveJSON(report, path)
	case ".csv":
		return SaveCSV(report.Records, path)
	case ".md", ".markdown":
		return SaveMarkdown(report, path)
	case ".db", ".sqlite", ".sqlite3":
		return SaveSQLite(report, path)
	default:
		return fmt.Errorf("unsupported output format %q (use .json, .csv, .md or .db)", filepath.Ext(path))
	}
}
