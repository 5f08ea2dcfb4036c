package output

import (
	"encoding/json"
	"os"

	"github.com/law-makers/revscrape/pkg/models"
)

// SaveJSON writes the indented JSON export of report to filepath.
func SaveJSON(report *models.Report, filepath string) error {
	content, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, content, 0644)
}
