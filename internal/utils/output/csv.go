package output

import (
	"encoding/csv"
	"os"

	"github.com/law-makers/revscrape/pkg/models"
)

var recordHeaders = []string{"name", "rating", "title", "description", "date"}

func recordRow(r models.ReviewRecord) []string {
	return []string{r.Name, r.Rating, r.Title, r.Description, r.Date}
}

// SaveCSV writes one row per record, in result order, after a header row.
func SaveCSV(records models.ScrapeResult, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(recordHeaders); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write(recordRow(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
