package output

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/law-makers/revscrape/pkg/models"
)

//go:embed schema.sql
var schema string

// SaveSQLite appends report to the SQLite database at path, creating the
// tables on first use. Saving a session again replaces its rows.
func SaveSQLite(report *models.Report, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	sessionID := report.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM reviews WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT OR REPLACE INTO sessions
		(session_id, url, product_id, product_name, stop_reason, pages_visited, total_pages, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, report.URL, report.Product.ProductID, report.Product.Name, string(report.Stop),
		report.PagesVisited, report.Pagination.TotalPages,
		report.StartedAt.UTC().Format(time.RFC3339), report.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO reviews
		(session_id, position, name, rating, title, description, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range report.Records {
		if _, err := stmt.Exec(sessionID, i+1, r.Name, r.Rating, r.Title, r.Description, r.Date); err != nil {
			return fmt.Errorf("insert review %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}
