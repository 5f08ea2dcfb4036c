package output

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/revscrape/pkg/models"
)

func sampleReport() *models.Report {
	total := 2
	return &models.Report{
		SessionID:    "s-1",
		URL:          "https://shop.example.com/products/tee",
		Product:      models.ProductInfo{Name: "Classic Tee", ProductID: "tee-42"},
		PagesVisited: 1,
		Stop:         models.StopCompleted,
		Pagination:   models.PaginationState{TotalPages: 1, TotalItems: &total, Source: models.PaginationFromMetadata},
		Records: models.ScrapeResult{
			{Name: "Alice", Rating: "5 star rating", Title: "Great, really", Description: "Soft \"cotton\"", Date: "01/02/24"},
			{Name: "Bob", Rating: "N/A", Title: "N/A", Description: "Too small", Date: "01/03/24"},
		},
	}
}

func TestSave_Formats(t *testing.T) {
	dir := t.TempDir()
	report := sampleReport()

	jsonPath := filepath.Join(dir, "out.json")
	require.NoError(t, Save(report, jsonPath))
	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "completed", decoded["stop"])
	assert.Len(t, decoded["records"], 2)

	csvPath := filepath.Join(dir, "out.CSV")
	require.NoError(t, Save(report, csvPath))
	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "rating", "title", "description", "date"}, rows[0])
	assert.Equal(t, "Great, really", rows[1][2])
	assert.Equal(t, `Soft "cotton"`, rows[1][3])

	mdPath := filepath.Join(dir, "out.md")
	require.NoError(t, Save(report, mdPath))
	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Reviews for Classic Tee")
	assert.Contains(t, string(md), "tee-42")
	assert.Contains(t, string(md), "| Alice |")

	assert.Error(t, Save(report, filepath.Join(dir, "out.txt")))
}

func TestCleanHTML(t *testing.T) {
	cleaned, err := CleanHTML(`<html><head><script>x()</script><style>.a{}</style></head>
<body><div class="yotpo" style="color:red" data-total="6" onclick="y()"><a href="/p" target="_blank">p</a></div></body></html>`)
	require.NoError(t, err)

	assert.NotContains(t, cleaned, "<script")
	assert.NotContains(t, cleaned, "style=")
	assert.NotContains(t, cleaned, "onclick")
	assert.NotContains(t, cleaned, "target=")
	assert.Contains(t, cleaned, `class="yotpo"`)
	assert.Contains(t, cleaned, `data-total="6"`)
	assert.Contains(t, cleaned, `href="/p"`)
}

func TestHTMLToMarkdown_ResolvesLinks(t *testing.T) {
	md, err := HTMLToMarkdown("https://shop.example.com/products/tee", `<p>See <a href="/reviews?page=2">more</a></p>`)
	require.NoError(t, err)
	assert.Contains(t, md, "[more](https://shop.example.com/reviews?page=2)")
}

func TestOutline(t *testing.T) {
	out, err := Outline(`<div class="yotpo"><span>Hi</span><br><script>x</script></div>`, ".yotpo")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, `<div class="yotpo">`, lines[0])
	assert.Contains(t, out, "  <span>\n    Hi\n")
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "</br>")

	none, err := Outline(`<p>x</p>`, ".yotpo")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.db")
	report := sampleReport()

	require.NoError(t, Save(report, path))
	require.NoError(t, Save(report, path))

	other := sampleReport()
	other.SessionID = ""
	other.Records = other.Records[:1]
	require.NoError(t, Save(other, path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var sessions, reviews int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&sessions))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM reviews`).Scan(&reviews))
	assert.Equal(t, 2, sessions)
	assert.Equal(t, 3, reviews)

	var name, title string
	require.NoError(t, db.QueryRow(
		`SELECT name, title FROM reviews WHERE session_id = ? AND position = 1`, "s-1",
	).Scan(&name, &title))
	assert.Equal(t, "Alice", name)
	assert.Equal(t, "Great, really", title)

	var product string
	require.NoError(t, db.QueryRow(`SELECT product_id FROM sessions WHERE session_id = ?`, "s-1").Scan(&product))
	assert.Equal(t, "tee-42", product)
}
