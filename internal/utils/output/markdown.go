package output

import (
	"fmt"
	"html"
	"os"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/law-makers/revscrape/internal/utils/url"
	"github.com/law-makers/revscrape/pkg/models"
)

func newConverter(baseURL string) *md.Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	// Add rule to resolve relative links
	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			href, exists := selec.Attr("href")
			if !exists || baseURL == "" {
				return nil
			}
			str := fmt.Sprintf("[%s](%s)", strings.TrimSpace(selec.Text()), urlutil.ResolveURL(baseURL, href))
			return &str
		},
	})
	return converter
}

// HTMLToMarkdown cleans htmlContent and converts it to GitHub-flavoured Markdown
func HTMLToMarkdown(baseURL, htmlContent string) (string, error) {
	cleaned, err := CleanHTML(htmlContent)
	if err != nil {
		return "", err
	}
	return newConverter(baseURL).ConvertString(cleaned)
}

// RenderMarkdown renders a report as a heading, a summary list and a review table
func RenderMarkdown(report *models.Report) (string, error) {
	var b strings.Builder
	subject := report.URL
	if report.Product.Name != "" {
		subject = report.Product.Name
	}
	fmt.Fprintf(&b, "<h1>Reviews for %s</h1>", html.EscapeString(subject))
	b.WriteString("<ul>")
	fmt.Fprintf(&b, "<li>URL: %s</li>", html.EscapeString(report.URL))
	if report.Product.ProductID != "" {
		fmt.Fprintf(&b, "<li>Product ID: %s</li>", html.EscapeString(report.Product.ProductID))
	}
	fmt.Fprintf(&b, "<li>Records: %d</li>", len(report.Records))
	fmt.Fprintf(&b, "<li>Pages visited: %d of %d</li>", report.PagesVisited, report.Pagination.TotalPages)
	fmt.Fprintf(&b, "<li>Stopped: %s</li>", report.Stop)
	b.WriteString("</ul>")

	b.WriteString("<table><thead><tr>")
	for _, h := range recordHeaders {
		fmt.Fprintf(&b, "<th>%s</th>", h)
	}
	b.WriteString("</tr></thead><tbody>")
	for _, r := range report.Records {
		b.WriteString("<tr>")
		for _, v := range recordRow(r) {
			fmt.Fprintf(&b, "<td>%s</td>", html.EscapeString(v))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")

	return newConverter("").ConvertString(b.String())
}

// SaveMarkdown writes the Markdown rendering of report to filepath
func SaveMarkdown(report *models.Report, filepath string) error {
	mdStr, err := RenderMarkdown(report)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, []byte(mdStr), 0644)
}
