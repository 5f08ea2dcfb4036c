// Package metadata reads identifying details of the product page that hosts
// the review widget.
package metadata

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/law-makers/revscrape/internal/utils/url"
	"github.com/law-makers/revscrape/pkg/models"
)

// widgetAttrs lists the elements carrying the widget's product attributes,
// most specific first
var widgetAttrs = []string{
	".yotpo-main-widget[data-product-id]",
	".yotpo[data-product-id]",
	"[data-yotpo-product-id]",
	"[data-appkey]",
}

// Extract reads product details from a rendered page. Missing fields stay empty.
func Extract(html, pageURL string) (models.ProductInfo, error) {
	var info models.ProductInfo

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return info, err
	}

	info.Title = firstNonEmpty(
		attr(doc, `meta[property="og:title"]`, "content"),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)

	if canonical := attr(doc, `link[rel="canonical"]`, "href"); canonical != "" {
		info.CanonicalURL = urlutil.ResolveURL(pageURL, canonical)
	}

	for _, sel := range widgetAttrs {
		widget := doc.Find(sel).First()
		if widget.Length() == 0 {
			continue
		}
		if info.ProductID == "" {
			info.ProductID = firstNonEmpty(widget.AttrOr("data-product-id", ""), widget.AttrOr("data-yotpo-product-id", ""))
		}
		if info.AppKey == "" {
			info.AppKey = widget.AttrOr("data-appkey", "")
		}
		if info.Name == "" {
			info.Name = widget.AttrOr("data-name", "")
		}
	}
	if info.Name == "" {
		info.Name = info.Title
	}
	return info, nil
}

func attr(doc *goquery.Document, selector, name string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr(name, ""))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
