// Package models holds the records and reports produced by a scraping session.
package models

import "time"

// NotAvailable is stored in every ReviewRecord field that could not be resolved
const NotAvailable = "N/A"

// ReviewRecord is one review harvested from the widget.
// Every field is always populated; unresolved fields hold NotAvailable.
type ReviewRecord struct {
	Name        string `json:"name"`
	Rating      string `json:"rating"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// NewReviewRecord returns a record with every field set to NotAvailable
func NewReviewRecord() ReviewRecord {
	return ReviewRecord{
		Name:        NotAvailable,
		Rating:      NotAvailable,
		Title:       NotAvailable,
		Description: NotAvailable,
		Date:        NotAvailable,
	}
}

// ScrapeResult is the ordered list of records: page order, then DOM order.
// Records are never deduplicated.
type ScrapeResult []ReviewRecord

// PaginationSource identifies the discovery tier that produced a PaginationState
type PaginationSource string

const (
	PaginationFromMetadata PaginationSource = "metadata"
	PaginationFromLinks    PaginationSource = "links"
	PaginationSinglePage   PaginationSource = "single_page"
)

// PaginationState describes how many widget pages exist.
// TotalPages is always >= 1 even when TotalItems and PerPage are unknown.
type PaginationState struct {
	TotalItems *int             `json:"total_items,omitempty"`
	PerPage    *int             `json:"per_page,omitempty"`
	TotalPages int              `json:"total_pages"`
	Source     PaginationSource `json:"source"`
	// Estimated is set when TotalItems was derived from page labels times
	// visible items rather than read from the widget.
	Estimated bool `json:"estimated,omitempty"`
}

// OutcomeKind tags a NavigationOutcome
type OutcomeKind string

const (
	Advanced  OutcomeKind = "advanced"
	Exhausted OutcomeKind = "exhausted"
	Failed    OutcomeKind = "failed"
)

// NavigationOutcome is the result of one page-advance attempt
type NavigationOutcome struct {
	Kind     OutcomeKind `json:"kind"`
	Strategy string      `json:"strategy,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// StopReason records why the harvest loop ended
type StopReason string

const (
	StopCompleted         StopReason = "completed"
	StopExhausted         StopReason = "exhausted"
	StopNavigationFailed  StopReason = "navigation_failed"
	StopContainerNotFound StopReason = "container_not_found"
	StopSessionError      StopReason = "session_error"
	// StopPageFailed means the items of a page could not be read
	StopPageFailed StopReason = "page_failed"
	// StopTimeout means the session deadline expired mid-harvest
	StopTimeout StopReason = "timeout"
)

// ProductInfo identifies the product page hosting the widget.
// Fields that could not be read are empty.
type ProductInfo struct {
	Name         string `json:"name,omitempty"`
	Title        string `json:"title,omitempty"`
	CanonicalURL string `json:"canonical_url,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
	AppKey       string `json:"app_key,omitempty"`
}

// Report summarises one scraping session
type Report struct {
	SessionID    string          `json:"session_id"`
	URL          string          `json:"url"`
	Product      ProductInfo     `json:"product"`
	Pagination   PaginationState `json:"pagination"`
	PagesVisited int             `json:"pages_visited"`
	Records      ScrapeResult    `json:"records"`
	Stop         StopReason      `json:"stop"`
	StartedAt    time.Time       `json:"started_at"`
	Duration     time.Duration   `json:"duration_ns"`
}

// BatchResult is emitted by the batch runner for each requested URL
type BatchResult struct {
	URL    string
	Report *Report
	Cached bool
	Error  error
}
