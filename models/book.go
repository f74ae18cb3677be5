// Package models defines data structures shared by the extractor and the ledger.
package models

import "time"

// BookRecord is the best-effort extraction result for one product page.
// Every field may be empty; callers route incomplete records to manual entry.
type BookRecord struct {
	Title            string `json:"title"`
	Author           string `json:"author"`
	Publisher        string `json:"publisher"`
	Price            string `json:"price"`
	ExtractionMethod string `json:"extraction_method,omitempty"`
}

// Empty reports whether no field was found.
func (b BookRecord) Empty() bool {
	return b.Title == "" && b.Author == "" && b.Publisher == "" && b.Price == ""
}

// Missing lists the required fields that are still empty, in display order.
func (b BookRecord) Missing() []string {
	var missing []string
	if b.Title == "" {
		missing = append(missing, "title")
	}
	if b.Author == "" {
		missing = append(missing, "author")
	}
	if b.Publisher == "" {
		missing = append(missing, "publisher")
	}
	if b.Price == "" {
		missing = append(missing, "price")
	}
	return missing
}

// Merge fills the empty fields of b from other. Populated fields are never overwritten.
func (b BookRecord) Merge(other BookRecord) BookRecord {
	if b.Title == "" {
		b.Title = other.Title
	}
	if b.Author == "" {
		b.Author = other.Author
	}
	if b.Publisher == "" {
		b.Publisher = other.Publisher
	}
	if b.Price == "" && other.Price != "" {
		b.Price = other.Price
		b.ExtractionMethod = other.ExtractionMethod
	}
	return b
}

// Document is a fetched product page.
type Document struct {
	URL        string
	StatusCode int
	HTML       string
	Attempts   int
	FetchedAt  time.Time
}

// OrderRow is one application in the shared ledger.
type OrderRow struct {
	Timestamp     string `csv:"timestamp" json:"timestamp"`
	ApplicantName string `csv:"applicant_name" json:"applicant_name"`
	Title         string `csv:"title" json:"title"`
	Author        string `csv:"author" json:"author"`
	Publisher     string `csv:"publisher" json:"publisher"`
	UnitPrice     string `csv:"unit_price" json:"unit_price"`
	Quantity      int    `csv:"quantity" json:"quantity"`
	SourceURL     string `csv:"source_url" json:"source_url"`
	TotalPrice    string `csv:"total_price" json:"total_price"`
}

// Failure is a recent extraction failure kept for diagnostics.
type Failure struct {
	URL string    `json:"url"`
	At  time.Time `json:"at"`
}

// StatsSnapshot is a point-in-time copy of extraction counters.
type StatsSnapshot struct {
	TotalAttempts  int            `json:"total_attempts"`
	PriceSuccesses int            `json:"price_successes"`
	ByMethod       map[string]int `json:"by_method"`
	RecentFailures []Failure      `json:"recent_failures"`
}
