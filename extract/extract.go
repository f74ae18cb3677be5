package extract

import (
	"fmt"
	"strings"

	"github.com/ChoisMath/kyobobook/models"
	"github.com/PuerkitoBio/goquery"
)

// Report describes how a record was assembled.
type Report struct {
	Structured StructuredResult
	Heuristic  Outcome
}

// Parse builds a queryable document from raw HTML.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// Extract runs the structured stage and then fills the gaps heuristically.
func Extract(doc *goquery.Document) (models.BookRecord, Report) {
	structured := ExtractStructured(doc)
	record, heuristic := ExtractHeuristic(doc, structured.Record)
	return record, Report{Structured: structured, Heuristic: heuristic}
}

// ExtractHTML is Parse followed by Extract.
func ExtractHTML(html string) (models.BookRecord, Report, error) {
	doc, err := Parse(html)
	if err != nil {
		return models.BookRecord{}, Report{}, err
	}
	record, report := Extract(doc)
	return record, report, nil
}
