package extract

import (
	"regexp"

	"github.com/ChoisMath/kyobobook/models"
	"github.com/ChoisMath/kyobobook/parser"
	"github.com/PuerkitoBio/goquery"
)

// Selector priority lists. Order matters: on malformed pages several selectors
// match different elements, and the first hit is kept.
var (
	AuthorSelectors = []string{
		".author", ".writer", ".prod_author", ".book-author",
		"[data-author]", ".author-name", ".creator",
	}
	PublisherSelectors = []string{
		".company", ".publisher", ".prod_company", ".book-publisher",
		"[data-publisher]", ".publisher-name",
	}
	PriceSelectors = []string{
		".val", ".price", ".prod_price", ".book-price",
		"[data-price]", ".price-value", ".current-price",
	}
)

const amount = `(\d{1,3}(?:,\d{3})+|\d+)`

var digitRun = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)

var labelledPricePatterns = []textPattern{
	{label: "판매가 패턴", re: regexp.MustCompile(`판매가\s*[:：]?\s*` + amount + `\s*원`)},
	{label: "정가 패턴", re: regexp.MustCompile(`정가\s*[:：]?\s*` + amount + `\s*원`)},
	{label: "가격 패턴", re: regexp.MustCompile(`가격\s*[:：]?\s*` + amount + `\s*원`)},
}

var pricePatterns = append(append([]textPattern{}, labelledPricePatterns...),
	textPattern{label: "원 패턴", re: regexp.MustCompile(amount + `\s*원`)},
	textPattern{label: "₩ 패턴", re: regexp.MustCompile(`₩\s*` + amount)},
	textPattern{label: "KRW 패턴", re: regexp.MustCompile(`KRW\s*` + amount)},
)

// TitleChain resolves the title from page-level markup.
var TitleChain = Chain{
	metaContent{selector: `meta[property="og:title"]`, method: "og:title", clean: parser.CleanTitle},
	firstText{selector: "title", method: "title", clean: parser.CleanTitle},
	firstText{selector: "h1", method: "h1", clean: parser.CleanTitle},
}

// AuthorChain and PublisherChain try the selector lists in order.
var (
	AuthorChain    = selectorChain(AuthorSelectors, "data-author")
	PublisherChain = selectorChain(PublisherSelectors, "data-publisher")
)

// PriceChain is the full heuristic price cascade: data attributes, then
// selector text, then whole-document patterns.
var PriceChain = priceChain()

func selectorChain(selectors []string, attr string) Chain {
	chain := make(Chain, 0, len(selectors))
	for _, sel := range selectors {
		chain = append(chain, selectorText{selector: sel, attr: attr})
	}
	return chain
}

func priceChain() Chain {
	chain := make(Chain, 0, 2*len(PriceSelectors)+len(pricePatterns))
	for _, sel := range PriceSelectors {
		chain = append(chain, dataPrice{selector: sel})
	}
	for _, sel := range PriceSelectors {
		chain = append(chain, selectorPrice{selector: sel})
	}
	for _, p := range pricePatterns {
		chain = append(chain, p)
	}
	return chain
}

// ExtractHeuristic fills the empty fields of have from markup heuristics.
// Populated fields are left untouched.
func ExtractHeuristic(doc *goquery.Document, have models.BookRecord) (models.BookRecord, Outcome) {
	out := have
	found := false

	if out.Title == "" {
		if c, ok := TitleChain.Run(doc); ok {
			out.Title = c.Value
			found = true
		}
	}
	if out.Author == "" {
		if c, ok := AuthorChain.Run(doc); ok {
			out.Author = c.Value
			found = true
		}
	}
	if out.Publisher == "" {
		if c, ok := PublisherChain.Run(doc); ok {
			out.Publisher = c.Value
			found = true
		}
	}
	if out.Price == "" {
		if c, ok := ExtractPrice(doc); ok {
			out.Price = c.Value
			out.ExtractionMethod = c.Method
			found = true
		}
	}

	if found {
		return out, Found
	}
	return out, Empty
}

// ExtractPrice runs only the heuristic price cascade.
func ExtractPrice(doc *goquery.Document) (Candidate, bool) {
	return PriceChain.Run(doc)
}
