// Package extract turns a product page into a BookRecord.
//
// Extraction runs in two stages. The structured stage reads the page's JSON-LD
// blocks; the heuristic stage fills whatever is still empty from meta tags,
// CSS selectors and free-text price patterns. Every fallback chain is an
// ordered slice of Strategy values, so priority is data rather than control flow.
package extract

import (
	"regexp"
	"strings"

	"github.com/ChoisMath/kyobobook/parser"
	"github.com/PuerkitoBio/goquery"
)

// Outcome classifies the result of one extraction stage.
type Outcome int

const (
	// Empty means the stage ran cleanly and found nothing.
	Empty Outcome = iota
	// Found means at least one field was produced.
	Found
	// Malformed means input existed but could not be decoded.
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Malformed:
		return "malformed"
	default:
		return "empty"
	}
}

// Candidate is a field value and the rule that produced it.
type Candidate struct {
	Value  string
	Method string
}

// Strategy is one rule in a fallback chain.
type Strategy interface {
	Attempt(doc *goquery.Document) (Candidate, bool)
}

// Chain is an ordered list of strategies; the first hit wins.
type Chain []Strategy

// Run tries each strategy in order.
func (c Chain) Run(doc *goquery.Document) (Candidate, bool) {
	for _, s := range c {
		if cand, ok := s.Attempt(doc); ok {
			return cand, true
		}
	}
	return Candidate{}, false
}

// metaContent reads the content attribute of a meta tag.
type metaContent struct {
	selector string
	method   string
	clean    func(string) string
}

func (m metaContent) Attempt(doc *goquery.Document) (Candidate, bool) {
	content, ok := doc.Find(m.selector).First().Attr("content")
	if !ok {
		return Candidate{}, false
	}
	value := content
	if m.clean != nil {
		value = m.clean(value)
	}
	if value == "" {
		return Candidate{}, false
	}
	return Candidate{Value: value, Method: m.method}, true
}

// firstText reads the text of the first element matching selector.
type firstText struct {
	selector string
	method   string
	clean    func(string) string
}

func (f firstText) Attempt(doc *goquery.Document) (Candidate, bool) {
	sel := doc.Find(f.selector).First()
	if sel.Length() == 0 {
		return Candidate{}, false
	}
	value := collapse(sel.Text())
	if f.clean != nil {
		value = f.clean(value)
	}
	if value == "" {
		return Candidate{}, false
	}
	return Candidate{Value: value, Method: f.method}, true
}

// selectorText returns the first non-empty text among elements matching selector.
// When attr is set and an element has no text, the attribute value is used instead.
type selectorText struct {
	selector string
	attr     string
}

func (s selectorText) Attempt(doc *goquery.Document) (Candidate, bool) {
	var found Candidate
	doc.Find(s.selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		value := collapse(el.Text())
		if value == "" && s.attr != "" {
			value = strings.TrimSpace(el.AttrOr(s.attr, ""))
		}
		if value == "" {
			return true
		}
		found = Candidate{Value: value, Method: "CSS(" + s.selector + ")"}
		return false
	})
	return found, found.Value != ""
}

// dataPrice reads a numeric data-price attribute from price-like elements.
type dataPrice struct {
	selector string
}

func (d dataPrice) Attempt(doc *goquery.Document) (Candidate, bool) {
	var found Candidate
	doc.Find(d.selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		raw, ok := el.Attr("data-price")
		if !ok {
			return true
		}
		price, ok := parser.NumericPrice(raw)
		if !ok {
			return true
		}
		found = Candidate{Value: price, Method: "data-price(" + d.selector + ")"}
		return false
	})
	return found, found.Value != ""
}

// selectorPrice scans the text of price-like elements. Labelled patterns are
// tried before bare digit runs; every candidate must pass the plausibility window.
type selectorPrice struct {
	selector string
}

func (s selectorPrice) Attempt(doc *goquery.Document) (Candidate, bool) {
	var found Candidate
	doc.Find(s.selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		text := collapse(el.Text())
		if text == "" {
			return true
		}
		for _, p := range labelledPricePatterns {
			if cand, ok := p.scan(text); ok {
				found = cand
				return false
			}
		}
		for _, run := range digitRun.FindAllString(text, -1) {
			if price, ok := parser.PlausiblePrice(run); ok {
				found = Candidate{Value: price, Method: "CSS(" + s.selector + ")"}
				return false
			}
		}
		return true
	})
	return found, found.Value != ""
}

// textPattern matches a currency pattern against the visible document text.
type textPattern struct {
	label string
	re    *regexp.Regexp
}

func (p textPattern) Attempt(doc *goquery.Document) (Candidate, bool) {
	return p.scan(visibleText(doc))
}

func (p textPattern) scan(text string) (Candidate, bool) {
	for _, m := range p.re.FindAllStringSubmatch(text, -1) {
		if len(m) < 2 {
			continue
		}
		if price, ok := parser.PlausiblePrice(m[1]); ok {
			return Candidate{Value: price, Method: p.label}, true
		}
	}
	return Candidate{}, false
}

// visibleText returns the body text without script and style content.
// The document itself is not modified.
func visibleText(doc *goquery.Document) string {
	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	clone := root.Clone()
	clone.Find("script, style, noscript").Remove()
	return collapse(clone.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
