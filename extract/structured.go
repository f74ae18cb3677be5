package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ChoisMath/kyobobook/models"
	"github.com/ChoisMath/kyobobook/parser"
	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"github.com/titanous/json5"
)

const ldJSONSelector = `script[type="application/ld+json"]`

// StructuredResult reports what the JSON-LD stage produced.
type StructuredResult struct {
	Record    models.BookRecord
	Outcome   Outcome
	Blocks    int
	Malformed int
}

// structuredPriceRule is one JSON-LD price path.
type structuredPriceRule struct {
	method  string
	resolve func(entity gjson.Result) (string, bool)
}

var structuredPriceRules = []structuredPriceRule{
	{method: "JSON-LD(offers.price)", resolve: offersPrice},
	{method: "JSON-LD(price)", resolve: topLevelPrice("price")},
	{method: "JSON-LD(lowPrice)", resolve: topLevelPrice("lowPrice")},
	{method: "JSON-LD(highPrice)", resolve: topLevelPrice("highPrice")},
	{method: "JSON-LD(workExample)", resolve: workExamplePrice},
}

// ExtractStructured scans every JSON-LD block in document order. A field, once
// set, is never overwritten by a later block. Undecodable blocks are counted and skipped.
func ExtractStructured(doc *goquery.Document) StructuredResult {
	var res StructuredResult

	doc.Find(ldJSONSelector).Each(func(_ int, script *goquery.Selection) {
		res.Blocks++
		block, err := decodeBlock(script.Text())
		if err != nil {
			res.Malformed++
			return
		}
		for _, entity := range entities(block) {
			applyEntity(&res.Record, entity)
		}
	})

	switch {
	case !res.Record.Empty():
		res.Outcome = Found
	case res.Malformed > 0:
		res.Outcome = Malformed
	default:
		res.Outcome = Empty
	}
	return res
}

// decodeBlock parses strict JSON first and falls back to JSON5 for the
// trailing commas and single quotes some pages emit.
func decodeBlock(raw string) (gjson.Result, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "<!--")
	raw = strings.TrimSuffix(raw, "-->")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return gjson.Result{}, fmt.Errorf("empty block")
	}
	if gjson.Valid(raw) {
		return gjson.Parse(raw), nil
	}

	var loose interface{}
	if err := json5.Unmarshal([]byte(raw), &loose); err != nil {
		return gjson.Result{}, fmt.Errorf("decode json-ld: %w", err)
	}
	normalized, err := json.Marshal(loose)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("re-encode json-ld: %w", err)
	}
	return gjson.ParseBytes(normalized), nil
}

// entities flattens a block into the objects it describes: the block itself,
// the members of a top-level array, and the members of an @graph.
func entities(block gjson.Result) []gjson.Result {
	var out []gjson.Result
	switch {
	case block.IsArray():
		for _, item := range block.Array() {
			out = append(out, entities(item)...)
		}
	case block.IsObject():
		out = append(out, block)
		if graph, ok := block.Map()["@graph"]; ok && graph.IsArray() {
			for _, item := range graph.Array() {
				if item.IsObject() {
					out = append(out, item)
				}
			}
		}
	}
	return out
}

func applyEntity(rec *models.BookRecord, entity gjson.Result) {
	if rec.Title == "" {
		if name := scalar(entity.Get("name")); name != "" {
			rec.Title = name
		}
	}
	if rec.Author == "" {
		rec.Author = personNames(entity.Get("author"))
	}
	if rec.Publisher == "" {
		rec.Publisher = organizationName(entity.Get("publisher"))
	}
	if rec.Price == "" {
		for _, rule := range structuredPriceRules {
			if price, ok := rule.resolve(entity); ok {
				rec.Price = price
				rec.ExtractionMethod = rule.method
				break
			}
		}
	}
}

// personNames accepts an object, a list of objects, or a scalar.
func personNames(v gjson.Result) string {
	switch {
	case !v.Exists():
		return ""
	case v.IsArray():
		var names []string
		for _, item := range v.Array() {
			name := ""
			if item.IsObject() {
				name = scalar(item.Get("name"))
			} else {
				name = scalar(item)
			}
			if name != "" {
				names = append(names, name)
			}
		}
		return strings.Join(names, ", ")
	case v.IsObject():
		return scalar(v.Get("name"))
	default:
		return scalar(v)
	}
}

func organizationName(v gjson.Result) string {
	switch {
	case !v.Exists():
		return ""
	case v.IsArray():
		for _, item := range v.Array() {
			if name := organizationName(item); name != "" {
				return name
			}
		}
		return ""
	case v.IsObject():
		return scalar(v.Get("name"))
	default:
		return scalar(v)
	}
}

func scalar(v gjson.Result) string {
	switch v.Type {
	case gjson.String, gjson.Number:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func isProduct(entity gjson.Result) bool {
	t := entity.Map()["@type"]
	types := []gjson.Result{t}
	if t.IsArray() {
		types = t.Array()
	}
	for _, item := range types {
		switch item.String() {
		case "Product", "Book":
			return true
		}
	}
	return false
}

func offersPrice(entity gjson.Result) (string, bool) {
	if !isProduct(entity) {
		return "", false
	}
	offers := entity.Get("offers")
	if offers.IsArray() {
		offers = offers.Get("0")
	}
	if !offers.IsObject() {
		return "", false
	}
	return priceValue(offers.Get("price"))
}

func topLevelPrice(key string) func(gjson.Result) (string, bool) {
	return func(entity gjson.Result) (string, bool) {
		return priceValue(entity.Get(key))
	}
}

func workExamplePrice(entity gjson.Result) (string, bool) {
	examples := entity.Get("workExample")
	if !examples.IsArray() {
		return "", false
	}
	raw := examples.Get("0.potentialAction.expectsAcceptanceOf.Price")
	if raw.Type != gjson.Number && raw.Type != gjson.String {
		return "", false
	}
	return parser.FloatPrice(raw.String())
}

func priceValue(v gjson.Result) (string, bool) {
	raw := scalar(v)
	if raw == "" {
		return "", false
	}
	if price, ok := parser.NumericPrice(raw); ok {
		return price, true
	}
	return parser.FloatPrice(raw)
}
