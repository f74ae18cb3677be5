package extract

import (
	"strings"
	"testing"

	"github.com/ChoisMath/kyobobook/models"
	"github.com/google/go-cmp/cmp"
)

func page(head, body string) string {
	return "<html><head>" + head + "</head><body>" + body + "</body></html>"
}

func ldJSON(block string) string {
	return `<script type="application/ld+json">` + block + `</script>`
}

func mustParse(t *testing.T, html string) *models.BookRecord {
	t.Helper()
	record, _, err := ExtractHTML(html)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return &record
}

func TestExtractStructuredOffersPrice(t *testing.T) {
	html := page(ldJSON(`{
		"@context": "https://schema.org",
		"@type": "Product",
		"name": "소년이 온다",
		"author": {"@type": "Person", "name": "한강"},
		"publisher": {"@type": "Organization", "name": "창비"},
		"offers": {"@type": "Offer", "price": "15,000", "priceCurrency": "KRW"}
	}`), "")

	doc, err := Parse(html)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := ExtractStructured(doc)

	want := models.BookRecord{
		Title:            "소년이 온다",
		Author:           "한강",
		Publisher:        "창비",
		Price:            "15000",
		ExtractionMethod: "JSON-LD(offers.price)",
	}
	if diff := cmp.Diff(want, res.Record); diff != "" {
		t.Fatalf("structured record mismatch (-want +got):\n%s", diff)
	}
	if res.Outcome != Found || res.Blocks != 1 || res.Malformed != 0 {
		t.Fatalf("outcome=%s blocks=%d malformed=%d", res.Outcome, res.Blocks, res.Malformed)
	}
}

func TestExtractStructuredFieldFreeze(t *testing.T) {
	html := page(
		ldJSON(`{"@type": "Book", "name": "작별하지 않는다", "author": {"name": "한강"}}`)+
			ldJSON(`{"@type": "Book", "name": "다른 책", "author": {"name": "다른 저자"}, "publisher": "문학동네", "price": 16800}`),
		"",
	)
	doc, err := Parse(html)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := ExtractStructured(doc)

	if res.Record.Author != "한강" {
		t.Fatalf("author = %q, want first block's value", res.Record.Author)
	}
	if res.Record.Title != "작별하지 않는다" {
		t.Fatalf("title = %q, want first block's value", res.Record.Title)
	}
	if res.Record.Publisher != "문학동네" || res.Record.Price != "16800" {
		t.Fatalf("later block should fill empty fields, got %+v", res.Record)
	}
	if res.Record.ExtractionMethod != "JSON-LD(price)" {
		t.Fatalf("method = %q", res.Record.ExtractionMethod)
	}
}

func TestExtractStructuredSkipsMalformedBlocks(t *testing.T) {
	html := page(
		ldJSON(`{"@type": "Product", "name": `)+
			ldJSON(`{"@type": "Product", "name": "흰", "author": [{"name": "한강"}, {"name": "최진혁"},],}`),
		"",
	)
	doc, err := Parse(html)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := ExtractStructured(doc)

	if res.Malformed != 1 || res.Blocks != 2 {
		t.Fatalf("blocks=%d malformed=%d, want 2/1", res.Blocks, res.Malformed)
	}
	if res.Record.Title != "흰" {
		t.Fatalf("title = %q, want json5 block to decode", res.Record.Title)
	}
	if res.Record.Author != "한강, 최진혁" {
		t.Fatalf("author = %q, want joined names", res.Record.Author)
	}
}

func TestExtractStructuredAllMalformed(t *testing.T) {
	doc, err := Parse(page(ldJSON(`{not json at all`), ""))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := ExtractStructured(doc)
	if res.Outcome != Malformed {
		t.Fatalf("outcome = %s, want malformed", res.Outcome)
	}
	if !res.Record.Empty() {
		t.Fatalf("record should be empty, got %+v", res.Record)
	}
}

func TestExtractStructuredPriceOrder(t *testing.T) {
	tests := []struct {
		name       string
		block      string
		wantPrice  string
		wantMethod string
	}{
		{
			name:       "offers list",
			block:      `{"@type": ["Product"], "offers": [{"price": 13500}, {"price": 9000}]}`,
			wantPrice:  "13500",
			wantMethod: "JSON-LD(offers.price)",
		},
		{
			name:       "offers ignored on non product",
			block:      `{"@type": "WebPage", "offers": {"price": 13500}, "lowPrice": "12,000"}`,
			wantPrice:  "12000",
			wantMethod: "JSON-LD(lowPrice)",
		},
		{
			name:       "high price after low price",
			block:      `{"lowPrice": "n/a", "highPrice": "22,000"}`,
			wantPrice:  "22000",
			wantMethod: "JSON-LD(highPrice)",
		},
		{
			name:       "work example",
			block:      `{"workExample": [{"potentialAction": {"expectsAcceptanceOf": {"Price": 14400.0}}}]}`,
			wantPrice:  "14400",
			wantMethod: "JSON-LD(workExample)",
		},
		{
			name:  "overflowing offers price",
			block: `{"@type": "Book", "offers": {"price": "1e30"}}`,
		},
		{
			name:  "overflowing work example price",
			block: `{"workExample": [{"potentialAction": {"expectsAcceptanceOf": {"Price": 1e30}}}]}`,
		},
		{
			name:  "broken work example path",
			block: `{"workExample": [{"potentialAction": "buy"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(page(ldJSON(tt.block), ""))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			res := ExtractStructured(doc)
			if res.Record.Price != tt.wantPrice || res.Record.ExtractionMethod != tt.wantMethod {
				t.Fatalf("price=%q method=%q, want %q/%q", res.Record.Price, res.Record.ExtractionMethod, tt.wantPrice, tt.wantMethod)
			}
		})
	}
}

func TestExtractStructuredGraphAndArrays(t *testing.T) {
	html := page(ldJSON(`[
		{"@type": "BreadcrumbList"},
		{"@context": "https://schema.org", "@graph": [
			{"@type": "Book", "name": "채식주의자", "publisher": "창비", "offers": {"price": "13,500"}}
		]}
	]`), "")
	record := mustParse(t, html)
	if record.Title != "채식주의자" || record.Publisher != "창비" || record.Price != "13500" {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestHeuristicSelectorPricePattern(t *testing.T) {
	html := page(`<title>희랍어 시간 | 교보문고</title>`,
		`<div class="prod_price"><span class="price">정가 18,000원</span></div>`)
	record := mustParse(t, html)

	if record.Price != "18000" {
		t.Fatalf("price = %q, want 18000", record.Price)
	}
	if record.ExtractionMethod != "정가 패턴" {
		t.Fatalf("method = %q, want 정가 패턴", record.ExtractionMethod)
	}
	if record.Title != "희랍어 시간" {
		t.Fatalf("title = %q", record.Title)
	}
}

func TestHeuristicRejectsImplausibleNumbers(t *testing.T) {
	html := page("", `
		<span class="price">ISBN 9788936434120 / 500</span>
		<p>쪽수 320쪽</p>
		<p>할인가 12,600원</p>`)
	record := mustParse(t, html)

	if record.Price != "12600" {
		t.Fatalf("price = %q, want 12600", record.Price)
	}
	if record.ExtractionMethod != "원 패턴" {
		t.Fatalf("method = %q, want 원 패턴", record.ExtractionMethod)
	}
}

func TestHeuristicNoPlausiblePrice(t *testing.T) {
	html := page("", `<span class="price">500원</span><p>ISBN 9788936434120</p><p>₩ 12000000</p>`)
	record := mustParse(t, html)
	if record.Price != "" {
		t.Fatalf("price = %q, want empty", record.Price)
	}
}

func TestHeuristicDataPriceSkipsWindow(t *testing.T) {
	html := page("", `<span class="price" data-price="500">정가 18,000원</span>`)
	record := mustParse(t, html)
	if record.Price != "500" || record.ExtractionMethod != "data-price(.price)" {
		t.Fatalf("price=%q method=%q", record.Price, record.ExtractionMethod)
	}
}

func TestHeuristicPatternPriority(t *testing.T) {
	html := page("", `<p>정가 18,000원</p><p>판매가 16,200원</p><p>KRW 20,000</p>`)
	record := mustParse(t, html)
	if record.Price != "16200" || record.ExtractionMethod != "판매가 패턴" {
		t.Fatalf("price=%q method=%q, want 판매가 pattern to win", record.Price, record.ExtractionMethod)
	}
}

func TestHeuristicWonSignAndKRW(t *testing.T) {
	tests := []struct {
		body   string
		price  string
		method string
	}{
		{body: `<p>지금 ₩ 9,900 에 구매</p>`, price: "9900", method: "₩ 패턴"},
		{body: `<p>Price KRW 21,000 only</p>`, price: "21000", method: "KRW 패턴"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			record := mustParse(t, page("", tt.body))
			if record.Price != tt.price || record.ExtractionMethod != tt.method {
				t.Fatalf("price=%q method=%q, want %q/%q", record.Price, record.ExtractionMethod, tt.price, tt.method)
			}
		})
	}
}

func TestHeuristicIgnoresScriptText(t *testing.T) {
	html := page("", `<script>var price = "정가 30,000원";</script><p>가격: 11,000원</p>`)
	record := mustParse(t, html)
	if record.Price != "11000" {
		t.Fatalf("price = %q, want visible text price", record.Price)
	}
}

func TestHeuristicTitleFallbacks(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "og title",
			html: page(`<meta property="og:title" content="소년이 온다 | 한강 | 교보문고"><title>다른 제목</title>`, ""),
			want: "소년이 온다",
		},
		{
			name: "title element",
			html: page(`<meta property="og:title" content=" | 교보문고"><title>흰 | 교보문고</title>`, ""),
			want: "흰",
		},
		{
			name: "first heading",
			html: page("", `<h1> 바람이 분다, 가라 | 문학과지성사</h1><h1>두번째</h1>`),
			want: "바람이 분다, 가라",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustParse(t, tt.html).Title; got != tt.want {
				t.Fatalf("title = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeuristicSelectorOrder(t *testing.T) {
	html := page("", `
		<span class="creator">잘못된 값</span>
		<span class="writer">  </span>
		<span class="prod_author">한강 저</span>
		<a class="publisher-name">다른 출판사</a>
		<span data-publisher="문학과지성사"></span>`)
	record := mustParse(t, html)

	if record.Author != "한강 저" {
		t.Fatalf("author = %q, want first non-empty selector in priority order", record.Author)
	}
	if record.Publisher != "문학과지성사" {
		t.Fatalf("publisher = %q, want [data-publisher] before .publisher-name", record.Publisher)
	}
}

func TestHeuristicKeepsStructuredFields(t *testing.T) {
	html := page(
		ldJSON(`{"@type": "Product", "name": "구조화 제목", "offers": {"price": "15,000"}}`)+`<title>마크업 제목</title>`,
		`<span class="author">한강</span><span class="price">정가 99,000원</span>`,
	)
	record := mustParse(t, html)
	want := &models.BookRecord{
		Title:            "구조화 제목",
		Author:           "한강",
		Price:            "15000",
		ExtractionMethod: "JSON-LD(offers.price)",
	}
	if diff := cmp.Diff(want, record); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	html := page(
		`<meta property="og:title" content="작별하지 않는다 | 교보문고">`+ldJSON(`{"author": "한강"}`),
		`<div class="prod_company">문학동네</div><div class="price">판매가 15,120원</div>`+strings.Repeat("<p>본문</p>", 50),
	)
	doc, err := Parse(html)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	first, firstReport := Extract(doc)
	second, secondReport := Extract(doc)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second run differs (-first +second):\n%s", diff)
	}
	if firstReport.Structured.Blocks != secondReport.Structured.Blocks {
		t.Fatalf("document was mutated between runs")
	}
	if first.Author != "한강" || first.Publisher != "문학동네" || first.Price != "15120" {
		t.Fatalf("unexpected record %+v", first)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	record, report, err := ExtractHTML("<html><body><p>no data</p></body></html>")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !record.Empty() {
		t.Fatalf("record should be empty, got %+v", record)
	}
	if report.Structured.Outcome != Empty || report.Heuristic != Empty {
		t.Fatalf("outcomes = %s/%s, want empty/empty", report.Structured.Outcome, report.Heuristic)
	}
}

func TestHeuristicPriceSelectorOrder(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		price  string
		method string
	}{
		{
			name:   "val before prod_price",
			body:   `<span class="val">2,500원</span><div class="prod_price"><span class="val">18,000원</span></div>`,
			price:  "2500",
			method: "CSS(.val)",
		},
		{
			name:   "price before book-price",
			body:   `<span class="book-price">21,000</span><span class="price">19,800</span>`,
			price:  "19800",
			method: "CSS(.price)",
		},
		{
			name:   "current-price last",
			body:   `<span class="current-price">9,000</span><span class="price-value">8,100</span>`,
			price:  "8100",
			method: "CSS(.price-value)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := mustParse(t, page("", tt.body))
			if record.Price != tt.price || record.ExtractionMethod != tt.method {
				t.Fatalf("price=%q method=%q, want %q/%q", record.Price, record.ExtractionMethod, tt.price, tt.method)
			}
		})
	}
	want := []string{".val", ".price", ".prod_price", ".book-price", "[data-price]", ".price-value", ".current-price"}
	if diff := cmp.Diff(want, PriceSelectors); diff != "" {
		t.Fatalf("price selectors (-want +got):\n%s", diff)
	}
}
