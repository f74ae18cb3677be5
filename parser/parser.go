// Package parser holds the normalisation rules shared by extraction and intake.
package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChoisMath/kyobobook/models"
)

// Plausibility window for heuristically scraped prices, in whole won.
const (
	MinPlausiblePrice = 1_000
	MaxPlausiblePrice = 10_000_000
)

// SiteSuffix is appended by the retailer to every page title.
const SiteSuffix = " | 교보문고"

var pipeSplit = regexp.MustCompile(`\s*\|\s*`)

// ValidateRecord ensures a record carries every field an application needs.
func ValidateRecord(b *models.BookRecord) error {
	if b == nil {
		return fmt.Errorf("record is nil")
	}
	if missing := b.Missing(); len(missing) > 0 {
		return fmt.Errorf("record missing %s", strings.Join(missing, ", "))
	}
	if !IsDigits(b.Price) {
		return fmt.Errorf("record price %q is not numeric", b.Price)
	}
	return nil
}

// NormalizePrice removes thousands separators, currency marks and whitespace.
func NormalizePrice(price string) string {
	price = strings.TrimSpace(price)
	price = strings.ReplaceAll(price, ",", "")
	price = strings.ReplaceAll(price, "원", "")
	price = strings.ReplaceAll(price, "₩", "")
	price = strings.TrimPrefix(price, "KRW")
	return strings.TrimSpace(price)
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Plausible reports whether v lies inside the accepted price window.
func Plausible(v int) bool {
	return v >= MinPlausiblePrice && v <= MaxPlausiblePrice
}

// PlausiblePrice normalises a candidate and accepts it only inside the window.
func PlausiblePrice(candidate string) (string, bool) {
	clean := NormalizePrice(candidate)
	if !IsDigits(clean) {
		return "", false
	}
	v, err := strconv.Atoi(clean)
	if err != nil || !Plausible(v) {
		return "", false
	}
	return strconv.Itoa(v), true
}

// NumericPrice normalises a candidate without applying the window.
func NumericPrice(candidate string) (string, bool) {
	clean := NormalizePrice(candidate)
	if !IsDigits(clean) {
		return "", false
	}
	return clean, true
}

// FloatPrice converts a decimal price such as "15000.0" to an integer string.
// Values that do not fit in an int64 are rejected.
func FloatPrice(candidate string) (string, bool) {
	f, err := strconv.ParseFloat(NormalizePrice(candidate), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}

// CleanTitle drops the site suffix and anything after the first pipe.
func CleanTitle(title string) string {
	title = strings.ReplaceAll(title, SiteSuffix, "")
	title = strings.TrimSpace(title)
	title = pipeSplit.Split(title, 2)[0]
	return strings.TrimSpace(title)
}

// NormalizeURL trims the pasted URL the way the intake form always has.
func NormalizeURL(raw string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "@"))
}
