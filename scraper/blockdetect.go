package scraper

import (
	"net/http"
	"strings"
	"unicode/utf8"
)

// BlockType describes why a response cannot be used as a product page.
type BlockType string

const (
	BlockNone        BlockType = ""
	BlockMaintenance BlockType = "maintenance"
	BlockShortBody   BlockType = "short_body"
	BlockStatus      BlockType = "status"
)

// maintenanceMarkers appear on the notice the retailer serves during scheduled downtime.
var maintenanceMarkers = []string{
	"임시 점검",
	"점검을 실시합니다",
}

// IsMaintenance reports whether body is the maintenance notice.
func IsMaintenance(body string) bool {
	for _, marker := range maintenanceMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// DetectBlock checks a response for the signs that it is not a usable page.
// Maintenance wins over the length check: the notice page is short.
func DetectBlock(status int, body string, minLength int) BlockType {
	if status != http.StatusOK {
		return BlockStatus
	}
	if IsMaintenance(body) {
		return BlockMaintenance
	}
	if utf8.RuneCountInString(body) <= minLength {
		return BlockShortBody
	}
	return BlockNone
}
