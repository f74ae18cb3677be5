package parser

import (
	"testing"

	"github.com/ChoisMath/kyobobook/models"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  *models.BookRecord
		wantErr bool
	}{
		{
			name: "complete record",
			record: &models.BookRecord{
				Title:     "채식주의자",
				Author:    "한강",
				Publisher: "창비",
				Price:     "15000",
			},
			wantErr: false,
		},
		{
			name:    "nil record",
			record:  nil,
			wantErr: true,
		},
		{
			name: "missing author",
			record: &models.BookRecord{
				Title:     "채식주의자",
				Publisher: "창비",
				Price:     "15000",
			},
			wantErr: true,
		},
		{
			name: "non numeric price",
			record: &models.BookRecord{
				Title:     "채식주의자",
				Author:    "한강",
				Publisher: "창비",
				Price:     "15,000원",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "thousands separator", input: "15,000", expected: "15000"},
		{name: "won suffix", input: " 18,000원 ", expected: "18000"},
		{name: "won sign", input: "₩12,500", expected: "12500"},
		{name: "krw prefix", input: "KRW 9,900", expected: "9900"},
		{name: "already clean", input: "22000", expected: "22000"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := NormalizePrice(tt.input); result != tt.expected {
				t.Errorf("NormalizePrice(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPlausiblePrice(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "18,000", want: "18000", ok: true},
		{input: "1000", want: "1000", ok: true},
		{input: "10,000,000", want: "10000000", ok: true},
		{input: "999", ok: false},
		{input: "500", ok: false},
		{input: "10000001", ok: false},
		{input: "9788936434120", ok: false},
		{input: "2024-05-01", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := PlausiblePrice(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("PlausiblePrice(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFloatPrice(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "15000.0", want: "15000", ok: true},
		{input: "13500", want: "13500", ok: true},
		{input: "abc", ok: false},
		{input: "-1", ok: false},
		{input: "1e30", ok: false},
		{input: "9.3e18", ok: false},
		{input: "1.5e4", want: "15000", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := FloatPrice(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("FloatPrice(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "site suffix", input: "소년이 온다 | 교보문고", expected: "소년이 온다"},
		{name: "extra segments", input: "소년이 온다 | 한강 | 창비 - 교보문고", expected: "소년이 온다"},
		{name: "whitespace", input: "  작별하지 않는다  ", expected: "작별하지 않는다"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := CleanTitle(tt.input); result != tt.expected {
				t.Errorf("CleanTitle(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	got := NormalizeURL("  @https://product.kyobobook.co.kr/detail/S000001916416 ")
	if got != "https://product.kyobobook.co.kr/detail/S000001916416" {
		t.Fatalf("NormalizeURL = %q", got)
	}
}
