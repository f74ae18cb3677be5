package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ChoisMath/kyobobook/intake"
	"github.com/ChoisMath/kyobobook/ledger"
	"github.com/ChoisMath/kyobobook/models"
	"github.com/ChoisMath/kyobobook/scraper"
	"github.com/google/go-cmp/cmp"
)

type fakeExtractor struct {
	records map[string]*models.BookRecord
	err     error
	calls   []string
}

func (f *fakeExtractor) Extract(_ context.Context, target string) (*models.BookRecord, error) {
	f.calls = append(f.calls, target)
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[target]
	if !ok {
		return nil, fmt.Errorf("%w for %s: no fields found", scraper.ErrExtractionFailed, target)
	}
	out := *rec
	return &out, nil
}

const productURL = "https://product.kyobobook.co.kr/detail/S000001916416"

func newTestServer(t *testing.T, ex *fakeExtractor) http.Handler {
	t.Helper()
	svc := intake.NewService(ledger.NewMemory(), time.FixedZone("KST", 9*60*60))
	stats := scraper.NewStats()
	stats.Record(productURL, &models.BookRecord{Price: "12000", ExtractionMethod: "JSON-LD(offers.price)"}, time.Now())
	return newRouter(&server{extractor: ex, intake: svc, stats: stats}, nil)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestExtractEndpoint(t *testing.T) {
	ex := &fakeExtractor{records: map[string]*models.BookRecord{
		productURL: {Title: "소년이 온다", Author: "한강", Publisher: "창비"},
	}}
	h := newTestServer(t, ex)

	rr := do(t, h, http.MethodGet, "/extract?url="+productURL, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var got extractResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Complete || !cmp.Equal(got.Missing, []string{"price"}) {
		t.Fatalf("unexpected response %+v", got)
	}
	if got.Record.Title != "소년이 온다" {
		t.Fatalf("title = %q", got.Record.Title)
	}
}

func TestExtractEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
		issues bool
	}{
		{name: "missing url", target: "/extract", status: http.StatusBadRequest},
		{name: "maintenance", target: "/extract?url=" + productURL, err: scraper.ErrMaintenance, status: http.StatusServiceUnavailable},
		{name: "not found", target: "/extract?url=example.com/book", status: http.StatusBadGateway, issues: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeExtractor{err: tt.err})
			rr := do(t, h, http.MethodGet, tt.target, "")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.status, rr.Body.String())
			}
			var body map[string]any
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := body["issues"]; ok != tt.issues {
				t.Fatalf("issues present = %v, want %v (%v)", ok, tt.issues, body)
			}
		})
	}
}

func TestApplicationsEndpoints(t *testing.T) {
	ex := &fakeExtractor{records: map[string]*models.BookRecord{
		productURL: {Title: "소년이 온다", Author: "한강", Publisher: "창비", Price: "12000"},
	}}
	h := newTestServer(t, ex)

	rr := do(t, h, http.MethodPost, "/applications", `{"applicant":"김철수","url":"`+productURL+`","quantity":3}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("apply status = %d, body %s", rr.Code, rr.Body.String())
	}
	var row models.OrderRow
	if err := json.NewDecoder(rr.Body).Decode(&row); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if row.TotalPrice != "36000" {
		t.Fatalf("total = %q, want 36000", row.TotalPrice)
	}

	rr = do(t, h, http.MethodPatch, "/applications/0", `{"applicant":"이영희","quantity":5}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign change status = %d", rr.Code)
	}
	rr = do(t, h, http.MethodPatch, "/applications/7", `{"applicant":"김철수","quantity":5}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing row status = %d", rr.Code)
	}
	rr = do(t, h, http.MethodPatch, "/applications/0", `{"applicant":"김철수","quantity":500}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad quantity status = %d", rr.Code)
	}
	rr = do(t, h, http.MethodPatch, "/applications/0", `{"applicant":"김철수","quantity":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("change status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/applications?applicant="+url.QueryEscape("김철수"), "")
	var apps []intake.Application
	if err := json.NewDecoder(rr.Body).Decode(&apps); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(apps) != 1 || apps[0].Order.Quantity != 5 || apps[0].Order.TotalPrice != "60000" {
		t.Fatalf("unexpected applications %+v", apps)
	}
}

func TestApplyFillsMissingFieldsFromRequest(t *testing.T) {
	ex := &fakeExtractor{records: map[string]*models.BookRecord{
		productURL: {Title: "소년이 온다", Author: "한강"},
	}}
	h := newTestServer(t, ex)

	rr := do(t, h, http.MethodPost, "/applications", `{"applicant":"김철수","url":"`+productURL+`","quantity":1}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("incomplete record status = %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/applications",
		`{"applicant":"김철수","url":"`+productURL+`","quantity":2,"title":"다른 제목","publisher":"창비","price":"13,500"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var row models.OrderRow
	if err := json.NewDecoder(rr.Body).Decode(&row); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if row.Title != "소년이 온다" || row.UnitPrice != "13500" || row.TotalPrice != "27000" {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestApplyDuringMaintenance(t *testing.T) {
	h := newTestServer(t, &fakeExtractor{err: fmt.Errorf("fetch: %w", scraper.ErrMaintenance)})

	rr := do(t, h, http.MethodPost, "/applications",
		`{"applicant":"김철수","url":"`+productURL+`","quantity":1,"title":"소년이 온다","author":"한강","publisher":"창비","price":"12000"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (body %s)", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/applications", "")
	var apps []intake.Application
	if err := json.NewDecoder(rr.Body).Decode(&apps); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(apps) != 0 {
		t.Fatalf("rows written during maintenance: %+v", apps)
	}
}

func TestExtractWithFallback(t *testing.T) {
	fallback := models.BookRecord{Title: "입력 제목", Publisher: "창비", Price: "12000", ExtractionMethod: "manual"}
	tests := []struct {
		name    string
		ex      *fakeExtractor
		want    models.BookRecord
		wantErr error
	}{
		{
			name: "extracted fields win",
			ex: &fakeExtractor{records: map[string]*models.BookRecord{
				productURL: {Title: "소년이 온다", Author: "한강"},
			}},
			want: models.BookRecord{Title: "소년이 온다", Author: "한강", Publisher: "창비", Price: "12000", ExtractionMethod: "manual"},
		},
		{
			name:    "failed extraction keeps supplied values",
			ex:      &fakeExtractor{records: map[string]*models.BookRecord{}},
			want:    fallback,
			wantErr: scraper.ErrExtractionFailed,
		},
		{
			name:    "maintenance returns nothing",
			ex:      &fakeExtractor{err: scraper.ErrMaintenance},
			wantErr: scraper.ErrMaintenance,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractWithFallback(context.Background(), tt.ex, productURL, fallback)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStatsEndpoint(t *testing.T) {
	h := newTestServer(t, &fakeExtractor{})
	rr := do(t, h, http.MethodGet, "/stats", "")
	var snap models.StatsSnapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.TotalAttempts != 1 || snap.PriceSuccesses != 1 || snap.ByMethod["JSON-LD(offers.price)"] != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestMetricsMountedOnlyWhenGiven(t *testing.T) {
	svc := intake.NewService(ledger.NewMemory(), time.UTC)
	api := &server{extractor: &fakeExtractor{}, intake: svc, stats: scraper.NewStats()}

	if rr := do(t, newRouter(api, nil), http.MethodGet, "/metrics", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("metrics without handler status = %d", rr.Code)
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	if rr := do(t, newRouter(api, metrics), http.MethodGet, "/metrics", ""); rr.Code != http.StatusTeapot {
		t.Fatalf("metrics handler not mounted, status = %d", rr.Code)
	}
}
