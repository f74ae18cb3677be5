package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ChoisMath/kyobobook/config"
	"github.com/ChoisMath/kyobobook/extract"
	"github.com/ChoisMath/kyobobook/models"
	"github.com/ChoisMath/kyobobook/parser"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Terminal states of one extraction.
const (
	StateSuccess     = "success"
	StatePartial     = "partial"
	StateFailure     = "failure"
	StateMaintenance = "maintenance"
	StateCached      = "cached"
)

// Scraper runs the extraction state machine for a single product URL:
// fetch, parse, one price repair pass, and the degraded path when the
// primary path produced nothing.
type Scraper struct {
	cfg      *config.Config
	fetcher  *Fetcher
	fallback *FallbackFetcher
	cache    *expirable.LRU[string, models.BookRecord]
	stats    *Stats
	Metrics  *Metrics
}

// NewScraper builds a scraper instance configured from cfg. stats may be nil,
// in which case a private Stats is used.
func NewScraper(cfg *config.Config, stats *Stats) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if stats == nil {
		stats = NewStats()
	}

	metrics := NewMetrics()
	s := &Scraper{
		cfg:      cfg,
		fetcher:  NewFetcher(cfg, metrics),
		fallback: NewFallbackFetcher(cfg, metrics),
		stats:    stats,
		Metrics:  metrics,
	}
	if cfg.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, models.BookRecord](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s, nil
}

// Stats returns the counters this scraper records into.
func (s *Scraper) Stats() *Stats {
	return s.stats
}

// Extract returns the best-effort record for url. It fails only on the
// maintenance notice or when both paths produced nothing; in the latter case
// the error wraps ErrExtractionFailed and the primary path's cause.
func (s *Scraper) Extract(ctx context.Context, rawURL string) (*models.BookRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	target := parser.NormalizeURL(rawURL)
	if target == "" {
		return nil, fmt.Errorf("url is empty")
	}
	for _, issue := range DiagnoseURL(target) {
		slog.Debug("suspicious url", slog.String("url", target), slog.String("issue", issue))
	}

	if s.cache != nil {
		if rec, ok := s.cache.Get(target); ok {
			s.Metrics.IncCacheHit()
			s.finish(target, nil, StateCached)
			return &rec, nil
		}
	}

	rec, primaryErr := s.primary(ctx, target)
	if errors.Is(primaryErr, ErrMaintenance) {
		s.finish(target, nil, StateMaintenance)
		return nil, primaryErr
	}

	if rec == nil || rec.Empty() {
		slog.Debug("primary path found nothing, trying degraded path",
			slog.String("url", target),
			slog.Any("error", primaryErr),
		)
		degraded, degradedErr := s.degraded(ctx, target)
		if errors.Is(degradedErr, ErrMaintenance) {
			s.finish(target, nil, StateMaintenance)
			return nil, degradedErr
		}
		if degraded == nil || degraded.Empty() {
			s.finish(target, nil, StateFailure)
			cause := primaryErr
			if cause == nil {
				cause = degradedErr
			}
			if cause == nil {
				cause = errors.New("no fields found")
			}
			return nil, fmt.Errorf("%w for %s: %w", ErrExtractionFailed, target, cause)
		}
		rec = degraded
	}

	state := StateSuccess
	if len(rec.Missing()) > 0 {
		state = StatePartial
	}
	s.finish(target, rec, state)
	if s.cache != nil && state == StateSuccess {
		s.cache.Add(target, *rec)
	}
	out := *rec
	return &out, nil
}

func (s *Scraper) primary(ctx context.Context, target string) (*models.BookRecord, error) {
	session := s.fetcher.NewSession()
	doc, err := session.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	rec, report, err := extract.ExtractHTML(doc.HTML)
	if err != nil {
		return nil, err
	}
	slog.Debug("parsed product page",
		slog.String("url", target),
		slog.Int("attempts", doc.Attempts),
		slog.String("structured", report.Structured.Outcome.String()),
		slog.Int("ld_blocks", report.Structured.Blocks),
		slog.Int("ld_malformed", report.Structured.Malformed),
		slog.String("heuristic", report.Heuristic.String()),
	)

	if rec.Price == "" && !rec.Empty() {
		if cand, ok := s.repairPrice(ctx, session, target); ok {
			rec.Price = cand.Value
			rec.ExtractionMethod = cand.Method
		}
	}
	return &rec, nil
}

// repairPrice is the single supplementary fetch made when the first parse
// found other fields but no price. Its failures are not errors.
func (s *Scraper) repairPrice(ctx context.Context, session *Session, target string) (extract.Candidate, bool) {
	if err := s.fetcher.wait(ctx, s.cfg.RepairDelay); err != nil {
		return extract.Candidate{}, false
	}
	doc, err := session.FetchOnce(ctx, target)
	if err != nil {
		slog.Debug("price repair fetch failed", slog.String("url", target), slog.Any("error", err))
		return extract.Candidate{}, false
	}
	parsed, err := extract.Parse(doc.HTML)
	if err != nil {
		return extract.Candidate{}, false
	}
	cand, ok := extract.ExtractPrice(parsed)
	if ok {
		slog.Debug("price repaired", slog.String("url", target), slog.String("method", cand.Method))
	}
	return cand, ok
}

func (s *Scraper) degraded(ctx context.Context, target string) (*models.BookRecord, error) {
	doc, err := s.fallback.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	rec, _, err := extract.ExtractHTML(doc.HTML)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// finish records the outcome. Cache hits are not new extractions and stay out
// of Stats.
func (s *Scraper) finish(target string, rec *models.BookRecord, state string) {
	if state != StateCached {
		s.stats.Record(target, rec, time.Now())
	}
	s.Metrics.IncExtraction(state)
	if rec != nil && rec.Price != "" {
		s.Metrics.IncPriceMethod(rec.ExtractionMethod)
	}
	slog.Info("extraction finished",
		slog.String("url", target),
		slog.String("state", state),
	)
}

// DiagnoseURL lists the reasons url does not look like a product page address.
// An empty result does not mean the page exists.
func DiagnoseURL(url string) []string {
	var issues []string
	if !strings.HasPrefix(url, "http") {
		issues = append(issues, "missing http:// or https://")
	}
	if !strings.Contains(url, "kyobobook.co.kr") {
		issues = append(issues, "not a kyobobook.co.kr address")
	}
	if !strings.Contains(url, "/detail/") {
		issues = append(issues, "not a product detail page")
	}
	return issues
}
