package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ChoisMath/kyobobook/config"
	"github.com/ChoisMath/kyobobook/models"
	"github.com/gocolly/colly/v2"
)

const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"

// Fetcher issues browser-like GET requests against product pages.
// A Fetcher is safe to share; the per-request state lives in a Session.
type Fetcher struct {
	cfg     *config.Config
	metrics *Metrics

	transport http.RoundTripper
	wait      func(ctx context.Context, d time.Duration) error
	int64n    func(n int64) int64
	now       func() time.Time
}

// NewFetcher builds a fetcher from cfg. metrics may be nil.
func NewFetcher(cfg *config.Config, metrics *Metrics) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		metrics: metrics,
		wait:    sleepContext,
		int64n:  rand.Int64N,
		now:     time.Now,
	}
}

// WithTransport replaces the HTTP transport used by new sessions.
func (f *Fetcher) WithTransport(rt http.RoundTripper) *Fetcher {
	f.transport = rt
	return f
}

// Session is one colly collector and its cookie jar. Every attempt made
// through a session shares the jar.
type Session struct {
	f         *Fetcher
	collector *colly.Collector
	last      *colly.Response
}

// NewSession starts a fresh session with an empty cookie jar.
func (f *Fetcher) NewSession() *Session {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.roundTripper())

	s := &Session{f: f, collector: collector}
	collector.OnResponse(func(r *colly.Response) {
		s.last = r
	})
	collector.OnError(func(r *colly.Response, _ error) {
		s.last = r
	})
	return s
}

func (f *Fetcher) roundTripper() http.RoundTripper {
	if f.transport != nil {
		return f.transport
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   f.cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: f.cfg.InsecureSkipVerify},
	}
}

// Fetch makes up to MaxRetries sequential attempts. The first fires at once;
// each later one waits a uniform delay in [RetryDelayMin, RetryDelayMax].
// The maintenance notice ends the loop immediately.
func (s *Session) Fetch(ctx context.Context, target string) (*models.Document, error) {
	attempts := s.f.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			delay := s.f.retryDelay()
			s.f.metrics.IncRetries()
			slog.Debug("retrying fetch",
				slog.String("url", target),
				slog.Int("attempt", n),
				slog.Duration("delay", delay),
			)
			if err := s.f.wait(ctx, delay); err != nil {
				return nil, fmt.Errorf("fetch %s: %w", target, err)
			}
		}

		doc, err := s.attempt(ctx, target)
		if err == nil {
			doc.Attempts = n
			return doc, nil
		}
		if errors.Is(err, ErrMaintenance) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrFetchExhausted, attempts, lastErr)
}

// FetchOnce makes a single attempt on the session's existing cookie jar.
func (s *Session) FetchOnce(ctx context.Context, target string) (*models.Document, error) {
	doc, err := s.attempt(ctx, target)
	if err != nil {
		return nil, err
	}
	doc.Attempts = 1
	return doc, nil
}

func (s *Session) attempt(ctx context.Context, target string) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agent := s.f.userAgent()
	if err := s.collector.SetCookies(target, []*http.Cookie{{Name: "PCID", Value: s.f.pcid()}}); err != nil {
		slog.Debug("set session cookie", slog.String("url", target), slog.Any("error", err))
	}

	s.last = nil
	start := time.Now()
	err := s.collector.Request(http.MethodGet, target, nil, nil, s.f.headers(agent))
	s.f.metrics.ObserveDuration(time.Since(start))

	status := 0
	if s.last != nil {
		status = s.last.StatusCode
	}
	if err != nil {
		classified := classifyError(err, status)
		s.f.recordAttempt(target, status, 0, classified)
		return nil, classified
	}
	if s.last == nil {
		err := fmt.Errorf("no response for %s", target)
		s.f.recordAttempt(target, 0, 0, err)
		return nil, err
	}

	body := string(s.last.Body)
	var blockErr error
	switch DetectBlock(status, body, s.f.cfg.MinBodyLength) {
	case BlockStatus:
		blockErr = classifyError(nil, status)
	case BlockMaintenance:
		blockErr = ErrMaintenance
	case BlockShortBody:
		blockErr = ErrBlocked{Length: len([]rune(body)), Min: s.f.cfg.MinBodyLength}
	}
	s.f.recordAttempt(target, status, len(body), blockErr)
	if blockErr != nil {
		return nil, blockErr
	}

	return &models.Document{
		URL:        target,
		StatusCode: status,
		HTML:       body,
		FetchedAt:  s.f.now(),
	}, nil
}

func (f *Fetcher) recordAttempt(target string, status, size int, err error) {
	if err == nil {
		f.metrics.IncAttempt("ok")
		slog.Debug("fetch attempt",
			slog.String("url", target),
			slog.Int("status", status),
			slog.Int("bytes", size),
		)
		return
	}
	label := errorTypeLabel(err)
	f.metrics.IncAttempt(label)
	f.metrics.IncError(label)
	slog.Debug("fetch attempt failed",
		slog.String("url", target),
		slog.Int("status", status),
		slog.Int("bytes", size),
		slog.String("category", label),
		slog.Any("error", err),
	)
}

func (f *Fetcher) headers(agent string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", agent)
	h.Set("Accept", acceptHeader)
	h.Set("Accept-Language", f.cfg.AcceptLanguage)
	// colly only decodes gzip bodies itself.
	h.Set("Accept-Encoding", "gzip")
	h.Set("DNT", "1")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Cache-Control", "max-age=0")
	if f.cfg.Referer != "" {
		h.Set("Referer", f.cfg.Referer)
	}
	return h
}

func (f *Fetcher) userAgent() string {
	pool := f.cfg.UserAgents
	if len(pool) == 0 {
		return f.cfg.FallbackUserAgent
	}
	return pool[f.int64n(int64(len(pool)))]
}

// pcid is a random 10-digit number.
func (f *Fetcher) pcid() string {
	return strconv.FormatInt(1_000_000_000+f.int64n(9_000_000_000), 10)
}

func (f *Fetcher) retryDelay() time.Duration {
	lo, hi := f.cfg.RetryDelayMin, f.cfg.RetryDelayMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(f.int64n(int64(hi-lo)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
