package scraper

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ChoisMath/kyobobook/config"
	"github.com/ChoisMath/kyobobook/models"
	"github.com/go-resty/resty/v2"
)

// FallbackFetcher is the degraded path: one GET with static headers, no
// cookies and no identity rotation.
type FallbackFetcher struct {
	cfg     *config.Config
	client  *resty.Client
	metrics *Metrics
}

// NewFallbackFetcher builds the degraded fetcher. metrics may be nil.
func NewFallbackFetcher(cfg *config.Config, metrics *Metrics) *FallbackFetcher {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify})
	client.SetHeader("User-Agent", cfg.FallbackUserAgent)
	client.SetHeader("Accept", acceptHeader)
	client.SetHeader("Accept-Language", cfg.AcceptLanguage)

	return &FallbackFetcher{cfg: cfg, client: client, metrics: metrics}
}

// WithTransport replaces the underlying HTTP transport.
func (f *FallbackFetcher) WithTransport(rt http.RoundTripper) *FallbackFetcher {
	f.client.GetClient().Transport = rt
	return f
}

// Fetch makes exactly one attempt.
func (f *FallbackFetcher) Fetch(ctx context.Context, target string) (*models.Document, error) {
	start := time.Now()
	res, err := f.client.R().
		SetContext(ctx).
		Get(target)
	f.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		classified := classifyError(err, 0)
		f.metrics.IncAttempt(errorTypeLabel(classified))
		return nil, fmt.Errorf("fallback fetch %s: %w", target, classified)
	}

	body := res.String()
	var blockErr error
	switch DetectBlock(res.StatusCode(), body, f.cfg.MinBodyLength) {
	case BlockStatus:
		blockErr = classifyError(nil, res.StatusCode())
	case BlockMaintenance:
		blockErr = ErrMaintenance
	case BlockShortBody:
		blockErr = ErrBlocked{Length: len([]rune(body)), Min: f.cfg.MinBodyLength}
	}
	if blockErr != nil {
		label := errorTypeLabel(blockErr)
		f.metrics.IncAttempt(label)
		f.metrics.IncError(label)
		slog.Debug("fallback fetch rejected",
			slog.String("url", target),
			slog.Int("status", res.StatusCode()),
			slog.String("category", label),
		)
		return nil, blockErr
	}

	f.metrics.IncAttempt("ok")
	return &models.Document{
		URL:        target,
		StatusCode: res.StatusCode(),
		HTML:       body,
		Attempts:   1,
		FetchedAt:  time.Now(),
	}, nil
}
