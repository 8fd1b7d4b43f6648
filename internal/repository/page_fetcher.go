package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	drepo "EarnPull/internal/domain/repository"
	"EarnPull/internal/service/ratelimit"
	"EarnPull/pkg/cache"
	xhttp "EarnPull/pkg/http"
	xlogger "EarnPull/pkg/logger"
)

// PageFetcherConfig describes one upstream site.
type PageFetcherConfig struct {
	BaseURL      string
	RateCapacity float64
	RatePerSec   float64
	// PageTTL keeps successful GET bodies in the page cache; 0 disables it.
	PageTTL time.Duration
}

// PageFetcher implements domain.repository.Fetcher for one site: requests
// are paced per host and successful pages are cached.
type PageFetcher struct {
	client  *xhttp.Client
	pages   cache.Service
	limiter *ratelimit.Limiter
	cfg     PageFetcherConfig
	host    string
	log     *xlogger.Logger
}

var _ drepo.Fetcher = (*PageFetcher)(nil)

// NewPageFetcher validates the base URL. pages may be nil.
func NewPageFetcher(
	client *xhttp.Client,
	pages cache.Service,
	limiter *ratelimit.Limiter,
	log *xlogger.Logger,
	cfg PageFetcherConfig,
) (*PageFetcher, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &PageFetcher{
		client:  client,
		pages:   pages,
		limiter: limiter,
		cfg:     cfg,
		host:    u.Host,
		log:     log.With(xlogger.String("component", "fetcher"), xlogger.String("host", u.Host)),
	}, nil
}

func (f *PageFetcher) Fetch(ctx context.Context, method, path string) ([]byte, error) {
	target := f.cfg.BaseURL + path
	cacheable := method == xhttp.MethodGet && f.pages != nil && f.cfg.PageTTL > 0
	key := cache.GenerateKey("page", cache.HashKey(target))

	if cacheable {
		body, err := f.pages.Get(ctx, key)
		if err == nil {
			f.log.Debug("page cache hit", xlogger.String("path", path))
			return body, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			f.log.Warn("page cache read failed", xlogger.Error(err))
		}
	}

	if f.limiter != nil && f.cfg.RatePerSec > 0 {
		if err := f.limiter.Wait(ctx, f.host, f.cfg.RateCapacity, f.cfg.RatePerSec); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	body, err := f.client.ReadBody(ctx, &xhttp.RequestOptions{Method: method, URL: target})
	if err != nil {
		return nil, err
	}
	f.log.Debug("page fetched",
		xlogger.String("path", path),
		xlogger.Int("bytes", len(body)),
		xlogger.Duration("duration_ms", time.Since(start)),
	)

	if cacheable {
		if err := f.pages.Set(ctx, key, body, f.cfg.PageTTL); err != nil {
			f.log.Warn("page cache write failed", xlogger.Error(err))
		}
	}
	return body, nil
}
