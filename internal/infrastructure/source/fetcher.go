// Package source retrieves remote recipe material: web pages reduced to
// readable text and photos downscaled for inlining into generation requests.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var (
	// ErrTooLarge is returned when a source exceeds the configured size limit
	ErrTooLarge = errors.New("source exceeds size limit")
	// ErrUnsupportedType is returned for content the fetcher cannot read
	ErrUnsupportedType = errors.New("unsupported content type")
)

// StatusError reports a non-2xx upstream response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPFetcher implements outbound.SourceFetcher over HTTP
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBytes     int64
	maxDimension uint
	logger       *zap.Logger
}

// NewHTTPFetcher creates a fetcher from extraction configuration
func NewHTTPFetcher(cfg config.ExtractionConfig, logger *zap.Logger) *HTTPFetcher {
	client := &http.Client{
		Timeout:   cfg.FetchTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return NewHTTPFetcherWithClient(client, cfg, logger)
}

// NewHTTPFetcherWithClient creates a fetcher around an existing client
func NewHTTPFetcherWithClient(client *http.Client, cfg config.ExtractionConfig, logger *zap.Logger) *HTTPFetcher {
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = 5 << 20
	}
	if cfg.ImageMaxDimension == 0 {
		cfg.ImageMaxDimension = 1568
	}
	return &HTTPFetcher{
		client:       client,
		userAgent:    cfg.UserAgent,
		maxBytes:     cfg.MaxSourceBytes,
		maxDimension: cfg.ImageMaxDimension,
		logger:       logger.Named("source-fetcher"),
	}
}

var _ outbound.SourceFetcher = (*HTTPFetcher)(nil)

// get downloads url, returning the body bounded by the size limit and the
// declared content type
func (f *HTTPFetcher) get(ctx context.Context, url, accept string) ([]byte, string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > f.maxBytes {
		return nil, "", fmt.Errorf("%w: %s declared, limit %s", ErrTooLarge,
			humanize.Bytes(uint64(resp.ContentLength)), humanize.Bytes(uint64(f.maxBytes)))
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	if n > f.maxBytes {
		return nil, "", fmt.Errorf("%w: limit %s", ErrTooLarge, humanize.Bytes(uint64(f.maxBytes)))
	}

	f.logger.Debug("Fetched source",
		zap.String("url", url),
		zap.String("size", humanize.Bytes(uint64(n))),
		zap.Duration("duration", time.Since(start)),
	)
	return buf.Bytes(), resp.Header.Get("Content-Type"), nil
}
