// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/notevault/internal/config"
	"github.com/tomtom215/notevault/internal/logging"
	"github.com/tomtom215/notevault/internal/metrics"
)

const (
	// maxAttachmentSize caps a single download.
	maxAttachmentSize = 1 << 30
	userAgent         = "notevault-export"
)

// Downloader fetches one attachment into w.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) error
}

// DownloaderConfig tunes HTTPDownloader.
type DownloaderConfig struct {
	Timeout         time.Duration
	RateLimit       float64 // requests per second, 0 = unlimited
	RateBurst       int
	BreakerFailures uint32 // consecutive failures that open the circuit
	BreakerTimeout  time.Duration
}

// DownloaderConfigFrom extracts downloader settings from the application config.
func DownloaderConfigFrom(cfg *config.Config) DownloaderConfig {
	return DownloaderConfig{
		Timeout:         cfg.Export.DownloadTimeout,
		RateLimit:       cfg.Export.RateLimit,
		RateBurst:       cfg.Export.RateBurst,
		BreakerFailures: cfg.Export.BreakerFailures,
		BreakerTimeout:  cfg.Export.BreakerTimeout,
	}
}

// HTTPDownloader downloads over HTTP with a resty client behind a rate
// limiter and a circuit breaker. When the attachment host keeps failing the
// breaker opens and remaining downloads fail fast.
type HTTPDownloader struct {
	client  *resty.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[interface{}]
	name    string
}

// NewHTTPDownloader creates a downloader.
func NewHTTPDownloader(cfg DownloaderConfig) *HTTPDownloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	name := "attachment-download"
	metrics.SetCircuitBreakerState(name, 0)

	failures := cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.SetCircuitBreakerState(name, stateValue(to))
		},
		// A canceled export is not a host failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &HTTPDownloader{
		client:  resty.New().SetTimeout(cfg.Timeout).SetHeader("User-Agent", userAgent),
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
		name:    name,
	}
}

// Download implements Downloader.
func (d *HTTPDownloader) Download(ctx context.Context, url string, w io.Writer) error {
	if err := d.limiter.Wait(ctx); err != nil {
		metrics.RecordDownload("error")
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := d.cb.Execute(func() (interface{}, error) {
		return nil, d.fetch(ctx, url, w)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordDownload("circuit_open")
		return fmt.Errorf("download %s rejected: %w", url, err)
	case err != nil:
		metrics.RecordDownload("error")
		return err
	}
	metrics.RecordDownload("success")
	return nil
}

// State reports the breaker state.
func (d *HTTPDownloader) State() gobreaker.State {
	return d.cb.State()
}

func (d *HTTPDownloader) fetch(ctx context.Context, url string, w io.Writer) error {
	// The body is streamed into w, so resty must not buffer it.
	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	body := resp.RawBody()
	defer body.Close() //nolint:errcheck // response body

	if !resp.IsSuccess() {
		return fmt.Errorf("failed to download %s: status %d", url, resp.StatusCode())
	}
	if _, err := io.Copy(w, io.LimitReader(body, maxAttachmentSize)); err != nil {
		return fmt.Errorf("failed to read %s: %w", url, err)
	}
	return nil
}

func stateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
