// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/recommend"
)

// Extractor turns an audio reference into raw audio features.
type Extractor interface {
	Extract(ctx context.Context, trackID int64, audioRef string) (recommend.AudioFeatures, error)
}

// HTTPExtractorOptions configures the extractor client.
type HTTPExtractorOptions struct {
	URL     string
	Timeout time.Duration

	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int

	// BreakerFailures consecutive transient failures open the breaker for
	// BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client
}

const breakerName = "extractor"

// maxResponseBytes bounds the extractor response body.
const maxResponseBytes = 1 << 20

// HTTPExtractor calls an external feature extraction service. Calls pass a
// client-side rate limiter and a circuit breaker. 4xx responses other than
// 408 and 429 are ErrPermanent and do not count against the breaker.
type HTTPExtractor struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[recommend.AudioFeatures]
	logger  zerolog.Logger
}

type extractRequest struct {
	TrackID int64  `json:"track_id"`
	Audio   string `json:"audio"`
}

// NewHTTPExtractor builds the client.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHTTPExtractor(opts HTTPExtractorOptions, logger zerolog.Logger) *HTTPExtractor {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}

	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breakerTimeout := opts.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = time.Minute
	}

	logger = logger.With().Str("component", "extractor").Logger()
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[recommend.AudioFeatures](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPermanent) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			metrics.RecordBreakerTransition(name, from.String(), to.String(), int(to))
		},
	})

	return &HTTPExtractor{
		url:     opts.URL,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		breaker: breaker,
		logger:  logger,
	}
}

// State returns the breaker state for health reporting.
func (x *HTTPExtractor) State() string {
	return x.breaker.State().String()
}

// Extract implements Extractor.
func (x *HTTPExtractor) Extract(ctx context.Context, trackID int64, audioRef string) (recommend.AudioFeatures, error) {
	if err := x.limiter.Wait(ctx); err != nil {
		return recommend.AudioFeatures{}, fmt.Errorf("rate limit wait: %w", err)
	}

	features, err := x.breaker.Execute(func() (recommend.AudioFeatures, error) {
		return x.call(ctx, trackID, audioRef)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordBreakerRequest(breakerName, "rejected")
		return recommend.AudioFeatures{}, fmt.Errorf("extractor unavailable: %w", err)
	case err != nil && !errors.Is(err, ErrPermanent):
		metrics.RecordBreakerRequest(breakerName, "failure")
	default:
		metrics.RecordBreakerRequest(breakerName, "success")
	}
	return features, err
}

func (x *HTTPExtractor) call(ctx context.Context, trackID int64, audioRef string) (recommend.AudioFeatures, error) {
	body, err := json.Marshal(extractRequest{TrackID: trackID, Audio: audioRef})
	if err != nil {
		return recommend.AudioFeatures{}, fmt.Errorf("%w: marshal request: %v", ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.url, bytes.NewReader(body))
	if err != nil {
		return recommend.AudioFeatures{}, fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := x.client.Do(req)
	if err != nil {
		return recommend.AudioFeatures{}, fmt.Errorf("call extractor: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return recommend.AudioFeatures{}, fmt.Errorf("read extractor response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return recommend.AudioFeatures{}, fmt.Errorf("extractor returned %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return recommend.AudioFeatures{}, fmt.Errorf("%w: extractor returned %d: %s", ErrPermanent, resp.StatusCode, truncateBody(payload))
	case resp.StatusCode != http.StatusOK:
		return recommend.AudioFeatures{}, fmt.Errorf("extractor returned %d: %s", resp.StatusCode, truncateBody(payload))
	}

	var features recommend.AudioFeatures
	if err := json.Unmarshal(payload, &features); err != nil {
		return recommend.AudioFeatures{}, fmt.Errorf("%w: decode features: %v", ErrPermanent, err)
	}
	if err := checkFeatures(&features); err != nil {
		return recommend.AudioFeatures{}, err
	}
	return features, nil
}

func checkFeatures(f *recommend.AudioFeatures) error {
	for _, v := range []float64{
		f.Danceability, f.Energy, f.Valence, f.Tempo, f.Speechiness,
		f.Instrumentalness, f.Acousticness, f.Liveness,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite feature value", ErrPermanent)
		}
	}
	return nil
}

func truncateBody(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
