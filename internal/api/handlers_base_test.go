// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/resonance/internal/recommend"
)

// envelope mirrors APIResponse with a raw payload for typed decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

type fakeEngine struct {
	mu         sync.Mutex
	recs       map[int64][]recommend.Recommendation
	similar    map[int64][]recommend.ScoredTrack
	status     recommend.RunStatus
	err        error
	lastLimit  int
	lastK      int
	recomputed []int64
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		recs:    make(map[int64][]recommend.Recommendation),
		similar: make(map[int64][]recommend.ScoredTrack),
	}
}

func (e *fakeEngine) Recommendations(_ context.Context, userID int64, limit int) ([]recommend.Recommendation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastLimit = limit
	if e.err != nil {
		return nil, e.err
	}
	recs := e.recs[userID]
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (e *fakeEngine) RecomputeUser(_ context.Context, userID int64) ([]recommend.Recommendation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.recomputed = append(e.recomputed, userID)
	return e.recs[userID], nil
}

func (e *fakeEngine) SimilarTracks(_ context.Context, trackID int64, k int) ([]recommend.ScoredTrack, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastK = k
	if e.err != nil {
		return nil, e.err
	}
	similar, ok := e.similar[trackID]
	if !ok {
		return nil, recommend.ErrNotFound
	}
	return similar, nil
}

func (e *fakeEngine) GetStatus() recommend.RunStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

type fakeTrigger struct {
	mu    sync.Mutex
	calls int
}

// Trigger reports queued only for the first call, like a coalescing trigger
// whose run has not started yet.
func (f *fakeTrigger) Trigger() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.calls == 1
}

type published struct {
	topic    string
	trackID  int64
	audioKey string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) RequestExtraction(_ context.Context, trackID int64, audioKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic: "extract", trackID: trackID, audioKey: audioKey})
	return nil
}

func (p *fakePublisher) TrackApproved(_ context.Context, trackID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic: "approved", trackID: trackID})
	return nil
}

func (p *fakePublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type fakeStore struct {
	err error
}

func (s fakeStore) Ping(context.Context) error { return s.err }

var errBoom = errors.New("boom")

// newTestAPI builds the full chi handler with rate limiting disabled.
func newTestAPI(t *testing.T, deps Dependencies) http.Handler {
	t.Helper()
	if deps.Store == nil {
		deps.Store = fakeStore{}
	}
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	return NewRouter(NewHandler(deps), NewChiMiddleware(cfg)).SetupChi()
}

// do sends a request and decodes the envelope.
func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s response %q: %v", method, target, rec.Body.String(), err)
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, env envelope, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if env.Success {
		t.Error("success = true, want false")
	}
	if env.Error == nil || env.Error.Code != code {
		t.Fatalf("error = %+v, want code %s", env.Error, code)
	}
}
