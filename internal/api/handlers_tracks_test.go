// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/tomtom215/resonance/internal/events"
	"github.com/tomtom215/resonance/internal/extraction"
	"github.com/tomtom215/resonance/internal/recommend"
)

func TestSimilarTracks(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.similar[5] = []recommend.ScoredTrack{{TrackID: 6, Score: 0.99}, {TrackID: 8, Score: 0.5}}
	h := newTestAPI(t, Dependencies{Engine: engine})

	rec, env := do(t, h, http.MethodGet, "/api/v1/tracks/5/similar?k=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got SimilarResponse
	decodeData(t, env, &got)
	if got.TrackID != 5 || len(got.Similar) != 2 || got.Similar[0].TrackID != 6 {
		t.Errorf("similar = %+v, want [6 8] for track 5", got)
	}
	if engine.lastK != 2 {
		t.Errorf("engine k = %d, want 2", engine.lastK)
	}
}

func TestSimilarTracks_DefaultK(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.similar[5] = []recommend.ScoredTrack{}
	h := newTestAPI(t, Dependencies{Engine: engine})

	_, env := do(t, h, http.MethodGet, "/api/v1/tracks/5/similar", "")
	if engine.lastK != 0 {
		t.Errorf("engine k = %d, want 0 (configured default)", engine.lastK)
	}
	var got SimilarResponse
	decodeData(t, env, &got)
	if got.Similar == nil {
		t.Error("similar should be an empty list, not null")
	}
}

func TestSimilarTracks_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unknown_track", func(t *testing.T) {
		t.Parallel()
		h := newTestAPI(t, Dependencies{Engine: newFakeEngine()})
		rec, env := do(t, h, http.MethodGet, "/api/v1/tracks/404/similar", "")
		expectError(t, rec, env, http.StatusNotFound, ErrCodeNotFound)
	})

	t.Run("invalid_k", func(t *testing.T) {
		t.Parallel()
		h := newTestAPI(t, Dependencies{Engine: newFakeEngine()})
		rec, env := do(t, h, http.MethodGet, "/api/v1/tracks/1/similar?k=-3", "")
		expectError(t, rec, env, http.StatusBadRequest, ErrCodeValidationFailed)
	})

	t.Run("malformed_embedding", func(t *testing.T) {
		t.Parallel()
		engine := newFakeEngine()
		engine.err = fmt.Errorf("track 1 embedding: %w", recommend.ErrDimensionMismatch)
		h := newTestAPI(t, Dependencies{Engine: engine})
		rec, env := do(t, h, http.MethodGet, "/api/v1/tracks/1/similar", "")
		expectError(t, rec, env, http.StatusConflict, ErrCodeConflict)
	})

	t.Run("storage_failure", func(t *testing.T) {
		t.Parallel()
		engine := newFakeEngine()
		engine.err = errBoom
		h := newTestAPI(t, Dependencies{Engine: engine})
		rec, env := do(t, h, http.MethodGet, "/api/v1/tracks/1/similar", "")
		expectError(t, rec, env, http.StatusInternalServerError, ErrCodeDatabaseError)
	})
}

func TestApproveTrack(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	h := newTestAPI(t, Dependencies{Engine: newFakeEngine(), Publisher: pub})

	rec, env := do(t, h, http.MethodPost, "/api/v1/tracks/12/approved", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var got EventAccepted
	decodeData(t, env, &got)
	if got.TrackID != 12 || got.Topic != events.TopicTrackApproved {
		t.Errorf("accepted = %+v", got)
	}

	sent := pub.snapshot()
	if len(sent) != 1 || sent[0].topic != "approved" || sent[0].trackID != 12 {
		t.Errorf("published = %+v, want one approval for track 12", sent)
	}
}

func TestApproveTrack_Errors(t *testing.T) {
	t.Parallel()

	t.Run("events_disabled", func(t *testing.T) {
		t.Parallel()
		h := newTestAPI(t, Dependencies{Engine: newFakeEngine()})
		rec, env := do(t, h, http.MethodPost, "/api/v1/tracks/12/approved", "")
		expectError(t, rec, env, http.StatusServiceUnavailable, ErrCodeServiceUnavailable)
	})

	t.Run("publish_failure", func(t *testing.T) {
		t.Parallel()
		h := newTestAPI(t, Dependencies{Engine: newFakeEngine(), Publisher: &fakePublisher{err: errBoom}})
		rec, env := do(t, h, http.MethodPost, "/api/v1/tracks/12/approved", "")
		expectError(t, rec, env, http.StatusInternalServerError, ErrCodeInternalError)
	})

	t.Run("wrong_method", func(t *testing.T) {
		t.Parallel()
		h := newTestAPI(t, Dependencies{Engine: newFakeEngine(), Publisher: &fakePublisher{}})
		rec, env := do(t, h, http.MethodGet, "/api/v1/tracks/12/approved", "")
		expectError(t, rec, env, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed)
	})
}

func TestRequestExtraction(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	jobs := extraction.NewJobTracker(10)
	h := newTestAPI(t, Dependencies{Engine: newFakeEngine(), Publisher: pub, Jobs: jobs})

	rec, env := do(t, h, http.MethodPost, "/api/v1/tracks/9/extract", `{"audio_key":"albums/a/9.flac"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	var got EventAccepted
	decodeData(t, env, &got)
	if got.Topic != events.TopicExtractionRequested || got.Job == nil || got.Job.State != extraction.JobPending {
		t.Errorf("accepted = %+v, want pending job on extraction topic", got)
	}

	sent := pub.snapshot()
	if len(sent) != 1 || sent[0].audioKey != "albums/a/9.flac" {
		t.Errorf("published = %+v", sent)
	}

	job, err := jobs.Get(9)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job.AudioKey != "albums/a/9.flac" {
		t.Errorf("job audio key = %q", job.AudioKey)
	}
}

func TestRequestExtraction_DefaultKey(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	h := newTestAPI(t, Dependencies{Engine: newFakeEngine(), Publisher: pub, Jobs: extraction.NewJobTracker(10)})

	rec, _ := do(t, h, http.MethodPost, "/api/v1/tracks/77/extract", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if sent := pub.snapshot(); len(sent) != 1 || sent[0].audioKey != "77" {
		t.Errorf("published = %+v, want audio key 77", sent)
	}
}

func TestRequestExtraction_ConflictAndForce(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	jobs := extraction.NewJobTracker(10)
	h := newTestAPI(t, Dependencies{Engine: newFakeEngine(), Publisher: pub, Jobs: jobs})

	if rec, _ := do(t, h, http.MethodPost, "/api/v1/tracks/9/extract", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("first status = %d", rec.Code)
	}

	rec, env := do(t, h, http.MethodPost, "/api/v1/tracks/9/extract", "")
	expectError(t, rec, env, http.StatusConflict, ErrCodeConflict)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/tracks/9/extract?force=true", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("forced status = %d, want 202", rec.Code)
	}

	jobs.Finish(9, "", extraction.JobSucceeded, nil)
	rec, _ = do(t, h, http.MethodPost, "/api/v1/tracks/9/extract", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status after terminal job = %d, want 202", rec.Code)
	}

	if n := len(pub.snapshot()); n != 3 {
		t.Errorf("published %d requests, want 3", n)
	}
}

func TestRequestExtraction_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		deps   func() Dependencies
		target string
		body   string
		status int
		code   string
	}{
		{
			name:   "disabled",
			deps:   func() Dependencies { return Dependencies{Engine: newFakeEngine(), Publisher: &fakePublisher{}} },
			target: "/api/v1/tracks/1/extract",
			status: http.StatusServiceUnavailable,
			code:   ErrCodeServiceUnavailable,
		},
		{
			name: "malformed_body",
			deps: func() Dependencies {
				return Dependencies{Engine: newFakeEngine(), Publisher: &fakePublisher{}, Jobs: extraction.NewJobTracker(10)}
			},
			target: "/api/v1/tracks/1/extract",
			body:   `{"audio_key":`,
			status: http.StatusBadRequest,
			code:   ErrCodeBadRequest,
		},
		{
			name: "unknown_field",
			deps: func() Dependencies {
				return Dependencies{Engine: newFakeEngine(), Publisher: &fakePublisher{}, Jobs: extraction.NewJobTracker(10)}
			},
			target: "/api/v1/tracks/1/extract",
			body:   `{"key":"x"}`,
			status: http.StatusBadRequest,
			code:   ErrCodeBadRequest,
		},
		{
			name: "bad_track_id",
			deps: func() Dependencies {
				return Dependencies{Engine: newFakeEngine(), Publisher: &fakePublisher{}, Jobs: extraction.NewJobTracker(10)}
			},
			target: "/api/v1/tracks/-4/extract",
			status: http.StatusBadRequest,
			code:   ErrCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newTestAPI(t, tt.deps())
			rec, env := do(t, h, http.MethodPost, tt.target, tt.body)
			expectError(t, rec, env, tt.status, tt.code)
		})
	}
}

func TestRequestExtraction_PublishFailureFailsJob(t *testing.T) {
	t.Parallel()

	jobs := extraction.NewJobTracker(10)
	h := newTestAPI(t, Dependencies{Engine: newFakeEngine(), Publisher: &fakePublisher{err: errBoom}, Jobs: jobs})

	rec, env := do(t, h, http.MethodPost, "/api/v1/tracks/3/extract", "")
	expectError(t, rec, env, http.StatusInternalServerError, ErrCodeInternalError)

	job, err := jobs.Get(3)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job.State != extraction.JobFailed || job.LastError != errBoom.Error() {
		t.Errorf("job = %+v, want failed with %q", job, errBoom)
	}
}

func TestExtractionStatus(t *testing.T) {
	t.Parallel()

	jobs := extraction.NewJobTracker(10)
	jobs.Enqueue(21, "21")
	h := newTestAPI(t, Dependencies{Engine: newFakeEngine(), Jobs: jobs})

	rec, env := do(t, h, http.MethodGet, "/api/v1/tracks/21/extraction", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var job extraction.Job
	decodeData(t, env, &job)
	if job.TrackID != 21 || job.State != extraction.JobPending {
		t.Errorf("job = %+v", job)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/tracks/22/extraction", "")
	expectError(t, rec, env, http.StatusNotFound, ErrCodeNotFound)
}
