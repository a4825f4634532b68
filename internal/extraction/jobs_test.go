// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package extraction

import (
	"errors"
	"testing"
	"time"
)

// fakeClock advances one second per call.
func fakeClock() func() time.Time {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()

	jobs := NewJobTracker(10)
	jobs.now = fakeClock()

	queued := jobs.Enqueue(1, "1.mp3")
	if queued.State != JobPending || queued.ID == "" {
		t.Fatalf("enqueued job = %+v", queued)
	}

	first := jobs.Begin(1, "msg-1", "1.mp3")
	if first.ID != queued.ID {
		t.Error("pending job should be reused by its first attempt")
	}
	if first.State != JobRunning || first.Attempts != 1 {
		t.Errorf("after begin: %+v", first)
	}

	jobs.Retry(1, "msg-1", errors.New("timeout"))
	got, _ := jobs.Get(1)
	if got.State != JobPending || got.LastError != "timeout" {
		t.Errorf("after retry: %+v", got)
	}

	second := jobs.Begin(1, "msg-1", "1.mp3")
	if second.ID != queued.ID || second.Attempts != 2 {
		t.Errorf("retry attempt = %+v", second)
	}

	jobs.Finish(1, "msg-1", JobSucceeded, nil)
	got, _ = jobs.Get(1)
	if got.State != JobSucceeded || got.FinishedAt == nil {
		t.Errorf("after finish: %+v", got)
	}

	// Terminal states do not change.
	jobs.Finish(1, "msg-1", JobFailed, errors.New("late"))
	if got, _ := jobs.Get(1); got.State != JobSucceeded {
		t.Errorf("terminal state changed to %s", got.State)
	}

	// A new message starts a new job.
	next := jobs.Begin(1, "msg-2", "1.mp3")
	if next.ID == queued.ID || next.Attempts != 1 {
		t.Errorf("new request = %+v", next)
	}
}

func TestJobAbandon(t *testing.T) {
	t.Parallel()

	jobs := NewJobTracker(10)
	jobs.Begin(3, "msg-a", "3.mp3")
	jobs.Retry(3, "msg-a", errors.New("connection refused"))

	if jobs.Abandon(3, "other-msg", "late poison") {
		t.Error("poison for another message must not abandon the current job")
	}
	if !jobs.Abandon(3, "msg-a", "extractor unavailable") {
		t.Fatal("expected job to be abandoned")
	}
	got, _ := jobs.Get(3)
	if got.State != JobAbandoned || got.LastError != "extractor unavailable" {
		t.Errorf("abandoned job = %+v", got)
	}
	if jobs.Abandon(3, "msg-a", "again") {
		t.Error("terminal job must not be abandoned twice")
	}
	if jobs.Abandon(99, "msg", "unknown") {
		t.Error("unknown track must report false")
	}
}

func TestJobTrackerGetUnknown(t *testing.T) {
	t.Parallel()

	if _, err := NewJobTracker(1).Get(42); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestJobTrackerEvictsOldestTerminal(t *testing.T) {
	t.Parallel()

	jobs := NewJobTracker(3)
	jobs.now = fakeClock()

	jobs.Begin(1, "m1", "1") // running, oldest
	jobs.Begin(2, "m2", "2")
	jobs.Finish(2, "m2", JobSucceeded, nil) // terminal
	jobs.Begin(3, "m3", "3")
	jobs.Finish(3, "m3", JobSkipped, nil) // terminal, newer
	jobs.Enqueue(4, "4")

	if jobs.Len() != 3 {
		t.Fatalf("len = %d, want 3", jobs.Len())
	}
	if _, err := jobs.Get(2); !errors.Is(err, ErrJobNotFound) {
		t.Error("oldest terminal job should be evicted")
	}
	for _, id := range []int64{1, 3, 4} {
		if _, err := jobs.Get(id); err != nil {
			t.Errorf("job %d evicted unexpectedly", id)
		}
	}
}

func TestJobTrackerEvictsOldestWhenNoneTerminal(t *testing.T) {
	t.Parallel()

	jobs := NewJobTracker(2)
	jobs.now = fakeClock()

	jobs.Enqueue(1, "1")
	jobs.Enqueue(2, "2")
	jobs.Enqueue(3, "3")

	if _, err := jobs.Get(1); !errors.Is(err, ErrJobNotFound) {
		t.Error("oldest job should be evicted")
	}
	if jobs.Len() != 2 {
		t.Errorf("len = %d, want 2", jobs.Len())
	}
}

func TestJobStateTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[JobState]bool{
		JobPending:   false,
		JobRunning:   false,
		JobSucceeded: true,
		JobSkipped:   true,
		JobFailed:    true,
		JobAbandoned: true,
	}
	for state, want := range terminal {
		if state.Terminal() != want {
			t.Errorf("%s.Terminal() = %v", state, !want)
		}
	}
}
