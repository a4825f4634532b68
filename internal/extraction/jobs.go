// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package extraction

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/resonance/internal/metrics"
)

// JobState is the lifecycle state of an extraction job.
type JobState string

// Job states. Succeeded, Skipped, Failed and Abandoned are terminal.
const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobSkipped   JobState = "skipped"
	JobFailed    JobState = "failed"
	JobAbandoned JobState = "abandoned"
)

// Terminal reports whether no further attempts will be made.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobSkipped, JobFailed, JobAbandoned:
		return true
	default:
		return false
	}
}

// Job is the extraction state of one track.
type Job struct {
	ID         string     `json:"id"`
	TrackID    int64      `json:"track_id"`
	AudioKey   string     `json:"audio_key"`
	MessageID  string     `json:"message_id,omitempty"`
	State      JobState   `json:"state"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobTracker keeps the latest extraction job per track in memory. When it
// holds more than maxJobs entries the least recently updated terminal job
// is evicted, or the least recently updated job when none is terminal.
type JobTracker struct {
	mu      sync.Mutex
	jobs    map[int64]*Job
	maxJobs int
	now     func() time.Time
}

// NewJobTracker returns a tracker bounded to maxJobs entries.
func NewJobTracker(maxJobs int) *JobTracker {
	if maxJobs < 1 {
		maxJobs = 10000
	}
	return &JobTracker{
		jobs:    make(map[int64]*Job),
		maxJobs: maxJobs,
		now:     time.Now,
	}
}

// Enqueue records a pending job for a request that was just published.
// It replaces any previous job for the track.
func (t *JobTracker) Enqueue(trackID int64, audioKey string) Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	job := t.newJob(trackID, audioKey)
	t.put(job)
	return *job
}

// Begin records the start of an attempt for the message. A non-terminal job
// for the same message, or a pending job not yet bound to one, is reused;
// anything else starts a new job.
func (t *JobTracker) Begin(trackID int64, messageID, audioKey string) Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[trackID]
	if !ok || job.State.Terminal() || (job.MessageID != "" && job.MessageID != messageID) {
		job = t.newJob(trackID, audioKey)
		t.put(job)
	}
	job.MessageID = messageID
	job.State = JobRunning
	job.Attempts++
	job.UpdatedAt = t.now().UTC()
	return *job
}

// Retry records a transient failure. The job goes back to pending until the
// next attempt or until it is abandoned.
func (t *JobTracker) Retry(trackID int64, messageID string, err error) {
	t.update(trackID, messageID, func(job *Job) {
		job.State = JobPending
		job.LastError = err.Error()
	})
}

// Finish moves the job to a terminal state. err may be nil.
func (t *JobTracker) Finish(trackID int64, messageID string, state JobState, err error) {
	t.update(trackID, messageID, func(job *Job) {
		t.finish(job, state, err)
	})
}

// Abandon marks the job abandoned after its retries are exhausted. It
// returns false when the job is unknown, already terminal, or was replaced
// by a newer request.
func (t *JobTracker) Abandon(trackID int64, messageID, reason string) bool {
	abandoned := false
	t.update(trackID, messageID, func(job *Job) {
		if job.State.Terminal() {
			return
		}
		if reason != "" {
			job.LastError = reason
		}
		t.finish(job, JobAbandoned, nil)
		abandoned = true
	})
	return abandoned
}

// Get returns a copy of the track's latest job.
func (t *JobTracker) Get(trackID int64) (Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[trackID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// Len returns the number of tracked jobs.
func (t *JobTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

func (t *JobTracker) update(trackID int64, messageID string, fn func(*Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[trackID]
	if !ok || (messageID != "" && job.MessageID != messageID) {
		return
	}
	fn(job)
	job.UpdatedAt = t.now().UTC()
}

func (t *JobTracker) finish(job *Job, state JobState, err error) {
	if job.State.Terminal() {
		return
	}
	now := t.now().UTC()
	job.State = state
	job.FinishedAt = &now
	if err != nil {
		job.LastError = err.Error()
	}
	metrics.RecordExtractionJob(string(state))
}

func (t *JobTracker) newJob(trackID int64, audioKey string) *Job {
	now := t.now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		TrackID:   trackID,
		AudioKey:  audioKey,
		State:     JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// put stores job and evicts one entry when over capacity. Must hold mu.
func (t *JobTracker) put(job *Job) {
	t.jobs[job.TrackID] = job
	if len(t.jobs) <= t.maxJobs {
		return
	}

	var victim, oldest *Job
	for _, j := range t.jobs {
		if j == job {
			continue
		}
		if oldest == nil || j.UpdatedAt.Before(oldest.UpdatedAt) {
			oldest = j
		}
		if j.State.Terminal() && (victim == nil || j.UpdatedAt.Before(victim.UpdatedAt)) {
			victim = j
		}
	}
	if victim == nil {
		victim = oldest
	}
	if victim != nil {
		delete(t.jobs, victim.TrackID)
	}
}
