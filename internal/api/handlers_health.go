// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"context"
	"net/http"
	"time"
)

// readyPingTimeout bounds the storage ping made by the readiness check.
const readyPingTimeout = 2 * time.Second

// LiveStatus is the payload of /health/live.
type LiveStatus struct {
	Alive  bool    `json:"alive"`
	Uptime float64 `json:"uptime"`
}

// ReadyStatus is the payload of /health/ready.
type ReadyStatus struct {
	Ready            bool    `json:"ready_to_serve"`
	StorageConnected bool    `json:"storage_connected"`
	StorageError     string  `json:"storage_error,omitempty"`
	BatchRunning     bool    `json:"batch_running"`
	Uptime           float64 `json:"uptime"`
}

// HealthLive handles liveness check requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(LiveStatus{
		Alive:  true,
		Uptime: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness check requests (Kubernetes-style)
// Returns 200 OK only if the storage backend answers a ping, 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := ReadyStatus{Uptime: time.Since(h.startTime).Seconds()}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyPingTimeout)
		err := h.store.Ping(ctx)
		cancel()
		status.StorageConnected = err == nil
		if err != nil {
			status.StorageError = err.Error()
		}
	}
	if h.engine != nil {
		status.BatchRunning = h.engine.GetStatus().Running
	}
	status.Ready = status.StorageConnected

	rw := NewResponseWriter(w, r)
	if !status.Ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service is not ready", status)
		return
	}
	rw.Success(status)
}
