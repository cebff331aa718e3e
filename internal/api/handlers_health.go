// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package api

import (
	"net/http"
	"time"
)

// HealthLive handles liveness check requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness check requests (Kubernetes-style).
// It returns 503 while any upstream circuit breaker is open.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	states := make(map[string]string, len(h.breakers))
	ready := true
	for _, b := range h.breakers {
		state := b.State()
		states[b.Name()] = state
		if state == "open" {
			ready = false
		}
	}

	data := map[string]interface{}{
		"ready":    ready,
		"breakers": states,
	}
	if !ready {
		respondJSON(w, r, http.StatusServiceUnavailable, &APIResponse{Status: "error", Data: data, Error: &APIError{
			Code:    "NOT_READY",
			Message: "an upstream service is unavailable",
		}})
		return
	}
	respondData(w, r, http.StatusOK, data)
}
