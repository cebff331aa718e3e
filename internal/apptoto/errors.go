// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package apptoto

import (
	"fmt"
	"io"
	"net/http"

	"github.com/UOSAN/message-automation/internal/logging"
)

const (
	// maxErrorBodySize limits how much of an error response body is kept.
	maxErrorBodySize = 64 * 1024

	// maxErrorMessageBody limits the body text repeated in Error.
	maxErrorMessageBody = 256
)

// ProviderError is a non-2xx response from the provider.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("apptoto %s failed: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("apptoto %s failed: status %d: %s", e.Op, e.StatusCode, logging.Truncate(e.Body, maxErrorMessageBody))
}

// Temporary reports whether retrying the request may succeed.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// readBodyForError reads at most maxErrorBodySize bytes of r.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	if len(body) == maxErrorBodySize {
		return string(body) + "\n... (truncated)"
	}
	return string(body)
}
