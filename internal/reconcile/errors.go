// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package reconcile

import (
	"errors"
	"fmt"
)

// PartialFailureError reports a sweep in which some items failed after
// others succeeded.
type PartialFailureError struct {
	Participant string
	Operation   string
	Attempted   int
	Completed   int
	Errs        []error
}

func (e *PartialFailureError) Error() string {
	msg := fmt.Sprintf("%s for %s: completed %d of %d", e.Operation, e.Participant, e.Completed, e.Attempted)
	if len(e.Errs) > 0 {
		msg += ": " + e.Errs[0].Error()
		if len(e.Errs) > 1 {
			msg += fmt.Sprintf(" (and %d more)", len(e.Errs)-1)
		}
	}
	return msg
}

// Unwrap exposes the individual item errors to errors.Is and errors.As.
func (e *PartialFailureError) Unwrap() []error {
	return e.Errs
}

// IsPartialFailure reports whether err is a *PartialFailureError.
func IsPartialFailure(err error) bool {
	var pf *PartialFailureError
	return errors.As(err, &pf)
}
