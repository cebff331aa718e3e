// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package content

import (
	"fmt"

	"github.com/UOSAN/message-automation/internal/models"
)

// ContentLoadError reports a catalog file that is missing, empty, or malformed.
type ContentLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ContentLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load message catalog %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load message catalog %s: %s", e.Path, e.Reason)
}

func (e *ContentLoadError) Unwrap() error {
	return e.Err
}

// EmptyPoolError means no catalog row matched the participant's condition and values.
type EmptyPoolError struct {
	Condition models.Condition
	Values    []models.CodedValue
}

func (e *EmptyPoolError) Error() string {
	if len(e.Values) > 0 && e.Condition == models.ConditionValues {
		return fmt.Sprintf("no messages generated: no catalog rows for condition %s with values %v", e.Condition, e.Values)
	}
	return fmt.Sprintf("no messages generated: no catalog rows for condition %s", e.Condition)
}
