// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package redcap

import "fmt"

// NotFoundError means REDCap has no session 0 record for the participant.
type NotFoundError struct {
	Participant string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Session 0 for subject %s not found", e.Participant)
}

// FieldError is a REDCap value that could not be converted.
type FieldError struct {
	Participant string
	Field       string
	Value       string
	Err         error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("participant %s: REDCap field %s has invalid value %q: %v", e.Participant, e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// StatusError is a non-200 response from the REDCap API.
type StatusError struct {
	What       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unable to get %s from REDCap - %d", e.What, e.StatusCode)
}
