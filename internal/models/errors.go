// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package models

import (
	"fmt"
	"strings"
)

// PreconditionError reports a participant record that lacks fields an
// operation requires. The operation must not have contacted any provider.
type PreconditionError struct {
	Participant string
	Phase       Phase
	Fields      []string
	Details     string
}

func (e *PreconditionError) Error() string {
	id := e.Participant
	if id == "" {
		id = "(unknown)"
	}
	return fmt.Sprintf("participant %s is missing required fields for %s: %s",
		id, e.Phase, strings.Join(e.Fields, ", "))
}

// Has reports whether field (a REDCap name) is among the missing fields.
func (e *PreconditionError) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}
