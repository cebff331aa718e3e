// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package models

import (
	"cloud.google.com/go/civil"

	"github.com/UOSAN/message-automation/internal/validation"
)

// ParticipantRecord is one participant's study record. Optional values are
// pointers or zero values; nothing is defaulted when REDCap leaves a field blank.
type ParticipantRecord struct {
	ID       string       `json:"id" redcap:"ash_id" validate:"required,ashid"`
	Phone    string       `json:"phone" redcap:"phone" validate:"required"`
	Email    string       `json:"email" redcap:"email" validate:"required,email"`
	Initials string       `json:"initials" redcap:"initials" validate:"required"`
	TimeZone TimeZoneCode `json:"timezone" redcap:"timezone"`

	WakeTime  *civil.Time `json:"wake_time,omitempty" redcap:"waketime" validate:"required"`
	SleepTime *civil.Time `json:"sleep_time,omitempty" redcap:"sleeptime" validate:"required"`

	QuitDate     *civil.Date `json:"quit_date,omitempty" redcap:"quitdate" validate:"required"`
	Session0Date *civil.Date `json:"session0_date,omitempty" redcap:"date_s0" validate:"required"`
	Session1Date *civil.Date `json:"session1_date,omitempty" redcap:"date_s1" validate:"required"`
	Session2Date *civil.Date `json:"session2_date,omitempty" redcap:"date_s2" validate:"required"`

	Condition Condition `json:"condition" redcap:"condition" validate:"required,gte=1,lte=3"`

	// MessageValues filter intervention content (value1_s0, value2_s0).
	MessageValues []CodedValue `json:"message_values,omitempty" redcap:"value1_s0" validate:"min=2,dive,gte=1,lte=8"`

	// TaskValues filter task-file content (value1_s0, value7_s0).
	TaskValues []CodedValue `json:"task_values,omitempty" redcap:"value7_s0" validate:"len=2,dive,gte=1,lte=8"`
}

// Phase names an externally triggered operation with its own required fields.
type Phase string

const (
	PhaseDiaryOne   Phase = "daily diary one"
	PhaseGenerate   Phase = "generate messages"
	PhaseDiaryThree Phase = "daily diary three"
	PhaseDiaryFour  Phase = "daily diary four"
	PhaseTaskFiles  Phase = "task files"
	PhaseContact    Phase = "update contact"
	PhaseEvents     Phase = "update events"
	PhaseDelete     Phase = "delete messages"
	PhaseResponses  Phase = "count responses"
)

// phaseFields lists the Go field names each phase requires.
// Session 1 and 2 dates are absent from the diary-three and diary-four lists:
// a missing anchor is reported as a status, not an error.
var phaseFields = map[Phase][]string{
	PhaseDiaryOne:   {"ID", "Initials", "Phone", "Email", "SleepTime", "Session0Date"},
	PhaseGenerate:   {"ID", "MessageValues", "Initials", "Phone", "SleepTime", "WakeTime", "Email", "QuitDate", "Condition"},
	PhaseDiaryThree: {"ID", "Initials", "Phone", "Email", "SleepTime"},
	PhaseDiaryFour:  {"ID", "Initials", "Phone", "Email", "SleepTime"},
	PhaseTaskFiles:  {"ID", "TaskValues"},
	PhaseContact:    {"ID", "Initials", "Phone", "Email"},
	PhaseEvents:     {"ID", "Initials", "Phone", "Email"},
	PhaseDelete:     {"ID"},
	PhaseResponses:  {"ID"},
}

// RequiredFields returns the Go field names a phase validates.
func RequiredFields(p Phase) []string {
	return append([]string(nil), phaseFields[p]...)
}

// Require checks the fields the phase needs. It returns *PreconditionError
// naming each failing field by its REDCap name.
func (r *ParticipantRecord) Require(p Phase) error {
	fields, ok := phaseFields[p]
	if !ok {
		return &PreconditionError{Participant: r.ID, Phase: p, Fields: []string{"unknown phase"}}
	}
	if verr := validation.ValidatePartial(r, fields...); verr != nil {
		return &PreconditionError{
			Participant: r.ID,
			Phase:       p,
			Fields:      verr.Fields(),
			Details:     verr.Error(),
		}
	}
	return nil
}

// ContactName is the participant name sent to the messaging provider.
func (r *ParticipantRecord) ContactName() string {
	return r.Initials
}
