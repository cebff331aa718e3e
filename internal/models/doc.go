// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

/*
Package models defines the data structures shared across the study messaging service.

Key Components:

  - ParticipantRecord: typed study record assembled from the REDCap session events
  - Condition, CodedValue, TimeZoneCode: coded enumerations stored in REDCap
  - ScheduledEvent: a message request computed in participant-local civil time
  - PreconditionError: a participant record missing fields an operation needs

Required fields are checked per operation rather than per record. Each Phase
has an allow-list of fields, and ParticipantRecord.Require validates only
those, reporting missing fields by their REDCap names:

	if err := rec.Require(models.PhaseGenerate); err != nil {
	    var pe *models.PreconditionError
	    if errors.As(err, &pe) {
	        // pe.Fields == []string{"sleeptime"}
	    }
	}

Dates and times are civil values (cloud.google.com/go/civil). They are bound
to the participant's time zone only when an event is handed to the messaging
provider.
*/
package models
