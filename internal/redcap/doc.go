// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

/*
Package redcap reads participant records from the REDCap API.

A participant's data is spread over three longitudinal events:

  - session_0_arm_1: contact details, value tags, quit date, wake and sleep times
  - session_1_arm_1: assigned condition and session 1 date
  - session_2_arm_1: session 2 date

GetParticipant exports each event with a form-encoded record request,
picks the row whose ash_id matches, and converts the string values into a
models.ParticipantRecord. A participant without a session 0 row is a
*NotFoundError. Blank fields stay unset; fields that do not parse are a
*FieldError naming the REDCap field.
*/
package redcap
