// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

// Package validation provides struct validation using go-playground/validator v10.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Error translation to human-readable messages
//   - APIError conversion matching the HTTP layer's error format
//   - Partial validation so one record type can serve several operations,
//     each with its own list of required fields
//
// # Field Names
//
// Participant records carry a `redcap` struct tag naming the REDCap field.
// The validator reports that name, so a PreconditionError built from a
// RequestValidationError lists fields exactly as they appear in the study
// database.
//
// # Custom Validators
//
//   - ashid: participant identifier of the form ASH followed by three digits
//
// # Thread Safety
//
// GetValidator, ValidateStruct and ValidatePartial are safe for concurrent use.
package validation
