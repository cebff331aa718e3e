// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

// Package logging provides centralized zerolog-based structured logging.
//
// # Overview
//
// The package provides:
//   - A global zerolog logger configured once from main via Init
//   - JSON output for production, console output for development
//   - Context-aware logging that carries correlation ID, participant and job key
//   - An slog adapter so the suture supervisor logs through zerolog
//   - Masking helpers for participant phone numbers, emails and API tokens
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	ctx = logging.ContextWithParticipant(ctx, "ASH001")
//	logging.Ctx(ctx).Info().Int("events", 42).Msg("Posted events")
//
// # Configuration
//
// The logging section of the application config maps onto Config. The
// environment variables LOG_LEVEL, LOG_FORMAT and LOG_CALLER override it.
//
// # Personal Data
//
// Never log a raw phone number or email address. Use MaskPhone and MaskEmail:
//
//	logging.Info().Str("phone", logging.MaskPhone(rec.Phone)).Msg("Contact updated")
package logging
