// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	participantKey   contextKey = "participant"
	jobKey           contextKey = "job"
	loggerKey        contextKey = "logger"
)

// GenerateCorrelationID creates a new correlation ID: the first 8 characters of a UUID.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID returns a new context carrying the given correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID returns a context with a freshly generated correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext retrieves the correlation ID, or "" when absent.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithParticipant tags the context with a participant identifier so
// every log line of an operation names the participant it concerns.
func ContextWithParticipant(ctx context.Context, participantID string) context.Context {
	return context.WithValue(ctx, participantKey, participantID)
}

// ParticipantFromContext retrieves the participant identifier, or "" when absent.
func ParticipantFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(participantKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithJob tags the context with the background job key ("generate ASH001").
func ContextWithJob(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, jobKey, key)
}

// JobFromContext retrieves the job key, or "" when absent.
func JobFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(jobKey).(string); ok {
		return key
	}
	return ""
}

// ContextWithLogger stores a logger in the context.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves a logger from context, falling back to the global logger.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return logger
	}
	return Logger()
}

// Ctx returns a logger with the context's correlation ID, participant and job
// key attached.
//
//	logging.Ctx(ctx).Info().Int("events", n).Msg("Posted events")
//	// {"level":"info","correlation_id":"abc12345","participant":"ASH001","events":12,...}
func Ctx(ctx context.Context) *zerolog.Logger {
	l := CtxWith(ctx).Logger()
	return &l
}

// CtxWith returns a logger context builder with the context values pre-populated.
func CtxWith(ctx context.Context) zerolog.Context {
	logger := LoggerFromContext(ctx)
	logCtx := logger.With()

	if id := CorrelationIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("correlation_id", id)
	}
	if id := ParticipantFromContext(ctx); id != "" {
		logCtx = logCtx.Str("participant", id)
	}
	if key := JobFromContext(ctx); key != "" {
		logCtx = logCtx.Str("job", key)
	}

	return logCtx
}

// WithComponent creates a child logger with a component field.
//
//	apptotoLogger := logging.WithComponent("apptoto")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
