// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package api

import (
	"errors"
	"net/http"

	"github.com/UOSAN/message-automation/internal/apptoto"
	"github.com/UOSAN/message-automation/internal/breaker"
	"github.com/UOSAN/message-automation/internal/content"
	"github.com/UOSAN/message-automation/internal/jobs"
	"github.com/UOSAN/message-automation/internal/models"
	"github.com/UOSAN/message-automation/internal/reconcile"
	"github.com/UOSAN/message-automation/internal/redcap"
	"github.com/UOSAN/message-automation/internal/study"
)

// errorStatus maps an operation error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	var (
		precondition *models.PreconditionError
		notFound     *redcap.NotFoundError
		fieldErr     *redcap.FieldError
		recordErr    *redcap.StatusError
		providerErr  *apptoto.ProviderError
		loadErr      *content.ContentLoadError
		emptyPool    *content.EmptyPoolError
	)

	switch {
	case errors.Is(err, study.ErrInvalidParticipantID):
		return http.StatusBadRequest, "INVALID_PARTICIPANT_ID"
	case errors.As(err, &precondition):
		return http.StatusUnprocessableEntity, "MISSING_FIELDS"
	case errors.As(err, &fieldErr):
		return http.StatusUnprocessableEntity, "INVALID_FIELD"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "PARTICIPANT_NOT_FOUND"
	case errors.Is(err, jobs.ErrJobRunning), errors.Is(err, study.ErrAlreadyPosted):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, jobs.ErrQueueFull), breaker.IsOpen(err):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	case reconcile.IsPartialFailure(err):
		return http.StatusBadGateway, "PARTIAL_FAILURE"
	case errors.As(err, &recordErr):
		return http.StatusBadGateway, "REDCAP_ERROR"
	case errors.As(err, &providerErr):
		return http.StatusBadGateway, "PROVIDER_ERROR"
	case errors.As(err, &loadErr), errors.As(err, &emptyPool):
		return http.StatusInternalServerError, "CONTENT_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
