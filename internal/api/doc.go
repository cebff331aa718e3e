// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

/*
Package api is the HTTP surface for study staff.

Long operations (diary rounds, message generation, task files, contact and
event reconciliation, deletion) are submitted to the background job runner
and return 202 with the job. The progress endpoint lists every job and
forgets finished ones once reported. Response counting and download-folder
cleanup run inline. Every file the service writes (drawn messages, task
files, response reports) can be fetched from the downloads folder.

Routes:

	GET    /api/v1/health/live
	GET    /api/v1/health/ready
	GET    /metrics
	POST   /api/v1/participants/{id}/diary/{round}   round 1, 3 or 4
	POST   /api/v1/participants/{id}/messages
	DELETE /api/v1/participants/{id}/messages
	POST   /api/v1/participants/{id}/task-files
	POST   /api/v1/participants/{id}/contact
	POST   /api/v1/participants/{id}/events
	GET    /api/v1/participants/{id}/responses
	GET    /api/v1/progress
	DELETE /api/v1/jobs?key=...
	POST   /api/v1/cleanup
	GET    /api/v1/downloads/...                      generated CSV files

All JSON responses use the envelope {status, data, metadata, error}.
*/
package api
