// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// downloadsPrefix is where the download folder is served.
const downloadsPrefix = "/api/v1/downloads/"

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	downloadDir   string
}

// NewRouter creates a router.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// WithDownloads serves dir read-only under /api/v1/downloads/, with a
// listing for the folder itself.
func (router *Router) WithDownloads(dir string) *Router {
	router.downloadDir = dir
	return router
}

// SetupChi configures all HTTP routes using Chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to ALL routes in order
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(PrometheusMetrics)

		r.Route("/participants/{id}", func(r chi.Router) {
			r.Post("/diary/{round}", router.handler.DiaryRound)
			r.Post("/messages", router.handler.GenerateMessages)
			r.Delete("/messages", router.handler.DeleteMessages)
			r.Post("/task-files", router.handler.TaskFiles)
			r.Post("/contact", router.handler.UpdateContact)
			r.Post("/events", router.handler.UpdateEvents)
			r.Get("/responses", router.handler.CountResponses)
		})

		r.Get("/progress", router.handler.Progress)
		r.Delete("/jobs", router.handler.CancelJob)
		r.Post("/cleanup", router.handler.Cleanup)

		if router.downloadDir != "" {
			files := http.StripPrefix(downloadsPrefix, http.FileServer(http.Dir(router.downloadDir)))
			r.Get("/downloads/*", files.ServeHTTP)
			r.Head("/downloads/*", files.ServeHTTP)
		}
	})

	return r
}
