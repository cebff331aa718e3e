// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

// Package main runs the ASH message automation server.
//
// The server initializes components in this order:
//
//  1. Configuration: defaults, config file, then environment (Koanf v2)
//  2. Upstream clients: REDCap and Apptoto, each behind a circuit breaker
//  3. Event index: BadgerDB record of posted event ids (optional)
//  4. Job runner: bounded worker pool for the long-running operations
//  5. HTTP server: REST API, health checks and /metrics
//
// Everything long-lived runs under a suture supervisor tree. SIGINT and
// SIGTERM cancel the tree; in-flight requests get the server timeout to
// finish and queued jobs are cancelled.
//
// Example:
//
//	export APPTOTO_USER=study APPTOTO_API_TOKEN=... REDCAP_API_TOKEN=...
//	export CSVPATH=/home/csvfiles
//	./ash-messages
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // participant zones must resolve on minimal images

	"github.com/UOSAN/message-automation/internal/api"
	"github.com/UOSAN/message-automation/internal/apptoto"
	"github.com/UOSAN/message-automation/internal/config"
	"github.com/UOSAN/message-automation/internal/eventindex"
	"github.com/UOSAN/message-automation/internal/jobs"
	"github.com/UOSAN/message-automation/internal/logging"
	"github.com/UOSAN/message-automation/internal/redcap"
	"github.com/UOSAN/message-automation/internal/study"
	"github.com/UOSAN/message-automation/internal/supervisor"
	"github.com/UOSAN/message-automation/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("apptoto_url", cfg.Apptoto.URL).
		Str("apptoto_user", cfg.Apptoto.User).
		Str("apptoto_token", logging.MaskToken(cfg.Apptoto.APIToken)).
		Str("calendar", cfg.Apptoto.Calendar).
		Str("redcap_url", cfg.REDCap.URL).
		Str("redcap_token", logging.MaskToken(cfg.REDCap.Token)).
		Str("time_zone", cfg.Protocol.TimeZone).
		Str("download_dir", cfg.Content.DownloadDir).
		Bool("event_index", cfg.Index.Enabled).
		Msg("Configuration loaded")

	watchLogLevel()

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped")
	}
	logging.Info().Msg("Server stopped")
}

// watchLogLevel applies log level changes from the config file without a
// restart. Other settings need one.
func watchLogLevel() {
	path := config.ConfigFilePath()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.LoadWithKoanf()
		if err != nil {
			logging.Warn().Err(err).Msg("Ignoring invalid configuration change")
			return
		}
		logging.SetLevelString(cfg.Logging.Level)
		logging.Info().Str("level", cfg.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}

func run(cfg *config.Config) error {
	records := redcap.NewClient(&cfg.REDCap)
	provider := apptoto.NewClient(&cfg.Apptoto, apptoto.NewLimiter(cfg.Apptoto.RequestInterval))

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	var opts []study.Option
	if cfg.Index.Enabled {
		index, err := eventindex.Open(&cfg.Index)
		if err != nil {
			return fmt.Errorf("open event index: %w", err)
		}
		defer func() {
			if err := index.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event index")
			}
		}()
		opts = append(opts, study.WithIndex(index))
		tree.AddDataService(index)
	}

	svc, err := study.NewService(cfg, records, provider, opts...)
	if err != nil {
		return err
	}

	runner := jobs.NewRunner(jobs.Config{Workers: cfg.Jobs.Workers, QueueSize: cfg.Jobs.QueueSize})
	tree.AddJobService(runner)

	handler := api.NewHandler(svc, runner, records.Breaker(), provider.Breaker())
	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSMaxAge:         300,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
		RateLimitDisabled:  cfg.Server.RateLimitReqs <= 0,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, mw).WithDownloads(cfg.Content.DownloadDir).SetupChi(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	err = tree.Serve(ctx)

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, s := range report {
			logging.Warn().Str("service", s.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
