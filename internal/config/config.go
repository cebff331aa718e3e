// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package config

import (
	"time"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for every optional setting
//  2. Config File: optional YAML file (config.yaml or CONFIG_PATH)
//  3. Environment Variables: explicit mappings such as APPTOTO_API_TOKEN
//
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Apptoto  ApptotoConfig  `koanf:"apptoto"`
	REDCap   REDCapConfig   `koanf:"redcap"`
	Protocol ProtocolConfig `koanf:"protocol"`
	Content  ContentConfig  `koanf:"content"`
	Index    IndexConfig    `koanf:"index"`
	Jobs     JobsConfig     `koanf:"jobs"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ApptotoConfig holds messaging provider settings.
//
// Environment Variables:
//   - APPTOTO_URL, APPTOTO_USER, APPTOTO_API_TOKEN
//   - APPTOTO_CALENDAR: calendar name new events are posted to
//   - APPTOTO_CALENDAR_ID: calendar id used to filter fetched events (0 = all)
type ApptotoConfig struct {
	URL        string `koanf:"url"`
	User       string `koanf:"user"`
	APIToken   string `koanf:"api_token"`
	Calendar   string `koanf:"calendar"`
	CalendarID int64  `koanf:"calendar_id"`

	// Timeout bounds every HTTP call.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RequestInterval is the account-wide minimum spacing between calls.
	// The provider allows about 100 requests per minute.
	RequestInterval time.Duration `koanf:"request_interval" validate:"gt=0"`

	BatchSize   int `koanf:"batch_size" validate:"gte=1,lte=100"`
	PageSize    int `koanf:"page_size" validate:"gte=1"`
	MaxEvents   int `koanf:"max_events" validate:"gte=1"`
	MaxAttempts int `koanf:"max_attempts" validate:"gte=1,lte=10"`
}

// REDCapConfig holds study record API settings.
type REDCapConfig struct {
	URL     string        `koanf:"url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// ProtocolConfig holds the study's schedule constants.
type ProtocolConfig struct {
	Days1           int           `koanf:"days1" validate:"gte=1"`
	Days2           int           `koanf:"days2" validate:"gte=0"`
	MessagesPerDay1 int           `koanf:"messages_per_day1" validate:"gte=1"`
	MessagesPerDay2 int           `koanf:"messages_per_day2" validate:"gte=1"`
	BoosterCycles   int           `koanf:"booster_cycles" validate:"gte=0"`
	MinSpacing      time.Duration `koanf:"min_spacing" validate:"gt=0"`
	DiaryDays       int           `koanf:"diary_days" validate:"gte=1,lte=7"`
	ContentPrefix   string        `koanf:"content_prefix"`

	// TimeZone is used for participants whose record has no time zone code.
	TimeZone string `koanf:"time_zone"`

	// GuardDuplicates refuses to post a phase already recorded in the event
	// index for the participant. Off by default: re-running a phase posts again.
	GuardDuplicates bool `koanf:"guard_duplicates"`
}

// ContentConfig locates the message catalog and generated files.
type ContentConfig struct {
	MessageFile string `koanf:"message_file"`
	DownloadDir string `koanf:"download_dir"`
}

// IndexConfig configures the local event-id index.
type IndexConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// JobsConfig configures the background job runner.
type JobsConfig struct {
	Workers   int `koanf:"workers" validate:"gte=1"`
	QueueSize int `koanf:"queue_size" validate:"gte=1"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins lists browser origins allowed to call the API. Empty
	// allows any origin.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Location loads the study default time zone.
func (p ProtocolConfig) Location() (*time.Location, error) {
	return time.LoadLocation(p.TimeZone)
}

// Load reads configuration from defaults, an optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
