// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ash-messages/config.yaml",
	"/etc/ash-messages/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. They are overridden by the
// config file and then by environment variables.
func defaultConfig() *Config {
	return &Config{
		Apptoto: ApptotoConfig{
			URL:             "https://api.apptoto.com/v1",
			Calendar:        "ASH",
			Timeout:         240 * time.Second,
			RequestInterval: 600 * time.Millisecond,
			BatchSize:       25,
			PageSize:        100,
			MaxEvents:       5000,
			MaxAttempts:     5,
		},
		REDCap: REDCapConfig{
			URL:     "https://redcap.uoregon.edu/api/",
			Timeout: 15 * time.Second,
		},
		Protocol: ProtocolConfig{
			Days1:           28,
			Days2:           28,
			MessagesPerDay1: 5,
			MessagesPerDay2: 4,
			BoosterCycles:   7,
			MinSpacing:      time.Hour,
			DiaryDays:       4,
			ContentPrefix:   "UO: ",
			TimeZone:        "America/Los_Angeles",
			GuardDuplicates: false,
		},
		Content: ContentConfig{
			MessageFile: "instance/messages.csv",
			DownloadDir: "/home/csvfiles",
		},
		Index: IndexConfig{
			Enabled:  true,
			Path:     "/data/eventindex",
			InMemory: false,
		},
		Jobs: JobsConfig{
			Workers:   2,
			QueueSize: 32,
		},
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns a copy of the built-in defaults.
func Default() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// APPTOTO_API_TOKEN -> apptoto.api_token
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// ConfigFilePath returns the config file that Load would read, or "".
func ConfigFilePath() string {
	return findConfigFile()
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"apptoto_url":              "apptoto.url",
	"apptoto_user":             "apptoto.user",
	"apptoto_api_token":        "apptoto.api_token",
	"apptoto_calendar":         "apptoto.calendar",
	"apptoto_calendar_id":      "apptoto.calendar_id",
	"apptoto_timeout":          "apptoto.timeout",
	"apptoto_request_interval": "apptoto.request_interval",
	"apptoto_batch_size":       "apptoto.batch_size",
	"apptoto_page_size":        "apptoto.page_size",
	"apptoto_max_events":       "apptoto.max_events",
	"apptoto_max_attempts":     "apptoto.max_attempts",

	"redcap_url":       "redcap.url",
	"redcap_api_token": "redcap.token",
	"redcap_timeout":   "redcap.timeout",

	"protocol_days1":             "protocol.days1",
	"protocol_days2":             "protocol.days2",
	"protocol_messages_per_day1": "protocol.messages_per_day1",
	"protocol_messages_per_day2": "protocol.messages_per_day2",
	"protocol_booster_cycles":    "protocol.booster_cycles",
	"protocol_min_spacing":       "protocol.min_spacing",
	"protocol_diary_days":        "protocol.diary_days",
	"protocol_content_prefix":    "protocol.content_prefix",
	"study_time_zone":            "protocol.time_zone",
	"guard_duplicates":           "protocol.guard_duplicates",

	"message_file": "content.message_file",
	"csvpath":      "content.download_dir",
	"download_dir": "content.download_dir",

	"event_index_enabled":   "index.enabled",
	"event_index_path":      "index.path",
	"event_index_in_memory": "index.in_memory",

	"job_workers":    "jobs.workers",
	"job_queue_size": "jobs.queue_size",

	"http_port":           "server.port",
	"http_host":           "server.host",
	"http_timeout":        "server.timeout",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"cors_origins":        "server.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - APPTOTO_API_TOKEN -> apptoto.api_token
//   - REDCAP_API_TOKEN -> redcap.token
//   - CSVPATH -> content.download_dir
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls callback whenever the file at path changes.
// The caller protects any state the callback replaces.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
