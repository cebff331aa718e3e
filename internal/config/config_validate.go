// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/UOSAN/message-automation/internal/validation"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Range checks declared in struct tags.
	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("invalid configuration: %w", verr)
	}

	if err := c.validateApptoto(); err != nil {
		return err
	}

	if err := c.validateREDCap(); err != nil {
		return err
	}

	if err := c.validateProtocol(); err != nil {
		return err
	}

	if err := c.validateContent(); err != nil {
		return err
	}

	if err := c.validateIndex(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateApptoto requires credentials and a well-formed base URL.
func (c *Config) validateApptoto() error {
	if err := validateHTTPURL(c.Apptoto.URL, "APPTOTO_URL"); err != nil {
		return err
	}
	if c.Apptoto.User == "" {
		return fmt.Errorf("APPTOTO_USER is required")
	}
	if c.Apptoto.APIToken == "" {
		return fmt.Errorf("APPTOTO_API_TOKEN is required")
	}
	if c.Apptoto.Calendar == "" {
		return fmt.Errorf("APPTOTO_CALENDAR is required")
	}
	if c.Apptoto.CalendarID < 0 {
		return fmt.Errorf("APPTOTO_CALENDAR_ID must be 0 (all calendars) or a calendar id")
	}
	return nil
}

// validateREDCap requires the API URL and token.
func (c *Config) validateREDCap() error {
	if err := validateHTTPURL(c.REDCap.URL, "REDCAP_URL"); err != nil {
		return err
	}
	if c.REDCap.Token == "" {
		return fmt.Errorf("REDCAP_API_TOKEN is required")
	}
	return nil
}

// validateProtocol checks that the daily windows can hold their messages
// and the study time zone loads.
func (c *Config) validateProtocol() error {
	p := c.Protocol

	if _, err := time.LoadLocation(p.TimeZone); err != nil {
		return fmt.Errorf("STUDY_TIME_ZONE %q is not a valid IANA zone: %w", p.TimeZone, err)
	}

	// N messages need (N-1) gaps inside a day.
	for _, n := range []int{p.MessagesPerDay1, p.MessagesPerDay2} {
		if time.Duration(n-1)*p.MinSpacing >= 24*time.Hour {
			return fmt.Errorf("protocol: %d messages spaced %s apart cannot fit in one day", n, p.MinSpacing)
		}
	}

	if strings.TrimSpace(p.ContentPrefix) == "" {
		return fmt.Errorf("PROTOCOL_CONTENT_PREFIX must not be blank")
	}
	return nil
}

// validateContent requires a catalog path and download directory.
func (c *Config) validateContent() error {
	if c.Content.MessageFile == "" {
		return fmt.Errorf("MESSAGE_FILE is required")
	}
	if c.Content.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}
	return nil
}

// validateIndex requires a path unless the index is disabled or in memory.
func (c *Config) validateIndex() error {
	if c.Index.Enabled && !c.Index.InMemory && c.Index.Path == "" {
		return fmt.Errorf("EVENT_INDEX_PATH is required when the event index is enabled")
	}
	if c.Protocol.GuardDuplicates && !c.Index.Enabled {
		return fmt.Errorf("GUARD_DUPLICATES requires the event index to be enabled")
	}
	return nil
}

// validateServer validates server configuration.
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be non-negative")
	}
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	return nil
}

// validateLogging validates log level and format.
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console; got %q", c.Logging.Format)
	}
	return nil
}
