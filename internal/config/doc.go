// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

/*
Package config provides centralized configuration management.

# Configuration Sources

Configuration is layered with Koanf v2, later layers overriding earlier ones:

  - Built-in defaults (defaultConfig)
  - Optional YAML file: CONFIG_PATH, ./config.yaml, or /etc/ash-messages/config.yaml
  - Environment variables with explicit mappings (envMappings)

# Configuration Structure

  - ApptotoConfig: messaging provider credentials, calendar, rate limit, batch and page sizes
  - REDCapConfig: study record API URL and token
  - ProtocolConfig: schedule constants (28+28 days, 5 then 4 messages a day, 7 booster cycles)
  - ContentConfig: message catalog path, CSV download directory
  - IndexConfig: badger event-id index location
  - JobsConfig: background worker pool size
  - ServerConfig: HTTP listener and request rate limit
  - LoggingConfig: zerolog level and format

# Environment Variables

Credentials are normally supplied through the environment:

  - APPTOTO_USER, APPTOTO_API_TOKEN, APPTOTO_CALENDAR
  - REDCAP_API_TOKEN
  - MESSAGE_FILE, CSVPATH (or DOWNLOAD_DIR)
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Validation

Load validates struct-tag ranges with the shared validator first, then
cross-field rules (URLs, credentials, time zone, whether a day can hold the
configured number of spaced messages). Any failure is fatal at startup.
*/
package config
