// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package redcap

import (
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/UOSAN/message-automation/internal/models"
)

// parser converts REDCap strings and keeps the first conversion error.
type parser struct {
	participant string
	err         error
}

func (p *parser) fail(field, value string, err error) {
	if p.err == nil {
		p.err = &FieldError{Participant: p.participant, Field: field, Value: value, Err: err}
	}
}

func (p *parser) date(field, value string) *civil.Date {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	d, err := civil.ParseDate(value)
	if err != nil {
		p.fail(field, value, err)
		return nil
	}
	return &d
}

// clock accepts REDCap's HH:MM time fields and full HH:MM:SS values.
func (p *parser) clock(field, value string) *civil.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if t, err := time.Parse("15:04", value); err == nil {
		ct := civil.TimeOf(t)
		return &ct
	}
	ct, err := civil.ParseTime(value)
	if err != nil {
		p.fail(field, value, err)
		return nil
	}
	return &ct
}

func (p *parser) code(field, value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(field, value, err)
		return 0, false
	}
	return n, true
}

func (p *parser) condition(field, value string) models.Condition {
	n, ok := p.code(field, value)
	if !ok {
		return models.ConditionUnassigned
	}
	c, err := models.ParseCondition(n)
	if err != nil {
		p.fail(field, value, err)
	}
	return c
}

func (p *parser) timeZone(field, value string) models.TimeZoneCode {
	n, ok := p.code(field, value)
	if !ok {
		return models.TimeZoneUnset
	}
	tz, err := models.ParseTimeZoneCode(n)
	if err != nil {
		p.fail(field, value, err)
	}
	return tz
}

// values collects the coded values of the named fields, skipping blanks.
func (p *parser) values(r record, fields ...string) []models.CodedValue {
	var out []models.CodedValue
	for _, f := range fields {
		n, ok := p.code(f, r[f])
		if !ok {
			continue
		}
		v, err := models.ParseCodedValue(n)
		if err != nil {
			p.fail(f, r[f], err)
			continue
		}
		out = append(out, v)
	}
	return out
}
