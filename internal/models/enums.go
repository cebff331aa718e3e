// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package models

import (
	"fmt"
	"time"
)

// Condition is the participant's experimental arm.
type Condition int

const (
	// ConditionUnassigned means the session-1 record has not set a condition yet.
	ConditionUnassigned Condition = 0
	ConditionDownreg    Condition = 1
	ConditionHighLevel  Condition = 2
	ConditionValues     Condition = 3
)

// ParseCondition converts the REDCap condition code.
func ParseCondition(code int) (Condition, error) {
	c := Condition(code)
	if c < ConditionDownreg || c > ConditionValues {
		return ConditionUnassigned, fmt.Errorf("unknown condition code %d", code)
	}
	return c, nil
}

// String returns the condition name as used in the content catalog.
func (c Condition) String() string {
	switch c {
	case ConditionDownreg:
		return "DOWNREG"
	case ConditionHighLevel:
		return "HIGHLEVEL"
	case ConditionValues:
		return "VALUES"
	default:
		return "UNASSIGNED"
	}
}

// Abbrev returns the short label used in booster titles.
func (c Condition) Abbrev() string {
	switch c {
	case ConditionValues:
		return "Values"
	case ConditionHighLevel:
		return "HLC"
	case ConditionDownreg:
		return "CR"
	default:
		return ""
	}
}

// CodedValue is a personal value a participant ranked during session 0.
// Message content for the VALUES arm is filtered on these.
type CodedValue int

const (
	ValueHumor         CodedValue = 1
	ValueRelationships CodedValue = 2
	ValueCreativity    CodedValue = 3
	ValueAchievement   CodedValue = 4
	ValueReligious     CodedValue = 5
	ValuePhysical      CodedValue = 6
	ValueAthletic      CodedValue = 7
	ValueNone          CodedValue = 8
)

var codedValueNames = map[CodedValue]string{
	ValueHumor:         "humor",
	ValueRelationships: "relationships",
	ValueCreativity:    "creativity",
	ValueAchievement:   "achievement",
	ValueReligious:     "religious",
	ValuePhysical:      "physical",
	ValueAthletic:      "athletic",
	ValueNone:          "none",
}

// ParseCodedValue converts a REDCap value code.
func ParseCodedValue(code int) (CodedValue, error) {
	v := CodedValue(code)
	if _, ok := codedValueNames[v]; !ok {
		return 0, fmt.Errorf("unknown value code %d", code)
	}
	return v, nil
}

// String returns the tag name matched against the catalog's Value1 column.
func (v CodedValue) String() string {
	if name, ok := codedValueNames[v]; ok {
		return name
	}
	return fmt.Sprintf("value(%d)", int(v))
}

// TimeZoneCode is the REDCap time zone choice.
type TimeZoneCode int

const (
	TimeZoneUnset    TimeZoneCode = 0
	TimeZonePacific  TimeZoneCode = 1
	TimeZoneMountain TimeZoneCode = 2
	TimeZoneCentral  TimeZoneCode = 3
	TimeZoneEastern  TimeZoneCode = 4
	TimeZoneArizona  TimeZoneCode = 5
	TimeZoneAlaska   TimeZoneCode = 6
	TimeZoneHawaii   TimeZoneCode = 7
)

var timeZoneNames = map[TimeZoneCode]string{
	TimeZonePacific:  "America/Los_Angeles",
	TimeZoneMountain: "America/Denver",
	TimeZoneCentral:  "America/Chicago",
	TimeZoneEastern:  "America/New_York",
	TimeZoneArizona:  "America/Phoenix",
	TimeZoneAlaska:   "America/Anchorage",
	TimeZoneHawaii:   "Pacific/Honolulu",
}

// ParseTimeZoneCode converts a REDCap time zone code.
func ParseTimeZoneCode(code int) (TimeZoneCode, error) {
	tz := TimeZoneCode(code)
	if _, ok := timeZoneNames[tz]; !ok {
		return TimeZoneUnset, fmt.Errorf("unknown time zone code %d", code)
	}
	return tz, nil
}

// IANA returns the IANA zone name, or "" for an unset or unknown code.
func (tz TimeZoneCode) IANA() string {
	return timeZoneNames[tz]
}

// Location loads the zone for the code. An unset code resolves to fallback.
func (tz TimeZoneCode) Location(fallback *time.Location) (*time.Location, error) {
	if tz == TimeZoneUnset {
		if fallback == nil {
			return nil, fmt.Errorf("time zone unset and no study default configured")
		}
		return fallback, nil
	}
	name, ok := timeZoneNames[tz]
	if !ok {
		return nil, fmt.Errorf("unknown time zone code %d", int(tz))
	}
	return time.LoadLocation(name)
}
