// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func completeRecord() ParticipantRecord {
	wake := civil.Time{Hour: 7}
	sleep := civil.Time{Hour: 22}
	quit := civil.Date{Year: 2024, Month: time.June, Day: 10}
	s0 := civil.Date{Year: 2024, Month: time.May, Day: 27}
	s1 := civil.Date{Year: 2024, Month: time.June, Day: 3}
	s2 := civil.Date{Year: 2024, Month: time.August, Day: 5}
	return ParticipantRecord{
		ID:            "ASH001",
		Phone:         "5415550100",
		Email:         "p1@example.com",
		Initials:      "AB",
		TimeZone:      TimeZonePacific,
		WakeTime:      &wake,
		SleepTime:     &sleep,
		QuitDate:      &quit,
		Session0Date:  &s0,
		Session1Date:  &s1,
		Session2Date:  &s2,
		Condition:     ConditionValues,
		MessageValues: []CodedValue{ValueHumor, ValueAthletic},
		TaskValues:    []CodedValue{ValueHumor, ValueAthletic},
	}
}

func TestRequire_CompleteRecordPassesEveryPhase(t *testing.T) {
	rec := completeRecord()
	for phase := range phaseFields {
		if err := rec.Require(phase); err != nil {
			t.Errorf("Require(%s) = %v, want nil", phase, err)
		}
	}
}

func TestRequire_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		phase  Phase
		mutate func(*ParticipantRecord)
		want   []string
	}{
		{
			name:   "generate without sleep time",
			phase:  PhaseGenerate,
			mutate: func(r *ParticipantRecord) { r.SleepTime = nil },
			want:   []string{"sleeptime"},
		},
		{
			name:  "generate without condition or values",
			phase: PhaseGenerate,
			mutate: func(r *ParticipantRecord) {
				r.Condition = ConditionUnassigned
				r.MessageValues = []CodedValue{ValueHumor}
			},
			want: []string{"value1_s0", "condition"},
		},
		{
			name:   "diary one without session 0 date",
			phase:  PhaseDiaryOne,
			mutate: func(r *ParticipantRecord) { r.Session0Date = nil },
			want:   []string{"date_s0"},
		},
		{
			name:  "diary one without wake time or quit date",
			phase: PhaseDiaryOne,
			mutate: func(r *ParticipantRecord) {
				r.WakeTime = nil
				r.QuitDate = nil
			},
			want: nil,
		},
		{
			name:   "diary three ignores missing session 1",
			phase:  PhaseDiaryThree,
			mutate: func(r *ParticipantRecord) { r.Session1Date = nil },
			want:   nil,
		},
		{
			name:   "task files need two task values",
			phase:  PhaseTaskFiles,
			mutate: func(r *ParticipantRecord) { r.TaskValues = nil },
			want:   []string{"value7_s0"},
		},
		{
			name:   "contact needs a valid email",
			phase:  PhaseContact,
			mutate: func(r *ParticipantRecord) { r.Email = "nope" },
			want:   []string{"email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := completeRecord()
			tt.mutate(&rec)

			err := rec.Require(tt.phase)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Require() = %v, want nil", err)
				}
				return
			}

			var pe *PreconditionError
			if !errors.As(err, &pe) {
				t.Fatalf("Require() = %v, want *PreconditionError", err)
			}
			if len(pe.Fields) != len(tt.want) {
				t.Fatalf("Fields = %v, want %v", pe.Fields, tt.want)
			}
			for _, f := range tt.want {
				if !pe.Has(f) {
					t.Errorf("Fields = %v, missing %q", pe.Fields, f)
				}
				if !strings.Contains(pe.Error(), f) {
					t.Errorf("Error() = %q, should mention %q", pe.Error(), f)
				}
			}
		})
	}
}

func TestConditionLabels(t *testing.T) {
	tests := []struct {
		c      Condition
		name   string
		abbrev string
	}{
		{ConditionValues, "VALUES", "Values"},
		{ConditionHighLevel, "HIGHLEVEL", "HLC"},
		{ConditionDownreg, "DOWNREG", "CR"},
	}
	for _, tt := range tests {
		if tt.c.String() != tt.name || tt.c.Abbrev() != tt.abbrev {
			t.Errorf("%d: got %s/%s, want %s/%s", tt.c, tt.c.String(), tt.c.Abbrev(), tt.name, tt.abbrev)
		}
	}

	if _, err := ParseCondition(4); err == nil {
		t.Error("ParseCondition(4) should fail")
	}
}

func TestCodedValues(t *testing.T) {
	v, err := ParseCodedValue(7)
	if err != nil || v.String() != "athletic" {
		t.Errorf("ParseCodedValue(7) = %v, %v", v, err)
	}
	if _, err := ParseCodedValue(9); err == nil {
		t.Error("ParseCodedValue(9) should fail")
	}
}

func TestTimeZoneLocation(t *testing.T) {
	loc, err := TimeZoneArizona.Location(nil)
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if loc.String() != "America/Phoenix" {
		t.Errorf("Location() = %s", loc)
	}

	fallback := time.UTC
	loc, err = TimeZoneUnset.Location(fallback)
	if err != nil || loc != fallback {
		t.Errorf("unset code should resolve to fallback, got %v, %v", loc, err)
	}

	if _, err := TimeZoneUnset.Location(nil); err == nil {
		t.Error("unset code without fallback should fail")
	}
	if _, err := ParseTimeZoneCode(12); err == nil {
		t.Error("ParseTimeZoneCode(12) should fail")
	}
}

func TestSortEvents(t *testing.T) {
	d := civil.Date{Year: 2024, Month: time.June, Day: 10}
	events := []ScheduledEvent{
		{At: civil.DateTime{Date: d, Time: civil.Time{Hour: 21}}, Title: "ASH CIGS"},
		{At: civil.DateTime{Date: d, Time: civil.Time{Hour: 8}}, Title: "ASH SMS"},
		{At: civil.DateTime{Date: d, Time: civil.Time{Hour: 8}}, Title: "ASH CIGS"},
	}

	SortEvents(events)

	if events[0].Title != "ASH CIGS" || events[0].At.Time.Hour != 8 {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Title != "ASH SMS" {
		t.Errorf("events[1] = %+v", events[1])
	}
	if events[2].At.Time.Hour != 21 {
		t.Errorf("events[2] = %+v", events[2])
	}
}
