// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package schedule

import (
	"fmt"
	"math/rand/v2"

	"cloud.google.com/go/civil"

	"github.com/UOSAN/message-automation/internal/models"
)

// MessageSource supplies intervention message text by sequential index.
type MessageSource interface {
	Get(i int) string
	Len() int
}

// Plan is the output of one schedule entry point.
type Plan struct {
	Phase    models.Phase
	Events   []models.ScheduledEvent
	Statuses []models.RoundStatus
}

// Diary round numbers.
const (
	RoundOne   = 1
	RoundTwo   = 2
	RoundThree = 3
	RoundFour  = 4
)

// DiaryRoundOne schedules the diary round that starts two days after session 0.
func (p Protocol) DiaryRoundOne(rec *models.ParticipantRecord) (Plan, error) {
	if err := rec.Require(models.PhaseDiaryOne); err != nil {
		return Plan{}, err
	}
	plan := Plan{Phase: models.PhaseDiaryOne}
	plan.Events = p.diaryRound(rec, RoundOne, rec.Session0Date.AddDays(diaryOneAfterS0))
	plan.Statuses = []models.RoundStatus{{Name: roundName(RoundOne)}}
	return plan, nil
}

// DiaryRoundThree schedules the diary round six weeks after session 1. The
// plan is empty, with a Missing status, when session 1 has no date yet.
func (p Protocol) DiaryRoundThree(rec *models.ParticipantRecord) (Plan, error) {
	return p.laterRound(rec, models.PhaseDiaryThree, RoundThree, rec.Session1Date, "session 1 date not recorded")
}

// DiaryRoundFour schedules the diary round six weeks after session 2.
func (p Protocol) DiaryRoundFour(rec *models.ParticipantRecord) (Plan, error) {
	return p.laterRound(rec, models.PhaseDiaryFour, RoundFour, rec.Session2Date, "session 2 date not recorded")
}

func (p Protocol) laterRound(rec *models.ParticipantRecord, phase models.Phase, round int, anchor *civil.Date, reason string) (Plan, error) {
	if err := rec.Require(phase); err != nil {
		return Plan{}, err
	}
	plan := Plan{Phase: phase}
	if anchor == nil {
		plan.Statuses = []models.RoundStatus{{Name: roundName(round), Missing: true, Reason: reason}}
		return plan, nil
	}
	plan.Events = p.diaryRound(rec, round, anchor.AddDays(diaryLaterAfterSess))
	plan.Statuses = []models.RoundStatus{{Name: roundName(round)}}
	return plan, nil
}

// Messages schedules the bulk of the protocol: reminders, cigarette-count
// prompts, boosters, diary round 2, and intervention SMS. Intervention
// message i uses pool.Get(i).
func (p Protocol) Messages(rec *models.ParticipantRecord, pool MessageSource, rng *rand.Rand) (Plan, error) {
	if err := rec.Require(models.PhaseGenerate); err != nil {
		return Plan{}, err
	}
	if need := p.RequiredMessages(); pool.Len() < need {
		return Plan{}, fmt.Errorf("message pool has %d messages, protocol needs %d", pool.Len(), need)
	}

	quit := *rec.QuitDate
	wake := *rec.WakeTime
	sleep := *rec.SleepTime

	events := make([]models.ScheduledEvent, 0, p.RequiredMessages()+p.TotalDays()+2*p.BoosterCycles+p.DiaryDays+2)
	events = append(events, p.reminders(quit, wake)...)

	for d := 0; d < p.TotalDays(); d++ {
		events = append(events, models.ScheduledEvent{
			At:      add(bedtime(quit.AddDays(d), wake, sleep), -cigsBeforeSleep),
			Title:   TitleCigs,
			Content: p.ContentPrefix + textCigs,
		})
	}

	boosterDay := make(map[int]bool, 2*p.BoosterCycles)
	for i, d := range p.boosterDays() {
		boosterDay[d] = true
		events = append(events, models.ScheduledEvent{
			At:      add(bedtime(quit.AddDays(d), wake, sleep), -boosterBeforeSleep),
			Title:   fmt.Sprintf(titleBooster, rec.Condition.Abbrev(), i+1),
			Content: p.ContentPrefix + textBooster,
		})
	}

	roundTwo := DiaryDates(quit.AddDays(diaryTwoAfterQuit), p.DiaryDays)
	diaryDay := make(map[civil.Date]bool, len(roundTwo))
	for _, d := range roundTwo {
		diaryDay[d] = true
	}
	events = append(events, p.diaryEvents(wake, sleep, RoundTwo, roundTwo)...)

	n := 0
	for d := 0; d < p.TotalDays(); d++ {
		date := quit.AddDays(d)

		start := at(date, wake)
		if d == 0 {
			start = add(start, quitDayStartDelay)
		}
		endOffset := smsEndDefault
		switch {
		case boosterDay[d]:
			endOffset = smsEndBoosterDay
		case diaryDay[date]:
			endOffset = smsEndDiaryDay
		}
		end := add(bedtime(date, wake, sleep), -endOffset)

		times, err := RandomTimes(rng, start, end, p.messagesOn(d), p.MinSpacing)
		if err != nil {
			return Plan{}, fmt.Errorf("intervention messages on %s: %w", date, err)
		}
		for _, t := range times {
			events = append(events, models.ScheduledEvent{
				At:      t,
				Title:   TitleSMS,
				Content: p.ContentPrefix + pool.Get(n),
			})
			n++
		}
	}

	models.SortEvents(events)
	return Plan{
		Phase:    models.PhaseGenerate,
		Events:   events,
		Statuses: []models.RoundStatus{{Name: roundName(RoundTwo)}},
	}, nil
}

func (p Protocol) reminders(quit civil.Date, wake civil.Time) []models.ScheduledEvent {
	quitAt := add(at(quit, wake), reminderAfterWake)
	return []models.ScheduledEvent{
		{At: add(at(quit.AddDays(-1), wake), reminderAfterWake), Title: TitleDayBefore, Content: p.ContentPrefix + textDayBefore},
		{At: quitAt, Title: TitleQuitDate, Content: p.ContentPrefix + textQuitDate},
	}
}

func (p Protocol) diaryRound(rec *models.ParticipantRecord, round int, start civil.Date) []models.ScheduledEvent {
	wake := civil.Time{}
	if rec.WakeTime != nil {
		wake = *rec.WakeTime
	}
	events := p.diaryEvents(wake, *rec.SleepTime, round, DiaryDates(start, p.DiaryDays))
	models.SortEvents(events)
	return events
}

// diaryEvents numbers diary prompts across rounds: round r, day i is
// #(r-1)*DiaryDays+i+1.
func (p Protocol) diaryEvents(wake, sleep civil.Time, round int, dates []civil.Date) []models.ScheduledEvent {
	events := make([]models.ScheduledEvent, 0, len(dates))
	for i, d := range dates {
		num := (round-1)*p.DiaryDays + i + 1
		events = append(events, models.ScheduledEvent{
			At:      add(bedtime(d, wake, sleep), -diaryBeforeSleep),
			Title:   fmt.Sprintf(titleDiary, num),
			Content: p.ContentPrefix + fmt.Sprintf(textDiary, num),
		})
	}
	return events
}

func roundName(round int) string {
	return fmt.Sprintf("daily diary round %d", round)
}
