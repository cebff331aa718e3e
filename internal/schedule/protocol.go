// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package schedule

import (
	"time"

	"github.com/UOSAN/message-automation/internal/config"
)

// Event titles.
const (
	TitleSMS       = "ASH SMS"
	TitleCigs      = "ASH CIGS"
	TitleQuitDate  = "UO: Quit Date"
	TitleDayBefore = "UO: Day Before"
	titleDiary     = "ASH Daily Diary #%d"
	titleBooster   = "%s Booster %d"
)

// Event bodies, without the content prefix.
const (
	textQuitDate  = "Quit Date"
	textDayBefore = "Day Before"
	textBooster   = "Booster session"
	textDiary     = "Daily Diary #%d"
	textCigs      = "Good evening! Please respond with the number of cigarettes you have smoked today. " +
		"If you have not smoked any cigarettes, please respond with a 0. Thank you!"
)

// Offsets from the participant's wake and sleep times.
const (
	reminderAfterWake   = 3 * time.Hour
	quitDayStartDelay   = 4 * time.Hour
	cigsBeforeSleep     = 1 * time.Hour
	diaryBeforeSleep    = 2 * time.Hour
	boosterBeforeSleep  = 3 * time.Hour
	smsEndDefault       = 2 * time.Hour
	smsEndDiaryDay      = 3 * time.Hour
	smsEndBoosterDay    = 4 * time.Hour
	diaryOneAfterS0     = 2
	diaryTwoAfterQuit   = 28
	diaryLaterAfterSess = 42
	boosterCycleDays    = 7
)

// Protocol holds the study's scheduling constants.
type Protocol struct {
	Days1           int
	Days2           int
	MessagesPerDay1 int
	MessagesPerDay2 int
	BoosterCycles   int
	MinSpacing      time.Duration
	DiaryDays       int
	ContentPrefix   string
}

// DefaultProtocol returns the ASH protocol.
func DefaultProtocol() Protocol {
	return Protocol{
		Days1:           28,
		Days2:           28,
		MessagesPerDay1: 5,
		MessagesPerDay2: 4,
		BoosterCycles:   7,
		MinSpacing:      time.Hour,
		DiaryDays:       4,
		ContentPrefix:   "UO: ",
	}
}

// FromConfig builds a Protocol from the protocol config section.
func FromConfig(cfg config.ProtocolConfig) Protocol {
	return Protocol{
		Days1:           cfg.Days1,
		Days2:           cfg.Days2,
		MessagesPerDay1: cfg.MessagesPerDay1,
		MessagesPerDay2: cfg.MessagesPerDay2,
		BoosterCycles:   cfg.BoosterCycles,
		MinSpacing:      cfg.MinSpacing,
		DiaryDays:       cfg.DiaryDays,
		ContentPrefix:   cfg.ContentPrefix,
	}
}

// TotalDays is the number of days with intervention messages.
func (p Protocol) TotalDays() int {
	return p.Days1 + p.Days2
}

// RequiredMessages is the message pool size one participant consumes.
func (p Protocol) RequiredMessages() int {
	return p.Days1*p.MessagesPerDay1 + p.Days2*p.MessagesPerDay2
}

// messagesOn returns the intervention message count for day d after the quit date.
func (p Protocol) messagesOn(d int) int {
	if d < p.Days1 {
		return p.MessagesPerDay1
	}
	return p.MessagesPerDay2
}

// boosterDays returns the day offsets from the quit date that carry a booster,
// in booster-number order.
func (p Protocol) boosterDays() []int {
	days := make([]int, 0, 2*p.BoosterCycles)
	for k := 0; k < p.BoosterCycles; k++ {
		days = append(days, 1+boosterCycleDays*k, 4+boosterCycleDays*k)
	}
	return days
}
