// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

/*
Package schedule computes the study's message events for one participant.

Everything here is pure: a participant record, a drawn message pool, the
protocol constants, and a seeded *rand.Rand go in, and a sorted list of
models.ScheduledEvent comes out. Times are civil (participant-local wall
clock); the caller binds them to the participant's zone when posting.

Phases produced by Messages:

  - Day-before and quit-date reminders at wake+3h
  - One cigarette-count prompt per protocol day at sleep-1h
  - Two boosters per 7-day cycle (days 1+7k and 4+7k) at sleep-3h
  - Daily diary round 2 (four weeks after the quit date) at sleep-2h
  - Intervention SMS, MessagesPerDay1 then MessagesPerDay2 per day

Diary rounds 1, 3 and 4 have their own entry points since they are posted at
different points in the study. Rounds 3 and 4 report a RoundStatus with
Missing set when their session anchor is not recorded yet.

Intervention send times use a compressed range: for N messages with minimum
gap g in a window of span S, N offsets are drawn from [0, S-(N-1)g), sorted,
and the i-th is shifted by i*g. Spacing and window bounds hold by
construction, so there is no rejection loop.
*/
package schedule
