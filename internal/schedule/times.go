// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package schedule

import (
	"math/rand/v2"
	"slices"
	"time"

	"cloud.google.com/go/civil"
)

// maxWeekendShift bounds DiaryDates: any 1-day window reaches a weekend within 6 shifts.
const maxWeekendShift = 6

// RandomTimes draws n send times in [start, end) with consecutive times at
// least gap apart. Offsets are drawn at one-second resolution.
func RandomTimes(rng *rand.Rand, start, end civil.DateTime, n int, gap time.Duration) ([]civil.DateTime, error) {
	if n <= 0 {
		return nil, nil
	}

	span := sub(end, start)
	free := int64((span - time.Duration(n-1)*gap) / time.Second)
	if free <= 0 {
		return nil, &WindowError{Start: start, End: end, Count: n, Gap: gap}
	}

	offsets := make([]int64, n)
	for i := range offsets {
		offsets[i] = rng.Int64N(free)
	}
	slices.Sort(offsets)

	times := make([]civil.DateTime, n)
	for i, x := range offsets {
		times[i] = add(start, time.Duration(x)*time.Second+time.Duration(i)*gap)
	}
	return times, nil
}

// DiaryDates returns n consecutive dates beginning at start, shifted forward
// one day at a time until the window contains a Saturday or Sunday.
func DiaryDates(start civil.Date, n int) []civil.Date {
	if n <= 0 {
		return nil
	}
	for shift := 0; shift <= maxWeekendShift; shift++ {
		first := start.AddDays(shift)
		if hasWeekend(first, n) {
			return consecutive(first, n)
		}
	}
	return consecutive(start.AddDays(maxWeekendShift), n)
}

func hasWeekend(first civil.Date, n int) bool {
	for i := 0; i < n; i++ {
		switch first.AddDays(i).Weekday() {
		case time.Saturday, time.Sunday:
			return true
		}
	}
	return false
}

func consecutive(first civil.Date, n int) []civil.Date {
	dates := make([]civil.Date, n)
	for i := range dates {
		dates[i] = first.AddDays(i)
	}
	return dates
}

// at joins a date and a wall-clock time.
func at(d civil.Date, t civil.Time) civil.DateTime {
	return civil.DateTime{Date: d, Time: t}
}

// add shifts a civil date-time by a fixed duration of wall-clock time.
func add(dt civil.DateTime, d time.Duration) civil.DateTime {
	return civil.DateTimeOf(dt.In(time.UTC).Add(d))
}

// sub returns a - b in wall-clock time.
func sub(a, b civil.DateTime) time.Duration {
	return a.In(time.UTC).Sub(b.In(time.UTC))
}

// bedtime returns the sleep time that ends the waking day starting on d.
// A sleep time at or before the wake time belongs to the following date.
func bedtime(d civil.Date, wake, sleep civil.Time) civil.DateTime {
	if !wake.Before(sleep) {
		return at(d.AddDays(1), sleep)
	}
	return at(d, sleep)
}
