// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package responses

import (
	"encoding/csv"
	"fmt"
	"io"
)

// csvHeader is the response export header.
var csvHeader = []string{"sent_at", "UO_ID", "message", "replied_at", "reply"}

// WriteCSV writes one row per response.
func WriteCSV(w io.Writer, rows []Response) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write response header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.SentAt, r.UOID, r.Message, r.RepliedAt, r.Reply}); err != nil {
			return fmt.Errorf("write response row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Count is the sent and replied tally for one class.
type Count struct {
	Sent    int     `json:"sent"`
	Replied int     `json:"replied"`
	Rate    float64 `json:"rate"`
}

func (c *Count) add(r Response) {
	c.Sent++
	if r.Replied() {
		c.Replied++
	}
}

func (c *Count) finish() {
	if c.Sent > 0 {
		c.Rate = float64(c.Replied) / float64(c.Sent)
	}
}

// Summary holds per-class and overall reply rates.
type Summary struct {
	Participant string          `json:"participant"`
	Classes     map[Class]Count `json:"classes"`
	Total       Count           `json:"total"`
}

// Summarize tallies rows by class.
func Summarize(participant string, rows []Response) Summary {
	s := Summary{Participant: participant, Classes: make(map[Class]Count, len(Classes))}
	for _, r := range rows {
		c := s.Classes[r.Class]
		c.add(r)
		s.Classes[r.Class] = c
		s.Total.add(r)
	}
	for class, c := range s.Classes {
		c.finish()
		s.Classes[class] = c
	}
	s.Total.finish()
	return s
}

// WriteSummary renders the plain-text summary report.
func WriteSummary(w io.Writer, s Summary) error {
	if _, err := fmt.Fprintf(w, "Responses for %s\n", s.Participant); err != nil {
		return err
	}
	for _, class := range Classes {
		c, ok := s.Classes[class]
		if !ok {
			continue
		}
		if err := writeLine(w, string(class), c); err != nil {
			return err
		}
	}
	return writeLine(w, "Total", s.Total)
}

func writeLine(w io.Writer, label string, c Count) error {
	_, err := fmt.Fprintf(w, "%s: %d sent, %d replied (%.1f%%)\n", label, c.Sent, c.Replied, c.Rate*100)
	return err
}
