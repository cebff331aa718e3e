// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package content

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strconv"

	"github.com/UOSAN/message-automation/internal/models"
)

const (
	taskSessions = 2
	taskRuns     = 4
)

// TaskITI is the inter-trial interval, in seconds, paired with each task message.
var TaskITI = []float64{
	0.0, 1.2, 1.9, 1.8, 2.2, 1.2, 2.8, 1.1, 2.1, 2.0,
	1.7, 1.1, 1.3, 5.3, 1.0, 1.2, 1.5, 3.4, 2.1, 1.0,
}

// TaskMessageCount is the number of messages in one task run.
var TaskMessageCount = len(TaskITI)

// TaskFileName returns the scanner-task file name for one session and run.
func TaskFileName(participantID string, session, run int) string {
	return fmt.Sprintf("VAFF_%s_Session%d_Run%d.csv", participantID, session, run)
}

// GenerateTaskFiles writes one task file per session (1-2) and run (1-4).
// Each file is a fresh VALUES-condition draw filtered by the task values,
// written with the columns message,iti. It returns the paths written.
func GenerateTaskFiles(rng *rand.Rand, catalog *Pool, participantID string, values []models.CodedValue, dir string) ([]string, error) {
	iti := make([]string, len(TaskITI))
	for i, v := range TaskITI {
		iti[i] = strconv.FormatFloat(v, 'f', 1, 64)
	}

	paths := make([]string, 0, taskSessions*taskRuns)
	for session := 1; session <= taskSessions; session++ {
		for run := 1; run <= taskRuns; run++ {
			pool, err := catalog.FilterByCondition(rng, models.ConditionValues, values, TaskMessageCount)
			if err != nil {
				return paths, err
			}
			if err := pool.AddColumn("iti", iti); err != nil {
				return paths, err
			}

			path := filepath.Join(dir, TaskFileName(participantID, session, run))
			if err := pool.Write(path, []string{ColumnMessage, "iti"}, []string{"message", "iti"}); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}
