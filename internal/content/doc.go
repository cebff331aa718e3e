// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

/*
Package content loads the intervention message catalog and draws the
per-participant message pool from it.

The catalog is a CSV file with at least the columns Message and ConditionNo.
VALUES-condition rows also carry Value1..ValueN tags naming the coded value
each message targets, and UO_ID identifies a message across exports.

Filtering:

	pool, err := content.Load(path)
	if err != nil {
	    return err
	}
	drawn, err := pool.FilterByCondition(rng, models.ConditionValues,
	    []models.CodedValue{models.ValueHumor, models.ValueAthletic}, 252)

FilterByCondition never mutates the receiver. The drawn pool is sampled
without replacement and, when the catalog has fewer matching rows than
required, repeated from the front until it reaches the required length.

Outputs:

  - Write/WriteTo: selected columns as CSV, for example the <id>.csv export
    with UO_ID,Message
  - GenerateTaskFiles: eight VAFF_<id>_Session<s>_Run<r>.csv files with a
    message column and the fixed inter-trial-interval column
*/
package content
