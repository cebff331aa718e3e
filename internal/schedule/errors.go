// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package schedule

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// WindowError means a day window cannot hold Count messages spaced Gap apart.
type WindowError struct {
	Start civil.DateTime
	End   civil.DateTime
	Count int
	Gap   time.Duration
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window %s to %s is too small for %d messages spaced %s apart",
		e.Start, e.End, e.Count, e.Gap)
}
