// Package util provides utility functions for the application
package util

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// TimeRecheckInterval is the interval to recheck time while waiting for the start time
const TimeRecheckInterval = 10 * time.Minute

// Clock is a wall-clock time of day.
type Clock struct {
	Hour, Minute, Second int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// ParseClock parses HH:MM or HH:MM:SS.
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return Clock{}, fmt.Errorf("invalid time of day %q (want HH:MM or HH:MM:SS)", s)
}

// NextStart returns the next occurrence of c strictly after now, in now's
// location.
func NextStart(now time.Time, c Clock) time.Time {
	start := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, c.Second, 0, now.Location())
	if !now.Before(start) {
		start = start.AddDate(0, 0, 1)
	}
	return start
}

// SleepUntil blocks until target or until ctx is done, rechecking the clock
// every TimeRecheckInterval so that suspend or clock changes are noticed.
func SleepUntil(ctx context.Context, target time.Time) error {
	for {
		wait := time.Until(target)
		if wait <= 0 {
			return nil
		}

		// Sleep for the shorter of the wait time or the recheck interval
		sleepTime := wait
		if sleepTime > TimeRecheckInterval {
			sleepTime = TimeRecheckInterval
			log.Info().
				Dur("sleep_time", sleepTime).
				Dur("remaining_wait", wait).
				Str("start_time", target.Format(time.RFC3339)).
				Msg("Sleeping and will recheck time")
		}

		timer := time.NewTimer(sleepTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
