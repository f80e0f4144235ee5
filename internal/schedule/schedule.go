// Package schedule translates the human cadence stored on an agent
// ("daily", "hourly", "weekly", "every N minutes" plus an HH:MM time) into a
// cron expression the host runtime and the preview can reason about.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var everyRe = regexp.MustCompile(`^every\s+(\d+)\s*min`)

// Spec returns the cron expression for a cadence and time of day.
// Weekly agents run on Mondays. Hourly agents use only the minute.
func Spec(cadence, at string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(cadence))
	if m := everyRe.FindStringSubmatch(c); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return "", fmt.Errorf("invalid interval %q", cadence)
		}
		return fmt.Sprintf("@every %dm", n), nil
	}

	hour, minute, err := parseClock(at)
	if err != nil {
		return "", err
	}
	switch c {
	case "daily", "":
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case "hourly":
		return fmt.Sprintf("%d * * * *", minute), nil
	case "weekly":
		return fmt.Sprintf("%d %d * * 1", minute, hour), nil
	}
	return "", fmt.Errorf("unsupported schedule %q", cadence)
}

// Next returns the first run after from.
func Next(cadence, at string, from time.Time) (time.Time, error) {
	spec, err := Spec(cadence, at)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron %q: %w", spec, err)
	}
	return sched.Next(from), nil
}

func parseClock(at string) (hour, minute int, err error) {
	if at == "" {
		return 9, 0, nil
	}
	t, err := time.Parse("15:04", at)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q", at)
	}
	return t.Hour(), t.Minute(), nil
}
