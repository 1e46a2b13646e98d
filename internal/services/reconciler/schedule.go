package reconciler

import (
	"fmt"
	"time"
)

// ParseDailyAt разбирает время в формате HH:MM.
func ParseDailyAt(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid daily time %q, want HH:MM: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextDailyRun ближайший момент HH:MM в loc строго после now.
func NextDailyRun(now time.Time, dailyAt string, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseDailyAt(dailyAt)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next, nil
}
