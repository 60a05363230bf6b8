// Package dates centralizes target-date resolution and the timestamp
// formats shared across pipeline stages.
package dates

import (
	"fmt"
	"time"
)

const (
	DateFormat     = "2006-01-02"
	DateTimeFormat = "2006-01-02 15:04:05"
	FeedTimeFormat = "2006-01-02 15:04 MST"
)

// Load resolves a timezone name like "Europe/Amsterdam".
func Load(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}

// TargetDate resolves the day the pipeline should cover. An empty override
// means yesterday in the given timezone; otherwise the override must be a
// YYYY-MM-DD date, interpreted in that timezone.
func TargetDate(override string, loc *time.Location) (time.Time, error) {
	if override == "" {
		now := time.Now().In(loc)
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		return midnight.AddDate(0, 0, -1), nil
	}

	parsed, err := time.ParseInLocation(DateFormat, override, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format, expected YYYY-MM-DD, got %q", override)
	}
	return parsed, nil
}

// Range returns the half-open [start, end) interval covering the target day.
func Range(target time.Time) (start, end time.Time) {
	return target, target.AddDate(0, 0, 1)
}

// DateStr formats the target day for file names and titles.
func DateStr(target time.Time) string {
	return target.Format(DateFormat)
}
