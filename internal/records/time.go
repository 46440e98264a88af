package records

import "time"

// Time is one row of the time dimension. All fields other than StartTime are
// derived from it; build values with NewTime.
type Time struct {
	StartTime time.Time
	Hour      int
	Day       int
	Week      int
	Month     int
	Year      int
	Weekday   int
}

// NewTime decomposes t in UTC. Week is the ISO-8601 week number and Weekday
// counts from Monday = 0 to Sunday = 6.
func NewTime(t time.Time) Time {
	t = t.UTC()
	_, week := t.ISOWeek()
	return Time{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   (int(t.Weekday()) + 6) % 7,
	}
}

// FromMillis converts a Unix timestamp in milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
