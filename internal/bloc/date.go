package bloc

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar day without a time-of-day component. Dates cross every
// boundary of the engine as ISO-8601 strings (YYYY-MM-DD).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates a time.Time to its calendar day in the time's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO-8601 calendar date.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return Date{}, fmt.Errorf("bloc: invalid date %q: %w", value, err)
	}
	return DateOf(t), nil
}

// String renders the date as ISO-8601.
func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Weekday returns the day of week for the date.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return DateOf(d.Time().AddDate(0, 0, 1))
}

// Compare orders two dates: -1 when d precedes other, 0 on equality, 1 after.
func (d Date) Compare(other Date) int {
	switch {
	case d.Time().Before(other.Time()):
		return -1
	case d.Time().After(other.Time()):
		return 1
	default:
		return 0
	}
}

// MarshalJSON renders the date as an ISO-8601 string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parses an ISO-8601 string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	parsed, err := ParseDate(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive calendar interval.
type DateRange struct {
	Start Date
	End   Date
}

// IsValid reports whether the range runs forward (or covers a single day).
func (r DateRange) IsValid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.Start.Compare(r.End) <= 0
}

// Contains reports whether the day falls inside the inclusive range.
func (r DateRange) Contains(day Date) bool {
	return r.Start.Compare(day) <= 0 && r.End.Compare(day) >= 0
}

// Days enumerates every day in the range in ascending order.
func (r DateRange) Days() []Date {
	if !r.IsValid() {
		return nil
	}
	days := make([]Date, 0, 8)
	for day := r.Start; day.Compare(r.End) <= 0; day = day.Next() {
		days = append(days, day)
	}
	return days
}
