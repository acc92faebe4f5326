package daterange

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layout is the wire format of a Date.
const Layout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Date is a calendar day without time of day, stored as days since 1970-01-01.
type Date int32

// New returns the Date for the given calendar day.
func New(year int, month time.Month, day int) Date {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// FromTime returns the calendar day of t as observed in loc.
func FromTime(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	return New(t.Year(), t.Month(), t.Day())
}

// Parse reads a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return New(t.Year(), t.Month(), t.Day()), nil
}

// MustParse is Parse for literals; it panics on malformed input.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// In returns midnight of the day in loc.
func (d Date) In(loc *time.Location) time.Time {
	t := d.Time()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return d + Date(n)
}

func (d Date) Before(o Date) bool { return d < o }
func (d Date) After(o Date) bool  { return d > o }

func (d Date) String() string {
	return d.Time().Format(Layout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// Min returns the earlier of two dates.
func Min(a, b Date) Date {
	if a < b {
		return a
	}
	return b
}

// Max returns the later of two dates.
func Max(a, b Date) Date {
	if a > b {
		return a
	}
	return b
}
