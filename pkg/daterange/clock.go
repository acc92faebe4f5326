package daterange

import "time"

// Clock tells the current calendar day in the deployment's reference zone.
type Clock interface {
	Today() Date
}

// SystemClock reads the wall clock.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() Date {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(time.Now(), loc)
}

// FixedClock always returns the same day. Useful for tests and replays.
type FixedClock Date

func (c FixedClock) Today() Date { return Date(c) }
