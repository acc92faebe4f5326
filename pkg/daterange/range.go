package daterange

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

// ErrInvalidRange is returned when a range starts after it ends.
var ErrInvalidRange = errors.New("start date is after end date")

// Range is an inclusive span of calendar days. A zero-length range does not
// exist: Start == End is a single day.
type Range struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewRange validates start <= end.
func NewRange(start, end Date) (Range, error) {
	if start > end {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}
	return Range{Start: start, End: end}, nil
}

// FromTimes builds a range from two instants, truncated to days in loc.
func FromTimes(start, end time.Time, loc *time.Location) (Range, error) {
	return NewRange(FromTime(start, loc), FromTime(end, loc))
}

// Overlaps reports whether a and b share at least one day.
func Overlaps(a, b Range) bool {
	return a.Start <= b.End && b.Start <= a.End
}

func (r Range) Overlaps(o Range) bool {
	return Overlaps(r, o)
}

func (r Range) Contains(d Date) bool {
	return r.Start <= d && d <= r.End
}

// Covers reports whether every day of o is inside r.
func (r Range) Covers(o Range) bool {
	return r.Start <= o.Start && o.End <= r.End
}

// Len is the number of days in the range.
func (r Range) Len() int {
	return int(r.End-r.Start) + 1
}

// Intersect returns the common days of r and o, if any.
func (r Range) Intersect(o Range) (Range, bool) {
	if !Overlaps(r, o) {
		return Range{}, false
	}
	return Range{Start: Max(r.Start, o.Start), End: Min(r.End, o.End)}, true
}

// Days yields each day of the range in ascending order.
func (r Range) Days() iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for d := r.Start; d <= r.End; d++ {
			if !yield(d) {
				return
			}
		}
	}
}

func (r Range) String() string {
	return r.Start.String() + ".." + r.End.String()
}
