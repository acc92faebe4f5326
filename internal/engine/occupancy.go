package engine

import "github.com/jwalitptl/ward-api/pkg/daterange"

// DailyOccupancy counts, for every day of window, the stays covering it.
// Index i corresponds to window.Start + i.
func DailyOccupancy(window daterange.Range, stays []Stay) []int {
	n := window.Len()
	diff := make([]int, n+1)
	for _, s := range stays {
		part, ok := s.Range.Intersect(window)
		if !ok {
			continue
		}
		diff[int(part.Start-window.Start)]++
		diff[int(part.End-window.Start)+1]--
	}

	counts := make([]int, n)
	running := 0
	for i := 0; i < n; i++ {
		running += diff[i]
		counts[i] = running
	}
	return counts
}

// OccupiedOn counts the stays covering day.
func OccupiedOn(day daterange.Date, stays []Stay) int {
	count := 0
	for _, s := range stays {
		if s.Range.Contains(day) {
			count++
		}
	}
	return count
}

// LeavingOn counts the stays whose last day is day.
func LeavingOn(day daterange.Date, stays []Stay) int {
	count := 0
	for _, s := range stays {
		if s.Range.End == day {
			count++
		}
	}
	return count
}
