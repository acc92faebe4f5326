package daterange

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	d, err := Parse("2025-01-03")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-03", d.String())
	assert.Equal(t, New(2025, time.January, 3), d)

	_, err = Parse("2025-13-01")
	assert.Error(t, err)
}

func TestDateBeforeEpoch(t *testing.T) {
	d := New(1969, time.December, 31)
	assert.Equal(t, "1969-12-31", d.String())
	assert.Equal(t, New(1970, time.January, 1), d.AddDays(1))
}

func TestFromTimeUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	// 22:00 UTC on Jan 1 is already Jan 2 at UTC+5.
	instant := time.Date(2025, time.January, 1, 22, 0, 0, 0, time.UTC)

	assert.Equal(t, MustParse("2025-01-01"), FromTime(instant, time.UTC))
	assert.Equal(t, MustParse("2025-01-02"), FromTime(instant, loc))
}

func TestNewRange(t *testing.T) {
	_, err := NewRange(MustParse("2025-01-05"), MustParse("2025-01-01"))
	assert.ErrorIs(t, err, ErrInvalidRange)

	single, err := NewRange(MustParse("2025-01-05"), MustParse("2025-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, single.Len())
}

func TestOverlaps(t *testing.T) {
	r := func(a, b string) Range { return Range{Start: MustParse(a), End: MustParse(b)} }

	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{"disjoint", r("2025-01-01", "2025-01-03"), r("2025-01-04", "2025-01-06"), false},
		{"touching end day", r("2025-01-01", "2025-01-03"), r("2025-01-03", "2025-01-06"), true},
		{"nested", r("2025-01-01", "2025-01-10"), r("2025-01-04", "2025-01-05"), true},
		{"single days equal", r("2025-01-02", "2025-01-02"), r("2025-01-02", "2025-01-02"), true},
		{"reverse disjoint", r("2025-02-01", "2025-02-03"), r("2025-01-01", "2025-01-31"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a))
		})
	}
}

func TestDaysIsLazyAndInclusive(t *testing.T) {
	r := Range{Start: MustParse("2025-01-30"), End: MustParse("2025-02-02")}

	var got []string
	for d := range r.Days() {
		got = append(got, d.String())
	}
	assert.Equal(t, []string{"2025-01-30", "2025-01-31", "2025-02-01", "2025-02-02"}, got)

	count := 0
	for range r.Days() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestIntersect(t *testing.T) {
	a := Range{Start: MustParse("2025-01-01"), End: MustParse("2025-01-05")}
	b := Range{Start: MustParse("2025-01-04"), End: MustParse("2025-01-09")}

	got, ok := a.Intersect(b)
	require.True(t, ok)
	assert.Equal(t, "2025-01-04..2025-01-05", got.String())

	_, ok = a.Intersect(Range{Start: MustParse("2025-02-01"), End: MustParse("2025-02-01")})
	assert.False(t, ok)
}

func TestDateJSON(t *testing.T) {
	payload := struct {
		Window Range `json:"window"`
	}{Window: Range{Start: MustParse("2025-01-01"), End: MustParse("2025-01-02")}}

	b, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"window":{"start":"2025-01-01","end":"2025-01-02"}}`, string(b))

	var decoded struct {
		Window Range `json:"window"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, payload.Window, decoded.Window)

	var bad Date
	assert.Error(t, json.Unmarshal([]byte(`20250101`), &bad))
}

func TestFixedClock(t *testing.T) {
	c := FixedClock(MustParse("2025-01-04"))
	assert.Equal(t, "2025-01-04", c.Today().String())
}
