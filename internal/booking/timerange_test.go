// File: internal/booking/timerange_test.go
package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRange(t *testing.T) {
	t.Run("parses and round-trips", func(t *testing.T) {
		r, err := ParseTimeRange("08:00-11:00")
		require.NoError(t, err)
		assert.Equal(t, 8*60, r.Start)
		assert.Equal(t, 11*60, r.End)
		assert.Equal(t, "08:00-11:00", r.String())
	})

	t.Run("tolerates surrounding whitespace", func(t *testing.T) {
		r, err := ParseTimeRange("  07:30-09:15 ")
		require.NoError(t, err)
		assert.Equal(t, 7*60+30, r.Start)
		assert.Equal(t, 9*60+15, r.End)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, input := range []string{"abc", "25:00-26:00", "08:00", "08:61-09:00", ""} {
			_, err := ParseTimeRange(input)
			assert.ErrorIs(t, err, ErrInvalidTimeRange, "input %q", input)
		}
	})

	t.Run("rejects an inverted range", func(t *testing.T) {
		_, err := ParseTimeRange("11:00-08:00")
		assert.ErrorIs(t, err, ErrInvalidTimeRange)
	})
}

func TestTimeRangeContains(t *testing.T) {
	r, err := ParseTimeRange("08:00-11:00")
	require.NoError(t, err)

	assert.True(t, r.Contains(8*60), "start bound is inclusive")
	assert.True(t, r.Contains(11*60), "end bound is inclusive")
	assert.True(t, r.Contains(9*60+30))
	assert.False(t, r.Contains(7*60+59))
	assert.False(t, r.Contains(11*60+1))
}

func TestParseSlotLabel(t *testing.T) {
	cases := []struct {
		label string
		want  int
	}{
		{"7:30 AM", 7*60 + 30},
		{"07:30 AM", 7*60 + 30},
		{"12:10 PM", 12*60 + 10},
		{"12:10 AM", 10},
		{"1:05PM", 13*60 + 5},
		{"9:30am", 9*60 + 30},
		{"14:45", 14*60 + 45},
		{"  8:10 AM ", 8*60 + 10},
	}
	for _, tc := range cases {
		got, err := ParseSlotLabel(tc.label)
		require.NoError(t, err, "label %q", tc.label)
		assert.Equal(t, tc.want, got, "label %q", tc.label)
	}

	for _, bad := range []string{"", "noon", "99:99", "$42.00"} {
		_, err := ParseSlotLabel(bad)
		assert.Error(t, err, "label %q", bad)
	}
}
