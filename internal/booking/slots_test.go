// File: internal/booking/slots_test.go
package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRange(t *testing.T, s string) TimeRange {
	t.Helper()
	r, err := ParseTimeRange(s)
	require.NoError(t, err)
	return r
}

func slot(label string, minute int) Slot {
	return Slot{Label: label, Minute: minute}
}

func TestChooseSlot(t *testing.T) {
	window := mustRange(t, "08:00-11:00")

	t.Run("picks the middle of the eligible slots", func(t *testing.T) {
		slots := []Slot{
			slot("8:10 AM", 8*60+10),
			slot("9:00 AM", 9*60),
			slot("9:30 AM", 9*60+30),
			slot("10:45 AM", 10*60+45),
		}
		got, err := ChooseSlot(slots, window)
		require.NoError(t, err)
		assert.Equal(t, "9:30 AM", got.Label)
	})

	t.Run("sorts before picking", func(t *testing.T) {
		slots := []Slot{
			slot("10:45 AM", 10*60+45),
			slot("8:10 AM", 8*60+10),
			slot("9:30 AM", 9*60+30),
		}
		got, err := ChooseSlot(slots, window)
		require.NoError(t, err)
		assert.Equal(t, "9:30 AM", got.Label)
	})

	t.Run("excludes out-of-window slots", func(t *testing.T) {
		slots := []Slot{
			slot("7:45 AM", 7*60+45),
			slot("11:15 AM", 11*60+15),
		}
		_, err := ChooseSlot(slots, window)
		assert.ErrorIs(t, err, ErrNoSlotsAvailable)
	})

	t.Run("excludes disabled slots", func(t *testing.T) {
		disabled := slot("9:00 AM", 9*60)
		disabled.Disabled = true
		slots := []Slot{
			slot("8:10 AM", 8*60+10),
			disabled,
			slot("10:45 AM", 10*60+45),
		}
		got, err := ChooseSlot(slots, window)
		require.NoError(t, err)
		assert.Equal(t, "10:45 AM", got.Label, "middle of the two remaining slots")
	})

	t.Run("single eligible slot wins", func(t *testing.T) {
		got, err := ChooseSlot([]Slot{slot("9:00 AM", 9 * 60)}, window)
		require.NoError(t, err)
		assert.Equal(t, "9:00 AM", got.Label)
	})

	t.Run("window bounds are inclusive", func(t *testing.T) {
		slots := []Slot{
			slot("8:00 AM", 8*60),
			slot("11:00 AM", 11*60),
		}
		got, err := ChooseSlot(slots, window)
		require.NoError(t, err)
		assert.Equal(t, "11:00 AM", got.Label)
	})

	t.Run("empty sheet errors", func(t *testing.T) {
		_, err := ChooseSlot(nil, window)
		assert.ErrorIs(t, err, ErrNoSlotsAvailable)
	})
}
