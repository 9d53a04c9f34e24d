// File: internal/booking/slots.go
package booking

import (
	"errors"
	"sort"

	"github.com/fairwaylabs/teesnipe/internal/browser"
)

// ErrNoSlotsAvailable indicates that no enabled tee time fell inside the
// preferred window.
var ErrNoSlotsAvailable = errors.New("no bookable time slots in the preferred range")

// Slot is a tee time scraped from the sheet.
type Slot struct {
	Label    string
	Minute   int
	Disabled bool
	Element  browser.Element
}

// ChooseSlot picks the tee time to book: enabled slots inside the window,
// sorted ascending, middle one wins. The middle slot is deliberate. The
// earliest in-range time is the one everyone else races for, so the middle
// of the window trades a few minutes of tee time for much better odds.
func ChooseSlot(slots []Slot, window TimeRange) (Slot, error) {
	eligible := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Disabled || !window.Contains(s.Minute) {
			continue
		}
		eligible = append(eligible, s)
	}
	if len(eligible) == 0 {
		return Slot{}, ErrNoSlotsAvailable
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Minute < eligible[j].Minute
	})
	return eligible[len(eligible)/2], nil
}
