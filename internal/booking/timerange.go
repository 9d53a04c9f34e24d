// File: internal/booking/timerange.go
package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimeRange indicates a preferred-time-range string that does not
// parse as "HH:MM-HH:MM" with a start no later than its end.
var ErrInvalidTimeRange = errors.New("invalid time range")

// TimeRange is an inclusive window within a single day, held as minutes
// since midnight.
type TimeRange struct {
	Start int
	End   int
}

// ParseTimeRange parses "HH:MM-HH:MM".
func ParseTimeRange(s string) (TimeRange, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return TimeRange{}, fmt.Errorf("%w: %q is not HH:MM-HH:MM", ErrInvalidTimeRange, s)
	}
	startMin, err := parseClock(start)
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: start %q: %v", ErrInvalidTimeRange, start, err)
	}
	endMin, err := parseClock(end)
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: end %q: %v", ErrInvalidTimeRange, end, err)
	}
	if startMin > endMin {
		return TimeRange{}, fmt.Errorf("%w: start %q is after end %q", ErrInvalidTimeRange, start, end)
	}
	return TimeRange{Start: startMin, End: endMin}, nil
}

// Contains reports whether the minute-of-day falls inside the window,
// bounds included.
func (r TimeRange) Contains(minute int) bool {
	return minute >= r.Start && minute <= r.End
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", r.Start/60, r.Start%60, r.End/60, r.End%60)
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// slotLabelLayouts covers the label formats the tee sheet has been seen to
// render: 12-hour with meridiem and plain 24-hour.
var slotLabelLayouts = []string{"3:04 PM", "3:04PM", "15:04"}

// ParseSlotLabel parses a tee-time label into minutes since midnight.
func ParseSlotLabel(label string) (int, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(label))
	for _, layout := range slotLabelLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized slot label %q", label)
}
