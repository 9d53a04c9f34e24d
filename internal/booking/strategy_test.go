// File: internal/booking/strategy_test.go
package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/fairwaylabs/teesnipe/internal/config"
)

// mockFunnel records the booking flow calls a strategy makes.
type mockFunnel struct {
	mu    sync.Mutex
	calls []string

	dateErrs   []error // consumed per SelectDate call, then nil
	playersErr error
	slotErr    error
	confirmErr error
	slotLabel  string

	slotsAfterPolls int // HasSlots returns true from this poll on (1-based)
	polls           int
}

func (m *mockFunnel) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockFunnel) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockFunnel) SelectDate(ctx context.Context, target time.Time) error {
	m.record("SelectDate")
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.dateErrs) > 0 {
		err := m.dateErrs[0]
		m.dateErrs = m.dateErrs[1:]
		return err
	}
	return nil
}

func (m *mockFunnel) SelectPlayers(ctx context.Context, count int) error {
	m.record("SelectPlayers")
	return m.playersErr
}

func (m *mockFunnel) SelectTimeSlot(ctx context.Context, window TimeRange) (string, error) {
	m.record("SelectTimeSlot")
	if m.slotErr != nil {
		return "", m.slotErr
	}
	if m.slotLabel == "" {
		return "9:30 AM", nil
	}
	return m.slotLabel, nil
}

func (m *mockFunnel) ConfirmBooking(ctx context.Context) error {
	m.record("ConfirmBooking")
	return m.confirmErr
}

func (m *mockFunnel) HasSlots(ctx context.Context, timeout time.Duration) bool {
	m.record("HasSlots")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	if m.slotsAfterPolls <= 0 {
		return true
	}
	return m.polls >= m.slotsAfterPolls
}

func (m *mockFunnel) Refresh(ctx context.Context) error {
	m.record("Refresh")
	return nil
}

func testBookingConfig(t *testing.T, mode string) config.BookingConfig {
	t.Helper()
	cfg := config.NewDefaultConfig().Booking
	cfg.Mode = mode
	return cfg
}

func pacific(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestNewStrategy(t *testing.T) {
	t.Run("selects by mode", func(t *testing.T) {
		s, err := NewStrategy(testBookingConfig(t, config.ModeImmediate), zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "immediate", s.Name())

		s, err = NewStrategy(testBookingConfig(t, config.ModeRelease), zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "release", s.Name())
	})

	t.Run("rejects a bad time range", func(t *testing.T) {
		cfg := testBookingConfig(t, config.ModeImmediate)
		cfg.PreferredTimeRange = "late morning"
		_, err := NewStrategy(cfg, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidTimeRange)
	})
}

func TestImmediateStrategy(t *testing.T) {
	loc := pacific(t)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, loc)

	t.Run("runs the funnel once in order", func(t *testing.T) {
		cfg := testBookingConfig(t, config.ModeImmediate)
		s, err := NewStrategy(cfg, zap.NewNop())
		require.NoError(t, err)
		s.(*ImmediateStrategy).now = func() time.Time { return now }

		funnel := &mockFunnel{}
		result, err := s.Execute(context.Background(), funnel)
		require.NoError(t, err)

		assert.Equal(t, []string{"SelectDate", "SelectPlayers", "SelectTimeSlot", "ConfirmBooking"}, funnel.recorded())
		assert.Equal(t, 1, result.Attempts)
		assert.Equal(t, "9:30 AM", result.Slot)
		assert.Equal(t, time.Date(2026, 9, 4, 0, 0, 0, 0, loc), result.Date)
	})

	t.Run("a failed stage stops the funnel", func(t *testing.T) {
		cfg := testBookingConfig(t, config.ModeImmediate)
		s, err := NewStrategy(cfg, zap.NewNop())
		require.NoError(t, err)
		s.(*ImmediateStrategy).now = func() time.Time { return now }

		funnel := &mockFunnel{playersErr: errors.New("widget hiccup")}
		_, err = s.Execute(context.Background(), funnel)
		require.Error(t, err)

		calls := funnel.recorded()
		assert.Equal(t, []string{"SelectDate", "SelectPlayers"}, calls,
			"nothing downstream of the failed stage may run")
	})
}

func newReleaseStrategy(t *testing.T, cfg config.BookingConfig, now time.Time, rec *sleepRecorder) *ReleaseStrategy {
	t.Helper()
	s, err := NewStrategy(cfg, zap.NewNop())
	require.NoError(t, err)
	rs := s.(*ReleaseStrategy)
	rs.now = func() time.Time { return now }
	rs.sleep = rec.sleep
	return rs
}

func TestReleaseStrategy(t *testing.T) {
	defer goleak.VerifyNone(t)
	loc := pacific(t)

	t.Run("sleeps until exactly offset before release", func(t *testing.T) {
		cfg := testBookingConfig(t, config.ModeRelease)
		now := time.Date(2026, 8, 28, 6, 30, 0, 0, loc)
		rec := &sleepRecorder{}
		s := newReleaseStrategy(t, cfg, now, rec)

		funnel := &mockFunnel{}
		result, err := s.Execute(context.Background(), funnel)
		require.NoError(t, err)

		sleeps := rec.recorded()
		require.NotEmpty(t, sleeps)
		assert.Equal(t, 29*time.Minute+50*time.Second, sleeps[0],
			"wake must be exactly pre_attempt_offset before 07:00")
		assert.Equal(t, 1, result.Attempts)
		assert.Equal(t, time.Date(2026, 9, 4, 0, 0, 0, 0, loc), result.Date)
	})

	t.Run("starting after the release moment fails without attempting", func(t *testing.T) {
		cfg := testBookingConfig(t, config.ModeRelease)
		now := time.Date(2026, 8, 28, 7, 0, 1, 0, loc)
		rec := &sleepRecorder{}
		s := newReleaseStrategy(t, cfg, now, rec)

		funnel := &mockFunnel{}
		_, err := s.Execute(context.Background(), funnel)
		assert.ErrorIs(t, err, ErrReleaseTimeExceeded)
		assert.Empty(t, funnel.recorded(), "no funnel stage may run")
		assert.Empty(t, rec.recorded())
	})

	t.Run("retries failed passes with refresh in between", func(t *testing.T) {
		cfg := testBookingConfig(t, config.ModeRelease)
		cfg.MaxRetries = 5
		now := time.Date(2026, 8, 28, 6, 59, 55, 0, loc)
		rec := &sleepRecorder{}
		s := newReleaseStrategy(t, cfg, now, rec)

		notOpen := errors.New("date is not open for booking yet")
		funnel := &mockFunnel{dateErrs: []error{notOpen, notOpen}}

		result, err := s.Execute(context.Background(), funnel)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Attempts)

		refreshes := 0
		for _, call := range funnel.recorded() {
			if call == "Refresh" {
				refreshes++
			}
		}
		assert.Equal(t, 2, refreshes, "one refresh between each failed pass")
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		cfg := testBookingConfig(t, config.ModeRelease)
		cfg.MaxRetries = 3
		now := time.Date(2026, 8, 28, 6, 59, 55, 0, loc)
		rec := &sleepRecorder{}
		s := newReleaseStrategy(t, cfg, now, rec)

		notOpen := errors.New("date is not open for booking yet")
		funnel := &mockFunnel{dateErrs: []error{notOpen, notOpen, notOpen}}

		_, err := s.Execute(context.Background(), funnel)
		require.Error(t, err)
		assert.ErrorIs(t, err, notOpen)
	})

	t.Run("polls for slots to materialize before selecting", func(t *testing.T) {
		cfg := testBookingConfig(t, config.ModeRelease)
		now := time.Date(2026, 8, 28, 6, 59, 55, 0, loc)
		rec := &sleepRecorder{}
		s := newReleaseStrategy(t, cfg, now, rec)

		funnel := &mockFunnel{slotsAfterPolls: 3}
		result, err := s.Execute(context.Background(), funnel)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Attempts)

		calls := funnel.recorded()
		polls, refreshes := 0, 0
		for _, call := range calls {
			switch call {
			case "HasSlots":
				polls++
			case "Refresh":
				refreshes++
			}
		}
		assert.Equal(t, 3, polls)
		assert.Equal(t, 2, refreshes, "each miss refreshes the sheet")

		// The slot poll happens between player selection and slot selection.
		assert.Equal(t, "SelectPlayers", calls[1])
		assert.Equal(t, "SelectTimeSlot", calls[len(calls)-2])
	})

	t.Run("exhausted slot polls fail the pass", func(t *testing.T) {
		cfg := testBookingConfig(t, config.ModeRelease)
		cfg.MaxRetries = 1
		cfg.SlotPollAttempts = 4
		now := time.Date(2026, 8, 28, 6, 59, 55, 0, loc)
		rec := &sleepRecorder{}
		s := newReleaseStrategy(t, cfg, now, rec)

		funnel := &mockFunnel{slotsAfterPolls: 99}
		_, err := s.Execute(context.Background(), funnel)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoSlotsAvailable)

		for _, call := range funnel.recorded() {
			assert.NotEqual(t, "SelectTimeSlot", call,
				"slot selection must not run when slots never materialized")
		}
	})

	t.Run("cancellation interrupts the pre-release wait", func(t *testing.T) {
		cfg := testBookingConfig(t, config.ModeRelease)
		now := time.Date(2026, 8, 28, 6, 0, 0, 0, loc)
		s, err := NewStrategy(cfg, zap.NewNop())
		require.NoError(t, err)
		rs := s.(*ReleaseStrategy)
		rs.now = func() time.Time { return now }

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = rs.Execute(ctx, &mockFunnel{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
