// File: internal/booking/strategy.go
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fairwaylabs/teesnipe/internal/config"
)

// ErrReleaseTimeExceeded indicates the run started after the slot release
// moment already passed. The race is over before it begins, so no attempt
// is made.
var ErrReleaseTimeExceeded = errors.New("release time already passed")

// Result describes a completed booking.
type Result struct {
	Date     time.Time
	Slot     string
	Attempts int
}

// Funnel is the post-login booking flow a strategy drives. *Pages is the
// production implementation.
type Funnel interface {
	SelectDate(ctx context.Context, target time.Time) error
	SelectPlayers(ctx context.Context, count int) error
	SelectTimeSlot(ctx context.Context, window TimeRange) (string, error)
	ConfirmBooking(ctx context.Context) error
	HasSlots(ctx context.Context, timeout time.Duration) bool
	Refresh(ctx context.Context) error
}

// Strategy runs the booking funnel against an authenticated page layer.
// The strategy is chosen at configuration time; the orchestrator does not
// branch on mode.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, funnel Funnel) (*Result, error)
}

// NewStrategy builds the strategy for the configured mode.
func NewStrategy(cfg config.BookingConfig, logger *zap.Logger) (Strategy, error) {
	window, err := ParseTimeRange(cfg.PreferredTimeRange)
	if err != nil {
		return nil, fmt.Errorf("preferred time range: %w", err)
	}
	switch cfg.Mode {
	case config.ModeImmediate:
		return &ImmediateStrategy{
			cfg:    cfg,
			window: window,
			logger: logger.Named("immediate"),
			now:    time.Now,
		}, nil
	case config.ModeRelease:
		return &ReleaseStrategy{
			cfg:    cfg,
			window: window,
			logger: logger.Named("release"),
			now:    time.Now,
			sleep:  sleepCtx,
		}, nil
	default:
		return nil, fmt.Errorf("unknown booking mode %q", cfg.Mode)
	}
}

// executePass runs one full booking pass. Stages run strictly in order and
// the first failure stops the pass; nothing downstream of a failed stage is
// touched.
func executePass(ctx context.Context, funnel Funnel, date time.Time, players int, window TimeRange, awaitSlots func(context.Context) error) (string, error) {
	if err := funnel.SelectDate(ctx, date); err != nil {
		return "", err
	}
	if err := funnel.SelectPlayers(ctx, players); err != nil {
		return "", err
	}
	if awaitSlots != nil {
		if err := awaitSlots(ctx); err != nil {
			return "", err
		}
	}
	slot, err := funnel.SelectTimeSlot(ctx, window)
	if err != nil {
		return "", err
	}
	if err := funnel.ConfirmBooking(ctx); err != nil {
		return "", err
	}
	return slot, nil
}

// ImmediateStrategy runs a single booking pass right away. Intended for
// rehearsal runs and for dates already open for booking.
type ImmediateStrategy struct {
	cfg    config.BookingConfig
	window TimeRange
	logger *zap.Logger

	now func() time.Time
}

func (s *ImmediateStrategy) Name() string { return "immediate" }

func (s *ImmediateStrategy) Execute(ctx context.Context, funnel Funnel) (*Result, error) {
	date, err := s.cfg.TargetDate(s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Running single booking pass.",
		zap.String("date", date.Format("2006-01-02")),
		zap.Stringer("window", s.window))

	slot, err := executePass(ctx, funnel, date, s.cfg.PartySize, s.window, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Date: date, Slot: slot, Attempts: 1}, nil
}

// ReleaseStrategy races the daily slot release: it sleeps until shortly
// before the release moment, then hammers the funnel until a pass lands or
// the retry budget runs out.
type ReleaseStrategy struct {
	cfg    config.BookingConfig
	window TimeRange
	logger *zap.Logger

	// Injectable clock and sleep so the schedule is testable without
	// waiting for 07:00.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func (s *ReleaseStrategy) Name() string { return "release" }

func (s *ReleaseStrategy) Execute(ctx context.Context, funnel Funnel) (*Result, error) {
	start := s.now()
	threshold, err := s.cfg.ReleaseThreshold(start)
	if err != nil {
		return nil, err
	}
	if start.After(threshold) {
		return nil, fmt.Errorf("%w: release was %s, now %s",
			ErrReleaseTimeExceeded,
			threshold.Format(time.Kitchen),
			start.In(threshold.Location()).Format(time.Kitchen))
	}

	date, err := s.cfg.TargetDate(start)
	if err != nil {
		return nil, err
	}

	wakeAt := threshold.Add(-s.cfg.PreAttemptOffset)
	if wait := wakeAt.Sub(start); wait > 0 {
		s.logger.Info("Waiting for release window.",
			zap.Time("release", threshold),
			zap.Time("wake", wakeAt),
			zap.Duration("sleep", wait),
			zap.String("date", date.Format("2006-01-02")))
		if err := s.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Release window open, attempting.",
		zap.Int("max_retries", s.cfg.MaxRetries))

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		slot, err := executePass(ctx, funnel, date, s.cfg.PartySize, s.window, func(ctx context.Context) error {
			return s.awaitSlots(ctx, funnel)
		})
		if err == nil {
			s.logger.Info("Booking landed.", zap.Int("attempt", attempt), zap.String("slot", slot))
			return &Result{Date: date, Slot: slot, Attempts: attempt}, nil
		}
		lastErr = err
		s.logger.Warn("Booking attempt failed.",
			zap.Int("attempt", attempt),
			zap.Int("remaining", s.cfg.MaxRetries-attempt),
			zap.Error(err))

		if attempt < s.cfg.MaxRetries {
			if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
				return nil, err
			}
			// A fresh page state for the next pass; a half-finished funnel
			// would otherwise poison every later attempt.
			if err := funnel.Refresh(ctx); err != nil {
				s.logger.Warn("Refresh between attempts failed.", zap.Error(err))
			}
		}
	}

	return nil, fmt.Errorf("all %d booking attempts failed: %w", s.cfg.MaxRetries, lastErr)
}

// awaitSlots polls for tee times to materialize after the release moment.
// Slots render asynchronously once the backend opens the date, so each miss
// refreshes the sheet before probing again.
func (s *ReleaseStrategy) awaitSlots(ctx context.Context, funnel Funnel) error {
	for attempt := 1; attempt <= s.cfg.SlotPollAttempts; attempt++ {
		if funnel.HasSlots(ctx, s.cfg.SlotPollTimeout) {
			s.logger.Debug("Slots materialized.", zap.Int("poll", attempt))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < s.cfg.SlotPollAttempts {
			if err := funnel.Refresh(ctx); err != nil {
				s.logger.Debug("Refresh during slot poll failed.", zap.Error(err))
			}
		}
	}
	return ErrNoSlotsAvailable
}
