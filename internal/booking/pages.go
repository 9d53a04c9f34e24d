// File: internal/booking/pages.go
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fairwaylabs/teesnipe/internal/browser"
)

const (
	loginSuccessTimeout = 15 * time.Second
	teeSheetTimeout     = 15 * time.Second
	monthNavLimit       = 12
	preTermsDelay       = 2 * time.Second
)

// Pages wraps the booking widget's flow as explicit operations. Each method
// drives one stage of the funnel and reports failure as an error; the engine
// underneath handles selector fallbacks and click retries.
type Pages struct {
	engine *Engine
	logger *zap.Logger

	// loginTimeout bounds the wait for the post-login marker. The login
	// round trip is far slower than ordinary element lookups; sheetTimeout
	// likewise bounds the tee sheet scrape, which renders late around
	// release time.
	loginTimeout time.Duration
	sheetTimeout time.Duration
}

// NewPages creates the page layer on top of an interaction engine.
func NewPages(engine *Engine, logger *zap.Logger) *Pages {
	return &Pages{
		engine:       engine,
		logger:       logger.Named("pages"),
		loginTimeout: loginSuccessTimeout,
		sheetTimeout: teeSheetTimeout,
	}
}

// Login opens the widget and authenticates the member account. It returns
// only after the logout link renders, which is the one reliable signal the
// session is live.
func (p *Pages) Login(ctx context.Context, url, username, password string) error {
	if err := p.engine.Driver().Navigate(ctx, url); err != nil {
		return fmt.Errorf("open booking page: %w", err)
	}
	if err := p.engine.WaitPageReady(ctx, 0); err != nil {
		p.logger.Warn("Page readiness gate did not pass, continuing.", zap.Error(err))
	}

	if !p.engine.Click(ctx, membersTab, 0) {
		return fmt.Errorf("members tab: click failed")
	}

	if err := p.engine.Type(ctx, emailField, username, 0); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := p.engine.Type(ctx, passwordField, password, 0); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	if !p.engine.Click(ctx, loginButton, 0) {
		return fmt.Errorf("login button: click failed")
	}

	if _, err := p.engine.FindElement(ctx, loginSuccessMarker, browser.Visible, p.loginTimeout); err != nil {
		return fmt.Errorf("login not confirmed: %w", err)
	}

	p.logger.Info("Logged in.", zap.String("user", username))
	return nil
}

// SelectDate navigates the calendar to the target month and clicks the
// target day. Days rendered muted belong to adjacent months and never match;
// a disabled day cell means the date is not yet open for booking.
func (p *Pages) SelectDate(ctx context.Context, target time.Time) error {
	if err := p.engine.WaitPageReady(ctx, 0); err != nil {
		p.logger.Warn("Page readiness gate did not pass, continuing.", zap.Error(err))
	}

	if err := p.navigateToMonth(ctx, target); err != nil {
		return err
	}

	// Day labels render zero-padded ("05", not "5" or " 5").
	label := fmt.Sprintf("%02d", target.Day())
	cell, err := p.engine.FindElement(ctx, dayCell.Formatf(label), browser.Present, 0)
	if err != nil {
		return fmt.Errorf("day cell %q: %w", label, err)
	}

	// The span is only the label; its parent button is the click target and
	// carries the disabled state.
	button, err := cell.Parent(ctx)
	if err != nil {
		return fmt.Errorf("day cell %q parent: %w", label, err)
	}
	if _, disabled, err := button.Attribute(ctx, "disabled"); err == nil && disabled {
		return fmt.Errorf("date %s is not open for booking yet", target.Format("2006-01-02"))
	}

	if !p.engine.ClickElement(ctx, button, "calendar day "+label) {
		return fmt.Errorf("day cell %q: click failed", label)
	}

	p.logger.Info("Date selected.", zap.String("date", target.Format("2006-01-02")))
	return nil
}

// navigateToMonth pages the calendar until its title matches the target
// month, at most monthNavLimit hops in either direction.
func (p *Pages) navigateToMonth(ctx context.Context, target time.Time) error {
	want := target.Year()*12 + int(target.Month()) - 1

	for hop := 0; hop <= monthNavLimit; hop++ {
		title, err := p.engine.Text(ctx, monthTitle, 0)
		if err != nil {
			return fmt.Errorf("calendar title: %w", err)
		}
		shown, err := time.Parse("January 2006", strings.TrimSpace(title))
		if err != nil {
			return fmt.Errorf("calendar title %q: %w", title, err)
		}
		have := shown.Year()*12 + int(shown.Month()) - 1

		switch {
		case have == want:
			return nil
		case have < want:
			if !p.engine.Click(ctx, monthNextButton, 0) {
				return fmt.Errorf("calendar next month: click failed")
			}
		default:
			if !p.engine.Click(ctx, monthPrevButton, 0) {
				return fmt.Errorf("calendar previous month: click failed")
			}
		}
	}
	return fmt.Errorf("calendar never reached %s after %d hops",
		target.Format("January 2006"), monthNavLimit)
}

// SelectPlayers picks the party size and advances to the tee sheet.
func (p *Pages) SelectPlayers(ctx context.Context, count int) error {
	if err := p.engine.WaitPageReady(ctx, 0); err != nil {
		p.logger.Warn("Page readiness gate did not pass, continuing.", zap.Error(err))
	}

	if !p.engine.Click(ctx, playerCountButton.Formatf(count), 0) {
		return fmt.Errorf("player count %d: click failed", count)
	}
	if !p.engine.Click(ctx, continueButton, 0) {
		return fmt.Errorf("continue after player count: click failed")
	}

	p.logger.Info("Party size selected.", zap.Int("players", count))
	return nil
}

// HasSlots reports whether any tee time tags are rendered right now. Used by
// the release scheduler's materialization loop, which refreshes between
// misses, so this is a single bounded check rather than a patient wait.
func (p *Pages) HasSlots(ctx context.Context, timeout time.Duration) bool {
	_, err := p.engine.FindElement(ctx, timeSlotTags, browser.Present, timeout)
	return err == nil
}

// Refresh reloads the tee sheet.
func (p *Pages) Refresh(ctx context.Context) error {
	return p.engine.Driver().Refresh(ctx)
}

// SelectTimeSlot scrapes the rendered tee times, picks one inside the
// preferred window, and clicks it. Returns the chosen slot's label.
func (p *Pages) SelectTimeSlot(ctx context.Context, window TimeRange) (string, error) {
	if err := p.engine.WaitPageReady(ctx, 0); err != nil {
		p.logger.Warn("Page readiness gate did not pass, continuing.", zap.Error(err))
	}

	slots, err := p.collectSlots(ctx)
	if err != nil {
		return "", err
	}
	p.logger.Info("Tee sheet scraped.", zap.Int("slots", len(slots)), zap.Stringer("window", window))

	chosen, err := ChooseSlot(slots, window)
	if err != nil {
		return "", err
	}

	if !p.engine.ClickElement(ctx, chosen.Element, "time slot "+chosen.Label) {
		return "", fmt.Errorf("time slot %q: click failed", chosen.Label)
	}

	p.logger.Info("Time slot selected.", zap.String("slot", chosen.Label))
	return chosen.Label, nil
}

// collectSlots reads the tee sheet tile by tile. Each container pairs a
// time tag (the label) with a rate anchor (the bookable control); the
// disabled flag lives on the rate anchor, and so does the click. Containers
// missing either piece, or whose label does not parse as a time, are
// skipped rather than failing the scrape.
func (p *Pages) collectSlots(ctx context.Context) ([]Slot, error) {
	containers, err := p.engine.FindAll(ctx, timeSlotContainers, p.sheetTimeout)
	if err != nil {
		if errors.Is(err, browser.ErrElementNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("scrape tee sheet: %w", err)
	}

	slots := make([]Slot, 0, len(containers))
	for _, container := range containers {
		tag, err := container.Query(ctx, slotTagSelector)
		if err != nil {
			continue
		}
		rate, err := container.Query(ctx, slotRateSelector)
		if err != nil {
			continue
		}

		label, err := tag.Text(ctx)
		if err != nil {
			if errors.Is(err, browser.ErrStaleElement) {
				continue
			}
			return nil, fmt.Errorf("read slot label: %w", err)
		}
		minute, err := ParseSlotLabel(label)
		if err != nil {
			p.logger.Debug("Skipping unparseable slot label.", zap.String("label", label))
			continue
		}
		slots = append(slots, Slot{
			Label:    label,
			Minute:   minute,
			Disabled: p.rateDisabled(ctx, rate),
			Element:  rate,
		})
	}
	return slots, nil
}

// rateDisabled reads the sold-out flag off the rate anchor. The widget
// marks full times with the disabled class, not the attribute, but both are
// honored.
func (p *Pages) rateDisabled(ctx context.Context, rate browser.Element) bool {
	if _, ok, err := rate.Attribute(ctx, "disabled"); err == nil && ok {
		return true
	}
	class, ok, err := rate.Attribute(ctx, "class")
	return err == nil && ok && strings.Contains(class, "disabled")
}

// ConfirmBooking drives the final stage: the confirm step, the terms
// checkbox, and the submit button. The terms checkbox renders late, after
// the confirm step's transition, hence the fixed pause.
func (p *Pages) ConfirmBooking(ctx context.Context) error {
	if !p.engine.Click(ctx, finalContinueButton, 0) {
		return fmt.Errorf("confirm step: click failed")
	}

	if err := p.engine.WaitPageReady(ctx, 0); err != nil {
		p.logger.Warn("Page readiness gate did not pass, continuing.", zap.Error(err))
	}
	if err := p.engine.sleep(ctx, preTermsDelay); err != nil {
		return err
	}

	checkbox, err := p.engine.FindElement(ctx, agreeTermsCheckbox, browser.Present, 0)
	if err != nil {
		return fmt.Errorf("terms checkbox: %w", err)
	}
	if _, checked, err := checkbox.Attribute(ctx, "checked"); err == nil && checked {
		p.logger.Debug("Terms checkbox already selected.")
	} else if !p.engine.ClickElement(ctx, checkbox, agreeTermsCheckbox.Name) {
		return fmt.Errorf("terms checkbox: click failed")
	}
	if !p.engine.Click(ctx, confirmBookingButton, 0) {
		return fmt.Errorf("confirm booking: click failed")
	}

	p.logger.Info("Booking submitted.")
	return nil
}
