// File: internal/booking/orchestrator.go
package booking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fairwaylabs/teesnipe/internal/browser"
	"github.com/fairwaylabs/teesnipe/internal/config"
)

// ScreenshotSink receives page captures taken at run checkpoints.
// *artifacts.Store satisfies it.
type ScreenshotSink interface {
	SaveScreenshot(label string, png []byte) (string, error)
}

// Orchestrator owns the run lifecycle: browser startup, login, strategy
// execution, checkpoint screenshots, and a single teardown path for the
// browser no matter how the run ends.
type Orchestrator struct {
	cfg      *config.Config
	strategy Strategy
	sink     ScreenshotSink
	logger   *zap.Logger

	// newDriver is swappable so tests can run the lifecycle against a fake.
	newDriver func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Driver, error)
}

// NewOrchestrator wires a run. sink may be nil to disable checkpoints.
func NewOrchestrator(cfg *config.Config, strategy Strategy, sink ScreenshotSink, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		strategy: strategy,
		sink:     sink,
		logger:   logger.Named("orchestrator"),
		newDriver: func(ctx context.Context, bc config.BrowserConfig, l *zap.Logger) (browser.Driver, error) {
			return browser.NewChrome(ctx, bc, l)
		},
	}
}

// Run executes the full booking run and returns the result of the winning
// pass.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	o.logger.Info("Starting booking run.", zap.String("strategy", o.strategy.Name()))

	driver, err := o.newDriver(ctx, o.cfg.Browser, o.logger)
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			o.logger.Warn("Browser teardown reported an error.", zap.Error(err))
		}
	}()

	engine := NewEngine(driver, o.cfg.Booking.DefaultWaitTimeout, o.logger)
	pages := NewPages(engine, o.logger)

	if err := pages.Login(ctx, o.cfg.Site.URL, o.cfg.Site.Username, o.cfg.Site.Password); err != nil {
		o.checkpoint(ctx, driver, "login_failed")
		return nil, fmt.Errorf("login: %w", err)
	}
	o.checkpoint(ctx, driver, "logged_in")

	result, err := o.strategy.Execute(ctx, pages)
	if err != nil {
		o.checkpoint(ctx, driver, "booking_failed")
		return nil, err
	}
	o.checkpoint(ctx, driver, "booking_confirmed")

	o.logger.Info("Booking run complete.",
		zap.String("date", result.Date.Format("2006-01-02")),
		zap.String("slot", result.Slot),
		zap.Int("attempts", result.Attempts))
	return result, nil
}

// checkpoint captures the current page for the artifact trail. Checkpoints
// are diagnostics; their failures are logged and swallowed.
func (o *Orchestrator) checkpoint(ctx context.Context, driver browser.Driver, label string) {
	if o.sink == nil {
		return
	}
	shotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if shotCtx.Err() != nil {
		// The run context may already be dead; take the capture anyway on a
		// fresh deadline so failure screenshots survive cancellation.
		shotCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	png, err := driver.Screenshot(shotCtx)
	if err != nil {
		o.logger.Debug("Checkpoint screenshot failed.", zap.String("label", label), zap.Error(err))
		return
	}
	if _, err := o.sink.SaveScreenshot(label, png); err != nil {
		o.logger.Debug("Checkpoint screenshot not saved.", zap.String("label", label), zap.Error(err))
	}
}
