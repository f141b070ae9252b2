package nightly

import (
	"context"

	"github.com/rs/zerolog"
)

// Trigger fires a nightly sweep on demand, outside its schedule. The
// production deployment fires a Kubernetes Job; tests and single-binary
// setups run the sweep in process.
type Trigger interface {
	Fire(ctx context.Context) error
}

// LocalTrigger runs the sweep in the current process and, when a
// notifier is configured, mails the summary afterwards.
type LocalTrigger struct {
	driver   *Driver
	notifier Notifier
	logger   zerolog.Logger
}

// NewLocalTrigger creates a trigger. notifier may be nil.
func NewLocalTrigger(driver *Driver, notifier Notifier, logger zerolog.Logger) *LocalTrigger {
	return &LocalTrigger{driver: driver, notifier: notifier, logger: logger}
}

// Fire runs the sweep. A notification failure is logged but does not
// fail the sweep that already happened.
func (t *LocalTrigger) Fire(ctx context.Context) error {
	summary, err := t.driver.Run(ctx)
	if err != nil {
		return err
	}

	if t.notifier != nil {
		if err := t.notifier.SendNightlySummary(ctx, summary); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to send nightly summary")
		}
	}
	return nil
}
