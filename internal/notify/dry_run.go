package notify

import (
	"context"

	"github.com/nholik/phenotype-health/internal/transition"
	"github.com/rs/zerolog"
)

// DryRunNotifier logs transitions without sending notifications.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, environment string, transitions []transition.Transition) error {
	for _, change := range transitions {
		n.logger.Info().
			Str("environment", environment).
			Str("component", change.Component).
			Str("previous", change.PreviousValue).
			Str("current", change.CurrentValue).
			Str("status", string(change.CurrentStatus)).
			Msg("[DRY-RUN] Would notify")
	}
	return nil
}
