package notify

import (
	"context"

	"github.com/nholik/phenotype-health/internal/transition"
)

// Notifier delivers transition alerts to external systems. environment
// names the deployment the transitions belong to.
type Notifier interface {
	Notify(ctx context.Context, environment string, transitions []transition.Transition) error
}
