package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/nholik/phenotype-health/internal/transition"
)

// MultiNotifier sends every batch to several destinations at once.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier skips nil notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, notifier := range notifiers {
		if notifier != nil {
			m.notifiers = append(m.notifiers, notifier)
		}
	}
	return m
}

// Notify delivers to all destinations concurrently. A slow or failing
// destination does not hold back the others; every failure is returned
// joined.
func (m *MultiNotifier) Notify(ctx context.Context, environment string, transitions []transition.Transition) error {
	errs := make([]error, len(m.notifiers))
	var wg sync.WaitGroup
	for i, notifier := range m.notifiers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = notifier.Notify(ctx, environment, transitions)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
