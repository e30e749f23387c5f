package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/nholik/phenotype-health/internal/transition"
	"github.com/rs/zerolog"
)

const defaultWebhookTemplate = `{"environment":"{{ .Environment }}","transitions":{{ toJson .Transitions }},"generatedAt":"{{ .GeneratedAt.Format "2006-01-02T15:04:05Z07:00" }}"}`

// WebhookPayload is the template context for webhook notifications.
type WebhookPayload struct {
	Environment string
	Transitions []transition.Transition
	GeneratedAt time.Time
}

// WebhookNotifier sends transition notifications to a generic webhook.
type WebhookNotifier struct {
	logger   zerolog.Logger
	template *template.Template
	delivery *deliverer
}

// NewWebhookNotifier creates a webhook notifier with the provided template.
// An empty URL returns a nil notifier.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL string, tmpl string) (*WebhookNotifier, error) {
	if webhookURL == "" {
		return nil, nil
	}
	if tmpl == "" {
		tmpl = defaultWebhookTemplate
	}

	parsed, err := template.New("webhook").Funcs(template.FuncMap{
		"toJson": func(v any) (string, error) {
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(encoded), nil
		},
	}).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse webhook template: %w", err)
	}

	return &WebhookNotifier{
		logger:   logger,
		template: parsed,
		delivery: newDeliverer(logger, "webhook", webhookURL, defaultDeliveryTiming),
	}, nil
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, environment string, transitions []transition.Transition) error {
	if len(transitions) == 0 || n == nil {
		return nil
	}

	envName := environmentName(environment)
	if err := n.delivery.throttle(ctx, envName); err != nil {
		return err
	}

	payload := WebhookPayload{
		Environment: envName,
		Transitions: transitions,
		GeneratedAt: time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := n.template.Execute(&buf, payload); err != nil {
		return fmt.Errorf("render webhook template: %w", err)
	}

	if err := n.delivery.deliver(ctx, buf.Bytes()); err != nil {
		return err
	}

	n.logger.Debug().
		Str("environment", envName).
		Int("transitions", len(transitions)).
		Msg("webhook notification sent")

	return nil
}

func environmentName(environment string) string {
	if environment == "" {
		return "default"
	}
	return environment
}
