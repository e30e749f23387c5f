package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nholik/phenotype-health/internal/health"
	"github.com/nholik/phenotype-health/internal/transition"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	slackMaxBlocks = 50
	// slackReservedBlocks accounts for header block + context block in each message
	slackReservedBlocks = 2
	slackMaxTransitions = slackMaxBlocks - slackReservedBlocks
)

// SlackNotifier posts block messages to a Slack incoming webhook.
type SlackNotifier struct {
	logger     zerolog.Logger
	webhookURL string
	timing     deliveryTiming
	delivery   *deliverer
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.retryInitial = backoffInitial
		s.timing.retryMax = backoffMax
		s.timing.retryElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier, or returns nil when the webhook
// is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return nil
	}

	notifier := &SlackNotifier{
		logger:     logger,
		webhookURL: webhookURL,
		timing:     defaultDeliveryTiming,
	}

	for _, opt := range opts {
		opt(notifier)
	}

	notifier.delivery = newDeliverer(logger, "slack", webhookURL, notifier.timing)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, environment string, transitions []transition.Transition) error {
	if len(transitions) == 0 {
		return nil
	}
	envName := environmentName(environment)
	if err := n.delivery.throttle(ctx, envName); err != nil {
		return err
	}

	messages := buildSlackMessages(envName, transitions)
	for _, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("marshal slack payload: %w", err)
		}
		if err := n.delivery.deliver(ctx, payload); err != nil {
			return err
		}
	}

	n.logger.Debug().
		Str("environment", envName).
		Int("transitions", len(transitions)).
		Int("messages", len(messages)).
		Msg("slack notification sent")

	return nil
}

func buildSlackMessages(environment string, transitions []transition.Transition) []slack.WebhookMessage {
	if len(transitions) == 0 {
		return nil
	}

	total := len(transitions)
	chunkTotal := (total + slackMaxTransitions - 1) / slackMaxTransitions
	messages := make([]slack.WebhookMessage, 0, chunkTotal)

	for i := 0; i < total; i += slackMaxTransitions {
		end := min(i+slackMaxTransitions, total)
		partIndex := (i / slackMaxTransitions) + 1
		messages = append(messages, buildSlackMessage(environment, transitions[i:end], total, partIndex, chunkTotal))
	}
	return messages
}

func buildSlackMessage(environment string, transitions []transition.Transition, total int, partIndex int, partTotal int) slack.WebhookMessage {
	summary := fmt.Sprintf("phenotype-health %s: %d component change(s)", environment, total)
	if overall, ok := findOverall(transitions); ok {
		summary = fmt.Sprintf("%s, now %s", summary, overall.CurrentValue)
	}
	if partTotal > 1 {
		summary = fmt.Sprintf("%s (part %d/%d)", summary, partIndex, partTotal)
	}
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, false, false))
	contextElements := []slack.MixedElement{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Environment: *%s*", environment), false, false),
	}
	if partTotal > 1 {
		contextElements = append(contextElements, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Batch: %d/%d", partIndex, partTotal), false, false))
	}
	context := slack.NewContextBlock("", contextElements...)

	blocks := []slack.Block{header, context}
	for _, change := range transitions {
		blocks = append(blocks, buildTransitionBlock(change))
	}

	blockSet := slack.Blocks{BlockSet: blocks}
	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &blockSet,
	}
}

func buildTransitionBlock(change transition.Transition) slack.Block {
	title := fmt.Sprintf("%s *%s*: `%s` → `%s`", statusIcon(change), change.Component, valueLabel(change.PreviousValue), valueLabel(change.CurrentValue))
	text := slack.NewTextBlockObject("mrkdwn", title, false, false)

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject("mrkdwn", "*Impact:*\n"+string(change.CurrentStatus), false, false),
	}
	if change.Recovered() {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Recovered from:*\n"+string(change.PreviousStatus), false, false))
	}

	return slack.NewSectionBlock(text, fields, nil)
}

func findOverall(transitions []transition.Transition) (transition.Transition, bool) {
	for _, change := range transitions {
		if change.Component == transition.Overall {
			return change, true
		}
	}
	return transition.Transition{}, false
}

func statusIcon(change transition.Transition) string {
	switch change.CurrentStatus {
	case health.StatusUnhealthy:
		return ":red_circle:"
	case health.StatusDegraded:
		return ":large_yellow_circle:"
	default:
		return ":large_green_circle:"
	}
}

func valueLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
