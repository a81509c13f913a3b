package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"storyloom/pkg/domain"
)

// Notifier receives upgrade prompts when the entitlement gate blocks an
// action. The ledger only signals; presentation is the consumer's concern.
type Notifier interface {
	PromptUpgrade(ctx context.Context, userID string, capability domain.Capability, reason DenyReason)
}

// LogNotifier logs upgrade prompts. Used in tests and local development.
type LogNotifier struct{}

func (LogNotifier) PromptUpgrade(_ context.Context, userID string, capability domain.Capability, reason DenyReason) {
	slog.Info("upgrade prompt", "user_id", userID, "capability", capability, "reason", reason)
}

// AMQPNotifier publishes upgrade prompts to a fanout exchange consumed by
// the web client's notification pipeline.
type AMQPNotifier struct {
	channel  *amqp.Channel
	exchange string
}

type upgradePromptEvent struct {
	UserID     string            `json:"userId"`
	Capability domain.Capability `json:"capability"`
	Reason     DenyReason        `json:"reason"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewAMQPNotifier dials the broker and declares the exchange.
func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{channel: ch, exchange: exchange}, nil
}

// PromptUpgrade publishes the event. Publish failures are logged; a prompt
// is advisory and must never block the gate decision.
func (n *AMQPNotifier) PromptUpgrade(ctx context.Context, userID string, capability domain.Capability, reason DenyReason) {
	body, err := json.Marshal(upgradePromptEvent{
		UserID:     userID,
		Capability: capability,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("marshal upgrade prompt", "err", err)
		return
	}
	err = n.channel.PublishWithContext(ctx, n.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		slog.Warn("publish upgrade prompt", "user_id", userID, "err", err)
	}
}
