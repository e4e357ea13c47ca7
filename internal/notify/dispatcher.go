// Package notify hands push notifications off to the delivery worker over AMQP.
package notify

import (
	"context"
	"time"
)

// Notification is the payload consumed by the push delivery worker. UserIDs
// is filled in by the fan-out layer after recipients are resolved.
type Notification struct {
	UserIDs    []int64           `json:"user_ids"`
	ChatID     int64             `json:"chat_id"`
	MessageID  int64             `json:"message_id,omitempty"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt string            `json:"occurred_at"`
}

// Dispatcher sends push notifications.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}

// AMQPDispatcher publishes notifications on a topic exchange; the mobile push
// worker consumes them and talks to APNs/FCM.
type AMQPDispatcher struct {
	publisher  Publisher
	routingKey string
}

// NewAMQPDispatcher constructs a dispatcher over an existing publisher.
func NewAMQPDispatcher(publisher Publisher, routingKey string) *AMQPDispatcher {
	return &AMQPDispatcher{publisher: publisher, routingKey: routingKey}
}

func (d *AMQPDispatcher) Send(ctx context.Context, n Notification) error {
	if len(n.UserIDs) == 0 {
		return nil
	}
	if n.OccurredAt == "" {
		n.OccurredAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return d.publisher.Publish(ctx, d.routingKey, n)
}
