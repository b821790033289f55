package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/dontforget-backend/internal/scheduler"
)

const defaultPublishTimeout = 10 * time.Second

// Alert is an immediate user-visible notification, delivered now rather than
// scheduled for later.
type Alert struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// notificationCommand is the wire shape on the notification command topic.
// The downstream delivery relay (APNs or similar) consumes it.
type notificationCommand struct {
	Action string            `json:"action"`
	Intent *scheduler.Intent `json:"intent,omitempty"`
	Keys   []string          `json:"keys,omitempty"`
	Alert  *Alert            `json:"alert,omitempty"`
}

// Publisher implements the notification port by publishing commands to the
// notification topic.
type Publisher struct {
	publisher *gcppubsub.Publisher
}

// NewPublisher wraps a Pub/Sub publisher as a notification port.
func NewPublisher(publisher *gcppubsub.Publisher) (*Publisher, error) {
	if publisher == nil {
		return nil, errors.New("notification publisher is required")
	}
	return &Publisher{publisher: publisher}, nil
}

// Schedule publishes a schedule command for the intent.
func (p *Publisher) Schedule(ctx context.Context, intent scheduler.Intent) error {
	return p.publish(ctx, notificationCommand{Action: "schedule", Intent: &intent}, intent.Key)
}

// Cancel publishes a cancel command for the key set.
func (p *Publisher) Cancel(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return p.publish(ctx, notificationCommand{Action: "cancel", Keys: keys}, "")
}

// Deliver publishes an immediate alert.
func (p *Publisher) Deliver(ctx context.Context, alert Alert) error {
	return p.publish(ctx, notificationCommand{Action: "deliver", Alert: &alert}, alert.Key)
}

func (p *Publisher) publish(ctx context.Context, cmd notificationCommand, key string) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding notification command: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	attributes := map[string]string{"action": cmd.Action}
	if key != "" {
		attributes["key"] = key
	}

	result := p.publisher.Publish(publishCtx, &gcppubsub.Message{
		Data:       payload,
		Attributes: attributes,
	})
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publishing notification command: %w", err)
	}
	return nil
}

// NopPort is the degraded-mode notification port used when notification
// authorization was denied: all calls succeed without doing anything.
type NopPort struct{}

func (NopPort) Schedule(context.Context, scheduler.Intent) error { return nil }
func (NopPort) Cancel(context.Context, []string) error           { return nil }
func (NopPort) Deliver(context.Context, Alert) error             { return nil }
