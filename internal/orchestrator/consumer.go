package orchestrator

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/dontforget-backend/internal/regions"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
)

// Consumer feeds geofence crossing events from Pub/Sub into the orchestrator
// queue, preserving delivery order.
type Consumer struct {
	events       chan<- regions.CrossingEvent
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// crossingPayload is the wire shape published by the platform edge.
type crossingPayload struct {
	Kind     string `json:"kind"`
	RegionID string `json:"region_id"`
}

// NewConsumer constructs a consumer that watches the provided subscription.
func NewConsumer(events chan<- regions.CrossingEvent, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if events == nil {
		return nil, errors.New("event queue is required")
	}
	if subscription == nil {
		return nil, errors.New("geofence event subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	// A single callback goroutine with a small outstanding window keeps
	// crossings entering the queue in delivery order; concurrent callbacks
	// could swap an enter/exit pair.
	subscription.ReceiveSettings.NumGoroutines = 1
	subscription.ReceiveSettings.MaxOutstandingMessages = 16
	return &Consumer{
		events:       events,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	var payload crossingPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		// Malformed events never become parseable; drop them.
		c.logg.Error(ctx, "failed to unmarshal crossing event", err)
		return processResult{ack: true}
	}

	kind := regions.EventKind(payload.Kind)
	if kind != regions.EventEnter && kind != regions.EventExit {
		logCtx := c.logg.WithField(ctx, "kind", payload.Kind)
		c.logg.Warn(logCtx, "skipping crossing event with unknown kind")
		return processResult{ack: true}
	}
	if payload.RegionID == "" {
		c.logg.Warn(ctx, "skipping crossing event without region id")
		return processResult{ack: true}
	}

	event := regions.CrossingEvent{Kind: kind, RegionID: payload.RegionID}
	select {
	case c.events <- event:
		return processResult{ack: true}
	case <-ctx.Done():
		// The loop is shutting down; redeliver later.
		return processResult{nack: true}
	}
}
