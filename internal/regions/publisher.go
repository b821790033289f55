package regions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/dontforget-backend/pkg/geo"
)

const defaultPublishTimeout = 10 * time.Second

// geofenceCommand is the wire shape of one monitoring command.
type geofenceCommand struct {
	Action   string     `json:"action"`
	RegionID string     `json:"region_id"`
	Fence    *geo.Fence `json:"fence,omitempty"`
}

// CommandPublisher implements LocationPort by publishing monitoring commands
// to the geofence command topic; the platform edge consumes them.
type CommandPublisher struct {
	publisher *gcppubsub.Publisher
}

// NewCommandPublisher wraps a Pub/Sub publisher as a location port.
func NewCommandPublisher(publisher *gcppubsub.Publisher) (*CommandPublisher, error) {
	if publisher == nil {
		return nil, errors.New("geofence command publisher is required")
	}
	return &CommandPublisher{publisher: publisher}, nil
}

// StartMonitoring publishes a start command for the region.
func (p *CommandPublisher) StartMonitoring(ctx context.Context, regionID string, fence geo.Fence) error {
	return p.publish(ctx, geofenceCommand{Action: "start", RegionID: regionID, Fence: &fence})
}

// StopMonitoring publishes a stop command for the region.
func (p *CommandPublisher) StopMonitoring(ctx context.Context, regionID string) error {
	return p.publish(ctx, geofenceCommand{Action: "stop", RegionID: regionID})
}

func (p *CommandPublisher) publish(ctx context.Context, cmd geofenceCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding geofence command: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := p.publisher.Publish(publishCtx, &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"action":    cmd.Action,
			"region_id": cmd.RegionID,
		},
	})
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publishing geofence command: %w", err)
	}
	return nil
}

// NopPort is the degraded-mode location port used when the platform denied
// location authorization: commands become no-ops and the engine keeps
// operating without proximity coverage.
type NopPort struct{}

func (NopPort) StartMonitoring(context.Context, string, geo.Fence) error { return nil }
func (NopPort) StopMonitoring(context.Context, string) error             { return nil }
