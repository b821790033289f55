package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/dontforget-backend/internal/items"
	"github.com/angelmondragon/dontforget-backend/internal/notify"
	"github.com/angelmondragon/dontforget-backend/internal/regions"
	"github.com/angelmondragon/dontforget-backend/internal/scheduler"
	pkgerrors "github.com/angelmondragon/dontforget-backend/pkg/errors"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
	"github.com/angelmondragon/dontforget-backend/pkg/metrics"
	"github.com/google/uuid"
)

// AlertDeliverer pushes an immediate user-visible alert through the
// notification port.
type AlertDeliverer interface {
	Deliver(ctx context.Context, alert notify.Alert) error
}

const defaultRegionEventBuffer = 64

// ServiceParams groups dependencies for the orchestrator.
type ServiceParams struct {
	Store          *items.Store
	Scheduler      *scheduler.Service
	Monitor        *regions.Monitor
	Deliverer      AlertDeliverer
	Debounce       Debouncer
	Logger         *logger.Logger
	Metrics        *metrics.EngineMetrics
	DebounceWindow time.Duration
	EventBuffer    int
	Now            func() time.Time
	// Location is the timezone used to phrase expiry countdowns in alerts.
	Location *time.Location
}

// Service wires store mutations to scheduler and region-monitor
// reconciliation, and maps inbound region crossings back to their items. It
// is the single writer: both event streams are consumed by one goroutine, so
// reconciliations never interleave.
type Service struct {
	store          *items.Store
	scheduler      *scheduler.Service
	monitor        *regions.Monitor
	deliverer      AlertDeliverer
	debounce       Debouncer
	logg           *logger.Logger
	metrics        *metrics.EngineMetrics
	debounceWindow time.Duration
	regionEvents   chan regions.CrossingEvent
	now            func() time.Time
	location       *time.Location
}

// NewService builds an orchestrator with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item store is required")
	}
	if params.Scheduler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduler is required")
	}
	if params.Monitor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "region monitor is required")
	}
	if params.Deliverer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert deliverer is required")
	}
	if params.Debounce == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debouncer is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	buffer := params.EventBuffer
	if buffer <= 0 {
		buffer = defaultRegionEventBuffer
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:          params.Store,
		scheduler:      params.Scheduler,
		monitor:        params.Monitor,
		deliverer:      params.Deliverer,
		debounce:       params.Debounce,
		logg:           params.Logger,
		metrics:        params.Metrics,
		debounceWindow: params.DebounceWindow,
		regionEvents:   make(chan regions.CrossingEvent, buffer),
		now:            now,
		location:       loc,
	}, nil
}

// RegionEvents is the inbound crossing-event queue. The Pub/Sub consumer
// pushes into it in delivery order.
func (s *Service) RegionEvents() chan<- regions.CrossingEvent {
	return s.regionEvents
}

// Bootstrap runs a full reconciliation sweep over the loaded collection so a
// restart repairs any drift between stored items and scheduled state.
func (s *Service) Bootstrap(ctx context.Context) {
	all := s.store.All()
	for _, item := range all {
		if err := s.scheduler.Reconcile(ctx, item); err != nil {
			s.logg.Warn(s.logg.WithItemID(ctx, item.ID.String()), "bootstrap intent reconcile degraded")
		}
	}
	if err := s.monitor.Reconcile(ctx, all); err != nil {
		s.logg.Warn(ctx, "bootstrap region reconcile degraded")
	}
}

// Run consumes both event streams until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(ctx, "orchestrator loop started")
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "orchestrator loop stopped")
			return ctx.Err()
		case event := <-s.store.Events():
			s.handleMutation(ctx, event)
		case event := <-s.regionEvents:
			s.handleCrossing(ctx, event)
		}
	}
}

func (s *Service) handleMutation(ctx context.Context, event items.MutationEvent) {
	ctx = s.logg.WithItemID(ctx, event.ItemID.String())

	switch event.Kind {
	case items.MutationDeleted:
		if err := s.scheduler.CancelAll(ctx, event.ItemID); err != nil {
			s.logg.Warn(ctx, "cancel after delete degraded")
		}
	default:
		if err := s.scheduler.Reconcile(ctx, event.Item); err != nil {
			s.logg.Warn(ctx, "intent reconcile degraded")
		}
	}

	if err := s.monitor.Reconcile(ctx, s.store.All()); err != nil {
		s.logg.Warn(ctx, "region reconcile degraded")
	}
}

func (s *Service) handleCrossing(ctx context.Context, event regions.CrossingEvent) {
	ctx = s.logg.WithRegionID(ctx, event.RegionID)

	itemID, err := uuid.Parse(event.RegionID)
	if err != nil {
		s.logg.Warn(ctx, "crossing event with malformed region id")
		return
	}

	item, err := s.store.Get(itemID)
	if err != nil {
		// The item was deleted while the event was in flight.
		s.logg.Info(ctx, "crossing event for unknown item, ignoring")
		return
	}
	now := s.now().In(s.location)
	if item.Location == nil || !item.IsActive(now) {
		return
	}

	wantEntry := event.Kind == regions.EventEnter
	if item.TriggerOnArrival != wantEntry {
		return
	}

	allowed, err := s.debounce.Allow(ctx, event.RegionID, string(event.Kind), s.debounceWindow)
	if err != nil {
		// Fail open: a broken debounce store should not silence alerts.
		s.logg.Error(ctx, "debounce check failed", err)
		allowed = true
	}
	if !allowed {
		s.metrics.IncProximityAlert("suppressed")
		return
	}

	title, body := scheduler.ProximityContent(item)
	if days, ok := item.DaysUntilExpiry(now); ok && item.IsExpiringSoon(now) {
		switch days {
		case 0:
			body += " It expires today."
		case 1:
			body += " It expires tomorrow."
		default:
			body += fmt.Sprintf(" It expires in %d days.", days)
		}
	}
	alert := notify.Alert{Key: scheduler.LocationKey(item.ID), Title: title, Body: body}
	if err := s.deliverer.Deliver(ctx, alert); err != nil {
		s.metrics.IncPortFailure("notification")
		s.logg.Error(ctx, "deliver proximity alert", err)
		return
	}
	s.metrics.IncProximityAlert("delivered")
}
