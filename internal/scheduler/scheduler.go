package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/dontforget-backend/internal/items"
	pkgerrors "github.com/angelmondragon/dontforget-backend/pkg/errors"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
	"github.com/angelmondragon/dontforget-backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// NotificationPort is the outbound delivery surface. Calls are best-effort:
// a rejected request degrades to "no alert for this item", never to a failed
// mutation.
type NotificationPort interface {
	Schedule(ctx context.Context, intent Intent) error
	Cancel(ctx context.Context, keys []string) error
}

// ServiceParams groups dependencies for the notification scheduler.
type ServiceParams struct {
	Port      NotificationPort
	Logger    *logger.Logger
	Metrics   *metrics.EngineMetrics
	Now       func() time.Time
	HourOfDay int
	Location  *time.Location
}

// Service computes the exact set of notification intents an item should have
// and reconciles the port against it.
type Service struct {
	port      NotificationPort
	logg      *logger.Logger
	metrics   *metrics.EngineMetrics
	now       func() time.Time
	hourOfDay int
	location  *time.Location
}

// NewService builds a scheduler with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Port == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification port is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.HourOfDay < 0 || params.HourOfDay > 23 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hour of day must be in [0,23]")
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
		port:      params.Port,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       now,
		hourOfDay: params.HourOfDay,
		location:  loc,
	}, nil
}

// DeriveIntents computes the intents that should exist for the item right
// now. Deterministic: the same item state always yields the same key set.
func (s *Service) DeriveIntents(item items.Item) []Intent {
	now := s.now()
	if !item.IsActive(now) {
		return nil
	}

	intents := []Intent{}

	if item.Location != nil {
		title, body := ProximityContent(item)
		intents = append(intents, Intent{
			Key:     LocationKey(item.ID),
			Title:   title,
			Body:    body,
			Repeats: true,
			Region: &RegionTrigger{
				RegionID: item.ID.String(),
				Fence:    *item.Location,
				OnEntry:  item.TriggerOnArrival,
			},
		})
	}

	if item.ExpirationDate != nil {
		for _, offset := range ExpiryOffsets {
			fireAt := s.fireTime(*item.ExpirationDate, offset)
			// Never schedule a notification in the past.
			if !fireAt.After(now) {
				continue
			}
			title, body := expiryContent(item, offset)
			intents = append(intents, Intent{
				Key:     ExpiryKey(offset, item.ID),
				Title:   title,
				Body:    body,
				Repeats: false,
				FiresAt: &fireAt,
			})
		}
	}

	return intents
}

// Reconcile cancels the item's full fixed key set, then re-schedules the
// currently derived intents. Port failures are collected and reported, and
// the returned error is advisory: callers must not roll back the mutation
// that triggered reconciliation.
func (s *Service) Reconcile(ctx context.Context, item items.Item) error {
	ctx = s.logg.WithItemID(ctx, item.ID.String())

	var errs error
	if err := s.cancelKeys(ctx, item.ID); err != nil {
		errs = multierr.Append(errs, err)
	}

	for _, intent := range s.DeriveIntents(item) {
		if err := s.port.Schedule(ctx, intent); err != nil {
			s.metrics.IncPortFailure("notification")
			s.logg.Error(ctx, "schedule notification intent", err)
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodePort, err, "schedule intent"))
			continue
		}
		s.metrics.IncScheduled(intentKind(intent))
	}
	return errs
}

// CancelAll removes every possible intent for the id. Used on delete, where
// no re-derivation follows.
func (s *Service) CancelAll(ctx context.Context, id uuid.UUID) error {
	ctx = s.logg.WithItemID(ctx, id.String())
	return s.cancelKeys(ctx, id)
}

func (s *Service) cancelKeys(ctx context.Context, id uuid.UUID) error {
	keys := FixedKeySet(id)
	if err := s.port.Cancel(ctx, keys); err != nil {
		s.metrics.IncPortFailure("notification")
		s.logg.Error(ctx, "cancel notification intents", err)
		return pkgerrors.Wrap(pkgerrors.CodePort, err, "cancel intents")
	}
	for _, key := range keys {
		s.metrics.IncCanceled(keyKind(key))
	}
	return nil
}

// fireTime anchors the countdown alert at the configured local hour,
// offsetDays whole days before the expiration date.
func (s *Service) fireTime(expiration time.Time, offsetDays int) time.Time {
	local := expiration.In(s.location)
	anchor := time.Date(local.Year(), local.Month(), local.Day(), s.hourOfDay, 0, 0, 0, s.location)
	return anchor.AddDate(0, 0, -offsetDays)
}

func intentKind(intent Intent) string {
	if intent.Region != nil {
		return "location"
	}
	return "expiry"
}

// keyKind maps a deterministic key back to its intent kind label.
func keyKind(key string) string {
	if strings.HasPrefix(key, "location:") {
		return "location"
	}
	return "expiry"
}
