package regions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/angelmondragon/dontforget-backend/internal/items"
	pkgerrors "github.com/angelmondragon/dontforget-backend/pkg/errors"
	"github.com/angelmondragon/dontforget-backend/pkg/geo"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
	"github.com/angelmondragon/dontforget-backend/pkg/metrics"
	"go.uber.org/multierr"
)

// LocationPort is the outbound region-monitoring surface. The platform behind
// it owns the actual low-power geofencing.
type LocationPort interface {
	StartMonitoring(ctx context.Context, regionID string, fence geo.Fence) error
	StopMonitoring(ctx context.Context, regionID string) error
}

// EventKind is a region crossing direction.
type EventKind string

const (
	EventEnter EventKind = "enter"
	EventExit  EventKind = "exit"
)

// CrossingEvent is an inbound boundary crossing forwarded from the location
// port. RegionID equals the owning item's id.
type CrossingEvent struct {
	Kind     EventKind
	RegionID string
}

// MonitorParams groups dependencies for the region monitor.
type MonitorParams struct {
	Port    LocationPort
	Logger  *logger.Logger
	Metrics *metrics.EngineMetrics
	Now     func() time.Time
	// Limit caps simultaneously monitored regions; most platforms enforce a
	// hard cap around 20.
	Limit int
}

// Monitor keeps the actively monitored geofence set equal to the set derived
// from located active items, minimizing churn by only issuing the diff.
type Monitor struct {
	mu        sync.Mutex
	monitored map[string]struct{}
	port      LocationPort
	logg      *logger.Logger
	metrics   *metrics.EngineMetrics
	now       func() time.Time
	limit     int
}

// NewMonitor builds a region monitor with the required dependencies.
func NewMonitor(params MonitorParams) (*Monitor, error) {
	if params.Port == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location port is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.Limit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "monitor limit must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		monitored: map[string]struct{}{},
		port:      params.Port,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       now,
		limit:     params.Limit,
	}, nil
}

// Reconcile diffs the desired region set against the currently monitored one
// and issues only the stop/start commands needed. Port failures are advisory.
func (m *Monitor) Reconcile(ctx context.Context, current []items.Item) error {
	desired := m.desiredRegions(current)

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs error

	for regionID := range m.monitored {
		if _, keep := desired[regionID]; keep {
			continue
		}
		if err := m.port.StopMonitoring(ctx, regionID); err != nil {
			m.metrics.IncPortFailure("location")
			m.logg.Error(m.logg.WithRegionID(ctx, regionID), "stop monitoring region", err)
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodePort, err, "stop monitoring"))
			continue
		}
		delete(m.monitored, regionID)
	}

	for regionID, fence := range desired {
		if _, exists := m.monitored[regionID]; exists {
			continue
		}
		if err := m.port.StartMonitoring(ctx, regionID, fence); err != nil {
			m.metrics.IncPortFailure("location")
			m.logg.Error(m.logg.WithRegionID(ctx, regionID), "start monitoring region", err)
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodePort, err, "start monitoring"))
			continue
		}
		m.monitored[regionID] = struct{}{}
	}

	m.metrics.SetMonitoredRegions(len(m.monitored))
	return errs
}

// Monitored returns the currently monitored region identifiers.
func (m *Monitor) Monitored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.monitored))
	for regionID := range m.monitored {
		out = append(out, regionID)
	}
	sort.Strings(out)
	return out
}

// desiredRegions selects which located active items deserve one of the
// bounded monitoring slots. Priority: items expiring soonest first, then
// items without an expiration by most recent creation.
func (m *Monitor) desiredRegions(current []items.Item) map[string]geo.Fence {
	now := m.now()

	candidates := make([]items.Item, 0, len(current))
	for _, item := range current {
		if item.IsActive(now) && item.Location != nil {
			candidates = append(candidates, item)
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ea, eb := candidates[a].ExpirationDate, candidates[b].ExpirationDate
		switch {
		case ea != nil && eb != nil:
			return ea.Before(*eb)
		case ea != nil:
			return true
		case eb != nil:
			return false
		default:
			return candidates[a].CreatedAt.After(candidates[b].CreatedAt)
		}
	})

	if len(candidates) > m.limit {
		candidates = candidates[:m.limit]
	}

	desired := make(map[string]geo.Fence, len(candidates))
	for _, item := range candidates {
		desired[item.ID.String()] = *item.Location
	}
	return desired
}
