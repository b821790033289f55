package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/dontforget-backend/internal/items"
	"github.com/angelmondragon/dontforget-backend/internal/notify"
	"github.com/angelmondragon/dontforget-backend/internal/regions"
	"github.com/angelmondragon/dontforget-backend/internal/scheduler"
	"github.com/angelmondragon/dontforget-backend/pkg/geo"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
	"github.com/rs/zerolog"
)

type fakeNotificationPort struct {
	scheduled []scheduler.Intent
	canceled  [][]string
	delivered []notify.Alert
}

func (f *fakeNotificationPort) Schedule(_ context.Context, intent scheduler.Intent) error {
	f.scheduled = append(f.scheduled, intent)
	return nil
}

func (f *fakeNotificationPort) Cancel(_ context.Context, keys []string) error {
	f.canceled = append(f.canceled, keys)
	return nil
}

func (f *fakeNotificationPort) Deliver(_ context.Context, alert notify.Alert) error {
	f.delivered = append(f.delivered, alert)
	return nil
}

type fakeLocationPort struct {
	started []string
	stopped []string
}

func (f *fakeLocationPort) StartMonitoring(_ context.Context, regionID string, _ geo.Fence) error {
	f.started = append(f.started, regionID)
	return nil
}

func (f *fakeLocationPort) StopMonitoring(_ context.Context, regionID string) error {
	f.stopped = append(f.stopped, regionID)
	return nil
}

type fakeSavePort struct{}

func (fakeSavePort) Load(context.Context) ([]items.Item, error) { return nil, nil }
func (fakeSavePort) Save(context.Context, []items.Item) error   { return nil }

type harness struct {
	store    *items.Store
	notifier *fakeNotificationPort
	location *fakeLocationPort
	service  *Service
	now      time.Time
}

func newHarness(t *testing.T, window time.Duration) *harness {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	nowFn := func() time.Time { return now }

	store, err := items.NewStore(items.StoreParams{Port: fakeSavePort{}, Logger: logg, Now: nowFn})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	notifier := &fakeNotificationPort{}
	sched, err := scheduler.NewService(scheduler.ServiceParams{
		Port:      notifier,
		Logger:    logg,
		Now:       nowFn,
		HourOfDay: 9,
		Location:  time.UTC,
	})
	if err != nil {
		t.Fatalf("scheduler.NewService: %v", err)
	}
	location := &fakeLocationPort{}
	monitor, err := regions.NewMonitor(regions.MonitorParams{
		Port:   location,
		Logger: logg,
		Now:    nowFn,
		Limit:  20,
	})
	if err != nil {
		t.Fatalf("regions.NewMonitor: %v", err)
	}

	svc, err := NewService(ServiceParams{
		Store:          store,
		Scheduler:      sched,
		Monitor:        monitor,
		Deliverer:      notifier,
		Debounce:       NewMemoryDebouncer(nowFn),
		Logger:         logg,
		DebounceWindow: window,
		Now:            nowFn,
		Location:       time.UTC,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &harness{store: store, notifier: notifier, location: location, service: svc, now: now}
}

// drain consumes exactly n mutation events through the orchestrator handler,
// simulating the single-writer loop without running it.
func (h *harness) drain(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case event := <-h.store.Events():
			h.service.handleMutation(context.Background(), event)
		default:
			t.Fatalf("expected %d mutation events, got %d", n, i)
		}
	}
}

func TestMutation_ReschedulesAndMonitors(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	expires := h.now.AddDate(0, 0, 10)
	item, err := h.store.Add(ctx, items.Item{
		Title:            "gift card",
		ExpirationDate:   &expires,
		TriggerOnArrival: true,
		Location:         &geo.Fence{Name: "Store", Latitude: 1, Longitude: 2, RadiusMeters: 100},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.drain(t, 1)

	if len(h.notifier.canceled) != 1 {
		t.Fatalf("expected cancel-before-schedule, got %d cancels", len(h.notifier.canceled))
	}
	// 1 location + 4 expiry offsets.
	if len(h.notifier.scheduled) != 5 {
		t.Fatalf("expected 5 intents scheduled, got %d", len(h.notifier.scheduled))
	}
	if len(h.location.started) != 1 || h.location.started[0] != item.ID.String() {
		t.Fatalf("expected region monitored for %s, got %v", item.ID, h.location.started)
	}
}

func TestDelete_CancelsKeysAndStopsMonitoring(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	item, err := h.store.Add(ctx, items.Item{
		Title:    "keys",
		Location: &geo.Fence{Name: "Office", Latitude: 1, Longitude: 2, RadiusMeters: 100},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.drain(t, 1)

	if err := h.store.Delete(ctx, item.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	h.drain(t, 1)

	last := h.notifier.canceled[len(h.notifier.canceled)-1]
	want := map[string]bool{}
	for _, key := range scheduler.FixedKeySet(item.ID) {
		want[key] = true
	}
	for _, key := range last {
		delete(want, key)
	}
	if len(want) != 0 {
		t.Fatalf("keys missing from final cancel: %v", want)
	}
	if len(h.location.stopped) != 1 || h.location.stopped[0] != item.ID.String() {
		t.Fatalf("expected region %s stopped, got %v", item.ID, h.location.stopped)
	}
}

func TestCrossing_DeliversMatchingDirection(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	item, err := h.store.Add(ctx, items.Item{
		Title:            "umbrella",
		TriggerOnArrival: true,
		Location:         &geo.Fence{Name: "Cafe", Latitude: 1, Longitude: 2, RadiusMeters: 100},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.drain(t, 1)

	h.service.handleCrossing(ctx, regions.CrossingEvent{Kind: regions.EventEnter, RegionID: item.ID.String()})
	if len(h.notifier.delivered) != 1 {
		t.Fatalf("expected 1 alert delivered, got %d", len(h.notifier.delivered))
	}
	if h.notifier.delivered[0].Key != scheduler.LocationKey(item.ID) {
		t.Fatalf("unexpected alert key %s", h.notifier.delivered[0].Key)
	}

	// Exit events do not match an arrival trigger.
	h.service.handleCrossing(ctx, regions.CrossingEvent{Kind: regions.EventExit, RegionID: item.ID.String()})
	if len(h.notifier.delivered) != 1 {
		t.Fatal("expected exit crossing ignored for arrival trigger")
	}
}

func TestCrossing_AlertMentionsImminentExpiry(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	expiry := h.now.Add(24 * time.Hour)
	item, err := h.store.Add(ctx, items.Item{
		Title:            "spa voucher",
		TriggerOnArrival: true,
		Location:         &geo.Fence{Name: "Spa", Latitude: 1, Longitude: 2, RadiusMeters: 100},
		ExpirationDate:   &expiry,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.drain(t, 1)

	h.service.handleCrossing(ctx, regions.CrossingEvent{Kind: regions.EventEnter, RegionID: item.ID.String()})
	if len(h.notifier.delivered) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(h.notifier.delivered))
	}
	if !strings.Contains(h.notifier.delivered[0].Body, "expires tomorrow") {
		t.Fatalf("expected expiry hint in alert body, got %q", h.notifier.delivered[0].Body)
	}
}

func TestCrossing_DebounceSuppressesRepeats(t *testing.T) {
	h := newHarness(t, 30*time.Minute)
	ctx := context.Background()

	item, err := h.store.Add(ctx, items.Item{
		Title:            "umbrella",
		TriggerOnArrival: true,
		Location:         &geo.Fence{Name: "Cafe", Latitude: 1, Longitude: 2, RadiusMeters: 100},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.drain(t, 1)

	event := regions.CrossingEvent{Kind: regions.EventEnter, RegionID: item.ID.String()}
	h.service.handleCrossing(ctx, event)
	h.service.handleCrossing(ctx, event)

	if len(h.notifier.delivered) != 1 {
		t.Fatalf("expected repeat crossing suppressed, got %d alerts", len(h.notifier.delivered))
	}
}

func TestCrossing_UnknownRegionIgnored(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	h.service.handleCrossing(ctx, regions.CrossingEvent{Kind: regions.EventEnter, RegionID: "ffffffff-0000-0000-0000-000000000000"})
	h.service.handleCrossing(ctx, regions.CrossingEvent{Kind: regions.EventEnter, RegionID: "not-a-uuid"})
	if len(h.notifier.delivered) != 0 {
		t.Fatalf("expected no alerts, got %d", len(h.notifier.delivered))
	}
}

func TestMemoryDebouncer_WindowExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	d := NewMemoryDebouncer(func() time.Time { return clock })
	ctx := context.Background()

	allowed, err := d.Allow(ctx, "r1", "enter", 30*time.Minute)
	if err != nil || !allowed {
		t.Fatalf("expected first alert allowed, got allowed=%v err=%v", allowed, err)
	}
	allowed, _ = d.Allow(ctx, "r1", "enter", 30*time.Minute)
	if allowed {
		t.Fatal("expected alert inside window suppressed")
	}
	// Different direction has its own window.
	allowed, _ = d.Allow(ctx, "r1", "exit", 30*time.Minute)
	if !allowed {
		t.Fatal("expected exit direction to have its own window")
	}

	clock = now.Add(31 * time.Minute)
	allowed, _ = d.Allow(ctx, "r1", "enter", 30*time.Minute)
	if !allowed {
		t.Fatal("expected alert allowed after window expired")
	}
}
