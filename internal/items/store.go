package items

import (
	"context"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/dontforget-backend/pkg/errors"
	"github.com/angelmondragon/dontforget-backend/pkg/geo"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
	"github.com/angelmondragon/dontforget-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MutationKind identifies what a store mutation did.
type MutationKind string

const (
	MutationCreated MutationKind = "created"
	MutationUpdated MutationKind = "updated"
	MutationDeleted MutationKind = "deleted"
)

// MutationEvent is emitted after every successful mutation so the
// orchestrator can reconcile notifications and monitored regions.
type MutationEvent struct {
	Kind   MutationKind
	ItemID uuid.UUID
	// Item is the post-mutation state; zero-valued for deletions.
	Item Item
}

const defaultEventBuffer = 64

// StoreParams groups dependencies for the item store.
type StoreParams struct {
	Port        PersistencePort
	Logger      *logger.Logger
	Metrics     *metrics.EngineMetrics
	Now         func() time.Time
	EventBuffer int
}

// Store is the authoritative in-memory item collection. All mutations are
// serialized behind one mutex; derived views read a consistent snapshot.
type Store struct {
	mu      sync.Mutex
	items   []Item
	port    PersistencePort
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
	now     func() time.Time
	events  chan MutationEvent
}

// NewStore builds an item store with the required dependencies.
func NewStore(params StoreParams) (*Store, error) {
	if params.Port == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "persistence port is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	buffer := params.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &Store{
		port:    params.Port,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
		events:  make(chan MutationEvent, buffer),
	}, nil
}

// Events returns the mutation event stream consumed by the orchestrator.
func (s *Store) Events() <-chan MutationEvent {
	return s.events
}

// Load replaces the collection with the persisted snapshot. Called once at
// boot, before any mutation.
func (s *Store) Load(ctx context.Context) error {
	loaded, err := s.port.Load(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load item snapshot")
	}
	s.mu.Lock()
	s.items = loaded
	s.mu.Unlock()
	return nil
}

// Add validates and inserts the item at the front of the collection,
// assigning id and creation time when absent.
func (s *Store) Add(ctx context.Context, item Item) (Item, error) {
	if err := validateItem(item); err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	s.items = append([]Item{item}, s.items...)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.emit(MutationEvent{Kind: MutationCreated, ItemID: item.ID, Item: item.clone()})
	return item.clone(), nil
}

// Update replaces the item with the matching id.
func (s *Store) Update(ctx context.Context, item Item) (Item, error) {
	if item.ID == uuid.Nil {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if err := validateItem(item); err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	idx := s.indexOfLocked(item.ID)
	if idx < 0 {
		s.mu.Unlock()
		return Item{}, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	// Identity fields survive the replacement.
	item.CreatedAt = s.items[idx].CreatedAt
	s.items[idx] = item
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.emit(MutationEvent{Kind: MutationUpdated, ItemID: item.ID, Item: item.clone()})
	return item.clone(), nil
}

// Delete removes the item with the matching id. Deleting an absent id is a
// no-op.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.emit(MutationEvent{Kind: MutationDeleted, ItemID: id})
	return nil
}

// MarkUsed completes the item and zeroes any remaining balance.
func (s *Store) MarkUsed(ctx context.Context, id uuid.UUID) (Item, error) {
	return s.mutate(ctx, id, func(item *Item) error {
		item.IsCompleted = true
		if item.Balance != nil {
			zero := decimal.Zero
			item.Balance = &zero
		}
		return nil
	})
}

// UpdateBalance sets a new non-negative balance. Driving the balance to zero
// implicitly completes the item.
func (s *Store) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) (Item, error) {
	if balance.IsNegative() {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "balance must not be negative")
	}
	return s.mutate(ctx, id, func(item *Item) error {
		b := balance
		item.Balance = &b
		if !balance.IsPositive() {
			item.IsCompleted = true
		}
		return nil
	})
}

func (s *Store) mutate(ctx context.Context, id uuid.UUID, apply func(*Item) error) (Item, error) {
	if id == uuid.Nil {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}

	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return Item{}, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	if err := apply(&s.items[idx]); err != nil {
		s.mu.Unlock()
		return Item{}, err
	}
	updated := s.items[idx].clone()
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.emit(MutationEvent{Kind: MutationUpdated, ItemID: id, Item: updated})
	return updated, nil
}

// Get returns the item with the matching id.
func (s *Store) Get(id uuid.UUID) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		return Item{}, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return s.items[idx].clone(), nil
}

// All returns the full collection in insertion order, most recent first.
func (s *Store) All() []Item {
	return s.filter(func(Item) bool { return true })
}

// Active returns items that are neither completed nor expired.
func (s *Store) Active() []Item {
	now := s.now()
	return s.filter(func(i Item) bool { return i.IsActive(now) })
}

// Completed returns items the user marked used.
func (s *Store) Completed() []Item {
	return s.filter(func(i Item) bool { return i.IsCompleted })
}

// ExpiringSoon returns active items expiring within 7 days.
func (s *Store) ExpiringSoon() []Item {
	now := s.now()
	return s.filter(func(i Item) bool { return i.IsActive(now) && i.IsExpiringSoon(now) })
}

// WithLocation returns active items carrying a geofence.
func (s *Store) WithLocation() []Item {
	now := s.now()
	return s.filter(func(i Item) bool { return i.IsActive(now) && i.Location != nil })
}

// ItemsNear returns active located items whose fence contains the point.
func (s *Store) ItemsNear(point geo.Coordinate) []Item {
	now := s.now()
	return s.filter(func(i Item) bool {
		return i.IsActive(now) && i.Location != nil && geo.Within(point, *i.Location)
	})
}

// TotalBalance sums balances over active items, treating absent balances as
// zero.
func (s *Store) TotalBalance() decimal.Decimal {
	now := s.now()
	total := decimal.Zero

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.IsActive(now) && item.Balance != nil {
			total = total.Add(*item.Balance)
		}
	}
	return total
}

func (s *Store) filter(keep func(Item) bool) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		if keep(item) {
			out = append(out, item.clone())
		}
	}
	return out
}

func (s *Store) indexOfLocked(id uuid.UUID) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the snapshot through the port. A failed write never
// fails the mutation: the in-memory state stays authoritative.
func (s *Store) persistLocked(ctx context.Context) {
	snapshot := make([]Item, len(s.items))
	copy(snapshot, s.items)
	if err := s.port.Save(ctx, snapshot); err != nil {
		s.metrics.IncPersistFailure()
		s.logg.Error(ctx, "item snapshot write failed, changes may not survive a restart", err)
	}
}

// emit blocks until the consumer takes the event. Every mutation must reach
// the orchestrator or its notifications and regions drift until the next
// sweep. The send happens outside the store mutex and the consumer never
// mutates the store from its handler, so this cannot deadlock.
func (s *Store) emit(event MutationEvent) {
	s.events <- event
}

func validateItem(item Item) error {
	if strings.TrimSpace(item.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if item.Location != nil && item.Location.RadiusMeters <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "fence radius must be positive")
	}
	if item.Balance != nil && item.Balance.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "balance must not be negative")
	}
	return nil
}
