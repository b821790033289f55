package items

import (
	"time"

	"github.com/angelmondragon/dontforget-backend/pkg/geo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a trackable record: a location-triggered reminder, a voucher with
// an expiration and balance, or both.
type Item struct {
	ID        uuid.UUID
	Title     string
	Notes     *string
	CreatedAt time.Time

	// IsCompleted is terminal for notification purposes: a completed item
	// holds no live scheduled notifications.
	IsCompleted bool

	// Location enables proximity notifications and region monitoring.
	Location *geo.Fence
	// TriggerOnArrival is meaningful only when Location is set; true means
	// notify on entry, false on exit.
	TriggerOnArrival bool

	ExpirationDate *time.Time
	Balance        *decimal.Decimal

	// Display payload. Opaque to scheduling; the capture pipeline fills the
	// code fields and image bytes.
	StoreName  *string
	ValueLabel *string
	Code       *string
	CodeFormat *string
	ImageData  []byte
}

// IsExpired reports whether the expiration date is strictly in the past.
func (i Item) IsExpired(now time.Time) bool {
	return i.ExpirationDate != nil && i.ExpirationDate.Before(now)
}

// DaysUntilExpiry counts calendar-day boundaries from now to the expiration
// date, in now's location: an item expiring tomorrow morning reports 1 even
// late tonight. The second return is false when no expiration is set.
// Negative for expired items.
func (i Item) DaysUntilExpiry(now time.Time) (int, bool) {
	if i.ExpirationDate == nil {
		return 0, false
	}
	ny, nm, nd := now.Date()
	ey, em, ed := i.ExpirationDate.In(now.Location()).Date()
	// Midnights are compared in UTC so a DST shift between the two dates
	// cannot skew the division.
	from := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	to := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from) / (24 * time.Hour)), true
}

// IsExpiringSoon reports whether the item expires within the next 7 days.
func (i Item) IsExpiringSoon(now time.Time) bool {
	days, ok := i.DaysUntilExpiry(now)
	return ok && days >= 0 && days <= 7
}

// IsActive reports whether the item is neither completed nor expired.
func (i Item) IsActive(now time.Time) bool {
	return !i.IsCompleted && !i.IsExpired(now)
}

// clone returns a deep-enough copy so callers cannot mutate stored state
// through shared pointers.
func (i Item) clone() Item {
	out := i
	out.Notes = clonePtr(i.Notes)
	out.ExpirationDate = clonePtr(i.ExpirationDate)
	out.Balance = clonePtr(i.Balance)
	out.StoreName = clonePtr(i.StoreName)
	out.ValueLabel = clonePtr(i.ValueLabel)
	out.Code = clonePtr(i.Code)
	out.CodeFormat = clonePtr(i.CodeFormat)
	if i.Location != nil {
		loc := *i.Location
		loc.Address = clonePtr(i.Location.Address)
		out.Location = &loc
	}
	if i.ImageData != nil {
		out.ImageData = append([]byte(nil), i.ImageData...)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
