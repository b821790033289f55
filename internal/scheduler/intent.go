package scheduler

import (
	"fmt"
	"time"

	"github.com/angelmondragon/dontforget-backend/pkg/geo"
	"github.com/google/uuid"
)

// ExpiryOffsets are the fixed countdown offsets, in days before expiration.
var ExpiryOffsets = []int{7, 3, 1, 0}

// RegionTrigger fires when the user crosses the fence boundary.
type RegionTrigger struct {
	RegionID string
	Fence    geo.Fence
	// OnEntry is true for arrival triggers, false for departure.
	OnEntry bool
}

// Intent is a described future notification with a deterministic identity
// key. Exactly one of FiresAt or Region is set.
type Intent struct {
	Key     string
	Title   string
	Body    string
	Repeats bool
	FiresAt *time.Time
	Region  *RegionTrigger
}

// LocationKey returns the deterministic key of the proximity intent.
func LocationKey(id uuid.UUID) string {
	return fmt.Sprintf("location:%s", id)
}

// ExpiryKey returns the deterministic key of one countdown intent.
func ExpiryKey(offsetDays int, id uuid.UUID) string {
	return fmt.Sprintf("expiry:%d:%s", offsetDays, id)
}

// FixedKeySet returns every key that could ever be produced for the item.
// Cancellation always targets this full set so no stale notification
// survives an edit, completion, or deletion.
func FixedKeySet(id uuid.UUID) []string {
	keys := make([]string, 0, len(ExpiryOffsets)+1)
	keys = append(keys, LocationKey(id))
	for _, offset := range ExpiryOffsets {
		keys = append(keys, ExpiryKey(offset, id))
	}
	return keys
}
