package items

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/dontforget-backend/pkg/errors"
	"github.com/angelmondragon/dontforget-backend/pkg/geo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PersistencePort is the load/save blob store the collection persists
// through. Save is best-effort from the store's perspective.
type PersistencePort interface {
	Load(ctx context.Context) ([]Item, error)
	Save(ctx context.Context, items []Item) error
}

const (
	snapshotKey = "items"

	// schemaVersionLegacy is the reminder-with-due-date layout that predates
	// balances and barcodes.
	schemaVersionLegacy  = 1
	schemaVersionCurrent = 2
)

type snapshotRow struct {
	Key           string    `gorm:"column:key;primaryKey"`
	Document      string    `gorm:"column:document"`
	SchemaVersion int       `gorm:"column:schema_version"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (snapshotRow) TableName() string { return "item_snapshots" }

type snapshotDocument struct {
	SchemaVersion int          `json:"schemaVersion"`
	Items         []itemRecord `json:"items"`
}

// itemRecord is the wire layout of one item. Optional fields are absent
// rather than null. The legacy fields only appear in version 1 documents.
type itemRecord struct {
	ID               uuid.UUID        `json:"id"`
	Title            string           `json:"title"`
	Notes            *string          `json:"notes,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	IsCompleted      bool             `json:"isCompleted"`
	Location         *geo.Fence       `json:"location,omitempty"`
	TriggerOnArrival bool             `json:"triggerOnArrival"`
	ExpirationDate   *time.Time       `json:"expirationDate,omitempty"`
	Balance          *decimal.Decimal `json:"balance,omitempty"`
	StoreName        *string          `json:"storeName,omitempty"`
	ValueLabel       *string          `json:"valueLabel,omitempty"`
	Code             *string          `json:"code,omitempty"`
	CodeFormat       *string          `json:"codeFormat,omitempty"`
	ImageData        []byte           `json:"imageData,omitempty"`

	// Version 1 only.
	DueDate      *time.Time `json:"dueDate,omitempty"`
	NotifyBefore *int       `json:"notifyBefore,omitempty"`
	VoucherValue *string    `json:"voucherValue,omitempty"`
}

// SnapshotRepository persists the collection as one versioned document row.
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository builds the gorm-backed persistence port.
func NewSnapshotRepository(db *gorm.DB) (*SnapshotRepository, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db handle is required")
	}
	return &SnapshotRepository{db: db}, nil
}

// Load reads the snapshot row and decodes it, migrating legacy documents
// forward. A missing row is an empty collection, not an error.
func (r *SnapshotRepository) Load(ctx context.Context) ([]Item, error) {
	var row snapshotRow
	err := r.db.WithContext(ctx).First(&row, "key = ?", snapshotKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot row: %w", err)
	}
	return decodeDocument([]byte(row.Document))
}

// Save serializes the collection and upserts the snapshot row.
func (r *SnapshotRepository) Save(ctx context.Context, items []Item) error {
	doc := snapshotDocument{
		SchemaVersion: schemaVersionCurrent,
		Items:         make([]itemRecord, 0, len(items)),
	}
	for _, item := range items {
		doc.Items = append(doc.Items, recordFromItem(item))
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	row := snapshotRow{
		Key:           snapshotKey,
		Document:      string(payload),
		SchemaVersion: schemaVersionCurrent,
		UpdatedAt:     time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "schema_version", "updated_at"}),
		}).
		Create(&row).Error
}

func decodeDocument(payload []byte) ([]Item, error) {
	var doc snapshotDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	switch doc.SchemaVersion {
	case 0, schemaVersionLegacy:
		// Version 0 means the field predates versioning, which is the same
		// era as version 1.
		return migrateLegacyRecords(doc.Items), nil
	case schemaVersionCurrent:
		items := make([]Item, 0, len(doc.Items))
		for _, rec := range doc.Items {
			items = append(items, itemFromRecord(rec))
		}
		return items, nil
	default:
		return nil, fmt.Errorf("snapshot schema version %d is newer than this build supports", doc.SchemaVersion)
	}
}

// migrateLegacyRecords lifts version 1 records into the current schema:
// dueDate becomes expirationDate, voucherValue becomes the value label, and
// notifyBefore is dropped because offsets are fixed policy now.
func migrateLegacyRecords(records []itemRecord) []Item {
	items := make([]Item, 0, len(records))
	for _, rec := range records {
		item := itemFromRecord(rec)
		if item.ExpirationDate == nil && rec.DueDate != nil {
			due := *rec.DueDate
			item.ExpirationDate = &due
		}
		if item.ValueLabel == nil && rec.VoucherValue != nil {
			label := *rec.VoucherValue
			item.ValueLabel = &label
		}
		items = append(items, item)
	}
	return items
}

func itemFromRecord(rec itemRecord) Item {
	return Item{
		ID:               rec.ID,
		Title:            rec.Title,
		Notes:            rec.Notes,
		CreatedAt:        rec.CreatedAt,
		IsCompleted:      rec.IsCompleted,
		Location:         rec.Location,
		TriggerOnArrival: rec.TriggerOnArrival,
		ExpirationDate:   rec.ExpirationDate,
		Balance:          rec.Balance,
		StoreName:        rec.StoreName,
		ValueLabel:       rec.ValueLabel,
		Code:             rec.Code,
		CodeFormat:       rec.CodeFormat,
		ImageData:        rec.ImageData,
	}
}

func recordFromItem(item Item) itemRecord {
	return itemRecord{
		ID:               item.ID,
		Title:            item.Title,
		Notes:            item.Notes,
		CreatedAt:        item.CreatedAt,
		IsCompleted:      item.IsCompleted,
		Location:         item.Location,
		TriggerOnArrival: item.TriggerOnArrival,
		ExpirationDate:   item.ExpirationDate,
		Balance:          item.Balance,
		StoreName:        item.StoreName,
		ValueLabel:       item.ValueLabel,
		Code:             item.Code,
		CodeFormat:       item.CodeFormat,
		ImageData:        item.ImageData,
	}
}
