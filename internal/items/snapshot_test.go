package items

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestDecodeDocument_CurrentSchema(t *testing.T) {
	balance := decimal.NewFromInt(25)
	expires := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	doc := snapshotDocument{
		SchemaVersion: schemaVersionCurrent,
		Items: []itemRecord{{
			ID:             uuid.New(),
			Title:          "gift card",
			CreatedAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			ExpirationDate: &expires,
			Balance:        &balance,
		}},
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	items, err := decodeDocument(payload)
	if err != nil {
		t.Fatalf("decodeDocument returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Balance == nil || !items[0].Balance.Equal(balance) {
		t.Fatalf("expected balance preserved, got %v", items[0].Balance)
	}
	if items[0].ExpirationDate == nil || !items[0].ExpirationDate.Equal(expires) {
		t.Fatalf("expected expiration preserved, got %v", items[0].ExpirationDate)
	}
}

func TestDecodeDocument_MigratesLegacySchema(t *testing.T) {
	payload := []byte(`{
		"schemaVersion": 1,
		"items": [{
			"id": "7a0f8f3c-9f9e-4d6a-8f14-3a1a62f1b001",
			"title": "coffee voucher",
			"createdAt": "2025-11-01T10:00:00Z",
			"isCompleted": false,
			"dueDate": "2026-01-15T09:00:00Z",
			"notifyBefore": 3,
			"voucherValue": "$20"
		}]
	}`)

	items, err := decodeDocument(payload)
	if err != nil {
		t.Fatalf("decodeDocument returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.ExpirationDate == nil {
		t.Fatal("expected dueDate migrated to expiration date")
	}
	want := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	if !item.ExpirationDate.Equal(want) {
		t.Fatalf("expected expiration %v, got %v", want, item.ExpirationDate)
	}
	if item.ValueLabel == nil || *item.ValueLabel != "$20" {
		t.Fatalf("expected voucherValue migrated to value label, got %v", item.ValueLabel)
	}
}

func TestDecodeDocument_UnversionedTreatedAsLegacy(t *testing.T) {
	payload := []byte(`{"items": [{"id": "7a0f8f3c-9f9e-4d6a-8f14-3a1a62f1b001", "title": "old", "createdAt": "2025-11-01T10:00:00Z"}]}`)
	items, err := decodeDocument(payload)
	if err != nil {
		t.Fatalf("decodeDocument returned error: %v", err)
	}
	if len(items) != 1 || items[0].Title != "old" {
		t.Fatal("expected unversioned document decoded as legacy")
	}
}

func TestDecodeDocument_RefusesFutureSchema(t *testing.T) {
	payload := []byte(`{"schemaVersion": 3, "items": []}`)
	_, err := decodeDocument(payload)
	if err == nil {
		t.Fatal("expected error for future schema version")
	}
	if !strings.Contains(err.Error(), "schema version 3") {
		t.Fatalf("expected version in error, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	loc := "123 Main St"
	balance := decimal.RequireFromString("12.50")
	item := Item{
		ID:          uuid.New(),
		Title:       "round trip",
		CreatedAt:   time.Date(2026, 2, 2, 8, 30, 0, 0, time.UTC),
		IsCompleted: true,
		Balance:     &balance,
		StoreName:   &loc,
		ImageData:   []byte{0x01, 0x02},
	}

	doc := snapshotDocument{
		SchemaVersion: schemaVersionCurrent,
		Items:         []itemRecord{recordFromItem(item)},
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := decodeDocument(payload)
	if err != nil {
		t.Fatalf("decodeDocument returned error: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected 1 item, got %d", len(decoded))
	}
	got := decoded[0]
	if got.ID != item.ID || got.Title != item.Title || !got.IsCompleted {
		t.Fatalf("identity fields lost in round trip: %+v", got)
	}
	if got.Balance == nil || !got.Balance.Equal(balance) {
		t.Fatalf("balance lost in round trip: %v", got.Balance)
	}
	if len(got.ImageData) != 2 {
		t.Fatalf("image bytes lost in round trip: %v", got.ImageData)
	}
}
