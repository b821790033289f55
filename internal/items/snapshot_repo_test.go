package items

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupSnapshotTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS item_snapshots (
  key TEXT PRIMARY KEY,
  document TEXT NOT NULL,
  schema_version INTEGER NOT NULL DEFAULT 1,
  updated_at DATETIME NOT NULL
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func TestSnapshotRepositoryRoundTrip(t *testing.T) {
	db := setupSnapshotTestDB(t)
	repo, err := NewSnapshotRepository(db)
	require.NoError(t, err)

	ctx := context.Background()

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded, "missing row must read as an empty collection")

	balance := decimal.NewFromInt(30)
	expiry := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	store := "Corner Cafe"
	saved := []Item{
		{
			ID:             uuid.New(),
			Title:          "coffee card",
			CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			Balance:        &balance,
			StoreName:      &store,
			ExpirationDate: &expiry,
		},
		{
			ID:        uuid.New(),
			Title:     "plain reminder",
			CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, repo.Save(ctx, saved))

	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, saved[0].ID, loaded[0].ID)
	assert.Equal(t, "coffee card", loaded[0].Title)
	require.NotNil(t, loaded[0].Balance)
	assert.True(t, loaded[0].Balance.Equal(balance))
	require.NotNil(t, loaded[0].StoreName)
	assert.Equal(t, store, *loaded[0].StoreName)
	assert.Nil(t, loaded[1].Balance)
}

func TestSnapshotRepositorySaveOverwritesSingleRow(t *testing.T) {
	db := setupSnapshotTestDB(t)
	repo, err := NewSnapshotRepository(db)
	require.NoError(t, err)

	ctx := context.Background()
	first := []Item{{ID: uuid.New(), Title: "first", CreatedAt: time.Now().UTC()}}
	second := []Item{{ID: uuid.New(), Title: "second", CreatedAt: time.Now().UTC()}}

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	var count int64
	require.NoError(t, db.Table("item_snapshots").Count(&count).Error)
	assert.Equal(t, int64(1), count, "snapshot must stay one row per key")

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "second", loaded[0].Title)
}

func TestSnapshotRepositoryMigratesLegacyRow(t *testing.T) {
	db := setupSnapshotTestDB(t)
	repo, err := NewSnapshotRepository(db)
	require.NoError(t, err)

	legacy := `{
		"schemaVersion": 1,
		"items": [{
			"id": "1b671a64-40d5-491e-99b0-da01ff1f3341",
			"title": "use spa voucher",
			"createdAt": "2026-01-05T09:00:00Z",
			"dueDate": "2026-06-01T00:00:00Z",
			"voucherValue": "$50",
			"notifyBefore": 3
		}]
	}`
	require.NoError(t, db.Exec(
		`INSERT INTO item_snapshots (key, document, schema_version, updated_at) VALUES (?, ?, ?, ?)`,
		"items", legacy, 1, time.Now().UTC(),
	).Error)

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	require.NotNil(t, loaded[0].ExpirationDate)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), loaded[0].ExpirationDate.UTC())
	require.NotNil(t, loaded[0].ValueLabel)
	assert.Equal(t, "$50", *loaded[0].ValueLabel)
}
