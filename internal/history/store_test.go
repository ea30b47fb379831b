package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gym-status-client/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.StatusOpen{}, &model.StatusHistory{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return NewGormStore(db)
}

func record(id string, status model.Status, remaining int) *model.EquipmentRecord {
	return &model.EquipmentRecord{ID: id, Name: "기구 " + id, Status: status, TimeRemainingMinutes: remaining}
}

func TestRecord_Lifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	// Equipment enters IN_USE with 30 minutes predicted.
	require.NoError(t, store.Record(ctx, t0, []*model.EquipmentRecord{record("101", model.StatusInUse, 30)}))

	var open []model.StatusOpen
	require.NoError(t, store.DB().Find(&open).Error)
	require.Len(t, open, 1)
	assert.Equal(t, "101", open[0].EquipmentID)
	assert.Equal(t, string(model.StatusInUse), open[0].Status)

	// Unchanged status on the next snapshot: no history rows yet.
	require.NoError(t, store.Record(ctx, t0.Add(time.Minute), []*model.EquipmentRecord{record("101", model.StatusInUse, 29)}))
	var history []model.StatusHistory
	require.NoError(t, store.DB().Find(&history).Error)
	assert.Empty(t, history)

	// Back to AVAILABLE: the open row is archived with the predicted end.
	t1 := t0.Add(10 * time.Minute)
	require.NoError(t, store.Record(ctx, t1, []*model.EquipmentRecord{record("101", model.StatusAvailable, 0)}))

	require.NoError(t, store.DB().Find(&open).Error)
	assert.Empty(t, open)

	require.NoError(t, store.DB().Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, "101", history[0].EquipmentID)
	assert.Equal(t, string(model.StatusInUse), history[0].Status)
	assert.True(t, history[0].PeriodStart.Equal(t0))
	assert.True(t, history[0].PeriodEnd.Equal(t0.Add(30*time.Minute)), "predicted end from the reported remaining time")
}

func TestRecord_VanishedEquipmentIsArchived(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, t0, []*model.EquipmentRecord{record("7", model.StatusWaiting, 0)}))

	// The next snapshot no longer contains equipment 7 at all.
	t1 := t0.Add(5 * time.Minute)
	require.NoError(t, store.Record(ctx, t1, nil))

	var open []model.StatusOpen
	require.NoError(t, store.DB().Find(&open).Error)
	assert.Empty(t, open)

	var history []model.StatusHistory
	require.NoError(t, store.DB().Find(&history).Error)
	require.Len(t, history, 1)
	assert.True(t, history[0].PeriodEnd.Equal(t1), "no predicted duration: period ends at the observation time")
}

func TestRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	// Two completed periods for equipment 5, one for equipment 6.
	require.NoError(t, store.Record(ctx, t0, []*model.EquipmentRecord{record("5", model.StatusInUse, 0), record("6", model.StatusInUse, 0)}))
	require.NoError(t, store.Record(ctx, t0.Add(10*time.Minute), []*model.EquipmentRecord{record("5", model.StatusAvailable, 0), record("6", model.StatusAvailable, 0)}))
	require.NoError(t, store.Record(ctx, t0.Add(20*time.Minute), []*model.EquipmentRecord{record("5", model.StatusWaiting, 0)}))
	require.NoError(t, store.Record(ctx, t0.Add(30*time.Minute), []*model.EquipmentRecord{record("5", model.StatusAvailable, 0)}))

	rows, err := store.Recent(ctx, "5", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, string(model.StatusWaiting), rows[0].Status, "newest first")
	assert.Equal(t, string(model.StatusInUse), rows[1].Status)

	rows, err = store.Recent(ctx, "5", 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
