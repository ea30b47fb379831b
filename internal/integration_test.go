package internal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gym-status-client/internal/feed"
	"gym-status-client/internal/fetch"
	"gym-status-client/internal/history"
	"gym-status-client/internal/mirror"
	"gym-status-client/internal/model"
	"gym-status-client/internal/token"
)

// TestStatusLifecycle runs the full pipeline against a fake backend: fetch
// through the authenticated client, normalize, reconcile into the mirror and
// record the transition into the local history tables.
func TestStatusLifecycle(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	require.NoError(t, testDB.AutoMigrate(&model.StatusOpen{}, &model.StatusHistory{}, &model.PushSubscription{}))

	// The backend serves an occupied treadmill first, then a free one.
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/equipment/", r.URL.Path)
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&requestCount, 1) == 1 {
			fmt.Fprint(w, `[{"id":"tm-1","name":"Treadmill 1","type":"cardio","status":"in_use","current_user":"김철수","time_remaining":25,"waiting_count":0}]`)
			return
		}
		fmt.Fprint(w, `[{"id":"tm-1","name":"Treadmill 1","type":"cardio","status":"available","waiting_count":0}]`)
	}))
	defer server.Close()

	tokens := token.NewMemoryStore()
	require.NoError(t, tokens.SetPair(token.Pair{Access: "access-token", Refresh: "refresh-token"}))
	client := fetch.NewClient(server.URL, "", tokens)

	m := mirror.New(700 * time.Millisecond)
	defer m.Close()
	store := history.NewGormStore(testDB)

	engine := feed.New(client, m, store, nil)
	engine.UseFeed(feed.NewPollFeed(engine, 30*time.Millisecond))

	updates, cancel := engine.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go engine.Run(ctx)

	waitForUpdate := func(want func(feed.Update) bool) feed.Update {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case u := <-updates:
				if want(u) {
					return u
				}
			case <-deadline:
				t.Fatal("timed out waiting for a mirror update")
			}
		}
	}

	// Cycle 1: the initial snapshot opens a status row.
	initial := waitForUpdate(func(u feed.Update) bool { return u.Initial })
	require.Len(t, initial.Records, 1)
	assert.Equal(t, model.StatusInUse, initial.Records[0].Status)

	var open model.StatusOpen
	require.NoError(t, testDB.Where("equipment_id = ?", "tm-1").First(&open).Error)
	assert.Equal(t, string(model.StatusInUse), open.Status)
	assert.Equal(t, "김철수", open.CurrentUser)
	assert.Equal(t, 25, open.TimeRemaining)
	firstObservedAt := open.ObservedAt

	var historyCount int64
	testDB.Model(&model.StatusHistory{}).Count(&historyCount)
	assert.Equal(t, int64(0), historyCount)

	// Cycle 2: the machine frees up; the open row is archived with the
	// predicted period end and the change flashes in the mirror.
	change := waitForUpdate(func(u feed.Update) bool { return !u.Initial && len(u.Changed) > 0 })
	assert.Contains(t, change.Changed, "tm-1")
	assert.True(t, m.Flashing("tm-1"))
	assert.Equal(t, model.StatusAvailable, m.Get("tm-1").Status)

	var openCount int64
	testDB.Model(&model.StatusOpen{}).Count(&openCount)
	assert.Equal(t, int64(0), openCount)

	var archived model.StatusHistory
	require.NoError(t, testDB.Where("equipment_id = ?", "tm-1").First(&archived).Error)
	assert.Equal(t, string(model.StatusInUse), archived.Status)
	assert.Equal(t, firstObservedAt.Unix(), archived.PeriodStart.Unix())
	assert.WithinDuration(t, firstObservedAt.Add(25*time.Minute), archived.PeriodEnd, 2*time.Second)
	assert.True(t, archived.ObservedAt.After(firstObservedAt) || archived.ObservedAt.Equal(firstObservedAt))
}
