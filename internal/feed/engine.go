// Package feed keeps the equipment mirror fresh. An Engine performs the
// one-time initial load and then hands off to the configured transport; both
// the poll and push transports drive the same reconciliation path.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"gym-status-client/internal/fetch"
	"gym-status-client/internal/mirror"
	"gym-status-client/internal/model"
	"gym-status-client/internal/normalize"
)

const equipmentPath = "/api/equipment/"

// Recorder folds reconciled snapshots into the local transition log.
type Recorder interface {
	Record(ctx context.Context, now time.Time, records []*model.EquipmentRecord) error
}

// EquipmentFeed keeps the mirror fresh after the initial snapshot.
type EquipmentFeed interface {
	Run(ctx context.Context) error
}

// Update is one reconciled snapshot fanned out to local subscribers.
type Update struct {
	Initial bool
	Records []*model.EquipmentRecord
	Changed []string
}

// Engine owns the mirror's lifecycle: initial load with a retry affordance,
// then continuous updates through the transport.
type Engine struct {
	client   *fetch.Client
	mirror   *mirror.Mirror
	recorder Recorder // optional
	feed     EquipmentFeed

	onSessionExpired func()
	retryCh          chan struct{}

	mu      sync.Mutex
	loadErr error
	loaded  bool
	subs    map[chan Update]struct{}
}

// New creates an Engine. The transport is attached with UseFeed before Run.
func New(client *fetch.Client, m *mirror.Mirror, recorder Recorder, onSessionExpired func()) *Engine {
	return &Engine{
		client:           client,
		mirror:           m,
		recorder:         recorder,
		onSessionExpired: onSessionExpired,
		retryCh:          make(chan struct{}, 1),
		subs:             make(map[chan Update]struct{}),
	}
}

// UseFeed attaches the transport that takes over after the initial load.
func (e *Engine) UseFeed(feed EquipmentFeed) {
	e.feed = feed
}

// Run blocks until ctx is cancelled. A failed initial load parks the engine
// in an error state until RequestReload is called; a transport error leaves
// the last-known mirror in place.
func (e *Engine) Run(ctx context.Context) {
	for {
		err := e.initialLoad(ctx)
		if err == nil {
			break
		}
		if errors.Is(err, fetch.ErrSessionExpired) {
			e.expireSession()
			return
		}
		e.setLoadErr(err)
		log.Printf("Initial equipment load failed: %v", err)
		select {
		case <-ctx.Done():
			return
		case <-e.retryCh:
			log.Println("Retrying initial equipment load...")
		}
	}

	if e.feed == nil {
		log.Println("No equipment feed configured; mirror will not receive updates.")
		<-ctx.Done()
		return
	}
	if err := e.feed.Run(ctx); err != nil {
		if errors.Is(err, fetch.ErrSessionExpired) {
			e.expireSession()
			return
		}
		// Stale-but-available: keep the last good mirror.
		log.Printf("Equipment feed stopped: %v", err)
	}
}

// RequestReload asks a parked engine to retry the initial load. Safe to call
// at any time; extra requests collapse into one.
func (e *Engine) RequestReload() {
	select {
	case e.retryCh <- struct{}{}:
	default:
	}
}

// LoadError reports the pending initial-load failure, if any. The API layer
// serves a distinct error state (with a reload affordance) while this is
// non-nil.
func (e *Engine) LoadError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}
	return e.loadErr
}

// Subscribe registers a local consumer of reconciled snapshots. The returned
// cancel func must be called on teardown.
func (e *Engine) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 8)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()
	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) initialLoad(ctx context.Context) error {
	body, err := e.fetchSnapshot(ctx)
	if err != nil {
		return err
	}
	return e.apply(ctx, body, true)
}

func (e *Engine) fetchSnapshot(ctx context.Context) ([]byte, error) {
	resp, err := e.client.DoJSON(ctx, http.MethodGet, equipmentPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("equipment fetch returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read equipment response: %w", err)
	}
	return body, nil
}

// apply is the single reconciliation path shared by both transports.
func (e *Engine) apply(ctx context.Context, data []byte, initial bool) error {
	records, err := normalize.EquipmentList(data)
	if err != nil {
		return err
	}

	changed := e.mirror.Reconcile(records, initial)

	if e.recorder != nil {
		if err := e.recorder.Record(ctx, time.Now().UTC(), e.mirror.Snapshot()); err != nil {
			log.Printf("Failed to record status transitions: %v", err)
		}
	}

	if initial {
		e.mu.Lock()
		e.loaded = true
		e.loadErr = nil
		e.mu.Unlock()
	}

	e.publish(Update{Initial: initial, Records: e.mirror.Snapshot(), Changed: changed})
	return nil
}

func (e *Engine) setLoadErr(err error) {
	e.mu.Lock()
	e.loadErr = err
	e.mu.Unlock()
}

func (e *Engine) expireSession() {
	log.Println("Session expired; equipment updates stopped.")
	if e.onSessionExpired != nil {
		e.onSessionExpired()
	}
}

// publish never blocks; a slow subscriber misses intermediate snapshots and
// catches up on the next one.
func (e *Engine) publish(u Update) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
