// Package watch polls the user's reservation list and surfaces time-bounded
// "your turn" notifications. A reservation that enters NOTIFIED is surfaced
// at most once for the watcher's lifetime; its countdown expires and
// self-removes.
package watch

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
	"gym-status-client/internal/model"
	"gym-status-client/internal/normalize"
)

const reservationsPath = "/api/reservations/"

// Notifier receives each surfaced notification for out-of-band delivery
// (web push). May be nil.
type Notifier interface {
	Notify(n model.ActiveNotification)
}

// Watcher owns its "already shown" set and active countdown list; it is not a
// process-wide singleton, so independent instances (tests included) do not
// interfere.
type Watcher struct {
	client   *fetch.Client
	interval time.Duration
	window   time.Duration // fallback countdown window when the backend omits an expiry
	tick     time.Duration // countdown granularity, one second outside tests
	notifier Notifier

	onSessionExpired func()

	mu          sync.Mutex
	shown       map[string]struct{}
	active      []*model.ActiveNotification
	countdownOn bool
	done        chan struct{}
	closeOnce   sync.Once
}

// New creates a Watcher. window is the default notification window applied
// when a NOTIFIED reservation carries no expiry of its own.
func New(client *fetch.Client, interval, window time.Duration, notifier Notifier, onSessionExpired func()) *Watcher {
	return &Watcher{
		client:           client,
		interval:         interval,
		window:           window,
		tick:             time.Second,
		notifier:         notifier,
		onSessionExpired: onSessionExpired,
		shown:            make(map[string]struct{}),
		done:             make(chan struct{}),
	}
}

// Run polls until ctx is cancelled or the session expires. Errors inside a
// poll tick are contained to that tick.
func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case <-timer.C:
			if err := w.poll(ctx); err != nil {
				if errors.Is(err, fetch.ErrSessionExpired) {
					log.Println("Session expired; reservation watcher stopped.")
					if w.onSessionExpired != nil {
						w.onSessionExpired()
					}
					w.Stop()
					return
				}
				log.Printf("Reservation poll failed: %v", err)
			}
			timer.Reset(w.interval)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) error {
	resp, err := w.client.DoJSON(ctx, http.MethodGet, reservationsPath, nil)
	if err != nil {
		if errors.Is(err, fetch.ErrNoCredentials) {
			// Not logged in yet; nothing to watch.
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reservation poll returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read reservation response: %w", err)
	}
	reservations, err := normalize.ReservationList(body)
	if err != nil {
		return err
	}

	w.Observe(time.Now(), reservations)
	return nil
}

// Observe folds one fetched reservation list into the active notification
// set. The shown set guarantees at most one ActiveNotification is ever
// created per reservation id, however many ticks see it in NOTIFIED state.
func (w *Watcher) Observe(now time.Time, reservations []model.ReservationRecord) {
	var surfaced []model.ActiveNotification

	w.mu.Lock()
	for i := range reservations {
		r := &reservations[i]
		if r.Status != model.ReservationNotified {
			continue
		}
		if _, ok := w.shown[r.ID]; ok {
			continue
		}
		w.shown[r.ID] = struct{}{}

		secs := secondsLeft(r, now, w.window)
		if secs <= 0 {
			// Expired before we ever saw it; no countdown is created.
			continue
		}
		n := &model.ActiveNotification{
			ReservationID: r.ID,
			EquipmentName: r.EquipmentName,
			SecondsLeft:   secs,
		}
		w.active = append(w.active, n)
		surfaced = append(surfaced, *n)
	}
	w.startCountdownLocked()
	w.mu.Unlock()

	if w.notifier != nil {
		for _, n := range surfaced {
			w.notifier.Notify(n)
		}
	}
}

// secondsLeft computes the remaining action window, clamped to >= 0. An
// explicit notification_expires_at always wins over the timeout-derived
// deadline.
func secondsLeft(r *model.ReservationRecord, now time.Time, fallback time.Duration) int {
	var deadline time.Time
	switch {
	case r.ExpiresAt != nil:
		deadline = *r.ExpiresAt
	case r.NotifiedAt != nil:
		window := fallback
		if r.WindowSeconds > 0 {
			window = time.Duration(r.WindowSeconds) * time.Second
		}
		deadline = r.NotifiedAt.Add(window)
	default:
		return 0
	}

	secs := int(deadline.Sub(now) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// Active returns a copy of the current notifications.
func (w *Watcher) Active() []model.ActiveNotification {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.ActiveNotification, 0, len(w.active))
	for _, n := range w.active {
		out = append(out, *n)
	}
	return out
}

// Dismiss removes the notification immediately. The reservation id stays in
// the shown set, so the same transition is never surfaced twice.
func (w *Watcher) Dismiss(reservationID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, n := range w.active {
		if n.ReservationID == reservationID {
			w.active = append(w.active[:i], w.active[i+1:]...)
			return true
		}
	}
	return false
}

// Stop cancels the poll loop and any running countdown.
func (w *Watcher) Stop() {
	w.closeOnce.Do(func() { close(w.done) })
}

// startCountdownLocked launches the one-second ticker when notifications
// exist and none is running. The ticker carries no idle cost: it exits as
// soon as the list drains.
func (w *Watcher) startCountdownLocked() {
	if w.countdownOn || len(w.active) == 0 {
		return
	}
	select {
	case <-w.done:
		return
	default:
	}
	w.countdownOn = true
	go w.countdown()
}

func (w *Watcher) countdown() {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if w.step() {
				return
			}
		}
	}
}

// step decrements every active countdown and drops entries at zero. It
// returns true when the list drained and the ticker should stop.
func (w *Watcher) step() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.active[:0]
	for _, n := range w.active {
		n.SecondsLeft--
		if n.SecondsLeft > 0 {
			kept = append(kept, n)
		}
	}
	w.active = kept
	if len(w.active) == 0 {
		w.countdownOn = false
		return true
	}
	return false
}
