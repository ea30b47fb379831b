package feed

import (
	"context"
	"errors"
	"log"
	"time"

	"gym-status-client/internal/fetch"
)

// PollFeed fetches the full equipment collection on a fixed interval. The
// interval is floored in config to bound the request rate against the
// backend.
type PollFeed struct {
	engine   *Engine
	interval time.Duration
}

// NewPollFeed creates the pull transport.
func NewPollFeed(engine *Engine, interval time.Duration) *PollFeed {
	return &PollFeed{engine: engine, interval: interval}
}

// Run polls until ctx is cancelled. Errors inside a tick are contained to
// that tick; only session expiry stops the loop.
func (f *PollFeed) Run(ctx context.Context) error {
	timer := time.NewTimer(f.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if err := f.tick(ctx); err != nil {
				if errors.Is(err, fetch.ErrSessionExpired) {
					return err
				}
				log.Printf("Equipment poll tick failed: %v", err)
			}
			timer.Reset(f.interval)
		}
	}
}

// tick performs one poll round. A tick that fails leaves the mirror
// untouched.
func (f *PollFeed) tick(ctx context.Context) error {
	body, err := f.engine.fetchSnapshot(ctx)
	if err != nil {
		if errors.Is(err, fetch.ErrNoCredentials) {
			// Not logged in; nothing to poll with. Callers guard, we skip.
			return nil
		}
		return err
	}
	return f.engine.apply(ctx, body, false)
}
