package feed

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"

	"gym-status-client/internal/fetch"
)

const streamPath = "/api/equipment/stream"

// PushFeed consumes the backend's server-sent equipment stream. The stream
// carries a named "initial" event with the full starting snapshot, then
// default messages with subsequent snapshots. The feed does not reconnect on
// its own: a broken channel leaves the last-known mirror in place.
type PushFeed struct {
	engine *Engine
	client *fetch.Client
}

// NewPushFeed creates the push transport.
func NewPushFeed(engine *Engine, client *fetch.Client) *PushFeed {
	return &PushFeed{engine: engine, client: client}
}

// Run subscribes to the stream and blocks until it breaks or ctx is
// cancelled.
func (f *PushFeed) Run(ctx context.Context) error {
	access, err := f.client.Access()
	if err != nil {
		return err
	}

	streamURL := f.client.BaseURL() + streamPath
	if access != "" {
		streamURL += "?access_token=" + url.QueryEscape(access)
	}

	sseClient := sse.NewClient(streamURL)
	// No auto-reconnect: the fallback is polling, selected by configuration.
	sseClient.ReconnectStrategy = &backoff.StopBackOff{}

	err = sseClient.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		f.handle(ctx, msg)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("equipment stream closed: %w", err)
	}
	return nil
}

func (f *PushFeed) handle(ctx context.Context, msg *sse.Event) {
	data := bytes.TrimSpace(msg.Data)
	if len(data) == 0 {
		return
	}
	switch string(msg.Event) {
	case "initial":
		// First paint: reconcile without flash emphasis.
		if err := f.engine.apply(ctx, data, true); err != nil {
			log.Printf("Failed to apply initial stream snapshot: %v", err)
		}
	case "heartbeat":
		// Keepalive only.
	default:
		if err := f.engine.apply(ctx, data, false); err != nil {
			log.Printf("Failed to apply stream update: %v", err)
		}
	}
}
