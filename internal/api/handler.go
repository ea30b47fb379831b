package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"gym-status-client/internal/feed"
	"gym-status-client/internal/history"
	"gym-status-client/internal/mirror"
	"gym-status-client/internal/watch"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine  *feed.Engine
	mirror  *mirror.Mirror
	watcher *watch.Watcher
	history history.Store
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(engine *feed.Engine, m *mirror.Mirror, watcher *watch.Watcher, hist history.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		engine:  engine,
		mirror:  m,
		watcher: watcher,
		history: hist,
		webpush: webpushOptions,
	}
}
