package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gorilla/websocket"

	"github.com/aydetodd/todocerca-tracking/internal/fanout"
	"github.com/aydetodd/todocerca-tracking/internal/presence"
	"github.com/aydetodd/todocerca-tracking/internal/sink"
	"github.com/aydetodd/todocerca-tracking/internal/store"
)

// subjectHeader carries the caller's subject identity. Authentication
// itself happens upstream (gateway); the handlers only need the claim.
const subjectHeader = "X-Subject-ID"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	presence *presence.Store
	sink     *sink.Sink
	hub      *fanout.Hub
	webpush  *webpush.Options
	upgrader websocket.Upgrader
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, p *presence.Store, sk *sink.Sink, h *fanout.Hub, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		presence: p,
		sink:     sk,
		hub:      h,
		webpush:  webpushOptions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}
