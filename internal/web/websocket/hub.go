// Package websocket streams live notifications to connected profiles.
// Every connection joins the room of the profile that opened it.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type delivery struct {
	room uuid.UUID
	// only, when set, restricts delivery to a single connection
	only *Client
	data []byte
}

// Hub tracks connected clients by profile and fans messages out to them.
// The rooms map is only touched by the Run goroutine.
type Hub struct {
	logger *zap.Logger

	register   chan *Client
	unregister chan *Client
	publish    chan delivery

	rooms   map[uuid.UUID]map[*Client]struct{}
	clients atomic.Int64

	stopped  chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub; call Run to start it
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger.Named("ws"),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		publish:    make(chan delivery, 1024),
		rooms:      make(map[uuid.UUID]map[*Client]struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run processes registrations and deliveries until ctx is cancelled, then
// disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.stopped) })

	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for c := range room {
					close(c.send)
				}
			}
			h.rooms = make(map[uuid.UUID]map[*Client]struct{})
			h.clients.Store(0)
			return

		case c := <-h.register:
			room := h.rooms[c.ProfileID]
			if room == nil {
				room = make(map[*Client]struct{})
				h.rooms[c.ProfileID] = room
			}
			room[c] = struct{}{}
			h.clients.Add(1)
			h.logger.Debug("client connected",
				zap.String("client_id", c.ID), zap.String("profile_id", c.ProfileID.String()))

		case c := <-h.unregister:
			h.remove(c)

		case d := <-h.publish:
			for c := range h.rooms[d.room] {
				if d.only != nil && d.only != c {
					continue
				}
				select {
				case c.send <- d.data:
				default:
					// slow consumer; drop it rather than stall the hub
					h.logger.Warn("dropping slow client", zap.String("client_id", c.ID))
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	room, ok := h.rooms[c.ProfileID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.ProfileID)
	}
	close(c.send)
	h.clients.Add(-1)
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// Publish queues msg for every connection of profileID. It never blocks;
// when the hub is stopped or saturated the message is dropped, since the
// notification row remains readable through the API.
func (h *Hub) Publish(profileID uuid.UUID, msg *Message) bool {
	return h.deliver(delivery{room: profileID}, msg)
}

// Notify wraps payload in a notification frame and publishes it to profileID
func (h *Hub) Notify(profileID uuid.UUID, payload interface{}) bool {
	msg, err := NewMessage(TypeNotification, payload)
	if err != nil {
		h.logger.Error("build notification", zap.Error(err))
		return false
	}
	return h.Publish(profileID, msg)
}

func (h *Hub) deliver(d delivery, msg *Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", zap.Error(err))
		return false
	}
	select {
	case <-h.stopped:
		return false
	default:
	}
	select {
	case h.publish <- delivery{room: d.room, only: d.only, data: data}:
		return true
	default:
		h.logger.Warn("publish queue full, message dropped", zap.String("profile_id", d.room.String()))
		return false
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.clients.Load())
}

// Done is closed once Run has returned
func (h *Hub) Done() <-chan struct{} {
	return h.stopped
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}
