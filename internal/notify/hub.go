// Package notify fans "seats changed" events out to live subscribers.
//
// Hub keeps an explicit room map from showtime id to subscribers.  A
// subscriber is usually a WebSocket Client; delivery never blocks, so a
// slow client loses events instead of stalling the booking path.  In a
// multi-instance deployment RedisBroadcaster publishes events to Redis
// and RedisRelay feeds them back into every instance's Hub.
package notify

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/seatd/internal/metrics"
)

// Message types exchanged with WebSocket clients.
const (
	MessageTypeSeatsUpdate   = "seats_update"
	MessageTypeJoinShowtime  = "join_showtime"
	MessageTypeLeaveShowtime = "leave_showtime"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeJoined        = "joined"
	MessageTypeError         = "error"
)

// Message is the JSON frame sent to and received from clients.
type Message struct {
	Type       string `json:"type"`
	ShowtimeID string `json:"showtimeId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SeatsUpdate builds the event published when a showtime's seat map
// changed.  It carries no seat data; clients re-fetch the seat map.
func SeatsUpdate(showtimeID string) Message {
	return Message{Type: MessageTypeSeatsUpdate, ShowtimeID: showtimeID}
}

// Subscriber receives messages for the rooms it joined.
type Subscriber interface {
	// ID orders subscribers for delivery.
	ID() uint64
	// Deliver queues msg without blocking and reports whether it was
	// accepted.
	Deliver(msg Message) bool
}

// Hub maps showtime ids to subscribers.  The zero value is not usable;
// call NewHub.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[Subscriber]struct{}
	joined map[Subscriber]map[string]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[Subscriber]struct{}),
		joined: make(map[Subscriber]map[string]struct{}),
	}
}

// Join subscribes sub to a showtime room.  Joining twice is a no-op.
func (h *Hub) Join(showtimeID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[showtimeID]
	if !ok {
		room = make(map[Subscriber]struct{})
		h.rooms[showtimeID] = room
	}
	room[sub] = struct{}{}
	rooms, ok := h.joined[sub]
	if !ok {
		rooms = make(map[string]struct{})
		h.joined[sub] = rooms
	}
	rooms[showtimeID] = struct{}{}
}

// Leave removes sub from one room.
func (h *Hub) Leave(showtimeID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(showtimeID, sub)
}

// LeaveAll removes sub from every room it joined.  Called on disconnect.
func (h *Hub) LeaveAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.joined[sub] {
		h.leaveLocked(id, sub)
	}
	delete(h.joined, sub)
}

func (h *Hub) leaveLocked(showtimeID string, sub Subscriber) {
	if room, ok := h.rooms[showtimeID]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, showtimeID)
		}
	}
	if rooms, ok := h.joined[sub]; ok {
		delete(rooms, showtimeID)
		if len(rooms) == 0 {
			delete(h.joined, sub)
		}
	}
}

// SeatsChanged sends a seats_update to every subscriber of the
// showtime.  It never fails; the error return satisfies
// booking.Notifier.
func (h *Hub) SeatsChanged(_ context.Context, showtimeID string) error {
	h.Publish(showtimeID, SeatsUpdate(showtimeID))
	return nil
}

// Publish delivers msg to the subscribers of a room in ID order and
// returns how many accepted it.
func (h *Hub) Publish(showtimeID string, msg Message) int {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.rooms[showtimeID]))
	for sub := range h.rooms[showtimeID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].ID() < subs[j].ID() })
	delivered := 0
	for _, sub := range subs {
		if sub.Deliver(msg) {
			delivered++
		} else {
			metrics.DroppedMessagesTotal.Inc()
		}
	}
	if delivered > 0 {
		metrics.BroadcastsTotal.Inc()
	}
	return delivered
}

// RoomSize returns the number of subscribers of a showtime.
func (h *Hub) RoomSize(showtimeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[showtimeID])
}
