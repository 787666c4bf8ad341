package syncengine

import (
	"sync"
	"time"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// defaultBufferCapacity and defaultBufferMaxAge implement spec §5's
// event-buffering limits: events that arrive for a room before the
// engine has classified it (DM vs group, or before its Member/Create
// state has synced) are held here rather than dropped or misrouted.
const (
	defaultBufferCapacity = 100
	defaultBufferMaxAge   = 5 * time.Minute
	defaultPruneInterval  = 10 * time.Second
)

type bufferedEvent struct {
	evt      *event.Event
	received time.Time
}

// EventBuffer holds events pending room classification, per room, with a
// per-room capacity and a global max age enforced by a periodic prune.
type EventBuffer struct {
	mu       sync.Mutex
	capacity int
	maxAge   time.Duration
	rooms    map[id.RoomID][]bufferedEvent
}

// NewEventBuffer creates a buffer with the spec's default limits.
func NewEventBuffer() *EventBuffer {
	return &EventBuffer{
		capacity: defaultBufferCapacity,
		maxAge:   defaultBufferMaxAge,
		rooms:    make(map[id.RoomID][]bufferedEvent),
	}
}

// Add appends evt to roomID's pending queue, dropping the oldest entry
// when the per-room capacity is exceeded.
func (b *EventBuffer) Add(roomID id.RoomID, evt *event.Event, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := append(b.rooms[roomID], bufferedEvent{evt: evt, received: now})
	if len(queue) > b.capacity {
		queue = queue[len(queue)-b.capacity:]
	}
	b.rooms[roomID] = queue
}

// Flush removes and returns all pending events for roomID, oldest first.
func (b *EventBuffer) Flush(roomID id.RoomID) []*event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := b.rooms[roomID]
	delete(b.rooms, roomID)
	out := make([]*event.Event, len(queue))
	for i, be := range queue {
		out[i] = be.evt
	}
	return out
}

// Prune drops events older than maxAge across all rooms, per spec §5's
// periodic prune tick.
func (b *EventBuffer) Prune(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for roomID, queue := range b.rooms {
		kept := queue[:0:0]
		for _, be := range queue {
			if now.Sub(be.received) <= b.maxAge {
				kept = append(kept, be)
			}
		}
		if len(kept) == 0 {
			delete(b.rooms, roomID)
		} else {
			b.rooms[roomID] = kept
		}
	}
}

// PendingRooms returns the room ids that currently have buffered events.
func (b *EventBuffer) PendingRooms() []id.RoomID {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]id.RoomID, 0, len(b.rooms))
	for roomID := range b.rooms {
		out = append(out, roomID)
	}
	return out
}
