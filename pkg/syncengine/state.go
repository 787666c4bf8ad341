// Package syncengine implements the room-sync state machine described in
// spec §5: it keeps joined-room state in memory, long-polls the
// homeserver via pkg/matrixapi, classifies rooms as direct or group,
// buffers events that arrive before their room's state is known, and
// exposes backfill pagination. Grounded on the teacher's
// pkg/connector/chatsync.go (state accumulation per chat) and
// sync_controller.go (goroutine-plus-stop-channel loop shape), adapted
// from iMessage chat state onto Matrix room state using
// maunium.net/go/mautrix's id/event packages.
package syncengine

import (
	"sync"
	"time"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// MemberInfo is one room member's known state, per spec §5's data model.
type MemberInfo struct {
	UserID      id.UserID
	Membership  string
	DisplayName string
	AvatarURL   string
}

// ReceiptInfo is the latest known read marker for one user in a room.
type ReceiptInfo struct {
	EventID   id.EventID
	Timestamp int64
}

// ReceiptUpdate describes one user's read marker newly advancing to
// cover EventID, returned by ApplyReceipt so callers can emit one
// notification per change.
type ReceiptUpdate struct {
	EventID   id.EventID
	UserID    id.UserID
	Timestamp int64
}

// RoomState holds the accumulated view of one room: its name/avatar,
// membership, timeline tail, receipts and account data. All access goes
// through its methods, which hold mu for the duration.
type RoomState struct {
	mu sync.RWMutex

	RoomID          id.RoomID
	Name            string
	CanonicalAlias  string
	AvatarURL       string
	Topic           string
	IsDirectFlag    bool
	HasDirectFlag   bool
	CreateTimestamp int64
	Creator         id.UserID

	Members  map[id.UserID]*MemberInfo
	Timeline []*event.Event
	// Receipts holds, per event id, the set of user ids who have read
	// at least up to that event. It is monotonic: ApplyReceipt only
	// ever adds user ids to a set, never removes them, even once that
	// user's marker advances past the event (receipts[e] subseteq
	// receipts'[e] for all e).
	Receipts    map[id.EventID]map[id.UserID]struct{}
	AccountData map[string]map[string]any

	latestReceipt map[id.UserID]ReceiptInfo

	seenEvents map[id.EventID]struct{}
	stateSeen  bool

	timelineCap int
}

// defaultTimelineCap bounds how many timeline events a RoomState retains
// in memory, per spec §5's buffer sizing notes.
const defaultTimelineCap = 200

// NewRoomState creates an empty room state ready for ApplyStateEvent and
// ApplyTimelineEvent calls.
func NewRoomState(roomID id.RoomID) *RoomState {
	return &RoomState{
		RoomID:        roomID,
		Members:       make(map[id.UserID]*MemberInfo),
		Receipts:      make(map[id.EventID]map[id.UserID]struct{}),
		AccountData:   make(map[string]map[string]any),
		latestReceipt: make(map[id.UserID]ReceiptInfo),
		seenEvents:    make(map[id.EventID]struct{}),
		timelineCap:   defaultTimelineCap,
	}
}

// ApplyStateEvent folds a state event into the room's derived fields, per
// spec §5's state-application rules: m.room.name, m.room.canonical_alias,
// m.room.avatar, m.room.topic, m.room.member and m.room.create.
func (r *RoomState) ApplyStateEvent(evt *event.Event) {
	if evt == nil || evt.StateKey == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateSeen = true

	switch evt.Type.Type {
	case "m.room.name":
		if name, ok := evt.Content.Raw["name"].(string); ok {
			r.Name = name
		}
	case "m.room.canonical_alias":
		if alias, ok := evt.Content.Raw["alias"].(string); ok {
			r.CanonicalAlias = alias
		}
	case "m.room.avatar":
		if url, ok := evt.Content.Raw["url"].(string); ok {
			r.AvatarURL = url
		}
	case "m.room.topic":
		if topic, ok := evt.Content.Raw["topic"].(string); ok {
			r.Topic = topic
		}
	case "m.room.create":
		r.CreateTimestamp = int64(evt.Timestamp)
		r.Creator = evt.Sender
	case "m.room.member":
		member := r.Members[id.UserID(*evt.StateKey)]
		if member == nil {
			member = &MemberInfo{UserID: id.UserID(*evt.StateKey)}
			r.Members[member.UserID] = member
		}
		if ms, ok := evt.Content.Raw["membership"].(string); ok {
			member.Membership = ms
		}
		if dn, ok := evt.Content.Raw["displayname"].(string); ok {
			member.DisplayName = dn
		}
		if av, ok := evt.Content.Raw["avatar_url"].(string); ok {
			member.AvatarURL = av
		}
		if isDirect, ok := evt.Content.Raw["is_direct"].(bool); ok && isDirect {
			r.IsDirectFlag = true
			r.HasDirectFlag = true
		}
	}
}

// ApplyTimelineEvent appends a non-state timeline event, deduplicating by
// event id and trimming to timelineCap, per spec §5's dedup invariant.
func (r *RoomState) ApplyTimelineEvent(evt *event.Event) bool {
	if evt == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.seenEvents[evt.ID]; seen {
		return false
	}
	r.seenEvents[evt.ID] = struct{}{}
	r.Timeline = append(r.Timeline, evt)
	if len(r.Timeline) > r.timelineCap {
		drop := len(r.Timeline) - r.timelineCap
		for _, dropped := range r.Timeline[:drop] {
			delete(r.seenEvents, dropped.ID)
		}
		r.Timeline = r.Timeline[drop:]
	}
	return true
}

// PrependTimelineEvents inserts deduped backfilled events at the front
// of the timeline, oldest first, per spec §5's backfill ordering rule:
// history arrives after the live tail is already populated, so it is
// inserted before it rather than appended after it. When the result
// exceeds timelineCap, the excess is trimmed from the front (the
// oldest of the newly-inserted events), never from the back, so a
// backfill call can never evict events newer than what it imported.
// Returns the number of events actually inserted.
func (r *RoomState) PrependTimelineEvents(evts []*event.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fresh []*event.Event
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		if _, seen := r.seenEvents[evt.ID]; seen {
			continue
		}
		r.seenEvents[evt.ID] = struct{}{}
		fresh = append(fresh, evt)
	}
	if len(fresh) == 0 {
		return 0
	}
	r.Timeline = append(fresh, r.Timeline...)
	if len(r.Timeline) > r.timelineCap {
		drop := len(r.Timeline) - r.timelineCap
		for _, dropped := range r.Timeline[:drop] {
			delete(r.seenEvents, dropped.ID)
		}
		r.Timeline = r.Timeline[drop:]
	}
	return len(fresh)
}

// ApplyReceipt merges one m.receipt ephemeral event's content into
// Receipts and returns the set of (event, user) pairs newly added.
// receipts[e] only ever grows: once a user id is recorded against an
// event it is never removed, even after that user's own marker
// advances past it, per spec §3's monotonic receipt invariant.
func (r *RoomState) ApplyReceipt(evt *event.Event) []ReceiptUpdate {
	if evt == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var updates []ReceiptUpdate
	for eventIDStr, receiptTypes := range evt.Content.Raw {
		typesMap, ok := receiptTypes.(map[string]any)
		if !ok {
			continue
		}
		readUsers, ok := typesMap["m.read"].(map[string]any)
		if !ok {
			continue
		}
		for userIDStr, detail := range readUsers {
			ts := int64(0)
			if detailMap, ok := detail.(map[string]any); ok {
				if tsVal, ok := detailMap["ts"].(float64); ok {
					ts = int64(tsVal)
				}
			}
			userID := id.UserID(userIDStr)
			eventID := id.EventID(eventIDStr)

			if existing, has := r.latestReceipt[userID]; has && ts < existing.Timestamp {
				continue
			}
			r.latestReceipt[userID] = ReceiptInfo{EventID: eventID, Timestamp: ts}

			if r.Receipts[eventID] == nil {
				r.Receipts[eventID] = make(map[id.UserID]struct{})
			}
			if _, already := r.Receipts[eventID][userID]; already {
				continue
			}
			r.Receipts[eventID][userID] = struct{}{}
			updates = append(updates, ReceiptUpdate{EventID: eventID, UserID: userID, Timestamp: ts})
		}
	}
	return updates
}

// ReceiptUsers returns the user ids recorded as having read at least up
// to eventID.
func (r *RoomState) ReceiptUsers(eventID id.EventID) []id.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]id.UserID, 0, len(r.Receipts[eventID]))
	for userID := range r.Receipts[eventID] {
		out = append(out, userID)
	}
	return out
}

// LatestReceipt returns a user's most recently recorded read marker.
func (r *RoomState) LatestReceipt(userID id.UserID) (ReceiptInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.latestReceipt[userID]
	return info, ok
}

// ApplyAccountData replaces one room account-data type's content.
func (r *RoomState) ApplyAccountData(dataType string, content map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.AccountData[dataType] = content
}

// HasState reports whether any state event has been applied to this
// room yet. The sync engine uses this to decide whether a room is
// classified (DM vs group) enough to stop buffering its timeline
// events, per spec §5's event-buffer service.
func (r *RoomState) HasState() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stateSeen
}

// Member returns one user's known member state, or nil if unknown.
func (r *RoomState) Member(userID id.UserID) *MemberInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.Members[userID]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// JoinedMembers returns the user ids currently in "join" or "invite"
// membership.
func (r *RoomState) JoinedMembers() []id.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []id.UserID
	for uid, m := range r.Members {
		if m.Membership == "join" || m.Membership == "invite" {
			out = append(out, uid)
		}
	}
	return out
}

// Snapshot returns the fields used for DM classification and listing,
// taken under the read lock.
func (r *RoomState) Snapshot() (name string, createTS int64, isDirect, hasDirectFlag bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Name, r.CreateTimestamp, r.IsDirectFlag, r.HasDirectFlag
}

// LastActivity returns the timestamp of the newest timeline event, or
// zero if the timeline is empty.
func (r *RoomState) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.Timeline) == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(r.Timeline[len(r.Timeline)-1].Timestamp))
}
