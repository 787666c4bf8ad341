package syncengine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"maunium.net/go/mautrix/id"

	"github.com/adriaanm/wata/pkg/matrixapi"
)

// IsDirect classifies a room as direct per spec §5: prefer the
// account-data m.direct mapping (selfRoomsInDirect is the set of room ids
// listed under any user in m.direct), falling back to "exactly two
// joined/invited members including self" when the mapping doesn't cover
// this room. An m.room.member is_direct flag seen during sync also
// counts as preferred evidence and is folded into hasDirectFlag by
// RoomState.ApplyStateEvent.
func IsDirect(room *RoomState, selfID id.UserID, selfRoomsInDirect map[id.RoomID]bool) bool {
	if selfRoomsInDirect[room.RoomID] {
		return true
	}
	_, _, isDirect, hasDirectFlag := room.Snapshot()
	if hasDirectFlag {
		return isDirect
	}
	members := room.JoinedMembers()
	if len(members) != 2 {
		return false
	}
	for _, member := range members {
		if member == selfID {
			return true
		}
	}
	return false
}

// ParseDirectAccountData turns the raw m.direct account-data content
// (user id -> list of room ids) into the room-id set IsDirect expects.
func ParseDirectAccountData(content map[string]any) map[id.RoomID]bool {
	out := make(map[id.RoomID]bool)
	for _, rawRoomIDs := range content {
		roomIDs, ok := rawRoomIDs.([]any)
		if !ok {
			continue
		}
		for _, raw := range roomIDs {
			if s, ok := raw.(string); ok {
				out[id.RoomID(s)] = true
			}
		}
	}
	return out
}

// PrimaryDMRoom picks the canonical room among candidates that all
// represent a DM with the same peer, per spec §5's tie-break: the oldest
// m.room.create timestamp wins, then lexicographically smallest room id.
func PrimaryDMRoom(candidates []*RoomState) *RoomState {
	if len(candidates) == 0 {
		return nil
	}
	sorted := append([]*RoomState(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		_, createI, _, _ := sorted[i].Snapshot()
		_, createJ, _, _ := sorted[j].Snapshot()
		if createI != createJ {
			return createI < createJ
		}
		return sorted[i].RoomID < sorted[j].RoomID
	})
	return sorted[0]
}

// dmIndex holds the three caches spec §4.5's DM-room service keeps:
// the canonical room per contact, every known room per contact (a
// contact can accumulate more than one DM room over time, e.g. across
// clients), and the reverse lookup from room to contact.
type dmIndex struct {
	mu               sync.Mutex
	primaryByContact map[id.UserID]id.RoomID
	allByContact     map[id.UserID][]id.RoomID
	contactByRoom    map[id.RoomID]id.UserID
}

func newDMIndex() *dmIndex {
	return &dmIndex{
		primaryByContact: make(map[id.UserID]id.RoomID),
		allByContact:     make(map[id.UserID][]id.RoomID),
		contactByRoom:    make(map[id.RoomID]id.UserID),
	}
}

func (d *dmIndex) cache(contact id.UserID, primary id.RoomID, all []id.RoomID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.primaryByContact[contact] = primary
	d.allByContact[contact] = all
	for _, roomID := range all {
		d.contactByRoom[roomID] = contact
	}
}

func (d *dmIndex) lookupPrimary(contact id.UserID) (id.RoomID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	roomID, ok := d.primaryByContact[contact]
	return roomID, ok
}

// ContactForRoom returns the contact a known DM room belongs to.
func (e *Engine) ContactForRoom(roomID id.RoomID) (id.UserID, bool) {
	e.dm.mu.Lock()
	defer e.dm.mu.Unlock()
	contact, ok := e.dm.contactByRoom[roomID]
	return contact, ok
}

// RoomsForContact returns every room cached as a DM with contact.
func (e *Engine) RoomsForContact(contact id.UserID) []id.RoomID {
	e.dm.mu.Lock()
	defer e.dm.mu.Unlock()
	out := make([]id.RoomID, len(e.dm.allByContact[contact]))
	copy(out, e.dm.allByContact[contact])
	return out
}

// EnsureDMRoom returns the room id of a direct-message room with
// contact, implementing spec §4.5's three-step ensure_dm_room logic:
//
//  1. If a primary room is already cached for contact and it is still
//     joined, return it without touching the homeserver.
//  2. Otherwise scan known rooms for two-member, is_direct candidates
//     that include contact, sorted by (createTs, roomId) via
//     PrimaryDMRoom, cache the winner, and return it.
//  3. Otherwise create a new direct room via CreateRoom, invite
//     contact, record the room under the account's m.direct data, and
//     cache it as the new primary.
func (e *Engine) EnsureDMRoom(ctx context.Context, contact id.UserID) (id.RoomID, error) {
	if roomID, ok := e.dm.lookupPrimary(contact); ok {
		if room := e.Room(roomID); room != nil {
			return roomID, nil
		}
	}

	var candidates []*RoomState
	var candidateIDs []id.RoomID
	e.mu.RLock()
	direct := e.selfDirectRooms
	e.mu.RUnlock()
	for _, room := range e.Rooms() {
		members := room.JoinedMembers()
		if len(members) != 2 {
			continue
		}
		isContact := false
		for _, member := range members {
			if member == contact {
				isContact = true
				break
			}
		}
		if !isContact || !IsDirect(room, e.selfID, direct) {
			continue
		}
		candidates = append(candidates, room)
		candidateIDs = append(candidateIDs, room.RoomID)
	}
	if primary := PrimaryDMRoom(candidates); primary != nil {
		e.dm.cache(contact, primary.RoomID, candidateIDs)
		return primary.RoomID, nil
	}

	roomID, err := e.client.CreateRoom(ctx, matrixapi.CreateRoomRequest{
		IsDirect: true,
		Invite:   []id.UserID{contact},
		Preset:   "trusted_private_chat",
	})
	if err != nil {
		return "", fmt.Errorf("syncengine: create dm room for %s: %w", contact, err)
	}
	if err := e.client.InviteToRoom(ctx, roomID, contact); err != nil {
		e.log.Warn().Err(err).Str("contact", string(contact)).Str("room_id", string(roomID)).Msg("explicit invite to new dm room failed")
	}
	if err := e.recordDirectRoom(ctx, contact, roomID); err != nil {
		e.log.Warn().Err(err).Msg("failed to update m.direct account data")
	}
	e.dm.cache(contact, roomID, []id.RoomID{roomID})
	return roomID, nil
}

// recordDirectRoom adds roomID under contact in the account's m.direct
// data, preserving any rooms already listed for other contacts.
func (e *Engine) recordDirectRoom(ctx context.Context, contact id.UserID, roomID id.RoomID) error {
	content, err := e.client.GetAccountData(ctx, e.selfID, "m.direct")
	if err != nil || content == nil {
		content = make(map[string]any)
	}

	var rooms []string
	found := false
	if existing, ok := content[string(contact)].([]any); ok {
		for _, raw := range existing {
			if s, ok := raw.(string); ok {
				rooms = append(rooms, s)
				if s == string(roomID) {
					found = true
				}
			}
		}
	}
	if !found {
		rooms = append(rooms, string(roomID))
	}
	content[string(contact)] = rooms

	e.mu.Lock()
	if e.selfDirectRooms == nil {
		e.selfDirectRooms = make(map[id.RoomID]bool)
	}
	e.selfDirectRooms[roomID] = true
	e.directDataSeen = true
	e.mu.Unlock()

	return e.client.SetAccountData(ctx, e.selfID, "m.direct", content)
}
