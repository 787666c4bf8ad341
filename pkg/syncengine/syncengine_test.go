package syncengine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/adriaanm/wata/pkg/matrixapi"
)

func newTestEngine() (*Engine, *matrixapi.FakeClient) {
	fake := matrixapi.NewFakeClient("@alice:test", "DEV1")
	e := New(fake, "@alice:test", zerolog.Nop())
	return e, fake
}

func memberEvent(roomID id.RoomID, stateKey string, membership string, isDirect bool) *event.Event {
	return &event.Event{
		RoomID:    roomID,
		Type:      event.Type{Type: "m.room.member", Class: event.StateEventType},
		StateKey:  &stateKey,
		Sender:    id.UserID(stateKey),
		Timestamp: 1000,
		Content: event.Content{Raw: map[string]any{
			"membership": membership,
			"is_direct":  isDirect,
		}},
	}
}

func createEvent(roomID id.RoomID, creator id.UserID, ts int64) *event.Event {
	return &event.Event{
		RoomID:    roomID,
		Type:      event.Type{Type: "m.room.create", Class: event.StateEventType},
		StateKey:  strPtr(""),
		Sender:    creator,
		Timestamp: ts,
		Content:   event.Content{Raw: map[string]any{}},
	}
}

func strPtr(s string) *string { return &s }

func timelineEvent(roomID id.RoomID, id_ id.EventID, sender id.UserID, ts int64) *event.Event {
	return &event.Event{
		RoomID:    roomID,
		ID:        id_,
		Type:      event.Type{Type: "m.room.message", Class: event.MessageEventType},
		Sender:    sender,
		Timestamp: ts,
		Content:   event.Content{Raw: map[string]any{"body": "hi"}},
	}
}

func TestHandleSyncAppliesJoinedState(t *testing.T) {
	e, _ := newTestEngine()
	roomID := id.RoomID("!room1:test")

	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "batch1",
		Joined: map[id.RoomID]*matrixapi.JoinedRoomSync{
			roomID: {
				State: []*event.Event{
					createEvent(roomID, "@bob:test", 500),
					memberEvent(roomID, "@alice:test", "join", true),
					memberEvent(roomID, "@bob:test", "join", true),
				},
				Timeline: []*event.Event{
					timelineEvent(roomID, "$e1", "@bob:test", 600),
				},
			},
		},
	})

	room := e.Room(roomID)
	require.NotNil(t, room)
	assert.Len(t, room.Timeline, 1)
	assert.Len(t, room.JoinedMembers(), 2)
	assert.Equal(t, "batch1", e.currentSince())
}

func TestHandleSyncDedupesTimelineEvents(t *testing.T) {
	e, _ := newTestEngine()
	roomID := id.RoomID("!room1:test")
	evt := timelineEvent(roomID, "$dup", "@bob:test", 600)

	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "b1",
		Joined: map[id.RoomID]*matrixapi.JoinedRoomSync{
			roomID: {
				State:    []*event.Event{createEvent(roomID, "@bob:test", 500)},
				Timeline: []*event.Event{evt, evt},
			},
		},
	})

	room := e.Room(roomID)
	assert.Len(t, room.Timeline, 1)
}

func TestHandleSyncRemovesLeftRooms(t *testing.T) {
	e, _ := newTestEngine()
	roomID := id.RoomID("!room1:test")
	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "b1",
		Joined:    map[id.RoomID]*matrixapi.JoinedRoomSync{roomID: {}},
	})
	require.NotNil(t, e.Room(roomID))

	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "b2",
		Left:      map[id.RoomID]*matrixapi.LeftRoomSync{roomID: {}},
	})
	assert.Nil(t, e.Room(roomID))
}

func TestIsDirectTwoMemberFallback(t *testing.T) {
	room := NewRoomState("!dm:test")
	room.ApplyStateEvent(memberEvent("!dm:test", "@alice:test", "join", false))
	room.ApplyStateEvent(memberEvent("!dm:test", "@bob:test", "join", false))

	assert.True(t, IsDirect(room, "@alice:test", map[id.RoomID]bool{}))
}

func TestIsDirectGroupRoomIsNotDirect(t *testing.T) {
	room := NewRoomState("!group:test")
	room.ApplyStateEvent(memberEvent("!group:test", "@alice:test", "join", false))
	room.ApplyStateEvent(memberEvent("!group:test", "@bob:test", "join", false))
	room.ApplyStateEvent(memberEvent("!group:test", "@carol:test", "join", false))

	assert.False(t, IsDirect(room, "@alice:test", map[id.RoomID]bool{}))
}

func TestIsDirectPrefersIsDirectFlag(t *testing.T) {
	room := NewRoomState("!flagged:test")
	room.ApplyStateEvent(memberEvent("!flagged:test", "@alice:test", "join", true))

	assert.True(t, IsDirect(room, "@alice:test", map[id.RoomID]bool{}))
}

func TestPrimaryDMRoomTieBreaksByCreateTimeThenRoomID(t *testing.T) {
	roomA := NewRoomState("!zzz:test")
	roomA.ApplyStateEvent(createEvent("!zzz:test", "@alice:test", 1000))
	roomB := NewRoomState("!aaa:test")
	roomB.ApplyStateEvent(createEvent("!aaa:test", "@alice:test", 1000))
	roomC := NewRoomState("!old:test")
	roomC.ApplyStateEvent(createEvent("!old:test", "@alice:test", 500))

	primary := PrimaryDMRoom([]*RoomState{roomA, roomB, roomC})
	assert.Equal(t, id.RoomID("!old:test"), primary.RoomID)
}

func TestParseDirectAccountData(t *testing.T) {
	content := map[string]any{
		"@bob:test": []any{"!dm1:test", "!dm2:test"},
	}
	set := ParseDirectAccountData(content)
	assert.True(t, set[id.RoomID("!dm1:test")])
	assert.True(t, set[id.RoomID("!dm2:test")])
	assert.False(t, set[id.RoomID("!other:test")])
}

func TestEventBufferCapacityAndFlush(t *testing.T) {
	buf := NewEventBuffer()
	roomID := id.RoomID("!buf:test")
	now := time.Unix(1000, 0)

	for i := 0; i < defaultBufferCapacity+10; i++ {
		buf.Add(roomID, timelineEvent(roomID, id.EventID("$e"), "@bob:test", int64(i)), now)
	}

	flushed := buf.Flush(roomID)
	assert.Len(t, flushed, defaultBufferCapacity)
	assert.Empty(t, buf.Flush(roomID))
}

func TestEventBufferPrunesOldEvents(t *testing.T) {
	buf := NewEventBuffer()
	roomID := id.RoomID("!buf:test")
	old := time.Unix(1000, 0)
	buf.Add(roomID, timelineEvent(roomID, "$old", "@bob:test", 1), old)

	buf.Prune(old.Add(defaultBufferMaxAge + time.Second))
	assert.Empty(t, buf.PendingRooms())
}

func TestBufferedEventsFlushedWhenRoomStateArrives(t *testing.T) {
	e, _ := newTestEngine()
	roomID := id.RoomID("!late:test")
	e.BufferEvent(roomID, timelineEvent(roomID, "$pre", "@bob:test", 10), time.Unix(1000, 0))

	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "b1",
		Joined: map[id.RoomID]*matrixapi.JoinedRoomSync{
			roomID: {State: []*event.Event{memberEvent(roomID, "@bob:test", "join", false)}},
		},
	})

	room := e.Room(roomID)
	require.NotNil(t, room)
	assert.Len(t, room.Timeline, 1)
}

func TestBackfillRoomPaginatesUntilExhausted(t *testing.T) {
	e, fake := newTestEngine()
	roomID := id.RoomID("!bf:test")

	fake.MessagesPages[roomID] = []*matrixapi.MessagesResponse{
		{Chunk: []*event.Event{timelineEvent(roomID, "$a", "@bob:test", 1)}, End: "tok1"},
		{Chunk: []*event.Event{timelineEvent(roomID, "$b", "@bob:test", 2)}, End: "tok2"},
	}

	err := e.BackfillRoom(context.Background(), roomID, "", 1000)
	require.NoError(t, err)

	room := e.Room(roomID)
	require.NotNil(t, room)
	assert.Len(t, room.Timeline, 2)
}

func TestNextTxnIDIsUniqueAndPrefixed(t *testing.T) {
	e, _ := newTestEngine()
	now := time.UnixMilli(1700000000000)
	a := e.NextTxnID(now)
	b := e.NextTxnID(now)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "wata-1700000000000-1", a)
	assert.Equal(t, "wata-1700000000000-2", b)
}

func TestStartAndStopIsIdempotent(t *testing.T) {
	e, fake := newTestEngine()
	fake.QueueSync(&matrixapi.SyncResponse{NextBatch: "b1"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	e.Stop()
	e.Stop()
}

func TestOnSyncedEmitsOncePerCycle(t *testing.T) {
	e, _ := newTestEngine()
	var batches []string
	e.OnSynced(func(p SyncedPayload) { batches = append(batches, p.NextBatch) })

	e.handleSync(&matrixapi.SyncResponse{NextBatch: "b1"})
	e.handleSync(&matrixapi.SyncResponse{NextBatch: "b2"})

	assert.Equal(t, []string{"b1", "b2"}, batches)
}

func TestOnTimelineEventFiresForClassifiedRoom(t *testing.T) {
	e, _ := newTestEngine()
	roomID := id.RoomID("!room1:test")
	var got []id.EventID
	e.OnTimelineEvent(func(p TimelineEventPayload) { got = append(got, p.Event.ID) })

	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "b1",
		Joined: map[id.RoomID]*matrixapi.JoinedRoomSync{
			roomID: {
				State:    []*event.Event{createEvent(roomID, "@bob:test", 500)},
				Timeline: []*event.Event{timelineEvent(roomID, "$e1", "@bob:test", 600)},
			},
		},
	})

	assert.Equal(t, []id.EventID{"$e1"}, got)
}

func TestOnTimelineEventDoesNotFireUntilClassified(t *testing.T) {
	e, _ := newTestEngine()
	roomID := id.RoomID("!unclassified:test")
	var got []id.EventID
	e.OnTimelineEvent(func(p TimelineEventPayload) { got = append(got, p.Event.ID) })

	// No state has been seen for this room and no m.direct data has
	// arrived, so the timeline event must be buffered, not delivered.
	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "b1",
		Joined: map[id.RoomID]*matrixapi.JoinedRoomSync{
			roomID: {Timeline: []*event.Event{timelineEvent(roomID, "$pre", "@bob:test", 10)}},
		},
	})
	assert.Empty(t, got)
	room := e.Room(roomID)
	require.NotNil(t, room)
	assert.Empty(t, room.Timeline)

	// Once state arrives, the buffered event is delivered in the same
	// call that classifies the room.
	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "b2",
		Joined: map[id.RoomID]*matrixapi.JoinedRoomSync{
			roomID: {State: []*event.Event{createEvent(roomID, "@bob:test", 500)}},
		},
	})
	assert.Equal(t, []id.EventID{"$pre"}, got)
	assert.Len(t, room.Timeline, 1)
}

func TestOnMembershipChangedFires(t *testing.T) {
	e, _ := newTestEngine()
	roomID := id.RoomID("!room1:test")
	var changed []id.UserID
	e.OnMembershipChanged(func(p MembershipChangedPayload) { changed = append(changed, p.Member.UserID) })

	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "b1",
		Joined: map[id.RoomID]*matrixapi.JoinedRoomSync{
			roomID: {State: []*event.Event{memberEvent(roomID, "@bob:test", "join", false)}},
		},
	})

	assert.Equal(t, []id.UserID{"@bob:test"}, changed)
}

func TestOnReceiptUpdatedFiresPerUser(t *testing.T) {
	e, _ := newTestEngine()
	roomID := id.RoomID("!room1:test")
	var updates []ReceiptUpdatedPayload
	e.OnReceiptUpdated(func(p ReceiptUpdatedPayload) { updates = append(updates, p) })

	receipt := &event.Event{
		RoomID: roomID,
		Type:   event.Type{Type: "m.receipt"},
		Content: event.Content{Raw: map[string]any{
			"$e1": map[string]any{
				"m.read": map[string]any{
					"@bob:test": map[string]any{"ts": float64(100)},
				},
			},
		}},
	}
	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "b1",
		Joined: map[id.RoomID]*matrixapi.JoinedRoomSync{
			roomID: {Ephemeral: []*event.Event{receipt}},
		},
	})

	require.Len(t, updates, 1)
	assert.Equal(t, id.EventID("$e1"), updates[0].EventID)
	assert.Equal(t, id.UserID("@bob:test"), updates[0].UserID)
}

func TestSubscriptionCancelFuncStopsDelivery(t *testing.T) {
	e, _ := newTestEngine()
	var count int
	cancel := e.OnSynced(func(SyncedPayload) { count++ })

	e.handleSync(&matrixapi.SyncResponse{NextBatch: "b1"})
	cancel()
	e.handleSync(&matrixapi.SyncResponse{NextBatch: "b2"})

	assert.Equal(t, 1, count)
}

func TestApplyReceiptIsMonotonicAcrossEvents(t *testing.T) {
	room := NewRoomState("!room1:test")
	first := &event.Event{
		Type: event.Type{Type: "m.receipt"},
		Content: event.Content{Raw: map[string]any{
			"$e1": map[string]any{"m.read": map[string]any{"@bob:test": map[string]any{"ts": float64(100)}}},
		}},
	}
	second := &event.Event{
		Type: event.Type{Type: "m.receipt"},
		Content: event.Content{Raw: map[string]any{
			"$e2": map[string]any{"m.read": map[string]any{"@bob:test": map[string]any{"ts": float64(200)}}},
		}},
	}

	room.ApplyReceipt(first)
	room.ApplyReceipt(second)

	assert.Contains(t, room.ReceiptUsers("$e1"), id.UserID("@bob:test"))
	assert.Contains(t, room.ReceiptUsers("$e2"), id.UserID("@bob:test"))
	latest, ok := room.LatestReceipt("@bob:test")
	require.True(t, ok)
	assert.Equal(t, id.EventID("$e2"), latest.EventID)
}

func TestBackfillRoomPrependsOlderHistoryBeforeLiveTail(t *testing.T) {
	e, fake := newTestEngine()
	roomID := id.RoomID("!bf:test")

	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "b1",
		Joined: map[id.RoomID]*matrixapi.JoinedRoomSync{
			roomID: {
				State:    []*event.Event{createEvent(roomID, "@bob:test", 500)},
				Timeline: []*event.Event{timelineEvent(roomID, "$live", "@bob:test", 1000)},
			},
		},
	})

	// Backward pagination returns newest-first within a page.
	fake.MessagesPages[roomID] = []*matrixapi.MessagesResponse{
		{Chunk: []*event.Event{
			timelineEvent(roomID, "$old2", "@bob:test", 900),
			timelineEvent(roomID, "$old1", "@bob:test", 800),
		}, End: "tok1"},
	}

	err := e.BackfillRoom(context.Background(), roomID, "", 1000)
	require.NoError(t, err)

	room := e.Room(roomID)
	require.Len(t, room.Timeline, 3)
	var ids []id.EventID
	for _, evt := range room.Timeline {
		ids = append(ids, evt.ID)
	}
	assert.Equal(t, []id.EventID{"$old1", "$old2", "$live"}, ids)
}

func TestEnsureDMRoomReusesCachedPrimary(t *testing.T) {
	e, fake := newTestEngine()
	roomID := id.RoomID("!dm1:test")
	e.handleSync(&matrixapi.SyncResponse{
		NextBatch: "b1",
		Joined: map[id.RoomID]*matrixapi.JoinedRoomSync{
			roomID: {State: []*event.Event{
				createEvent(roomID, "@alice:test", 100),
				memberEvent(roomID, "@alice:test", "join", true),
				memberEvent(roomID, "@bob:test", "join", true),
			}},
		},
	})

	got, err := e.EnsureDMRoom(context.Background(), "@bob:test")
	require.NoError(t, err)
	assert.Equal(t, roomID, got)

	got2, err := e.EnsureDMRoom(context.Background(), "@bob:test")
	require.NoError(t, err)
	assert.Equal(t, roomID, got2)
	assert.Empty(t, fake.CreatedRooms)
}

func TestEnsureDMRoomCreatesWhenNoCandidateExists(t *testing.T) {
	e, fake := newTestEngine()

	roomID, err := e.EnsureDMRoom(context.Background(), "@carol:test")
	require.NoError(t, err)
	require.Len(t, fake.CreatedRooms, 1)
	assert.True(t, fake.CreatedRooms[0].IsDirect)
	assert.Contains(t, fake.CreatedRooms[0].Invite, id.UserID("@carol:test"))

	direct := fake.AccountData["@alice:test"]["m.direct"]
	require.NotNil(t, direct)
	rooms, ok := direct["@carol:test"].([]string)
	require.True(t, ok)
	assert.Contains(t, rooms, string(roomID))

	contact, ok := e.ContactForRoom(roomID)
	require.True(t, ok)
	assert.Equal(t, id.UserID("@carol:test"), contact)
}
