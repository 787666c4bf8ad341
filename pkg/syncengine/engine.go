package syncengine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/adriaanm/wata/pkg/matrixapi"
)

const (
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 60 * time.Second
	longPollTimeoutMS = 30000
)

// TokenRefresher is called when a sync request fails with an auth error,
// per spec §5's auth-lost recovery hook. It should re-authenticate and
// return nil once the client is usable again.
type TokenRefresher func(ctx context.Context) error

// Engine runs the room-sync long-poll loop and keeps a RoomState per
// joined room. Grounded on the teacher's runCloudSyncController
// (pkg/connector/sync_controller.go) for the goroutine/stop-channel
// shape, generalised here to Matrix sync semantics and given an
// errgroup-managed lifecycle instead of a bare stopChan, consistent with
// the semaphore-based concurrency already used in pkg/mfsk.
type Engine struct {
	client matrixapi.Client
	selfID id.UserID
	log    zerolog.Logger

	mu              sync.RWMutex
	rooms           map[id.RoomID]*RoomState
	invited         map[id.RoomID]struct{}
	since           string
	selfDirectRooms map[id.RoomID]bool
	directDataSeen  bool

	buffer *EventBuffer
	events emitters
	dm     *dmIndex

	refresher TokenRefresher

	group    *errgroup.Group
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopped  chan struct{}

	txnCounter uint64
}

// New creates an Engine bound to client and logged in as selfID. log
// should already carry any request-scoped fields the caller wants
// attached (component name, user id, etc).
func New(client matrixapi.Client, selfID id.UserID, log zerolog.Logger) *Engine {
	return &Engine{
		client:          client,
		selfID:          selfID,
		log:             log.With().Str("component", "syncengine").Logger(),
		rooms:           make(map[id.RoomID]*RoomState),
		invited:         make(map[id.RoomID]struct{}),
		selfDirectRooms: make(map[id.RoomID]bool),
		buffer:          NewEventBuffer(),
		dm:              newDMIndex(),
		stopped:         make(chan struct{}),
	}
}

// SetTokenRefresher installs the auth-lost recovery hook.
func (e *Engine) SetTokenRefresher(fn TokenRefresher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refresher = fn
}

// Room returns the known state for roomID, or nil if the engine hasn't
// seen it.
func (e *Engine) Room(roomID id.RoomID) *RoomState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rooms[roomID]
}

// Rooms returns the state of every currently known room, joined or
// invited.
func (e *Engine) Rooms() []*RoomState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*RoomState, 0, len(e.rooms))
	for _, r := range e.rooms {
		out = append(out, r)
	}
	return out
}

// Start launches the long-poll loop in the background. It returns
// immediately; call Stop to shut it down.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	e.group = g
	g.Go(func() error {
		defer close(e.stopped)
		e.loop(gctx)
		return nil
	})
	g.Go(func() error {
		e.pruneLoop(gctx)
		return nil
	})
}

// Stop ends the loop and waits for it to exit. It is idempotent.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
		if e.group != nil {
			_ = e.group.Wait()
		}
	})
}

// loop implements spec §5's long-poll cycle: call Sync with an
// exponential backoff on error (initialRetryDelay doubling up to
// maxRetryDelay, plus 0-1s jitter), resetting the delay on success.
func (e *Engine) loop(ctx context.Context) {
	retry := initialRetryDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		resp, err := e.client.Sync(ctx, matrixapi.SyncRequest{
			Since:     e.currentSince(),
			TimeoutMS: longPollTimeoutMS,
		})
		if err != nil {
			if merr, ok := err.(*matrixapi.Error); ok && merr.ErrCode == "M_UNKNOWN_TOKEN" {
				if refreshErr := e.refresh(ctx); refreshErr != nil {
					e.log.Error().Err(refreshErr).Msg("token refresh failed")
				}
			} else {
				e.log.Warn().Err(err).Msg("sync failed, backing off")
			}
			delay := retry + time.Duration(rand.Int63n(int64(time.Second)))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			retry *= 2
			if retry > maxRetryDelay {
				retry = maxRetryDelay
			}
			continue
		}

		retry = initialRetryDelay
		e.handleSync(resp)
	}
}

func (e *Engine) refresh(ctx context.Context) error {
	e.mu.RLock()
	refresher := e.refresher
	e.mu.RUnlock()
	if refresher == nil {
		return nil
	}
	return refresher(ctx)
}

func (e *Engine) currentSince() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.since
}

// pruneLoop periodically prunes the event buffer, per spec §5's ~10s
// prune tick.
func (e *Engine) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(defaultPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.buffer.Prune(now)
		}
	}
}

// handleSync applies one SyncResponse to engine state: global account
// data is folded in first so room classification reflects it for the
// rest of the batch; joined rooms get their state/timeline/ephemeral/
// account-data folded in (non-state timeline events are buffered
// instead of applied until their room is classified) and buffered
// events flushed once classification allows it; invited rooms are
// recorded by stripped state; left rooms are removed. Every processing
// step emits its corresponding typed event, and a single synced event
// closes out the cycle, per spec §4.5.
func (e *Engine) handleSync(resp *matrixapi.SyncResponse) {
	for _, evt := range resp.AccountData {
		if evt.Type.Type == "m.direct" {
			e.mu.Lock()
			e.selfDirectRooms = ParseDirectAccountData(evt.Content.Raw)
			e.directDataSeen = true
			e.mu.Unlock()
		}
		e.events.accountData.emit(AccountDataUpdatedPayload{DataType: evt.Type.Type, Content: evt.Content.Raw})
	}

	for roomID, joined := range resp.Joined {
		room := e.roomState(roomID)
		for _, evt := range joined.State {
			e.applyStateEventAndEmit(room, evt)
		}
		for _, evt := range joined.StateAfter {
			e.applyStateEventAndEmit(room, evt)
		}
		for _, evt := range joined.Timeline {
			if evt.StateKey != nil {
				e.applyStateEventAndEmit(room, evt)
				continue
			}
			e.routeTimelineEvent(room, evt, time.Now())
		}
		for _, evt := range joined.Ephemeral {
			if evt.Type.Type == "m.receipt" {
				for _, upd := range room.ApplyReceipt(evt) {
					e.events.receipt.emit(ReceiptUpdatedPayload{
						RoomID:    room.RoomID,
						EventID:   upd.EventID,
						UserID:    upd.UserID,
						Timestamp: upd.Timestamp,
					})
				}
			}
		}
		for _, evt := range joined.AccountData {
			room.ApplyAccountData(evt.Type.Type, evt.Content.Raw)
			e.events.accountData.emit(AccountDataUpdatedPayload{RoomID: room.RoomID, DataType: evt.Type.Type, Content: evt.Content.Raw})
		}
		e.flushBuffered(room)
	}

	for roomID, invited := range resp.Invited {
		e.mu.Lock()
		e.invited[roomID] = struct{}{}
		e.mu.Unlock()
		room := e.roomState(roomID)
		for _, evt := range invited.StrippedState {
			e.applyStateEventAndEmit(room, evt)
		}
	}

	for roomID := range resp.Left {
		e.mu.Lock()
		delete(e.rooms, roomID)
		delete(e.invited, roomID)
		e.mu.Unlock()
	}

	e.mu.Lock()
	e.since = resp.NextBatch
	e.mu.Unlock()

	e.events.synced.emit(SyncedPayload{NextBatch: resp.NextBatch})
}

// applyStateEventAndEmit folds evt into room and emits membership_changed
// (for m.room.member) and room_updated for every state event applied.
func (e *Engine) applyStateEventAndEmit(room *RoomState, evt *event.Event) {
	room.ApplyStateEvent(evt)
	if evt != nil && evt.Type.Type == "m.room.member" && evt.StateKey != nil {
		e.events.membership.emit(MembershipChangedPayload{
			RoomID: room.RoomID,
			Member: room.Member(id.UserID(*evt.StateKey)),
		})
	}
	e.events.roomUpdated.emit(RoomUpdatedPayload{RoomID: room.RoomID})
}

// routeTimelineEvent applies evt to room immediately and emits
// timeline_event if room is already classified (DM vs group known),
// otherwise buffers it until classification arrives, per spec §4.5's
// event-buffer service.
func (e *Engine) routeTimelineEvent(room *RoomState, evt *event.Event, now time.Time) {
	if !e.roomClassified(room) {
		e.buffer.Add(room.RoomID, evt, now)
		return
	}
	if room.ApplyTimelineEvent(evt) {
		e.events.timeline.emit(TimelineEventPayload{RoomID: room.RoomID, Event: evt})
	}
}

// roomClassified reports whether enough is known about room to decide
// DM vs group membership: either some state has already been applied
// to it, or the engine has seen at least one m.direct account-data
// update this session.
func (e *Engine) roomClassified(room *RoomState) bool {
	if room.HasState() {
		return true
	}
	e.mu.RLock()
	seen := e.directDataSeen
	e.mu.RUnlock()
	return seen
}

func (e *Engine) roomState(roomID id.RoomID) *RoomState {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.rooms[roomID]
	if !ok {
		room = NewRoomState(roomID)
		e.rooms[roomID] = room
	}
	return room
}

// flushBuffered drains room's pending buffered events, in original
// arrival order, once it is classified. If room is still unclassified
// (no state seen yet, and no m.direct account data this session) the
// events stay buffered for a later sync cycle.
func (e *Engine) flushBuffered(room *RoomState) {
	if !e.roomClassified(room) {
		return
	}
	for _, evt := range e.buffer.Flush(room.RoomID) {
		if evt.StateKey != nil {
			e.applyStateEventAndEmit(room, evt)
			continue
		}
		if room.ApplyTimelineEvent(evt) {
			e.events.timeline.emit(TimelineEventPayload{RoomID: room.RoomID, Event: evt})
		}
	}
}

// BufferEvent holds evt for roomID until that room's state is known,
// per spec §5's buffering rule for events that race ahead of state.
func (e *Engine) BufferEvent(roomID id.RoomID, evt *event.Event, now time.Time) {
	e.buffer.Add(roomID, evt, now)
}

// NextTxnID returns a fresh "wata-<ms>-<counter>" transaction id for a
// send/redact call.
func (e *Engine) NextTxnID(now time.Time) string {
	e.mu.Lock()
	e.txnCounter++
	counter := e.txnCounter
	e.mu.Unlock()
	return matrixapi.NewTxnID(now, counter)
}
