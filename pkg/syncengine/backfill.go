package syncengine

import (
	"context"
	"fmt"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/adriaanm/wata/pkg/matrixapi"
)

// defaultBackfillPageSize mirrors the teacher's backfill.go page sizing
// for bounded, resumable history imports.
const defaultBackfillPageSize = 100

// BackfillRoom paginates backward from the pagination token from (an
// empty from is sent to the homeserver as-is) until maxEvents have been
// retrieved or
// the homeserver reports no further history, inserting every page's
// events at the front of the room's timeline, oldest first, rather
// than appending them after the live tail. Grounded on
// pkg/connector/backfill.go's paginated import loop.
//
// Each backward page arrives newest-first; pages themselves also get
// progressively older as pagination continues. Reversing each page
// before prepending it, and prepending pages in the order received,
// lands every page's events in the right place relative to both each
// other and whatever the timeline already held.
func (e *Engine) BackfillRoom(ctx context.Context, roomID id.RoomID, from string, maxEvents int) error {
	room := e.roomState(roomID)
	remaining := maxEvents
	cursor := from

	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		limit := defaultBackfillPageSize
		if remaining < limit {
			limit = remaining
		}
		page, err := e.client.GetMessages(ctx, roomID, matrixapi.MessagesRequest{
			From:  cursor,
			Dir:   matrixapi.DirectionBackward,
			Limit: limit,
		})
		if err != nil {
			return fmt.Errorf("syncengine: backfill %s: %w", roomID, err)
		}
		if len(page.Chunk) == 0 {
			return nil
		}
		var stateEvents, timelineEvents []*event.Event
		for _, evt := range page.Chunk {
			if evt.StateKey != nil {
				stateEvents = append(stateEvents, evt)
			} else {
				timelineEvents = append(timelineEvents, evt)
			}
		}
		for _, evt := range stateEvents {
			room.ApplyStateEvent(evt)
		}
		room.PrependTimelineEvents(reverseEvents(timelineEvents))

		remaining -= len(page.Chunk)
		if page.End == cursor || page.End == "" {
			return nil
		}
		cursor = page.End
	}
	return nil
}

// reverseEvents returns evts in reverse order without mutating evts.
func reverseEvents(evts []*event.Event) []*event.Event {
	out := make([]*event.Event, len(evts))
	for i, evt := range evts {
		out[len(evts)-1-i] = evt
	}
	return out
}

// BackfillAll runs BackfillRoom for every currently known room, stopping
// at the first error.
func (e *Engine) BackfillAll(ctx context.Context, maxEventsPerRoom int) error {
	for _, room := range e.Rooms() {
		if err := e.BackfillRoom(ctx, room.RoomID, "", maxEventsPerRoom); err != nil {
			return err
		}
	}
	return nil
}
