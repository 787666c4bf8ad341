// Package matrixapi defines the typed homeserver RPC surface consumed by
// the sync engine (spec §6). The engine never speaks HTTP itself; this
// interface is the seam. Grounded on the shape of calls the teacher's
// pkg/connector/client.go and backfill.go make against
// maunium.net/go/mautrix's client (login, send event with a txn id,
// redact, receipts, media upload/download, account data, paginated
// backfill).
package matrixapi

import (
	"context"
	"time"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Error is a structured homeserver error: an errcode plus a human string,
// per spec §6.
type Error struct {
	ErrCode string
	Message string
}

func (e *Error) Error() string {
	return e.ErrCode + ": " + e.Message
}

// LoginResult is returned by Login.
type LoginResult struct {
	UserID      id.UserID
	AccessToken string
	DeviceID    id.DeviceID
}

// WhoAmIResult is returned by WhoAmI.
type WhoAmIResult struct {
	UserID   id.UserID
	DeviceID id.DeviceID
}

// CreateRoomRequest mirrors spec §6's create_room parameters.
type CreateRoomRequest struct {
	IsDirect   bool
	Invite     []id.UserID
	Preset     string
	Visibility string
	Name       string
	Alias      string
}

// SyncRequest mirrors spec §6's sync parameters.
type SyncRequest struct {
	Since       string
	TimeoutMS   int
	SetPresence string
	FullState   bool
}

// JoinedRoomSync holds one joined room's delta within a SyncResponse.
type JoinedRoomSync struct {
	State              []*event.Event
	StateAfter         []*event.Event
	Timeline           []*event.Event
	TimelinePrevBatch  string
	TimelineLimited    bool
	Ephemeral          []*event.Event
	AccountData        []*event.Event
	UnreadNotifCount   int
	UnreadHighlightCnt int
}

// InvitedRoomSync holds one invited room's stripped state.
type InvitedRoomSync struct {
	StrippedState []*event.Event
}

// LeftRoomSync holds one left room's final delta.
type LeftRoomSync struct {
	State    []*event.Event
	Timeline []*event.Event
}

// SyncResponse mirrors spec §6/§4.5's partitioned sync payload.
type SyncResponse struct {
	NextBatch   string
	AccountData []*event.Event
	Joined      map[id.RoomID]*JoinedRoomSync
	Invited     map[id.RoomID]*InvitedRoomSync
	Left        map[id.RoomID]*LeftRoomSync
}

// MessagesDirection selects pagination direction for GetMessages.
type MessagesDirection string

const (
	DirectionBackward MessagesDirection = "b"
	DirectionForward  MessagesDirection = "f"
)

// MessagesRequest mirrors spec §6's get_messages parameters.
type MessagesRequest struct {
	From  string
	Dir   MessagesDirection
	Limit int
}

// MessagesResponse mirrors spec §6's get_messages result.
type MessagesResponse struct {
	Chunk []*event.Event
	End   string
}

// Client is the typed RPC surface the sync engine depends on. A real
// implementation talks HTTP to a homeserver; FakeClient (api_fake.go)
// is an in-memory stand-in for tests.
type Client interface {
	Login(ctx context.Context, username, password, deviceName string) (*LoginResult, error)
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) (*WhoAmIResult, error)
	Sync(ctx context.Context, req SyncRequest) (*SyncResponse, error)
	CreateRoom(ctx context.Context, req CreateRoomRequest) (id.RoomID, error)
	JoinRoom(ctx context.Context, idOrAlias string) (id.RoomID, error)
	InviteToRoom(ctx context.Context, roomID id.RoomID, userID id.UserID) error
	SendEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, content any, txnID string) (id.EventID, error)
	RedactEvent(ctx context.Context, roomID id.RoomID, eventID id.EventID, reason, txnID string) (id.EventID, error)
	SendReadReceipt(ctx context.Context, roomID id.RoomID, eventID id.EventID, threadID string) error
	UploadMedia(ctx context.Context, data []byte, contentType, filename string) (id.ContentURI, error)
	DownloadMedia(ctx context.Context, mxc id.ContentURI) ([]byte, error)
	GetAccountData(ctx context.Context, userID id.UserID, dataType string) (map[string]any, error)
	SetAccountData(ctx context.Context, userID id.UserID, dataType string, content map[string]any) error
	GetRoomAccountData(ctx context.Context, roomID id.RoomID, dataType string) (map[string]any, error)
	SetRoomAccountData(ctx context.Context, roomID id.RoomID, dataType string, content map[string]any) error
	GetMessages(ctx context.Context, roomID id.RoomID, req MessagesRequest) (*MessagesResponse, error)
}

// NewTxnID builds a "wata-<ms>-<counter>" transaction id per spec §6, so
// the server can dedupe retried sends.
func NewTxnID(now time.Time, counter uint64) string {
	return "wata-" + itoa(now.UnixMilli()) + "-" + itoa(int64(counter))
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
