package matrixapi

import (
	"context"
	"fmt"
	"sync"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// FakeClient is an in-memory Client used by pkg/syncengine's tests. It
// keeps just enough state to drive a realistic sync loop: a queue of
// canned SyncResponse values returned in order, plus recorders for the
// write calls so tests can assert on what the engine sent.
type FakeClient struct {
	mu sync.Mutex

	UserID   id.UserID
	DeviceID id.DeviceID

	syncResponses []*SyncResponse
	syncErr       []error
	syncCalls     []SyncRequest

	SentEvents    []SentEvent
	Redactions    []Redaction
	ReadReceipts  []ReadReceipt
	AccountData   map[id.UserID]map[string]map[string]any
	RoomAccount   map[id.RoomID]map[string]map[string]any
	CreatedRooms  []CreateRoomRequest
	JoinedRooms   []string
	InvitedUsers  []InviteCall
	MessagesPages map[id.RoomID][]*MessagesResponse

	LoggedOut  bool
	WhoAmIErr  error
	eventCount uint64
}

type SentEvent struct {
	RoomID    id.RoomID
	EventType event.Type
	Content   any
	TxnID     string
}

type Redaction struct {
	RoomID  id.RoomID
	EventID id.EventID
	Reason  string
	TxnID   string
}

type ReadReceipt struct {
	RoomID   id.RoomID
	EventID  id.EventID
	ThreadID string
}

type InviteCall struct {
	RoomID id.RoomID
	UserID id.UserID
}

// NewFakeClient builds an empty fake logged in as userID/deviceID.
func NewFakeClient(userID id.UserID, deviceID id.DeviceID) *FakeClient {
	return &FakeClient{
		UserID:        userID,
		DeviceID:      deviceID,
		AccountData:   make(map[id.UserID]map[string]map[string]any),
		RoomAccount:   make(map[id.RoomID]map[string]map[string]any),
		MessagesPages: make(map[id.RoomID][]*MessagesResponse),
	}
}

// QueueSync appends a canned response (or error) for the next Sync calls,
// in FIFO order. Passing err != nil makes that call fail instead.
func (f *FakeClient) QueueSync(resp *SyncResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncResponses = append(f.syncResponses, resp)
	f.syncErr = append(f.syncErr, err)
}

// SyncCalls returns the requests the engine made, for assertions.
func (f *FakeClient) SyncCalls() []SyncRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SyncRequest(nil), f.syncCalls...)
}

func (f *FakeClient) Login(_ context.Context, username, _, deviceName string) (*LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UserID = id.UserID("@" + username + ":fake")
	f.DeviceID = id.DeviceID(deviceName)
	return &LoginResult{UserID: f.UserID, AccessToken: "faketoken", DeviceID: f.DeviceID}, nil
}

func (f *FakeClient) Logout(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoggedOut = true
	return nil
}

func (f *FakeClient) WhoAmI(_ context.Context) (*WhoAmIResult, error) {
	if f.WhoAmIErr != nil {
		return nil, f.WhoAmIErr
	}
	return &WhoAmIResult{UserID: f.UserID, DeviceID: f.DeviceID}, nil
}

func (f *FakeClient) Sync(_ context.Context, req SyncRequest) (*SyncResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls = append(f.syncCalls, req)
	if len(f.syncResponses) == 0 {
		return &SyncResponse{NextBatch: req.Since}, nil
	}
	resp, err := f.syncResponses[0], f.syncErr[0]
	f.syncResponses = f.syncResponses[1:]
	f.syncErr = f.syncErr[1:]
	return resp, err
}

func (f *FakeClient) CreateRoom(_ context.Context, req CreateRoomRequest) (id.RoomID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreatedRooms = append(f.CreatedRooms, req)
	return id.RoomID(fmt.Sprintf("!fake%d:fake", len(f.CreatedRooms))), nil
}

func (f *FakeClient) JoinRoom(_ context.Context, idOrAlias string) (id.RoomID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JoinedRooms = append(f.JoinedRooms, idOrAlias)
	return id.RoomID(idOrAlias), nil
}

func (f *FakeClient) InviteToRoom(_ context.Context, roomID id.RoomID, userID id.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InvitedUsers = append(f.InvitedUsers, InviteCall{RoomID: roomID, UserID: userID})
	return nil
}

func (f *FakeClient) SendEvent(_ context.Context, roomID id.RoomID, eventType event.Type, content any, txnID string) (id.EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventCount++
	f.SentEvents = append(f.SentEvents, SentEvent{RoomID: roomID, EventType: eventType, Content: content, TxnID: txnID})
	return id.EventID(fmt.Sprintf("$fakeevent%d", f.eventCount)), nil
}

func (f *FakeClient) RedactEvent(_ context.Context, roomID id.RoomID, eventID id.EventID, reason, txnID string) (id.EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Redactions = append(f.Redactions, Redaction{RoomID: roomID, EventID: eventID, Reason: reason, TxnID: txnID})
	f.eventCount++
	return id.EventID(fmt.Sprintf("$fakeredaction%d", f.eventCount)), nil
}

func (f *FakeClient) SendReadReceipt(_ context.Context, roomID id.RoomID, eventID id.EventID, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadReceipts = append(f.ReadReceipts, ReadReceipt{RoomID: roomID, EventID: eventID, ThreadID: threadID})
	return nil
}

func (f *FakeClient) UploadMedia(_ context.Context, data []byte, contentType, filename string) (id.ContentURI, error) {
	return id.ContentURI{Homeserver: "fake", FileID: filename + ":" + contentType + ":" + fmt.Sprint(len(data))}, nil
}

func (f *FakeClient) DownloadMedia(_ context.Context, mxc id.ContentURI) ([]byte, error) {
	return nil, fmt.Errorf("matrixapi: fake has no content for %s", mxc)
}

func (f *FakeClient) GetAccountData(_ context.Context, userID id.UserID, dataType string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.AccountData[userID]
	if !ok {
		return map[string]any{}, nil
	}
	return m[dataType], nil
}

func (f *FakeClient) SetAccountData(_ context.Context, userID id.UserID, dataType string, content map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AccountData[userID] == nil {
		f.AccountData[userID] = make(map[string]map[string]any)
	}
	f.AccountData[userID][dataType] = content
	return nil
}

func (f *FakeClient) GetRoomAccountData(_ context.Context, roomID id.RoomID, dataType string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.RoomAccount[roomID]
	if !ok {
		return map[string]any{}, nil
	}
	return m[dataType], nil
}

func (f *FakeClient) SetRoomAccountData(_ context.Context, roomID id.RoomID, dataType string, content map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RoomAccount[roomID] == nil {
		f.RoomAccount[roomID] = make(map[string]map[string]any)
	}
	f.RoomAccount[roomID][dataType] = content
	return nil
}

func (f *FakeClient) GetMessages(_ context.Context, roomID id.RoomID, req MessagesRequest) (*MessagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := f.MessagesPages[roomID]
	if len(pages) == 0 {
		return &MessagesResponse{End: req.From}, nil
	}
	page := pages[0]
	f.MessagesPages[roomID] = pages[1:]
	return page, nil
}
