package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/client"
	"storefront/internal/models"
	"storefront/internal/notify"
)

const me = "u-me"

var t0 = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu       sync.Mutex
	list     []models.Conversation
	convs    map[string]*models.Conversation
	gates    map[string]chan struct{}
	listGate chan struct{}
	// holdFirst blocks the first list call, which answers with the list
	// as it stood when the call arrived.
	holdFirst  chan struct{}
	listStarts int
	users    []models.User
	fail     map[string]error
	calls    map[string]int
	created  []models.CreateConversationRequest
	read     []models.MarkReadRequest
	nextID   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		convs: map[string]*models.Conversation{},
		gates: map[string]chan struct{}{},
		fail:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeAPI) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeAPI) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	f.mu.Lock()
	f.listStarts++
	hold := f.holdFirst
	if f.listStarts != 1 {
		hold = nil
	}
	snapshot := append([]models.Conversation(nil), f.list...)
	f.mu.Unlock()

	if f.listGate != nil {
		<-f.listGate
	}
	if hold != nil {
		<-hold
	}
	if err := f.record("list"); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (f *fakeAPI) started() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listStarts
}

func (f *fakeAPI) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	f.mu.Lock()
	gate := f.gates[id]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err := f.record("get"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[id]
	if !ok {
		return nil, &client.APIError{Status: http.StatusNotFound, Message: "conversation not found"}
	}
	cp := *conv
	cp.Messages = append([]models.Message(nil), conv.Messages...)
	return &cp, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, conversationID, content, receiverID string) (*models.Message, error) {
	if err := f.record("send"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := &models.Message{
		ID:             "m-sent-" + string(rune('0'+f.nextID)),
		Content:        content,
		SenderID:       me,
		ConversationID: conversationID,
		CreatedAt:      t0.Add(time.Hour),
	}
	if receiverID != "" {
		msg.ReceiverID = &receiverID
	}
	return msg, nil
}

func (f *fakeAPI) CreateConversation(ctx context.Context, req models.CreateConversationRequest) (*models.Conversation, error) {
	if err := f.record("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	conv := models.Conversation{ID: "c-new", Topic: req.Topic, UpdatedAt: t0.Add(2 * time.Hour)}
	f.list = append(f.list, conv)
	return &conv, nil
}

func (f *fakeAPI) MarkRead(ctx context.Context, req models.MarkReadRequest) error {
	if err := f.record("read"); err != nil {
		return err
	}
	f.mu.Lock()
	f.read = append(f.read, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	if err := f.record("search"); err != nil {
		return nil, err
	}
	return f.users, nil
}

type staticSession string

func (s staticSession) UserID() string { return string(s) }

func newController(t *testing.T, api *fakeAPI) (*Controller, *notify.Recorder) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	notes := &notify.Recorder{}
	ctl := New(Options{
		API:      api,
		Session:  staticSession(me),
		Notifier: notes,
		Logger:   logger,
		Clock:    func() time.Time { return t0.Add(24 * time.Hour) },
	})
	return ctl, notes
}

func conversation(id string, updated time.Duration, unread int) models.Conversation {
	return models.Conversation{
		ID:          id,
		Topic:       "topic " + id,
		UserIDs:     []string{me, "u-other"},
		UnreadCount: unread,
		UpdatedAt:   t0.Add(updated),
	}
}

func incoming(id, convID string, at time.Duration) models.Message {
	receiver := me
	return models.Message{
		ID:             id,
		Content:        "hello",
		SenderID:       "u-other",
		ReceiverID:     &receiver,
		ConversationID: convID,
		CreatedAt:      t0.Add(at),
	}
}

func ids(list []models.Conversation) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}

func seeded(t *testing.T) (*Controller, *fakeAPI, *notify.Recorder) {
	t.Helper()
	api := newFakeAPI()
	api.list = []models.Conversation{
		conversation("a", time.Minute, 2),
		conversation("b", 3*time.Minute, 0),
		conversation("c", 2*time.Minute, 1),
	}
	for _, conv := range api.list {
		cp := conv
		api.convs[conv.ID] = &cp
	}
	ctl, notes := newController(t, api)
	ctl.FetchConversations(context.Background())
	return ctl, api, notes
}

func TestFetchConversations_SortsByActivity(t *testing.T) {
	ctl, _, _ := seeded(t)
	assert.Equal(t, []string{"b", "c", "a"}, ids(ctl.Conversations()))
	assert.Equal(t, 3, ctl.TotalUnread())
	assert.False(t, ctl.Loading())
}

func TestFetchConversations_FailureNotifies(t *testing.T) {
	api := newFakeAPI()
	api.fail["list"] = errors.New("connection refused")
	ctl, notes := newController(t, api)

	ctl.FetchConversations(context.Background())

	assert.Empty(t, ctl.Conversations())
	assert.Equal(t, []string{"Failed to load conversations"}, notes.Errors())
}

func TestFetchConversation_ResetsUnread(t *testing.T) {
	ctl, api, _ := seeded(t)
	api.convs["a"].Messages = []models.Message{incoming("m1", "a", 0), incoming("m2", "a", time.Second)}
	var opened []string
	ctl.OnCurrentChange(func(id string) { opened = append(opened, id) })

	ctl.FetchConversation(context.Background(), "a")

	cur := ctl.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "a", cur.ID)
	assert.Len(t, cur.Messages, 2)
	assert.True(t, ctl.Focused())
	for _, conv := range ctl.Conversations() {
		if conv.ID == "a" {
			assert.Zero(t, conv.UnreadCount)
		}
	}
	assert.Equal(t, []string{"a"}, opened)
}

func TestFetchConversation_NotFound(t *testing.T) {
	ctl, _, notes := seeded(t)

	ctl.FetchConversation(context.Background(), "missing")

	assert.Nil(t, ctl.Current())
	assert.Equal(t, []string{"Conversation not found"}, notes.Errors())
}

func TestFetchConversation_DiscardsStaleResult(t *testing.T) {
	ctl, api, _ := seeded(t)
	gate := make(chan struct{})
	api.gates["a"] = gate
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		ctl.FetchConversation(ctx, "a")
		close(done)
	}()
	require.Eventually(t, ctl.Loading, time.Second, time.Millisecond)

	ctl.FetchConversation(ctx, "b")
	close(gate)
	<-done

	require.NotNil(t, ctl.Current())
	assert.Equal(t, "b", ctl.Current().ID)
}

func TestReset_DiscardsInFlightList(t *testing.T) {
	api := newFakeAPI()
	api.list = []models.Conversation{conversation("a", 0, 0)}
	api.listGate = make(chan struct{})
	ctl, _ := newController(t, api)

	done := make(chan struct{})
	go func() {
		ctl.FetchConversations(context.Background())
		close(done)
	}()
	require.Eventually(t, ctl.Loading, time.Second, time.Millisecond)
	ctl.Reset()
	close(api.listGate)
	<-done

	assert.Empty(t, ctl.Conversations())
}

func TestFetchConversations_LatestRequestWins(t *testing.T) {
	api := newFakeAPI()
	api.list = []models.Conversation{conversation("a", 0, 0)}
	api.holdFirst = make(chan struct{})
	ctl, _ := newController(t, api)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		ctl.FetchConversations(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return api.started() == 1 }, time.Second, time.Millisecond)

	api.mu.Lock()
	api.list = append(api.list, conversation("b", time.Minute, 1))
	api.mu.Unlock()
	ctl.FetchConversations(ctx)
	require.Equal(t, []string{"b", "a"}, ids(ctl.Conversations()))

	close(api.holdFirst)
	<-done

	assert.Equal(t, []string{"b", "a"}, ids(ctl.Conversations()))
}

func TestSendMessage_AppendsAndReorders(t *testing.T) {
	ctl, _, _ := seeded(t)
	ctx := context.Background()
	ctl.FetchConversation(ctx, "a")

	ok := ctl.SendMessage(ctx, "a", "  hi there ", "u-other")

	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, ids(ctl.Conversations()))
	cur := ctl.Current()
	require.Len(t, cur.Messages, 1)
	assert.Equal(t, "hi there", cur.Messages[0].Content)
	assert.Equal(t, cur.Messages[0].ID, ctl.Conversations()[0].LastMessage.ID)
}

func TestSendMessage_RejectsBlankAndReportsFailure(t *testing.T) {
	ctl, api, notes := seeded(t)
	ctx := context.Background()

	assert.False(t, ctl.SendMessage(ctx, "a", "   ", ""))
	assert.Zero(t, api.calls["send"])

	api.fail["send"] = &client.APIError{Status: http.StatusForbidden, Message: "forbidden"}
	assert.False(t, ctl.SendMessage(ctx, "a", "hi", ""))
	assert.Equal(t, []string{"Failed to send message"}, notes.Errors())
}

func TestAddMessage_IncrementsAndReorders(t *testing.T) {
	ctl, _, _ := seeded(t)

	ctl.AddMessageToConversation(incoming("m9", "a", time.Hour))

	list := ctl.Conversations()
	assert.Equal(t, []string{"a", "b", "c"}, ids(list))
	assert.Equal(t, 3, list[0].UnreadCount)
	assert.Equal(t, "m9", list[0].LastMessage.ID)
	assert.Equal(t, t0.Add(time.Hour), list[0].UpdatedAt)
}

func TestAddMessage_DeduplicatesByID(t *testing.T) {
	ctl, _, _ := seeded(t)
	msg := incoming("m9", "c", time.Hour)

	ctl.AddMessageToConversation(msg)
	ctl.AddMessageToConversation(msg)

	assert.Equal(t, 2, ctl.Conversations()[0].UnreadCount)

	ctl.FetchConversation(context.Background(), "c")
	ctl.SetFocused(false)
	open := incoming("m10", "c", 2*time.Hour)
	ctl.AddMessageToConversation(open)
	ctl.AddMessageToConversation(open)
	assert.Len(t, ctl.Current().Messages, 1)
}

func TestAddMessage_IgnoresRedeliveryAfterNewerMessage(t *testing.T) {
	ctl, _, _ := seeded(t)
	first := incoming("m1", "a", time.Hour)
	second := incoming("m2", "a", 2*time.Hour)

	ctl.AddMessageToConversation(first)
	ctl.AddMessageToConversation(second)
	ctl.AddMessageToConversation(first)

	conv := ctl.Conversations()[0]
	require.Equal(t, "a", conv.ID)
	assert.Equal(t, 4, conv.UnreadCount)
	assert.Equal(t, "m2", conv.LastMessage.ID)
	assert.Equal(t, t0.Add(2*time.Hour), conv.UpdatedAt)

	// A late message that was never delivered still counts but does not
	// replace the newer last message.
	ctl.AddMessageToConversation(incoming("m0", "a", 30*time.Minute))

	conv = ctl.Conversations()[0]
	assert.Equal(t, 5, conv.UnreadCount)
	assert.Equal(t, "m2", conv.LastMessage.ID)
	assert.Equal(t, t0.Add(2*time.Hour), conv.UpdatedAt)
}

func TestAddMessage_OpenFocusedConversationStaysRead(t *testing.T) {
	ctl, _, _ := seeded(t)
	ctx := context.Background()
	ctl.FetchConversation(ctx, "a")

	ctl.AddMessageToConversation(incoming("m9", "a", time.Hour))
	assert.Zero(t, ctl.Conversations()[0].UnreadCount)
	assert.Len(t, ctl.Current().Messages, 1)

	ctl.SetFocused(false)
	ctl.AddMessageToConversation(incoming("m10", "a", 2*time.Hour))
	assert.Equal(t, 1, ctl.Conversations()[0].UnreadCount)
}

func TestAddMessage_OwnMessageIsNotUnread(t *testing.T) {
	ctl, _, _ := seeded(t)
	other := "u-other"
	msg := models.Message{ID: "m9", SenderID: me, ReceiverID: &other, ConversationID: "b", CreatedAt: t0.Add(time.Hour)}

	ctl.AddMessageToConversation(msg)

	assert.Zero(t, ctl.Conversations()[0].UnreadCount)
}

func TestAddMessage_UsesClockWhenTimestampMissing(t *testing.T) {
	ctl, _, _ := seeded(t)
	msg := incoming("m9", "a", 0)
	msg.CreatedAt = time.Time{}

	ctl.AddMessageToConversation(msg)

	assert.Equal(t, t0.Add(24*time.Hour), ctl.Conversations()[0].UpdatedAt)
}

func TestAddConversation_Deduplicates(t *testing.T) {
	ctl, _, notes := seeded(t)
	conv := conversation("z", -time.Hour, 1)

	ctl.AddConversation(conv)
	ctl.AddConversation(conv)

	assert.Equal(t, []string{"z", "b", "c", "a"}, ids(ctl.Conversations()))
	assert.Equal(t, []notify.Notification{{Kind: notify.KindSuccess, Message: "New conversation: topic z"}}, notes.Drain())
}

func TestCreateConversation(t *testing.T) {
	ctl, api, notes := seeded(t)
	ctx := context.Background()

	id, ok := ctl.CreateConversation(ctx, "Order question", []string{"u-other"}, "hi")
	require.True(t, ok)
	assert.Equal(t, "c-new", id)
	assert.Equal(t, "c-new", ctl.Conversations()[0].ID)
	assert.Equal(t, 2, api.calls["list"])

	id, ok = ctl.ContactSupport(ctx, "Refund", "help")
	require.True(t, ok)
	assert.NotEmpty(t, id)
	assert.True(t, api.created[1].Support)

	api.fail["create"] = &client.APIError{Status: http.StatusBadRequest, Message: "invalid input"}
	id, ok = ctl.CreateConversation(ctx, "x", nil, "")
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Equal(t, []string{"Failed to create conversation"}, notes.Errors())
}

func TestMarkAsRead(t *testing.T) {
	ctl, api, notes := seeded(t)
	ctx := context.Background()

	ctl.MarkAsRead(ctx, nil, "a")
	for _, conv := range ctl.Conversations() {
		if conv.ID == "a" {
			assert.Zero(t, conv.UnreadCount)
		}
	}
	require.Len(t, api.read, 1)

	api.fail["read"] = errors.New("timeout")
	ctl.MarkAsRead(ctx, []string{"m1"}, "c")
	assert.Equal(t, 1, ctl.TotalUnread(), "failed read receipts leave counts alone")
	assert.Empty(t, notes.Errors())
}

func TestSearchUsers(t *testing.T) {
	api := newFakeAPI()
	api.users = []models.User{{ID: "u2", Name: "Ana"}}
	ctl, _ := newController(t, api)
	ctx := context.Background()

	ctl.SearchUsers(ctx, "an")
	assert.Equal(t, api.users, ctl.SearchResults())

	ctl.SearchUsers(ctx, "a")
	assert.Empty(t, ctl.SearchResults())
	assert.Equal(t, 1, api.calls["search"])
}

func TestReset_ClosesConversation(t *testing.T) {
	ctl, _, _ := seeded(t)
	ctl.FetchConversation(context.Background(), "a")
	var last *string
	ctl.OnCurrentChange(func(id string) { last = &id })

	ctl.Reset()

	assert.Nil(t, ctl.Current())
	assert.Empty(t, ctl.Conversations())
	require.NotNil(t, last)
	assert.Empty(t, *last)
}
