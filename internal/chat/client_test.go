package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/pokedex-chat/console/internal/apierr"
	"github.com/pokedex-chat/console/internal/interfaces"
)

// fakeCaller answers requests via a scriptable handler keyed on method and
// path, recording every call.
type fakeCaller struct {
	mu      sync.Mutex
	calls   []interfaces.RequestDescriptor
	handler func(desc interfaces.RequestDescriptor) (*interfaces.Response, error)
}

func (f *fakeCaller) Do(ctx context.Context, desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, desc)
	handler := f.handler
	f.mu.Unlock()
	return handler(desc)
}

func (f *fakeCaller) recorded() []interfaces.RequestDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interfaces.RequestDescriptor(nil), f.calls...)
}

func jsonResponse(t *testing.T, v any) *interfaces.Response {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshaling fake response: %v", err)
	}
	return &interfaces.Response{StatusCode: http.StatusOK, Body: body}
}

// fakeStateStore is an in-memory interfaces.SessionStateStore.
type fakeStateStore struct {
	mu       sync.Mutex
	activeID int64
	hasID    bool
}

func (f *fakeStateStore) SaveCredential(interfaces.Credential) error { return nil }
func (f *fakeStateStore) LoadCredential() (interfaces.Credential, bool, error) {
	return interfaces.Credential{}, false, nil
}
func (f *fakeStateStore) ClearSession() error { return nil }

func (f *fakeStateStore) SaveActiveConversation(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activeID, f.hasID = id, true
	return nil
}

func (f *fakeStateStore) LoadActiveConversation() (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeID, f.hasID
}

func listBody(convs ...interfaces.Conversation) conversationListResponse {
	return conversationListResponse{Conversations: convs, Total: len(convs)}
}

func TestListConversationsEmptySynthesizesDefault(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		switch {
		case desc.Method == http.MethodGet:
			return jsonResponse(t, listBody()), nil
		case desc.Method == http.MethodPost:
			body := desc.Body.(map[string]string)
			if body["title"] != DefaultConversationTitle {
				t.Errorf("Expected default title, got %q", body["title"])
			}
			return jsonResponse(t, interfaces.Conversation{ID: 1, Title: body["title"]}), nil
		}
		return nil, fmt.Errorf("unexpected call %s %s", desc.Method, desc.Path)
	}

	c := NewClient(caller)
	convs, err := c.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 1 || convs[0].Title != DefaultConversationTitle {
		t.Fatalf("Expected one synthesized default conversation, got %+v", convs)
	}
	if active, ok := c.ActiveConversation(); !ok || active.ID != 1 {
		t.Errorf("The synthesized conversation must become active")
	}
}

func TestListConversationsRestoresPersistedActive(t *testing.T) {
	caller := &fakeCaller{handler: func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		return jsonResponse(t, listBody(
			interfaces.Conversation{ID: 1, Title: "Main Conversation", MessageCount: 4},
			interfaces.Conversation{ID: 2, Title: "Kanto starters", MessageCount: 8},
		)), nil
	}}
	state := &fakeStateStore{}
	_ = state.SaveActiveConversation(2)

	c := NewClient(caller, WithStatePersistence(state))
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}

	active, ok := c.ActiveConversation()
	if !ok || active.ID != 2 {
		t.Fatalf("Expected the persisted conversation 2 restored, got %+v ok=%v", active, ok)
	}
}

func TestListConversationsDefaultsToFirst(t *testing.T) {
	caller := &fakeCaller{handler: func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		return jsonResponse(t, listBody(
			interfaces.Conversation{ID: 7, Title: "Main Conversation"},
			interfaces.Conversation{ID: 9, Title: "Gym badges"},
		)), nil
	}}

	c := NewClient(caller)
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if active, ok := c.ActiveConversation(); !ok || active.ID != 7 {
		t.Errorf("Expected the first conversation active, got %+v", active)
	}
}

func TestCreateConversationReusesEmptyFreshOne(t *testing.T) {
	caller := &fakeCaller{handler: func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		if desc.Method == http.MethodGet {
			return jsonResponse(t, listBody(
				interfaces.Conversation{ID: 3, Title: FreshConversationTitle + " 2", MessageCount: 0},
				interfaces.Conversation{ID: 1, Title: "Team planning", MessageCount: 12},
			)), nil
		}
		t.Errorf("No create call expected, got %s %s", desc.Method, desc.Path)
		return nil, errors.New("unexpected call")
	}}

	c := NewClient(caller)
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}

	conv, err := c.CreateConversation(context.Background(), "whatever")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if conv.ID != 3 {
		t.Fatalf("Expected the empty fresh conversation reused, got id %d", conv.ID)
	}
	if active, ok := c.ActiveConversation(); !ok || active.ID != 3 {
		t.Errorf("The reused conversation must become active")
	}
}

func TestCreateConversationSkipsNonEmptyFreshTitle(t *testing.T) {
	created := false
	caller := &fakeCaller{}
	caller.handler = func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		switch desc.Method {
		case http.MethodGet:
			// Fresh title but already holds messages, so not reusable.
			return jsonResponse(t, listBody(
				interfaces.Conversation{ID: 3, Title: FreshConversationTitle, MessageCount: 2},
			)), nil
		case http.MethodPost:
			created = true
			return jsonResponse(t, interfaces.Conversation{ID: 4, Title: FreshConversationTitle}), nil
		}
		return nil, fmt.Errorf("unexpected call %s %s", desc.Method, desc.Path)
	}

	c := NewClient(caller)
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}

	conv, err := c.CreateConversation(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if !created || conv.ID != 4 {
		t.Fatalf("Expected a new conversation, got %+v (created=%v)", conv, created)
	}
}

func TestRenameConversationRoundTrip(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		if desc.Method == http.MethodGet {
			return jsonResponse(t, listBody(interfaces.Conversation{ID: 5, Title: "Old name"})), nil
		}
		return jsonResponse(t, map[string]string{"message": "updated"}), nil
	}

	c := NewClient(caller)
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.RenameConversation(context.Background(), 5, "Battle strategies"); err != nil {
		t.Fatalf("RenameConversation failed: %v", err)
	}

	calls := caller.recorded()
	last := calls[len(calls)-1]
	if last.Method != http.MethodPatch || last.Path != "/api/conversations/5" {
		t.Errorf("Expected PATCH /api/conversations/5, got %s %s", last.Method, last.Path)
	}
	if body := last.Body.(map[string]string); body["title"] != "Battle strategies" {
		t.Errorf("Expected the new title in the body, got %q", body["title"])
	}

	convs := c.Conversations()
	if len(convs) != 1 || convs[0].Title != "Battle strategies" {
		t.Errorf("Local cache must mirror the rename, got %+v", convs)
	}
}

func TestDeleteActiveConversationSelectsRemaining(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		if desc.Method == http.MethodGet {
			return jsonResponse(t, listBody(
				interfaces.Conversation{ID: 1, Title: "Main Conversation", MessageCount: 2},
				interfaces.Conversation{ID: 2, Title: "Evolutions", MessageCount: 6},
			)), nil
		}
		return jsonResponse(t, map[string]string{"message": "deleted"}), nil
	}

	c := NewClient(caller)
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.DeleteConversation(context.Background(), 1); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	if active, ok := c.ActiveConversation(); !ok || active.ID != 2 {
		t.Errorf("Expected the remaining conversation to become active, got %+v", active)
	}
	if got := len(c.Conversations()); got != 1 {
		t.Errorf("Expected 1 conversation left, got %d", got)
	}
}

func TestDeleteLastConversationSynthesizesDefault(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		switch desc.Method {
		case http.MethodGet:
			return jsonResponse(t, listBody(interfaces.Conversation{ID: 1, Title: "Only one", MessageCount: 2})), nil
		case http.MethodDelete:
			return jsonResponse(t, map[string]string{"message": "deleted"}), nil
		case http.MethodPost:
			return jsonResponse(t, interfaces.Conversation{ID: 2, Title: DefaultConversationTitle}), nil
		}
		return nil, fmt.Errorf("unexpected call %s %s", desc.Method, desc.Path)
	}

	c := NewClient(caller)
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.DeleteConversation(context.Background(), 1); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	active, ok := c.ActiveConversation()
	if !ok || active.ID != 2 || active.Title != DefaultConversationTitle {
		t.Fatalf("Expected a fresh default conversation, got %+v ok=%v", active, ok)
	}
}

func TestSetActiveConversationRejectsUnknownID(t *testing.T) {
	c := NewClient(&fakeCaller{handler: func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		return jsonResponse(t, listBody(interfaces.Conversation{ID: 1})), nil
	}})
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.SetActiveConversation(99); err == nil {
		t.Fatalf("Expected an error for an unknown conversation id")
	}
}

func TestSendMessageConfirmsOptimisticEntry(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	caller := &fakeCaller{}
	var observedPending bool
	var c *Client
	caller.handler = func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		if desc.Method == http.MethodGet {
			return jsonResponse(t, listBody(interfaces.Conversation{ID: 1, Title: "Main Conversation", MessageCount: 2})), nil
		}
		// While the call is in flight the message must already be visible
		// as a pending entry.
		for _, msg := range c.Messages() {
			if msg.State == interfaces.MessagePending && msg.Content == "tell me about snorlax" {
				observedPending = true
			}
		}
		return jsonResponse(t, sendResponse{
			UserMessage:    wireMessage{ID: 11, Content: "tell me about snorlax", Timestamp: now},
			BotResponse:    wireMessage{ID: 12, Content: "Snorlax is a sleepy giant.", IsBot: true, Timestamp: now},
			ConversationID: 1,
		}), nil
	}

	c = NewClient(caller)
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.SendMessage(context.Background(), 1, "tell me about snorlax"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if !observedPending {
		t.Errorf("The message must appear as pending before the server responds")
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected the pending entry replaced by the confirmed pair, got %d messages", len(msgs))
	}
	if msgs[0].ID != 11 || msgs[0].Role != interfaces.RoleUser || msgs[0].State != interfaces.MessageConfirmed {
		t.Errorf("Unexpected user echo: %+v", msgs[0])
	}
	if msgs[1].ID != 12 || msgs[1].Role != interfaces.RoleAssistant {
		t.Errorf("Unexpected assistant reply: %+v", msgs[1])
	}

	convs := c.Conversations()
	if convs[0].MessageCount != 4 {
		t.Errorf("Expected message count bumped to 4, got %d", convs[0].MessageCount)
	}
}

func TestSendMessageRollsBackOnFailure(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		if desc.Method == http.MethodGet {
			return jsonResponse(t, listBody(interfaces.Conversation{ID: 1, Title: "Main Conversation"})), nil
		}
		return nil, &apierr.NetworkError{Op: "POST /api/chat/message", Cause: errors.New("connection refused")}
	}

	c := NewClient(caller)
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := c.SendMessage(context.Background(), 1, "hello?")
	var netErr *apierr.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected the network error surfaced, got %v", err)
	}
	if got := len(c.Messages()); got != 0 {
		t.Errorf("Expected the optimistic entry rolled back, %d messages remain", got)
	}
	if convs := c.Conversations(); convs[0].MessageCount != 0 {
		t.Errorf("Message count must not move on a failed send, got %d", convs[0].MessageCount)
	}
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	caller := &fakeCaller{handler: func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		t.Errorf("No call expected for an empty message")
		return nil, errors.New("unexpected call")
	}}

	c := NewClient(caller)
	if err := c.SendMessage(context.Background(), 1, "   "); err == nil {
		t.Fatalf("Expected an error for a blank message")
	}
}

func TestLoadHistoryMapsRolesAndOrder(t *testing.T) {
	now := time.Now().UTC()
	caller := &fakeCaller{handler: func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		if q := desc.Query["conversation_id"]; q != "7" {
			t.Errorf("Expected conversation_id=7 in the query, got %q", q)
		}
		return jsonResponse(t, historyResponse{
			ConversationID: 7,
			Messages: []wireMessage{
				{ID: 1, Content: "who is mewtwo", Timestamp: now},
				{ID: 2, Content: "A genetic Pokémon.", IsBot: true, Timestamp: now},
			},
		}), nil
	}}

	c := NewClient(caller)
	if err := c.LoadHistory(context.Background(), 7); err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != interfaces.RoleUser || msgs[1].Role != interfaces.RoleAssistant {
		t.Errorf("is_bot mapping wrong: %v, %v", msgs[0].Role, msgs[1].Role)
	}
	for i, msg := range msgs {
		if msg.State != interfaces.MessageConfirmed {
			t.Errorf("History entry %d must be confirmed", i)
		}
	}
}

func TestClearHistoryResetsLocalState(t *testing.T) {
	caller := &fakeCaller{}
	caller.handler = func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		if desc.Method == http.MethodGet {
			return jsonResponse(t, listBody(interfaces.Conversation{ID: 1, Title: "Main Conversation", MessageCount: 6})), nil
		}
		return jsonResponse(t, map[string]string{"message": "cleared"}), nil
	}

	c := NewClient(caller)
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.messages.replaceAll([]interfaces.Message{{ID: 1, Content: "stale"}})

	if err := c.ClearHistory(context.Background(), 1); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	if got := len(c.Messages()); got != 0 {
		t.Errorf("Expected the local list emptied, got %d entries", got)
	}
	if convs := c.Conversations(); convs[0].MessageCount != 0 {
		t.Errorf("Expected message count reset, got %d", convs[0].MessageCount)
	}
}

func TestResetDropsEverything(t *testing.T) {
	caller := &fakeCaller{handler: func(desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
		return jsonResponse(t, listBody(interfaces.Conversation{ID: 1, Title: "Main Conversation"})), nil
	}}

	c := NewClient(caller)
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.messages.replaceAll([]interfaces.Message{{ID: 1, Content: "bye"}})

	c.Reset()

	if len(c.Conversations()) != 0 || len(c.Messages()) != 0 {
		t.Errorf("Reset must drop all cached state")
	}
	if _, ok := c.ActiveConversation(); ok {
		t.Errorf("Reset must clear the active conversation")
	}
}
