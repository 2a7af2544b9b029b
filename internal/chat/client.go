// Package chat maintains the client's optimistic view of conversations and
// messages. The server stays the source of truth: every local mutation is
// either confirmed by a server response or rolled back when the call fails.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pokedex-chat/console/internal/interfaces"
	"github.com/pokedex-chat/console/internal/logging"
	"github.com/pokedex-chat/console/internal/transport"
)

// Conversation title conventions. A conversation with no messages and one of
// these titles is considered fresh and safe to reuse instead of creating a
// duplicate.
const (
	DefaultConversationTitle = "Main Conversation"
	FreshConversationTitle   = "New Conversation"
)

// conversationListResponse matches GET /api/conversations/.
type conversationListResponse struct {
	Conversations []interfaces.Conversation `json:"conversations"`
	Total         int                       `json:"total"`
}

// wireMessage matches one history entry from the backend.
type wireMessage struct {
	ID          int64     `json:"id"`
	Content     string    `json:"content"`
	IsBot       bool      `json:"is_bot"`
	Timestamp   time.Time `json:"timestamp"`
	PokemonData any       `json:"pokemon_data,omitempty"`
}

// historyResponse matches GET /api/chat/history.
type historyResponse struct {
	ConversationID int64         `json:"conversation_id"`
	Messages       []wireMessage `json:"messages"`
}

// sendResponse matches POST /api/chat/message.
type sendResponse struct {
	UserMessage    wireMessage `json:"user_message"`
	BotResponse    wireMessage `json:"bot_response"`
	ConversationID int64       `json:"conversation_id"`
}

// Client implements interfaces.ConversationClient. All calls go through the
// auth interceptor; the client itself never touches credentials.
type Client struct {
	caller interfaces.Caller
	state  interfaces.SessionStateStore
	logger *logging.Logger

	mu            sync.Mutex
	conversations []interfaces.Conversation
	activeID      int64
	hasActive     bool

	messages *messageList
}

// Option customizes a client at construction time.
type Option func(*Client)

// WithStatePersistence persists and restores the last active conversation
// id across restarts.
func WithStatePersistence(state interfaces.SessionStateStore) Option {
	return func(c *Client) { c.state = state }
}

// NewClient creates a conversation client issuing calls through caller.
func NewClient(caller interfaces.Caller, opts ...Option) *Client {
	c := &Client{
		caller:   caller,
		logger:   logging.GetChatLogger(),
		messages: &messageList{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListConversations fetches the conversation list. An empty result
// synthesizes one default conversation so the UI always has somewhere to
// send messages; that is a client policy, not a server requirement.
func (c *Client) ListConversations(ctx context.Context) ([]interfaces.Conversation, error) {
	resp, err := c.caller.Do(ctx, interfaces.RequestDescriptor{
		Method: http.MethodGet,
		Path:   transport.EndpointConversations,
	})
	if err != nil {
		return nil, err
	}

	var list conversationListResponse
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, fmt.Errorf("parsing conversation list: %w", err)
	}

	if len(list.Conversations) == 0 {
		created, err := c.CreateConversation(ctx, DefaultConversationTitle)
		if err != nil {
			return nil, fmt.Errorf("creating default conversation: %w", err)
		}
		return []interfaces.Conversation{*created}, nil
	}

	c.mu.Lock()
	c.conversations = list.Conversations
	if !c.restoreActiveLocked() {
		c.activeID = list.Conversations[0].ID
		c.hasActive = true
	}
	snapshot := append([]interfaces.Conversation(nil), c.conversations...)
	c.mu.Unlock()

	c.persistActive()
	return snapshot, nil
}

// CreateConversation creates a conversation, unless a fresh one already
// exists locally: repeated "new conversation" clicks reuse the empty one
// instead of accumulating duplicates.
func (c *Client) CreateConversation(ctx context.Context, title string) (*interfaces.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		title = FreshConversationTitle
	}

	c.mu.Lock()
	for _, conv := range c.conversations {
		if conv.MessageCount == 0 && isFreshTitle(conv.Title) {
			c.activeID = conv.ID
			c.hasActive = true
			reused := conv
			c.mu.Unlock()
			c.persistActive()
			c.logger.Debug("Reusing empty conversation", "conversation_id", reused.ID)
			return &reused, nil
		}
	}
	c.mu.Unlock()

	resp, err := c.caller.Do(ctx, interfaces.RequestDescriptor{
		Method: http.MethodPost,
		Path:   transport.EndpointConversations,
		Body:   map[string]string{"title": title},
	})
	if err != nil {
		return nil, err
	}

	var created interfaces.Conversation
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return nil, fmt.Errorf("parsing created conversation: %w", err)
	}

	c.mu.Lock()
	c.conversations = append([]interfaces.Conversation{created}, c.conversations...)
	c.activeID = created.ID
	c.hasActive = true
	c.mu.Unlock()

	c.persistActive()
	return &created, nil
}

// RenameConversation renames on the server, then mirrors the change locally.
func (c *Client) RenameConversation(ctx context.Context, id int64, title string) error {
	_, err := c.caller.Do(ctx, interfaces.RequestDescriptor{
		Method: http.MethodPatch,
		Path:   transport.EndpointConversations + strconv.FormatInt(id, 10),
		Body:   map[string]string{"title": title},
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.conversations {
		if c.conversations[i].ID == id {
			c.conversations[i].Title = title
			c.conversations[i].UpdatedAt = time.Now()
			break
		}
	}
	return nil
}

// DeleteConversation deletes on the server, then repairs the local cache.
// The active-conversation slot never dangles: deleting the active
// conversation selects the first remaining one, or synthesizes a fresh
// default when none remain.
func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	_, err := c.caller.Do(ctx, interfaces.RequestDescriptor{
		Method: http.MethodDelete,
		Path:   transport.EndpointConversations + strconv.FormatInt(id, 10),
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	remaining := c.conversations[:0]
	for _, conv := range c.conversations {
		if conv.ID != id {
			remaining = append(remaining, conv)
		}
	}
	c.conversations = remaining

	deletedActive := c.hasActive && c.activeID == id
	if deletedActive {
		if len(remaining) > 0 {
			c.activeID = remaining[0].ID
		} else {
			c.hasActive = false
		}
		c.messages.clear()
	}
	needDefault := deletedActive && len(remaining) == 0
	c.mu.Unlock()

	if needDefault {
		if _, err := c.CreateConversation(ctx, DefaultConversationTitle); err != nil {
			return fmt.Errorf("creating replacement conversation: %w", err)
		}
		return nil
	}

	c.persistActive()
	return nil
}

// SetActiveConversation switches the conversation targeted by send and load
// operations.
func (c *Client) SetActiveConversation(id int64) error {
	c.mu.Lock()
	found := false
	for _, conv := range c.conversations {
		if conv.ID == id {
			found = true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		return fmt.Errorf("unknown conversation id %d", id)
	}
	c.activeID = id
	c.hasActive = true
	c.mu.Unlock()

	c.persistActive()
	return nil
}

// ActiveConversation returns the cached record of the active conversation.
func (c *Client) ActiveConversation() (*interfaces.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasActive {
		return nil, false
	}
	for _, conv := range c.conversations {
		if conv.ID == c.activeID {
			active := conv
			return &active, true
		}
	}
	return nil, false
}

// SendMessage runs the optimistic send: the user's message appears in the
// local list immediately under a temporary id, and is atomically replaced by
// the server-confirmed user echo and assistant reply once the call succeeds.
// On failure the temporary entry is rolled back and the error surfaces so
// the caller can offer a retry.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message cannot be empty")
	}

	tempID := uuid.NewString()
	pending := interfaces.Message{
		TempID:    tempID,
		Content:   text,
		Role:      interfaces.RoleUser,
		Timestamp: time.Now(),
	}
	if err := c.messages.appendPending(pending); err != nil {
		return err
	}

	body := map[string]any{"message": text}
	if conversationID != 0 {
		body["conversation_id"] = conversationID
	}

	resp, err := c.caller.Do(ctx, interfaces.RequestDescriptor{
		Method: http.MethodPost,
		Path:   transport.EndpointChatMessage,
		Body:   body,
	})
	if err != nil {
		c.messages.rollback(tempID)
		c.logger.LogOptimisticSend(tempID, conversationID, "rolled_back")
		return err
	}

	var confirmed sendResponse
	if err := json.Unmarshal(resp.Body, &confirmed); err != nil {
		c.messages.rollback(tempID)
		return fmt.Errorf("parsing send response: %w", err)
	}

	c.messages.confirm(tempID,
		interfaces.Message{
			ID:        confirmed.UserMessage.ID,
			Content:   confirmed.UserMessage.Content,
			Role:      interfaces.RoleUser,
			Timestamp: confirmed.UserMessage.Timestamp,
		},
		interfaces.Message{
			ID:          confirmed.BotResponse.ID,
			Content:     confirmed.BotResponse.Content,
			Role:        interfaces.RoleAssistant,
			Timestamp:   confirmed.BotResponse.Timestamp,
			PokemonData: confirmed.BotResponse.PokemonData,
		},
	)
	c.bumpMessageCount(confirmed.ConversationID, 2)
	c.logger.LogOptimisticSend(tempID, confirmed.ConversationID, "confirmed")
	return nil
}

// LoadHistory replaces the local message list wholesale with the server's
// ordered sequence for the conversation.
func (c *Client) LoadHistory(ctx context.Context, conversationID int64) error {
	desc := interfaces.RequestDescriptor{
		Method: http.MethodGet,
		Path:   transport.EndpointChatHistory,
	}
	if conversationID != 0 {
		desc.Query = map[string]string{"conversation_id": strconv.FormatInt(conversationID, 10)}
	}

	resp, err := c.caller.Do(ctx, desc)
	if err != nil {
		return err
	}

	var history historyResponse
	if err := json.Unmarshal(resp.Body, &history); err != nil {
		return fmt.Errorf("parsing history response: %w", err)
	}

	msgs := make([]interfaces.Message, len(history.Messages))
	for i, wire := range history.Messages {
		role := interfaces.RoleUser
		if wire.IsBot {
			role = interfaces.RoleAssistant
		}
		msgs[i] = interfaces.Message{
			ID:          wire.ID,
			Content:     wire.Content,
			Role:        role,
			Timestamp:   wire.Timestamp,
			PokemonData: wire.PokemonData,
		}
	}
	c.messages.replaceAll(msgs)
	return nil
}

// ClearHistory deletes the conversation's messages on the server and resets
// the local list and message count.
func (c *Client) ClearHistory(ctx context.Context, conversationID int64) error {
	desc := interfaces.RequestDescriptor{
		Method: http.MethodDelete,
		Path:   transport.EndpointChatHistory,
	}
	if conversationID != 0 {
		desc.Query = map[string]string{"conversation_id": strconv.FormatInt(conversationID, 10)}
	}

	if _, err := c.caller.Do(ctx, desc); err != nil {
		return err
	}

	c.messages.clear()
	c.mu.Lock()
	for i := range c.conversations {
		if c.conversations[i].ID == conversationID {
			c.conversations[i].MessageCount = 0
			break
		}
	}
	c.mu.Unlock()
	return nil
}

// Messages returns a copy of the current message list.
func (c *Client) Messages() []interfaces.Message {
	return c.messages.snapshot()
}

// Conversations returns a copy of the cached conversation list.
func (c *Client) Conversations() []interfaces.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interfaces.Conversation(nil), c.conversations...)
}

// Reset drops all cached state. Registered as a logout hook.
func (c *Client) Reset() {
	c.mu.Lock()
	c.conversations = nil
	c.activeID = 0
	c.hasActive = false
	c.mu.Unlock()
	c.messages.clear()
}

// bumpMessageCount advances a conversation's message count optimistically.
// The count never regresses; history reloads only grow it.
func (c *Client) bumpMessageCount(conversationID int64, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.conversations {
		if c.conversations[i].ID == conversationID {
			c.conversations[i].MessageCount += delta
			c.conversations[i].UpdatedAt = time.Now()
			return
		}
	}
}

// restoreActiveLocked re-selects the persisted active conversation when it
// still exists in the fetched list.
func (c *Client) restoreActiveLocked() bool {
	if c.hasActive {
		for _, conv := range c.conversations {
			if conv.ID == c.activeID {
				return true
			}
		}
	}
	if c.state != nil {
		if id, ok := c.state.LoadActiveConversation(); ok {
			for _, conv := range c.conversations {
				if conv.ID == id {
					c.activeID = id
					c.hasActive = true
					return true
				}
			}
		}
	}
	return false
}

func (c *Client) persistActive() {
	c.mu.Lock()
	state, hasActive, id := c.state, c.hasActive, c.activeID
	c.mu.Unlock()

	if state != nil && hasActive {
		_ = state.SaveActiveConversation(id)
	}
}

func isFreshTitle(title string) bool {
	return strings.HasPrefix(title, FreshConversationTitle) || title == DefaultConversationTitle
}
