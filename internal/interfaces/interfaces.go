// Package interfaces defines the core types and interfaces shared across the
// Pokéchat console, enabling dependency injection and testability throughout
// the session and messaging layers.
package interfaces

import (
	"context"
	"net/http"
	"time"
)

// Credential is the access token currently attached to outbound calls.
// Absence of a credential means the session is unauthenticated.
type Credential struct {
	AccessToken string `yaml:"accessToken" json:"access_token"`
	TokenType   string `yaml:"tokenType" json:"token_type"`
}

// AuthorizationValue returns the value for the Authorization header.
func (c Credential) AuthorizationValue() string {
	typ := c.TokenType
	// The backend issues token_type "bearer"; the header convention is "Bearer".
	if typ == "" || typ == "bearer" {
		typ = "Bearer"
	}
	return typ + " " + c.AccessToken
}

// UserProfile describes the authenticated user as reported by /auth/me.
type UserProfile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Conversation is the client's cached copy of a server-owned conversation.
type Conversation struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageState tags a message as optimistic (awaiting server confirmation)
// or confirmed by the server.
type MessageState string

const (
	MessagePending   MessageState = "pending"
	MessageConfirmed MessageState = "confirmed"
)

// Message is one entry in the active conversation's message list. A pending
// message carries a client-assigned TempID until the server acknowledges it;
// confirmed messages carry the server-assigned ID.
type Message struct {
	ID          int64        `json:"id,omitempty"`
	TempID      string       `json:"-"`
	Content     string       `json:"content"`
	Role        Role         `json:"role"`
	Timestamp   time.Time    `json:"timestamp"`
	PokemonData any          `json:"pokemon_data,omitempty"`
	State       MessageState `json:"-"`
}

// RequestDescriptor describes a single HTTP call to the backend. Descriptors
// are value types so a call can be replayed verbatim after token renewal.
type RequestDescriptor struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
	Header http.Header

	// Exempt marks login/register/refresh calls: a 401 on an exempt call is
	// a credential rejection, never a signal to renew the current session.
	Exempt bool
}

// Response is the processed result of a successful (2xx) backend call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Transport performs a single network call. It attaches no credentials,
// performs no retries and keeps no cache.
type Transport interface {
	Execute(ctx context.Context, desc RequestDescriptor) (*Response, error)
}

// Caller issues authenticated calls. The auth interceptor is the canonical
// implementation; everything above the session layer talks through it.
type Caller interface {
	Do(ctx context.Context, desc RequestDescriptor) (*Response, error)
}

// CredentialStore holds the current credential. Reads and writes must be
// atomic with respect to the interceptor's renewal logic.
type CredentialStore interface {
	Get() (Credential, bool)
	Set(Credential)
	Clear()
}

// Renewer exchanges a stale credential for a fresh one. The interceptor
// guarantees at most one concurrent invocation.
type Renewer interface {
	Renew(ctx context.Context, stale Credential) (Credential, error)
}

// SessionPhase is the coarse lifecycle of the authentication session.
type SessionPhase string

const (
	PhaseAnonymous      SessionPhase = "anonymous"
	PhaseAuthenticating SessionPhase = "authenticating"
	PhaseAuthenticated  SessionPhase = "authenticated"
	PhaseRenewalPending SessionPhase = "renewal_pending"
	PhaseExpired        SessionPhase = "expired"
)

// SessionManager orchestrates login, registration, renewal and logout.
type SessionManager interface {
	Renewer

	Login(ctx context.Context, username, password string) (*UserProfile, error)
	Register(ctx context.Context, username, email, password string) (*UserProfile, error)
	Hydrate(ctx context.Context) (*UserProfile, error)
	Logout()
	Phase() SessionPhase
	CurrentUser() (*UserProfile, bool)
}

// ConversationClient exposes the conversation and messaging operations backed
// by the optimistic local state machine.
type ConversationClient interface {
	ListConversations(ctx context.Context) ([]Conversation, error)
	CreateConversation(ctx context.Context, title string) (*Conversation, error)
	RenameConversation(ctx context.Context, id int64, title string) error
	DeleteConversation(ctx context.Context, id int64) error
	SetActiveConversation(id int64) error
	ActiveConversation() (*Conversation, bool)
	SendMessage(ctx context.Context, conversationID int64, text string) error
	LoadHistory(ctx context.Context, conversationID int64) error
	ClearHistory(ctx context.Context, conversationID int64) error
	Messages() []Message
	Conversations() []Conversation
	Reset()
}

// SessionStateStore persists the small pieces of state that survive a
// restart: the access token (encrypted at rest) and the last active
// conversation id.
type SessionStateStore interface {
	SaveCredential(Credential) error
	LoadCredential() (Credential, bool, error)
	SaveActiveConversation(id int64) error
	LoadActiveConversation() (int64, bool)
	ClearSession() error
}
