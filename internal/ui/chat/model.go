// Package chat implements the main conversation view: a message viewport, a
// composer input and a conversation sidebar with create, rename and delete
// operations. All data flows through the conversation client; the view only
// renders its cached state.
package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pokedex-chat/console/internal/apierr"
	"github.com/pokedex-chat/console/internal/content"
	"github.com/pokedex-chat/console/internal/health"
	"github.com/pokedex-chat/console/internal/interfaces"
)

// focusArea selects which pane receives keyboard input.
type focusArea int

const (
	focusComposer focusArea = iota
	focusSidebar
	focusRename
)

const (
	requestTimeout    = 30 * time.Second
	healthPollEvery   = 5 * time.Second
	sidebarWidth      = 30
	statusBarHeight   = 1
	composerBarHeight = 3
)

// Model is the state of the conversation view.
type Model struct {
	client  interfaces.ConversationClient
	session interfaces.SessionManager
	monitor *health.Monitor
	render  *content.Renderer

	viewport viewport.Model
	composer textinput.Model
	rename   textinput.Model
	spin     spinner.Model

	focus         focusArea
	conversations []interfaces.Conversation
	selected      int
	sending       bool
	loading       bool
	errMsg        string

	user *interfaces.UserProfile

	width  int
	height int
	ready  bool
}

// LoggedOutMsg tells the parent controller the session ended, by explicit
// logout or by expiry, and the login view should take over.
type LoggedOutMsg struct {
	Expired bool
}

type (
	// conversationsLoadedMsg carries the refreshed conversation list.
	conversationsLoadedMsg struct {
		conversations []interfaces.Conversation
		err           error
	}

	// historyLoadedMsg signals the active conversation's history arrived.
	historyLoadedMsg struct{ err error }

	// sendResultMsg signals an optimistic send settled.
	sendResultMsg struct{ err error }

	// conversationMutatedMsg signals a create, rename, delete or clear
	// finished; the list is re-read from the client.
	conversationMutatedMsg struct{ err error }

	// healthTickMsg triggers a status bar refresh.
	healthTickMsg struct{}
)

// NewModel creates the conversation view.
func NewModel(
	client interfaces.ConversationClient,
	session interfaces.SessionManager,
	monitor *health.Monitor,
	renderer *content.Renderer,
) *Model {
	composer := textinput.New()
	composer.Placeholder = "Ask the Pokédex anything..."
	composer.CharLimit = 2000
	composer.Focus()

	rename := textinput.New()
	rename.Placeholder = "new title"
	rename.CharLimit = 120
	rename.Width = sidebarWidth - 4

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	m := &Model{
		client:   client,
		session:  session,
		monitor:  monitor,
		render:   renderer,
		composer: composer,
		rename:   rename,
		spin:     spin,
		loading:  true,
	}
	if user, ok := session.CurrentUser(); ok {
		m.user = user
	}
	return m
}

// Init loads the conversation list and starts the periodic tickers.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadConversations(), m.spin.Tick, healthTick())
}

func healthTick() tea.Cmd {
	return tea.Every(healthPollEvery, func(time.Time) tea.Msg {
		return healthTickMsg{}
	})
}

// loadConversations fetches the list and the active conversation's history.
func (m *Model) loadConversations() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		conversations, err := m.client.ListConversations(ctx)
		return conversationsLoadedMsg{conversations: conversations, err: err}
	}
}

func (m *Model) loadHistory(conversationID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return historyLoadedMsg{err: m.client.LoadHistory(ctx, conversationID)}
	}
}

func (m *Model) sendMessage(conversationID int64, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return sendResultMsg{err: m.client.SendMessage(ctx, conversationID, text)}
	}
}

func (m *Model) createConversation() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := m.client.CreateConversation(ctx, "")
		return conversationMutatedMsg{err: err}
	}
}

func (m *Model) renameConversation(id int64, title string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return conversationMutatedMsg{err: m.client.RenameConversation(ctx, id, title)}
	}
}

func (m *Model) deleteConversation(id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return conversationMutatedMsg{err: m.client.DeleteConversation(ctx, id)}
	}
}

func (m *Model) clearHistory(id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return conversationMutatedMsg{err: m.client.ClearHistory(ctx, id)}
	}
}

// activeID returns the id of the active conversation, or 0.
func (m *Model) activeID() int64 {
	if active, ok := m.client.ActiveConversation(); ok {
		return active.ID
	}
	return 0
}

// describeError maps err to a status-bar message, detecting session expiry.
func (m *Model) describeError(err error) (string, bool) {
	if apierr.IsSessionExpired(err) {
		return "", true
	}
	return apierr.UserMessage(err), false
}
