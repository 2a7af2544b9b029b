// Package app provides the top-level bubbletea controller. It owns the
// switch between the login view and the chat view and relays window size and
// quit handling to whichever child is active.
package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pokedex-chat/console/internal/content"
	"github.com/pokedex-chat/console/internal/health"
	"github.com/pokedex-chat/console/internal/interfaces"
	"github.com/pokedex-chat/console/internal/logging"
	"github.com/pokedex-chat/console/internal/ui/chat"
	"github.com/pokedex-chat/console/internal/ui/login"
)

// activeView determines which child model is visible and receiving updates.
type activeView int

const (
	loginView activeView = iota
	chatView
)

// Controller is the root model handed to the bubbletea program.
type Controller struct {
	session interfaces.SessionManager
	client  interfaces.ConversationClient
	monitor *health.Monitor
	render  *content.Renderer
	logger  *logging.Logger

	loginModel tea.Model
	chatModel  tea.Model

	currentView activeView
	width       int
	height      int
}

// NewController wires the root controller. startAuthenticated is true when a
// persisted session was successfully resumed, in which case the chat view
// opens directly.
func NewController(
	session interfaces.SessionManager,
	client interfaces.ConversationClient,
	monitor *health.Monitor,
	renderer *content.Renderer,
	startAuthenticated bool,
) *Controller {
	c := &Controller{
		session:     session,
		client:      client,
		monitor:     monitor,
		render:      renderer,
		logger:      logging.GetUILogger(),
		loginModel:  login.NewModel(session),
		currentView: loginView,
	}
	if startAuthenticated {
		c.chatModel = chat.NewModel(client, session, monitor, renderer)
		c.currentView = chatView
	}
	return c
}

// Init initializes the active child model.
func (c *Controller) Init() tea.Cmd {
	if c.currentView == chatView {
		return c.chatModel.Init()
	}
	return c.loginModel.Init()
}

// Update routes messages, handling the view transitions itself.
func (c *Controller) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return c, tea.Quit
		}

	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.loginModel, _ = c.loginModel.Update(msg)
		if c.chatModel != nil {
			c.chatModel, _ = c.chatModel.Update(msg)
		}

	case login.AuthResultMsg:
		if msg.Err != nil {
			// Let the login view display the failure.
			c.loginModel, cmd = c.loginModel.Update(msg)
			return c, cmd
		}
		c.logger.Info("Login succeeded, switching to chat view")
		c.chatModel = chat.NewModel(c.client, c.session, c.monitor, c.render)
		c.currentView = chatView
		c.chatModel, cmd = c.chatModel.Update(tea.WindowSizeMsg{Width: c.width, Height: c.height})
		cmds = append(cmds, cmd, c.chatModel.Init())
		return c, tea.Batch(cmds...)

	case chat.LoggedOutMsg:
		c.logger.Info("Session ended, returning to login view", "expired", msg.Expired)
		c.chatModel = nil
		c.currentView = loginView
		c.loginModel = login.NewModel(c.session)
		c.loginModel, _ = c.loginModel.Update(tea.WindowSizeMsg{Width: c.width, Height: c.height})
		return c, c.loginModel.Init()
	}

	switch c.currentView {
	case loginView:
		c.loginModel, cmd = c.loginModel.Update(msg)
	case chatView:
		c.chatModel, cmd = c.chatModel.Update(msg)
	}
	cmds = append(cmds, cmd)

	return c, tea.Batch(cmds...)
}

// View renders the active child model.
func (c *Controller) View() string {
	if c.currentView == chatView && c.chatModel != nil {
		return c.chatModel.View()
	}
	return c.loginModel.View()
}
