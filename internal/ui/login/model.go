// Package login implements the authentication view: username and password
// inputs, an optional registration form, and submission feedback. A
// successful login hands control to the chat view through AuthResultMsg.
package login

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pokedex-chat/console/internal/apierr"
	"github.com/pokedex-chat/console/internal/interfaces"
)

// formMode selects between the login and registration forms.
type formMode int

const (
	modeLogin formMode = iota
	modeRegister
)

// field indexes into the focusable inputs, top to bottom.
type field int

const (
	fieldUsername field = iota
	fieldEmail
	fieldPassword
)

const submitTimeout = 30 * time.Second

// Model is the state of the authentication view.
type Model struct {
	session interfaces.SessionManager

	mode     formMode
	focused  field
	username textinput.Model
	email    textinput.Model
	password textinput.Model
	spin     spinner.Model

	submitting bool
	status     string
	errMsg     string

	width  int
	height int
}

// AuthResultMsg is emitted when a login attempt settles. The parent
// controller switches to the chat view on success.
type AuthResultMsg struct {
	User *interfaces.UserProfile
	Err  error
}

// registeredMsg is the internal result of a registration attempt.
type registeredMsg struct {
	user *interfaces.UserProfile
	err  error
}

// NewModel creates the authentication view bound to the session manager.
func NewModel(session interfaces.SessionManager) *Model {
	username := textinput.New()
	username.Placeholder = "trainer name"
	username.CharLimit = 64
	username.Width = 32
	username.Focus()

	email := textinput.New()
	email.Placeholder = "email (optional)"
	email.CharLimit = 128
	email.Width = 32

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.Width = 32
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &Model{
		session:  session,
		username: username,
		email:    email,
		password: password,
		spin:     spin,
	}
}

// Init starts the spinner ticker.
func (m *Model) Init() tea.Cmd {
	return m.spin.Tick
}

// submit runs the login or registration call off the UI loop.
func (m *Model) submit() tea.Cmd {
	username := m.username.Value()
	email := m.email.Value()
	password := m.password.Value()

	if m.mode == modeRegister {
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
			defer cancel()
			user, err := m.session.Register(ctx, username, email, password)
			return registeredMsg{user: user, err: err}
		}
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		user, err := m.session.Login(ctx, username, password)
		return AuthResultMsg{User: user, Err: err}
	}
}

// validate reports the first problem with the form, or "".
func (m *Model) validate() string {
	if m.username.Value() == "" {
		return "Enter a username."
	}
	if m.password.Value() == "" {
		return "Enter a password."
	}
	if m.mode == modeRegister && len(m.password.Value()) < 8 {
		return "Password must be at least 8 characters."
	}
	return ""
}

func describeAuthError(err error) string {
	return apierr.UserMessage(err)
}
