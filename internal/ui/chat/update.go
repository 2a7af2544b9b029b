package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pokedex-chat/console/internal/interfaces"
)

// Update handles input events and async operation results.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case healthTickMsg:
		// The monitor probes on its own schedule; this just refreshes the
		// status bar rendering.
		return m, healthTick()

	case conversationsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			return m.settleError(msg.err)
		}
		m.conversations = msg.conversations
		m.syncSelection()
		return m, m.loadHistory(m.activeID())

	case historyLoadedMsg:
		if msg.err != nil {
			return m.settleError(msg.err)
		}
		m.refreshViewport(true)
		return m, nil

	case sendResultMsg:
		m.sending = false
		m.conversations = m.client.Conversations()
		m.refreshViewport(true)
		if msg.err != nil {
			return m.settleError(msg.err)
		}
		m.errMsg = ""
		return m, nil

	case conversationMutatedMsg:
		if msg.err != nil {
			return m.settleError(msg.err)
		}
		m.conversations = m.client.Conversations()
		m.syncSelection()
		m.refreshViewport(true)
		return m, m.loadHistory(m.activeID())

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global bindings first.
	switch msg.Type {
	case tea.KeyCtrlL:
		m.session.Logout()
		return m, func() tea.Msg { return LoggedOutMsg{} }
	case tea.KeyCtrlN:
		return m, m.createConversation()
	case tea.KeyTab:
		if m.focus == focusComposer {
			m.setFocus(focusSidebar)
		} else {
			m.setFocus(focusComposer)
		}
		return m, nil
	}

	switch m.focus {
	case focusRename:
		return m.handleRenameKey(msg)
	case focusSidebar:
		return m.handleSidebarKey(msg)
	default:
		return m.handleComposerKey(msg)
	}
}

func (m *Model) handleComposerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		text := strings.TrimSpace(m.composer.Value())
		if text == "" || m.sending {
			return m, nil
		}
		m.sending = true
		m.composer.SetValue("")
		cmd := m.sendMessage(m.activeID(), text)
		// Show the optimistic entry as soon as the client records it.
		m.refreshViewport(true)
		return m, tea.Batch(cmd, m.spin.Tick)

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyUp:
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case msg.Type == tea.KeyDown:
		if m.selected < len(m.conversations)-1 {
			m.selected++
		}
		return m, nil

	case msg.Type == tea.KeyEnter:
		if conv := m.selectedConversation(); conv != nil {
			if err := m.client.SetActiveConversation(conv.ID); err == nil {
				m.setFocus(focusComposer)
				return m, m.loadHistory(conv.ID)
			}
		}
		return m, nil

	case msg.String() == "r":
		if conv := m.selectedConversation(); conv != nil {
			m.rename.SetValue(conv.Title)
			m.rename.Focus()
			m.focus = focusRename
		}
		return m, nil

	case msg.String() == "d":
		if conv := m.selectedConversation(); conv != nil {
			return m, m.deleteConversation(conv.ID)
		}
		return m, nil

	case msg.String() == "c":
		if conv := m.selectedConversation(); conv != nil {
			return m, m.clearHistory(conv.ID)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		title := strings.TrimSpace(m.rename.Value())
		m.rename.Blur()
		m.focus = focusSidebar
		if conv := m.selectedConversation(); conv != nil && title != "" && title != conv.Title {
			return m, m.renameConversation(conv.ID, title)
		}
		return m, nil
	case tea.KeyEsc:
		m.rename.Blur()
		m.focus = focusSidebar
		return m, nil
	}

	var cmd tea.Cmd
	m.rename, cmd = m.rename.Update(msg)
	return m, cmd
}

// settleError routes a failed operation to the status bar, or hands control
// back to the login view when the session expired.
func (m *Model) settleError(err error) (tea.Model, tea.Cmd) {
	message, expired := m.describeError(err)
	if expired {
		return m, func() tea.Msg { return LoggedOutMsg{Expired: true} }
	}
	m.errMsg = message
	return m, nil
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	if f == focusComposer {
		m.composer.Focus()
	} else {
		m.composer.Blur()
	}
}

// syncSelection keeps the sidebar cursor on the active conversation.
func (m *Model) syncSelection() {
	active := m.activeID()
	for i, conv := range m.conversations {
		if conv.ID == active {
			m.selected = i
			return
		}
	}
	if m.selected >= len(m.conversations) {
		m.selected = 0
	}
}

func (m *Model) selectedConversation() *interfaces.Conversation {
	if m.selected < 0 || m.selected >= len(m.conversations) {
		return nil
	}
	conv := m.conversations[m.selected]
	return &conv
}

// refreshViewport re-renders the message list, optionally pinning to the
// bottom so the newest message stays visible.
func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.ready {
		return
	}
	var blocks []string
	for _, msg := range m.client.Messages() {
		blocks = append(blocks, m.render.RenderMessage(msg))
	}
	m.viewport.SetContent(strings.Join(blocks, "\n\n"))
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	contentWidth := width - sidebarWidth - 2
	contentHeight := height - statusBarHeight - composerBarHeight
	if contentWidth < 20 {
		contentWidth = 20
	}
	if contentHeight < 5 {
		contentHeight = 5
	}

	if !m.ready {
		m.viewport = viewport.New(contentWidth, contentHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = contentHeight
	}
	m.composer.Width = contentWidth - 4
	m.render.SetWidth(contentWidth)
	m.refreshViewport(true)
}
