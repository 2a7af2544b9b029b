package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pokedex-chat/console/internal/health"
)

var (
	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	sidebarTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true)

	selectedConvStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("88")).
				Bold(true)

	convStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))

	composerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
)

// View renders the sidebar, message viewport, composer and status bar.
func (m *Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), m.contentView())
	return lipgloss.JoinVertical(lipgloss.Left, main, m.statusBarView())
}

func (m *Model) sidebarView() string {
	var b strings.Builder
	b.WriteString(sidebarTitleStyle.Render("Conversations"))
	b.WriteString("\n\n")

	activeID := m.activeID()
	for i, conv := range m.conversations {
		label := m.render.RenderConversationLabel(conv)
		if conv.ID == activeID {
			label = "● " + label
		} else {
			label = "  " + label
		}
		label = truncate(label, sidebarWidth-2)

		if i == m.selected && m.focus != focusComposer {
			b.WriteString(selectedConvStyle.Render(label))
		} else {
			b.WriteString(convStyle.Render(label))
		}
		b.WriteString("\n")

		if i == m.selected && m.focus == focusRename {
			b.WriteString(m.rename.View())
			b.WriteString("\n")
		}
	}

	if m.focus == focusSidebar {
		b.WriteString("\n" + statusStyle.Render("enter open • r rename\nd delete • c clear"))
	}

	height := m.height - statusBarHeight
	return sidebarStyle.Width(sidebarWidth).Height(height).Render(b.String())
}

func (m *Model) contentView() string {
	composer := m.composer.View()
	if m.sending {
		composer = m.spin.View() + " " + composer
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		composerStyle.Width(m.viewport.Width).Render(composer),
	)
}

func (m *Model) statusBarView() string {
	var parts []string

	if m.user != nil {
		parts = append(parts, statusStyle.Render("Trainer: "+m.user.Username))
	}
	parts = append(parts, m.healthView())
	if m.loading {
		parts = append(parts, m.spin.View()+" loading")
	}
	if m.errMsg != "" {
		parts = append(parts, errorStyle.Render(m.errMsg))
	}
	parts = append(parts, statusStyle.Render("tab focus • ctrl+n new • ctrl+l logout • ctrl+c quit"))

	return strings.Join(parts, statusStyle.Render("  |  "))
}

func (m *Model) healthView() string {
	snapshot := m.monitor.Current()
	switch snapshot.Status {
	case health.StatusReady:
		return onlineStyle.Render(fmt.Sprintf("● online %dms", snapshot.ResponseTime.Milliseconds()))
	case health.StatusOffline:
		return offlineStyle.Render("● offline")
	default:
		return statusStyle.Render("● checking")
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
