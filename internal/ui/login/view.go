package login

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			MarginBottom(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(1, 3)

	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// View renders the login or registration form.
func (m *Model) View() string {
	var b strings.Builder

	title := "Pokéchat Login"
	if m.mode == modeRegister {
		title = "Pokéchat Registration"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Username"))
	b.WriteString("\n")
	b.WriteString(m.username.View())
	b.WriteString("\n\n")

	if m.mode == modeRegister {
		b.WriteString(labelStyle.Render("Email"))
		b.WriteString("\n")
		b.WriteString(m.email.View())
		b.WriteString("\n\n")
	}

	b.WriteString(labelStyle.Render("Password"))
	b.WriteString("\n")
	b.WriteString(m.password.View())
	b.WriteString("\n")

	if m.submitting {
		b.WriteString("\n" + m.spin.View() + " Authenticating...")
	}
	if m.errMsg != "" {
		b.WriteString("\n" + errorStyle.Render(m.errMsg))
	}
	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status))
	}

	help := "enter submit • tab next field • ctrl+r switch to register • ctrl+c quit"
	if m.mode == modeRegister {
		help = "enter submit • tab next field • ctrl+r switch to login • ctrl+c quit"
	}
	b.WriteString("\n" + helpStyle.Render(help))

	form := boxStyle.Render(b.String())
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, form)
	}
	return form
}
