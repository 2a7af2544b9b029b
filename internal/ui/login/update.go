package login

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles keyboard input and submission results.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case AuthResultMsg:
		m.submitting = false
		if msg.Err != nil {
			m.errMsg = describeAuthError(msg.Err)
			return m, nil
		}
		// The parent controller observes this message too and switches views;
		// nothing more to do here.
		return m, nil

	case registeredMsg:
		m.submitting = false
		if msg.err != nil {
			m.errMsg = describeAuthError(msg.err)
			return m, nil
		}
		m.mode = modeLogin
		m.status = "Account created. Log in to continue."
		m.errMsg = ""
		m.password.SetValue("")
		m.setFocus(fieldUsername)
		return m, nil

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyTab, tea.KeyDown:
			m.setFocus(m.nextField())
			return m, nil
		case tea.KeyShiftTab, tea.KeyUp:
			m.setFocus(m.prevField())
			return m, nil
		case tea.KeyEnter:
			if problem := m.validate(); problem != "" {
				m.errMsg = problem
				return m, nil
			}
			m.submitting = true
			m.errMsg = ""
			m.status = ""
			return m, tea.Batch(m.submit(), m.spin.Tick)
		case tea.KeyCtrlR:
			m.toggleMode()
			return m, nil
		}
	}

	return m, m.updateInputs(msg)
}

// updateInputs forwards the message to the focused text input.
func (m *Model) updateInputs(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focused {
	case fieldUsername:
		m.username, cmd = m.username.Update(msg)
	case fieldEmail:
		m.email, cmd = m.email.Update(msg)
	case fieldPassword:
		m.password, cmd = m.password.Update(msg)
	}
	return cmd
}

func (m *Model) toggleMode() {
	if m.mode == modeLogin {
		m.mode = modeRegister
	} else {
		m.mode = modeLogin
	}
	m.errMsg = ""
	m.status = ""
	if m.mode == modeLogin && m.focused == fieldEmail {
		m.setFocus(fieldUsername)
	}
}

func (m *Model) nextField() field {
	switch m.focused {
	case fieldUsername:
		if m.mode == modeRegister {
			return fieldEmail
		}
		return fieldPassword
	case fieldEmail:
		return fieldPassword
	default:
		return fieldUsername
	}
}

func (m *Model) prevField() field {
	switch m.focused {
	case fieldPassword:
		if m.mode == modeRegister {
			return fieldEmail
		}
		return fieldUsername
	case fieldEmail:
		return fieldUsername
	default:
		return fieldPassword
	}
}

func (m *Model) setFocus(f field) {
	m.focused = f
	inputs := []*textinput.Model{&m.username, &m.email, &m.password}
	for i := range inputs {
		if field(i) == f {
			inputs[i].Focus()
		} else {
			inputs[i].Blur()
		}
	}
}
