// 文件路径: internal/tui/update.go
// 模块说明: TUI 消息分发与按键处理。
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/creamcroissant/mscript/internal/protocol"
)

// Update 实现 tea.Model。
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case resultMsg:
		m.view = ViewResult
		m.resultTitle = msg.title
		m.resultBody = msg.body
		m.err = nil
		return m, nil

	case errorMsg:
		m.view = ViewResult
		m.resultTitle = "操作失败 Error"
		m.resultBody = ""
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		if m.view == ViewBusy {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.view == ViewDomain {
		return m.updateInputs(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// 文本录入视图优先把按键交给输入框。
	if m.view == ViewDomain {
		return m.handleDomainKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		return m.handleUp()

	case key.Matches(msg, m.keys.Down):
		return m.handleDown()

	case key.Matches(msg, m.keys.Enter):
		return m.handleEnter()

	case key.Matches(msg, m.keys.Back):
		return m.handleBack()
	}
	return m, nil
}

func (m Model) handleUp() (tea.Model, tea.Cmd) {
	switch m.view {
	case ViewMenu:
		m.selectedAction--
		if m.selectedAction < 0 {
			m.selectedAction = len(m.actions) - 1
		}
	case ViewProtocol:
		m.selectedChoice--
		if m.selectedChoice < 0 {
			m.selectedChoice = len(m.choices) - 1
		}
	}
	return m, nil
}

func (m Model) handleDown() (tea.Model, tea.Cmd) {
	switch m.view {
	case ViewMenu:
		m.selectedAction++
		if m.selectedAction >= len(m.actions) {
			m.selectedAction = 0
		}
	case ViewProtocol:
		m.selectedChoice++
		if m.selectedChoice >= len(m.choices) {
			m.selectedChoice = 0
		}
	}
	return m, nil
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.view {
	case ViewMenu:
		return m.actions[m.selectedAction].run(&m)

	case ViewProtocol:
		m.pending = m.choices[m.selectedChoice]
		if m.pending.Mode == protocol.ModeTLS {
			m.view = ViewDomain
			m.inputErr = ""
			m.focusEmail = false
			m.domainInput.SetValue("")
			m.emailInput.SetValue("")
			m.emailInput.Blur()
			return m, m.domainInput.Focus()
		}
		return m.runDeploy(m.pending, "", "")

	case ViewResult:
		m.view = ViewMenu
	}
	return m, nil
}

func (m Model) handleBack() (tea.Model, tea.Cmd) {
	switch m.view {
	case ViewProtocol, ViewResult:
		m.view = ViewMenu
	}
	return m, nil
}

func (m Model) handleDomainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = ViewProtocol
		return m, nil

	case "ctrl+c":
		return m, tea.Quit

	case "tab", "shift+tab":
		m.focusEmail = !m.focusEmail
		if m.focusEmail {
			m.domainInput.Blur()
			return m, m.emailInput.Focus()
		}
		m.emailInput.Blur()
		return m, m.domainInput.Focus()

	case "enter":
		if !m.focusEmail {
			// 域名回车后移到邮箱。
			m.focusEmail = true
			m.domainInput.Blur()
			return m, m.emailInput.Focus()
		}
		domain := strings.TrimSpace(m.domainInput.Value())
		email := strings.TrimSpace(m.emailInput.Value())
		if domain == "" || email == "" {
			m.inputErr = "域名与邮箱均为必填。"
			return m, nil
		}
		return m.runDeploy(m.pending, domain, email)
	}
	return m.updateInputs(msg)
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.domainInput, cmd = m.domainInput.Update(msg)
	cmds = append(cmds, cmd)
	m.emailInput, cmd = m.emailInput.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}
