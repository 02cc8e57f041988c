// 文件路径: internal/tui/view.go
// 模块说明: TUI 渲染与结果文本格式化。
package tui

import (
	"fmt"
	"strings"

	"github.com/creamcroissant/mscript/internal/orchestrator"
)

// View 实现 tea.Model。
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(styleTitle.Render("mscript 部署管理"))
	b.WriteString("\n\n")

	switch m.view {
	case ViewMenu:
		b.WriteString(m.viewMenu())
	case ViewProtocol:
		b.WriteString(m.viewProtocol())
	case ViewDomain:
		b.WriteString(m.viewDomain())
	case ViewBusy:
		b.WriteString(fmt.Sprintf("%s %s...\n", m.spin.View(), m.busyLabel))
	case ViewResult:
		b.WriteString(m.viewResult())
	}

	b.WriteString("\n")
	b.WriteString(styleHelp.Render(m.helpLine()))
	return b.String()
}

func (m Model) viewMenu() string {
	var b strings.Builder
	for i, action := range m.actions {
		style := styleRow
		cursor := "  "
		if i == m.selectedAction {
			style = styleRowSelected
			cursor = "> "
		}
		b.WriteString(style.Render(cursor + action.label))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewProtocol() string {
	var b strings.Builder
	b.WriteString(styleRow.Render("选择协议与模式:"))
	b.WriteString("\n")
	for i, choice := range m.choices {
		style := styleRow
		cursor := "  "
		if i == m.selectedChoice {
			style = styleRowSelected
			cursor = "> "
		}
		b.WriteString(style.Render(cursor + choice.String()))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewDomain() string {
	var b strings.Builder
	b.WriteString(styleRow.Render(fmt.Sprintf("部署 %s，TLS 模式需要域名与邮箱:", m.pending)))
	b.WriteString("\n\n")
	b.WriteString(styleLabel.Render("域名"))
	b.WriteString(m.domainInput.View())
	b.WriteString("\n")
	b.WriteString(styleLabel.Render("邮箱"))
	b.WriteString(m.emailInput.View())
	b.WriteString("\n")
	if m.inputErr != "" {
		b.WriteString(styleError.Render(m.inputErr))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewResult() string {
	var b strings.Builder
	b.WriteString(styleRow.Render(m.resultTitle))
	b.WriteString("\n")
	body := m.resultBody
	if m.err != nil {
		body = styleError.Render(m.err.Error())
	}
	b.WriteString(styleBox.Render(body))
	b.WriteString("\n")
	return b.String()
}

func (m Model) helpLine() string {
	switch m.view {
	case ViewDomain:
		return "tab 切换  enter 确认  esc 返回"
	case ViewBusy:
		return "请稍候"
	case ViewResult:
		return "enter/esc 返回菜单  q 退出"
	default:
		return "↑/↓ 选择  enter 确认  esc 返回  q 退出"
	}
}

// formatStatus 把状态汇总渲染为多行文本。
func formatStatus(st *orchestrator.Status) string {
	var b strings.Builder
	switch {
	case !st.Service.Installed:
		b.WriteString(styleStopped.Render("○ 未安装"))
	case st.Service.Running:
		b.WriteString(styleRunning.Render("● 运行中"))
	default:
		b.WriteString(styleStopped.Render("○ 已停止"))
	}
	b.WriteString("\n")
	if st.Deployment != nil {
		b.WriteString(fmt.Sprintf("协议: %s (%s)\n", st.Deployment.Protocol, st.Deployment.Mode))
		b.WriteString(fmt.Sprintf("端口: %d\n", st.Deployment.Port))
		if st.Deployment.Domain != "" {
			b.WriteString(fmt.Sprintf("域名: %s\n", st.Deployment.Domain))
		}
		b.WriteString(fmt.Sprintf("部署时间: %s\n", st.Deployment.CreatedAt.Format("2006-01-02 15:04:05")))
	} else {
		b.WriteString("无活跃部署。\n")
	}
	if st.Service.ConfigChecksum != "" {
		b.WriteString(fmt.Sprintf("配置摘要: %s\n", st.Service.ConfigChecksum[:12]))
	}
	return b.String()
}

// formatOutputs 输出分享链接与单行配置，文档内容留给 share 命令。
func formatOutputs(outputs *orchestrator.Outputs) string {
	var b strings.Builder
	b.WriteString("分享链接:\n")
	b.WriteString(outputs.ShareURI)
	b.WriteString("\n\n单行配置:\n")
	b.WriteString(outputs.CompactLine)
	b.WriteString("\n")
	return b.String()
}
