// 文件路径: internal/tui/styles.go
// 模块说明: 这是 internal 模块里的 styles 逻辑。
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorSuccess = lipgloss.Color("#22C55E")
	colorDanger  = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorBorder  = lipgloss.Color("#374151")

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Padding(0, 1)

	styleHelp = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	styleRow = lipgloss.NewStyle().
			Padding(0, 1)

	styleRowSelected = lipgloss.NewStyle().
				Background(lipgloss.Color("#1F2937")).
				Foreground(lipgloss.Color("#FFFFFF")).
				Bold(true).
				Padding(0, 1)

	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	styleRunning = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	styleStopped = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	styleError = lipgloss.NewStyle().
			Foreground(colorDanger)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(12)
)
