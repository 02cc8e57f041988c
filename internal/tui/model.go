// 文件路径: internal/tui/model.go
// 模块说明: 交互式终端菜单。覆盖部署、状态、分享、重启、停止、日志与卸载，
// 与命令行子命令共用同一个编排器。
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/creamcroissant/mscript/internal/orchestrator"
	"github.com/creamcroissant/mscript/internal/protocol"
)

// ViewType 当前视图。
type ViewType int

const (
	ViewMenu     ViewType = iota // 主菜单
	ViewProtocol                 // 协议与模式选择
	ViewDomain                   // TLS 模式的域名与邮箱录入
	ViewBusy                     // 后台操作执行中
	ViewResult                   // 操作结果展示
)

// menuAction 主菜单条目。
type menuAction struct {
	label string
	run   func(m *Model) (tea.Model, tea.Cmd)
}

// deployChoice 一个可部署的 (协议, 模式) 组合。
type deployChoice struct {
	Protocol protocol.Protocol
	Mode     protocol.Mode
}

func (c deployChoice) String() string {
	return fmt.Sprintf("%s (%s)", c.Protocol, c.Mode)
}

// deployChoices 菜单顺序与原脚本一致: 先各协议 TLS，再 Reality 变体。
func deployChoices() []deployChoice {
	var choices []deployChoice
	for _, p := range protocol.All() {
		caps, _ := protocol.Lookup(p)
		for _, mode := range caps.Modes {
			choices = append(choices, deployChoice{Protocol: p, Mode: mode})
		}
	}
	return choices
}

// opTimeout 单次后台操作上限，部署含证书签发。
const opTimeout = 5 * time.Minute

// Model 主 TUI 模型。
type Model struct {
	orch *orchestrator.Orchestrator

	view ViewType

	// 主菜单
	actions        []menuAction
	selectedAction int

	// 协议选择
	choices        []deployChoice
	selectedChoice int
	pending        deployChoice

	// TLS 录入
	domainInput textinput.Model
	emailInput  textinput.Model
	focusEmail  bool
	inputErr    string

	// 执行与结果
	spin        spinner.Model
	busyLabel   string
	resultTitle string
	resultBody  string

	err error

	width  int
	height int

	keys keyMap
}

type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Back  key.Binding
	Quit  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// NewModel 创建 TUI 模型。
func NewModel(orch *orchestrator.Orchestrator) Model {
	domain := textinput.New()
	domain.Placeholder = "node.example.com"
	domain.CharLimit = 253
	domain.Focus()

	email := textinput.New()
	email.Placeholder = "ops@yourdomain.com"
	email.CharLimit = 254

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	m := Model{
		orch:        orch,
		view:        ViewMenu,
		choices:     deployChoices(),
		domainInput: domain,
		emailInput:  email,
		spin:        spin,
		keys:        defaultKeyMap(),
	}
	m.actions = []menuAction{
		{label: "部署协议 Deploy", run: (*Model).startDeploy},
		{label: "查看状态 Status", run: (*Model).startStatus},
		{label: "分享链接 Share", run: (*Model).startShare},
		{label: "重启服务 Restart", run: (*Model).startRestart},
		{label: "停止服务 Stop", run: (*Model).startStop},
		{label: "查看日志 Logs", run: (*Model).startLogs},
		{label: "卸载 Uninstall", run: (*Model).startUninstall},
	}
	return m
}

// Init 实现 tea.Model。
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// 消息类型

type resultMsg struct {
	title string
	body  string
}

type errorMsg struct {
	err error
}

// 命令

func (m *Model) startDeploy() (tea.Model, tea.Cmd) {
	m.view = ViewProtocol
	m.selectedChoice = 0
	return *m, nil
}

func (m *Model) startStatus() (tea.Model, tea.Cmd) {
	return m.busy("查询状态", func(ctx context.Context) (resultMsg, error) {
		st, err := m.orch.Status(ctx)
		if err != nil {
			return resultMsg{}, err
		}
		return resultMsg{title: "状态 Status", body: formatStatus(st)}, nil
	})
}

func (m *Model) startShare() (tea.Model, tea.Cmd) {
	return m.busy("生成分享链接", func(ctx context.Context) (resultMsg, error) {
		outputs, err := m.orch.Share(ctx)
		if err != nil {
			return resultMsg{}, err
		}
		return resultMsg{title: "分享 Share", body: formatOutputs(outputs)}, nil
	})
}

func (m *Model) startRestart() (tea.Model, tea.Cmd) {
	return m.busy("重启服务", func(ctx context.Context) (resultMsg, error) {
		if err := m.orch.Restart(ctx); err != nil {
			return resultMsg{}, err
		}
		return resultMsg{title: "重启 Restart", body: "服务已重启。"}, nil
	})
}

func (m *Model) startStop() (tea.Model, tea.Cmd) {
	return m.busy("停止服务", func(ctx context.Context) (resultMsg, error) {
		if err := m.orch.Stop(ctx); err != nil {
			return resultMsg{}, err
		}
		return resultMsg{title: "停止 Stop", body: "服务已停止。"}, nil
	})
}

func (m *Model) startLogs() (tea.Model, tea.Cmd) {
	return m.busy("拉取日志", func(ctx context.Context) (resultMsg, error) {
		out, err := m.orch.Logs(ctx, 50)
		if err != nil {
			return resultMsg{}, err
		}
		return resultMsg{title: "日志 Logs", body: out}, nil
	})
}

func (m *Model) startUninstall() (tea.Model, tea.Cmd) {
	return m.busy("卸载", func(ctx context.Context) (resultMsg, error) {
		if err := m.orch.Uninstall(ctx); err != nil {
			return resultMsg{}, err
		}
		return resultMsg{title: "卸载 Uninstall", body: "服务、配置、证书与内核均已移除。"}, nil
	})
}

func (m *Model) runDeploy(choice deployChoice, domain, email string) (tea.Model, tea.Cmd) {
	return m.busy(fmt.Sprintf("部署 %s", choice), func(ctx context.Context) (resultMsg, error) {
		res, err := m.orch.Deploy(ctx, orchestrator.Request{
			Input: protocol.Input{
				Protocol: choice.Protocol,
				Mode:     choice.Mode,
				Domain:   domain,
				Email:    email,
			},
		})
		if err != nil {
			return resultMsg{}, err
		}
		return resultMsg{
			title: fmt.Sprintf("部署完成 %s 端口 %d", choice, res.Spec.Port),
			body:  formatOutputs(&res.Outputs),
		}, nil
	})
}

// busy 切换到执行视图并在后台运行操作。
func (m *Model) busy(label string, fn func(ctx context.Context) (resultMsg, error)) (tea.Model, tea.Cmd) {
	m.view = ViewBusy
	m.busyLabel = label
	m.err = nil
	cmd := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		msg, err := fn(ctx)
		if err != nil {
			return errorMsg{err: err}
		}
		return msg
	}
	return *m, tea.Batch(m.spin.Tick, cmd)
}
