// 文件路径: internal/initsys/initsys.go
// 模块说明: init 系统抽象层。代理内核以系统服务方式托管，
// 不同发行版的服务控制统一经由该接口。
package initsys

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrLogsUnsupported 当前 init 系统不提供日志查询。
var ErrLogsUnsupported = errors.New("initsys: log query unsupported / 当前 init 系统不支持日志查询")

// InitSystem 服务控制接口。service 参数为服务名(不带 .service 后缀)。
type InitSystem interface {
	Type() string

	Start(ctx context.Context, service string) error
	Stop(ctx context.Context, service string) error
	Restart(ctx context.Context, service string) error

	// Status 返回服务是否处于运行态。服务不存在视作未运行而非错误。
	Status(ctx context.Context, service string) (running bool, err error)

	Enable(ctx context.Context, service string) error
	Disable(ctx context.Context, service string) error

	// Logs 返回服务最近 lines 行日志。不支持日志查询的实现
	// 返回 ErrLogsUnsupported。
	Logs(ctx context.Context, service string, lines int) (string, error)

	// ReloadUnits 通知 init 系统重新读取服务定义(单元文件变更后调用)。
	// 无此概念的实现返回 nil。
	ReloadUnits(ctx context.Context) error
}

// Config 选择 init 系统，auto 时自动探测。
type Config struct {
	// Type 取值: auto, systemd, openrc, runit, custom
	Type string `yaml:"type" mapstructure:"type"`

	// Custom 当 Type 为 custom 时的自定义命令，{{service}} 占位服务名。
	Custom CustomCommands `yaml:"custom" mapstructure:"custom"`
}

// CustomCommands 自定义控制命令。
type CustomCommands struct {
	Start   string `yaml:"start" mapstructure:"start"`
	Stop    string `yaml:"stop" mapstructure:"stop"`
	Restart string `yaml:"restart" mapstructure:"restart"`
	Status  string `yaml:"status" mapstructure:"status"`
	Enable  string `yaml:"enable" mapstructure:"enable"`
	Disable string `yaml:"disable" mapstructure:"disable"`
	Logs    string `yaml:"logs" mapstructure:"logs"`
}

// New 按配置构建 InitSystem。
func New(cfg Config) (InitSystem, error) {
	switch strings.ToLower(cfg.Type) {
	case "systemd":
		return &Systemd{}, nil
	case "openrc":
		return &OpenRC{}, nil
	case "runit":
		return &Runit{}, nil
	case "custom":
		if cfg.Custom.Start == "" || cfg.Custom.Stop == "" {
			return nil, fmt.Errorf("initsys: custom 模式至少需要 start 与 stop 命令")
		}
		return &Custom{commands: cfg.Custom}, nil
	case "auto", "":
		return Detect(), nil
	default:
		return nil, fmt.Errorf("initsys: 未知 init 系统类型: %s", cfg.Type)
	}
}

// Detect 依据环境特征探测 init 系统。识别失败时回退到直接进程管理。
func Detect() InitSystem {
	if _, err := os.Stat("/run/systemd/system"); err == nil {
		return &Systemd{}
	}
	if _, err := os.Stat("/sbin/rc-service"); err == nil {
		return &OpenRC{}
	}
	if _, err := os.Stat("/sbin/openrc"); err == nil {
		return &OpenRC{}
	}
	if _, err := os.Stat("/run/runit"); err == nil {
		return &Runit{}
	}
	return &Generic{}
}

// runCommand 带超时执行命令，失败时把输出并入错误。
func runCommand(ctx context.Context, command string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	name, args, err := splitCommand(command)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("initsys: 命令 %q 执行失败: %w: %s", command, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func runCommandWithOutput(ctx context.Context, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	name, args, err := splitCommand(command)
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// splitCommand 做最小化的 shell 式分词，支持引号与转义，不做变量展开。
func splitCommand(command string) (string, []string, error) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return "", nil, fmt.Errorf("initsys: 命令为空")
	}

	parts := make([]string, 0, 4)
	var buf strings.Builder
	inSingle := false
	inDouble := false
	escaped := false

	for _, r := range trimmed {
		switch {
		case escaped:
			buf.WriteRune(r)
			escaped = false
		case r == '\\' && !inSingle:
			escaped = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case !inSingle && !inDouble && (r == ' ' || r == '\t' || r == '\n'):
			if buf.Len() > 0 {
				parts = append(parts, buf.String())
				buf.Reset()
			}
		default:
			buf.WriteRune(r)
		}
	}

	if escaped || inSingle || inDouble {
		return "", nil, fmt.Errorf("initsys: 命令含未闭合的引号或转义")
	}
	if buf.Len() > 0 {
		parts = append(parts, buf.String())
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("initsys: 命令为空")
	}
	return parts[0], parts[1:], nil
}
