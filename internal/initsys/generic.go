// 文件路径: internal/initsys/generic.go
// 模块说明: 无 init 系统时的直接进程管理(容器等场景)。
// 由调用方注入内核二进制路径与参数，进程输出重定向到日志文件。
package initsys

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

type Generic struct {
	// BinaryPath 被托管进程的二进制路径。
	BinaryPath string

	// Args 启动参数。
	Args []string

	// PidFile PID 文件路径，空则按服务名落在 /run 下。
	PidFile string

	// LogFile 进程 stdout/stderr 追加到该文件，空则丢弃。
	LogFile string
}

func (g *Generic) Type() string {
	return "generic"
}

func (g *Generic) pidFile(service string) string {
	if g.PidFile != "" {
		return g.PidFile
	}
	return fmt.Sprintf("/run/%s.pid", service)
}

func (g *Generic) Start(ctx context.Context, service string) error {
	if g.BinaryPath == "" {
		return fmt.Errorf("initsys: generic 模式需要设置 BinaryPath")
	}

	cmd := exec.Command(g.BinaryPath, g.Args...)
	if g.LogFile != "" {
		logOut, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("initsys: 打开日志文件失败: %w", err)
		}
		defer logOut.Close()
		cmd.Stdout = logOut
		cmd.Stderr = logOut
	}
	configureGenericCommand(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("initsys: 启动进程失败: %w", err)
	}
	if err := os.WriteFile(g.pidFile(service), []byte(strconv.Itoa(cmd.Process.Pid)), 0o644); err != nil {
		return fmt.Errorf("initsys: 写入 PID 文件失败: %w", err)
	}
	return nil
}

func (g *Generic) Stop(ctx context.Context, service string) error {
	pid, err := g.readPid(service)
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("initsys: 进程不存在: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("initsys: 发送 SIGTERM 失败: %w", err)
	}
	os.Remove(g.pidFile(service))
	return nil
}

func (g *Generic) Restart(ctx context.Context, service string) error {
	_ = g.Stop(ctx, service)
	return g.Start(ctx, service)
}

func (g *Generic) Status(ctx context.Context, service string) (bool, error) {
	pid, err := g.readPid(service)
	if err != nil {
		return false, nil
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}
	// 信号 0 仅探活。
	err = process.Signal(syscall.Signal(0))
	return err == nil, nil
}

func (g *Generic) Enable(ctx context.Context, service string) error {
	// 无开机自启概念。
	return nil
}

func (g *Generic) Disable(ctx context.Context, service string) error {
	return nil
}

func (g *Generic) Logs(ctx context.Context, service string, lines int) (string, error) {
	if g.LogFile == "" {
		return "", ErrLogsUnsupported
	}
	if lines <= 0 {
		lines = 50
	}
	data, err := os.ReadFile(g.LogFile)
	if err != nil {
		return "", fmt.Errorf("initsys: 读取日志文件失败: %w", err)
	}
	all := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(all) > lines {
		all = all[len(all)-lines:]
	}
	return strings.Join(all, "\n") + "\n", nil
}

func (g *Generic) ReloadUnits(ctx context.Context) error {
	return nil
}

func (g *Generic) readPid(service string) (int, error) {
	data, err := os.ReadFile(g.pidFile(service))
	if err != nil {
		return 0, fmt.Errorf("initsys: 读取 PID 文件失败: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("initsys: PID 文件内容非法: %w", err)
	}
	return pid, nil
}
