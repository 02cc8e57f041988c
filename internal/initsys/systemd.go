// 文件路径: internal/initsys/systemd.go
// 模块说明: systemd 实现，主流 VPS 发行版的默认路径。
package initsys

import (
	"context"
	"fmt"
	"strings"
)

type Systemd struct{}

func (s *Systemd) Type() string {
	return "systemd"
}

func (s *Systemd) Start(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("systemctl start %s", service))
}

func (s *Systemd) Stop(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("systemctl stop %s", service))
}

func (s *Systemd) Restart(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("systemctl restart %s", service))
}

func (s *Systemd) Status(ctx context.Context, service string) (bool, error) {
	output, err := runCommandWithOutput(ctx, fmt.Sprintf("systemctl is-active %s", service))
	if err != nil {
		// is-active 对非运行态返回非零，不视为错误。
		return false, nil
	}
	return strings.TrimSpace(output) == "active", nil
}

func (s *Systemd) Enable(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("systemctl enable %s", service))
}

func (s *Systemd) Disable(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("systemctl disable %s", service))
}

func (s *Systemd) Logs(ctx context.Context, service string, lines int) (string, error) {
	if lines <= 0 {
		lines = 50
	}
	output, err := runCommandWithOutput(ctx,
		fmt.Sprintf("journalctl -u %s -n %d --no-pager", service, lines))
	if err != nil {
		return "", fmt.Errorf("initsys: journalctl 查询失败: %w", err)
	}
	return output, nil
}

func (s *Systemd) ReloadUnits(ctx context.Context) error {
	return runCommand(ctx, "systemctl daemon-reload")
}
