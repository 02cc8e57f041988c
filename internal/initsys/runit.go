// 文件路径: internal/initsys/runit.go
// 模块说明: runit 实现(Void Linux 与部分容器镜像)。
package initsys

import (
	"context"
	"fmt"
	"os"
	"strings"
)

type Runit struct{}

func (r *Runit) Type() string {
	return "runit"
}

func (r *Runit) Start(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("sv up %s", service))
}

func (r *Runit) Stop(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("sv down %s", service))
}

func (r *Runit) Restart(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("sv restart %s", service))
}

func (r *Runit) Status(ctx context.Context, service string) (bool, error) {
	output, err := runCommandWithOutput(ctx, fmt.Sprintf("sv status %s", service))
	if err != nil {
		return false, nil
	}
	return strings.HasPrefix(strings.TrimSpace(output), "run:"), nil
}

// Enable 在 runit 下等价于把服务目录链接进 /var/service。
func (r *Runit) Enable(ctx context.Context, service string) error {
	target := fmt.Sprintf("/var/service/%s", service)
	if _, err := os.Lstat(target); err == nil {
		return nil
	}
	return runCommand(ctx, fmt.Sprintf("ln -s /etc/sv/%s %s", service, target))
}

func (r *Runit) Disable(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("rm -f /var/service/%s", service))
}

func (r *Runit) Logs(ctx context.Context, service string, lines int) (string, error) {
	return "", ErrLogsUnsupported
}

func (r *Runit) ReloadUnits(ctx context.Context) error {
	return nil
}
