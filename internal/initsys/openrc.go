// 文件路径: internal/initsys/openrc.go
// 模块说明: OpenRC 实现(Alpine, Gentoo)。
package initsys

import (
	"context"
	"fmt"
	"strings"
)

type OpenRC struct{}

func (o *OpenRC) Type() string {
	return "openrc"
}

func (o *OpenRC) Start(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("rc-service %s start", service))
}

func (o *OpenRC) Stop(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("rc-service %s stop", service))
}

func (o *OpenRC) Restart(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("rc-service %s restart", service))
}

func (o *OpenRC) Status(ctx context.Context, service string) (bool, error) {
	output, err := runCommandWithOutput(ctx, fmt.Sprintf("rc-service %s status", service))
	if err != nil {
		return false, nil
	}
	return strings.Contains(strings.ToLower(output), "started"), nil
}

func (o *OpenRC) Enable(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("rc-update add %s default", service))
}

func (o *OpenRC) Disable(ctx context.Context, service string) error {
	return runCommand(ctx, fmt.Sprintf("rc-update del %s default", service))
}

func (o *OpenRC) Logs(ctx context.Context, service string, lines int) (string, error) {
	return "", ErrLogsUnsupported
}

func (o *OpenRC) ReloadUnits(ctx context.Context) error {
	return nil
}
