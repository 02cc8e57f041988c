// 文件路径: internal/initsys/custom.go
// 模块说明: 用户自定义命令实现，{{service}} 占位符替换为服务名。
package initsys

import (
	"context"
	"fmt"
	"strings"
)

type Custom struct {
	commands CustomCommands
}

func (c *Custom) Type() string {
	return "custom"
}

func (c *Custom) expand(tpl, service string) string {
	return strings.ReplaceAll(tpl, "{{service}}", service)
}

func (c *Custom) Start(ctx context.Context, service string) error {
	return runCommand(ctx, c.expand(c.commands.Start, service))
}

func (c *Custom) Stop(ctx context.Context, service string) error {
	return runCommand(ctx, c.expand(c.commands.Stop, service))
}

func (c *Custom) Restart(ctx context.Context, service string) error {
	if c.commands.Restart != "" {
		return runCommand(ctx, c.expand(c.commands.Restart, service))
	}
	if err := c.Stop(ctx, service); err != nil {
		return err
	}
	return c.Start(ctx, service)
}

func (c *Custom) Status(ctx context.Context, service string) (bool, error) {
	if c.commands.Status == "" {
		return false, nil
	}
	// 约定状态命令运行中返回 0。
	_, err := runCommandWithOutput(ctx, c.expand(c.commands.Status, service))
	return err == nil, nil
}

func (c *Custom) Enable(ctx context.Context, service string) error {
	if c.commands.Enable == "" {
		return nil
	}
	return runCommand(ctx, c.expand(c.commands.Enable, service))
}

func (c *Custom) Disable(ctx context.Context, service string) error {
	if c.commands.Disable == "" {
		return nil
	}
	return runCommand(ctx, c.expand(c.commands.Disable, service))
}

func (c *Custom) Logs(ctx context.Context, service string, lines int) (string, error) {
	if c.commands.Logs == "" {
		return "", ErrLogsUnsupported
	}
	cmd := strings.ReplaceAll(c.expand(c.commands.Logs, service), "{{lines}}", fmt.Sprintf("%d", lines))
	output, err := runCommandWithOutput(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("initsys: 自定义日志命令失败: %w", err)
	}
	return output, nil
}

func (c *Custom) ReloadUnits(ctx context.Context) error {
	return nil
}
