//go:build !windows

package initsys

import (
	"os/exec"
	"syscall"
)

// configureGenericCommand 使托管进程脱离本进程会话，避免随 CLI 退出。
func configureGenericCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
