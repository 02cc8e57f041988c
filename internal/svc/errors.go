// 文件路径: internal/svc/errors.go
// 模块说明: 这是 internal 模块里的 errors 逻辑。
package svc

import (
	"errors"
	"fmt"
)

// ErrNotInstalled 服务从未安装。
var ErrNotInstalled = errors.New("svc: service not installed / 服务尚未安装")

// ControlError 包装一次服务控制操作的失败，保留操作名便于上层提示。
type ControlError struct {
	Op  string
	Err error
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("svc: %s 失败: %v", e.Op, e.Err)
}

func (e *ControlError) Unwrap() error {
	return e.Err
}

func controlErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ControlError{Op: op, Err: err}
}
