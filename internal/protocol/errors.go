// 文件路径: internal/protocol/errors.go
// 模块说明: 这是 internal 模块里的 errors 逻辑，定义参数解析阶段的错误类型。
package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates user-supplied parameters failed validation.
	ErrInvalidInput = errors.New("protocol: invalid input / 输入参数无效")
	// ErrUnknownProtocol indicates the protocol name is not recognized.
	ErrUnknownProtocol = errors.New("protocol: unknown protocol / 协议不受支持")
	// ErrUnsupportedMode indicates the protocol does not support the chosen mode.
	ErrUnsupportedMode = errors.New("protocol: unsupported mode / 协议不支持该模式")
)

// PortConflictError reports a listen port that is already bound or already
// assigned to another active deployment.
type PortConflictError struct {
	Port int
}

func (e *PortConflictError) Error() string {
	return fmt.Sprintf("protocol: port %d already in use / 端口已被占用", e.Port)
}

func invalidInput(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}
