// 文件路径: internal/render/errors.go
// 模块说明: 这是 internal 模块里的 errors 逻辑。
package render

import "fmt"

// RenderError reports a missing required field in the intermediate record.
// 对合法解析结果不应出现，属于编程契约被破坏。
type RenderError struct {
	Protocol string
	Field    string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render: %s requires field %s / 渲染缺少必要字段", e.Protocol, e.Field)
}
