// 文件路径: internal/engine/arch.go
// 模块说明: 内核发布资产的架构后缀推导。amd64 按 CPU 指令集
// 选择优化版或兼容版构建。
package engine

import (
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
)

// cpuFlags 可注入以便测试。
var cpuFlags = func() ([]string, error) {
	infos, err := cpu.Info()
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, nil
	}
	return infos[0].Flags, nil
}

// AssetSuffix 返回当前主机对应的发布资产架构段，
// 如 "linux-amd64"、"linux-amd64-compatible"、"linux-arm64"。
func AssetSuffix() string {
	arch := runtime.GOARCH
	if arch == "amd64" && !hasAVX2() {
		arch = "amd64-compatible"
	}
	return runtime.GOOS + "-" + arch
}

// hasAVX2 探测第三级微架构支持。优化版内核构建要求 AVX2，
// 旧 CPU 或裁剪过指令集的虚拟机回退到兼容版。
func hasAVX2() bool {
	flags, err := cpuFlags()
	if err != nil {
		return false
	}
	for _, f := range flags {
		if strings.EqualFold(f, "avx2") {
			return true
		}
	}
	return false
}
