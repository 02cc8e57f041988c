// 文件路径: cmd/mscript/main.go
// 模块说明: mscript 入口。多协议代理部署器，面向单机 VPS。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build info - injected via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "mscript",
	Short: "Multi-protocol proxy deployer / 多协议代理部署器",
	Long: `mscript deploys a mihomo-based proxy server: resolves protocol
parameters, obtains certificates, renders client configs and manages the
system service. 支持 anytls/vless/trojan/mieru/tuic/hysteria2。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 写系统目录与控制服务都需要特权，与原脚本一致在入口拦截。
		if os.Geteuid() != 0 {
			return fmt.Errorf("mscript: root privileges required / 需要 root 权限运行")
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
