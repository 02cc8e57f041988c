// 文件路径: cmd/mscript/commands.go
// 模块说明: 全部子命令。渲染产物写 stdout 便于复制，日志走 stderr。
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/mscript/internal/job"
	"github.com/creamcroissant/mscript/internal/orchestrator"
	"github.com/creamcroissant/mscript/internal/protocol"
)

func init() {
	// install
	var (
		installProtocol   string
		installMode       string
		installPort       int
		installUUID       string
		installPassword   string
		installDomain     string
		installEmail      string
		installSNI        string
		installSelfSigned bool
	)
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Deploy a protocol / 部署一种协议",
		RunE: func(cmd *cobra.Command, args []string) error {
			if installProtocol == "" {
				// 未给参数时进入交互菜单，与原脚本的主菜单行为一致。
				return runTUI(cmd, args)
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			mode := protocol.Mode(installMode)
			if installMode == "" {
				mode = protocol.ModeTLS
			}
			res, err := a.orch.Deploy(cmd.Context(), orchestrator.Request{
				Input: protocol.Input{
					Protocol: protocol.Protocol(installProtocol),
					Mode:     mode,
					Port:     installPort,
					UUID:     installUUID,
					Password: installPassword,
					Domain:   installDomain,
					Email:    installEmail,
					SNI:      installSNI,
				},
				SelfSigned: installSelfSigned,
			})
			if err != nil {
				return err
			}
			printOutputs(&res.Outputs)
			return nil
		},
	}
	installCmd.Flags().StringVar(&installProtocol, "protocol", "", "协议: anytls|vless|trojan|mieru|tuic|hysteria2")
	installCmd.Flags().StringVar(&installMode, "mode", "", "模式: tls|reality (默认 tls)")
	installCmd.Flags().IntVar(&installPort, "port", 0, "监听端口，0 为自动分配")
	installCmd.Flags().StringVar(&installUUID, "uuid", "", "UUID 凭证，留空自动生成")
	installCmd.Flags().StringVar(&installPassword, "password", "", "密码凭证，留空自动生成")
	installCmd.Flags().StringVar(&installDomain, "domain", "", "TLS 模式的证书域名")
	installCmd.Flags().StringVar(&installEmail, "email", "", "ACME 注册邮箱")
	installCmd.Flags().StringVar(&installSNI, "sni", "", "自定义 SNI，留空取域名")
	installCmd.Flags().BoolVar(&installSelfSigned, "self-signed", false, "TLS 模式使用自签证书")
	rootCmd.AddCommand(installCmd)

	// uninstall
	rootCmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove service, config, certs and kernel / 卸载全部落地物",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.orch.Uninstall(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("卸载完成。")
			return nil
		},
	})

	// status
	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show service and deployment status / 查看状态",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			st, err := a.orch.Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(st)
			return nil
		},
	})

	// restart
	rootCmd.AddCommand(&cobra.Command{
		Use:   "restart",
		Short: "Restart the proxy service / 重启服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.orch.Restart(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("服务已重启。")
			return nil
		},
	})

	// stop
	rootCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the proxy service / 停止服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.orch.Stop(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("服务已停止。")
			return nil
		},
	})

	// logs
	var logLines int
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent service logs / 查看最近日志",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			out, err := a.orch.Logs(cmd.Context(), logLines)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	logsCmd.Flags().IntVarP(&logLines, "lines", "n", 50, "日志行数")
	rootCmd.AddCommand(logsCmd)

	// share
	rootCmd.AddCommand(&cobra.Command{
		Use:   "share",
		Short: "Re-print client outputs for the active deployment / 重新输出分享配置",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			outputs, err := a.orch.Share(cmd.Context())
			if err != nil {
				return err
			}
			printOutputs(outputs)
			return nil
		},
	})

	// renew
	var renewEmail string
	renewCmd := &cobra.Command{
		Use:   "renew",
		Short: "Run one certificate renewal check / 执行一轮证书续期检查",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.orch.RenewalCheck(cmd.Context(), renewEmail); err != nil {
				return err
			}
			fmt.Println("续期检查完成。")
			return nil
		},
	}
	renewCmd.Flags().StringVar(&renewEmail, "email", "", "ACME 注册邮箱(重签时使用)")
	rootCmd.AddCommand(renewCmd)

	// watch
	var (
		watchCron  string
		watchEmail string
	)
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the renewal scheduler in the foreground / 前台运行续期调度器",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			scheduler := job.NewScheduler(a.logger)
			if _, err := scheduler.Register(watchCron, job.NewCertRenewalJob(a.orch, watchEmail, a.logger)); err != nil {
				return err
			}
			scheduler.Start()
			a.logger.Info("续期调度器已启动", "cron", watchCron)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			<-scheduler.Stop().Done()
			a.logger.Info("续期调度器已退出")
			return nil
		},
	}
	watchCmd.Flags().StringVar(&watchCron, "cron", "@daily", "cron 表达式")
	watchCmd.Flags().StringVar(&watchEmail, "email", "", "ACME 注册邮箱(重签时使用)")
	rootCmd.AddCommand(watchCmd)
}

func printOutputs(outputs *orchestrator.Outputs) {
	fmt.Println("== 配置文档 config.yaml ==")
	fmt.Print(string(outputs.Document))
	fmt.Println()
	fmt.Println("== 单行配置 ==")
	fmt.Println(outputs.CompactLine)
	fmt.Println()
	fmt.Println("== 分享链接 ==")
	fmt.Println(outputs.ShareURI)
}

func printStatus(st *orchestrator.Status) {
	switch {
	case !st.Service.Installed:
		fmt.Println("状态: 未安装")
	case st.Service.Running:
		fmt.Println("状态: 运行中")
	default:
		fmt.Println("状态: 已停止")
	}
	if st.Deployment != nil {
		fmt.Printf("协议: %s (%s)\n", st.Deployment.Protocol, st.Deployment.Mode)
		fmt.Printf("端口: %d\n", st.Deployment.Port)
		if st.Deployment.Domain != "" {
			fmt.Printf("域名: %s\n", st.Deployment.Domain)
		}
		fmt.Printf("部署时间: %s\n", st.Deployment.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if st.Service.ConfigChecksum != "" {
		fmt.Printf("配置摘要: %s\n", st.Service.ConfigChecksum[:12])
	}
}
