// 文件路径: internal/svc/unit.go
// 模块说明: systemd 单元文件生成。内核以非 root 能力集运行并随系统自启。
package svc

import "fmt"

// unitTemplate 单元文件正文。CAP_NET_BIND_SERVICE 允许监听低位端口，
// NoNewPrivileges 阻止提权。
const unitTemplate = `[Unit]
Description=mihomo proxy kernel
After=network.target network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s -d %s
Restart=on-failure
RestartSec=3
LimitNOFILE=1000000
CapabilityBoundingSet=CAP_NET_BIND_SERVICE CAP_NET_ADMIN CAP_NET_RAW
AmbientCapabilities=CAP_NET_BIND_SERVICE CAP_NET_ADMIN CAP_NET_RAW
NoNewPrivileges=true

[Install]
WantedBy=multi-user.target
`

// UnitFile 渲染单元文件内容。
func UnitFile(binaryPath, configDir string) []byte {
	return []byte(fmt.Sprintf(unitTemplate, binaryPath, configDir))
}
