// 文件路径: internal/render/document.go
// 模块说明: 结构化配置文档的生成与回读，面向 mihomo 的 listeners 段。
package render

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"gopkg.in/yaml.v3"

	"github.com/creamcroissant/mscript/internal/protocol"
)

// documentRoot 是写入磁盘的顶层结构。
type documentRoot struct {
	Listeners []listenerDoc `yaml:"listeners"`
}

// listenerDoc 覆盖全部六种协议的监听器字段，不适用的字段置空省略。
type listenerDoc struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Port   int    `yaml:"port"`
	Listen string `yaml:"listen"`

	Users []userDoc `yaml:"users,omitempty"`

	Certificate string `yaml:"certificate,omitempty"`
	PrivateKey  string `yaml:"private-key,omitempty"`

	// TLS 握手域名。自定义 SNI 与证书域名不同时靠它回读。
	ServerName string `yaml:"server-name,omitempty"`

	RealityConfig *realityDoc `yaml:"reality-config,omitempty"`

	// TUICv5
	CongestionController string `yaml:"congestion-controller,omitempty"`

	// Hysteria2
	Up   string `yaml:"up,omitempty"`
	Down string `yaml:"down,omitempty"`

	ALPN []string `yaml:"alpn,omitempty"`
}

type userDoc struct {
	Username string `yaml:"username,omitempty"`
	UUID     string `yaml:"uuid,omitempty"`
	Password string `yaml:"password,omitempty"`
	Flow     string `yaml:"flow,omitempty"`
}

type realityDoc struct {
	Dest        string   `yaml:"dest"`
	PrivateKey  string   `yaml:"private-key"`
	ShortID     []string `yaml:"short-id"`
	ServerNames []string `yaml:"server-names"`
}

// Document 输出服务端 YAML 配置。每次部署只含一个监听器。
func (r *Intermediate) Document() ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	l := listenerDoc{
		Name:   fmt.Sprintf("%s-in", r.Protocol),
		Type:   string(r.Protocol),
		Port:   r.Port,
		Listen: "0.0.0.0",
	}
	switch r.Protocol {
	case protocol.Vless:
		user := userDoc{Username: defaultUsername, UUID: r.UUID}
		if r.Mode == protocol.ModeReality {
			user.Flow = "xtls-rprx-vision"
		}
		l.Users = []userDoc{user}
	case protocol.TUICv5:
		l.Users = []userDoc{{UUID: r.UUID, Password: r.Password}}
		l.CongestionController = "bbr"
		l.ALPN = []string{"h3"}
	case protocol.Hysteria2:
		l.Users = []userDoc{{Username: defaultUsername, Password: r.Password}}
		l.Up = fmt.Sprintf("%d Mbps", r.UpMbps)
		l.Down = fmt.Sprintf("%d Mbps", r.DownMbps)
		l.ALPN = []string{"h3"}
	default:
		// anytls / trojan / mieru 均为用户名+密码。
		l.Users = []userDoc{{Username: defaultUsername, Password: r.Password}}
	}
	switch r.Mode {
	case protocol.ModeReality:
		l.RealityConfig = &realityDoc{
			Dest:        r.SNI + ":443",
			PrivateKey:  r.RealityPrivateKey,
			ShortID:     []string{r.RealityShortID},
			ServerNames: []string{r.SNI},
		}
	case protocol.ModeTLS:
		l.Certificate = r.CertPath
		l.PrivateKey = r.KeyPath
		l.ServerName = r.SNI
	}
	return yaml.Marshal(&documentRoot{Listeners: []listenerDoc{l}})
}

// ParseDocument 从服务端文档回读中间表示。serverAddr 为客户端连接地址，
// 文档本身只描述服务端监听，TLS 模式下 SNI 优先取文档内的 server-name，
// 缺失时退回 serverAddr(即证书域名)。
// Reality 公钥由文档内的私钥重新推导，保证回读结果能复现分享链接。
func ParseDocument(data []byte, serverAddr string) (*Intermediate, error) {
	var root documentRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("render: 配置文档解析失败: %w", err)
	}
	if len(root.Listeners) == 0 {
		return nil, fmt.Errorf("render: 配置文档不含监听器")
	}
	l := root.Listeners[0]
	proto := protocol.Protocol(l.Type)
	if _, ok := protocol.Lookup(proto); !ok {
		return nil, protocol.ErrUnknownProtocol
	}

	rec := &Intermediate{
		Protocol:    proto,
		Server:      serverAddr,
		Port:        l.Port,
		Fingerprint: defaultFingerprint,
		UpMbps:      defaultUpMbps,
		DownMbps:    defaultDownMbps,
	}
	if len(l.Users) > 0 {
		rec.UUID = l.Users[0].UUID
		rec.Password = l.Users[0].Password
	}
	if l.Up != "" {
		fmt.Sscanf(l.Up, "%d Mbps", &rec.UpMbps)
	}
	if l.Down != "" {
		fmt.Sscanf(l.Down, "%d Mbps", &rec.DownMbps)
	}

	if l.RealityConfig != nil {
		rec.Mode = protocol.ModeReality
		rec.RealityPrivateKey = l.RealityConfig.PrivateKey
		if len(l.RealityConfig.ShortID) > 0 {
			rec.RealityShortID = l.RealityConfig.ShortID[0]
		}
		if len(l.RealityConfig.ServerNames) > 0 {
			rec.SNI = l.RealityConfig.ServerNames[0]
		}
		pub, err := derivePublicKey(l.RealityConfig.PrivateKey)
		if err != nil {
			return nil, err
		}
		rec.RealityPublicKey = pub
	} else {
		rec.Mode = protocol.ModeTLS
		rec.CertPath = l.Certificate
		rec.KeyPath = l.PrivateKey
		rec.SNI = l.ServerName
		if rec.SNI == "" {
			// 旧文档没有 server-name 字段，退回证书域名。
			rec.SNI = serverAddr
		}
	}
	rec.Name = fmt.Sprintf("mscript-%s-%s", rec.Protocol, rec.Mode)
	if err := rec.validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// derivePublicKey 由 base64 私钥重新计算 X25519 公钥。
func derivePublicKey(privB64 string) (string, error) {
	priv, err := base64.RawURLEncoding.DecodeString(privB64)
	if err != nil {
		return "", fmt.Errorf("render: Reality 私钥解码失败: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("render: Reality 公钥推导失败: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(pub), nil
}
