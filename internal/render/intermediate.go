// 文件路径: internal/render/intermediate.go
// 模块说明: 渲染器的中间表示，由协议参数与证书记录构建，三种输出格式共用。
package render

import (
	"fmt"

	"github.com/creamcroissant/mscript/internal/protocol"
	"github.com/creamcroissant/mscript/internal/repository"
)

const (
	// defaultUsername 用作监听器内置用户名，客户端配置同值。
	defaultUsername = "user1"

	// defaultFingerprint Reality 客户端指纹。
	defaultFingerprint = "chrome"

	// Hysteria2 预设带宽，单位 Mbps。
	defaultUpMbps   = 100
	defaultDownMbps = 100
)

// Intermediate 承载一次部署渲染所需的全部字段。
// Document / CompactLine / ShareURI 三种输出均由同一条记录生成，
// 保证结构化文档与分享链接不会出现字段漂移。
type Intermediate struct {
	Name     string
	Protocol protocol.Protocol
	Mode     protocol.Mode

	// Server 是客户端侧的连接地址: TLS 模式为证书域名，Reality 模式为公网 IP。
	Server string
	Port   int

	UUID     string
	Password string

	// SNI 是 TLS 的证书域名或 Reality 的伪装站点。
	SNI string

	// SkipCertVerify 在自签证书下为 true，客户端需跳过校验。
	SkipCertVerify bool

	CertPath string
	KeyPath  string

	RealityPrivateKey string
	RealityPublicKey  string
	RealityShortID    string
	Fingerprint       string

	// Hysteria2 带宽提示。
	UpMbps   int
	DownMbps int
}

// Build 从解析后的协议参数与可选的证书记录构建中间表示。
// serverAddr 为客户端连接地址: Reality 模式传公网 IP，TLS 模式可留空则回退到证书域名。
func Build(spec *protocol.Spec, cert *repository.CertificateRecord, serverAddr string) (*Intermediate, error) {
	if spec == nil {
		return nil, fmt.Errorf("render: spec 不能为空")
	}
	rec := &Intermediate{
		Name:        fmt.Sprintf("mscript-%s-%s", spec.Protocol, spec.Mode),
		Protocol:    spec.Protocol,
		Mode:        spec.Mode,
		Server:      serverAddr,
		Port:        spec.Port,
		UUID:        spec.UUID,
		Password:    spec.Password,
		SNI:         spec.ServerName(),
		Fingerprint: defaultFingerprint,
		UpMbps:      defaultUpMbps,
		DownMbps:    defaultDownMbps,
	}
	switch spec.Mode {
	case protocol.ModeTLS:
		if cert == nil {
			return nil, &RenderError{Protocol: string(spec.Protocol), Field: "certificate"}
		}
		rec.CertPath = cert.CertPath
		rec.KeyPath = cert.KeyPath
		rec.SkipCertVerify = cert.Method == repository.MethodSelfSigned
		if rec.Server == "" {
			rec.Server = spec.Domain
		}
	case protocol.ModeReality:
		rec.RealityPrivateKey = spec.RealityPrivateKey
		rec.RealityPublicKey = spec.RealityPublicKey
		rec.RealityShortID = spec.RealityShortID
	}
	if err := rec.validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Intermediate) validate() error {
	missing := func(field string) error {
		return &RenderError{Protocol: string(r.Protocol), Field: field}
	}
	if r.Server == "" {
		return missing("server")
	}
	if r.Port <= 0 {
		return missing("port")
	}
	if r.SNI == "" {
		return missing("sni")
	}
	caps, ok := protocol.Lookup(r.Protocol)
	if !ok {
		return protocol.ErrUnknownProtocol
	}
	switch caps.Credential {
	case protocol.CredUUID:
		if r.UUID == "" {
			return missing("uuid")
		}
	case protocol.CredPassword:
		if r.Password == "" {
			return missing("password")
		}
	case protocol.CredUUIDAndPassword:
		if r.UUID == "" {
			return missing("uuid")
		}
		if r.Password == "" {
			return missing("password")
		}
	}
	if r.Mode == protocol.ModeReality {
		if r.RealityPrivateKey == "" {
			return missing("reality-private-key")
		}
		if r.RealityPublicKey == "" {
			return missing("reality-public-key")
		}
		if r.RealityShortID == "" {
			return missing("reality-short-id")
		}
	}
	if r.Mode == protocol.ModeTLS {
		if r.CertPath == "" || r.KeyPath == "" {
			return missing("certificate")
		}
	}
	return nil
}
