// Package protocol 定义六种代理协议的部署规格与参数推导。
package protocol

// Protocol 协议类型。
type Protocol string

const (
	AnyTLS    Protocol = "anytls"
	Vless     Protocol = "vless"
	Trojan    Protocol = "trojan"
	Mieru     Protocol = "mieru"
	TUICv5    Protocol = "tuic"
	Hysteria2 Protocol = "hysteria2"
)

// Mode 传输模式。
type Mode string

const (
	ModeTLS     Mode = "tls"
	ModeReality Mode = "reality"
)

// CredentialKind 协议所需的凭证种类。
type CredentialKind int

const (
	CredUUID CredentialKind = iota
	CredPassword
	CredUUIDAndPassword
)

// Capability 描述一个协议在能力表中的静态属性。
type Capability struct {
	Protocol   Protocol
	Modes      []Mode
	Credential CredentialKind
	// UDP 为真表示共享链接与配置需要声明 UDP 支持(QUIC 系协议)。
	UDP bool
}

// capabilities 是 (protocol, mode) 分发表。字段集按协议结构性不同，
// 统一经由该表判定而不是散落在各处的 switch。
var capabilities = map[Protocol]Capability{
	AnyTLS:    {Protocol: AnyTLS, Modes: []Mode{ModeTLS}, Credential: CredPassword},
	Vless:     {Protocol: Vless, Modes: []Mode{ModeTLS, ModeReality}, Credential: CredUUID},
	Trojan:    {Protocol: Trojan, Modes: []Mode{ModeTLS, ModeReality}, Credential: CredPassword},
	Mieru:     {Protocol: Mieru, Modes: []Mode{ModeTLS}, Credential: CredPassword},
	TUICv5:    {Protocol: TUICv5, Modes: []Mode{ModeTLS}, Credential: CredUUIDAndPassword, UDP: true},
	Hysteria2: {Protocol: Hysteria2, Modes: []Mode{ModeTLS}, Credential: CredPassword, UDP: true},
}

// All 返回全部受支持协议(稳定顺序，与原脚本菜单一致)。
func All() []Protocol {
	return []Protocol{AnyTLS, Vless, Mieru, TUICv5, Hysteria2, Trojan}
}

// Lookup 返回协议能力，未知协议返回 false。
func Lookup(p Protocol) (Capability, bool) {
	c, ok := capabilities[p]
	return c, ok
}

// SupportsMode 判断协议是否支持给定模式。
func (c Capability) SupportsMode(m Mode) bool {
	for _, mode := range c.Modes {
		if mode == m {
			return true
		}
	}
	return false
}

// Spec 是解析完成的部署规格。Reality 字段当且仅当 Mode 为 reality 时填充，
// Domain/Email 当且仅当 Mode 为 tls 时填充。
type Spec struct {
	Protocol Protocol
	Mode     Mode
	Port     int

	UUID     string
	Password string

	// TLS 模式字段
	Domain string
	Email  string
	SNI    string

	// Reality 模式字段
	RealityPrivateKey string
	RealityPublicKey  string
	RealityShortID    string
	MasqueradeServer  string
}

// Credential 返回协议对应的主凭证(共享链接的 userinfo 部分)。
func (s *Spec) Credential() string {
	cap, ok := Lookup(s.Protocol)
	if !ok {
		return ""
	}
	switch cap.Credential {
	case CredUUID:
		return s.UUID
	case CredPassword:
		return s.Password
	default:
		return s.UUID
	}
}

// ServerName 返回握手 SNI:TLS 模式用域名，Reality 模式用伪装站点。
func (s *Spec) ServerName() string {
	if s.Mode == ModeReality {
		return s.MasqueradeServer
	}
	if s.SNI != "" {
		return s.SNI
	}
	return s.Domain
}
