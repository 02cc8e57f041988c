// 文件路径: internal/render/compact.go
// 模块说明: 单行客户端配置输出，可直接粘贴进 Clash 系客户端的 proxies 列表。
package render

import (
	"fmt"
	"strings"

	"github.com/creamcroissant/mscript/internal/protocol"
)

// lineBuilder 按插入顺序拼接 flow 风格的 YAML 单行映射。
// yaml.Marshal 会重排键序，客户端配置约定 name/type/server/port 在前，
// 因此这里手工拼接。
type lineBuilder struct {
	parts []string
}

func (b *lineBuilder) add(key string, value any) {
	var rendered string
	switch v := value.(type) {
	case string:
		rendered = fmt.Sprintf("%q", v)
	case bool:
		rendered = fmt.Sprintf("%t", v)
	case int:
		rendered = fmt.Sprintf("%d", v)
	case []string:
		quoted := make([]string, len(v))
		for i, s := range v {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		rendered = "[" + strings.Join(quoted, ", ") + "]"
	default:
		rendered = fmt.Sprintf("%v", v)
	}
	b.parts = append(b.parts, key+": "+rendered)
}

func (b *lineBuilder) addRaw(key, value string) {
	b.parts = append(b.parts, key+": "+value)
}

func (b *lineBuilder) String() string {
	return "- {" + strings.Join(b.parts, ", ") + "}"
}

// CompactLine 输出单行客户端配置。
func (r *Intermediate) CompactLine() (string, error) {
	if err := r.validate(); err != nil {
		return "", err
	}
	caps, _ := protocol.Lookup(r.Protocol)

	b := &lineBuilder{}
	b.add("name", r.Name)
	b.add("type", string(r.Protocol))
	b.add("server", r.Server)
	b.add("port", r.Port)

	switch r.Protocol {
	case protocol.Vless:
		b.add("uuid", r.UUID)
		b.add("network", "tcp")
		b.add("tls", true)
		b.add("servername", r.SNI)
		if r.Mode == protocol.ModeReality {
			b.add("flow", "xtls-rprx-vision")
			b.addRaw("reality-opts", fmt.Sprintf("{public-key: %q, short-id: %q}", r.RealityPublicKey, r.RealityShortID))
			b.add("client-fingerprint", r.Fingerprint)
		} else {
			b.add("skip-cert-verify", r.SkipCertVerify)
		}
	case protocol.Trojan:
		b.add("password", r.Password)
		b.add("sni", r.SNI)
		if r.Mode == protocol.ModeReality {
			b.addRaw("reality-opts", fmt.Sprintf("{public-key: %q, short-id: %q}", r.RealityPublicKey, r.RealityShortID))
			b.add("client-fingerprint", r.Fingerprint)
		} else {
			b.add("skip-cert-verify", r.SkipCertVerify)
		}
	case protocol.AnyTLS:
		b.add("password", r.Password)
		b.add("sni", r.SNI)
		b.add("skip-cert-verify", r.SkipCertVerify)
	case protocol.Mieru:
		b.add("username", defaultUsername)
		b.add("password", r.Password)
		b.add("transport", "TCP")
	case protocol.TUICv5:
		b.add("uuid", r.UUID)
		b.add("password", r.Password)
		b.add("sni", r.SNI)
		b.add("alpn", []string{"h3"})
		b.add("congestion-controller", "bbr")
		b.add("udp-relay-mode", "native")
		b.add("skip-cert-verify", r.SkipCertVerify)
	case protocol.Hysteria2:
		b.add("password", r.Password)
		b.add("sni", r.SNI)
		b.add("alpn", []string{"h3"})
		b.add("up", fmt.Sprintf("%d Mbps", r.UpMbps))
		b.add("down", fmt.Sprintf("%d Mbps", r.DownMbps))
		b.add("skip-cert-verify", r.SkipCertVerify)
	}
	if caps.UDP {
		b.add("udp", true)
	}
	return b.String(), nil
}
