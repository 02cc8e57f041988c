// 文件路径: internal/render/uri.go
// 模块说明: 分享链接输出。各协议遵循对应客户端生态的事实标准格式。
package render

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/creamcroissant/mscript/internal/protocol"
)

// queryBuilder 按插入顺序拼接查询串。url.Values 会按字典序重排，
// 而分享链接的惯例键序是固定的。
type queryBuilder struct {
	pairs []string
}

func (q *queryBuilder) add(key, value string) {
	q.pairs = append(q.pairs, key+"="+url.QueryEscape(value))
}

func (q *queryBuilder) String() string {
	return strings.Join(q.pairs, "&")
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// ShareURI 输出可扫码导入的分享链接。
func (r *Intermediate) ShareURI() (string, error) {
	if err := r.validate(); err != nil {
		return "", err
	}

	// userinfo 经 url.Userinfo 百分号编码，用户自定义密码可含保留字符。
	var scheme string
	var user *url.Userinfo
	q := &queryBuilder{}

	switch r.Protocol {
	case protocol.Vless:
		scheme = "vless"
		user = url.User(r.UUID)
		q.add("encryption", "none")
		if r.Mode == protocol.ModeReality {
			q.add("flow", "xtls-rprx-vision")
			q.add("security", "reality")
			q.add("sni", r.SNI)
			q.add("fp", r.Fingerprint)
			q.add("pbk", r.RealityPublicKey)
			q.add("sid", r.RealityShortID)
		} else {
			q.add("security", "tls")
			q.add("sni", r.SNI)
			q.add("fp", r.Fingerprint)
			q.add("allowInsecure", boolFlag(r.SkipCertVerify))
		}
		q.add("type", "tcp")

	case protocol.Trojan:
		scheme = "trojan"
		user = url.User(r.Password)
		if r.Mode == protocol.ModeReality {
			q.add("security", "reality")
			q.add("sni", r.SNI)
			q.add("fp", r.Fingerprint)
			q.add("pbk", r.RealityPublicKey)
			q.add("sid", r.RealityShortID)
		} else {
			q.add("security", "tls")
			q.add("sni", r.SNI)
			q.add("allowInsecure", boolFlag(r.SkipCertVerify))
		}
		q.add("type", "tcp")

	case protocol.AnyTLS:
		scheme = "anytls"
		user = url.User(r.Password)
		q.add("security", "tls")
		q.add("sni", r.SNI)
		q.add("insecure", boolFlag(r.SkipCertVerify))

	case protocol.Mieru:
		scheme = "mierus"
		user = url.UserPassword(defaultUsername, r.Password)
		q.add("profile", "default")
		q.add("transport", "TCP")

	case protocol.TUICv5:
		scheme = "tuic"
		user = url.UserPassword(r.UUID, r.Password)
		q.add("sni", r.SNI)
		q.add("congestion_control", "bbr")
		q.add("udp_relay_mode", "native")
		q.add("alpn", "h3")
		q.add("allow_insecure", boolFlag(r.SkipCertVerify))

	case protocol.Hysteria2:
		scheme = "hysteria2"
		user = url.User(r.Password)
		q.add("sni", r.SNI)
		q.add("insecure", boolFlag(r.SkipCertVerify))
		q.add("alpn", "h3")

	default:
		return "", protocol.ErrUnknownProtocol
	}

	return fmt.Sprintf("%s://%s@%s:%d?%s#%s",
		scheme, user.String(), r.Server, r.Port, q.String(), url.PathEscape(r.Name)), nil
}
