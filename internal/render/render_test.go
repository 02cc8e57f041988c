package render

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/mscript/internal/protocol"
	"github.com/creamcroissant/mscript/internal/repository"
)

func resolveSpec(t *testing.T, in protocol.Input) *protocol.Spec {
	t.Helper()
	r := protocol.NewResolver(nil).WithPortProbe(func(int) bool { return true })
	spec, err := r.Resolve(context.Background(), in)
	require.NoError(t, err)
	return spec
}

func acmeRecord(domain string) *repository.CertificateRecord {
	return &repository.CertificateRecord{
		Domain:     domain,
		Method:     repository.MethodACME,
		CertPath:   "/root/.config/mihomo/server.crt",
		KeyPath:    "/root/.config/mihomo/server.key",
		IssuedAt:   time.Now(),
		RenewalDue: time.Now().Add(60 * 24 * time.Hour),
		Status:     repository.CertValid,
	}
}

func TestBuildVlessRealityShareURI(t *testing.T) {
	spec := resolveSpec(t, protocol.Input{Protocol: protocol.Vless, Mode: protocol.ModeReality})

	rec, err := Build(spec, nil, "203.0.113.7")
	require.NoError(t, err)

	uri, err := rec.ShareURI()
	require.NoError(t, err)

	prefix := fmt.Sprintf("vless://%s@203.0.113.7:%d?", spec.UUID, spec.Port)
	assert.True(t, strings.HasPrefix(uri, prefix), uri)
	assert.Contains(t, uri, "security=reality")
	assert.Contains(t, uri, "flow=xtls-rprx-vision")
	assert.Contains(t, uri, "pbk="+spec.RealityPublicKey)
	assert.Contains(t, uri, "sid="+spec.RealityShortID)
	assert.Contains(t, uri, "fp=chrome")
	// 私钥绝不能出现在任何客户端输出里。
	assert.NotContains(t, uri, spec.RealityPrivateKey)
}

func TestDocumentRealityCarriesPrivateKeyOnly(t *testing.T) {
	spec := resolveSpec(t, protocol.Input{Protocol: protocol.Vless, Mode: protocol.ModeReality})
	rec, err := Build(spec, nil, "203.0.113.7")
	require.NoError(t, err)

	doc, err := rec.Document()
	require.NoError(t, err)

	text := string(doc)
	assert.Contains(t, text, "listeners:")
	assert.Contains(t, text, "type: vless")
	assert.Contains(t, text, spec.RealityPrivateKey)
	assert.Contains(t, text, spec.RealityShortID)
	assert.Contains(t, text, "www.microsoft.com:443")
}

func TestDocumentTLSReferencesCertPaths(t *testing.T) {
	spec := resolveSpec(t, protocol.Input{
		Protocol: protocol.Trojan,
		Mode:     protocol.ModeTLS,
		Domain:   "node.example.com",
		Email:    "ops@mydomain.net",
	})
	rec, err := Build(spec, acmeRecord("node.example.com"), "")
	require.NoError(t, err)
	assert.Equal(t, "node.example.com", rec.Server)
	assert.False(t, rec.SkipCertVerify)

	doc, err := rec.Document()
	require.NoError(t, err)
	assert.Contains(t, string(doc), "certificate: /root/.config/mihomo/server.crt")
	assert.Contains(t, string(doc), "private-key: /root/.config/mihomo/server.key")
}

func TestBuildTLSWithoutCertificateFails(t *testing.T) {
	spec := resolveSpec(t, protocol.Input{
		Protocol: protocol.AnyTLS,
		Mode:     protocol.ModeTLS,
		Domain:   "node.example.com",
		Email:    "ops@mydomain.net",
	})
	_, err := Build(spec, nil, "")
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "certificate", rerr.Field)
}

func TestSelfSignedMarksSkipCertVerify(t *testing.T) {
	spec := resolveSpec(t, protocol.Input{
		Protocol: protocol.Hysteria2,
		Mode:     protocol.ModeTLS,
		Domain:   "node.example.com",
		Email:    "ops@mydomain.net",
	})
	cert := acmeRecord("node.example.com")
	cert.Method = repository.MethodSelfSigned
	rec, err := Build(spec, cert, "")
	require.NoError(t, err)
	assert.True(t, rec.SkipCertVerify)

	uri, err := rec.ShareURI()
	require.NoError(t, err)
	assert.Contains(t, uri, "insecure=1")

	line, err := rec.CompactLine()
	require.NoError(t, err)
	assert.Contains(t, line, "skip-cert-verify: true")
}

// 所有合法 (协议, 模式) 组合: 结构化文档回读后应复现与原记录完全一致的
// 单行配置与分享链接。
func TestDocumentRoundTripAllPairs(t *testing.T) {
	for _, proto := range protocol.All() {
		caps, ok := protocol.Lookup(proto)
		require.True(t, ok)
		for _, mode := range caps.Modes {
			t.Run(fmt.Sprintf("%s_%s", proto, mode), func(t *testing.T) {
				in := protocol.Input{Protocol: proto, Mode: mode}
				if mode == protocol.ModeTLS {
					in.Domain = "node.example.com"
					in.Email = "ops@mydomain.net"
					// 自定义 SNI 与证书域名不同，回读也要复现。
					in.SNI = "edge.example.com"
				}
				spec := resolveSpec(t, in)

				var cert *repository.CertificateRecord
				server := "203.0.113.7"
				if mode == protocol.ModeTLS {
					cert = acmeRecord(in.Domain)
					server = ""
				}
				orig, err := Build(spec, cert, server)
				require.NoError(t, err)

				doc, err := orig.Document()
				require.NoError(t, err)

				parsed, err := ParseDocument(doc, orig.Server)
				require.NoError(t, err)

				wantLine, err := orig.CompactLine()
				require.NoError(t, err)
				gotLine, err := parsed.CompactLine()
				require.NoError(t, err)
				assert.Equal(t, wantLine, gotLine)

				wantURI, err := orig.ShareURI()
				require.NoError(t, err)
				gotURI, err := parsed.ShareURI()
				require.NoError(t, err)
				assert.Equal(t, wantURI, gotURI)
			})
		}
	}
}

// 自定义 SNI 必须写进文档并在回读后原样恢复，不能被证书域名顶掉。
func TestDocumentRoundTripKeepsCustomSNI(t *testing.T) {
	spec := resolveSpec(t, protocol.Input{
		Protocol: protocol.Trojan,
		Mode:     protocol.ModeTLS,
		Domain:   "node.example.com",
		Email:    "ops@mydomain.net",
		SNI:      "edge.mydomain.net",
	})
	orig, err := Build(spec, acmeRecord("node.example.com"), "")
	require.NoError(t, err)

	doc, err := orig.Document()
	require.NoError(t, err)
	assert.Contains(t, string(doc), "server-name: edge.mydomain.net")

	parsed, err := ParseDocument(doc, orig.Server)
	require.NoError(t, err)
	assert.Equal(t, "edge.mydomain.net", parsed.SNI)

	uri, err := parsed.ShareURI()
	require.NoError(t, err)
	assert.Contains(t, uri, "sni=edge.mydomain.net")
}

// 用户自带的密码可以含 URI 保留字符，分享链接必须仍可被标准解析器解析。
func TestShareURIEscapesReservedPasswordCharacters(t *testing.T) {
	const password = "p@ss:word#1?x/2"
	spec := resolveSpec(t, protocol.Input{
		Protocol: protocol.Trojan,
		Mode:     protocol.ModeTLS,
		Domain:   "node.example.com",
		Email:    "ops@mydomain.net",
		Password: password,
	})
	rec, err := Build(spec, acmeRecord("node.example.com"), "")
	require.NoError(t, err)

	uri, err := rec.ShareURI()
	require.NoError(t, err)

	u, err := url.Parse(uri)
	require.NoError(t, err, uri)
	assert.Equal(t, "trojan", u.Scheme)
	assert.Equal(t, password, u.User.Username())
	assert.Equal(t, "node.example.com", u.Hostname())
	assert.Equal(t, fmt.Sprintf("%d", spec.Port), u.Port())
}

// TUIC 的 uuid:password 形态同样要整体通过 userinfo 编码。
func TestShareURIEscapesTUICCredentialPair(t *testing.T) {
	const password = "se:cret@pass/1"
	spec := resolveSpec(t, protocol.Input{
		Protocol: protocol.TUICv5,
		Mode:     protocol.ModeTLS,
		Domain:   "node.example.com",
		Email:    "ops@mydomain.net",
		Password: password,
	})
	rec, err := Build(spec, acmeRecord("node.example.com"), "")
	require.NoError(t, err)

	uri, err := rec.ShareURI()
	require.NoError(t, err)

	u, err := url.Parse(uri)
	require.NoError(t, err, uri)
	assert.Equal(t, spec.UUID, u.User.Username())
	got, ok := u.User.Password()
	require.True(t, ok)
	assert.Equal(t, password, got)
}

func TestCompactLineIsSingleFlowEntry(t *testing.T) {
	spec := resolveSpec(t, protocol.Input{Protocol: protocol.Vless, Mode: protocol.ModeReality})
	rec, err := Build(spec, nil, "203.0.113.7")
	require.NoError(t, err)

	line, err := rec.CompactLine()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "- {"), line)
	assert.True(t, strings.HasSuffix(line, "}"), line)
	assert.NotContains(t, line, "\n")
	assert.Contains(t, line, fmt.Sprintf("server: \"203.0.113.7\", port: %d", spec.Port))
	assert.Contains(t, line, "public-key: "+fmt.Sprintf("%q", spec.RealityPublicKey))
}

func TestParseDocumentRejectsGarbage(t *testing.T) {
	_, err := ParseDocument([]byte("listeners: []\n"), "203.0.113.7")
	require.Error(t, err)

	_, err = ParseDocument([]byte(":::"), "203.0.113.7")
	require.Error(t, err)
}

func TestTUICOutputsCarryBothCredentials(t *testing.T) {
	spec := resolveSpec(t, protocol.Input{
		Protocol: protocol.TUICv5,
		Mode:     protocol.ModeTLS,
		Domain:   "node.example.com",
		Email:    "ops@mydomain.net",
	})
	rec, err := Build(spec, acmeRecord("node.example.com"), "")
	require.NoError(t, err)

	uri, err := rec.ShareURI()
	require.NoError(t, err)
	assert.Contains(t, uri, fmt.Sprintf("tuic://%s:%s@", spec.UUID, spec.Password))
	assert.Contains(t, uri, "congestion_control=bbr")
	assert.Contains(t, uri, "udp_relay_mode=native")

	line, err := rec.CompactLine()
	require.NoError(t, err)
	assert.Contains(t, line, "udp: true")
}
