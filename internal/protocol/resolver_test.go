package protocol

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	used map[int]bool
}

func (f *fakeRegistry) PortInUse(_ context.Context, port int) (bool, error) {
	return f.used[port], nil
}

func alwaysFree(int) bool { return true }

func newTestResolver(reg PortRegistry) *Resolver {
	return NewResolver(reg).WithPortProbe(alwaysFree)
}

var uuidV4Pattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestResolveVlessRealityDefaults(t *testing.T) {
	r := newTestResolver(nil)

	spec, err := r.Resolve(context.Background(), Input{Protocol: Vless, Mode: ModeReality})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, spec.Port, autoPortMin)
	assert.LessOrEqual(t, spec.Port, autoPortMax)
	assert.Regexp(t, uuidV4Pattern, spec.UUID)
	assert.Empty(t, spec.Password)

	assert.NotEmpty(t, spec.RealityPrivateKey)
	assert.NotEmpty(t, spec.RealityPublicKey)
	assert.NotEqual(t, spec.RealityPrivateKey, spec.RealityPublicKey)
	assert.Regexp(t, `^[0-9a-f]{16}$`, spec.RealityShortID)
	assert.Equal(t, defaultMasquerade, spec.MasqueradeServer)

	// Reality 模式不允许携带域名与邮箱。
	assert.Empty(t, spec.Domain)
	assert.Empty(t, spec.Email)
}

func TestResolveRealityKeysNeverReused(t *testing.T) {
	r := newTestResolver(nil)

	first, err := r.Resolve(context.Background(), Input{Protocol: Vless, Mode: ModeReality})
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), Input{Protocol: Trojan, Mode: ModeReality})
	require.NoError(t, err)

	assert.NotEqual(t, first.RealityPrivateKey, second.RealityPrivateKey)
	assert.NotEqual(t, first.RealityShortID, second.RealityShortID)
}

func TestResolveTLSRequiresDomainAndEmail(t *testing.T) {
	r := newTestResolver(nil)

	_, err := r.Resolve(context.Background(), Input{Protocol: Trojan, Mode: ModeTLS})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Resolve(context.Background(), Input{Protocol: Trojan, Mode: ModeTLS, Domain: "proxy.example.com"})
	require.ErrorIs(t, err, ErrInvalidInput)

	spec, err := r.Resolve(context.Background(), Input{
		Protocol: Trojan,
		Mode:     ModeTLS,
		Domain:   "proxy.mydomain.net",
		Email:    "ops@mydomain.net",
	})
	require.NoError(t, err)
	assert.Equal(t, "proxy.mydomain.net", spec.Domain)
	assert.Equal(t, "proxy.mydomain.net", spec.SNI)
	assert.NotEmpty(t, spec.Password)
	assert.Empty(t, spec.RealityPublicKey)
	assert.Empty(t, spec.RealityShortID)
}

func TestResolveRejectsForbiddenEmailDomains(t *testing.T) {
	r := newTestResolver(nil)

	_, err := r.Resolve(context.Background(), Input{
		Protocol: AnyTLS,
		Mode:     ModeTLS,
		Domain:   "proxy.mydomain.net",
		Email:    "me@example.com",
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveRejectsDomainInRealityMode(t *testing.T) {
	r := newTestResolver(nil)

	_, err := r.Resolve(context.Background(), Input{
		Protocol: Vless,
		Mode:     ModeReality,
		Domain:   "proxy.mydomain.net",
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveModeSupport(t *testing.T) {
	r := newTestResolver(nil)

	for _, p := range []Protocol{AnyTLS, Mieru, TUICv5, Hysteria2} {
		_, err := r.Resolve(context.Background(), Input{Protocol: p, Mode: ModeReality})
		require.ErrorIs(t, err, ErrUnsupportedMode, "protocol %s", p)
	}

	_, err := r.Resolve(context.Background(), Input{Protocol: "socks5"})
	require.ErrorIs(t, err, ErrUnknownProtocol)
}

func TestResolveTUICGetsBothCredentials(t *testing.T) {
	r := newTestResolver(nil)

	spec, err := r.Resolve(context.Background(), Input{
		Protocol: TUICv5,
		Mode:     ModeTLS,
		Domain:   "proxy.mydomain.net",
		Email:    "ops@mydomain.net",
	})
	require.NoError(t, err)
	assert.Regexp(t, uuidV4Pattern, spec.UUID)
	assert.Len(t, spec.Password, passwordLength)
}

func TestResolveExplicitPortConflict(t *testing.T) {
	reg := &fakeRegistry{used: map[int]bool{8443: true}}
	r := newTestResolver(reg)

	_, err := r.Resolve(context.Background(), Input{
		Protocol: Vless,
		Mode:     ModeReality,
		Port:     8443,
	})
	var conflict *PortConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 8443, conflict.Port)
}

func TestResolveAutoPortSkipsRecordedSessions(t *testing.T) {
	// 标记一半以上端口仍留有足够空间，自动选择必须避开记录中的端口。
	reg := &fakeRegistry{used: map[int]bool{}}
	for p := autoPortMin; p <= autoPortMax; p++ {
		if p%2 == 0 {
			reg.used[p] = true
		}
	}
	r := newTestResolver(reg)

	for i := 0; i < 20; i++ {
		spec, err := r.Resolve(context.Background(), Input{Protocol: Vless, Mode: ModeReality})
		require.NoError(t, err)
		assert.False(t, reg.used[spec.Port], "picked recorded port %d", spec.Port)
	}
}

// 自动端口在解析之间不互斥，互斥只发生在端口进入登记表之后。
// 按部署流程逐次登记时，后续解析必然避开所有已提交端口。
func TestResolveAutoPortUniqueAfterEachCommit(t *testing.T) {
	reg := &fakeRegistry{used: map[int]bool{}}
	r := newTestResolver(reg)

	seen := map[int]bool{}
	for i := 0; i < 50; i++ {
		spec, err := r.Resolve(context.Background(), Input{Protocol: Vless, Mode: ModeReality})
		require.NoError(t, err)
		assert.False(t, seen[spec.Port], "port %d handed out twice", spec.Port)
		seen[spec.Port] = true
		reg.used[spec.Port] = true
	}
}

func TestResolvePortRange(t *testing.T) {
	r := newTestResolver(nil)

	_, err := r.Resolve(context.Background(), Input{Protocol: Vless, Mode: ModeReality, Port: 70000})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Resolve(context.Background(), Input{Protocol: Vless, Mode: ModeReality, Port: -1})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveInvalidUUIDRejected(t *testing.T) {
	r := newTestResolver(nil)

	_, err := r.Resolve(context.Background(), Input{Protocol: Vless, Mode: ModeReality, UUID: "not-a-uuid"})
	require.ErrorIs(t, err, ErrInvalidInput)
}
