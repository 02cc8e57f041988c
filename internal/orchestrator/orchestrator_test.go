package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/mscript/internal/cert"
	"github.com/creamcroissant/mscript/internal/protocol"
	"github.com/creamcroissant/mscript/internal/repository"
	"github.com/creamcroissant/mscript/internal/svc"
)

// ---- 假实现 ----

type memDeployments struct {
	items  []*repository.Deployment
	nextID int64
}

func (m *memDeployments) FindByPort(_ context.Context, port int) (*repository.Deployment, error) {
	for _, d := range m.items {
		if d.Port == port {
			return d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memDeployments) Active(_ context.Context) (*repository.Deployment, error) {
	if len(m.items) == 0 {
		return nil, repository.ErrNotFound
	}
	return m.items[len(m.items)-1], nil
}

func (m *memDeployments) PortInUse(_ context.Context, port int) (bool, error) {
	for _, d := range m.items {
		if d.Port == port {
			return true, nil
		}
	}
	return false, nil
}

func (m *memDeployments) Save(_ context.Context, d *repository.Deployment) error {
	m.nextID++
	d.ID = m.nextID
	m.items = append(m.items, d)
	return nil
}

func (m *memDeployments) DeleteAll(_ context.Context) error {
	m.items = nil
	return nil
}

type memCertRepo struct {
	items map[string]*repository.CertificateRecord
}

func (m *memCertRepo) FindByDomain(_ context.Context, domain string) (*repository.CertificateRecord, error) {
	if rec, ok := m.items[domain]; ok {
		return rec, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memCertRepo) Save(_ context.Context, rec *repository.CertificateRecord) error {
	if m.items == nil {
		m.items = map[string]*repository.CertificateRecord{}
	}
	m.items[rec.Domain] = rec
	return nil
}

func (m *memCertRepo) List(_ context.Context) ([]*repository.CertificateRecord, error) {
	out := make([]*repository.CertificateRecord, 0, len(m.items))
	for _, rec := range m.items {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memCertRepo) DeleteByDomain(_ context.Context, domain string) error {
	delete(m.items, domain)
	return nil
}

type memStore struct {
	deployments memDeployments
	certs       memCertRepo
}

func (m *memStore) Certificates() repository.CertificateRepository { return &m.certs }
func (m *memStore) Deployments() repository.DeploymentRepository   { return &m.deployments }

type fakeCerts struct {
	dir          string
	acquireErr   error
	acquireCalls int
	renewTouch   bool
}

func (f *fakeCerts) CertPath() string { return filepath.Join(f.dir, "server.crt") }
func (f *fakeCerts) KeyPath() string  { return filepath.Join(f.dir, "server.key") }

func (f *fakeCerts) record(domain string, method repository.CertificateMethod) *repository.CertificateRecord {
	return &repository.CertificateRecord{
		Domain:   domain,
		Method:   method,
		CertPath: f.CertPath(),
		KeyPath:  f.KeyPath(),
		IssuedAt: time.Now(),
		Status:   repository.CertValid,
	}
}

func (f *fakeCerts) Acquire(_ context.Context, domain, _ string) (*repository.CertificateRecord, error) {
	f.acquireCalls++
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.touch()
	return f.record(domain, repository.MethodACME), nil
}

func (f *fakeCerts) GenerateSelfSigned(_ context.Context, identity string) (*repository.CertificateRecord, error) {
	f.touch()
	return f.record(identity, repository.MethodSelfSigned), nil
}

func (f *fakeCerts) RenewalCheck(_ context.Context, _ string) error {
	if f.renewTouch {
		f.touch()
	}
	return nil
}

func (f *fakeCerts) touch() {
	os.WriteFile(f.CertPath(), []byte(time.Now().String()), 0o600)
	os.WriteFile(f.KeyPath(), []byte("key"), 0o600)
}

type fakeCtrl struct {
	dir       string
	status    svc.Status
	installs  int
	reconfigs int
	restarts  int
	lastDoc   []byte
}

func (f *fakeCtrl) ConfigPath() string { return filepath.Join(f.dir, "config.yaml") }

func (f *fakeCtrl) Install(_ context.Context, doc []byte) error {
	f.installs++
	f.lastDoc = doc
	f.status = svc.Status{Installed: true, Running: true, ConfigChecksum: svc.Checksum(doc)}
	return os.WriteFile(f.ConfigPath(), doc, 0o644)
}

func (f *fakeCtrl) Reconfigure(_ context.Context, doc []byte) error {
	f.reconfigs++
	f.lastDoc = doc
	f.status = svc.Status{Installed: true, Running: true, ConfigChecksum: svc.Checksum(doc)}
	return os.WriteFile(f.ConfigPath(), doc, 0o644)
}

func (f *fakeCtrl) Query(_ context.Context) (svc.Status, error) { return f.status, nil }

func (f *fakeCtrl) Restart(_ context.Context) error {
	f.restarts++
	return nil
}

func (f *fakeCtrl) Stop(_ context.Context) error { return nil }

func (f *fakeCtrl) Logs(_ context.Context, _ int) (string, error) {
	if !f.status.Installed {
		return "", svc.ErrNotInstalled
	}
	return "log line\n", nil
}

func (f *fakeCtrl) Uninstall(_ context.Context) error {
	f.status = svc.Status{}
	os.Remove(f.ConfigPath())
	return nil
}

type fakeInstaller struct {
	ensures int
	removes int
}

func (f *fakeInstaller) EnsureInstalled(_ context.Context) error {
	f.ensures++
	return nil
}

func (f *fakeInstaller) Remove() error {
	f.removes++
	return nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *memStore, *fakeCerts, *fakeCtrl, *fakeInstaller) {
	t.Helper()
	store := &memStore{}
	certs := &fakeCerts{dir: t.TempDir()}
	ctrl := &fakeCtrl{dir: t.TempDir()}
	installer := &fakeInstaller{}
	orch := New(store, certs, ctrl, installer, nil).
		WithPublicIP(func(context.Context) (string, error) { return "203.0.113.7", nil })
	return orch, store, certs, ctrl, installer
}

// ---- 测试 ----

func TestDeployVlessReality(t *testing.T) {
	orch, store, _, ctrl, installer := newTestOrchestrator(t)

	res, err := orch.Deploy(context.Background(), Request{
		Input: protocol.Input{Protocol: protocol.Vless, Mode: protocol.ModeReality},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, installer.ensures)
	assert.Equal(t, 1, ctrl.installs)
	assert.Contains(t, res.Outputs.ShareURI, "vless://"+res.Spec.UUID+"@203.0.113.7:")
	assert.Contains(t, res.Outputs.ShareURI, "security=reality")
	assert.Contains(t, res.Outputs.CompactLine, "reality-opts")
	assert.Contains(t, string(res.Outputs.Document), "listeners:")

	active, err := store.Deployments().Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "vless", active.Protocol)
	assert.Equal(t, res.Spec.Port, active.Port)
	assert.Equal(t, svc.Checksum(res.Outputs.Document), active.ConfigChecksum)
}

func TestDeployTLSCertFailureLeavesNothing(t *testing.T) {
	orch, store, certs, ctrl, _ := newTestOrchestrator(t)
	certs.acquireErr = &cert.AcquisitionError{
		Domain: "node.example.com",
		Cause:  cert.CauseDNS,
		Err:    assert.AnError,
	}

	_, err := orch.Deploy(context.Background(), Request{
		Input: protocol.Input{
			Protocol: protocol.Trojan,
			Mode:     protocol.ModeTLS,
			Domain:   "node.example.com",
			Email:    "ops@mydomain.net",
		},
	})
	var aerr *cert.AcquisitionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, cert.CauseDNS, aerr.Cause)

	// 证书失败发生在任何落盘之前: 无配置文件、无服务操作、无部署记录。
	assert.Equal(t, 0, ctrl.installs)
	assert.Equal(t, 0, ctrl.reconfigs)
	_, statErr := os.Stat(ctrl.ConfigPath())
	assert.True(t, os.IsNotExist(statErr))
	_, activeErr := store.Deployments().Active(context.Background())
	assert.ErrorIs(t, activeErr, repository.ErrNotFound)
}

func TestDeployUnchangedConfigSkipsServiceOps(t *testing.T) {
	orch, _, _, ctrl, _ := newTestOrchestrator(t)
	req := Request{
		Input: protocol.Input{
			Protocol: protocol.AnyTLS,
			Mode:     protocol.ModeTLS,
			Domain:   "node.example.com",
			Email:    "ops@mydomain.net",
			Port:     34567,
			Password: "fixed-password-16",
		},
		SelfSigned: true,
	}

	_, err := orch.Deploy(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, ctrl.installs)

	// 参数完全一致的重复部署不产生第二次服务操作。
	_, err = orch.Deploy(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, ctrl.installs)
	assert.Equal(t, 0, ctrl.reconfigs)
}

func TestDeployReplacesActiveSession(t *testing.T) {
	orch, store, _, ctrl, _ := newTestOrchestrator(t)

	first, err := orch.Deploy(context.Background(), Request{
		Input: protocol.Input{Protocol: protocol.Vless, Mode: protocol.ModeReality},
	})
	require.NoError(t, err)

	second, err := orch.Deploy(context.Background(), Request{
		Input: protocol.Input{Protocol: protocol.Trojan, Mode: protocol.ModeReality},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ctrl.installs)
	assert.Equal(t, 1, ctrl.reconfigs)

	active, err := store.Deployments().Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "trojan", active.Protocol)
	assert.NotEqual(t, first.Deployment.ID, second.Deployment.ID)
	assert.Len(t, store.deployments.items, 1)
}

func TestShareReproducesOutputs(t *testing.T) {
	orch, _, _, _, _ := newTestOrchestrator(t)

	res, err := orch.Deploy(context.Background(), Request{
		Input: protocol.Input{Protocol: protocol.Vless, Mode: protocol.ModeReality},
	})
	require.NoError(t, err)

	outputs, err := orch.Share(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Outputs.ShareURI, outputs.ShareURI)
	assert.Equal(t, res.Outputs.CompactLine, outputs.CompactLine)
}

func TestShareWithoutDeployment(t *testing.T) {
	orch, _, _, _, _ := newTestOrchestrator(t)
	_, err := orch.Share(context.Background())
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUninstallIsRepeatable(t *testing.T) {
	orch, store, certs, ctrl, installer := newTestOrchestrator(t)

	_, err := orch.Deploy(context.Background(), Request{
		Input: protocol.Input{Protocol: protocol.Vless, Mode: protocol.ModeReality},
	})
	require.NoError(t, err)
	certs.touch()

	require.NoError(t, orch.Uninstall(context.Background()))
	_, statErr := os.Stat(certs.CertPath())
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, 1, installer.removes)
	_, activeErr := store.Deployments().Active(context.Background())
	assert.ErrorIs(t, activeErr, repository.ErrNotFound)
	st, err := ctrl.Query(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Installed)

	// 干净状态下重复拆除仍然成功。
	require.NoError(t, orch.Uninstall(context.Background()))
}

func TestLogsOnCleanHost(t *testing.T) {
	orch, _, _, _, _ := newTestOrchestrator(t)
	_, err := orch.Logs(context.Background(), 50)
	require.ErrorIs(t, err, svc.ErrNotInstalled)
}

func TestRenewalRestartOnlyWhenCertChanges(t *testing.T) {
	orch, _, certs, ctrl, _ := newTestOrchestrator(t)

	_, err := orch.Deploy(context.Background(), Request{
		Input: protocol.Input{
			Protocol: protocol.Hysteria2,
			Mode:     protocol.ModeTLS,
			Domain:   "node.example.com",
			Email:    "ops@mydomain.net",
		},
		SelfSigned: true,
	})
	require.NoError(t, err)

	// 证书未变: 不重启。
	require.NoError(t, orch.RenewalCheck(context.Background(), "ops@mydomain.net"))
	assert.Equal(t, 0, ctrl.restarts)

	// 证书被更换: 重启一次。
	certs.renewTouch = true
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, orch.RenewalCheck(context.Background(), "ops@mydomain.net"))
	assert.Equal(t, 1, ctrl.restarts)
}
