package svc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInit 记录调用序列的 InitSystem 假实现。
type fakeInit struct {
	calls   []string
	running bool
	logs    string
}

func (f *fakeInit) Type() string { return "fake" }

func (f *fakeInit) Start(_ context.Context, _ string) error {
	f.calls = append(f.calls, "start")
	f.running = true
	return nil
}

func (f *fakeInit) Stop(_ context.Context, _ string) error {
	f.calls = append(f.calls, "stop")
	f.running = false
	return nil
}

func (f *fakeInit) Restart(_ context.Context, _ string) error {
	f.calls = append(f.calls, "restart")
	f.running = true
	return nil
}

func (f *fakeInit) Status(_ context.Context, _ string) (bool, error) {
	f.calls = append(f.calls, "status")
	return f.running, nil
}

func (f *fakeInit) Enable(_ context.Context, _ string) error {
	f.calls = append(f.calls, "enable")
	return nil
}

func (f *fakeInit) Disable(_ context.Context, _ string) error {
	f.calls = append(f.calls, "disable")
	return nil
}

func (f *fakeInit) Logs(_ context.Context, _ string, _ int) (string, error) {
	f.calls = append(f.calls, "logs")
	return f.logs, nil
}

func (f *fakeInit) ReloadUnits(_ context.Context) error {
	f.calls = append(f.calls, "reload-units")
	return nil
}

func newTestController(t *testing.T) (*Controller, *fakeInit) {
	t.Helper()
	dir := t.TempDir()
	sys := &fakeInit{}
	ctrl := NewController(sys, Options{
		ServiceName: "mihomo",
		ConfigDir:   filepath.Join(dir, "mihomo"),
		BinaryPath:  "/usr/local/bin/mihomo",
		UnitPath:    filepath.Join(dir, "system", "mihomo.service"),
	}, nil)
	return ctrl, sys
}

func TestInstallWritesFilesAndStarts(t *testing.T) {
	ctrl, sys := newTestController(t)
	doc := []byte("listeners:\n  - name: vless-in\n")

	require.NoError(t, ctrl.Install(context.Background(), doc))

	written, err := os.ReadFile(ctrl.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, doc, written)

	unit, err := os.ReadFile(ctrl.opts.UnitPath)
	require.NoError(t, err)
	assert.Contains(t, string(unit), "ExecStart=/usr/local/bin/mihomo -d "+ctrl.opts.ConfigDir)
	assert.Contains(t, string(unit), "Restart=on-failure")
	assert.Contains(t, string(unit), "CAP_NET_BIND_SERVICE")

	assert.Equal(t, []string{"reload-units", "enable", "restart"}, sys.calls)
}

func TestInstallRejectsEmptyDocument(t *testing.T) {
	ctrl, _ := newTestController(t)
	err := ctrl.Install(context.Background(), nil)
	var cerr *ControlError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "write config", cerr.Op)
}

func TestQueryReportsChecksumAndCaches(t *testing.T) {
	ctrl, sys := newTestController(t)
	doc := []byte("listeners: []\n")
	require.NoError(t, ctrl.Install(context.Background(), doc))

	st, err := ctrl.Query(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Installed)
	assert.True(t, st.Running)
	assert.Equal(t, Checksum(doc), st.ConfigChecksum)

	// 缓存期内重复查询不应再触发底层状态命令。
	statusCalls := countCalls(sys.calls, "status")
	_, err = ctrl.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, statusCalls, countCalls(sys.calls, "status"))
}

func TestQueryBeforeInstall(t *testing.T) {
	ctrl, _ := newTestController(t)
	st, err := ctrl.Query(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Installed)
	assert.False(t, st.Running)
	assert.Empty(t, st.ConfigChecksum)
}

func TestReconfigureRequiresInstall(t *testing.T) {
	ctrl, _ := newTestController(t)
	err := ctrl.Reconfigure(context.Background(), []byte("listeners: []\n"))
	require.ErrorIs(t, err, ErrNotInstalled)
}

func TestLogsRequireInstall(t *testing.T) {
	ctrl, _ := newTestController(t)
	_, err := ctrl.Logs(context.Background(), 50)
	require.ErrorIs(t, err, ErrNotInstalled)
}

func TestUninstallIsIdempotent(t *testing.T) {
	ctrl, sys := newTestController(t)
	require.NoError(t, ctrl.Install(context.Background(), []byte("listeners: []\n")))

	require.NoError(t, ctrl.Uninstall(context.Background()))
	_, err := os.Stat(ctrl.ConfigPath())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(ctrl.opts.UnitPath)
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, sys.calls, "stop")
	assert.Contains(t, sys.calls, "disable")

	// 再次拆除是空操作，不报错也不再触发服务控制。
	calls := len(sys.calls)
	require.NoError(t, ctrl.Uninstall(context.Background()))
	assert.Equal(t, calls+1, len(sys.calls), "只允许多一次 reload-units")
}

// 配置目录整树移除，证书等散落在目录里的文件不能留下残骸。
func TestUninstallRemovesConfigDirTree(t *testing.T) {
	ctrl, _ := newTestController(t)
	require.NoError(t, ctrl.Install(context.Background(), []byte("listeners: []\n")))
	for _, name := range []string{"server.crt", "server.key"} {
		require.NoError(t, os.WriteFile(filepath.Join(ctrl.opts.ConfigDir, name), []byte("x"), 0o600))
	}

	require.NoError(t, ctrl.Uninstall(context.Background()))

	_, err := os.Stat(ctrl.opts.ConfigDir)
	assert.True(t, os.IsNotExist(err))
}

func TestUninstallOnCleanHost(t *testing.T) {
	ctrl, _ := newTestController(t)
	require.NoError(t, ctrl.Uninstall(context.Background()))
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}
