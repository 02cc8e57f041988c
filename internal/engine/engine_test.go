package engine

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestInstallDownloadsAndUnpacks(t *testing.T) {
	binary := []byte("#!ELF fake kernel")
	mux := http.NewServeMux()
	mux.HandleFunc("/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v1.19.2"}`)
	})
	mux.HandleFunc("/download/v1.19.2/mihomo-linux-amd64-v1.19.2.gz", func(w http.ResponseWriter, r *http.Request) {
		w.Write(gzipped(t, binary))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "bin", "mihomo")
	inst := NewInstaller(Options{
		BinaryPath:  target,
		ReleaseAPI:  srv.URL + "/releases/latest",
		DownloadURL: srv.URL + "/download",
	}, nil)
	inst.suffix = "linux-amd64"

	require.False(t, inst.Installed())
	require.NoError(t, inst.EnsureInstalled(context.Background()))
	require.True(t, inst.Installed())

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, binary, got)

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	// 已安装后不再触发下载。
	srv.Close()
	require.NoError(t, inst.EnsureInstalled(context.Background()))
}

func TestInstallRejectsBadGzip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v1.19.2"}`)
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not a gzip stream")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	inst := NewInstaller(Options{
		BinaryPath:  filepath.Join(t.TempDir(), "mihomo"),
		ReleaseAPI:  srv.URL + "/releases/latest",
		DownloadURL: srv.URL + "/download",
	}, nil)
	inst.suffix = "linux-amd64"

	err := inst.Install(context.Background())
	require.Error(t, err)
	assert.False(t, inst.Installed())
}

func TestLatestVersionErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer srv.Close()

	inst := NewInstaller(Options{ReleaseAPI: srv.URL}, nil)
	_, err := inst.LatestVersion(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestRemoveMissingBinary(t *testing.T) {
	inst := NewInstaller(Options{BinaryPath: filepath.Join(t.TempDir(), "missing")}, nil)
	require.NoError(t, inst.Remove())
}

func TestPublicIPFallsBack(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "203.0.113.7\n")
	}))
	defer good.Close()

	orig := ipEndpoints
	ipEndpoints = []string{bad.URL, good.URL}
	defer func() { ipEndpoints = orig }()

	ip, err := PublicIP(context.Background(), good.Client())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestPublicIPRejectsGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>blocked</html>")
	}))
	defer srv.Close()

	orig := ipEndpoints
	ipEndpoints = []string{srv.URL}
	defer func() { ipEndpoints = orig }()

	_, err := PublicIP(context.Background(), srv.Client())
	require.Error(t, err)
}
