// 文件路径: internal/engine/installer.go
// 模块说明: 内核获取与安装。从发布页下载 gzip 资产，
// 解压后原子落盘到目标路径。
package engine

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creamcroissant/mscript/internal/support/fsutil"
)

const (
	defaultReleaseAPI  = "https://api.github.com/repos/MetaCubeX/mihomo/releases/latest"
	defaultDownloadURL = "https://github.com/MetaCubeX/mihomo/releases/download"

	// maxAssetSize 解压上限，防御异常响应撑爆磁盘。
	maxAssetSize = 256 << 20
)

// Options 安装器参数。
type Options struct {
	// BinaryPath 安装目标路径。
	BinaryPath string

	// ReleaseAPI 最新版本查询端点，GitHub releases/latest 格式。
	ReleaseAPI string

	// DownloadURL 发布资产下载前缀。
	DownloadURL string

	// HTTPTimeout 单次 HTTP 请求超时。
	HTTPTimeout time.Duration
}

// Installer 下载并安装内核二进制。
type Installer struct {
	opts   Options
	client *http.Client
	logger *slog.Logger

	// suffix 可在测试中覆盖资产架构段。
	suffix string
}

// NewInstaller 构建安装器。
func NewInstaller(opts Options, logger *slog.Logger) *Installer {
	if opts.ReleaseAPI == "" {
		opts.ReleaseAPI = defaultReleaseAPI
	}
	if opts.DownloadURL == "" {
		opts.DownloadURL = defaultDownloadURL
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{
		opts:   opts,
		client: &http.Client{Timeout: opts.HTTPTimeout},
		logger: logger.With("component", "engine"),
		suffix: AssetSuffix(),
	}
}

// Installed 判断目标路径是否已有可执行内核。
func (i *Installer) Installed() bool {
	info, err := os.Stat(i.opts.BinaryPath)
	return err == nil && info.Mode().IsRegular()
}

// EnsureInstalled 已安装则跳过，否则安装最新版本。
func (i *Installer) EnsureInstalled(ctx context.Context) error {
	if i.Installed() {
		i.logger.Debug("内核已存在，跳过下载", "path", i.opts.BinaryPath)
		return nil
	}
	return i.Install(ctx)
}

// Install 查询最新版本并安装。
func (i *Installer) Install(ctx context.Context) error {
	version, err := i.LatestVersion(ctx)
	if err != nil {
		return err
	}
	asset := fmt.Sprintf("mihomo-%s-%s.gz", i.suffix, version)
	url := fmt.Sprintf("%s/%s/%s", strings.TrimRight(i.opts.DownloadURL, "/"), version, asset)
	i.logger.Info("下载内核", "version", version, "asset", asset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine: 下载失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine: download returned status %d / 下载返回状态 %d", resp.StatusCode, resp.StatusCode)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("engine: 资产不是合法 gzip: %w", err)
	}
	defer gz.Close()

	binary, err := io.ReadAll(io.LimitReader(gz, maxAssetSize))
	if err != nil {
		return fmt.Errorf("engine: 解压失败: %w", err)
	}
	if len(binary) == 0 {
		return fmt.Errorf("engine: 解压结果为空")
	}

	if err := os.MkdirAll(filepath.Dir(i.opts.BinaryPath), 0o755); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(i.opts.BinaryPath, binary, 0o755); err != nil {
		return fmt.Errorf("engine: 写入内核失败: %w", err)
	}
	i.logger.Info("内核安装完成", "path", i.opts.BinaryPath, "version", version)
	return nil
}

// LatestVersion 查询最新发布版本号(形如 v1.19.2)。
func (i *Installer) LatestVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.opts.ReleaseAPI, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("engine: 版本查询失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("engine: release api returned status %d / 版本接口返回状态 %d", resp.StatusCode, resp.StatusCode)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("engine: 版本响应解析失败: %w", err)
	}
	if release.TagName == "" {
		return "", fmt.Errorf("engine: 版本响应缺少 tag_name")
	}
	return release.TagName, nil
}

// Remove 删除已安装内核，目标不存在视为成功。
func (i *Installer) Remove() error {
	err := os.Remove(i.opts.BinaryPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
