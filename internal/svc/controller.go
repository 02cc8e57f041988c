// 文件路径: internal/svc/controller.go
// 模块说明: 服务控制器。负责配置文件与单元文件落盘、服务生命周期
// 以及运行状态查询，底层控制经由 initsys 抽象。
package svc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/creamcroissant/mscript/internal/initsys"
	"github.com/creamcroissant/mscript/internal/support/fsutil"
)

const (
	configFileName = "config.yaml"

	// statusCacheTTL 状态查询缓存。TUI 以秒级间隔轮询，
	// 不应每次都落到 systemctl。
	statusCacheTTL = 2 * time.Second
	statusCacheKey = "status"
)

// Options 控制器参数，来自配置层。
type Options struct {
	// ServiceName 服务名(不带 .service 后缀)。
	ServiceName string

	// ConfigDir 内核配置目录，config.yaml 与证书均落在此处。
	ConfigDir string

	// BinaryPath 内核二进制路径。
	BinaryPath string

	// UnitPath systemd 单元文件路径。
	UnitPath string
}

// Status 一次状态查询的结果。
type Status struct {
	Installed bool
	Running   bool

	// ConfigChecksum 当前配置文件的 sha256(十六进制)，未安装时为空。
	ConfigChecksum string
}

// Controller 服务控制器。
type Controller struct {
	sys    initsys.InitSystem
	opts   Options
	logger *slog.Logger
	cache  *gocache.Cache
}

// NewController 构建控制器。
func NewController(sys initsys.InitSystem, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sys:    sys,
		opts:   opts,
		logger: logger.With("component", "svc"),
		cache:  gocache.New(statusCacheTTL, time.Minute),
	}
}

// ConfigPath 内核配置文件路径。
func (c *Controller) ConfigPath() string {
	return filepath.Join(c.opts.ConfigDir, configFileName)
}

// Install 写入配置与单元文件并启动服务。重复调用等价于重装。
func (c *Controller) Install(ctx context.Context, document []byte) error {
	if err := c.writeConfig(document); err != nil {
		return err
	}
	if err := c.writeUnit(ctx); err != nil {
		return err
	}
	if err := c.sys.Enable(ctx, c.opts.ServiceName); err != nil {
		return controlErr("enable", err)
	}
	if err := c.sys.Restart(ctx, c.opts.ServiceName); err != nil {
		return controlErr("start", err)
	}
	c.cache.Flush()
	c.logger.Info("服务已安装并启动",
		"service", c.opts.ServiceName, "config", c.ConfigPath())
	return nil
}

// Reconfigure 替换配置并重启服务，不重写单元文件。
func (c *Controller) Reconfigure(ctx context.Context, document []byte) error {
	if !c.unitInstalled() {
		return ErrNotInstalled
	}
	if err := c.writeConfig(document); err != nil {
		return err
	}
	if err := c.sys.Restart(ctx, c.opts.ServiceName); err != nil {
		return controlErr("restart", err)
	}
	c.cache.Flush()
	c.logger.Info("配置已替换并重启", "service", c.opts.ServiceName)
	return nil
}

// Query 返回服务状态，短暂缓存以吸收高频轮询。
func (c *Controller) Query(ctx context.Context) (Status, error) {
	if cached, ok := c.cache.Get(statusCacheKey); ok {
		return cached.(Status), nil
	}
	st := Status{Installed: c.unitInstalled()}
	if st.Installed {
		running, err := c.sys.Status(ctx, c.opts.ServiceName)
		if err != nil {
			return Status{}, controlErr("status", err)
		}
		st.Running = running
		if sum, err := c.configChecksum(); err == nil {
			st.ConfigChecksum = sum
		}
	}
	c.cache.Set(statusCacheKey, st, gocache.DefaultExpiration)
	return st, nil
}

// Restart 重启服务。
func (c *Controller) Restart(ctx context.Context) error {
	if !c.unitInstalled() {
		return ErrNotInstalled
	}
	if err := c.sys.Restart(ctx, c.opts.ServiceName); err != nil {
		return controlErr("restart", err)
	}
	c.cache.Flush()
	return nil
}

// Stop 停止服务，不取消自启。
func (c *Controller) Stop(ctx context.Context) error {
	if !c.unitInstalled() {
		return ErrNotInstalled
	}
	if err := c.sys.Stop(ctx, c.opts.ServiceName); err != nil {
		return controlErr("stop", err)
	}
	c.cache.Flush()
	return nil
}

// Logs 返回最近 lines 行服务日志。
func (c *Controller) Logs(ctx context.Context, lines int) (string, error) {
	if !c.unitInstalled() {
		return "", ErrNotInstalled
	}
	out, err := c.sys.Logs(ctx, c.opts.ServiceName, lines)
	if err != nil {
		return "", controlErr("logs", err)
	}
	return out, nil
}

// Uninstall 逐步拆除: 停服务、取消自启、删单元文件、删整个配置目录。
// 配置目录整树移除，证书等落在其中的文件一并清掉。
// 每一步对"目标本就不存在"宽容，任何组合的残留状态都可以重复执行清理。
func (c *Controller) Uninstall(ctx context.Context) error {
	if c.unitInstalled() {
		if err := c.sys.Stop(ctx, c.opts.ServiceName); err != nil {
			c.logger.Warn("停止服务失败，继续拆除", "error", err)
		}
		if err := c.sys.Disable(ctx, c.opts.ServiceName); err != nil {
			c.logger.Warn("取消自启失败，继续拆除", "error", err)
		}
	}
	if err := removeIfExists(c.opts.UnitPath); err != nil {
		return controlErr("remove unit", err)
	}
	if err := c.sys.ReloadUnits(ctx); err != nil {
		c.logger.Warn("重载服务定义失败", "error", err)
	}
	if c.opts.ConfigDir != "" {
		if err := os.RemoveAll(c.opts.ConfigDir); err != nil {
			return controlErr("remove config dir", err)
		}
	}
	c.cache.Flush()
	c.logger.Info("服务已拆除", "service", c.opts.ServiceName)
	return nil
}

func (c *Controller) writeConfig(document []byte) error {
	if len(document) == 0 {
		return controlErr("write config", fmt.Errorf("配置内容为空"))
	}
	if err := os.MkdirAll(c.opts.ConfigDir, 0o755); err != nil {
		return controlErr("write config", err)
	}
	if err := fsutil.WriteFileAtomic(c.ConfigPath(), document, 0o644); err != nil {
		return controlErr("write config", err)
	}
	return nil
}

func (c *Controller) writeUnit(ctx context.Context) error {
	unit := UnitFile(c.opts.BinaryPath, c.opts.ConfigDir)
	if err := os.MkdirAll(filepath.Dir(c.opts.UnitPath), 0o755); err != nil {
		return controlErr("write unit", err)
	}
	if err := fsutil.WriteFileAtomic(c.opts.UnitPath, unit, 0o644); err != nil {
		return controlErr("write unit", err)
	}
	if err := c.sys.ReloadUnits(ctx); err != nil {
		return controlErr("reload units", err)
	}
	return nil
}

func (c *Controller) unitInstalled() bool {
	_, err := os.Stat(c.opts.UnitPath)
	return err == nil
}

func (c *Controller) configChecksum() (string, error) {
	data, err := os.ReadFile(c.ConfigPath())
	if err != nil {
		return "", err
	}
	return Checksum(data), nil
}

// Checksum 计算配置内容的 sha256 十六进制摘要。
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func removeIfExists(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
