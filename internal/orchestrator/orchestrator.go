// 文件路径: internal/orchestrator/orchestrator.go
// 模块说明: 部署编排器。把参数解析、证书获取、配置渲染、服务控制
// 与状态记录串成一次事务式的部署流程。
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/creamcroissant/mscript/internal/engine"
	"github.com/creamcroissant/mscript/internal/protocol"
	"github.com/creamcroissant/mscript/internal/render"
	"github.com/creamcroissant/mscript/internal/repository"
	"github.com/creamcroissant/mscript/internal/svc"
)

// CertManager 编排器需要的证书操作面。
type CertManager interface {
	Acquire(ctx context.Context, domain, email string) (*repository.CertificateRecord, error)
	GenerateSelfSigned(ctx context.Context, identity string) (*repository.CertificateRecord, error)
	RenewalCheck(ctx context.Context, email string) error
	CertPath() string
	KeyPath() string
}

// ServiceController 编排器需要的服务控制面。
type ServiceController interface {
	Install(ctx context.Context, document []byte) error
	Reconfigure(ctx context.Context, document []byte) error
	Query(ctx context.Context) (svc.Status, error)
	Restart(ctx context.Context) error
	Stop(ctx context.Context) error
	Logs(ctx context.Context, lines int) (string, error)
	Uninstall(ctx context.Context) error
	ConfigPath() string
}

// KernelInstaller 内核安装面。
type KernelInstaller interface {
	EnsureInstalled(ctx context.Context) error
	Remove() error
}

// Request 一次部署请求。
type Request struct {
	protocol.Input

	// SelfSigned 为真时 TLS 模式改用自签证书而非 ACME。
	SelfSigned bool
}

// Outputs 渲染产物的三种形态。
type Outputs struct {
	Document    []byte
	CompactLine string
	ShareURI    string
}

// Result 部署结果。
type Result struct {
	Spec       *protocol.Spec
	Outputs    Outputs
	Deployment *repository.Deployment
}

// Status 汇总服务与部署会话状态。
type Status struct {
	Service    svc.Status
	Deployment *repository.Deployment
}

// Orchestrator 部署编排器。
type Orchestrator struct {
	store     repository.Store
	certs     CertManager
	ctrl      ServiceController
	installer KernelInstaller
	logger    *slog.Logger

	// publicIP 可注入,Reality 分享链接需要公网地址。
	publicIP func(ctx context.Context) (string, error)
}

// New 构建编排器。
func New(store repository.Store, certs CertManager, ctrl ServiceController, installer KernelInstaller, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     store,
		certs:     certs,
		ctrl:      ctrl,
		installer: installer,
		logger:    logger.With("component", "orchestrator"),
		publicIP: func(ctx context.Context) (string, error) {
			return engine.PublicIP(ctx, &http.Client{Timeout: 10 * time.Second})
		},
	}
}

// replacingRegistry 端口注册源包装: 被替换的活跃会话不构成端口冲突，
// 指定同端口重新部署等价于换协议重配。
type replacingRegistry struct {
	inner       repository.DeploymentRepository
	excludePort int
}

func (r replacingRegistry) PortInUse(ctx context.Context, port int) (bool, error) {
	if r.excludePort != 0 && port == r.excludePort {
		return false, nil
	}
	return r.inner.PortInUse(ctx, port)
}

// WithPublicIP 替换公网 IP 探测，测试用。
func (o *Orchestrator) WithPublicIP(fn func(ctx context.Context) (string, error)) *Orchestrator {
	o.publicIP = fn
	return o
}

func step(name string, err error) error {
	return fmt.Errorf("orchestrator: %s: %w", name, err)
}

// Deploy 执行完整部署。证书或校验失败发生在任何落盘与服务操作之前，
// 失败时不会留下半套配置或引用旧配置的运行中服务。
func (o *Orchestrator) Deploy(ctx context.Context, req Request) (*Result, error) {
	registry := replacingRegistry{inner: o.store.Deployments()}
	if active, err := o.store.Deployments().Active(ctx); err == nil {
		registry.excludePort = active.Port
	}
	spec, err := protocol.NewResolver(registry).Resolve(ctx, req.Input)
	if err != nil {
		return nil, step("resolve", err)
	}

	var certRecord *repository.CertificateRecord
	if spec.Mode == protocol.ModeTLS {
		if req.SelfSigned {
			certRecord, err = o.certs.GenerateSelfSigned(ctx, spec.Domain)
		} else {
			certRecord, err = o.certs.Acquire(ctx, spec.Domain, spec.Email)
		}
		if err != nil {
			return nil, step("certificate", err)
		}
	}

	serverAddr := ""
	if spec.Mode == protocol.ModeReality {
		serverAddr, err = o.publicIP(ctx)
		if err != nil {
			return nil, step("public-ip", err)
		}
	}

	rec, err := render.Build(spec, certRecord, serverAddr)
	if err != nil {
		return nil, step("render", err)
	}
	outputs, err := renderAll(rec)
	if err != nil {
		return nil, step("render", err)
	}

	if err := o.installer.EnsureInstalled(ctx); err != nil {
		return nil, step("kernel", err)
	}

	checksum := svc.Checksum(outputs.Document)
	st, err := o.ctrl.Query(ctx)
	if err != nil {
		return nil, step("status", err)
	}
	switch {
	case st.Installed && st.Running && st.ConfigChecksum == checksum:
		o.logger.Info("配置未变化，跳过服务操作", "checksum", checksum[:12])
	case st.Installed:
		if err := o.ctrl.Reconfigure(ctx, outputs.Document); err != nil {
			return nil, step("reconfigure", err)
		}
	default:
		if err := o.ctrl.Install(ctx, outputs.Document); err != nil {
			return nil, step("install", err)
		}
	}

	deployment := &repository.Deployment{
		Protocol:       string(spec.Protocol),
		Mode:           string(spec.Mode),
		Port:           spec.Port,
		Domain:         spec.Domain,
		ConfigChecksum: checksum,
	}
	// 单活跃部署模型: 新部署替换旧会话。
	if err := o.store.Deployments().DeleteAll(ctx); err != nil {
		return nil, step("record", err)
	}
	if err := o.store.Deployments().Save(ctx, deployment); err != nil {
		return nil, step("record", err)
	}

	o.logger.Info("部署完成",
		"protocol", spec.Protocol, "mode", spec.Mode, "port", spec.Port)
	return &Result{Spec: spec, Outputs: outputs, Deployment: deployment}, nil
}

// Share 重新输出活跃部署的客户端配置，不触发任何服务操作。
func (o *Orchestrator) Share(ctx context.Context) (*Outputs, error) {
	deployment, err := o.store.Deployments().Active(ctx)
	if err != nil {
		return nil, step("share", err)
	}
	document, err := os.ReadFile(o.ctrl.ConfigPath())
	if err != nil {
		return nil, step("share", err)
	}

	serverAddr := deployment.Domain
	if deployment.Mode == string(protocol.ModeReality) {
		serverAddr, err = o.publicIP(ctx)
		if err != nil {
			return nil, step("share", err)
		}
	}
	rec, err := render.ParseDocument(document, serverAddr)
	if err != nil {
		return nil, step("share", err)
	}
	if rec.Mode == protocol.ModeTLS && deployment.Domain != "" {
		if cert, err := o.store.Certificates().FindByDomain(ctx, deployment.Domain); err == nil {
			rec.SkipCertVerify = cert.Method == repository.MethodSelfSigned
		}
	}
	outputs, err := renderAll(rec)
	if err != nil {
		return nil, step("share", err)
	}
	return &outputs, nil
}

// Status 汇总服务与会话状态。无活跃部署时 Deployment 为 nil。
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	st, err := o.ctrl.Query(ctx)
	if err != nil {
		return nil, step("status", err)
	}
	deployment, err := o.store.Deployments().Active(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, step("status", err)
	}
	return &Status{Service: st, Deployment: deployment}, nil
}

// Restart 重启服务。
func (o *Orchestrator) Restart(ctx context.Context) error {
	if err := o.ctrl.Restart(ctx); err != nil {
		return step("restart", err)
	}
	return nil
}

// Stop 停止服务。
func (o *Orchestrator) Stop(ctx context.Context) error {
	if err := o.ctrl.Stop(ctx); err != nil {
		return step("stop", err)
	}
	return nil
}

// Logs 返回服务日志。
func (o *Orchestrator) Logs(ctx context.Context, lines int) (string, error) {
	out, err := o.ctrl.Logs(ctx, lines)
	if err != nil {
		return "", step("logs", err)
	}
	return out, nil
}

// Uninstall 逐步拆除全部落地物: 服务与配置、证书文件、内核二进制、
// 状态记录。每一步对缺失宽容，可对任意残留状态重复执行。
func (o *Orchestrator) Uninstall(ctx context.Context) error {
	var errs []error
	if err := o.ctrl.Uninstall(ctx); err != nil {
		errs = append(errs, step("service", err))
	}
	for _, path := range []string{o.certs.CertPath(), o.certs.KeyPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, step("certificate files", err))
		}
	}
	if err := o.installer.Remove(); err != nil {
		errs = append(errs, step("kernel", err))
	}
	if err := o.store.Deployments().DeleteAll(ctx); err != nil {
		errs = append(errs, step("record", err))
	}
	if certs, err := o.store.Certificates().List(ctx); err == nil {
		for _, c := range certs {
			if err := o.store.Certificates().DeleteByDomain(ctx, c.Domain); err != nil {
				errs = append(errs, step("record", err))
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	o.logger.Info("拆除完成")
	return nil
}

// RenewalCheck 执行一轮续期检查，证书文件被更换时重启服务使其生效。
func (o *Orchestrator) RenewalCheck(ctx context.Context, email string) error {
	before := fileStamp(o.certs.CertPath())
	if err := o.certs.RenewalCheck(ctx, email); err != nil {
		return step("renewal", err)
	}
	if fileStamp(o.certs.CertPath()) == before {
		return nil
	}
	st, err := o.ctrl.Query(ctx)
	if err != nil || !st.Installed {
		return nil
	}
	if err := o.ctrl.Restart(ctx); err != nil {
		return step("renewal restart", err)
	}
	o.logger.Info("证书已更换并重启服务")
	return nil
}

func renderAll(rec *render.Intermediate) (Outputs, error) {
	document, err := rec.Document()
	if err != nil {
		return Outputs{}, err
	}
	line, err := rec.CompactLine()
	if err != nil {
		return Outputs{}, err
	}
	uri, err := rec.ShareURI()
	if err != nil {
		return Outputs{}, err
	}
	return Outputs{Document: document, CompactLine: line, ShareURI: uri}, nil
}

// fileStamp 以 mtime+size 标识文件内容版本，文件缺失返回空串。
func fileStamp(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size())
}
