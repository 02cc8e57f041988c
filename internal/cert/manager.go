// Package cert 驱动证书获取状态机:ACME 标准签发或本地自签，
// 并跟踪续期窗口。记录仅由本包写入。
package cert

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/creamcroissant/mscript/internal/repository"
	"github.com/creamcroissant/mscript/internal/support/fsutil"
	"github.com/creamcroissant/mscript/internal/support/retry"
)

const (
	certFileName = "server.crt"
	keyFileName  = "server.key"

	// revalidation 结果的进程内缓存时长，避免同一次会话反复读 PEM。
	revalidateTTL = time.Minute
)

// Options 配置证书管理器。
type Options struct {
	ConfigDir       string
	ObtainTimeout   time.Duration // 整体签发超时,默认 3 分钟
	RenewalWindow   time.Duration // 剩余有效期低于该值时续期,默认 30 天
	RetryAttempts   int           // 终态失败前的总尝试次数,默认 2
	SelfSignedYears int
}

// Manager owns certificate records and the issuance state machine.
type Manager struct {
	records repository.CertificateRepository
	issuer  Issuer
	opts    Options
	logger  *slog.Logger
	cache   *gocache.Cache
}

// NewManager 构建证书管理器。issuer 为 nil 时使用 lego 标准签发。
func NewManager(records repository.CertificateRepository, issuer Issuer, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if issuer == nil {
		issuer = &LegoIssuer{}
	}
	if opts.ObtainTimeout <= 0 {
		opts.ObtainTimeout = 3 * time.Minute
	}
	if opts.RenewalWindow <= 0 {
		opts.RenewalWindow = 30 * 24 * time.Hour
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 2
	}
	if opts.SelfSignedYears <= 0 {
		opts.SelfSignedYears = 1
	}
	return &Manager{
		records: records,
		issuer:  issuer,
		opts:    opts,
		logger:  logger,
		cache:   gocache.New(revalidateTTL, 2*revalidateTTL),
	}
}

// CertPath 返回证书落盘路径。
func (m *Manager) CertPath() string { return filepath.Join(m.opts.ConfigDir, certFileName) }

// KeyPath 返回私钥落盘路径。
func (m *Manager) KeyPath() string { return filepath.Join(m.opts.ConfigDir, keyFileName) }

// Acquire 为域名取得有效证书。已有未到期证书时是幂等空操作(不发起网络请求)。
func (m *Manager) Acquire(ctx context.Context, domain, email string) (*repository.CertificateRecord, error) {
	if existing, ok := m.revalidate(ctx, domain); ok {
		return existing, nil
	}

	pending := &repository.CertificateRecord{
		Domain:   domain,
		Method:   repository.MethodACME,
		CertPath: m.CertPath(),
		KeyPath:  m.KeyPath(),
		Status:   repository.CertPending,
	}
	if err := m.records.Save(ctx, pending); err != nil {
		return nil, fmt.Errorf("cert: save pending record: %w", err)
	}

	obtainCtx, cancel := context.WithTimeout(ctx, m.opts.ObtainTimeout)
	defer cancel()

	var certPEM, keyPEM []byte
	// CA 客户端自带挑战轮询退避;这里只在其耗尽后用全新会话多试一次。
	err := retry.Do(obtainCtx, retry.Config{
		Enabled:         true,
		MaxRetries:      m.opts.RetryAttempts - 1,
		InitialInterval: 2 * time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
		Retryable: func(err error) bool {
			// 频率限制重试只会雪上加霜。
			return Classify(err) != CauseRateLimit
		},
	}, func(context.Context) error {
		var obtainErr error
		certPEM, keyPEM, obtainErr = m.issuer.Obtain(domain, email)
		return obtainErr
	})
	if err != nil {
		cause := Classify(err)
		pending.Status = repository.CertFailed
		pending.LastError = err.Error()
		if saveErr := m.records.Save(ctx, pending); saveErr != nil {
			m.logger.Error("save failed cert record", "domain", domain, "error", saveErr)
		}
		m.logger.Error("certificate acquisition failed", "domain", domain, "cause", string(cause), "error", err)
		return nil, &AcquisitionError{Domain: domain, Cause: cause, Err: err}
	}

	record, err := m.persist(ctx, domain, repository.MethodACME, certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	m.logger.Info("certificate acquired", "domain", domain, "renewal_due", record.RenewalDue)
	return record, nil
}

// GenerateSelfSigned 为域名或 IP 生成自签证书并覆盖既有产物。无网络依赖。
func (m *Manager) GenerateSelfSigned(ctx context.Context, identity string) (*repository.CertificateRecord, error) {
	certPEM, keyPEM, err := SelfSign(identity, m.opts.SelfSignedYears)
	if err != nil {
		return nil, fmt.Errorf("cert: self-sign %s: %w", identity, err)
	}
	record, err := m.persist(ctx, identity, repository.MethodSelfSigned, certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	m.logger.Info("self-signed certificate generated", "identity", identity, "cert", record.CertPath)
	return record, nil
}

// RenewalCheck 扫描全部记录，仅对剩余有效期低于续期窗口的 ACME 证书重新签发。
// 自签证书除非文件丢失/损坏否则不动。
func (m *Manager) RenewalCheck(ctx context.Context, email string) error {
	records, err := m.records.List(ctx)
	if err != nil {
		return fmt.Errorf("cert: list records: %w", err)
	}

	for _, rec := range records {
		switch rec.Method {
		case repository.MethodSelfSigned:
			if _, err := parseLeaf(rec.CertPath); err != nil {
				m.logger.Warn("self-signed artifact missing or corrupt, regenerating", "identity", rec.Domain)
				if _, err := m.GenerateSelfSigned(ctx, rec.Domain); err != nil {
					return err
				}
			}
		case repository.MethodACME:
			if rec.Status != repository.CertValid {
				continue
			}
			if time.Now().Before(rec.RenewalDue) {
				continue
			}
			m.logger.Info("certificate entering renewal window", "domain", rec.Domain)
			m.cache.Delete(rec.Domain)
			if _, err := m.Acquire(ctx, rec.Domain, email); err != nil {
				return err
			}
		}
	}
	return nil
}

// revalidate 判断既有记录是否仍然可用:记录有效、文件可解析、且(对 ACME)
// 未进入续期窗口。结果短暂缓存。
func (m *Manager) revalidate(ctx context.Context, domain string) (*repository.CertificateRecord, bool) {
	if cached, found := m.cache.Get(domain); found {
		return cached.(*repository.CertificateRecord), true
	}

	rec, err := m.records.FindByDomain(ctx, domain)
	if err != nil {
		return nil, false
	}
	if rec.Status != repository.CertValid {
		return nil, false
	}

	leaf, err := parseLeaf(rec.CertPath)
	if err != nil {
		return nil, false
	}
	if _, err := os.Stat(rec.KeyPath); err != nil {
		return nil, false
	}

	if rec.Method == repository.MethodACME {
		if time.Until(leaf.NotAfter) < m.opts.RenewalWindow {
			rec.Status = repository.CertExpired
			_ = m.records.Save(ctx, rec)
			return nil, false
		}
	}

	m.cache.Set(domain, rec, gocache.DefaultExpiration)
	return rec, true
}

// persist 原子落盘证书与私钥并写入有效记录。
func (m *Manager) persist(ctx context.Context, domain string, method repository.CertificateMethod, certPEM, keyPEM []byte) (*repository.CertificateRecord, error) {
	if err := fsutil.WriteFileAtomic(m.CertPath(), certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("cert: write certificate: %w", err)
	}
	if err := fsutil.WriteFileAtomic(m.KeyPath(), keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("cert: write key: %w", err)
	}

	leaf, err := parsePEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("cert: parse issued certificate: %w", err)
	}

	record := &repository.CertificateRecord{
		Domain:   domain,
		Method:   method,
		CertPath: m.CertPath(),
		KeyPath:  m.KeyPath(),
		IssuedAt: leaf.NotBefore,
		Status:   repository.CertValid,
	}
	if method == repository.MethodACME {
		record.RenewalDue = leaf.NotAfter.Add(-m.opts.RenewalWindow)
	}
	if err := m.records.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("cert: save record: %w", err)
	}

	m.cache.Set(domain, record, gocache.DefaultExpiration)
	return record, nil
}

func parseLeaf(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parsePEM(data)
}

func parsePEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no certificate block in pem data")
	}
	return x509.ParseCertificate(block.Bytes)
}
