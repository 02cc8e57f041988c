// 文件路径: internal/job/cert_renewal.go
// 模块说明: 证书续期定时任务，每日检查剩余有效期并在窗口内重新签发。
package job

import (
	"context"
	"fmt"
	"log/slog"
)

// RenewalChecker 续期检查入口，由编排器实现。
type RenewalChecker interface {
	RenewalCheck(ctx context.Context, email string) error
}

// CertRenewalJob 把续期检查包装为可调度任务。
type CertRenewalJob struct {
	Checker RenewalChecker
	Email   string
	Logger  *slog.Logger
}

// NewCertRenewalJob 构建续期任务。email 用于 ACME 账户，可为空(只查自签)。
func NewCertRenewalJob(checker RenewalChecker, email string, logger *slog.Logger) *CertRenewalJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CertRenewalJob{Checker: checker, Email: email, Logger: logger}
}

func (j *CertRenewalJob) Name() string {
	return "cert.renewal"
}

func (j *CertRenewalJob) Run(ctx context.Context) error {
	if j == nil || j.Checker == nil {
		return fmt.Errorf("cert renewal job dependencies not configured / 证书续期任务依赖未配置")
	}
	if err := j.Checker.RenewalCheck(ctx, j.Email); err != nil {
		return fmt.Errorf("cert renewal job: %w", err)
	}
	j.Logger.Debug("renewal check completed")
	return nil
}
