// 文件路径: internal/repository/types.go
// 模块说明: 这是 internal 模块里的 types 逻辑，声明状态库中的持久化实体。
package repository

import "time"

// CertificateMethod 证书来源。
type CertificateMethod string

const (
	MethodACME       CertificateMethod = "acme"
	MethodSelfSigned CertificateMethod = "self-signed"
)

// CertificateStatus 证书生命周期状态。
type CertificateStatus string

const (
	CertPending CertificateStatus = "pending"
	CertValid   CertificateStatus = "valid"
	CertExpired CertificateStatus = "expired"
	CertFailed  CertificateStatus = "failed"
)

// CertificateRecord 每个域名一条，仅由证书管理器写入。
type CertificateRecord struct {
	ID         int64
	Domain     string
	Method     CertificateMethod
	CertPath   string
	KeyPath    string
	IssuedAt   time.Time
	RenewalDue time.Time // 自签证书为零值，永不进入续期流程
	Status     CertificateStatus
	LastError  string
	UpdatedAt  time.Time
}

// Deployment 记录一次已提交的部署会话结果。端口在活跃部署间唯一。
type Deployment struct {
	ID             int64
	Protocol       string
	Mode           string
	Port           int
	Domain         string // reality 模式为空
	ConfigChecksum string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
