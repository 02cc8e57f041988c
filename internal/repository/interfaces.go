// 文件路径: internal/repository/interfaces.go
// 模块说明: 这是 internal 模块里的 interfaces 逻辑，声明状态库的仓储接口。
package repository

import "context"

// Store 暴露每个聚合根对应的仓储接口。
type Store interface {
	Certificates() CertificateRepository
	Deployments() DeploymentRepository
}

// CertificateRepository 定义证书记录的数据访问方法。每个域名至多一条记录。
type CertificateRepository interface {
	FindByDomain(ctx context.Context, domain string) (*CertificateRecord, error)
	Save(ctx context.Context, record *CertificateRecord) error
	List(ctx context.Context) ([]*CertificateRecord, error)
	DeleteByDomain(ctx context.Context, domain string) error
}

// DeploymentRepository 定义活跃部署会话的数据访问方法。
type DeploymentRepository interface {
	FindByPort(ctx context.Context, port int) (*Deployment, error)
	Active(ctx context.Context) (*Deployment, error)
	PortInUse(ctx context.Context, port int) (bool, error)
	Save(ctx context.Context, deployment *Deployment) error
	DeleteAll(ctx context.Context) error
}
