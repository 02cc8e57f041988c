// 文件路径: internal/repository/sqlite/store.go
// 模块说明: 这是 internal 模块里的 store 逻辑，把 SQLite 实现装配成仓储集合。
package sqlite

import (
	"database/sql"

	"github.com/creamcroissant/mscript/internal/repository"
)

// Store wires SQLite-backed repository implementations.
type Store struct {
	db           *sql.DB
	certificates repository.CertificateRepository
	deployments  repository.DeploymentRepository
}

// NewStore constructs a SQLite-backed repository store.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		certificates: &certificateRepo{db: db},
		deployments:  &deploymentRepo{db: db},
	}
}

func (s *Store) Certificates() repository.CertificateRepository {
	return s.certificates
}

func (s *Store) Deployments() repository.DeploymentRepository {
	return s.deployments
}
