// 文件路径: internal/repository/sqlite/deployment.go
// 模块说明: 这是 internal 模块里的 deployment 逻辑，记录已提交的部署会话。
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/creamcroissant/mscript/internal/repository"
)

// deploymentRepo stores committed deployment sessions.
type deploymentRepo struct {
	db *sql.DB
}

func (r *deploymentRepo) FindByPort(ctx context.Context, port int) (*repository.Deployment, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("deployment 仓储未配置")
	}
	const query = `SELECT id, protocol, mode, port, domain, config_checksum, created_at, updated_at
                   FROM deployments WHERE port = ? LIMIT 1`
	return scanDeployment(r.db.QueryRowContext(ctx, query, port))
}

// Active 返回最近提交的部署(单机单配置，最多一条有效)。
func (r *deploymentRepo) Active(ctx context.Context) (*repository.Deployment, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("deployment 仓储未配置")
	}
	const query = `SELECT id, protocol, mode, port, domain, config_checksum, created_at, updated_at
                   FROM deployments ORDER BY updated_at DESC, id DESC LIMIT 1`
	return scanDeployment(r.db.QueryRowContext(ctx, query))
}

func (r *deploymentRepo) PortInUse(ctx context.Context, port int) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("deployment 仓储未配置")
	}
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM deployments WHERE port = ?`, port).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *deploymentRepo) Save(ctx context.Context, deployment *repository.Deployment) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("deployment 仓储未配置")
	}
	if deployment == nil || deployment.Port == 0 {
		return fmt.Errorf("deployment 记录缺少端口")
	}
	now := time.Now()
	if deployment.CreatedAt.IsZero() {
		deployment.CreatedAt = now
	}
	deployment.UpdatedAt = now
	const stmt = `INSERT INTO deployments(protocol, mode, port, domain, config_checksum, created_at, updated_at)
                  VALUES(?, ?, ?, ?, ?, ?, ?)
                  ON CONFLICT(port) DO UPDATE SET
                      protocol = excluded.protocol,
                      mode = excluded.mode,
                      domain = excluded.domain,
                      config_checksum = excluded.config_checksum,
                      updated_at = excluded.updated_at`
	res, err := r.db.ExecContext(
		ctx,
		stmt,
		deployment.Protocol,
		deployment.Mode,
		deployment.Port,
		deployment.Domain,
		deployment.ConfigChecksum,
		deployment.CreatedAt.Unix(),
		deployment.UpdatedAt.Unix(),
	)
	if err != nil {
		return err
	}
	if deployment.ID == 0 {
		if id, err := res.LastInsertId(); err == nil {
			deployment.ID = id
		}
	}
	return nil
}

func (r *deploymentRepo) DeleteAll(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("deployment 仓储未配置")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM deployments`)
	return err
}

func scanDeployment(row rowScanner) (*repository.Deployment, error) {
	var (
		dep       repository.Deployment
		domain    sql.NullString
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&dep.ID,
		&dep.Protocol,
		&dep.Mode,
		&dep.Port,
		&domain,
		&dep.ConfigChecksum,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	dep.Domain = domain.String
	dep.CreatedAt = timeOrZero(createdAt)
	dep.UpdatedAt = timeOrZero(updatedAt)
	return &dep, nil
}
