// 文件路径: internal/repository/sqlite/certificate.go
// 模块说明: 这是 internal 模块里的 certificate 逻辑，按域名持久化证书记录。
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creamcroissant/mscript/internal/repository"
)

// certificateRepo stores certificate records keyed by domain.
type certificateRepo struct {
	db *sql.DB
}

func (r *certificateRepo) FindByDomain(ctx context.Context, domain string) (*repository.CertificateRecord, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("certificate 仓储未配置")
	}
	trimmed := strings.TrimSpace(strings.ToLower(domain))
	if trimmed == "" {
		return nil, repository.ErrNotFound
	}
	const query = `SELECT id, domain, method, cert_path, key_path, issued_at, renewal_due, status, last_error, updated_at
                   FROM certificates WHERE domain = ? LIMIT 1`
	return scanCertificate(r.db.QueryRowContext(ctx, query, trimmed))
}

func (r *certificateRepo) Save(ctx context.Context, record *repository.CertificateRecord) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("certificate 仓储未配置")
	}
	if record == nil || strings.TrimSpace(record.Domain) == "" {
		return fmt.Errorf("certificate 记录缺少域名")
	}
	record.Domain = strings.TrimSpace(strings.ToLower(record.Domain))
	record.UpdatedAt = time.Now()
	const stmt = `INSERT INTO certificates(domain, method, cert_path, key_path, issued_at, renewal_due, status, last_error, updated_at)
                  VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
                  ON CONFLICT(domain) DO UPDATE SET
                      method = excluded.method,
                      cert_path = excluded.cert_path,
                      key_path = excluded.key_path,
                      issued_at = excluded.issued_at,
                      renewal_due = excluded.renewal_due,
                      status = excluded.status,
                      last_error = excluded.last_error,
                      updated_at = excluded.updated_at`
	res, err := r.db.ExecContext(
		ctx,
		stmt,
		record.Domain,
		string(record.Method),
		record.CertPath,
		record.KeyPath,
		unixOrZero(record.IssuedAt),
		unixOrZero(record.RenewalDue),
		string(record.Status),
		record.LastError,
		record.UpdatedAt.Unix(),
	)
	if err != nil {
		return err
	}
	if record.ID == 0 {
		if id, err := res.LastInsertId(); err == nil {
			record.ID = id
		}
	}
	return nil
}

func (r *certificateRepo) List(ctx context.Context) ([]*repository.CertificateRecord, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("certificate 仓储未配置")
	}
	const query = `SELECT id, domain, method, cert_path, key_path, issued_at, renewal_due, status, last_error, updated_at
                   FROM certificates ORDER BY domain`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*repository.CertificateRecord
	for rows.Next() {
		rec, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *certificateRepo) DeleteByDomain(ctx context.Context, domain string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("certificate 仓储未配置")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM certificates WHERE domain = ?`, strings.TrimSpace(strings.ToLower(domain)))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*repository.CertificateRecord, error) {
	var (
		rec        repository.CertificateRecord
		method     string
		status     string
		issuedAt   int64
		renewalDue int64
		updatedAt  int64
		lastError  sql.NullString
	)
	err := row.Scan(
		&rec.ID,
		&rec.Domain,
		&method,
		&rec.CertPath,
		&rec.KeyPath,
		&issuedAt,
		&renewalDue,
		&status,
		&lastError,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Method = repository.CertificateMethod(method)
	rec.Status = repository.CertificateStatus(status)
	rec.IssuedAt = timeOrZero(issuedAt)
	rec.RenewalDue = timeOrZero(renewalDue)
	rec.UpdatedAt = timeOrZero(updatedAt)
	rec.LastError = lastError.String
	return &rec, nil
}
