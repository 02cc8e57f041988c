// 文件路径: internal/migrations/runner.go
// 模块说明: 驱动 goose 把内嵌的 SQLite 迁移脚本应用到状态库。
package migrations

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

const dir = "sqlite"

// Up 把状态库 schema 迁移到最新版本。启动时由 bootstrap 调用。
func Up(db *sql.DB) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("migrations: set dialect: %w", err)
	}
	goose.SetBaseFS(SQLite)
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("migrations: apply: %w", err)
	}
	return nil
}
