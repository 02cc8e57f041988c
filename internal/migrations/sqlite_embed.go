// 文件路径: internal/migrations/sqlite_embed.go
// 模块说明: 内嵌迁移脚本，二进制自带 schema 无需外部文件。
package migrations

import "embed"

// SQLite 内嵌全部 SQLite 迁移脚本。
//
//go:embed sqlite/*.sql
var SQLite embed.FS
