package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
)

//go:embed schema_sqlite.sql
var sqliteSchemaFS embed.FS

// EnsureSQLiteSchema 在首次启动时建表；schema 内全部使用 IF NOT EXISTS，重复执行安全。
func EnsureSQLiteSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("db 为空")
	}

	b, err := sqliteSchemaFS.ReadFile("schema_sqlite.sql")
	if err != nil {
		return fmt.Errorf("读取 schema_sqlite.sql 失败: %w", err)
	}
	for _, stmt := range splitSQLStatements(string(b)) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("初始化 SQLite schema 失败: %w", err)
		}
	}
	return nil
}
