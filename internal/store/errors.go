package store

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrEmailTaken 表示注册邮箱已被占用（含并发注册时撞唯一约束的场景）。
	ErrEmailTaken = errors.New("邮箱已被注册")
)

// isUniqueViolation 识别两种方言的唯一约束冲突：
// - MySQL：1062 ER_DUP_ENTRY
// - SQLite（modernc）：错误文本携带 UNIQUE constraint failed
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
