// Package store 提供数据库读写的封装与基础约束，保证业务层只处理领域语义而不是 SQL 细节。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB) *Store {
	return &Store{
		db:      db,
		dialect: DialectSQLite,
	}
}

func (s *Store) SetDialect(d Dialect) {
	if strings.TrimSpace(string(d)) == "" {
		return
	}
	s.dialect = d
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("统计用户失败: %w", err)
	}
	return n, nil
}

// CreateUser 注册新用户；邮箱按原样保存并精确匹配（大小写敏感）。
// 唯一约束冲突（含并发注册竞态）统一折叠为 ErrEmailTaken。
func (s *Store) CreateUser(ctx context.Context, email string, passwordHash []byte, tier string, credits *int64) (int64, error) {
	if strings.TrimSpace(email) == "" {
		return 0, fmt.Errorf("邮箱不能为空")
	}
	if tier == "" {
		tier = TierFree
	}
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO users(email, password_hash, status, tier, credits, created_at, updated_at)
	VALUES(?, ?, 1, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, email, passwordHash, tier, credits)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailTaken
		}
		return 0, fmt.Errorf("创建用户失败: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("获取用户 id 失败: %w", err)
	}
	return id, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
	SELECT
	  id, email, password_hash, status, tier, credits, request_count, total_requests, created_at, updated_at
	FROM users
	WHERE email=?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Status, &u.Tier, &u.Credits, &u.RequestCount, &u.TotalRequests, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, sql.ErrNoRows
		}
		return User{}, fmt.Errorf("查询用户失败: %w", err)
	}
	return u, nil
}

func (s *Store) SetUserStatus(ctx context.Context, email string, status int) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE users
SET status=?, updated_at=CURRENT_TIMESTAMP
WHERE email=?
`, status, email)
	if err != nil {
		return fmt.Errorf("更新用户状态失败: %w", err)
	}
	return nil
}

func (s *Store) SetUserTier(ctx context.Context, email string, tier string) error {
	if tier != TierFree && tier != TierPaid {
		return fmt.Errorf("不支持的 tier：%s", tier)
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE users
SET tier=?, updated_at=CURRENT_TIMESTAMP
WHERE email=?
`, tier, email)
	if err != nil {
		return fmt.Errorf("更新用户档位失败: %w", err)
	}
	return nil
}

// SetUserCredits 直接覆盖余额；credits 为 nil 表示改为不限量。
// request_count 不随充值重置（free 档的累计上限独立于余额）。
func (s *Store) SetUserCredits(ctx context.Context, email string, credits *int64) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE users
SET credits=?, updated_at=CURRENT_TIMESTAMP
WHERE email=?
`, credits, email)
	if err != nil {
		return fmt.Errorf("更新用户余额失败: %w", err)
	}
	return nil
}
