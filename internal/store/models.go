// Package store 定义数据库层的核心数据结构，避免在 handler 中散落 SQL 字段细节。
package store

import "time"

const (
	TierFree = "free"
	TierPaid = "paid"
)

const (
	FeatureResume   = "resume"
	FeatureProject  = "project"
	FeatureLinkedIn = "linkedin"
)

type User struct {
	ID           int64
	Email        string
	PasswordHash []byte
	Status       int
	Tier         string
	// Credits 为 nil 表示不限量；非 nil 时作为可消耗余额参与准入判定。
	Credits       *int64
	RequestCount  int64
	TotalRequests int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active 表示账号可用；status 非 1 的用户在 resolve 阶段一律按未登录处理。
func (u User) Active() bool {
	return u.Status == 1
}

// HistoryRecord 是一次已完成计费操作的不可变审计条目；本服务只追加，不修改不删除。
type HistoryRecord struct {
	ID          int64
	UserEmail   string
	FeatureType string
	InputText   string
	OutputText  string
	CreatedAt   time.Time
}
