// Package store 的用量台账：每次完成的生成调用追加一条不可变历史并原子更新用量计数。
package store

import (
	"context"
	"errors"
	"fmt"
)

type RecordUsageInput struct {
	UserEmail   string
	FeatureType string
	InputText   string
	OutputText  string
}

// RecordUsage 在单个事务里完成：追加历史行、request_count/total_requests 各 +1、
// credits 非 NULL 时扣减 1。生成失败的请求不会走到这里，因此失败调用不产生任何台账痕迹。
//
// 注意：准入阶段的 credits>0 检查与这里的扣减不在同一临界区（中间隔着生成调用），
// 同一用户的并发请求可能都通过检查后各自扣减，把余额打成负数。这是沿用的已知行为，
// 改为“预扣+失败返还”会改变并发负载下的可观测结果，不在此处悄悄修正。
func (s *Store) RecordUsage(ctx context.Context, in RecordUsageInput) (int64, error) {
	if in.UserEmail == "" {
		return 0, errors.New("user_email 不能为空")
	}
	switch in.FeatureType {
	case FeatureResume, FeatureProject, FeatureLinkedIn:
	default:
		return 0, fmt.Errorf("不支持的 feature_type：%s", in.FeatureType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("开始台账事务: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO ai_history(user_email, feature_type, input_text, output_text, created_at)
	VALUES(?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, in.UserEmail, in.FeatureType, in.InputText, in.OutputText)
	if err != nil {
		return 0, fmt.Errorf("写入 ai_history 失败: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("获取 ai_history id 失败: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
	UPDATE users
	SET request_count = request_count + 1,
	    total_requests = total_requests + 1,
	    credits = CASE WHEN credits IS NULL THEN NULL ELSE credits - 1 END,
	    updated_at = CURRENT_TIMESTAMP
	WHERE email = ?
	`, in.UserEmail); err != nil {
		return 0, fmt.Errorf("更新用量计数失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("提交台账事务: %w", err)
	}
	return id, nil
}

// ListHistoryByUser 返回指定用户的历史，按创建时间倒序；同秒落库时以 id 倒序兜底保持稳定顺序。
func (s *Store) ListHistoryByUser(ctx context.Context, email string) ([]HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, user_email, feature_type, input_text, output_text, created_at
	FROM ai_history
	WHERE user_email = ?
	ORDER BY created_at DESC, id DESC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("查询历史失败: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		if err := rows.Scan(&r.ID, &r.UserEmail, &r.FeatureType, &r.InputText, &r.OutputText, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("读取历史行失败: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历历史失败: %w", err)
	}
	return out, nil
}
