// Package limits 提供单实例的按身份固定窗口限流。窗口状态只存在于进程内存，
// 多实例部署需要外部共享计数器，这里不做跨实例保证。
package limits

import (
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// RateLimiter 按 key（已鉴权用户的邮箱，未鉴权时退化为来源 IP）做固定窗口计数。
// 每个生成端点各持有一个实例，预算互相独立。
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*window

	now func() time.Time
}

func NewRateLimiter(limit int, windowDur time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if windowDur <= 0 {
		windowDur = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  windowDur,
		entries: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow 在同一把锁内完成“判定 + 计数”，并发请求不会都观察到“未超限”而双双放行。
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.entries[key]
	if w == nil || now.Sub(w.start) >= l.window {
		l.entries[key] = &window{start: now, count: 1}
		l.gcLocked(now)
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// gcLocked 顺手清掉已过期的窗口，避免长期运行时 key 集合无界增长。
func (l *RateLimiter) gcLocked(now time.Time) {
	if len(l.entries) < 4096 {
		return
	}
	for k, w := range l.entries {
		if now.Sub(w.start) >= l.window {
			delete(l.entries, k)
		}
	}
}
