// Package quota 做计费操作的准入判定：余额优先于档位上限。
package quota

import "cvforge/internal/store"

type Decision int

const (
	Allow Decision = iota
	// CreditsExhausted 表示余额已耗尽（credits 非 NULL 且 <= 0）。
	CreditsExhausted
	// TierLimitReached 表示 free 档累计请求数已达上限。
	TierLimitReached
)

type Enforcer struct {
	freeTierCap int64
}

func NewEnforcer(freeTierCap int) *Enforcer {
	if freeTierCap <= 0 {
		freeTierCap = 50
	}
	return &Enforcer{freeTierCap: int64(freeTierCap)}
}

// Check 的判定顺序固定：先余额后档位。paid 档（不限上限）但余额打空的用户
// 仍然要在余额这一步被拦下，而不是被档位豁免放行。
func (e *Enforcer) Check(u store.User) Decision {
	if u.Credits != nil && *u.Credits <= 0 {
		return CreditsExhausted
	}
	if u.Tier == store.TierFree && u.RequestCount >= e.freeTierCap {
		return TierLimitReached
	}
	return Allow
}
