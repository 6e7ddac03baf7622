// Package auth 的密码部分：单向加盐散列，避免在 handler 中重复实现安全细节。
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) ([]byte, error) {
	if len(password) < 8 {
		return nil, fmt.Errorf("密码长度至少 8 位")
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
