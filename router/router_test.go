package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"cvforge/internal/auth"
	"cvforge/internal/gen"
	"cvforge/internal/limits"
	"cvforge/internal/quota"
	"cvforge/internal/store"
)

// 每个特征一份结构合法的应答，按 system prompt 选择。
const (
	fakeResumeJSON   = `{"score":82,"strengths":["扎实的后端经验"],"weaknesses":["缺少量化数据"],"suggestions":["补充可度量的结果"]}`
	fakeBulletJSON   = `{"original":"did stuff","enhanced":"Delivered stuff","impact_version":"Delivered stuff across three teams"}`
	fakeLinkedInJSON = `{"hook":"一个问题","body":"六行正文","cta":"欢迎留言讨论"}`
)

// fakeGen 顶替真实上游：按预置内容/错误应答，并统计被调用次数。
type fakeGen struct {
	content string
	err     error
	calls   int
}

func (f *fakeGen) Generate(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.content != "" {
		return []byte(f.content), nil
	}
	switch {
	case strings.Contains(systemPrompt, "recruiter"):
		return []byte(fakeResumeJSON), nil
	case strings.Contains(systemPrompt, "resume writer"):
		return []byte(fakeBulletJSON), nil
	default:
		return []byte(fakeLinkedInJSON), nil
	}
}

type testEnv struct {
	st     *store.Store
	tokens *auth.TokenService
	engine *gin.Engine
}

func newTestEnv(t *testing.T, g gen.Generator, perMinute int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	path := filepath.Join(dir, "cvforge.db") + "?_busy_timeout=1000"
	db, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.EnsureSQLiteSchema(db); err != nil {
		t.Fatalf("EnsureSQLiteSchema: %v", err)
	}

	st := store.New(db)
	st.SetDialect(store.DialectSQLite)
	tokens := auth.NewTokenService("test-secret", time.Hour)

	engine := gin.New()
	SetRouter(engine, Options{
		Store:           st,
		Tokens:          tokens,
		Quota:           quota.NewEnforcer(50),
		Gen:             gen.NewService(g),
		ResumeLimiter:   limits.NewRateLimiter(perMinute, time.Minute),
		ProjectLimiter:  limits.NewRateLimiter(perMinute, time.Minute),
		LinkedInLimiter: limits.NewRateLimiter(perMinute, time.Minute),
	})

	return &testEnv{st: st, tokens: tokens, engine: engine}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// register 通过公开接口注册用户并返回可用 token。
func (e *testEnv) register(t *testing.T, email, password string) string {
	t.Helper()

	w := e.do(t, http.MethodPost, "/auth/register", "", gin.H{"email": email, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("register status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decodeJSON(t, w, &resp)
	if resp.AccessToken == "" || resp.TokenType != "bearer" {
		t.Fatalf("unexpected token response: %+v", resp)
	}
	return resp.AccessToken
}
