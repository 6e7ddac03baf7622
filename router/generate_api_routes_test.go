package router

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"cvforge/internal/store"
	"cvforge/internal/upstream"
)

func (e *testEnv) mustGetUser(t *testing.T, email string) store.User {
	t.Helper()
	u, err := e.st.GetUserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("GetUserByEmail(%q): %v", email, err)
	}
	return u
}

// seedUsage 直接走台账接口把 request_count 顶到指定值，避免测试里刷几十次 HTTP。
func (e *testEnv) seedUsage(t *testing.T, email string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := e.st.RecordUsage(context.Background(), store.RecordUsageInput{
			UserEmail:   email,
			FeatureType: store.FeatureResume,
			InputText:   "seed",
			OutputText:  "seed",
		}); err != nil {
			t.Fatalf("RecordUsage seed #%d: %v", i, err)
		}
	}
}

func TestResumeAnalyzeSuccess(t *testing.T) {
	fake := &fakeGen{}
	env := newTestEnv(t, fake, 5)
	token := env.register(t, "r@example.com", "password123")

	credits := int64(3)
	if err := env.st.SetUserCredits(context.Background(), "r@example.com", &credits); err != nil {
		t.Fatalf("SetUserCredits: %v", err)
	}

	w := env.do(t, http.MethodPost, "/resume/analyze", token, gin.H{"resume_text": "三年 Go 后端经验"})
	if w.Code != http.StatusOK {
		t.Fatalf("analyze status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Score       float64  `json:"score"`
		Strengths   []string `json:"strengths"`
		Suggestions []string `json:"suggestions"`
	}
	decodeJSON(t, w, &resp)
	if resp.Score != 82 || len(resp.Strengths) != 1 || len(resp.Suggestions) != 1 {
		t.Fatalf("unexpected analysis: %+v", resp)
	}

	u := env.mustGetUser(t, "r@example.com")
	if u.Credits == nil || *u.Credits != 2 {
		t.Fatalf("expected credits=2, got %v", u.Credits)
	}
	if u.RequestCount != 1 || u.TotalRequests != 1 {
		t.Fatalf("expected counters 1/1, got %d/%d", u.RequestCount, u.TotalRequests)
	}

	hw := env.do(t, http.MethodGet, "/history/", token, nil)
	if hw.Code != http.StatusOK {
		t.Fatalf("history status=%d", hw.Code)
	}
	var records []struct {
		FeatureType string `json:"feature_type"`
		InputText   string `json:"input_text"`
		OutputText  string `json:"output_text"`
	}
	decodeJSON(t, hw, &records)
	if len(records) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(records))
	}
	if records[0].FeatureType != store.FeatureResume || records[0].InputText != "三年 Go 后端经验" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
	if records[0].OutputText != fakeResumeJSON {
		t.Fatalf("output_text should keep the raw payload, got %q", records[0].OutputText)
	}
}

func TestBulletEnhanceSuccess(t *testing.T) {
	fake := &fakeGen{}
	env := newTestEnv(t, fake, 5)
	token := env.register(t, "b@example.com", "password123")

	w := env.do(t, http.MethodPost, "/projects/enhance", token, gin.H{"bullet": "did stuff"})
	if w.Code != http.StatusOK {
		t.Fatalf("enhance status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Enhanced      string `json:"enhanced"`
		ImpactVersion string `json:"impact_version"`
	}
	decodeJSON(t, w, &resp)
	if resp.Enhanced == "" || resp.ImpactVersion == "" {
		t.Fatalf("unexpected enhancement: %+v", resp)
	}

	// credits 为 NULL（不限量）时成功调用不产生余额变化，只动计数。
	u := env.mustGetUser(t, "b@example.com")
	if u.Credits != nil {
		t.Fatalf("expected credits to stay NULL, got %d", *u.Credits)
	}
	if u.RequestCount != 1 {
		t.Fatalf("expected request_count=1, got %d", u.RequestCount)
	}
}

func TestLinkedInGenerateRecordsStructuredInput(t *testing.T) {
	fake := &fakeGen{}
	env := newTestEnv(t, fake, 5)
	token := env.register(t, "l@example.com", "password123")

	w := env.do(t, http.MethodPost, "/linkedin/generate", token, gin.H{"topic": "转型做平台工程", "tone": "storytelling"})
	if w.Code != http.StatusOK {
		t.Fatalf("generate status=%d body=%s", w.Code, w.Body.String())
	}

	hw := env.do(t, http.MethodGet, "/history/", token, nil)
	var records []struct {
		FeatureType string `json:"feature_type"`
		InputText   string `json:"input_text"`
	}
	decodeJSON(t, hw, &records)
	if len(records) != 1 || records[0].FeatureType != store.FeatureLinkedIn {
		t.Fatalf("unexpected history: %+v", records)
	}
	var in struct {
		Topic string `json:"topic"`
		Tone  string `json:"tone"`
	}
	if err := json.Unmarshal([]byte(records[0].InputText), &in); err != nil {
		t.Fatalf("input_text should be JSON, got %q: %v", records[0].InputText, err)
	}
	if in.Topic != "转型做平台工程" || in.Tone != "storytelling" {
		t.Fatalf("unexpected recorded input: %+v", in)
	}
}

func TestCreditsExhaustedBlocksBeforeUpstream(t *testing.T) {
	fake := &fakeGen{}
	env := newTestEnv(t, fake, 5)
	token := env.register(t, "c@example.com", "password123")

	credits := int64(1)
	if err := env.st.SetUserCredits(context.Background(), "c@example.com", &credits); err != nil {
		t.Fatalf("SetUserCredits: %v", err)
	}

	w := env.do(t, http.MethodPost, "/resume/analyze", token, gin.H{"resume_text": "last one"})
	if w.Code != http.StatusOK {
		t.Fatalf("first call status=%d body=%s", w.Code, w.Body.String())
	}
	if fake.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", fake.calls)
	}

	// 余额归零后必须在生成调用之前被挡下。
	w = env.do(t, http.MethodPost, "/resume/analyze", token, gin.H{"resume_text": "one more"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", w.Code, w.Body.String())
	}
	if fake.calls != 1 {
		t.Fatalf("blocked request must not reach upstream, calls=%d", fake.calls)
	}
	u := env.mustGetUser(t, "c@example.com")
	if u.Credits == nil || *u.Credits != 0 || u.RequestCount != 1 {
		t.Fatalf("blocked request must not touch counters: credits=%v request_count=%d", u.Credits, u.RequestCount)
	}
}

func TestFreeTierCap(t *testing.T) {
	fake := &fakeGen{}
	env := newTestEnv(t, fake, 1000)
	token := env.register(t, "f@example.com", "password123")
	env.seedUsage(t, "f@example.com", 49)

	// 第 50 次还在上限内。
	w := env.do(t, http.MethodPost, "/resume/analyze", token, gin.H{"resume_text": "第 50 次"})
	if w.Code != http.StatusOK {
		t.Fatalf("50th call status=%d body=%s", w.Code, w.Body.String())
	}

	// 第 51 次触达 free 档上限，消息需与限流可区分，计数不再移动。
	w = env.do(t, http.MethodPost, "/resume/analyze", token, gin.H{"resume_text": "第 51 次"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("51st call: expected 429, got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "free") {
		t.Fatalf("tier rejection should mention the tier, got %s", w.Body.String())
	}
	if fake.calls != 1 {
		t.Fatalf("capped request must not reach upstream, calls=%d", fake.calls)
	}
	u := env.mustGetUser(t, "f@example.com")
	if u.RequestCount != 50 || u.TotalRequests != 50 {
		t.Fatalf("expected counters 50/50, got %d/%d", u.RequestCount, u.TotalRequests)
	}
}

func TestPaidTierBypassesCap(t *testing.T) {
	fake := &fakeGen{}
	env := newTestEnv(t, fake, 1000)
	token := env.register(t, "p@example.com", "password123")
	env.seedUsage(t, "p@example.com", 50)

	if err := env.st.SetUserTier(context.Background(), "p@example.com", store.TierPaid); err != nil {
		t.Fatalf("SetUserTier: %v", err)
	}
	w := env.do(t, http.MethodPost, "/resume/analyze", token, gin.H{"resume_text": "付费档"})
	if w.Code != http.StatusOK {
		t.Fatalf("paid user status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestRateLimitPerEndpoint(t *testing.T) {
	fake := &fakeGen{}
	env := newTestEnv(t, fake, 5)
	token := env.register(t, "rl@example.com", "password123")

	for i := 0; i < 5; i++ {
		w := env.do(t, http.MethodPost, "/resume/analyze", token, gin.H{"resume_text": "call"})
		if w.Code != http.StatusOK {
			t.Fatalf("call #%d status=%d body=%s", i+1, w.Code, w.Body.String())
		}
	}

	w := env.do(t, http.MethodPost, "/resume/analyze", token, gin.H{"resume_text": "第 6 次"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("6th call: expected 429, got %d body=%s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "free") {
		t.Fatalf("rate-limit rejection must be distinguishable from tier cap, got %s", w.Body.String())
	}
	if fake.calls != 5 {
		t.Fatalf("rejected call must not reach upstream, calls=%d", fake.calls)
	}

	// 窗口按端点独立：resume 打满不影响 projects。
	w = env.do(t, http.MethodPost, "/projects/enhance", token, gin.H{"bullet": "did stuff"})
	if w.Code != http.StatusOK {
		t.Fatalf("other endpoint status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestUpstreamFailureLeavesNoTrace(t *testing.T) {
	fake := &fakeGen{err: upstream.ErrTimeout}
	env := newTestEnv(t, fake, 5)
	token := env.register(t, "u@example.com", "password123")

	w := env.do(t, http.MethodPost, "/resume/analyze", token, gin.H{"resume_text": "会超时"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body=%s", w.Code, w.Body.String())
	}
	// 对外不泄露失败分类细节。
	if strings.Contains(w.Body.String(), "timeout") || strings.Contains(w.Body.String(), "超时") {
		t.Fatalf("response must not leak failure class, got %s", w.Body.String())
	}

	u := env.mustGetUser(t, "u@example.com")
	if u.RequestCount != 0 || u.TotalRequests != 0 {
		t.Fatalf("failed generation must not move counters: %d/%d", u.RequestCount, u.TotalRequests)
	}
	hw := env.do(t, http.MethodGet, "/history/", token, nil)
	var records []json.RawMessage
	decodeJSON(t, hw, &records)
	if len(records) != 0 {
		t.Fatalf("failed generation must not leave history, got %d records", len(records))
	}
}

func TestGenerateValidation(t *testing.T) {
	fake := &fakeGen{}
	env := newTestEnv(t, fake, 100)
	token := env.register(t, "v@example.com", "password123")

	cases := []struct {
		name string
		path string
		body gin.H
	}{
		{"empty resume_text", "/resume/analyze", gin.H{"resume_text": "  "}},
		{"missing bullet", "/projects/enhance", gin.H{}},
		{"missing tone", "/linkedin/generate", gin.H{"topic": "x"}},
	}
	for _, tc := range cases {
		w := env.do(t, http.MethodPost, tc.path, token, tc.body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d body=%s", tc.name, w.Code, w.Body.String())
		}
	}
	if fake.calls != 0 {
		t.Fatalf("invalid requests must not reach upstream, calls=%d", fake.calls)
	}
}

func TestGenerateRequiresAuth(t *testing.T) {
	fake := &fakeGen{}
	env := newTestEnv(t, fake, 5)

	w := env.do(t, http.MethodPost, "/resume/analyze", "", gin.H{"resume_text": "匿名"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", w.Code, w.Body.String())
	}
	if fake.calls != 0 {
		t.Fatalf("anonymous request must not reach upstream, calls=%d", fake.calls)
	}
}
