package router

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvforge/internal/store"
)

type resumeAnalyzeRequest struct {
	ResumeText string `json:"resume_text"`
}

type bulletEnhanceRequest struct {
	Bullet string `json:"bullet"`
}

type linkedinGenerateRequest struct {
	Topic string `json:"topic"`
	Tone  string `json:"tone"`
}

func setGenerateRoutes(r gin.IRoutes, opts Options) {
	r.GET("/resume/", indexHandler("resume"))
	r.GET("/projects/", indexHandler("projects"))
	r.GET("/linkedin/", indexHandler("linkedin"))

	// 受保护链路固定顺序：解析身份 → 本端点限流 → 配额准入 → 业务 handler。
	r.POST("/resume/analyze",
		requireBearerUser(opts), rateLimit(opts.ResumeLimiter), quotaGuard(opts), resumeAnalyzeHandler(opts))
	r.POST("/projects/enhance",
		requireBearerUser(opts), rateLimit(opts.ProjectLimiter), quotaGuard(opts), bulletEnhanceHandler(opts))
	r.POST("/linkedin/generate",
		requireBearerUser(opts), rateLimit(opts.LinkedInLimiter), quotaGuard(opts), linkedinGenerateHandler(opts))
}

func indexHandler(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": name + " endpoint"})
	}
}

func resumeAnalyzeHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resumeAnalyzeRequest
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil || strings.TrimSpace(req.ResumeText) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "无效的参数"})
			return
		}
		u, _ := currentUser(c)

		out, raw, err := opts.Gen.AnalyzeResume(c.Request.Context(), req.ResumeText)
		if err != nil {
			abortUpstreamFailure(c, "resume", u, err)
			return
		}

		// 生成成功后才落台账：失败的调用不留历史、不动计数。
		if _, err := opts.Store.RecordUsage(c.Request.Context(), store.RecordUsageInput{
			UserEmail:   u.Email,
			FeatureType: store.FeatureResume,
			InputText:   req.ResumeText,
			OutputText:  string(raw),
		}); err != nil {
			slog.Error("写入用量台账失败", "feature", store.FeatureResume, "user_id", u.ID, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "记录用量失败"})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func bulletEnhanceHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bulletEnhanceRequest
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil || strings.TrimSpace(req.Bullet) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "无效的参数"})
			return
		}
		u, _ := currentUser(c)

		out, raw, err := opts.Gen.EnhanceBullet(c.Request.Context(), req.Bullet)
		if err != nil {
			abortUpstreamFailure(c, "project", u, err)
			return
		}

		if _, err := opts.Store.RecordUsage(c.Request.Context(), store.RecordUsageInput{
			UserEmail:   u.Email,
			FeatureType: store.FeatureProject,
			InputText:   req.Bullet,
			OutputText:  string(raw),
		}); err != nil {
			slog.Error("写入用量台账失败", "feature", store.FeatureProject, "user_id", u.ID, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "记录用量失败"})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func linkedinGenerateHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req linkedinGenerateRequest
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil ||
			strings.TrimSpace(req.Topic) == "" || strings.TrimSpace(req.Tone) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "无效的参数"})
			return
		}
		u, _ := currentUser(c)

		out, raw, err := opts.Gen.GenerateLinkedInPost(c.Request.Context(), req.Topic, req.Tone)
		if err != nil {
			abortUpstreamFailure(c, "linkedin", u, err)
			return
		}

		input, _ := json.Marshal(gin.H{"topic": req.Topic, "tone": req.Tone})
		if _, err := opts.Store.RecordUsage(c.Request.Context(), store.RecordUsageInput{
			UserEmail:   u.Email,
			FeatureType: store.FeatureLinkedIn,
			InputText:   string(input),
			OutputText:  string(raw),
		}); err != nil {
			slog.Error("写入用量台账失败", "feature", store.FeatureLinkedIn, "user_id", u.ID, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "记录用量失败"})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// abortUpstreamFailure 对外收敛为一句通用失败；完整分类只进内部日志。
func abortUpstreamFailure(c *gin.Context, feature string, u store.User, err error) {
	slog.Error("生成调用失败", "feature", feature, "user_id", u.ID, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "生成失败，请稍后重试"})
}
