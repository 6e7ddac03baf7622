// Package gen 把三个生成特征（简历分析/条目润色/LinkedIn 帖子）收敛为带类型的调用：
// 提示词在这里拼装，上游返回的 JSON 在边界处做严格解码与字段校验，
// 不让无类型的 map 渗透到 handler 层。
package gen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"cvforge/internal/upstream"
)

// Generator 抽象上游调用，测试里用假实现替换真实的 HTTP executor。
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error)
}

type ResumeAnalysis struct {
	Score       float64  `json:"score"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
}

type BulletEnhancement struct {
	Original      string `json:"original"`
	Enhanced      string `json:"enhanced"`
	ImpactVersion string `json:"impact_version"`
}

type LinkedInPost struct {
	Hook string `json:"hook"`
	Body string `json:"body"`
	CTA  string `json:"cta"`
}

type Service struct {
	exec Generator
}

func NewService(exec Generator) *Service {
	return &Service{exec: exec}
}

const resumeSystemPrompt = "You are a strict technical recruiter. Score resumes realistically (0-100). Penalize weak resumes heavily. Reward quantified impact and technical skills. Return ONLY valid JSON. Do NOT use markdown. Do NOT add explanation. Do NOT add text outside JSON."

const bulletSystemPrompt = "You are an expert resume writer. Rewrite bullets to be strong, action-oriented, and concise. Create impact versions with quantification. Do NOT invent metrics, percentages, or impact numbers. Only improve wording. If no measurable data is provided, do not fabricate it. Return ONLY valid JSON. Do NOT use markdown. Do NOT add explanation. Do NOT add text outside JSON."

const linkedinSystemPrompt = "You are a LinkedIn content expert. Create strong hooks, 6-10 line bodies, and engaging CTAs. Tone can be professional, confident, or storytelling. Return ONLY valid JSON. Do NOT use markdown. Do NOT add explanation. Do NOT add text outside JSON."

func (s *Service) AnalyzeResume(ctx context.Context, resumeText string) (ResumeAnalysis, []byte, error) {
	userPrompt := fmt.Sprintf(`Analyze this resume and respond with JSON in this exact format:
{
  "score": number,
  "strengths": [],
  "weaknesses": [],
  "suggestions": []
}

Resume: %s`, resumeText)

	raw, err := s.exec.Generate(ctx, resumeSystemPrompt, userPrompt)
	if err != nil {
		return ResumeAnalysis{}, nil, err
	}
	if err := requireFields(raw, "score", "strengths", "weaknesses", "suggestions"); err != nil {
		return ResumeAnalysis{}, nil, err
	}
	var out ResumeAnalysis
	if err := json.Unmarshal(raw, &out); err != nil {
		return ResumeAnalysis{}, nil, fmt.Errorf("%w: %v", upstream.ErrMalformedPayload, err)
	}
	return out, raw, nil
}

func (s *Service) EnhanceBullet(ctx context.Context, bullet string) (BulletEnhancement, []byte, error) {
	userPrompt := fmt.Sprintf(`Rewrite this bullet point and respond with JSON in this exact format:
{
  "original": "...",
  "enhanced": "...",
  "impact_version": "..."
}

Original: %s`, bullet)

	raw, err := s.exec.Generate(ctx, bulletSystemPrompt, userPrompt)
	if err != nil {
		return BulletEnhancement{}, nil, err
	}
	if err := requireFields(raw, "original", "enhanced", "impact_version"); err != nil {
		return BulletEnhancement{}, nil, err
	}
	var out BulletEnhancement
	if err := json.Unmarshal(raw, &out); err != nil {
		return BulletEnhancement{}, nil, fmt.Errorf("%w: %v", upstream.ErrMalformedPayload, err)
	}
	return out, raw, nil
}

func (s *Service) GenerateLinkedInPost(ctx context.Context, topic, tone string) (LinkedInPost, []byte, error) {
	userPrompt := fmt.Sprintf(`Generate a LinkedIn post about "%s" with a "%s" tone and respond with JSON in this exact format:
{
  "hook": "...",
  "body": "...",
  "cta": "..."
}

Topic: %s
Tone: %s`, topic, tone, topic, tone)

	raw, err := s.exec.Generate(ctx, linkedinSystemPrompt, userPrompt)
	if err != nil {
		return LinkedInPost{}, nil, err
	}
	if err := requireFields(raw, "hook", "body", "cta"); err != nil {
		return LinkedInPost{}, nil, err
	}
	var out LinkedInPost
	if err := json.Unmarshal(raw, &out); err != nil {
		return LinkedInPost{}, nil, fmt.Errorf("%w: %v", upstream.ErrMalformedPayload, err)
	}
	return out, raw, nil
}

// requireFields 校验上游 JSON 顶层必须是对象且包含全部必填键；
// 缺键按 ErrMalformedPayload 处理，而不是解码成零值糊弄过去。
func requireFields(raw []byte, keys ...string) error {
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return fmt.Errorf("%w: 顶层不是对象", upstream.ErrMalformedPayload)
	}
	for _, k := range keys {
		if !root.Get(k).Exists() {
			return fmt.Errorf("%w: 缺少字段 %s", upstream.ErrMalformedPayload, k)
		}
	}
	return nil
}
