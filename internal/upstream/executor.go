// Package upstream 封装对模型服务的 HTTP 调用：构造请求、控制超时、并把失败分类成
// 稳定的错误哨兵，上层据此决定日志细节与对外响应（对外一律收敛为通用失败）。
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"cvforge/internal/config"
)

var (
	// ErrTimeout 表示调用在配置的硬超时内没有完成。
	ErrTimeout = errors.New("上游调用超时")
	// ErrUnreachable 表示连接层失败（拒绝连接、DNS 失败等）。
	ErrUnreachable = errors.New("上游无法连接")
	// ErrBadStatus 表示上游返回了非 200 状态码。
	ErrBadStatus = errors.New("上游返回异常状态码")
	// ErrEmptyResponse 表示上游应答缺少内容。
	ErrEmptyResponse = errors.New("上游返回空内容")
	// ErrMalformedPayload 表示上游内容不是合法的结构化 JSON。
	ErrMalformedPayload = errors.New("上游返回内容不是合法 JSON")
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type Executor struct {
	client  *http.Client
	baseURL string
	model   string
	timeout time.Duration
}

func NewExecutor(cfg config.UpstreamConfig) *Executor {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Executor{
		client: &http.Client{
			Transport: transport,
			// 超时统一由每次调用的 context 控制，client 级别不再叠一层。
			Timeout: 0,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		timeout: cfg.RequestTimeout,
	}
}

// Generate 执行一次非流式对话调用，返回 message.content 里的结构化 JSON 原文。
// 调用方拿到的是已确认合法的 JSON 字节，按各自的特征结构去解码。
func (e *Executor) Generate(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error) {
	payload, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
		Options: chatOptions{
			Temperature: 0.3,
			TopP:        0.9,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("序列化上游请求失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构造上游请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrBadStatus, resp.StatusCode, truncate(body, 512))
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: 应答不是 JSON", ErrMalformedPayload)
	}
	content := gjson.GetBytes(body, "message.content").String()
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyResponse
	}
	if !gjson.Valid(content) {
		return nil, fmt.Errorf("%w: message.content 不是 JSON", ErrMalformedPayload)
	}
	return []byte(content), nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
