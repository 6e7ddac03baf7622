// Package config 负责读取并校验服务配置（环境变量为主，支持 .env），避免在业务代码里散落解析逻辑。
// 配置在进程启动时构造一次，随后以只读方式注入各组件；不提供任何全局可变入口。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Env      string
	Server   ServerConfig
	DB       DBConfig
	Auth     AuthConfig
	Upstream UpstreamConfig
	Limits   LimitsConfig
}

type ServerConfig struct {
	Addr string

	// HTTP 连接硬化：这些参数会直接映射到 net/http 的 http.Server。
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	IdleTimeout       time.Duration

	// 请求体上限；<= 0 表示不限制（不建议）。
	MaxBodyBytes int64
}

type DBConfig struct {
	// Driver 支持 mysql/sqlite；为空时根据 dsn 自动推断（有 dsn 则 mysql，否则 sqlite）。
	Driver string
	// DSN 仅用于 MySQL（示例：user:pass@tcp(127.0.0.1:3306)/cvforge?parseTime=true）。
	DSN string
	// SQLitePath 是 SQLite 数据库文件路径（可包含 DSN query，如 ?_busy_timeout=30000）。
	SQLitePath string
}

type AuthConfig struct {
	// JWTSecret 为签名密钥；缺失时进程拒绝启动。
	JWTSecret string
	// JWTAlgorithm 目前仅支持 HS256。
	JWTAlgorithm string
	// AccessTokenTTL 是签发 token 的有效期。
	AccessTokenTTL time.Duration
}

type UpstreamConfig struct {
	// BaseURL 是模型服务（Ollama 风格 /api/chat）的根地址。
	BaseURL string
	Model   string
	// RequestTimeout 是单次生成调用的硬超时。
	RequestTimeout time.Duration
}

type LimitsConfig struct {
	// GenerationPerMinute 是每个生成端点按身份独立计数的每分钟上限。
	GenerationPerMinute int
	// FreeTierRequestCap 是 free 档的累计请求上限（不随充值重置）。
	FreeTierRequestCap int
	// InitialCredits 是新注册用户的初始点数；nil 表示不限量。
	InitialCredits *int64
}

// LoadFromEnv 仅从环境变量加载配置（.env 的注入由 main 通过 godotenv 完成）。
func LoadFromEnv() (Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(&cfg)
	return normalizeAndValidate(cfg)
}

func defaultConfig() Config {
	return Config{
		Env: "prod",
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxBodyBytes:      1 << 20,
		},
		DB: DBConfig{},
		Auth: AuthConfig{
			JWTAlgorithm:   "HS256",
			AccessTokenTTL: 60 * time.Minute,
		},
		Upstream: UpstreamConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "llama3:8b",
			RequestTimeout: 60 * time.Second,
		},
		Limits: LimitsConfig{
			GenerationPerMinute: 5,
			FreeTierRequestCap:  50,
			InitialCredits:      nil,
		},
	}
}

func normalizeAndValidate(cfg Config) (Config, error) {
	cfg.Env = strings.TrimSpace(cfg.Env)
	if cfg.Env == "" {
		cfg.Env = "prod"
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return Config{}, errors.New("server.addr 不能为空")
	}

	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	cfg.DB.DSN = strings.TrimSpace(cfg.DB.DSN)
	cfg.DB.SQLitePath = strings.TrimSpace(cfg.DB.SQLitePath)
	if cfg.DB.Driver == "" {
		if cfg.DB.DSN != "" {
			cfg.DB.Driver = "mysql"
		} else {
			cfg.DB.Driver = "sqlite"
		}
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if cfg.DB.SQLitePath == "" {
			cfg.DB.SQLitePath = "./data/cvforge.db?_busy_timeout=30000"
		}
	case "mysql":
		if cfg.DB.DSN == "" {
			return Config{}, errors.New("db.dsn 不能为空（db.driver=mysql）")
		}
	default:
		return Config{}, fmt.Errorf("db.driver 不支持：%s（仅支持 mysql/sqlite）", cfg.DB.Driver)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return Config{}, errors.New("auth.jwt_secret 不能为空（设置 CVFORGE_JWT_SECRET）")
	}
	cfg.Auth.JWTAlgorithm = strings.ToUpper(strings.TrimSpace(cfg.Auth.JWTAlgorithm))
	if cfg.Auth.JWTAlgorithm == "" {
		cfg.Auth.JWTAlgorithm = "HS256"
	}
	if cfg.Auth.JWTAlgorithm != "HS256" {
		return Config{}, fmt.Errorf("auth.jwt_algorithm 不支持：%s（仅支持 HS256）", cfg.Auth.JWTAlgorithm)
	}
	if cfg.Auth.AccessTokenTTL <= 0 {
		cfg.Auth.AccessTokenTTL = 60 * time.Minute
	}

	baseURL, err := normalizeHTTPBaseURL(cfg.Upstream.BaseURL, "upstream.base_url")
	if err != nil {
		return Config{}, err
	}
	cfg.Upstream.BaseURL = baseURL
	if strings.TrimSpace(cfg.Upstream.Model) == "" {
		return Config{}, errors.New("upstream.model 不能为空")
	}
	if cfg.Upstream.RequestTimeout <= 0 {
		cfg.Upstream.RequestTimeout = 60 * time.Second
	}

	if cfg.Limits.GenerationPerMinute <= 0 {
		cfg.Limits.GenerationPerMinute = 5
	}
	if cfg.Limits.FreeTierRequestCap <= 0 {
		cfg.Limits.FreeTierRequestCap = 50
	}
	if cfg.Limits.InitialCredits != nil && *cfg.Limits.InitialCredits < 0 {
		return Config{}, errors.New("limits.initial_credits 不能为负数")
	}

	return cfg, nil
}

func normalizeHTTPBaseURL(raw string, field string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%s 不能为空", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s 不是合法 URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%s 仅支持 http/https：%s", field, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%s 缺少主机名：%s", field, raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
