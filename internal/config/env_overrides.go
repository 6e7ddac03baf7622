package config

import (
	"os"
	"strconv"
	"time"
)

func applyEnvOverrides(cfg *Config) {
	applyCoreEnvOverrides(cfg)
	applyServerEnvOverrides(cfg)
	applyAuthEnvOverrides(cfg)
	applyUpstreamEnvOverrides(cfg)
	applyLimitsEnvOverrides(cfg)
}

func applyCoreEnvOverrides(cfg *Config) {
	if v := os.Getenv("CVFORGE_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("CVFORGE_DB_DRIVER"); v != "" {
		cfg.DB.Driver = v
	}
	if v := os.Getenv("CVFORGE_DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("CVFORGE_DB_SQLITE_PATH"); v != "" {
		cfg.DB.SQLitePath = v
	}
}

func applyServerEnvOverrides(cfg *Config) {
	if v := os.Getenv("CVFORGE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CVFORGE_SERVER_READ_HEADER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadHeaderTimeout = d
		}
	}
	if v := os.Getenv("CVFORGE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("CVFORGE_SERVER_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if v := os.Getenv("CVFORGE_SERVER_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = n
		}
	}
}

func applyAuthEnvOverrides(cfg *Config) {
	if v := os.Getenv("CVFORGE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("CVFORGE_JWT_ALGORITHM"); v != "" {
		cfg.Auth.JWTAlgorithm = v
	}
	if v := os.Getenv("CVFORGE_ACCESS_TOKEN_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Auth.AccessTokenTTL = time.Duration(n) * time.Minute
		}
	}
}

func applyUpstreamEnvOverrides(cfg *Config) {
	if v := os.Getenv("CVFORGE_UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("CVFORGE_UPSTREAM_MODEL"); v != "" {
		cfg.Upstream.Model = v
	}
	if v := os.Getenv("CVFORGE_UPSTREAM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Upstream.RequestTimeout = time.Duration(n) * time.Second
		}
	}
}

func applyLimitsEnvOverrides(cfg *Config) {
	if v := os.Getenv("CVFORGE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Limits.GenerationPerMinute = n
		}
	}
	if v := os.Getenv("CVFORGE_FREE_TIER_REQUEST_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Limits.FreeTierRequestCap = n
		}
	}
	if v := os.Getenv("CVFORGE_INITIAL_CREDITS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			credits := n
			cfg.Limits.InitialCredits = &credits
		}
	}
}
