package config

import (
	"fmt"
	"strings"

	"kitdash/pkg/config"
)

type Config struct {
	LogLevel   string                  `yaml:"log_level"`
	DB         config.DBConfig         `yaml:"db"`
	Redis      config.RedisConfig      `yaml:"redis"`
	MQ         config.MQConfig         `yaml:"mq"`
	JWT        config.JWTConfig        `yaml:"jwt"`
	Server     config.ServerConfig     `yaml:"server"`
	Auth       config.AuthConfig       `yaml:"auth"`
	Dashboard  config.DashboardConfig  `yaml:"dashboard"`
	Onboarding config.OnboardingConfig `yaml:"onboarding"`
	Outbox     config.OutboxConfig     `yaml:"outbox"`
	Worker     WorkerConfig            `yaml:"worker"`
	OTel       config.OTelConfig       `yaml:"otel"`
}

// WorkerConfig 活动消费者配置
type WorkerConfig struct {
	// 可重试错误的最大重新入队次数，超过后进 DLQ
	MaxRetries int64 `yaml:"max_retries"`
	// 去重 key 的保留时间（小时）
	DedupTTLHours int `yaml:"dedup_ttl_hours"`
}

// Load 读取 config/<env>.yaml 叠加在 base.yaml 上，再用环境变量覆盖
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	dir := config.GetEnv("CONFIG_DIR", "config")
	return LoadFrom(env, dir)
}

func LoadFrom(env, dir string) (*Config, error) {
	merged, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := config.Decode(merged, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)

	if cfg.JWT.Secret == "" || strings.Contains(cfg.JWT.Secret, "${") {
		return nil, fmt.Errorf("jwt.secret is required")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Worker.MaxRetries <= 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.DedupTTLHours <= 0 {
		cfg.Worker.DedupTTLHours = 24
	}
	return &cfg, nil
}
