package config

import (
	"fmt"
	"time"

	"projectportal/pkg/config"
)

// ChatConfig 实时聊天配置
type ChatConfig struct {
	HistoryLimit  int    `yaml:"history_limit"`
	FanoutChannel string `yaml:"fanout_channel"`
	RedisFanout   bool   `yaml:"redis_fanout"`
	SendBuffer    int    `yaml:"send_buffer"`
}

// WorkerConfig 后台任务配置
type WorkerConfig struct {
	OverdueSchedule string        `yaml:"overdue_schedule"`
	OverdueTimeout  time.Duration `yaml:"overdue_timeout"`
	OutboxInterval  time.Duration `yaml:"outbox_interval"`
	OutboxBatchSize int           `yaml:"outbox_batch_size"`
	HealthPort      string        `yaml:"health_port"`
}

type Config struct {
	Env    string              `yaml:"env"`
	DB     config.DBConfig     `yaml:"db"`
	MQ     config.MQConfig     `yaml:"mq"`
	Redis  config.RedisConfig  `yaml:"redis"`
	JWT    config.JWTConfig    `yaml:"jwt"`
	Server config.ServerConfig `yaml:"server"`
	Otel   config.OtelConfig   `yaml:"otel"`
	Chat   ChatConfig          `yaml:"chat"`
	Worker WorkerConfig        `yaml:"worker"`
}

// Load 按 CONFIG_ENV 加载分层配置并应用环境变量覆盖
func Load() (*Config, error) {
	return LoadFrom(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
}

func LoadFrom(env, dir string) (*Config, error) {
	raw, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := config.Decode(raw, &cfg); err != nil {
		return nil, err
	}
	cfg.Env = env

	// 环境变量覆盖（生产环境使用）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideOtelFromEnv(&cfg.Otel)

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}
	return &cfg, nil
}
