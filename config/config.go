// Package config 负责调试引擎服务的配置管理。
// 配置从 YAML 文件加载，未填写的项使用默认值，并支持通过环境变量覆盖。
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 主配置
type Config struct {
	// Server DAP服务配置
	Server ServerConfig `yaml:"server"`
	// Logging 日志配置
	Logging LoggingConfig `yaml:"logging"`
	// Engine 引擎的计时参数
	Engine EngineConfig `yaml:"engine"`
	// Metrics Prometheus指标配置
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig DAP服务配置
type ServerConfig struct {
	// Port TCP监听端口，默认4711
	Port int `yaml:"port"`
	// Stdio 使用标准输入输出代替TCP
	Stdio bool `yaml:"stdio"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	// Level 日志级别：debug, info, warn, error
	Level string `yaml:"level"`
	// Format 日志格式：text 或 json
	Format string `yaml:"format"`
	// File 日志文件，为空时输出到stderr
	File string `yaml:"file"`
}

// EngineConfig 引擎配置
type EngineConfig struct {
	// LocationResetDelay 位置重置的防抖时间
	LocationResetDelay time.Duration `yaml:"location_reset_delay"`
	// ConnectTimeout 连接调试服务的超时时间
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// ConnectRetryInterval 连接失败后的重试间隔
	ConnectRetryInterval time.Duration `yaml:"connect_retry_interval"`
	// ConnectRetries 最大重试次数
	ConnectRetries int `yaml:"connect_retries"`
	// CommandTimeout 等待单个命令结果的超时时间
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

// Default 返回全部使用默认值的配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load 从path加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 4711
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Engine.LocationResetDelay == 0 {
		c.Engine.LocationResetDelay = 80 * time.Millisecond
	}
	if c.Engine.ConnectTimeout == 0 {
		c.Engine.ConnectTimeout = 4 * time.Second
	}
	if c.Engine.ConnectRetryInterval == 0 {
		c.Engine.ConnectRetryInterval = 3 * time.Second
	}
	if c.Engine.ConnectRetries == 0 {
		c.Engine.ConnectRetries = 3
	}
	if c.Engine.CommandTimeout == 0 {
		c.Engine.CommandTimeout = 10 * time.Second
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9464"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "debug_engine"
	}
}

// applyEnvOverrides 环境变量覆盖
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DEBUG_ENGINE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DEBUG_ENGINE_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("DEBUG_ENGINE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("DEBUG_ENGINE_METRICS_LISTEN"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Listen = v
	}
}
