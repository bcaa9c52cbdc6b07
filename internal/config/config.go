package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wwwzy/HoaxBuster/internal/cache"
	"github.com/wwwzy/HoaxBuster/internal/retention"
	"github.com/wwwzy/HoaxBuster/internal/search"
	"github.com/wwwzy/HoaxBuster/internal/storage"
	"github.com/wwwzy/HoaxBuster/internal/vision"
)

type ArkConfig struct {
	APIKey  string `mapstructure:"api_key"`
	ModelID string `mapstructure:"model_id"`
	BaseURL string `mapstructure:"base_url"`
}

type PipelineConfig struct {
	// Timeout 单次核查的最长耗时
	Timeout time.Duration `mapstructure:"timeout"`
	// WriterEvidence 为 true 时 Writer 同时读取最近一次搜索结果
	WriterEvidence bool `mapstructure:"writer_evidence"`
}

type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	StaticDir      string `mapstructure:"static_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
	Debug bool   `mapstructure:"debug"`
}

type Config struct {
	LogLevel  string           `mapstructure:"log_level"`
	LogFormat string           `mapstructure:"log_format"`
	Ark       ArkConfig        `mapstructure:"ark"`
	Vision    vision.Config    `mapstructure:"vision"`
	Search    search.Config    `mapstructure:"search"`
	Pipeline  PipelineConfig   `mapstructure:"pipeline"`
	Storage   storage.Config   `mapstructure:"storage"`
	Server    ServerConfig     `mapstructure:"server"`
	Cache     cache.Config     `mapstructure:"cache"`
	Retention retention.Config `mapstructure:"retention"`
	Telegram  TelegramConfig   `mapstructure:"telegram"`
}

func Load(cfgFile string) (*Config, error) {
	// 1. 初始化 Viper
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// 默认搜索路径
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.hoaxbuster")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("HOAXBUSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper 只反序列化它“知道”的 key（来自配置文件、Defaults 或显式 Bind），
	// 所以所有 key 都需要在 setDefaults 中登记默认值。
	setDefaults(v)

	// 2. 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件未找到，使用默认值
	}

	// 3. 反序列化 (文件/环境变量 覆盖 默认值)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 4. 验证关键配置
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	// Ark 配置验证：必须存在
	if c.Ark.APIKey == "" {
		return fmt.Errorf("ark.api_key is required (or set ARK_API_KEY env var)")
	}
	if c.Ark.ModelID == "" {
		return fmt.Errorf("ark.model_id is required (or set ARK_MODEL_ID env var)")
	}

	switch search.Provider(strings.ToLower(c.Search.Provider)) {
	case search.ProviderSerper, search.ProviderBrave:
	default:
		return fmt.Errorf("search.provider must be one of serper|brave, got %q", c.Search.Provider)
	}
	if c.Search.APIKey == "" {
		return fmt.Errorf("search.api_key is required (or set SERPER_API_KEY / BRAVE_API_KEY env var)")
	}

	if c.Vision.Enabled && c.Vision.APIKey == "" {
		return fmt.Errorf("vision.api_key is required when vision is enabled (or set GEMINI_API_KEY env var)")
	}

	if c.Pipeline.Timeout <= 0 {
		return fmt.Errorf("pipeline.timeout must be positive")
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	// -------------------------------------------------------------------------
	// Global Defaults (全局默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)

	// -------------------------------------------------------------------------
	// Ark AI Defaults (AI 模型默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("ark.api_key", "")
	v.SetDefault("ark.model_id", "")
	v.SetDefault("ark.base_url", defaults.Ark.BaseURL)

	_ = v.BindEnv("ark.api_key", "HOAXBUSTER_ARK_API_KEY", "ARK_API_KEY")
	_ = v.BindEnv("ark.model_id", "HOAXBUSTER_ARK_MODEL_ID", "ARK_MODEL_ID")
	_ = v.BindEnv("ark.base_url", "HOAXBUSTER_ARK_BASE_URL", "ARK_BASE_URL")

	// -------------------------------------------------------------------------
	// Vision Defaults (图片识别默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("vision.enabled", defaults.Vision.Enabled)
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.model", defaults.Vision.Model)
	_ = v.BindEnv("vision.api_key", "HOAXBUSTER_VISION_API_KEY", "GEMINI_API_KEY")

	// -------------------------------------------------------------------------
	// Search Defaults (搜索默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("search.provider", defaults.Search.Provider)
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.max_results", defaults.Search.MaxResults)
	v.SetDefault("search.timeout", defaults.Search.Timeout)
	v.SetDefault("search.base_url", "")
	_ = v.BindEnv("search.api_key", "HOAXBUSTER_SEARCH_API_KEY", "SERPER_API_KEY", "BRAVE_API_KEY")

	// -------------------------------------------------------------------------
	// Pipeline Defaults (流程默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("pipeline.timeout", defaults.Pipeline.Timeout)
	v.SetDefault("pipeline.writer_evidence", defaults.Pipeline.WriterEvidence)

	// -------------------------------------------------------------------------
	// Storage Defaults (存储默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("storage.path", defaults.Storage.Path)
	v.SetDefault("storage.in_memory", false)
	v.SetDefault("storage.enable_wal", defaults.Storage.EnableWAL)
	v.SetDefault("storage.busy_timeout", defaults.Storage.BusyTimeout)
	v.SetDefault("storage.max_open_conns", 0)
	v.SetDefault("storage.max_idle_conns", 0)
	v.SetDefault("storage.conn_max_lifetime", 0)
	v.SetDefault("storage.slow_query", defaults.Storage.SlowQuery)

	// -------------------------------------------------------------------------
	// Server Defaults (HTTP 服务默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.static_dir", defaults.Server.StaticDir)
	v.SetDefault("server.max_upload_bytes", defaults.Server.MaxUploadBytes)

	// -------------------------------------------------------------------------
	// Cache Defaults (结论缓存默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.addr", defaults.Cache.Addr)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)
	_ = v.BindEnv("cache.addr", "HOAXBUSTER_CACHE_ADDR", "REDIS_ADDR")

	// -------------------------------------------------------------------------
	// Retention Defaults (数据清理默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("retention.enabled", defaults.Retention.Enabled)
	v.SetDefault("retention.interval", defaults.Retention.Interval)
	v.SetDefault("retention.keep_days", defaults.Retention.KeepDays)
	v.SetDefault("retention.batch_rows", defaults.Retention.BatchRows)
	v.SetDefault("retention.idle_sleep", defaults.Retention.IdleSleep)
	v.SetDefault("retention.max_audit_rows", defaults.Retention.MaxAuditRows)

	// -------------------------------------------------------------------------
	// Telegram Defaults (机器人默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.debug", false)
	_ = v.BindEnv("telegram.token", "HOAXBUSTER_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
}

func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Ark: ArkConfig{
			BaseURL: "https://ark.cn-beijing.volces.com/api/v3",
		},
		Vision: vision.DefaultConfig(),
		Search: search.DefaultConfig(),
		Pipeline: PipelineConfig{
			Timeout: 120 * time.Second,
		},
		Storage: storage.Config{
			Path:        "hoaxbuster.db",
			EnableWAL:   true,
			BusyTimeout: 5 * time.Second,
			SlowQuery:   200 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:           ":8000",
			StaticDir:      "static",
			MaxUploadBytes: 10 << 20,
		},
		Cache:     cache.DefaultConfig(),
		Retention: retention.DefaultConfig(),
	}
}
