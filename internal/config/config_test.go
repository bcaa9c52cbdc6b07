package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wwwzy/HoaxBuster/internal/retention"
	"github.com/wwwzy/HoaxBuster/internal/storage"
)

// setRequiredEnv 设置必填环境变量，绕过 Validate 检查
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ARK_API_KEY", "dummy-key")
	t.Setenv("ARK_MODEL_ID", "dummy-model")
	t.Setenv("SERPER_API_KEY", "dummy-search")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	// 测试加载默认值（不提供配置文件）
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "hoaxbuster.db", cfg.Storage.Path)
	assert.Equal(t, "serper", cfg.Search.Provider)
	assert.Equal(t, "dummy-search", cfg.Search.APIKey)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 120*time.Second, cfg.Pipeline.Timeout)
	assert.False(t, cfg.Pipeline.WriterEvidence)
	assert.False(t, cfg.Vision.Enabled)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, retention.DefaultConfig().KeepDays, cfg.Retention.KeepDays)
}

func TestLoad_ConfigFile(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	content := []byte(`
log_level: "debug"
log_format: "json"
ark:
  api_key: "file-key"
  model_id: "file-model"
search:
  provider: "brave"
  api_key: "brave-key"
  max_results: 8
pipeline:
  timeout: "45s"
  writer_evidence: true
storage:
  path: "test.db"
  busy_timeout: "10s"
vision:
  enabled: true
  api_key: "gemini-key"
retention:
  keep_days: 7
`)
	err := os.WriteFile(configFile, content, 0644)
	require.NoError(t, err)

	// 从文件加载
	cfg, err := Load(configFile)
	require.NoError(t, err)

	// 验证覆盖值
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "brave", cfg.Search.Provider)
	assert.Equal(t, 8, cfg.Search.MaxResults)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.Timeout)
	assert.True(t, cfg.Pipeline.WriterEvidence)
	assert.Equal(t, "test.db", cfg.Storage.Path)
	assert.Equal(t, 10*time.Second, cfg.Storage.BusyTimeout)
	assert.True(t, cfg.Vision.Enabled)
	assert.Equal(t, 7, cfg.Retention.KeepDays)

	// 验证未覆盖的字段保持默认值
	assert.Equal(t, retention.DefaultConfig().Interval, cfg.Retention.Interval)
	assert.Equal(t, "gemini-1.5-flash", cfg.Vision.Model)
}

func TestLoad_EnvOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HOAXBUSTER_LOG_LEVEL", "warn")
	t.Setenv("HOAXBUSTER_STORAGE_PATH", "env.db")
	t.Setenv("HOAXBUSTER_PIPELINE_TIMEOUT", "5m")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tg-token")
	t.Setenv("REDIS_ADDR", "redis:6379")

	// 加载配置（无文件）
	cfg, err := Load("")
	require.NoError(t, err)

	// 验证环境变量覆盖
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "env.db", cfg.Storage.Path)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, "tg-token", cfg.Telegram.Token)
	assert.Equal(t, "redis:6379", cfg.Cache.Addr)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 验证几个关键默认值
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, storage.Config{Path: "hoaxbuster.db", EnableWAL: true, BusyTimeout: 5 * time.Second, SlowQuery: 200 * time.Millisecond}, cfg.Storage)
	assert.Equal(t, retention.DefaultConfig().Interval, cfg.Retention.Interval)
}

func TestLoad_ValidateArk(t *testing.T) {
	// 确保没有环境变量干扰
	t.Setenv("ARK_API_KEY", "")
	t.Setenv("ARK_MODEL_ID", "")

	_, err := Load("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ark.api_key is required")
}

func TestValidate(t *testing.T) {
	base := DefaultConfig()
	base.Ark = ArkConfig{APIKey: "k", ModelID: "m"}
	base.Search.APIKey = "s"
	require.NoError(t, base.Validate())

	cfg := base
	cfg.Search.Provider = "duckduckgo"
	assert.ErrorContains(t, cfg.Validate(), "search.provider")

	cfg = base
	cfg.Search.APIKey = ""
	assert.ErrorContains(t, cfg.Validate(), "search.api_key")

	cfg = base
	cfg.Vision.Enabled = true
	assert.ErrorContains(t, cfg.Validate(), "vision.api_key")

	cfg = base
	cfg.Pipeline.Timeout = 0
	assert.ErrorContains(t, cfg.Validate(), "pipeline.timeout")

	cfg = base
	cfg.LogFormat = "xml"
	assert.ErrorContains(t, cfg.Validate(), "log_format")
}
