package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "hoaxbuster:verdict:"

type Config struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Addr:    "localhost:6379",
		TTL:     6 * time.Hour,
	}
}

type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Entry 一次成功核查的结果快照
type Entry struct {
	TraceID     string    `json:"trace_id"`
	FinalAnswer string    `json:"final_answer"`
	Logs        []string  `json:"logs"`
	Verdict     string    `json:"verdict"`
	Confidence  int       `json:"confidence"`
	Sources     []Source  `json:"sources"`
	CachedAt    time.Time `json:"cached_at"`
}

// Cache 按声明文本缓存核查结果
type Cache interface {
	Get(ctx context.Context, claim string) (*Entry, bool, error)
	Set(ctx context.Context, claim string, entry Entry) error
}

// Redis 基于 Redis 的结论缓存
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedis 连接 Redis 并校验连通性
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewRedisWithClient(client, cfg.TTL), nil
}

// NewRedisWithClient 使用已有的客户端
func NewRedisWithClient(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultConfig().TTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, claim string) (*Entry, bool, error) {
	if r == nil || r.client == nil {
		return nil, false, nil
	}
	val, err := r.client.Get(ctx, Key(claim)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return &e, true, nil
}

func (r *Redis) Set(ctx context.Context, claim string, entry Entry) error {
	if r == nil || r.client == nil {
		return nil
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, Key(claim), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Key 根据归一化后的声明生成缓存 key
func Key(claim string) string {
	sum := sha256.Sum256([]byte(Normalize(claim)))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Normalize 小写并合并空白
func Normalize(claim string) string {
	return strings.Join(strings.Fields(strings.ToLower(claim)), " ")
}
