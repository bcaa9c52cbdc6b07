package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider 搜索服务提供方
type Provider string

const (
	ProviderSerper Provider = "serper"
	ProviderBrave  Provider = "brave"
)

const (
	DefaultMaxResults = 5
	MaxResultsLimit   = 25
	defaultTimeout    = 15 * time.Second
	errorBodyLimit    = 512
)

var (
	// ErrUnsupportedProvider 未知的搜索服务提供方
	ErrUnsupportedProvider = errors.New("unsupported search provider")
	// ErrEmptyQuery 搜索关键字为空
	ErrEmptyQuery = errors.New("search query is empty")
)

// Result 单条搜索结果
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Searcher 根据关键字检索网页/新闻
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Doer 发送 HTTP 请求，便于测试时替换
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	Provider   string        `mapstructure:"provider"`
	APIKey     string        `mapstructure:"api_key"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// BaseURL 覆盖默认接口地址，为空时使用官方地址
	BaseURL string `mapstructure:"base_url"`
}

func DefaultConfig() Config {
	return Config{
		Provider:   string(ProviderSerper),
		MaxResults: DefaultMaxResults,
		Timeout:    defaultTimeout,
	}
}

// New 根据配置创建 Searcher
func New(cfg Config, client Doer) (Searcher, error) {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("search.api_key is required for provider %q", cfg.Provider)
	}

	switch Provider(strings.ToLower(cfg.Provider)) {
	case ProviderSerper:
		return &Serper{APIKey: cfg.APIKey, MaxResults: cfg.MaxResults, BaseURL: cfg.BaseURL, Client: client}, nil
	case ProviderBrave:
		return &Brave{APIKey: cfg.APIKey, MaxResults: cfg.MaxResults, BaseURL: cfg.BaseURL, Client: client}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// ClampMaxResults 把结果数量限制在 1..MaxResultsLimit，非正数使用默认值
func ClampMaxResults(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	if n > MaxResultsLimit {
		return MaxResultsLimit
	}
	return n
}

// checkResponse 非 200 响应转换为错误，附带截断后的响应体
func checkResponse(provider Provider, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return fmt.Errorf("%s search failed: status %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
}
