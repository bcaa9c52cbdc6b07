package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wwwzy/HoaxBuster/internal/agent"
	"github.com/wwwzy/HoaxBuster/internal/cache"
	"github.com/wwwzy/HoaxBuster/internal/checker"
	"github.com/wwwzy/HoaxBuster/internal/metrics"
	"github.com/wwwzy/HoaxBuster/internal/search"
	"github.com/wwwzy/HoaxBuster/internal/storage"
	"github.com/wwwzy/HoaxBuster/internal/vision"
)

// app 持有一次命令运行期间的全部依赖
type app struct {
	service *checker.Service
	store   *storage.Storage
	metrics *metrics.Collector
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildApp 按配置组装存储、搜索、模型、图片识别、缓存与核查流程
func buildApp(ctx context.Context) (*app, error) {
	a := &app{metrics: metrics.New()}

	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	searcher, err := search.New(cfg.Search, nil)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("创建搜索客户端失败: %w", err)
	}

	chatModel, err := agent.NewChatModel(ctx, cfg.Ark)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("创建 ChatModel 失败: %w", err)
	}

	var extractor vision.Extractor
	if cfg.Vision.Enabled {
		g, err := vision.NewGemini(ctx, cfg.Vision)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("创建图片识别客户端失败: %w", err)
		}
		extractor = g
		a.closers = append(a.closers, g.Close)
	}

	// 缓存不可用时降级为不使用缓存
	var verdictCache cache.Cache
	if cfg.Cache.Enabled {
		r, err := cache.NewRedis(ctx, cfg.Cache)
		if err != nil {
			logger.Warn("verdict cache disabled", slog.String("addr", cfg.Cache.Addr), slog.Any("error", err))
		} else {
			verdictCache = r
			a.closers = append(a.closers, r.Close)
		}
	}

	pipeline, err := agent.NewPipeline(ctx, agent.Config{
		ChatModel:      chatModel,
		Tools:          agent.GetTools(searcher, store, logger),
		Vision:         extractor,
		WriterEvidence: cfg.Pipeline.WriterEvidence,
		Observer:       a.metrics,
		Logger:         logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("构建核查流程失败: %w", err)
	}

	svc, err := checker.NewService(checker.Options{
		Pipeline: pipeline,
		Store:    store,
		Cache:    verdictCache,
		Metrics:  a.metrics,
		Timeout:  cfg.Pipeline.Timeout,
		Logger:   logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.service = svc
	return a, nil
}
