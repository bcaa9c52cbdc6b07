package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wwwzy/HoaxBuster/internal/storage"
)

// Result 一次清理删除的行数
type Result struct {
	Checks int64
	Audits int64
}

func (r Result) Total() int64 { return r.Checks + r.Audits }

// Pruner 删除过期的核查记录与审计记录
type Pruner struct {
	cfg    Config
	store  *storage.Storage
	logger *slog.Logger
}

func NewPruner(store *storage.Storage, cfg Config, logger *slog.Logger) (*Pruner, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{cfg: cfg.withDefaults(), store: store, logger: logger}, nil
}

// Prune 立即执行一次清理，供 CLI 使用
func Prune(ctx context.Context, store *storage.Storage, cfg Config) (Result, error) {
	p, err := NewPruner(store, cfg, nil)
	if err != nil {
		return Result{}, err
	}
	return p.Prune(ctx, time.Now().UTC())
}

// Prune 先删核查记录再删审计记录；设置了 MaxAuditRows 时再按条数截断审计表。
func (p *Pruner) Prune(ctx context.Context, now time.Time) (Result, error) {
	if p == nil || p.store == nil {
		return Result{}, errors.New("retention pruner not initialized")
	}

	cutoff := p.cfg.Cutoff(now)
	var res Result

	n, err := p.batches(ctx, func(ctx context.Context) (int64, error) {
		return p.store.DeleteCheckRecordsBeforeLimited(ctx, cutoff, p.cfg.BatchRows)
	})
	res.Checks = n
	if err != nil {
		return res, p.fail(ctx, fmt.Errorf("prune check records: %w", err))
	}

	n, err = p.batches(ctx, func(ctx context.Context) (int64, error) {
		return p.store.DeleteAuditRecordsBeforeLimited(ctx, cutoff, p.cfg.BatchRows)
	})
	res.Audits = n
	if err != nil {
		return res, p.fail(ctx, fmt.Errorf("prune audit records: %w", err))
	}

	if p.cfg.MaxAuditRows > 0 {
		n, err := p.store.DeleteAuditRecordsKeepLatest(ctx, p.cfg.MaxAuditRows)
		res.Audits += n
		if err != nil {
			return res, p.fail(ctx, fmt.Errorf("cap audit records: %w", err))
		}
	}

	p.logger.InfoContext(ctx, "retention prune finished",
		slog.Time("cutoff", cutoff), slog.Int64("checks", res.Checks), slog.Int64("audits", res.Audits))
	return res, nil
}

func (p *Pruner) fail(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	p.cfg.OnError(err)
	p.logger.ErrorContext(ctx, "retention prune failed", slog.Any("error", err))
	return err
}

// batches 分批调用 del 直到没有可删的行
func (p *Pruner) batches(ctx context.Context, del func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		affected, err := del(ctx)
		if err != nil {
			return total, err
		}
		total += affected
		if affected == 0 {
			return total, nil
		}
		if p.cfg.IdleSleep > 0 {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(p.cfg.IdleSleep):
			}
		}
	}
}
