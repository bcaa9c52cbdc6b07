package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	defaultLimit = 200
	maxLimit     = 5000

	// sqlite 单条语句的绑定参数有上限，分批删除时每批不超过 maxDeleteLimit
	defaultDeleteLimit = 500
	maxDeleteLimit     = 900
)

var (
	ErrNotInitialized = errors.New("storage not initialized")
	ErrNotFound       = errors.New("record not found")
)

// IsNotFound 判断错误是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (s *Storage) ready() error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	return nil
}

// TimeRange 过滤 CreatedAt 区间 [From, To]，nil 表示不限。
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

func (r TimeRange) apply(db *gorm.DB) *gorm.DB {
	if r.From != nil {
		db = db.Where("created_at >= ?", *r.From)
	}
	if r.To != nil {
		db = db.Where("created_at <= ?", *r.To)
	}
	return db
}

func order(db *gorm.DB, desc bool) *gorm.DB {
	if desc {
		return db.Order("created_at DESC").Order("id DESC")
	}
	return db.Order("created_at ASC").Order("id ASC")
}

func countRows[T any](ctx context.Context, s *Storage, what string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(new(T)).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", what, err)
	}
	return n, nil
}

func updateByID[T any](ctx context.Context, s *Storage, what string, id uint64, updates map[string]any) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", what, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}

func deleteBefore[T any](ctx context.Context, s *Storage, what string, before time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(new(T))
	if res.Error != nil {
		return 0, fmt.Errorf("delete %s: %w", what, res.Error)
	}
	return res.RowsAffected, nil
}

// deleteBeforeLimited 先选出最旧的 limit 个 id 再删除，避免一次删除长时间占用写锁
func deleteBeforeLimited[T any](ctx context.Context, s *Storage, what string, before time.Time, limit int) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	var ids []uint64
	err := s.db.WithContext(ctx).Model(new(T)).
		Select("id").
		Where("created_at < ?", before).
		Order("id ASC").
		Limit(clamp(limit, defaultDeleteLimit, maxDeleteLimit)).
		Find(&ids).Error
	if err != nil {
		return 0, fmt.Errorf("select %s ids: %w", what, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(new(T))
	if res.Error != nil {
		return 0, fmt.Errorf("delete %s: %w", what, res.Error)
	}
	return res.RowsAffected, nil
}

// clamp 把 v 限制在 (0, max]，非正数返回 def
func clamp(v, def, max int) int {
	switch {
	case v <= 0:
		return def
	case v > max:
		return max
	default:
		return v
	}
}
