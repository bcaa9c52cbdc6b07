package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AuditQuery 用于查询工具审计记录，零值表示不参与过滤。
type AuditQuery struct {
	TraceID string
	// Action 为工具名，例如 search_news。
	Action string
	Status string
	TimeRange
	Limit int
	Desc  bool
}

type AuditUpdate struct {
	Status       *string
	ResultJSON   *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

func (s *Storage) InsertAuditRecord(ctx context.Context, rec *AuditRecord) error {
	if err := s.ready(); err != nil {
		return err
	}
	if rec == nil {
		return errors.New("audit record is nil")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Storage) QueryAuditRecords(ctx context.Context, q AuditQuery) ([]AuditRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx).Model(&AuditRecord{})
	if q.TraceID != "" {
		db = db.Where("trace_id = ?", q.TraceID)
	}
	if q.Action != "" {
		db = db.Where("action = ?", q.Action)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	db = order(q.TimeRange.apply(db), q.Desc).Limit(clamp(q.Limit, defaultLimit, maxLimit))

	var out []AuditRecord
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	return out, nil
}

func (s *Storage) UpdateAuditRecord(ctx context.Context, id uint64, up AuditUpdate) error {
	cols := map[string]any{}
	if up.Status != nil {
		cols["status"] = *up.Status
	}
	if up.ResultJSON != nil {
		cols["result_json"] = *up.ResultJSON
	}
	if up.ErrorMessage != nil {
		cols["error_message"] = *up.ErrorMessage
	}
	if up.FinishedAt != nil {
		cols["finished_at"] = *up.FinishedAt
	}
	return updateByID[AuditRecord](ctx, s, "audit record", id, cols)
}

func (s *Storage) CountAuditRecords(ctx context.Context) (int64, error) {
	return countRows[AuditRecord](ctx, s, "audit records")
}

func (s *Storage) DeleteAuditRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	return deleteBefore[AuditRecord](ctx, s, "audit records", before)
}

func (s *Storage) DeleteAuditRecordsBeforeLimited(ctx context.Context, before time.Time, limit int) (int64, error) {
	return deleteBeforeLimited[AuditRecord](ctx, s, "audit records", before, limit)
}

// DeleteAuditRecordsKeepLatest 只保留最新的 keep 条审计记录
func (s *Storage) DeleteAuditRecordsKeepLatest(ctx context.Context, keep int) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if keep < 0 {
		return 0, fmt.Errorf("invalid keep: %d", keep)
	}

	latest := s.db.Model(&AuditRecord{}).Select("id").Order("id DESC").Limit(keep)
	res := s.db.WithContext(ctx).Where("id NOT IN (?)", latest).Delete(&AuditRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete audit records: %w", res.Error)
	}
	return res.RowsAffected, nil
}
