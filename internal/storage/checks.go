package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CheckQuery 用于查询核查记录的过滤条件，零值表示不参与过滤。
type CheckQuery struct {
	TraceID   string
	Status    string
	Verdict   string
	InputKind string
	// Search 对声明做不区分大小写的子串匹配。
	Search string
	TimeRange
	// Limit 限制返回条数；<=0 使用默认值。
	Limit int
	// Desc 为 true 时最新的记录在前。
	Desc bool
}

// CheckUpdate 描述核查记录的部分更新，nil 字段不修改。
type CheckUpdate struct {
	Status       *string
	Verdict      *string
	Confidence   *int
	SourcesJSON  *string
	Analysis     *string
	FinalAnswer  *string
	StepsJSON    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

func (u CheckUpdate) columns() map[string]any {
	cols := map[string]any{}
	set := func(name string, v any, ok bool) {
		if ok {
			cols[name] = v
		}
	}
	set("status", deref(u.Status), u.Status != nil)
	set("verdict", deref(u.Verdict), u.Verdict != nil)
	set("confidence", deref(u.Confidence), u.Confidence != nil)
	set("sources_json", deref(u.SourcesJSON), u.SourcesJSON != nil)
	set("analysis", deref(u.Analysis), u.Analysis != nil)
	set("final_answer", deref(u.FinalAnswer), u.FinalAnswer != nil)
	set("steps_json", deref(u.StepsJSON), u.StepsJSON != nil)
	set("error_message", deref(u.ErrorMessage), u.ErrorMessage != nil)
	set("finished_at", deref(u.FinishedAt), u.FinishedAt != nil)
	return cols
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (s *Storage) InsertCheckRecord(ctx context.Context, rec *CheckRecord) error {
	if err := s.ready(); err != nil {
		return err
	}
	if rec == nil {
		return errors.New("check record is nil")
	}
	now := time.Now().UTC()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert check record: %w", err)
	}
	return nil
}

func (s *Storage) QueryCheckRecords(ctx context.Context, q CheckQuery) ([]CheckRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx).Model(&CheckRecord{})
	for _, f := range [][2]string{
		{"trace_id", q.TraceID},
		{"status", q.Status},
		{"verdict", q.Verdict},
		{"input_kind", q.InputKind},
	} {
		if f[1] != "" {
			db = db.Where(f[0]+" = ?", f[1])
		}
	}
	if q.Search != "" {
		db = db.Where("claim LIKE ?", "%"+q.Search+"%")
	}
	db = order(q.TimeRange.apply(db), q.Desc).Limit(clamp(q.Limit, defaultLimit, maxLimit))

	var out []CheckRecord
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query check records: %w", err)
	}
	return out, nil
}

// GetCheckRecord 按 trace_id 取单条核查记录
func (s *Storage) GetCheckRecord(ctx context.Context, traceID string) (*CheckRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rec CheckRecord
	err := s.db.WithContext(ctx).Where("trace_id = ?", traceID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check record %q: %w", traceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get check record: %w", err)
	}
	return &rec, nil
}

func (s *Storage) UpdateCheckRecord(ctx context.Context, id uint64, up CheckUpdate) error {
	return updateByID[CheckRecord](ctx, s, "check record", id, up.columns())
}

func (s *Storage) CountCheckRecords(ctx context.Context) (int64, error) {
	return countRows[CheckRecord](ctx, s, "check records")
}

// CountChecksByVerdict 按结论统计已完成的核查记录，未解析出结论的记为 UNKNOWN。
func (s *Storage) CountChecksByVerdict(ctx context.Context) (map[string]int64, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []struct {
		Verdict string
		N       int64
	}
	err := s.db.WithContext(ctx).Model(&CheckRecord{}).
		Select("COALESCE(NULLIF(verdict, ''), 'UNKNOWN') AS verdict, COUNT(*) AS n").
		Where("status = ?", StatusSuccess).
		Group("verdict").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count checks by verdict: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Verdict] += r.N
	}
	return out, nil
}

func (s *Storage) DeleteCheckRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	return deleteBefore[CheckRecord](ctx, s, "check records", before)
}

func (s *Storage) DeleteCheckRecordsBeforeLimited(ctx context.Context, before time.Time, limit int) (int64, error) {
	return deleteBeforeLimited[CheckRecord](ctx, s, "check records", before, limit)
}
