package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "hoaxbuster.db")
	s, err := Open(ctx, Config{
		Path:      dbPath,
		EnableWAL: true,
	})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCheckRecordLifecycle(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	rec := CheckRecord{
		TraceID:    "trace-1",
		InputKind:  InputText,
		Claim:      "Presiden mengumumkan libur nasional besok",
		Status:     StatusRunning,
		Confidence: -1,
	}
	if err := s.InsertCheckRecord(ctx, &rec); err != nil {
		t.Fatalf("insert check: %v", err)
	}
	if rec.ID == 0 {
		t.Fatalf("expected check id to be set")
	}
	if rec.StartedAt.IsZero() {
		t.Fatalf("expected started_at to be filled")
	}

	status := StatusSuccess
	verdict := "HOAX"
	confidence := 85
	answer := "<b>Status</b>: HOAX"
	finished := time.Now().UTC()
	if err := s.UpdateCheckRecord(ctx, rec.ID, CheckUpdate{
		Status:      &status,
		Verdict:     &verdict,
		Confidence:  &confidence,
		FinalAnswer: &answer,
		FinishedAt:  &finished,
	}); err != nil {
		t.Fatalf("update check: %v", err)
	}

	got, err := s.QueryCheckRecords(ctx, CheckQuery{TraceID: "trace-1", Limit: 10})
	if err != nil {
		t.Fatalf("query check: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 check record, got %d", len(got))
	}
	if got[0].Status != StatusSuccess || got[0].Verdict != "HOAX" || got[0].Confidence != 85 {
		t.Fatalf("unexpected record: status=%s verdict=%s confidence=%d", got[0].Status, got[0].Verdict, got[0].Confidence)
	}
	if got[0].FinalAnswer != answer {
		t.Fatalf("unexpected final answer: %s", got[0].FinalAnswer)
	}

	err = s.UpdateCheckRecord(ctx, 9999, CheckUpdate{Status: &status})
	if !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCheckRecordsQueryAndPrune(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	now := time.Now().UTC()
	records := []CheckRecord{
		{TraceID: "old", InputKind: InputText, Claim: "a", Status: StatusSuccess, Verdict: "FACT", CreatedAt: now.Add(-10 * 24 * time.Hour)},
		{TraceID: "mid", InputKind: InputImage, Claim: "b", Status: StatusFailed, CreatedAt: now.Add(-5 * 24 * time.Hour)},
		{TraceID: "new", InputKind: InputText, Claim: "c", Status: StatusSuccess, Verdict: "HOAX", CreatedAt: now.Add(-1 * time.Hour)},
	}
	for i := range records {
		if err := s.InsertCheckRecord(ctx, &records[i]); err != nil {
			t.Fatalf("insert %s: %v", records[i].TraceID, err)
		}
	}

	latest, err := s.QueryCheckRecords(ctx, CheckQuery{Limit: 2, Desc: true})
	if err != nil {
		t.Fatalf("query latest: %v", err)
	}
	if len(latest) != 2 || latest[0].TraceID != "new" || latest[1].TraceID != "mid" {
		t.Fatalf("unexpected latest order: %+v", latest)
	}

	images, err := s.QueryCheckRecords(ctx, CheckQuery{InputKind: InputImage})
	if err != nil {
		t.Fatalf("query images: %v", err)
	}
	if len(images) != 1 || images[0].TraceID != "mid" {
		t.Fatalf("unexpected image records: %+v", images)
	}

	var deleted int64
	for {
		aff, err := s.DeleteCheckRecordsBeforeLimited(ctx, now.Add(-3*24*time.Hour), 1)
		if err != nil {
			t.Fatalf("delete old checks: %v", err)
		}
		if aff == 0 {
			break
		}
		deleted += aff
	}
	if deleted != 2 {
		t.Fatalf("expected delete 2 checks, got %d", deleted)
	}

	count, err := s.CountCheckRecords(ctx)
	if err != nil {
		t.Fatalf("count checks: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 remaining check, got %d", count)
	}
}

func TestCountChecksByVerdict(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	records := []CheckRecord{
		{TraceID: "a", InputKind: InputText, Claim: "a", Status: StatusSuccess, Verdict: "HOAX"},
		{TraceID: "b", InputKind: InputText, Claim: "b", Status: StatusSuccess, Verdict: "HOAX"},
		{TraceID: "c", InputKind: InputText, Claim: "c", Status: StatusSuccess},
		{TraceID: "d", InputKind: InputText, Claim: "d", Status: StatusFailed, Verdict: "FACT"},
		{TraceID: "e", InputKind: InputText, Claim: "e", Status: StatusSuccess, Verdict: "UNKNOWN"},
		{TraceID: "f", InputKind: InputText, Claim: "f", Status: StatusSuccess, Verdict: "MISLEADING"},
	}
	for i := range records {
		if err := s.InsertCheckRecord(ctx, &records[i]); err != nil {
			t.Fatalf("insert %s: %v", records[i].TraceID, err)
		}
	}

	got, err := s.CountChecksByVerdict(ctx)
	if err != nil {
		t.Fatalf("count by verdict: %v", err)
	}
	// 空结论与 UNKNOWN 合并计数，失败的记录不计入
	if len(got) != 3 || got["HOAX"] != 2 || got["UNKNOWN"] != 2 || got["MISLEADING"] != 1 {
		t.Fatalf("unexpected counts: %v", got)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "hoaxbuster.db")
	s, err := Open(ctx, Config{Path: dbPath})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer s.Close()

	if _, err := dsnFromConfig(Config{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestAuditInsertQueryUpdate(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	rec := AuditRecord{
		TraceID:    "trace-1",
		Action:     "search_news",
		ParamsJSON: `{"query":"libur nasional"}`,
		Status:     StatusRunning,
		StartedAt:  time.Now().Add(-1 * time.Second).UTC(),
	}
	if err := s.InsertAuditRecord(ctx, &rec); err != nil {
		t.Fatalf("insert audit: %v", err)
	}
	if rec.ID == 0 {
		t.Fatalf("expected audit id to be set")
	}

	got, err := s.QueryAuditRecords(ctx, AuditQuery{TraceID: "trace-1", Limit: 10})
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(got))
	}
	if got[0].Status != StatusRunning {
		t.Fatalf("unexpected status: %s", got[0].Status)
	}

	status := StatusSuccess
	result := `{"query":"libur nasional","results":[]}`
	finished := time.Now().UTC()
	if err := s.UpdateAuditRecord(ctx, rec.ID, AuditUpdate{
		Status:     &status,
		ResultJSON: &result,
		FinishedAt: &finished,
	}); err != nil {
		t.Fatalf("update audit: %v", err)
	}

	got2, err := s.QueryAuditRecords(ctx, AuditQuery{TraceID: "trace-1", Limit: 10})
	if err != nil {
		t.Fatalf("query audit after update: %v", err)
	}
	if len(got2) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(got2))
	}
	if got2[0].Status != StatusSuccess || got2[0].ResultJSON != result {
		t.Fatalf("unexpected updated record: status=%s result=%s", got2[0].Status, got2[0].ResultJSON)
	}
}

func TestAuditPrune(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		rec := AuditRecord{
			TraceID:   "trace-prune",
			Action:    "search_news",
			Status:    StatusSuccess,
			CreatedAt: now.Add(-time.Duration(5-i) * 24 * time.Hour),
		}
		if err := s.InsertAuditRecord(ctx, &rec); err != nil {
			t.Fatalf("insert audit %d: %v", i, err)
		}
	}

	deleted, err := s.DeleteAuditRecordsKeepLatest(ctx, 3)
	if err != nil {
		t.Fatalf("keep latest: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected delete 2 audit records, got %d", deleted)
	}

	deleted, err = s.DeleteAuditRecordsBefore(ctx, now.Add(-36*time.Hour))
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected delete 2 audit records, got %d", deleted)
	}

	count, err := s.CountAuditRecords(ctx)
	if err != nil {
		t.Fatalf("count audit: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 remaining audit record, got %d", count)
	}
}

func TestGetCheckRecordAndSearch(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	for i, claim := range []string{"Vaksin mengandung chip", "Harga BBM turun besok"} {
		rec := CheckRecord{TraceID: []string{"t-1", "t-2"}[i], InputKind: InputText, Claim: claim, Status: StatusSuccess}
		if err := s.InsertCheckRecord(ctx, &rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.GetCheckRecord(ctx, "t-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Claim != "Harga BBM turun besok" {
		t.Fatalf("unexpected claim: %s", got.Claim)
	}

	if _, err := s.GetCheckRecord(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	found, err := s.QueryCheckRecords(ctx, CheckQuery{Search: "vaksin"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].TraceID != "t-1" {
		t.Fatalf("unexpected search result: %+v", found)
	}
}

func TestOpenInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{InMemory: true})
	if err != nil {
		t.Fatalf("open in-memory storage: %v", err)
	}
	defer s.Close()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestNilStorage(t *testing.T) {
	var s *Storage
	if err := s.InsertCheckRecord(context.Background(), &CheckRecord{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close nil storage: %v", err)
	}
}
