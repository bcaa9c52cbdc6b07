package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/wwwzy/HoaxBuster/internal/agent"
	"github.com/wwwzy/HoaxBuster/internal/cache"
	"github.com/wwwzy/HoaxBuster/internal/metrics"
	"github.com/wwwzy/HoaxBuster/internal/storage"
	"github.com/wwwzy/HoaxBuster/internal/vision"
)

const (
	// FallbackAnswer 流程正常结束但没有生成报告时返回的文本
	FallbackAnswer = "Maaf, gagal memproses"
	// ImageClaimPlaceholder 图片输入时记录中的声明占位文本
	ImageClaimPlaceholder = "[klaim dari gambar]"

	StatusSuccess = "success"

	defaultTimeout = 120 * time.Second
)

var (
	// ErrEmptyRequest 既没有文本也没有图片
	ErrEmptyRequest = errors.New("question or image is required")
	// ErrBothInputs 同时提供了文本和图片
	ErrBothInputs = errors.New("provide either question or image, not both")
	// ErrImageNotSupported 未启用图片识别时收到图片
	ErrImageNotSupported = errors.New("image input is not supported: vision is disabled")
	// ErrHistoryDisabled 未配置存储，无法查询历史
	ErrHistoryDisabled = errors.New("check history is not enabled")
)

// IsClientError 判断错误是否由请求本身引起
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyRequest) ||
		errors.Is(err, ErrBothInputs) ||
		errors.Is(err, ErrImageNotSupported) ||
		errors.Is(err, vision.ErrInvalidImage)
}

// Request 一次核查请求，Text 与 Image 二选一
type Request struct {
	Text  string
	Image []byte
}

// Response 一次核查的结果
type Response struct {
	Status      string         `json:"status"`
	Logs        []string       `json:"logs"`
	FinalAnswer string         `json:"final_answer"`
	Verdict     string         `json:"verdict"`
	Confidence  int            `json:"confidence"`
	Sources     []agent.Source `json:"sources"`
	TraceID     string         `json:"trace_id"`
	Cached      bool           `json:"cached"`
}

// Runner 执行核查流程，*agent.Pipeline 实现了该接口
type Runner interface {
	Run(ctx context.Context, initial agent.PipelineState) (agent.PipelineState, error)
	HasVision() bool
}

type Options struct {
	Pipeline Runner
	// Store/Cache/Metrics 均为可选
	Store   *storage.Storage
	Cache   cache.Cache
	Metrics *metrics.Collector
	Timeout time.Duration
	Logger  *slog.Logger
}

// Service 是前端（HTTP、CLI、Telegram）调用核查流程的统一入口
type Service struct {
	pipeline Runner
	store    *storage.Storage
	cache    cache.Cache
	metrics  *metrics.Collector
	timeout  time.Duration
	logger   *slog.Logger
}

func NewService(opts Options) (*Service, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		pipeline: opts.Pipeline,
		store:    opts.Store,
		cache:    opts.Cache,
		metrics:  opts.Metrics,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}, nil
}

// SupportsImages 表示是否可以处理图片输入
func (s *Service) SupportsImages() bool {
	return s != nil && s.pipeline.HasVision()
}

func (s *Service) validate(req Request) error {
	hasText := strings.TrimSpace(req.Text) != ""
	hasImage := len(req.Image) > 0
	switch {
	case !hasText && !hasImage:
		return ErrEmptyRequest
	case hasText && hasImage:
		return ErrBothInputs
	case hasImage && !s.pipeline.HasVision():
		return ErrImageNotSupported
	}
	return nil
}

// Check 校验请求、执行核查流程并返回结果
// 失败时只返回错误，不返回部分结果
func (s *Service) Check(ctx context.Context, req Request) (*Response, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	traceID := uuid.NewString()
	ctx = agent.WithTraceID(ctx, traceID)
	claim := strings.TrimSpace(req.Text)
	isImage := len(req.Image) > 0

	if !isImage {
		if resp, ok := s.lookupCache(ctx, claim, traceID); ok {
			return resp, nil
		}
	}

	initial := agent.PipelineState{}
	rec := &storage.CheckRecord{
		TraceID:    traceID,
		InputKind:  storage.InputText,
		Claim:      claim,
		Status:     storage.StatusRunning,
		Confidence: -1,
	}
	if isImage {
		initial.ImageData = req.Image
		rec.InputKind = storage.InputImage
		rec.Claim = ImageClaimPlaceholder
	} else {
		initial.Messages = []*schema.Message{schema.UserMessage(claim)}
	}
	s.insertRecord(ctx, rec)

	s.logger.InfoContext(ctx, "check started", slog.String("trace_id", traceID), slog.String("input", rec.InputKind))

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	final, err := s.pipeline.Run(runCtx, initial)
	if err != nil {
		s.logger.ErrorContext(ctx, "check failed", slog.String("trace_id", traceID), slog.Any("error", err))
		s.finishRecord(ctx, rec, nil, err)
		s.metrics.ObserveCheck(storage.StatusFailed, string(agent.VerdictUnknown))
		return nil, fmt.Errorf("check claim: %w", err)
	}

	resp := buildResponse(final, traceID)
	s.countToolFailures(final)
	s.finishRecord(ctx, rec, &final, nil)
	s.metrics.ObserveCheck(storage.StatusSuccess, resp.Verdict)

	if !isImage {
		s.storeCache(ctx, claim, resp)
	}

	s.logger.InfoContext(ctx, "check finished", slog.String("trace_id", traceID),
		slog.String("verdict", resp.Verdict), slog.Int("confidence", resp.Confidence), slog.Int("sources", len(resp.Sources)))
	return resp, nil
}

// Recent 返回最近的核查记录
func (s *Service) Recent(ctx context.Context, limit int) ([]storage.CheckRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.QueryCheckRecords(ctx, storage.CheckQuery{Limit: limit, Desc: true})
}

// Detail 一次核查的完整记录及其工具调用
type Detail struct {
	Check storage.CheckRecord
	Tools []storage.AuditRecord
}

// Lookup 按 trace_id 查询核查详情；未配置存储时返回 ErrHistoryDisabled。
func (s *Service) Lookup(ctx context.Context, traceID string) (*Detail, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	rec, err := s.store.GetCheckRecord(ctx, traceID)
	if err != nil {
		return nil, err
	}
	tools, err := s.store.QueryAuditRecords(ctx, storage.AuditQuery{TraceID: traceID, Limit: 100})
	if err != nil {
		return nil, err
	}
	return &Detail{Check: *rec, Tools: tools}, nil
}

func buildResponse(final agent.PipelineState, traceID string) *Response {
	answer := final.FinalAnswer
	if strings.TrimSpace(answer) == "" {
		answer = FallbackAnswer
	}
	logs := final.StepsLog
	if logs == nil {
		logs = []string{}
	}
	sources := agent.ExtractSources(final.Messages)
	if sources == nil {
		sources = []agent.Source{}
	}
	return &Response{
		Status:      StatusSuccess,
		Logs:        logs,
		FinalAnswer: answer,
		Verdict:     string(agent.ParseVerdict(final.Analysis)),
		Confidence:  agent.ParseConfidence(final.Analysis),
		Sources:     sources,
		TraceID:     traceID,
	}
}

func (s *Service) countToolFailures(final agent.PipelineState) {
	for _, m := range final.Messages {
		if m != nil && m.Role == schema.Tool && agent.IsErrorPayload(m.Content) {
			s.metrics.ToolFailure(m.ToolName)
		}
	}
}

func (s *Service) lookupCache(ctx context.Context, claim, traceID string) (*Response, bool) {
	if s.cache == nil {
		return nil, false
	}
	entry, ok, err := s.cache.Get(ctx, claim)
	if err != nil {
		s.logger.WarnContext(ctx, "cache lookup failed", slog.String("trace_id", traceID), slog.Any("error", err))
		return nil, false
	}
	if !ok || entry == nil {
		return nil, false
	}

	sources := make([]agent.Source, 0, len(entry.Sources))
	for _, src := range entry.Sources {
		sources = append(sources, agent.Source{Title: src.Title, URL: src.URL})
	}
	logs := entry.Logs
	if logs == nil {
		logs = []string{}
	}
	resp := &Response{
		Status:      StatusSuccess,
		Logs:        logs,
		FinalAnswer: entry.FinalAnswer,
		Verdict:     entry.Verdict,
		Confidence:  entry.Confidence,
		Sources:     sources,
		TraceID:     traceID,
		Cached:      true,
	}

	now := time.Now().UTC()
	s.insertRecord(ctx, &storage.CheckRecord{
		TraceID:     traceID,
		InputKind:   storage.InputText,
		Claim:       claim,
		Verdict:     resp.Verdict,
		Confidence:  resp.Confidence,
		SourcesJSON: mustJSON(resp.Sources),
		FinalAnswer: resp.FinalAnswer,
		StepsJSON:   mustJSON(resp.Logs),
		Status:      storage.StatusSuccess,
		Cached:      true,
		StartedAt:   now,
		FinishedAt:  now,
	})
	s.metrics.CacheHit()
	s.metrics.ObserveCheck(storage.StatusSuccess, resp.Verdict)
	s.logger.InfoContext(ctx, "check served from cache", slog.String("trace_id", traceID), slog.String("cached_trace_id", entry.TraceID))
	return resp, true
}

func (s *Service) storeCache(ctx context.Context, claim string, resp *Response) {
	if s.cache == nil {
		return
	}
	sources := make([]cache.Source, 0, len(resp.Sources))
	for _, src := range resp.Sources {
		sources = append(sources, cache.Source{Title: src.Title, URL: src.URL})
	}
	err := s.cache.Set(ctx, claim, cache.Entry{
		TraceID:     resp.TraceID,
		FinalAnswer: resp.FinalAnswer,
		Logs:        resp.Logs,
		Verdict:     resp.Verdict,
		Confidence:  resp.Confidence,
		Sources:     sources,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "cache store failed", slog.String("trace_id", resp.TraceID), slog.Any("error", err))
	}
}

// 记录写入失败只打日志，不影响核查结果
func (s *Service) insertRecord(ctx context.Context, rec *storage.CheckRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.InsertCheckRecord(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "insert check record failed", slog.String("trace_id", rec.TraceID), slog.Any("error", err))
	}
}

func (s *Service) finishRecord(ctx context.Context, rec *storage.CheckRecord, final *agent.PipelineState, runErr error) {
	if s.store == nil || rec.ID == 0 {
		return
	}
	// 请求超时后 ctx 已取消，使用独立的 context 完成收尾写入
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	finishedAt := time.Now().UTC()
	up := storage.CheckUpdate{FinishedAt: &finishedAt}
	if runErr != nil {
		status := storage.StatusFailed
		msg := runErr.Error()
		up.Status = &status
		up.ErrorMessage = &msg
	} else {
		status := storage.StatusSuccess
		verdict := string(agent.ParseVerdict(final.Analysis))
		confidence := agent.ParseConfidence(final.Analysis)
		sources := mustJSON(agent.ExtractSources(final.Messages))
		steps := mustJSON(final.StepsLog)
		up.Status = &status
		up.Verdict = &verdict
		up.Confidence = &confidence
		up.SourcesJSON = &sources
		up.Analysis = &final.Analysis
		up.FinalAnswer = &final.FinalAnswer
		up.StepsJSON = &steps
	}
	if err := s.store.UpdateCheckRecord(writeCtx, rec.ID, up); err != nil {
		s.logger.WarnContext(ctx, "update check record failed", slog.String("trace_id", rec.TraceID), slog.Any("error", err))
	}
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
