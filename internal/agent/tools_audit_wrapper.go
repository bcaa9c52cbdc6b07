package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/wwwzy/HoaxBuster/internal/storage"
)

// auditTruncateLimit 审计记录中参数、结果与错误的最大字节数
const auditTruncateLimit = 2048

// AuditedTool 在工具执行前后写入审计记录，按 trace_id 与核查记录关联。
// 审计写入失败只记日志，不影响工具结果。
type AuditedTool struct {
	impl   tool.InvokableTool
	store  *storage.Storage
	logger *slog.Logger
}

// wrapWithAudit store 为 nil 时原样返回工具
func wrapWithAudit(t tool.InvokableTool, store *storage.Storage, logger *slog.Logger) tool.InvokableTool {
	if store == nil {
		return t
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuditedTool{impl: t, store: store, logger: logger}
}

func (t *AuditedTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return t.impl.Info(ctx)
}

func (t *AuditedTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	name := "unknown"
	if info, err := t.impl.Info(ctx); err == nil && info != nil {
		name = info.Name
	}
	log := t.logger.With(traceAttr(ctx), slog.String("tool", name))

	rec := &storage.AuditRecord{
		TraceID:    GetTraceID(ctx),
		Action:     name,
		ParamsJSON: truncate(argumentsInJSON, auditTruncateLimit),
		Status:     storage.StatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := t.store.InsertAuditRecord(ctx, rec); err != nil {
		log.WarnContext(ctx, "insert audit record failed", slog.Any("error", err))
	}

	result, runErr := t.impl.InvokableRun(ctx, argumentsInJSON, opts...)
	if rec.ID == 0 {
		return result, runErr
	}

	finished := time.Now().UTC()
	status := storage.StatusSuccess
	up := storage.AuditUpdate{Status: &status, FinishedAt: &finished}
	if runErr != nil {
		status = storage.StatusFailed
		msg := truncate(runErr.Error(), auditTruncateLimit)
		up.ErrorMessage = &msg
	} else {
		summary := auditResult(result)
		up.ResultJSON = &summary
	}

	// 工具超时后 ctx 可能已取消，收尾写入不跟随
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := t.store.UpdateAuditRecord(writeCtx, rec.ID, up); err != nil {
		log.WarnContext(ctx, "update audit record failed", slog.Any("error", err))
	}
	return result, runErr
}

// searchAudit 搜索结果在审计表里的摘要
type searchAudit struct {
	Query string   `json:"query"`
	Count int      `json:"count"`
	URLs  []string `json:"urls"`
}

// auditResult 搜索结果只保留查询词与来源链接，其它输出截断后原样保存
func auditResult(result string) string {
	p, ok := ParseSearchPayload(result)
	if !ok || p.Query == "" {
		return truncate(result, auditTruncateLimit)
	}
	sum := searchAudit{Query: p.Query, Count: len(p.Results), URLs: make([]string, 0, len(p.Results))}
	for _, r := range p.Results {
		sum.URLs = append(sum.URLs, r.URL)
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return truncate(result, auditTruncateLimit)
	}
	return truncate(string(data), auditTruncateLimit)
}

// truncate 按字节截断且不切开多字节字符
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
