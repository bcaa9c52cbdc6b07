package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/wwwzy/HoaxBuster/internal/vision"
)

// 各节点写入 StepsLog 的进度文案
const (
	StepVision     = "👁️ Membaca teks dari gambar..."
	StepResearcher = "🕵️ Researcher sedang bekerja..."
	StepTools      = "🔎 Mencari berita terkini..."
	StepAnalyst    = "⚖️ Verifikator sedang memverifikasi data..."
	StepWriter     = "✍️ Writer sedang menulis laporan akhir..."
)

// ErrNoClaim 状态中没有任何可核查的消息
var ErrNoClaim = errors.New("no claim to verify")

// Stage 是 Graph 中的一个节点函数：读取完整状态，返回部分更新
type Stage func(ctx context.Context, state PipelineState) (Update, error)

// VisionNode 从图片中提取文本，作为待核查的声明追加到消息中
// 没有图片时返回空更新
func VisionNode(ctx context.Context, state PipelineState, extractor vision.Extractor) (Update, error) {
	if len(state.ImageData) == 0 {
		return Update{}, nil
	}
	if extractor == nil {
		return Update{}, errors.New("vision extractor is not configured")
	}

	text, err := extractor.ExtractText(ctx, state.ImageData)
	if err != nil {
		return Update{}, fmt.Errorf("extract text from image failed: %w", err)
	}

	return Update{
		Messages: []*schema.Message{schema.UserMessage(fmt.Sprintf(VisionClaimPrompt, strings.TrimSpace(text)))},
		StepsLog: []string{StepVision},
	}, nil
}

// ResearcherNode 调用绑定了搜索工具的 ChatModel，由模型决定是否发起搜索
func ResearcherNode(ctx context.Context, state PipelineState, chatModel model.BaseChatModel) (Update, error) {
	if len(state.Messages) == 0 {
		return Update{}, ErrNoClaim
	}

	messages, err := NewResearcherTemplate().Format(ctx, map[string]any{
		"time":    time.Now().Format(time.RFC3339),
		"history": state.Messages,
	})
	if err != nil {
		return Update{}, fmt.Errorf("format researcher template failed: %w", err)
	}

	// 使用 Generate 而不是 Stream，路由需要完整的 ToolCalls
	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return Update{}, fmt.Errorf("researcher generate failed: %w", err)
	}
	if resp == nil {
		return Update{}, errors.New("researcher generate returned no message")
	}

	return Update{
		Messages: []*schema.Message{resp},
		StepsLog: []string{StepResearcher},
	}, nil
}

// AnalystNode 基于最近一次搜索结果对声明做批判性核查，覆盖写 Analysis
func AnalystNode(ctx context.Context, state PipelineState, chatModel model.BaseChatModel) (Update, error) {
	messages, err := NewAnalystTemplate().Format(ctx, map[string]any{
		"claim":    state.Claim(),
		"evidence": latestEvidence(state),
	})
	if err != nil {
		return Update{}, fmt.Errorf("format analyst template failed: %w", err)
	}

	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return Update{}, fmt.Errorf("analyst generate failed: %w", err)
	}
	if resp == nil {
		return Update{}, errors.New("analyst generate returned no message")
	}

	return Update{
		Analysis: strPtr(resp.Content),
		StepsLog: []string{StepAnalyst},
	}, nil
}

// WriterNode 根据核查结论撰写最终报告
// withEvidence 为 true 时同时提供最近一次搜索结果
func WriterNode(ctx context.Context, state PipelineState, chatModel model.BaseChatModel, withEvidence bool) (Update, error) {
	vars := map[string]any{
		"claim":    state.Claim(),
		"analysis": state.Analysis,
	}
	if withEvidence {
		vars["evidence"] = latestEvidence(state)
	}

	messages, err := NewWriterTemplate(withEvidence).Format(ctx, vars)
	if err != nil {
		return Update{}, fmt.Errorf("format writer template failed: %w", err)
	}

	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return Update{}, fmt.Errorf("writer generate failed: %w", err)
	}
	if resp == nil {
		return Update{}, errors.New("writer generate returned no message")
	}

	return Update{
		Messages:    []*schema.Message{resp},
		FinalAnswer: strPtr(resp.Content),
		StepsLog:    []string{StepWriter},
	}, nil
}

func latestEvidence(state PipelineState) string {
	if m := state.LastToolMessage(); m != nil {
		return m.Content
	}
	return NoSearchData
}
