package agent

import (
	"slices"

	"github.com/cloudwego/eino/schema"
)

// PipelineState 定义了在 Graph 中流转的状态
// 每个请求独占一个实例，节点之间按值传递
type PipelineState struct {
	// 对话消息，只追加 (User, Assistant, Tool)
	Messages []*schema.Message `json:"messages"`

	// 用户上传的图片，初始化后只读
	ImageData []byte `json:"image_data,omitempty"`

	// Analyst 的核查结论，覆盖写
	Analysis string `json:"analysis"`

	// Writer 生成的最终报告，覆盖写
	FinalAnswer string `json:"final_answer"`

	// 进度日志，只追加，仅用于展示
	StepsLog []string `json:"steps_log"`
}

// Update 是节点返回的部分状态更新
// 字段的合并策略由类型决定：切片字段追加，指针字段覆盖，nil/空表示不修改
type Update struct {
	Messages    []*schema.Message
	StepsLog    []string
	Analysis    *string
	FinalAnswer *string
}

// IsEmpty 判断更新是否为空
func (u Update) IsEmpty() bool {
	return len(u.Messages) == 0 && len(u.StepsLog) == 0 && u.Analysis == nil && u.FinalAnswer == nil
}

// Merge 按字段策略把 update 合并进 state，返回新的状态，不修改入参
func Merge(state PipelineState, update Update) PipelineState {
	out := state
	if len(update.Messages) > 0 {
		out.Messages = slices.Concat(state.Messages, update.Messages)
	}
	if len(update.StepsLog) > 0 {
		out.StepsLog = slices.Concat(state.StepsLog, update.StepsLog)
	}
	if update.Analysis != nil {
		out.Analysis = *update.Analysis
	}
	if update.FinalAnswer != nil {
		out.FinalAnswer = *update.FinalAnswer
	}
	return out
}

// LastMessage 返回最后一条消息，没有消息时返回 nil
func (s PipelineState) LastMessage() *schema.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// LastToolMessage 从后向前查找最近一条 Tool 消息
func (s PipelineState) LastToolMessage() *schema.Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if m := s.Messages[i]; m != nil && m.Role == schema.Tool {
			return m
		}
	}
	return nil
}

// Claim 返回第一条消息的内容，即待核查的声明
func (s PipelineState) Claim() string {
	if len(s.Messages) == 0 || s.Messages[0] == nil {
		return ""
	}
	return s.Messages[0].Content
}

func strPtr(s string) *string { return &s }
