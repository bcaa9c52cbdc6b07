package agent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wwwzy/HoaxBuster/internal/search"
)

func TestVisionNode_NoImageIsNoop(t *testing.T) {
	update, err := VisionNode(context.Background(), textState("klaim"), fakeExtractor{err: errors.New("should not be called")})
	require.NoError(t, err)
	assert.True(t, update.IsEmpty())
}

func TestVisionNode_AppendsClaim(t *testing.T) {
	update, err := VisionNode(context.Background(), PipelineState{ImageData: []byte{1}}, fakeExtractor{text: "Teks hoaks"})
	require.NoError(t, err)
	require.Len(t, update.Messages, 1)
	assert.Equal(t, schema.User, update.Messages[0].Role)
	assert.Contains(t, update.Messages[0].Content, "Teks hoaks")
	assert.Equal(t, []string{StepVision}, update.StepsLog)
}

func TestResearcherNode_NoClaim(t *testing.T) {
	_, err := ResearcherNode(context.Background(), PipelineState{}, newScriptedModel())
	assert.ErrorIs(t, err, ErrNoClaim)
}

func TestToolsNode_ToolErrorBecomesPayload(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	registry, err := NewToolRegistry(ctx, GetTools(&fakeSearcher{err: errors.New("rate limited")}, nil, nil), logger)
	require.NoError(t, err)

	state := textState("klaim")
	state.Messages = append(state.Messages, searchCall("c1", "klaim"))

	update, err := ToolsNode(ctx, state, registry)
	require.NoError(t, err)
	require.Len(t, update.Messages, 1)
	msg := update.Messages[0]
	assert.Equal(t, schema.Tool, msg.Role)
	assert.Equal(t, "c1", msg.ToolCallID)
	assert.Equal(t, SearchToolName, msg.ToolName)
	assert.True(t, IsErrorPayload(msg.Content))
	assert.Contains(t, msg.Content, "rate limited")
	assert.Equal(t, []string{StepTools}, update.StepsLog)
	// 失败日志写入注入的 logger
	assert.Contains(t, logs.String(), "tool call failed")
	assert.Contains(t, logs.String(), "tool="+SearchToolName)
}

func TestToolsNode_OrderAndBadArguments(t *testing.T) {
	ctx := context.Background()
	s := &fakeSearcher{results: []search.Result{{Title: "t", URL: "https://x.example"}}}
	registry, err := NewToolRegistry(ctx, GetTools(s, nil, nil), nil)
	require.NoError(t, err)

	state := textState("klaim")
	state.Messages = append(state.Messages, schema.AssistantMessage("", []schema.ToolCall{
		{ID: "c1", Function: schema.FunctionCall{Name: SearchToolName, Arguments: `{"query":"satu"}`}},
		{ID: "c2", Function: schema.FunctionCall{Name: SearchToolName, Arguments: `{"query":`}},
		{ID: "c3", Function: schema.FunctionCall{Name: SearchToolName, Arguments: `{"query":"tiga"}`}},
	}))

	update, err := ToolsNode(ctx, state, registry)
	require.NoError(t, err)
	require.Len(t, update.Messages, 3)
	assert.Equal(t, "c1", update.Messages[0].ToolCallID)
	assert.Equal(t, "c2", update.Messages[1].ToolCallID)
	assert.Equal(t, "c3", update.Messages[2].ToolCallID)
	// 不完整的参数被修正为 {}，工具因缺少 query 返回错误载荷
	assert.True(t, IsErrorPayload(update.Messages[1].Content))
	assert.Equal(t, []string{"satu", "tiga"}, s.queries)
}

func TestToolsNode_UnknownTool(t *testing.T) {
	ctx := context.Background()
	s := &fakeSearcher{}
	registry, err := NewToolRegistry(ctx, GetTools(s, nil, nil), nil)
	require.NoError(t, err)

	state := textState("klaim")
	state.Messages = append(state.Messages, schema.AssistantMessage("", []schema.ToolCall{
		{ID: "c1", Function: schema.FunctionCall{Name: SearchToolName, Arguments: `{"query":"a"}`}},
		{ID: "c2", Function: schema.FunctionCall{Name: "run_shell", Arguments: `{}`}},
	}))

	_, err = ToolsNode(ctx, state, registry)
	assert.ErrorIs(t, err, ErrUnknownTool)
	// 预检查失败时不执行任何工具
	assert.Empty(t, s.queries)
}

func TestToolsNode_NothingPending(t *testing.T) {
	update, err := ToolsNode(context.Background(), textState("klaim"), nil)
	require.NoError(t, err)
	assert.True(t, update.IsEmpty())
}

func TestNewToolRegistry_Duplicate(t *testing.T) {
	s := &fakeSearcher{}
	tools := append(GetTools(s, nil, nil), NewSearchTool(s))
	_, err := NewToolRegistry(context.Background(), tools, nil)
	assert.ErrorContains(t, err, "duplicate tool name")
}

func TestSanitizeArguments(t *testing.T) {
	assert.Equal(t, "{}", sanitizeArguments(""))
	assert.Equal(t, "{}", sanitizeArguments("null"))
	assert.Equal(t, "{}", sanitizeArguments(`{"query":`))
	assert.Equal(t, `{"query":"a"}`, sanitizeArguments(` {"query":"a"} `))
}

func TestAnalystNode_UsesLatestEvidence(t *testing.T) {
	m := newScriptedModel()
	state := textState("klaim")
	state.Messages = append(state.Messages,
		schema.ToolMessage(`{"query":"lama","results":[]}`, "c1"),
		schema.ToolMessage(`{"query":"baru","results":[]}`, "c2"),
	)

	update, err := AnalystNode(context.Background(), state, m)
	require.NoError(t, err)
	require.NotNil(t, update.Analysis)
	assert.Equal(t, m.analysis, *update.Analysis)
	assert.Empty(t, update.Messages)

	in := m.lastInput("analyst")
	require.NotEmpty(t, in)
	assert.Contains(t, in[len(in)-1].Content, `"query":"baru"`)
	assert.NotContains(t, in[len(in)-1].Content, `"query":"lama"`)
}
