package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/wwwzy/HoaxBuster/internal/search"
)

// scriptedModel 按系统提示词区分角色，返回预设的回复
type scriptedModel struct {
	mu sync.Mutex

	researcher []*schema.Message
	analysis   string
	report     string
	failRole   string

	bound  []*schema.ToolInfo
	inputs map[string][][]*schema.Message
}

func newScriptedModel(researcher ...*schema.Message) *scriptedModel {
	return &scriptedModel{
		researcher: researcher,
		analysis:   "Klaim tidak didukung sumber resmi.\nVerdict: HOAX\nConfidence: 90%",
		report:     "<b>Status</b>: HOAX",
		inputs:     map[string][][]*schema.Message{},
	}
}

func roleOf(input []*schema.Message) string {
	if len(input) == 0 || input[0] == nil {
		return ""
	}
	switch {
	case strings.Contains(input[0].Content, "Peneliti Senior"):
		return "researcher"
	case strings.Contains(input[0].Content, "Verifikator Fakta"):
		return "analyst"
	case strings.Contains(input[0].Content, "Editor Berita"):
		return "writer"
	}
	return ""
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role := roleOf(input)
	m.inputs[role] = append(m.inputs[role], input)
	if role == m.failRole {
		return nil, errors.New(role + " unavailable")
	}

	switch role {
	case "researcher":
		if len(m.researcher) == 0 {
			return schema.AssistantMessage("Tidak perlu pencarian.", nil), nil
		}
		next := m.researcher[0]
		m.researcher = m.researcher[1:]
		return next, nil
	case "analyst":
		return schema.AssistantMessage(m.analysis, nil), nil
	case "writer":
		return schema.AssistantMessage(m.report, nil), nil
	}
	return nil, errors.New("unexpected prompt")
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = tools
	return m, nil
}

func (m *scriptedModel) lastInput(role string) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := m.inputs[role]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

func searchCall(id, query string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Function: schema.FunctionCall{Name: SearchToolName, Arguments: `{"query":"` + query + `"}`},
	}})
}

type fakeSearcher struct {
	results []search.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) ExtractText(context.Context, []byte) (string, error) {
	return f.text, f.err
}

type recordingObserver struct {
	mu    sync.Mutex
	nodes []string
	errs  int
}

func (o *recordingObserver) ObserveNode(node string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nodes = append(o.nodes, node)
	if err != nil {
		o.errs++
	}
}
