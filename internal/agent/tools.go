package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/wwwzy/HoaxBuster/internal/search"
	"github.com/wwwzy/HoaxBuster/internal/storage"
)

// SearchToolName 搜索工具在模型侧的名字
const SearchToolName = "search_news"

// SearchPayload 是搜索工具成功时写入 Tool 消息的内容
type SearchPayload struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// ErrorPayload 是工具失败时写入 Tool 消息的内容
type ErrorPayload struct {
	Error string `json:"error"`
	Tool  string `json:"tool,omitempty"`
}

// SearchTool 把 search.Searcher 包装成 eino 工具
type SearchTool struct {
	searcher search.Searcher
}

// NewSearchTool 创建搜索工具
func NewSearchTool(searcher search.Searcher) *SearchTool {
	return &SearchTool{searcher: searcher}
}

func (t *SearchTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: SearchToolName,
		Desc: "Gunakan tool ini untuk mencari berita, fakta, atau informasi terbaru di internet.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "Kata kunci pencarian",
				Type:     schema.String,
				Required: true,
			},
		}),
	}, nil
}

func (t *SearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	if t.searcher == nil {
		return "", fmt.Errorf("searcher is not configured")
	}
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	results, err := t.searcher.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if results == nil {
		results = []search.Result{}
	}

	data, err := json.Marshal(SearchPayload{Query: query, Results: results})
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(data), nil
}

// GetTools 返回所有可用的工具列表，store 不为空时为工具加上审计
func GetTools(searcher search.Searcher, store *storage.Storage, logger *slog.Logger) []tool.InvokableTool {
	tools := []tool.InvokableTool{
		NewSearchTool(searcher),
	}
	for i := range tools {
		tools[i] = wrapWithAudit(tools[i], store, logger)
	}
	return tools
}

// GetToolsInfo 返回工具描述，用于绑定到 ChatModel
func GetToolsInfo(ctx context.Context, tools []tool.InvokableTool) ([]*schema.ToolInfo, error) {
	toolInfos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tool info: %w", err)
		}
		toolInfos = append(toolInfos, info)
	}
	return toolInfos, nil
}

// ParseSearchPayload 解析 Tool 消息内容，错误载荷返回 ok=false
func ParseSearchPayload(content string) (SearchPayload, bool) {
	var p SearchPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return SearchPayload{}, false
	}
	if IsErrorPayload(content) {
		return SearchPayload{}, false
	}
	return p, true
}

// IsErrorPayload 判断 Tool 消息内容是否为错误载荷
func IsErrorPayload(content string) bool {
	var p ErrorPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return false
	}
	return p.Error != ""
}

func errorPayload(toolName string, err error) string {
	data, mErr := json.Marshal(ErrorPayload{Error: err.Error(), Tool: toolName})
	if mErr != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}
