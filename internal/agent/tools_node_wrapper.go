package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ErrUnknownTool 模型请求了一个未注册的工具
var ErrUnknownTool = errors.New("unknown tool")

// ToolRegistry 持有 eino ToolsNode 以及已注册的工具名
type ToolRegistry struct {
	node  *compose.ToolsNode
	names map[string]struct{}
}

// NewToolRegistry 创建 eino ToolsNode：按请求顺序串行执行，参数先经 sanitizeArguments 修正，
// 工具报错由中间件转换为错误载荷
func NewToolRegistry(ctx context.Context, tools []tool.InvokableTool, logger *slog.Logger) (*ToolRegistry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	names := make(map[string]struct{}, len(tools))
	base := make([]tool.BaseTool, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tool info: %w", err)
		}
		if _, dup := names[info.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name: %s", info.Name)
		}
		names[info.Name] = struct{}{}
		base = append(base, t)
	}

	tn, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               base,
		ExecuteSequentially: true,
		ToolArgumentsHandler: func(_ context.Context, _, arguments string) (string, error) {
			return sanitizeArguments(arguments), nil
		},
		ToolCallMiddlewares: []compose.ToolMiddleware{{Invokable: errorAsPayload(logger)}},
	})
	if err != nil {
		return nil, fmt.Errorf("create tools node: %w", err)
	}
	return &ToolRegistry{node: tn, names: names}, nil
}

// errorAsPayload 把工具错误写成 Tool 消息内容，流程继续进入 Analyst
func errorAsPayload(logger *slog.Logger) compose.InvokableToolMiddleware {
	return func(next compose.InvokableToolEndpoint) compose.InvokableToolEndpoint {
		return func(ctx context.Context, in *compose.ToolInput) (*compose.ToolOutput, error) {
			out, err := next(ctx, in)
			if err != nil {
				logger.WarnContext(ctx, "tool call failed", traceAttr(ctx), slog.String("tool", in.Name), slog.Any("error", err))
				return &compose.ToolOutput{Result: errorPayload(in.Name, err)}, nil
			}
			return out, nil
		}
	}
}

// ToolsNode 执行最近一条 Assistant 消息中的全部工具调用，按请求顺序返回 Tool 消息。
// 含未注册工具时整个请求失败，且不执行任何工具。
func ToolsNode(ctx context.Context, state PipelineState, reg *ToolRegistry) (Update, error) {
	last := state.LastMessage()
	if last == nil || last.Role != schema.Assistant || len(last.ToolCalls) == 0 {
		return Update{}, nil
	}
	if reg == nil || reg.node == nil {
		return Update{}, errors.New("tools node not initialized")
	}

	for _, tc := range last.ToolCalls {
		if _, ok := reg.names[tc.Function.Name]; !ok {
			return Update{}, fmt.Errorf("%w: %s", ErrUnknownTool, tc.Function.Name)
		}
	}

	outputs, err := reg.node.Invoke(ctx, last)
	if err != nil {
		return Update{}, err
	}

	return Update{
		Messages: outputs,
		StepsLog: []string{StepTools},
	}, nil
}

// sanitizeArguments 模型偶尔返回空或不完整的参数 JSON，统一修正为 {}
func sanitizeArguments(args string) string {
	args = strings.TrimSpace(args)
	if args == "" || args == "null" || !json.Valid([]byte(args)) {
		return "{}"
	}
	return args
}

// PendingToolCalls 返回最后一条消息上尚未执行的工具调用
func PendingToolCalls(state PipelineState) []schema.ToolCall {
	last := state.LastMessage()
	if last == nil || last.Role != schema.Assistant {
		return nil
	}
	return last.ToolCalls
}
