package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/wwwzy/HoaxBuster/internal/vision"
)

// Node 是 Graph 中节点的标识
type Node string

const (
	NodeVision     Node = "vision"
	NodeResearcher Node = "researcher"
	NodeTools      Node = "tools"
	NodeAnalyst    Node = "analyst"
	NodeWriter     Node = "writer"
)

func (n Node) String() string { return string(n) }

// maxToolRounds 每个请求最多执行的工具轮次
const maxToolRounds = 1

// NodeObserver 接收每个节点的耗时与结果，用于指标采集
type NodeObserver interface {
	ObserveNode(node string, duration time.Duration, err error)
}

// Config 构建 Pipeline 所需的依赖
type Config struct {
	// ChatModel 为必填，Researcher 使用其绑定工具后的副本
	ChatModel model.ToolCallingChatModel
	// Tools 供 Researcher 调用的工具
	Tools []tool.InvokableTool
	// Vision 可选，为空时 Graph 不包含 vision 节点
	Vision vision.Extractor
	// WriterEvidence 为 true 时 Writer 额外读取最近一次搜索结果
	WriterEvidence bool

	Observer NodeObserver
	Logger   *slog.Logger
}

// Pipeline 是编译后的核查流程，无跨请求状态，可并发调用
type Pipeline struct {
	runnable  compose.Runnable[PipelineState, PipelineState]
	hasVision bool
	observer  NodeObserver
	logger    *slog.Logger
}

// RouteAfterResearcher 只检查最后一条消息：有待执行的工具调用时去 tools，否则去 analyst
func RouteAfterResearcher(state PipelineState) Node {
	if len(PendingToolCalls(state)) > 0 {
		return NodeTools
	}
	return NodeAnalyst
}

// NewPipeline 构建并编译核查流程图
func NewPipeline(ctx context.Context, cfg Config) (*Pipeline, error) {
	if cfg.ChatModel == nil {
		return nil, errors.New("chat model is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := NewToolRegistry(ctx, cfg.Tools, logger)
	if err != nil {
		return nil, err
	}

	// 将工具信息绑定到 Researcher 使用的 ChatModel
	toolsInfo, err := GetToolsInfo(ctx, cfg.Tools)
	if err != nil {
		return nil, err
	}
	researcherModel, err := cfg.ChatModel.WithTools(toolsInfo)
	if err != nil {
		return nil, fmt.Errorf("bind tools to chat model failed: %w", err)
	}

	p := &Pipeline{
		hasVision: cfg.Vision != nil,
		observer:  cfg.Observer,
		logger:    logger,
	}

	stages := map[Node]Stage{
		NodeResearcher: func(ctx context.Context, s PipelineState) (Update, error) {
			return ResearcherNode(ctx, s, researcherModel)
		},
		NodeTools: func(ctx context.Context, s PipelineState) (Update, error) {
			return ToolsNode(ctx, s, registry)
		},
		NodeAnalyst: func(ctx context.Context, s PipelineState) (Update, error) {
			return AnalystNode(ctx, s, cfg.ChatModel)
		},
		NodeWriter: func(ctx context.Context, s PipelineState) (Update, error) {
			return WriterNode(ctx, s, cfg.ChatModel, cfg.WriterEvidence)
		},
	}
	if cfg.Vision != nil {
		stages[NodeVision] = func(ctx context.Context, s PipelineState) (Update, error) {
			return VisionNode(ctx, s, cfg.Vision)
		}
	}

	runnable, err := p.buildGraph(ctx, stages)
	if err != nil {
		return nil, err
	}
	p.runnable = runnable
	return p, nil
}

// buildGraph 构建处理流程图
// START -> [vision ->] researcher -> (router) -> {tools -> analyst, analyst} -> writer -> END
func (p *Pipeline) buildGraph(ctx context.Context, stages map[Node]Stage) (compose.Runnable[PipelineState, PipelineState], error) {
	g := compose.NewGraph[PipelineState, PipelineState]()

	// 1. 添加节点，合并逻辑统一在 wrap 中完成
	order := []Node{NodeVision, NodeResearcher, NodeTools, NodeAnalyst, NodeWriter}
	for _, n := range order {
		stage, ok := stages[n]
		if !ok {
			continue
		}
		if err := g.AddLambdaNode(string(n), compose.InvokableLambda(p.wrap(n, stage))); err != nil {
			return nil, fmt.Errorf("add node %s: %w", n, err)
		}
	}

	// 2. 添加边
	entry := NodeResearcher
	if _, ok := stages[NodeVision]; ok {
		entry = NodeVision
		if err := g.AddEdge(string(NodeVision), string(NodeResearcher)); err != nil {
			return nil, err
		}
	}
	if err := g.AddEdge(compose.START, string(entry)); err != nil {
		return nil, err
	}

	// 3. 添加分支：Researcher -> Tools OR Analyst
	err := g.AddBranch(string(NodeResearcher), compose.NewGraphBranch(func(ctx context.Context, state PipelineState) (string, error) {
		next := RouteAfterResearcher(state)
		p.logger.DebugContext(ctx, "route after researcher", traceAttr(ctx), slog.String("next", next.String()))
		return string(next), nil
	}, map[string]bool{
		string(NodeTools):   true,
		string(NodeAnalyst): true,
	}))
	if err != nil {
		return nil, err
	}

	// Tools 之后固定进入 Analyst，不会回到 Researcher
	if err := g.AddEdge(string(NodeTools), string(NodeAnalyst)); err != nil {
		return nil, err
	}
	if err := g.AddEdge(string(NodeAnalyst), string(NodeWriter)); err != nil {
		return nil, err
	}
	if err := g.AddEdge(string(NodeWriter), compose.END); err != nil {
		return nil, err
	}

	// 4. 编译 Graph
	return g.Compile(ctx, compose.WithGraphName("hoaxbuster"))
}

// runTrace 记录一次执行经过的节点和首个节点错误
type runTrace struct {
	mu    sync.Mutex
	nodes []Node
	err   error
}

type runTraceKey struct{}

func (t *runTrace) visit(n Node) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = append(t.nodes, n)
	count := 0
	for _, v := range t.nodes {
		if v == n {
			count++
		}
	}
	return count
}

func (t *runTrace) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

// wrap 把 Stage 适配为 Graph 节点：执行节点、记录耗时、按字段策略合并更新
func (p *Pipeline) wrap(n Node, stage Stage) func(ctx context.Context, state PipelineState) (PipelineState, error) {
	return func(ctx context.Context, state PipelineState) (PipelineState, error) {
		trace, _ := ctx.Value(runTraceKey{}).(*runTrace)
		if trace != nil {
			if visits := trace.visit(n); n == NodeTools && visits > maxToolRounds {
				err := fmt.Errorf("node %s: exceeded %d tool round(s)", n, maxToolRounds)
				trace.fail(err)
				return state, err
			}
		}

		start := time.Now()
		p.logger.DebugContext(ctx, "node started", traceAttr(ctx), slog.String("node", n.String()))

		update, err := stage(ctx, state)
		elapsed := time.Since(start)
		if p.observer != nil {
			p.observer.ObserveNode(n.String(), elapsed, err)
		}
		if err != nil {
			err = fmt.Errorf("node %s: %w", n, err)
			p.logger.ErrorContext(ctx, "node failed", traceAttr(ctx), slog.String("node", n.String()), slog.Duration("duration", elapsed), slog.Any("error", err))
			if trace != nil {
				trace.fail(err)
			}
			return state, err
		}

		p.logger.InfoContext(ctx, "node finished", traceAttr(ctx), slog.String("node", n.String()), slog.Duration("duration", elapsed),
			slog.Int("messages", len(update.Messages)), slog.Int("steps", len(update.StepsLog)))
		return Merge(state, update), nil
	}
}

// HasVision 表示流程是否包含 vision 节点
func (p *Pipeline) HasVision() bool {
	return p != nil && p.hasVision
}

// Run 从初始状态执行到终点，返回最终状态
// 任意节点失败都会使整个请求失败，不做重试
func (p *Pipeline) Run(ctx context.Context, initial PipelineState) (PipelineState, error) {
	final, _, err := p.RunTrace(ctx, initial)
	return final, err
}

// RunTrace 与 Run 相同，额外返回按执行顺序经过的节点
func (p *Pipeline) RunTrace(ctx context.Context, initial PipelineState) (PipelineState, []Node, error) {
	if p == nil || p.runnable == nil {
		return PipelineState{}, nil, errors.New("pipeline not initialized")
	}

	trace := &runTrace{}
	ctx = context.WithValue(ctx, runTraceKey{}, trace)

	final, err := p.runnable.Invoke(ctx, initial)

	trace.mu.Lock()
	nodes := append([]Node(nil), trace.nodes...)
	nodeErr := trace.err
	trace.mu.Unlock()

	if err != nil {
		// 优先返回节点自身的错误，便于调用方使用 errors.Is 判断
		if nodeErr != nil {
			return PipelineState{}, nodes, nodeErr
		}
		return PipelineState{}, nodes, fmt.Errorf("run pipeline: %w", err)
	}
	return final, nodes, nil
}
