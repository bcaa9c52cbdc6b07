package agent

import (
	"context"
	"os"
	"testing"

	"github.com/wwwzy/HoaxBuster/internal/config"
	"github.com/wwwzy/HoaxBuster/internal/search"
)

// TestRealPipelineFlow 使用真实的 ChatModel 和搜索服务进行集成测试
// 需要 ARK_API_KEY、ARK_MODEL_ID 和 SERPER_API_KEY 环境变量，未设置时跳过
func TestRealPipelineFlow(t *testing.T) {
	apiKey := os.Getenv("ARK_API_KEY")
	modelID := os.Getenv("ARK_MODEL_ID")
	serperKey := os.Getenv("SERPER_API_KEY")
	if apiKey == "" || modelID == "" || serperKey == "" {
		t.Skip("Skipping real pipeline test: ARK_API_KEY, ARK_MODEL_ID or SERPER_API_KEY not set")
	}

	ctx := context.Background()

	chatModel, err := NewChatModel(ctx, config.ArkConfig{APIKey: apiKey, ModelID: modelID, BaseURL: os.Getenv("ARK_BASE_URL")})
	if err != nil {
		t.Fatalf("Failed to create chat model: %v", err)
	}

	cfg := search.DefaultConfig()
	cfg.APIKey = serperKey
	searcher, err := search.New(cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create searcher: %v", err)
	}

	p, err := NewPipeline(ctx, Config{ChatModel: chatModel, Tools: GetTools(searcher, nil, nil)})
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}

	final, nodes, err := p.RunTrace(ctx, textState("Pemerintah menetapkan besok sebagai hari libur nasional mendadak"))
	if err != nil {
		t.Fatalf("Pipeline execution failed: %v", err)
	}

	t.Logf("Visited nodes: %v", nodes)
	for i, step := range final.StepsLog {
		t.Logf("[%d] %s", i, step)
	}
	t.Logf("Verdict=%s Confidence=%d", ParseVerdict(final.Analysis), ParseConfidence(final.Analysis))

	if final.FinalAnswer == "" {
		t.Fatalf("expected a final answer")
	}
	if nodes[len(nodes)-1] != NodeWriter {
		t.Fatalf("expected pipeline to end at writer, got %v", nodes)
	}
}
