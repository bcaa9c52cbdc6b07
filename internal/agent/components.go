package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/wwwzy/HoaxBuster/internal/config"
)

// NewChatModel 初始化 Ark ChatModel
// 进程启动时创建一次，通过参数注入到各个节点
func NewChatModel(ctx context.Context, arkConfig config.ArkConfig) (model.ToolCallingChatModel, error) {
	if arkConfig.APIKey == "" || arkConfig.ModelID == "" {
		return nil, fmt.Errorf("ARK_API_KEY, ARK_MODEL_ID must be set")
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:  arkConfig.APIKey,
		Model:   arkConfig.ModelID,
		BaseURL: arkConfig.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	return chatModel, nil
}
