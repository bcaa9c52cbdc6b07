package ui

import (
	"context"

	"github.com/wwwzy/HoaxBuster/internal/checker"
)

// Backend 执行一次核查，*checker.Service 实现了该接口
type Backend interface {
	Check(ctx context.Context, req checker.Request) (*checker.Response, error)
}

// ChatUI 交互式前端：逐条读取声明并展示核查报告
type ChatUI interface {
	Run(ctx context.Context, backend Backend) error
}
