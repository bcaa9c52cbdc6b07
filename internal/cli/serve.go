package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wwwzy/HoaxBuster/internal/retention"
	"github.com/wwwzy/HoaxBuster/internal/server"
)

var serveAddr string

// serveCmd 启动 HTTP 服务与后台数据清理
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HoaxBuster HTTP 服务",
	Long: `启动 HTTP 服务，提供 POST /analyze 核查接口、/healthz、/metrics 与历史记录查询。
同时按 retention 配置定时清理过期记录。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 上下文用于优雅退出
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 2. 组装依赖
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		// 3. 后台清理
		pruner, err := retention.NewPruner(a.store, cfg.Retention, logger)
		if err != nil {
			return fmt.Errorf("创建 retention 任务失败: %w", err)
		}
		mgr := retention.NewManager(cfg.Retention, pruner)
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("启动 retention 失败: %w", err)
		}

		// 4. HTTP 服务
		serverCfg := cfg.Server
		if serveAddr != "" {
			serverCfg.Addr = serveAddr
		}
		srv := server.New(serverCfg, a.service, a.metrics.Handler(), logger)
		srvErr := srv.Start(ctx)

		// 5. 优雅停止
		stop()
		mgr.Stop()
		if err := mgr.Wait(); err != nil {
			logger.Error("retention stopped with error", slog.Any("error", err))
		}
		if srvErr != nil {
			return fmt.Errorf("HTTP 服务异常退出: %w", srvErr)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址，覆盖 server.addr")
}
