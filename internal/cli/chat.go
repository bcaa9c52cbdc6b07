package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wwwzy/HoaxBuster/internal/logging"
	"github.com/wwwzy/HoaxBuster/internal/tui"
	"github.com/wwwzy/HoaxBuster/internal/ui"
)

var (
	chatUI      string
	chatLogFile string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "进入交互式核查模式",
	Long: `进入交互模式，逐条输入待核查的声明。
每条声明都会完整执行一次核查流程并展示报告。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var uiImpl ui.ChatUI
		switch chatUI {
		case "console", "":
			uiImpl = &ui.ConsoleChatUI{In: os.Stdin, Out: os.Stdout, Width: 100}
		case "tui":
			uiImpl = &tui.ChatUI{}
			// 全屏界面下日志改写到文件或直接丢弃
			if chatLogFile == "" {
				logger = logging.Discard()
			} else {
				f, err := os.OpenFile(chatLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("打开日志文件失败: %w", err)
				}
				defer f.Close()
				logger = logging.New(cfg.LogLevel, cfg.LogFormat, f)
			}
			slog.SetDefault(logger)
		default:
			return fmt.Errorf("未知 ui 类型: %s (支持: console, tui)", chatUI)
		}

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return uiImpl.Run(ctx, a.service)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatUI, "ui", "console", "交互界面类型: console/tui")
	chatCmd.Flags().StringVar(&chatLogFile, "log-file", "", "tui 模式下的日志文件（默认丢弃日志）")
}
