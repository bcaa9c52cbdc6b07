package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"github.com/wwwzy/HoaxBuster/internal/telegram"
)

// botCmd 以长轮询方式运行 Telegram 机器人
var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "运行 Telegram 机器人",
	Long:  `以长轮询方式接收 Telegram 消息：文本按声明核查，图片按截图核查。需要配置 telegram.token 或 TELEGRAM_BOT_TOKEN。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Telegram.Token == "" {
			return errors.New("telegram.token is required (or set TELEGRAM_BOT_TOKEN env var)")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("连接 Telegram 失败: %w", err)
		}
		api.Debug = cfg.Telegram.Debug

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		logger.Info("telegram bot started", slog.String("username", api.Self.UserName))
		return telegram.NewBot(api, a.service, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}
