package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/wwwzy/HoaxBuster/internal/checker"
)

const (
	// Telegram 单条消息的长度上限
	maxMessageRunes = 4096
	maxPhotoBytes   = 10 << 20

	usageText = "Halo! Kirimkan teks klaim atau foto tangkapan layar berita, saya akan memeriksa apakah itu HOAX atau FAKTA.\n\nPerintah:\n/start - mulai\n/help - bantuan"
)

// Sender 发送消息；Request 用于不返回 Message 的接口（如 chat action）
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// FileDownloader 获取文件的下载地址
type FileDownloader interface {
	GetFileDirectURL(fileID string) (string, error)
}

// Updater 长轮询获取更新
type Updater interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// API 是 *tgbotapi.BotAPI 满足的全部能力
type API interface {
	Sender
	FileDownloader
	Updater
}

// Checker 执行核查，*checker.Service 实现了该接口
type Checker interface {
	Check(ctx context.Context, req checker.Request) (*checker.Response, error)
}

// Bot 把 Telegram 消息转换为核查请求
type Bot struct {
	api     API
	checker Checker
	client  *http.Client
	logger  *slog.Logger
}

func NewBot(api API, svc Checker, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:     api,
		checker: svc,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// Run 长轮询直到 ctx 取消
func (b *Bot) Run(ctx context.Context) error {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30
		updates, err := b.api.GetUpdates(u)
		if err != nil {
			b.logger.WarnContext(ctx, "telegram polling failed", slog.Any("error", err))
			if !sleepCtx(ctx, 3*time.Second) {
				return nil
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}
		if len(updates) == 0 && !sleepCtx(ctx, 200*time.Millisecond) {
			return nil
		}
	}
}

// HandleUpdate 处理单条更新：命令、图片或文本
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.reply(ctx, chatID, msg.MessageID, usageText, "")
		default:
			b.reply(ctx, chatID, msg.MessageID, "Perintah tidak dikenal. Ketik /help untuk bantuan.", "")
		}
		return
	}

	var req checker.Request
	switch {
	case len(msg.Photo) > 0:
		img, err := b.downloadPhoto(ctx, largestPhoto(msg.Photo))
		if err != nil {
			b.logger.WarnContext(ctx, "download telegram photo failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
			b.reply(ctx, chatID, msg.MessageID, "Maaf, gambar tidak bisa diunduh.", "")
			return
		}
		req.Image = img
	case strings.TrimSpace(msg.Text) != "":
		req.Text = msg.Text
	default:
		b.reply(ctx, chatID, msg.MessageID, usageText, "")
		return
	}

	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.DebugContext(ctx, "send chat action failed", slog.Any("error", err))
	}

	resp, err := b.checker.Check(ctx, req)
	if err != nil {
		b.logger.WarnContext(ctx, "telegram check failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		b.reply(ctx, chatID, msg.MessageID, errorText(err), "")
		return
	}
	b.reply(ctx, chatID, msg.MessageID, FormatReply(resp), tgbotapi.ModeHTML)
}

// FormatReply 报告正文 + 结论行 + 来源列表
func FormatReply(resp *checker.Response) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(resp.FinalAnswer))

	sb.WriteString("\n\n<i>Verdict: ")
	sb.WriteString(html.EscapeString(resp.Verdict))
	if resp.Confidence >= 0 {
		fmt.Fprintf(&sb, " (%d%%)", resp.Confidence)
	}
	sb.WriteString("</i>")

	if len(resp.Sources) > 0 {
		sb.WriteString("\n\n<b>Sumber:</b>")
		for i, src := range resp.Sources {
			title := src.Title
			if strings.TrimSpace(title) == "" {
				title = src.URL
			}
			fmt.Fprintf(&sb, "\n%d. <a href=\"%s\">%s</a>", i+1, html.EscapeString(src.URL), html.EscapeString(title))
		}
	}
	return sb.String()
}

func errorText(err error) string {
	switch {
	case errors.Is(err, checker.ErrImageNotSupported):
		return "Maaf, pemeriksaan gambar sedang tidak tersedia. Silakan kirim klaim dalam bentuk teks."
	case checker.IsClientError(err):
		return "Maaf, pesan tidak dapat diproses: " + err.Error()
	default:
		return checker.FallbackAnswer
	}
}

// reply 发送回复；HTML 解析失败时以纯文本重发
func (b *Bot) reply(ctx context.Context, chatID int64, replyTo int, text, parseMode string) {
	msg := tgbotapi.NewMessage(chatID, truncateRunes(text, maxMessageRunes))
	msg.ReplyToMessageID = replyTo
	msg.ParseMode = parseMode
	if _, err := b.api.Send(msg); err != nil {
		if parseMode == "" {
			b.logger.WarnContext(ctx, "send telegram message failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
			return
		}
		b.logger.DebugContext(ctx, "send html message failed, retry as plain text", slog.Any("error", err))
		b.reply(ctx, chatID, replyTo, text, "")
	}
}

func (b *Bot) downloadPhoto(ctx context.Context, photo tgbotapi.PhotoSize) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(photo.FileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download photo: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", maxPhotoBytes)
	}
	return data, nil
}

// largestPhoto 按像素面积选出最大的一张
func largestPhoto(photos []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := photos[0]
	for _, p := range photos[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
