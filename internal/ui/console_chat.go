package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wwwzy/HoaxBuster/internal/checker"
)

type ConsoleChatUI struct {
	In  io.Reader
	Out io.Writer
	// Width 报告换行宽度
	Width int
}

func (u *ConsoleChatUI) Run(ctx context.Context, backend Backend) error {
	in := u.In
	if in == nil {
		return fmt.Errorf("console ui: In is nil")
	}
	out := u.Out
	if out == nil {
		return fmt.Errorf("console ui: Out is nil")
	}

	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "Mode cek fakta HoaxBuster. Ketik exit/quit untuk keluar.")
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Sampai jumpa.")
			return nil
		default:
		}

		fmt.Fprint(out, "Klaim: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("读取输入失败: %w", err)
			}
			// 输入结束，最后一行没有换行时仍然处理
			if strings.TrimSpace(line) == "" {
				fmt.Fprintln(out)
				return nil
			}
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(out, "Sampai jumpa.")
			return nil
		}

		u.checkOnce(ctx, backend, line)
	}
}

// checkOnce 核查失败只打印错误，继续下一轮
func (u *ConsoleChatUI) checkOnce(ctx context.Context, backend Backend, claim string) {
	out := u.Out
	fmt.Fprintln(out, "⏳ Memeriksa...")

	resp, err := backend.Check(ctx, checker.Request{Text: claim})
	if err != nil {
		fmt.Fprintf(out, "Gagal: %v\n\n", err)
		return
	}

	for _, step := range resp.Logs {
		fmt.Fprintf(out, "  %s\n", step)
	}

	report, err := RenderReport(resp, u.Width)
	if err != nil {
		// 渲染失败时输出原始 Markdown
		report = Markdown(resp)
	}
	fmt.Fprintln(out, report)
}
