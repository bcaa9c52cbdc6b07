package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wwwzy/HoaxBuster/internal/checker"
	"github.com/wwwzy/HoaxBuster/internal/ui"
)

var (
	checkImage string
	checkJSON  bool
	checkWidth int
)

// checkCmd 单次核查一条声明或一张图片
var checkCmd = &cobra.Command{
	Use:   "check [claim]",
	Short: "核查一条声明（或通过 --image 核查截图）",
	Example: `  hoaxbuster check "Besok libur nasional mendadak"
  hoaxbuster check --image screenshot.jpg --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		req := checker.Request{Text: strings.Join(args, " ")}
		if checkImage != "" {
			data, err := os.ReadFile(checkImage)
			if err != nil {
				return fmt.Errorf("读取图片失败: %w", err)
			}
			req.Image = data
		}

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.service.Check(ctx, req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if checkJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		for _, step := range resp.Logs {
			fmt.Fprintf(out, "  %s\n", step)
		}
		report, err := ui.RenderReport(resp, checkWidth)
		if err != nil {
			report = ui.Markdown(resp)
		}
		fmt.Fprintln(out, report)
		fmt.Fprintf(out, "trace_id: %s\n", resp.TraceID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkImage, "image", "", "待核查的截图文件路径")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "以 JSON 输出完整结果")
	checkCmd.Flags().IntVar(&checkWidth, "width", 100, "报告换行宽度")
}
