package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/wwwzy/HoaxBuster/internal/retention"
	"github.com/wwwzy/HoaxBuster/internal/storage"
)

// storageCmd represents the storage command
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "管理存储和数据库",
	Long:  `提供查看数据库概况、清理核查记录与审计记录、查看核查历史的命令。`,
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "显示数据库统计概况",
	RunE:  runInfo,
}

// pruneCmd 立即执行一次清理
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "清理过期的核查记录与审计记录",
	Long:  `忽略定时任务间隔，立即按 retention.keep_days（或 --days）删除过期记录；--keep-audit 额外只保留最近 N 条审计记录。`,
	RunE:  runPrune,
}

// historyCmd 查看最近的核查记录
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "查看最近的核查记录",
	RunE:  runHistory,
}

var (
	pruneDays      int
	pruneKeepAudit int

	historyLimit   int
	historyVerdict string
	historyTrace   string
	historySearch  string
)

func init() {
	rootCmd.AddCommand(storageCmd)
	storageCmd.AddCommand(infoCmd)
	storageCmd.AddCommand(pruneCmd)
	storageCmd.AddCommand(historyCmd)

	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "保留最近 N 天的记录（默认使用 retention.keep_days）")
	pruneCmd.Flags().IntVar(&pruneKeepAudit, "keep-audit", 0, "只保留最近的 N 条审计记录")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "显示条数")
	historyCmd.Flags().StringVar(&historyVerdict, "verdict", "", "按结论过滤（FACT/HOAX/MISLEADING/UNKNOWN）")
	historyCmd.Flags().StringVar(&historyTrace, "trace", "", "查看指定 trace_id 的详情与工具审计")
	historyCmd.Flags().StringVarP(&historySearch, "search", "s", "", "按声明内容模糊搜索")
}

func openStore(ctx context.Context) (*storage.Storage, error) {
	scfg := cfg.Storage
	scfg.Logger = logger
	store, err := storage.Open(ctx, scfg)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	return store, nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	rcfg := cfg.Retention
	if pruneDays > 0 {
		rcfg.KeepDays = pruneDays
	}
	fmt.Fprintf(out, "Pruning records created before %s...\n", rcfg.Cutoff(time.Now().UTC()).Format(time.RFC3339))

	res, err := retention.Prune(ctx, store, rcfg)
	if err != nil {
		return fmt.Errorf("清理失败: %w", err)
	}
	fmt.Fprintf(out, "Deleted %d check records, %d audit records.\n", res.Checks, res.Audits)

	if pruneKeepAudit > 0 {
		n, err := store.DeleteAuditRecordsKeepLatest(ctx, pruneKeepAudit)
		if err != nil {
			return fmt.Errorf("按条数清理审计记录失败: %w", err)
		}
		fmt.Fprintf(out, "Deleted %d audit records beyond the latest %d.\n", n, pruneKeepAudit)
	}

	if count, err := store.CountCheckRecords(ctx); err == nil {
		fmt.Fprintf(out, "Remaining Check Records: %d\n", count)
	}
	if count, err := store.CountAuditRecords(ctx); err == nil {
		fmt.Fprintf(out, "Remaining Audit Records: %d\n", count)
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	// 1. 获取数据库文件信息
	dbPath := cfg.Storage.Path
	if !filepath.IsAbs(dbPath) {
		if absPath, err := filepath.Abs(dbPath); err == nil {
			dbPath = absPath
		}
	}

	var dbSizeStr string
	info, err := os.Stat(dbPath)
	switch {
	case cfg.Storage.InMemory:
		dbSizeStr = "in-memory"
	case os.IsNotExist(err):
		dbSizeStr = "Not Found (Will be created on first run)"
	case err != nil:
		dbSizeStr = fmt.Sprintf("Error: %v", err)
	default:
		dbSizeStr = fmt.Sprintf("%.2f MB (%s)", float64(info.Size())/1024/1024, dbPath)
	}

	// 2. 连接数据库
	store, err := openStore(ctx)
	if err != nil {
		fmt.Fprintf(out, "Database File: %s\n", dbSizeStr)
		return err
	}
	defer store.Close()

	// 3. 获取统计信息
	checkCount, err := store.CountCheckRecords(ctx)
	if err != nil {
		fmt.Fprintf(out, "Error counting check records: %v\n", err)
	}
	auditCount, err := store.CountAuditRecords(ctx)
	if err != nil {
		fmt.Fprintf(out, "Error counting audit records: %v\n", err)
	}

	byVerdict, err := store.CountChecksByVerdict(ctx)
	if err != nil {
		fmt.Fprintf(out, "Error counting verdicts: %v\n", err)
	}

	// 4. 格式化输出
	fmt.Fprintf(out, "Database File: %s\n\n", dbSizeStr)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Table\tCount")
	fmt.Fprintln(w, "-----\t-----")
	fmt.Fprintf(w, "CheckRecords\t%d\n", checkCount)
	fmt.Fprintf(w, "AuditRecords\t%d\n", auditCount)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(byVerdict) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "Verdict\tChecks")
		fmt.Fprintln(w, "-------\t------")
		for _, v := range []string{"FACT", "HOAX", "MISLEADING", "UNKNOWN"} {
			if n, ok := byVerdict[v]; ok {
				fmt.Fprintf(w, "%s\t%d\n", v, n)
			}
		}
		return w.Flush()
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if historyTrace != "" {
		return printTrace(ctx, store, out, historyTrace)
	}

	records, err := store.QueryCheckRecords(ctx, storage.CheckQuery{Verdict: historyVerdict, Search: historySearch, Limit: historyLimit, Desc: true})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No check records.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Time\tTrace\tInput\tStatus\tVerdict\tConf\tClaim")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.TraceID, r.InputKind, r.Status, r.Verdict, formatConfidence(r.Confidence), truncate(r.Claim, 60))
	}
	return w.Flush()
}

func printTrace(ctx context.Context, store *storage.Storage, out io.Writer, traceID string) error {
	r, err := store.GetCheckRecord(ctx, traceID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Trace:      %s\n", r.TraceID)
	fmt.Fprintf(out, "Claim:      %s\n", r.Claim)
	fmt.Fprintf(out, "Status:     %s (cached=%v)\n", r.Status, r.Cached)
	fmt.Fprintf(out, "Verdict:    %s %s\n", r.Verdict, formatConfidence(r.Confidence))
	if r.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:      %s\n", r.ErrorMessage)
	}
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(out, "Duration:   %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(out, "\n%s\n", r.FinalAnswer)

	audits, err := store.QueryAuditRecords(ctx, storage.AuditQuery{TraceID: traceID, Limit: 50})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTool calls: %d\n", len(audits))
	for _, a := range audits {
		fmt.Fprintf(out, "  [%s] %s %s %s\n", a.StartedAt.Local().Format("15:04:05"), a.Action, a.Status, truncate(a.ParamsJSON, 80))
	}
	return nil
}

func formatConfidence(c int) string {
	if c < 0 {
		return "-"
	}
	return fmt.Sprintf("%d%%", c)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
