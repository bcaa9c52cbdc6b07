package ui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/wwwzy/HoaxBuster/internal/checker"
)

var (
	boldTagRe   = regexp.MustCompile(`(?is)<(?:b|strong)>(.*?)</(?:b|strong)>`)
	italicTagRe = regexp.MustCompile(`(?is)<(?:i|em)>(.*?)</(?:i|em)>`)
	linkTagRe   = regexp.MustCompile(`(?is)<a\s+href="([^"]*)"\s*>(.*?)</a>`)
	brTagRe     = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTagRe    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// HTMLToMarkdown 把报告中 Telegram 风格的 HTML 标签转换为 Markdown，其余标签去掉
func HTMLToMarkdown(s string) string {
	s = brTagRe.ReplaceAllString(s, "\n")
	s = boldTagRe.ReplaceAllString(s, "**$1**")
	s = italicTagRe.ReplaceAllString(s, "_${1}_")
	s = linkTagRe.ReplaceAllString(s, "[$2]($1)")
	return anyTagRe.ReplaceAllString(s, "")
}

// Markdown 生成完整报告：正文、结论、来源
func Markdown(resp *checker.Response) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(HTMLToMarkdown(resp.FinalAnswer)))
	sb.WriteString("\n\n---\n\n")

	fmt.Fprintf(&sb, "**Verdict:** %s", resp.Verdict)
	if resp.Confidence >= 0 {
		fmt.Fprintf(&sb, " (%d%%)", resp.Confidence)
	}
	if resp.Cached {
		sb.WriteString(" _(cache)_")
	}
	sb.WriteString("\n")

	if len(resp.Sources) > 0 {
		sb.WriteString("\n### Sumber\n\n")
		for _, src := range resp.Sources {
			title := strings.TrimSpace(src.Title)
			if title == "" {
				title = src.URL
			}
			fmt.Fprintf(&sb, "- [%s](%s)\n", title, src.URL)
		}
	}
	return sb.String()
}

// RenderReport 用 glamour 渲染报告，width<=0 时使用 80
func RenderReport(resp *checker.Response, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(Markdown(resp))
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return out, nil
}
