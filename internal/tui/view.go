package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/wwwzy/HoaxBuster/internal/checker"
	"github.com/wwwzy/HoaxBuster/internal/ui"
)

var verdictColors = map[string]lipgloss.Color{
	"FACT":       lipgloss.Color("42"),
	"HOAX":       lipgloss.Color("196"),
	"MISLEADING": lipgloss.Color("214"),
	"UNKNOWN":    lipgloss.Color("245"),
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	claimStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("205")).Padding(0, 1)
)

func (m chatModel) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.titleBar(),
		m.vp.View(),
		lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Render(m.input.View()),
		m.statusBar(),
	)
}

func (m chatModel) titleBar() string {
	title := titleStyle.Render("HoaxBuster")
	var parts []string
	for _, v := range []string{"FACT", "HOAX", "MISLEADING", "UNKNOWN"} {
		if n := m.tally[v]; n > 0 {
			parts = append(parts, lipgloss.NewStyle().Foreground(verdictColors[v]).Render(fmt.Sprintf("%s %d", v, n)))
		}
	}
	return spread(m.width, title, strings.Join(parts, dimStyle.Render(" · ")))
}

func (m chatModel) statusBar() string {
	help := dimStyle.Render("Enter periksa · ↑ ulangi · Ctrl+T langkah · PgUp/PgDn gulir · Esc keluar")
	var right string
	if m.busy {
		right = fmt.Sprintf("%s Memeriksa… %ds", m.spin.View(), int(m.now.Sub(m.startedAt)/time.Second))
	}
	return spread(m.width, help, right)
}

// spread 把 left 与 right 分别放在一行的两端
func spread(width int, left, right string) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m chatModel) contentWidth() int {
	if m.width <= 0 {
		return 72
	}
	return max(20, m.width-8)
}

func (m chatModel) renderReport(resp *checker.Response) string {
	md := ui.Markdown(resp)
	if m.md == nil {
		return md
	}
	out, err := m.md.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func (m chatModel) renderRounds() string {
	var b strings.Builder
	for i, r := range m.rounds {
		claim := claimStyle.MaxWidth(max(20, m.width-4)).Render(r.claim)
		b.WriteString(lipgloss.NewStyle().Width(m.width).Align(lipgloss.Right).Render(claim))
		b.WriteString("\n")

		switch {
		case r.err != nil:
			b.WriteString(m.resultBox(failStyle.Render("Gagal: "+r.err.Error()), lipgloss.Color("196")))
		case r.resp != nil:
			if m.showSteps && len(r.resp.Logs) > 0 {
				b.WriteString(dimStyle.Render("  " + strings.Join(r.resp.Logs, "\n  ")))
				b.WriteString("\n")
			}
			body := m.renderReport(r.resp)
			if m.revealing && i == len(m.rounds)-1 {
				body = m.revealTxt[:m.revealPos]
			}
			v := verdictOf(r.resp)
			b.WriteString(m.resultBox(badge(r.resp, r.took)+"\n"+body, verdictColors[v]))
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m chatModel) resultBox(content string, border lipgloss.Color) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(m.contentWidth()).
		Render(content)
}

// badge 报告顶部的结论标签，例如 "HOAX 85% · 12s · cache"
func badge(resp *checker.Response, took time.Duration) string {
	v := verdictOf(resp)
	label := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(verdictColors[v]).Padding(0, 1).Render(v)
	meta := []string{}
	if resp.Confidence >= 0 {
		meta = append(meta, fmt.Sprintf("%d%%", resp.Confidence))
	}
	if took > 0 {
		meta = append(meta, took.Round(100*time.Millisecond).String())
	}
	if resp.Cached {
		meta = append(meta, "cache")
	}
	if len(meta) == 0 {
		return label
	}
	return label + " " + dimStyle.Render(strings.Join(meta, " · "))
}
