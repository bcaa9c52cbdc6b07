package tui

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/wwwzy/HoaxBuster/internal/checker"
	"github.com/wwwzy/HoaxBuster/internal/ui"
)

// revealChunk 报告逐块显示时每次追加的字节数
const revealChunk = 64

// ChatUI 基于 bubbletea 的全屏核查界面。
// 核查期间界面独占终端，日志需由调用方重定向。
type ChatUI struct{}

func (u *ChatUI) Run(ctx context.Context, backend ui.Backend) error {
	p := tea.NewProgram(newChatModel(ctx, backend), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type (
	checkDoneMsg struct {
		resp *checker.Response
		err  error
		took time.Duration
	}
	revealMsg struct{}
	clockMsg  time.Time
	ctxDoneMsg struct{}
)

// round 是一轮核查：声明、结果与耗时
type round struct {
	claim string
	resp  *checker.Response
	err   error
	took  time.Duration
}

type chatModel struct {
	ctx     context.Context
	backend ui.Backend

	rounds []round
	// tally 本次会话各结论的次数
	tally map[string]int

	width  int
	height int

	vp    viewport.Model
	input textinput.Model
	spin  spinner.Model

	busy      bool
	startedAt time.Time
	now       time.Time

	pinned    bool
	showSteps bool

	// 最新一份报告逐块显示
	revealing bool
	revealPos int
	revealTxt string

	md *glamour.TermRenderer
}

func newChatModel(ctx context.Context, backend ui.Backend) chatModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	in := textinput.New()
	in.Placeholder = "Tulis klaim yang ingin diperiksa, tekan Enter"
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Focus()

	return chatModel{
		ctx:       ctx,
		backend:   backend,
		tally:     map[string]int{},
		vp:        viewport.New(0, 0),
		input:     in,
		spin:      sp,
		pinned:    true,
		showSteps: true,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitDone(m.ctx))
}

func waitDone(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		<-ctx.Done()
		return ctxDoneMsg{}
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ctxDoneMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case clockMsg:
		if !m.busy {
			return m, nil
		}
		m.now = time.Time(msg)
		return m, clock()

	case checkDoneMsg:
		return m.finish(msg)

	case revealMsg:
		if !m.revealing {
			return m, nil
		}
		m.revealPos = revealStop(m.revealTxt, m.revealPos+revealChunk)
		m.revealing = m.revealPos < len(m.revealTxt)
		m.refresh()
		if m.revealing {
			return m, revealNext()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatModel) resize(w, h int) {
	m.width, m.height = w, h

	// 标题 1 行，输入框 3 行，状态栏 1 行
	m.vp.Width = w
	m.vp.Height = max(1, h-5)
	m.input.Width = max(10, w-6)

	if r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.contentWidth()),
	); err == nil {
		m.md = r
	}
	m.refresh()
}

func (m chatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "pgup":
		m.vp.PageUp()
		m.pinned = false
		return m, nil
	case "pgdown":
		m.vp.PageDown()
		m.pinned = m.vp.AtBottom()
		return m, nil
	case "ctrl+t":
		m.showSteps = !m.showSteps
		m.refresh()
		return m, nil
	case "up":
		if m.input.Value() == "" && len(m.rounds) > 0 {
			m.input.SetValue(m.rounds[len(m.rounds)-1].claim)
			m.input.CursorEnd()
		}
		return m, nil
	case "enter":
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) submit() (tea.Model, tea.Cmd) {
	claim := strings.TrimSpace(m.input.Value())
	if claim == "" || m.busy {
		return m, nil
	}
	switch strings.ToLower(claim) {
	case "exit", "quit", "keluar":
		return m, tea.Quit
	}

	m.input.SetValue("")
	m.revealing = false
	m.rounds = append(m.rounds, round{claim: claim})
	m.busy = true
	m.startedAt = time.Now()
	m.now = m.startedAt
	m.pinned = true
	m.refresh()
	return m, tea.Batch(m.spin.Tick, clock(), runCheck(m.ctx, m.backend, claim))
}

func (m chatModel) finish(msg checkDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if len(m.rounds) == 0 {
		return m, nil
	}
	last := &m.rounds[len(m.rounds)-1]
	last.resp, last.err, last.took = msg.resp, msg.err, msg.took
	m.pinned = true

	if msg.err != nil || msg.resp == nil {
		m.refresh()
		return m, nil
	}
	m.tally[verdictOf(msg.resp)]++
	m.revealing = true
	m.revealTxt = m.renderReport(msg.resp)
	m.revealPos = revealStop(m.revealTxt, revealChunk)
	m.refresh()
	return m, revealNext()
}

func (m *chatModel) refresh() {
	offset := m.vp.YOffset
	m.vp.SetContent(m.renderRounds())
	if m.pinned {
		m.vp.GotoBottom()
		return
	}
	m.vp.SetYOffset(offset)
}

func runCheck(ctx context.Context, backend ui.Backend, claim string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		resp, err := backend.Check(ctx, checker.Request{Text: claim})
		return checkDoneMsg{resp: resp, err: err, took: time.Since(start)}
	}
}

// revealStop 把位置对齐到 rune 起点，不切开多字节字符
func revealStop(s string, pos int) int {
	if pos >= len(s) {
		return len(s)
	}
	for pos > 0 && !utf8.RuneStart(s[pos]) {
		pos--
	}
	return pos
}

func revealNext() tea.Cmd {
	return tea.Tick(30*time.Millisecond, func(time.Time) tea.Msg { return revealMsg{} })
}

func clock() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func verdictOf(resp *checker.Response) string {
	if resp == nil || resp.Verdict == "" {
		return "UNKNOWN"
	}
	return resp.Verdict
}
