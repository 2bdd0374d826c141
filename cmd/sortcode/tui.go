package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/SortCode/internal/app"
	"github.com/John-Robertt/SortCode/internal/config"
	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/lookup"
)

var (
	tuiMode  string
	tuiWard  string
	tuiWatch bool
)

func tuiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "交互式查询界面",
		Long: `交互式查询：每次按键都重新查询。

Tab 切换模式，←/→ 选择区，↑/↓ 在候选间移动，Enter 选定候选，Ctrl+R 重新加载，Esc 退出。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := domain.ParseMode(tuiMode)
			if err != nil {
				return usageErr("%v", err)
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			svc, eff, logger, err := openService(ctx, config.CLIArgs{
				Ward:     tuiWard,
				Watch:    tuiWatch,
				WatchSet: cmd.Flags().Changed("watch"),
			})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			m := newTUIModel(svc, mode)
			if eff.Ward != "" {
				if err := m.selectWard(eff.Ward); err != nil && !errors.Is(err, lookup.ErrNotReady) {
					return usageErr("%v", err)
				}
			}

			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
			svc.Observe(app.ObserverFunc(func(ev app.LoadEvent) { p.Send(loadDoneMsg(ev)) }))

			if eff.Watch {
				w, err := app.NewWatcher(svc, app.DefaultDebounce)
				if err != nil {
					logger.Warn("无法启用 watch", zap.Error(err))
				} else {
					go func() { _ = w.Run(ctx) }()
				}
			}

			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&tuiMode, "mode", "postal", "初始查询模式：postal|code|address")
	cmd.Flags().StringVar(&tuiWard, "ward", "", "初始选择的区")
	cmd.Flags().BoolVar(&tuiWatch, "watch", false, "监视本地数据集并自动重新加载")
	return cmd
}

// loadDoneMsg 由 Service 的 Observer 投递（重新加载完成，成功或失败）。
type loadDoneMsg app.LoadEvent

type tuiStyles struct {
	title    lipgloss.Style
	ward     lipgloss.Style
	wardSel  lipgloss.Style
	code     lipgloss.Style
	ok       lipgloss.Style
	warn     lipgloss.Style
	bad      lipgloss.Style
	cursor   lipgloss.Style
	dim      lipgloss.Style
	resultBx lipgloss.Style
}

func defaultTUIStyles() tuiStyles {
	return tuiStyles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		ward:     lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245")),
		wardSel:  lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("39")),
		code:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		ok:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		warn:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		bad:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		cursor:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		resultBx: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

type tuiModel struct {
	svc  *app.Service
	sess *lookup.Session

	input textinput.Model
	mode  domain.Mode
	wards []string
	// wardIdx 为 -1 表示未选择区。
	wardIdx int

	result domain.Result
	// cursor 指向多候选结果中的分组。
	cursor int
	picked bool

	status string
	width  int
	styles tuiStyles
}

func newTUIModel(svc *app.Service, mode domain.Mode) tuiModel {
	ti := textinput.New()
	ti.Placeholder = "郵便番号 / 仕分けコード / 住所"
	ti.CharLimit = 64
	ti.Width = 40
	ti.Focus()

	m := tuiModel{
		svc:     svc,
		sess:    lookup.NewSession(svc.Engine()),
		input:   ti,
		mode:    mode,
		wards:   svc.Engine().Wards(),
		wardIdx: -1,
		styles:  defaultTUIStyles(),
	}
	m.status = m.loadStatus()
	m.rerun()
	return m
}

func (m tuiModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case loadDoneMsg:
		m.onLoadDone(app.LoadEvent(msg))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			m.mode = m.mode.Next()
			m.rerun()
			return m, nil
		case "left":
			m.shiftWard(-1)
			return m, nil
		case "right":
			m.shiftWard(1)
			return m, nil
		case "up":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down":
			if m.cursor < len(m.result.Groups)-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			m.pick()
			return m, nil
		case "ctrl+r":
			m.status = "重新加载中..."
			svc := m.svc
			return m, func() tea.Msg {
				_ = svc.Load(context.Background())
				return nil
			}
		}
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.rerun()
	}
	return m, cmd
}

// rerun 用当前输入、模式与区重新查询（每次按键触发）。
func (m *tuiModel) rerun() {
	m.result = m.sess.Lookup(m.input.Value(), m.mode)
	m.cursor = 0
	m.picked = false
}

func (m *tuiModel) selectWard(w string) error {
	if err := m.sess.SelectWard(w); err != nil {
		return err
	}
	for i, x := range m.wards {
		if x == w {
			m.wardIdx = i
		}
	}
	m.rerun()
	return nil
}

// shiftWard 在 [未选择, 区1, 区2, ...] 之间循环。
func (m *tuiModel) shiftWard(delta int) {
	n := len(m.wards) + 1
	if n == 1 {
		return
	}
	idx := ((m.wardIdx+1+delta)%n+n)%n - 1
	if idx < 0 {
		m.sess.ClearWard()
		m.wardIdx = -1
		m.rerun()
		return
	}
	if err := m.sess.SelectWard(m.wards[idx]); err != nil {
		m.status = err.Error()
		return
	}
	m.wardIdx = idx
	m.rerun()
}

func (m *tuiModel) pick() {
	if m.picked || len(m.result.Groups) == 0 {
		return
	}
	if m.cursor >= len(m.result.Groups) {
		return
	}
	res, err := m.result.Pick(m.result.Groups[m.cursor].Code)
	if err != nil {
		m.status = err.Error()
		return
	}
	m.result = res
	m.cursor = 0
	m.picked = true
}

func (m *tuiModel) onLoadDone(ev app.LoadEvent) {
	selected := ""
	if m.wardIdx >= 0 && m.wardIdx < len(m.wards) {
		selected = m.wards[m.wardIdx]
	}
	m.wards = m.svc.Engine().Wards()
	m.wardIdx = -1
	m.sess.ClearWard()
	for i, w := range m.wards {
		if w == selected && m.sess.SelectWard(w) == nil {
			m.wardIdx = i
		}
	}

	switch {
	case ev.Err != nil && ev.Kept:
		m.status = "重新加载失败，继续使用旧数据：" + truncate(ev.Err.Error(), 80)
	case ev.Err != nil:
		m.status = "加载失败：" + truncate(ev.Err.Error(), 80)
	default:
		m.status = fmt.Sprintf("已加载 records=%d wards=%d (%s)", ev.Records, ev.Wards, formatShortDuration(ev.Dur))
	}
	m.rerun()
}

func (m tuiModel) loadStatus() string {
	st := m.svc.Engine().Status()
	if !st.Ready {
		if st.Error != "" {
			return "加载失败：" + truncate(st.Error, 80)
		}
		return "数据未就绪"
	}
	return fmt.Sprintf("records=%d wards=%d format=%s", st.Records, st.Wards, st.Format)
}

func (m tuiModel) View() string {
	var b strings.Builder
	s := m.styles

	b.WriteString(s.title.Render("sortcode"))
	b.WriteString(s.dim.Render(fmt.Sprintf("  mode: %s", m.mode)))
	b.WriteString("\n\n")

	b.WriteString(m.wardBar())
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(s.resultBx.Render(m.resultView()))
	b.WriteString("\n")
	b.WriteString(s.dim.Render(m.status))
	b.WriteString("\n")
	b.WriteString(s.dim.Render("Tab 模式 · ←/→ 区 · ↑/↓ 候选 · Enter 选定 · Ctrl+R 重新加载 · Esc 退出"))
	return b.String()
}

func (m tuiModel) wardBar() string {
	s := m.styles
	parts := make([]string, 0, len(m.wards)+1)
	none := s.ward.Render("未选择")
	if m.wardIdx < 0 {
		none = s.wardSel.Render("未选择")
	}
	parts = append(parts, none)
	for i, w := range m.wards {
		if i == m.wardIdx {
			parts = append(parts, s.wardSel.Render(w))
		} else {
			parts = append(parts, s.ward.Render(w))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	if m.width > 0 {
		bar = lipgloss.NewStyle().MaxWidth(m.width).Render(bar)
	}
	return bar
}

func (m tuiModel) resultView() string {
	s := m.styles
	res := m.result
	var b strings.Builder

	switch res.Kind {
	case domain.KindOne, domain.KindManySameCode:
		b.WriteString(s.ok.Render(string(res.Kind)))
		b.WriteString("  ")
		b.WriteString(s.code.Render(res.Code))
		b.WriteString("\n")
		for i, r := range res.Records {
			if i == 5 {
				b.WriteString(s.dim.Render(fmt.Sprintf("  ... 共 %d 件", len(res.Records))))
				b.WriteString("\n")
				break
			}
			b.WriteString("  " + recordLine(r) + "\n")
		}
	case domain.KindManyDifferentCodes:
		b.WriteString(s.warn.Render(string(res.Kind)))
		b.WriteString("\n")
		for i, g := range res.Groups {
			prefix := "  "
			code := g.Code
			if i == m.cursor {
				prefix = s.cursor.Render("> ")
				code = s.cursor.Render(code)
			}
			fmt.Fprintf(&b, "%s%s (%d件) %s\n", prefix, code, len(g.Records), s.dim.Render(truncate(strings.Join(g.Examples, " / "), 60)))
		}
	case domain.KindWardRequired:
		b.WriteString(s.warn.Render(string(res.Kind)))
		b.WriteString("\n")
	default:
		if res.Problem != "" {
			b.WriteString(s.bad.Render(string(res.Kind) + " " + res.Problem))
			b.WriteString("\n")
		} else {
			b.WriteString(s.dim.Render("-"))
			b.WriteString("\n")
		}
	}
	if res.Message != "" {
		b.WriteString(res.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}
