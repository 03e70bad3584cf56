package ui

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/bealink/internal/state"
)

// Controller is what the dashboard drives. *coordinator.Coordinator
// satisfies it.
type Controller interface {
	Views() []state.View
	Changes() (<-chan struct{}, func())
	Notices() <-chan state.Notice
	Reresolve(id string) bool
	Wake(ctx context.Context, id string) (string, error)
	Sleep(ctx context.Context, id string) (string, error)
	Shutdown(ctx context.Context, id string) (string, error)
	ToggleMonitor(ctx context.Context, id string) (string, error)
}

// Key bindings.
const (
	KeyQuit       = "q"
	KeyQuitAlt    = "ctrl+c"
	KeyUp         = "up"
	KeyUpK        = "k"
	KeyDown       = "down"
	KeyDownJ      = "j"
	KeyWake       = "w"
	KeySleep      = "s"
	KeyShutdown   = "x"
	KeyDisplay    = "d"
	KeyResolve    = "r"
	KeyConfirm    = "y"
	KeyToggleHelp = "?"
)

// maxNotices is how many recent notices the footer keeps.
const maxNotices = 5

// sparkWidth is the number of samples drawn per row.
const sparkWidth = 20

type changedMsg struct{}

type noticeMsg state.Notice

type actionDoneMsg struct{}

type clockMsg time.Time

// WatchModel is the live dashboard behind `bealink watch`.
type WatchModel struct {
	ctrl    Controller
	ctx     context.Context
	changes <-chan struct{}
	unsub   func()

	views    []state.View
	selected int
	history  *LatencyHistory
	notices  []state.Notice
	confirm  string
	showHelp bool
	spinner  spinner.Model
	now      time.Time
	width    int
	quitting bool
}

// NewWatchModel builds the dashboard. Commands issued from it run under ctx.
func NewWatchModel(ctx context.Context, ctrl Controller) WatchModel {
	changes, unsub := ctrl.Changes()

	sp := spinner.New()
	sp.Spinner = SpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorInfo)

	m := WatchModel{
		ctrl:    ctrl,
		ctx:     ctx,
		changes: changes,
		unsub:   unsub,
		history: NewLatencyHistory(DefaultHistorySize),
		spinner: sp,
		now:     time.Now(),
	}
	m.refresh()
	return m
}

// Init starts listening for state changes and notices.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(
		waitChange(m.changes),
		waitNotice(m.ctrl.Notices()),
		m.spinner.Tick,
		clockTick(),
	)
}

// Update handles messages and updates the model state.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case changedMsg:
		m.refresh()
		return m, waitChange(m.changes)

	case noticeMsg:
		m.notices = append(m.notices, state.Notice(msg))
		if len(m.notices) > maxNotices {
			m.notices = m.notices[len(m.notices)-maxNotices:]
		}
		return m, waitNotice(m.ctrl.Notices())

	case actionDoneMsg:
		return m, nil

	case clockMsg:
		m.now = time.Time(msg)
		return m, clockTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m WatchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.confirm != "" {
		id := m.confirm
		m.confirm = ""
		if key == KeyConfirm {
			return m, m.run(func(ctx context.Context) { _, _ = m.ctrl.Shutdown(ctx, id) })
		}
		return m, nil
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		if m.unsub != nil {
			m.unsub()
		}
		return m, tea.Quit

	case KeyToggleHelp:
		m.showHelp = !m.showHelp

	case KeyUp, KeyUpK:
		if m.selected > 0 {
			m.selected--
		}

	case KeyDown, KeyDownJ:
		if m.selected < len(m.views)-1 {
			m.selected++
		}

	case KeyWake, KeySleep, KeyDisplay, KeyResolve, KeyShutdown:
		id, ok := m.SelectedID()
		if !ok {
			return m, nil
		}
		switch key {
		case KeyWake:
			return m, m.run(func(ctx context.Context) { _, _ = m.ctrl.Wake(ctx, id) })
		case KeySleep:
			return m, m.run(func(ctx context.Context) { _, _ = m.ctrl.Sleep(ctx, id) })
		case KeyDisplay:
			return m, m.run(func(ctx context.Context) { _, _ = m.ctrl.ToggleMonitor(ctx, id) })
		case KeyResolve:
			m.ctrl.Reresolve(id)
		case KeyShutdown:
			m.confirm = id
		}
	}
	return m, nil
}

// run executes a command off the UI loop. Results reach the screen through
// notices and state changes.
func (m WatchModel) run(fn func(ctx context.Context)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		fn(ctx)
		return actionDoneMsg{}
	}
}

func (m *WatchModel) refresh() {
	var keep string
	if id, ok := m.SelectedID(); ok {
		keep = id
	}

	m.views = m.ctrl.Views()
	for _, v := range m.views {
		m.history.Observe(v)
	}
	m.history.Prune(m.views)

	m.selected = 0
	for i, v := range m.views {
		if v.Device.ID == keep {
			m.selected = i
			break
		}
	}
}

// SelectedID returns the id of the highlighted device.
func (m WatchModel) SelectedID() (string, bool) {
	if m.selected < 0 || m.selected >= len(m.views) {
		return "", false
	}
	return m.views[m.selected].Device.ID, true
}

// Notices returns the notices currently shown in the footer.
func (m WatchModel) Notices() []state.Notice {
	return m.notices
}

// View renders the dashboard.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	online := 0
	for _, v := range m.views {
		if v.Health.Online {
			online++
		}
	}
	b.WriteString(TitleStyle().Render("bealink"))
	b.WriteString(MutedStyle().Render("  " + strconv.Itoa(online) + "/" + strconv.Itoa(len(m.views)) + " online"))
	b.WriteString("\n\n")

	if len(m.views) == 0 {
		b.WriteString(MutedStyle().Render("No devices configured. Add one with 'bealink device add'."))
		b.WriteString("\n")
	}

	for i, v := range m.views {
		b.WriteString(m.renderRow(i, v))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for _, n := range m.notices {
		style := MutedStyle()
		if n.Level == state.LevelError {
			style = ErrorStyle()
		}
		b.WriteString(style.Render(n.At.Format("15:04:05") + "  " + n.Message))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m WatchModel) renderRow(i int, v state.View) string {
	marker := "  "
	name := truncate(v.Device.DisplayName(), colName-2)
	if i == m.selected {
		marker = InfoStyle().Render(SymbolSelection) + " "
		name = lipgloss.NewStyle().Bold(true).Render(name)
	}

	status := StatusSymbol(v)
	label := StatusLabel(v)
	if v.ActionInProgress() || v.Resolving {
		status = m.spinner.View()
		label = InfoStyle().Render(label)
	} else if v.Health.Online {
		label = SuccessStyle().Render(label)
	} else {
		label = MutedStyle().Render(label)
	}

	latency := MutedStyle().Render(FormatAge(v.Health.CheckedAt, m.now))
	if v.Health.Online {
		latency = LatencyStyle(v.Health.Latency.Milliseconds()).Render(FormatLatency(v.Health.Latency))
	}

	return marker + status + " " +
		padRight(label, colStatus) +
		padRight(name, colName) +
		padRight(AddressLabel(v), colAddress) +
		padRight(latency, 10) +
		RenderSparkline(m.history.Last(v.Device.ID, sparkWidth), sparkWidth)
}

func (m WatchModel) renderFooter() string {
	if m.confirm != "" {
		name := m.confirm
		for _, v := range m.views {
			if v.Device.ID == m.confirm {
				name = v.Device.DisplayName()
			}
		}
		return WarningStyle().Render("Shut down " + name + "? (y/N)")
	}
	if m.showHelp {
		return MutedStyle().Render(strings.Join([]string{
			"↑/k, ↓/j  select",
			"w         wake (magic packet)",
			"s         sleep",
			"x         shut down (asks first)",
			"d         toggle display",
			"r         resolve hostname again",
			"q         quit",
		}, "\n"))
	}
	return MutedStyle().Render("w wake · s sleep · x shutdown · d display · r resolve · ? help · q quit")
}

func waitChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func waitNotice(ch <-chan state.Notice) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}
