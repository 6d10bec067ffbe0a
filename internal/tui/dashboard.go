// Package tui provides the terminal dashboard for pulse.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/loopwork/pulse/internal/api"
	"github.com/loopwork/pulse/internal/livestate"
)

// visibleMessages is how many recent messages a channel pane shows.
// Purely presentational; the store itself retains livestate.MaxMessages.
const visibleMessages = 6

// Colors
var (
	purple   = lipgloss.Color("#7C3AED")
	green    = lipgloss.Color("#10B981")
	yellow   = lipgloss.Color("#F59E0B")
	blue     = lipgloss.Color("#3B82F6")
	gray     = lipgloss.Color("#6B7280")
	darkGray = lipgloss.Color("#374151")
	white    = lipgloss.Color("#F9FAFB")
)

// Styles
var (
	logoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(white).
			Background(purple).
			Padding(0, 2)

	sidebarStyle = lipgloss.NewStyle().
			Width(28).
			Border(lipgloss.RoundedBorder(), false, true, false, false).
			BorderForeground(darkGray).
			Padding(1, 1)

	channelStyle = lipgloss.NewStyle().
			Padding(0, 1)

	channelSelectedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(purple).
				Background(lipgloss.Color("#EDE9FE")).
				Padding(0, 1)

	contentStyle = lipgloss.NewStyle().
			Padding(1, 2)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(darkGray).
			Padding(0, 1).
			MarginBottom(1)

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(white)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(purple)

	dimStyle = lipgloss.NewStyle().
			Foreground(gray)

	typingStyle = lipgloss.NewStyle().
			Foreground(yellow).
			Italic(true)

	userStyle = lipgloss.NewStyle().Foreground(blue)
	botStyle  = lipgloss.NewStyle().Foreground(purple).Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(gray).
			Background(darkGray).
			Padding(0, 2)
)

// Model is the dashboard TUI model.
type Model struct {
	engine *livestate.Engine
	cache  *api.ChannelCache
	ctx    context.Context

	channels []api.Channel
	selected int

	width   int
	height  int
	loading bool
	err     error

	spinner spinner.Model
}

// Messages
type tickMsg time.Time
type storeChangedMsg struct{}
type errMsg struct{ err error }
type channelsMsg []api.Channel

// NewDashboard creates the dashboard over the engine and channel cache.
func NewDashboard(ctx context.Context, engine *livestate.Engine, cache *api.ChannelCache) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(purple)

	return Model{
		engine:  engine,
		cache:   cache,
		ctx:     ctx,
		loading: true,
		spinner: s,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.loadChannels(),
		m.waitForStore(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(15*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) loadChannels() tea.Cmd {
	return func() tea.Msg {
		channels, err := m.cache.Channels(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return channelsMsg(channels)
	}
}

// waitForStore blocks until the engine publishes a new snapshot.
func (m Model) waitForStore() tea.Cmd {
	return func() tea.Msg {
		<-m.engine.Updates()
		return storeChangedMsg{}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.selected < len(m.channels)-1 {
				m.selected++
			}

		case "r":
			m.cache.Invalidate()
			return m, m.loadChannels()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(m.loadChannels(), tickCmd())

	case channelsMsg:
		m.loading = false
		m.err = nil
		m.channels = msg
		if m.selected >= len(m.channels) {
			m.selected = len(m.channels) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
		// Newly observed channels trigger their one-shot history backfill.
		ids := make([]string, len(m.channels))
		for i, ch := range m.channels {
			ids[i] = ch.ID
		}
		m.engine.ObserveChannels(m.ctx, ids)

	case storeChangedMsg:
		return m, m.waitForStore()

	case errMsg:
		m.loading = false
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	sidebar := m.renderSidebar()
	content := m.renderContent()
	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	help := helpStyle.Width(m.width).Render("↑/↓ j/k: channels  •  r: refresh  •  q: quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, main, help)
}

func (m Model) renderHeader() string {
	totals := m.engine.Snapshot().Totals()
	stats := fmt.Sprintf("  %s workers  %s branches",
		statStyle.Render(fmt.Sprintf("%d", totals.Workers)),
		statStyle.Render(fmt.Sprintf("%d", totals.Branches)))

	left := logoStyle.Render("⚡ pulse")
	if m.loading {
		stats += "  " + m.spinner.View() + dimStyle.Render("connecting")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, left, stats)
}

func (m Model) renderSidebar() string {
	var items []string
	items = append(items, cardTitleStyle.Render("📡 Channels"))
	items = append(items, "")

	if m.err != nil {
		items = append(items, dimStyle.Render("channel list unavailable"))
	}
	if len(m.channels) == 0 && m.err == nil {
		items = append(items, dimStyle.Render("no channels yet"))
	}

	store := m.engine.Snapshot()
	for i, ch := range m.channels {
		style := channelStyle
		if i == m.selected {
			style = channelSelectedStyle
		}

		label := fmt.Sprintf("%s (%s)", truncate(ch.DisplayName(), 16), ch.Platform)
		if c := store.Channel(ch.ID); c != nil {
			if n := len(c.Workers) + len(c.Branches); n > 0 {
				label += fmt.Sprintf(" ●%d", n)
			}
			if c.Typing {
				label += " ✎"
			}
		}
		items = append(items, style.Render(label))
	}

	return sidebarStyle.Height(m.height - 4).Render(strings.Join(items, "\n"))
}

func (m Model) renderContent() string {
	contentWidth := m.width - 32
	if len(m.channels) == 0 {
		return contentStyle.Width(contentWidth).Render(dimStyle.Render("Waiting for channels..."))
	}

	ch := m.channels[m.selected]
	c := m.engine.Snapshot().Channel(ch.ID)

	var sections []string
	sections = append(sections, cardTitleStyle.Render(fmt.Sprintf("📡 %s", ch.DisplayName())), "")
	sections = append(sections, m.renderMessages(c, contentWidth))
	sections = append(sections, m.renderWorkers(c, contentWidth))
	sections = append(sections, m.renderBranches(c, contentWidth))

	return contentStyle.Width(contentWidth).Height(m.height - 4).Render(strings.Join(sections, "\n"))
}

func (m Model) renderMessages(c *livestate.ChannelLiveState, width int) string {
	var lines []string
	lines = append(lines, cardTitleStyle.Render("💬 Recent"))

	if c == nil || len(c.Messages) == 0 {
		hint := "no messages yet"
		if c != nil && c.History == livestate.HistoryFailed {
			hint = "history unavailable; showing live traffic only"
		}
		lines = append(lines, dimStyle.Render("  "+hint))
	} else {
		msgs := c.Messages
		if len(msgs) > visibleMessages {
			msgs = msgs[len(msgs)-visibleMessages:]
		}
		for _, msg := range msgs {
			ts := dimStyle.Render(time.UnixMilli(msg.Timestamp).Format("15:04:05"))
			who := botStyle.Render("bot")
			if msg.Sender == livestate.SenderUser {
				name := msg.SenderName
				if name == "" {
					name = "user"
				}
				who = userStyle.Render(name)
			}
			lines = append(lines, fmt.Sprintf("  %s %s  %s", ts, who, truncate(msg.Text, width-24)))
		}
	}

	if c != nil && c.Typing {
		lines = append(lines, typingStyle.Render("  ✎ typing..."))
	}

	return cardStyle.Width(width - 4).Render(strings.Join(lines, "\n"))
}

func (m Model) renderWorkers(c *livestate.ChannelLiveState, width int) string {
	var lines []string
	lines = append(lines, cardTitleStyle.Render("🛠  Workers"))

	if c == nil || len(c.Workers) == 0 {
		lines = append(lines, dimStyle.Render("  none active"))
	} else {
		for _, w := range sortedWorkers(c.Workers) {
			tool := ""
			if w.CurrentTool != "" {
				tool = " ⚙ " + w.CurrentTool
			}
			age := dimStyle.Render(since(w.StartedAt))
			lines = append(lines, fmt.Sprintf("  %s %s [%s] %d calls%s %s",
				statStyle.Render("●"), truncate(w.Task, 30), w.Status, w.ToolCalls, tool, age))
		}
	}

	return cardStyle.Width(width - 4).Render(strings.Join(lines, "\n"))
}

func (m Model) renderBranches(c *livestate.ChannelLiveState, width int) string {
	var lines []string
	lines = append(lines, cardTitleStyle.Render("🌿 Branches"))

	if c == nil || len(c.Branches) == 0 {
		lines = append(lines, dimStyle.Render("  none active"))
	} else {
		for _, b := range sortedBranches(c.Branches) {
			tool := ""
			if b.CurrentTool != "" {
				tool = " ⚙ " + b.CurrentTool
			} else if b.LastTool != "" {
				tool = " " + dimStyle.Render("last: "+b.LastTool)
			}
			age := dimStyle.Render(since(b.StartedAt))
			lines = append(lines, fmt.Sprintf("  %s %s %d calls%s %s",
				lipgloss.NewStyle().Foreground(green).Render("●"),
				truncate(b.Description, 34), b.ToolCalls, tool, age))
		}
	}

	return cardStyle.Width(width - 4).Render(strings.Join(lines, "\n"))
}

func sortedWorkers(m map[string]livestate.ActiveWorker) []livestate.ActiveWorker {
	out := make([]livestate.ActiveWorker, 0, len(m))
	for _, w := range m {
		out = append(out, w)
	}
	sortByStart(out, func(w livestate.ActiveWorker) time.Time { return w.StartedAt })
	return out
}

func sortedBranches(m map[string]livestate.ActiveBranch) []livestate.ActiveBranch {
	out := make([]livestate.ActiveBranch, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sortByStart(out, func(b livestate.ActiveBranch) time.Time { return b.StartedAt })
	return out
}

func sortByStart[T any](items []T, start func(T) time.Time) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && start(items[j]).Before(start(items[j-1])); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func since(t time.Time) string {
	d := time.Since(t).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if max < 4 {
		max = 4
	}
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
