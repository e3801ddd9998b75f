package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"insider/internal/weaver"
)

type progressModel struct {
	title      string
	events     <-chan weaver.Event
	spinner    spinner.Model
	prog       progress.Model
	items      []moduleItem
	index      map[string]int
	stage      weaver.Stage
	stageLabel string
	failed     bool
	width      int
	done       bool
}

type moduleItem struct {
	path   string
	status string
}

type eventMsg weaver.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders the progress of
// one weaving pass. Modules lists the paths shown as rows: references, the
// target and the output.
func NewProgressModel(title string, modules []string, events <-chan weaver.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]moduleItem, 0, len(modules))
	index := make(map[string]int, len(modules))
	for _, path := range modules {
		if _, dup := index[path]; dup || path == "" {
			continue
		}
		index[path] = len(items)
		items = append(items, moduleItem{path: path, status: "queued"})
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(weaver.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.stageLabel != "" {
		header = fmt.Sprintf("%s (%s)", header, m.stageLabel)
	}
	switch {
	case m.done && m.failed:
		header = "failed: " + header
	case m.done:
		header = "done: " + header
	default:
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	const statusWidth = 12
	nameWidth := max(m.width-statusWidth-4, 20)
	for _, item := range m.items {
		status := styleStatus(item.status).Render(fmt.Sprintf("%12s", item.status))
		fmt.Fprintf(&b, "  %s %s\n", status, truncate(item.path, nameWidth))
	}

	b.WriteString("\n")
	if m.done && !m.failed {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev weaver.Event) tea.Cmd {
	if ev.Status == weaver.StatusError {
		m.failed = true
	}
	label := statusLabel(ev.Stage, ev.Status)
	if ev.Module == "" {
		m.stage = ev.Stage
		if label != "" {
			m.stageLabel = label
		}
		return m.prog.SetPercent(passFraction(ev.Stage, ev.Status))
	}
	if idx, ok := m.index[ev.Module]; ok && label != "" {
		m.items[idx].status = label
	}
	return nil
}

// passFraction maps the pass position to the progress bar.
func passFraction(stage weaver.Stage, status weaver.Status) float64 {
	var from, to float64
	switch stage {
	case weaver.StageOpen:
		from, to = 0, 0.2
	case weaver.StageSettings:
		from, to = 0.2, 0.3
	case weaver.StageProcess:
		from, to = 0.3, 0.8
	case weaver.StageCleanUp:
		from, to = 0.8, 0.9
	case weaver.StageWrite:
		from, to = 0.9, 1
	}
	if status == weaver.StatusDone {
		return to
	}
	return from
}

func statusLabel(stage weaver.Stage, status weaver.Status) string {
	switch status {
	case weaver.StatusQueued:
		return "queued"
	case weaver.StatusDone:
		if stage == weaver.StageOpen {
			return "loaded"
		}
		return "done"
	case weaver.StatusError:
		return "error"
	case weaver.StatusWorking:
		return stageLabel(stage)
	}
	return ""
}

func stageLabel(stage weaver.Stage) string {
	switch stage {
	case weaver.StageOpen:
		return "opening"
	case weaver.StageSettings:
		return "settings"
	case weaver.StageProcess:
		return "weaving"
	case weaver.StageCleanUp:
		return "cleaning"
	case weaver.StageWrite:
		return "writing"
	}
	return ""
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done", "loaded":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "queued":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
