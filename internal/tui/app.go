// Package tui is a terminal viewer for the live tab tree with restore
// progress.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	bprogress "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabtree/internal/dispatch"
	"github.com/lotas/tabtree/internal/progress"
	"github.com/lotas/tabtree/internal/types"
)

// Handler answers extension requests. The TUI issues the same requests as
// the extension viewer.
type Handler interface {
	Handle(ctx context.Context, req dispatch.Request) dispatch.Response
}

const requestTimeout = 30 * time.Second

// --- Messages ---

type forestLoadedMsg struct {
	forest []*types.TabNode
	err    error
}

type progressMsg struct{ ev progress.Event }

// ReloadMsg makes the viewer fetch the tree again.
type ReloadMsg struct{}

type actionDoneMsg struct {
	what   string
	err    error
	reload bool
}

// Notifier returns a progress notifier feeding p.
func Notifier(p *tea.Program) progress.Notifier {
	return progress.NotifierFunc(func(_ context.Context, ev progress.Event) error {
		p.Send(progressMsg{ev: ev})
		return nil
	})
}

// --- Command helpers ---

func request(h Handler, req dispatch.Request) dispatch.Response {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return h.Handle(ctx, req)
}

func loadForest(h Handler) tea.Cmd {
	return func() tea.Msg {
		resp := request(h, dispatch.Request{Type: dispatch.TypeViewerData})
		if resp.Status != nil {
			return forestLoadedMsg{err: errors.New(resp.Status.Error)}
		}
		forest, _ := resp.Value.([]*types.TabNode)
		return forestLoadedMsg{forest: forest}
	}
}

func runAction(h Handler, what string, req dispatch.Request, reload bool) tea.Cmd {
	return func() tea.Msg {
		resp := request(h, req)
		var err error
		if resp.Status != nil && !resp.Status.Success {
			err = errors.New(resp.Status.Error)
		}
		return actionDoneMsg{what: what, err: err, reload: reload}
	}
}

// --- Model ---

// Model is the root bubbletea model.
type Model struct {
	handler Handler
	port    int

	tree    TreeModel
	detail  DetailModel
	bar     bprogress.Model
	state   types.RestoreState
	status  string
	loading bool
	err     error
	width   int
	height  int
}

// NewModel returns a viewer issuing requests through h. port is shown
// while waiting for the extension.
func NewModel(h Handler, port int) Model {
	return Model{
		handler: h,
		port:    port,
		tree:    NewTreeModel(nil),
		bar:     bprogress.New(bprogress.WithDefaultGradient()),
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return loadForest(m.handler)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		treeWidth := m.width * 60 / 100
		paneHeight := m.height - 5 // top bar + bottom bar
		if m.state.InProgress {
			paneHeight--
		}
		m.tree.Width = treeWidth
		m.tree.Height = paneHeight
		m.detail.Width = m.width - treeWidth - 3 // borders
		m.detail.Height = paneHeight
		m.bar.Width = max(m.width-20, 10)
		return m, nil

	case forestLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.tree.SetForest(msg.forest)
		}
		return m, nil

	case ReloadMsg:
		return m, loadForest(m.handler)

	case progressMsg:
		m.state = msg.ev.State
		if msg.ev.Kind == progress.KindComplete {
			m.status = fmt.Sprintf("Restore finished: %d/%d tabs", m.state.Loaded, m.state.Total)
			return m, loadForest(m.handler)
		}
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.what, msg.err)
		} else {
			m.status = msg.what + " done"
		}
		if msg.reload {
			return m, loadForest(m.handler)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.tree.MoveUp()
		case "down", "j":
			m.tree.MoveDown()
		case " ":
			m.tree.Toggle()
		case "h", "left":
			m.tree.CollapseOrParent()
		case "l", "right":
			m.tree.ExpandOrEnter()
		case "r":
			m.loading = true
			return m, loadForest(m.handler)
		case "enter":
			if row := m.tree.SelectedRow(); row != nil {
				return m, runAction(m.handler, "Focus", dispatch.Request{Type: dispatch.TypeFocusTab, TabID: row.Node.ID}, false)
			}
		case "x":
			if row := m.tree.SelectedRow(); row != nil {
				return m, runAction(m.handler, "Close", dispatch.Request{Type: dispatch.TypeDeleteTab, TabID: row.Node.ID}, true)
			}
		case "e":
			m.status = "Exporting JSON..."
			return m, runAction(m.handler, "JSON export", dispatch.Request{Type: dispatch.TypeExportJSON}, false)
		case "t":
			m.status = "Exporting TSV..."
			return m, runAction(m.handler, "TSV export", dispatch.Request{Type: dispatch.TypeExportTSV}, false)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if m.loading {
		return fmt.Sprintf("\n  Waiting for extension connection on :%d...\n", m.port)
	}
	if m.err != nil {
		return fmt.Sprintf("\n  Error: %v\n\n  Press 'r' to retry, 'q' to quit.\n", m.err)
	}

	// Top bar
	topBarStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	stats := fmt.Sprintf("Live ● %d tabs · %d trees", types.CountNodes(m.tree.Forest), len(m.tree.Forest))
	topBar := topBarStyle.Render(stats)

	// Panes
	treeBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(m.tree.Width).
		Height(m.tree.Height)
	detailBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.detail.Width).
		Height(m.detail.Height)

	var detailContent string
	if row := m.tree.SelectedRow(); row != nil {
		detailContent = m.detail.ViewNode(row.Node)
	}
	panes := lipgloss.JoinHorizontal(lipgloss.Top, treeBorder.Render(m.tree.View()), detailBorder.Render(detailContent))

	parts := []string{topBar, panes}
	if m.state.InProgress {
		parts = append(parts, " "+m.progressLine())
	}

	// Bottom bar
	bottomBarStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	bottomText := "↑↓/jk navigate · h/l collapse/expand · enter focus · x close · e json · t tsv · r refresh · q quit"
	if m.status != "" {
		bottomText = m.status + "  " + bottomText
	}
	parts = append(parts, bottomBarStyle.Render(bottomText))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) progressLine() string {
	pct := 0.0
	if m.state.Total > 0 {
		pct = float64(m.state.Loaded) / float64(m.state.Total)
	}
	return fmt.Sprintf("Restoring %s %d/%d", m.bar.ViewAs(pct), m.state.Loaded, m.state.Total)
}
