// Package tui provides an interactive review screen for a patch before it is
// applied: the diff in a scrollable viewport, a confirm/abort prompt, and the
// dispatcher's result rendered once the apply finishes.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	glam "github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asynkron/diffkit/internal/tools"
)

// Options configure an interactive review session.
type Options struct {
	Target     string
	DiffText   string
	Dispatcher *tools.Dispatcher
}

// Run blocks until the user confirms or aborts the patch. Aborting is not an
// error; the caller can inspect nothing beyond the returned error.
func Run(ctx context.Context, opts Options) error {
	if opts.Dispatcher == nil {
		return fmt.Errorf("no dispatcher provided")
	}
	// Some terminals mis-detect capabilities under alt-screen; pinning the
	// profile keeps the diff colors stable.
	lipgloss.SetColorProfile(termenv.ColorProfile())

	program := tea.NewProgram(newModel(ctx, opts), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

type phase int

const (
	phaseReview phase = iota
	phaseApplying
	phaseDone
)

type applyResultMsg struct {
	message string
	err     error
}

type model struct {
	ctx  context.Context
	opts Options

	vp     viewport.Model
	spin   spinner.Model
	phase  phase
	ready  bool
	width  int
	height int

	resultRendered string

	headerStyle  lipgloss.Style
	addStyle     lipgloss.Style
	removeStyle  lipgloss.Style
	hunkStyle    lipgloss.Style
	contextStyle lipgloss.Style
	helpStyle    lipgloss.Style
}

func newModel(ctx context.Context, opts Options) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &model{
		ctx:          ctx,
		opts:         opts,
		spin:         spin,
		headerStyle:  lipgloss.NewStyle().Bold(true),
		addStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		removeStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		hunkStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		contextStyle: lipgloss.NewStyle().Faint(true),
		helpStyle:    lipgloss.NewStyle().Faint(true),
	}
}

func (m *model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		viewportHeight := msg.Height - 4
		if viewportHeight < 3 {
			viewportHeight = 3
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, viewportHeight)
			m.vp.SetContent(m.renderDiff())
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = viewportHeight
		}
		return m, nil

	case tea.KeyMsg:
		switch m.phase {
		case phaseReview:
			switch msg.String() {
			case "y", "enter":
				m.phase = phaseApplying
				return m, tea.Batch(m.spin.Tick, m.applyCmd())
			case "n", "q", "esc", "ctrl+c":
				return m, tea.Quit
			}
		case phaseApplying:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		case phaseDone:
			return m, tea.Quit
		}

	case applyResultMsg:
		m.phase = phaseDone
		m.resultRendered = m.renderResult(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.ready && m.phase == phaseReview {
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := m.headerStyle.Render(fmt.Sprintf("diffkit — review patch for %s", m.opts.Target))

	switch m.phase {
	case phaseApplying:
		return fmt.Sprintf("%s\n\n%s applying patch...\n", header, m.spin.View())
	case phaseDone:
		help := m.helpStyle.Render("press any key to exit")
		return fmt.Sprintf("%s\n\n%s\n%s\n", header, m.resultRendered, help)
	default:
		help := m.helpStyle.Render("y/enter apply · n/q abort · arrows scroll")
		return fmt.Sprintf("%s\n%s\n%s\n", header, m.vp.View(), help)
	}
}

// applyCmd runs the dispatcher off the UI goroutine.
func (m *model) applyCmd() tea.Cmd {
	return func() tea.Msg {
		message, err := m.opts.Dispatcher.Apply(m.ctx, m.opts.Target, m.opts.DiffText)
		return applyResultMsg{message: message, err: err}
	}
}

// renderDiff colorizes the raw diff for the review viewport.
func (m *model) renderDiff() string {
	lines := strings.Split(strings.ReplaceAll(m.opts.DiffText, "\r\n", "\n"), "\n")
	rendered := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			rendered = append(rendered, m.hunkStyle.Render(line))
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "diff --git"):
			rendered = append(rendered, m.headerStyle.Render(line))
		case strings.HasPrefix(line, "+"):
			rendered = append(rendered, m.addStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			rendered = append(rendered, m.removeStyle.Render(line))
		default:
			rendered = append(rendered, m.contextStyle.Render(line))
		}
	}
	return strings.Join(rendered, "\n")
}

// renderResult formats the apply outcome as markdown and renders it with
// glamour; plain text is the fallback when the renderer cannot be built.
func (m *model) renderResult(result applyResultMsg) string {
	var md strings.Builder
	if result.err != nil {
		md.WriteString("## Patch failed\n\n")
		fmt.Fprintf(&md, "```\n%v\n```\n", result.err)
	} else {
		md.WriteString("## Patch applied\n\n")
		fmt.Fprintf(&md, "%s\n", result.message)
	}

	width := m.width
	if width <= 0 || width > 100 {
		width = 100
	}
	renderer, err := glam.NewTermRenderer(glam.WithAutoStyle(), glam.WithWordWrap(width))
	if err != nil {
		return md.String()
	}
	rendered, err := renderer.Render(md.String())
	if err != nil {
		return md.String()
	}
	return strings.TrimRight(rendered, "\n")
}
