package ruletui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/validate"
)

type tab int

const (
	tabDiagnostics tab = iota
	tabDependencies
	tabMappingDoc
	tabCount
)

var tabNames = [tabCount]string{"diagnostics", "dependencies", "mapping doc"}

// Model is the top-level Bubble Tea model for the rule inspector.
type Model struct {
	rulePath string
	rf       *schema.RuleFile
	result   validate.Result

	active tab
	view   viewport.Model
	ready  bool

	width  int
	height int
}

// New builds an inspector model for an already-validated rule file.
func New(rulePath string, rf *schema.RuleFile, result validate.Result) Model {
	return Model{rulePath: rulePath, rf: rf, result: result}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentH := m.height - 4
		if contentH < 1 {
			contentH = 1
		}
		if !m.ready {
			m.view = viewport.New(m.width, contentH)
			m.ready = true
		} else {
			m.view.Width = m.width
			m.view.Height = contentH
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "right", "l":
			m.active = (m.active + 1) % tabCount
			m.refresh()
		case "shift+tab", "left", "h":
			m.active = (m.active - 1 + tabCount) % tabCount
			m.refresh()
		default:
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	switch m.active {
	case tabDiagnostics:
		m.view.SetContent(m.renderDiagnostics())
	case tabDependencies:
		m.view.SetContent(BuildDependencyTree(m.rf))
	case tabMappingDoc:
		m.view.SetContent(m.renderMappingDoc())
	}
	m.view.GotoTop()
}

func (m Model) renderDiagnostics() string {
	if m.result.OK() {
		return okStyle.Render("✓ no static errors") + "\n"
	}
	var b strings.Builder
	for i, e := range m.result.Errors {
		style := errorRowStyle
		fmt.Fprintf(&b, "%s %s  %s\n", style.Render(fmt.Sprintf("%3d.", i+1)), codeStyle.Render(e.Code), e.Message)
		if e.Path != "" {
			fmt.Fprintf(&b, "     %s\n", dimStyle.Render("at "+e.Path))
		}
		if e.Location != nil {
			fmt.Fprintf(&b, "     %s\n", dimStyle.Render(fmt.Sprintf("line %d, col %d", e.Location.Line, e.Location.Column)))
		}
	}
	return b.String()
}

func (m Model) renderMappingDoc() string {
	md := BuildMappingDoc(m.rf)
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func (m Model) View() string {
	if !m.ready {
		return "loading…"
	}

	var tabs []string
	for i, name := range tabNames {
		if tab(i) == m.active {
			tabs = append(tabs, tabActiveStyle.Render(name))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(name))
		}
	}
	header := headerStyle.Render(m.rulePath) + "  " + strings.Join(tabs, " ")
	keyBar := keyBarStyle.Render(dimStyle.Render("tab: switch view • ↑/↓: scroll • q: quit"))

	return lipgloss.JoinVertical(lipgloss.Left, header, m.view.View(), keyBar)
}
