// Command rulemorph-tui provides an interactive rule-file inspector:
// validator diagnostics, the mapping dependency tree, and a rendered
// mapping doc, in a Bubble Tea terminal UI.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/validate"
	"github.com/vinhphatfsg/rulemorph/pkg/ruletui"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: rulemorph-tui <rule.yaml>")
		os.Exit(1)
	}

	path := os.Args[1]
	rf, result, err := validate.ValidateFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	m := ruletui.New(path, rf, result)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
