package prompt

import (
	"os"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/raphi011/orgcmp/internal/ui/styles"
)

// ConfirmResult holds the result of a confirmation prompt.
type ConfirmResult struct {
	Confirmed bool
	Cancelled bool
}

var (
	yesKey   = key.NewBinding(key.WithKeys("y", "Y"))
	noKey    = key.NewBinding(key.WithKeys("n", "N", "enter")) // enter takes the default, no
	abortKey = key.NewBinding(key.WithKeys("ctrl+c", "esc", "q"))
)

type confirmModel struct {
	question string
	affected []string
	result   ConfirmResult
	done     bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	press, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(press, yesKey):
		m.result.Confirmed = true
	case key.Matches(press, noKey):
	case key.Matches(press, abortKey):
		m.result.Cancelled = true
	default:
		return m, nil
	}
	m.done = true
	return m, tea.Quit
}

func (m confirmModel) View() tea.View {
	if m.done {
		return tea.NewView("")
	}

	var b strings.Builder
	for _, a := range m.affected {
		b.WriteString("  " + styles.MutedStyle.Render(a) + "\n")
	}
	b.WriteString(m.question + " " + styles.MutedStyle.Render("[y/N]") + " ")
	return tea.NewView(b.String())
}

// Confirm asks question on stderr, listing the affected entries above it.
// The default answer is "no".
func Confirm(question string, affected ...string) (ConfirmResult, error) {
	p := tea.NewProgram(confirmModel{question: question, affected: affected}, tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return ConfirmResult{}, err
	}
	return final.(confirmModel).result, nil
}
