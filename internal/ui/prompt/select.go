package prompt

import (
	"os"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/list"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/colorprofile"

	"github.com/raphi011/orgcmp/internal/ui/styles"
)

// Choice is one entry of a Pick list.
type Choice struct {
	Title  string // e.g. "Prod classes/Foo.cls"
	Detail string // e.g. the file ID, shown dimmed below the title
}

// PickResult holds the outcome of Pick. Index is -1 when cancelled.
type PickResult struct {
	Index     int
	Cancelled bool
}

type choiceItem struct {
	Choice
	pos int
}

func (c choiceItem) Title() string       { return c.Choice.Title }
func (c choiceItem) Description() string { return c.Detail }
func (c choiceItem) FilterValue() string { return c.Choice.Title + " " + c.Detail }

var (
	pickKey   = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "pick"))
	cancelKey = key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel"))
)

type pickModel struct {
	list   list.Model
	picked int
	done   bool
}

func (m pickModel) Init() tea.Cmd { return nil }

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		return m, nil
	case tea.KeyPressMsg:
		// While filtering, enter and esc belong to the filter input.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, pickKey):
			if it, ok := m.list.SelectedItem().(choiceItem); ok {
				m.picked = it.pos
			}
			m.done = true
			return m, tea.Quit
		case key.Matches(msg, cancelKey):
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickModel) View() tea.View {
	if m.done {
		return tea.NewView("")
	}
	return tea.NewView(m.list.View())
}

// Pick lets the user choose one of choices on stderr. Typing "/" filters
// on both title and detail.
func Pick(title string, choices []Choice) (PickResult, error) {
	if len(choices) == 0 {
		return PickResult{Index: -1, Cancelled: true}, nil
	}

	items := make([]list.Item, len(choices))
	for i, c := range choices {
		items[i] = choiceItem{Choice: c, pos: i}
	}

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.Styles.SelectedTitle = lipgloss.NewStyle().Foreground(styles.Accent).Bold(true)
	delegate.Styles.SelectedDesc = styles.MutedStyle
	delegate.Styles.NormalDesc = styles.MutedStyle

	// Two lines per choice plus title and help.
	height := min(2*len(choices)+6, 24)
	l := list.New(items, delegate, 72, height)
	l.Title = title
	l.SetShowStatusBar(len(choices) > 5)
	l.DisableQuitKeybindings()
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{pickKey, cancelKey} }

	p := tea.NewProgram(pickModel{list: l, picked: -1},
		tea.WithOutput(os.Stderr),
		tea.WithColorProfile(colorprofile.Detect(os.Stderr, os.Environ())),
	)
	final, err := p.Run()
	if err != nil {
		return PickResult{}, err
	}

	m := final.(pickModel)
	if m.picked < 0 || m.picked >= len(choices) {
		return PickResult{Index: -1, Cancelled: true}, nil
	}
	return PickResult{Index: m.picked}, nil
}
