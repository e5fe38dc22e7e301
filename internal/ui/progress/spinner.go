// Package progress provides progress indication for long-running operations:
// a spinner counting remote file fetches and a progress bar for org
// refreshes, whose step callbacks are aggregated by StepReporter.
//
// All components draw on stderr so stdout stays clean for piping.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"
)

// fetchedMsg reports one finished fetch.
type fetchedMsg struct{ label string }

// FetchSpinner shows "<message> (n/total)" next to a spinner while files
// are fetched from their orgs.
type FetchSpinner struct {
	w       io.Writer
	message string
	total   int

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

type fetchModel struct {
	spinner spinner.Model
	message string
	last    string
	count   int
	total   int
}

func (m fetchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m fetchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if f, ok := msg.(fetchedMsg); ok {
		m.count++
		m.last = f.label
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m fetchModel) View() tea.View {
	line := fmt.Sprintf("%s %s (%d/%d)", m.spinner.View(), m.message, m.count, m.total)
	if m.last != "" {
		line += " " + m.last
	}
	return tea.NewView(line)
}

// NewFetchSpinner creates a spinner for total fetches drawing on w.
func NewFetchSpinner(w io.Writer, message string, total int) *FetchSpinner {
	return &FetchSpinner{w: w, message: message, total: total}
}

// Start begins the animation. Starting twice is a no-op.
func (s *FetchSpinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program != nil {
		return
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	s.program = tea.NewProgram(fetchModel{spinner: sp, message: s.message, total: s.total},
		tea.WithoutSignalHandler(),
		tea.WithInput(nil),
		tea.WithOutput(s.w),
	)
	s.done = make(chan struct{})
	go func(p *tea.Program, done chan struct{}) {
		_, _ = p.Run()
		close(done)
	}(s.program, s.done)
}

// Fetched counts one finished fetch. Safe for concurrent use.
func (s *FetchSpinner) Fetched(label string) {
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()
	if p != nil {
		p.Send(fetchedMsg{label: label})
	}
}

// Stop ends the animation and clears its line.
func (s *FetchSpinner) Stop() {
	s.mu.Lock()
	p, done := s.program, s.done
	s.program = nil
	s.mu.Unlock()
	if p == nil {
		return
	}

	p.Quit()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
	}
	fmt.Fprint(s.w, "\r"+ansi.EraseEntireLine)
}
