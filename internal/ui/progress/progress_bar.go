package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/raphi011/orgcmp/internal/ui/styles"
)

// barUpdate moves the bar. units are hundredths of a step.
type barUpdate struct {
	units   int
	orgs    int
	message string
}

// refreshBar draws the overall progress of a refresh on one line:
//
//	[████████░░░░░░░░]  45% 1/3 orgs  Retrieving Dev
type refreshBar struct {
	w         io.Writer
	total     int // units
	totalOrgs int

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

type barModel struct {
	bar       progress.Model
	total     int
	totalOrgs int
	last      barUpdate
}

func (m barModel) Init() tea.Cmd { return nil }

func (m barModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if u, ok := msg.(barUpdate); ok {
		m.last = u
		return m, nil
	}
	var cmd tea.Cmd
	m.bar, cmd = m.bar.Update(msg)
	return m, cmd
}

func (m barModel) View() tea.View {
	if m.last.message == "" {
		return tea.NewView("")
	}
	return tea.NewView(m.render())
}

func (m barModel) render() string {
	f := fraction(m.last.units, m.total)
	return fmt.Sprintf("%s %3d%% %d/%d orgs  %s",
		m.bar.ViewAs(f), int(f*100), m.last.orgs, m.totalOrgs, m.last.message)
}

func fraction(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(current) / float64(total)
	return min(max(f, 0), 1)
}

func newBar() progress.Model {
	return progress.New(
		progress.WithWidth(32),
		progress.WithoutPercentage(),
		progress.WithColors(styles.Primary, styles.Accent),
	)
}

func newRefreshBar(w io.Writer, orgs, stepsPerOrg int) *refreshBar {
	return &refreshBar{w: w, total: orgs * stepsPerOrg * 100, totalOrgs: orgs}
}

// start draws the bar. Ctrl-C is handled by the command context, so the
// program neither installs a signal handler nor reads keys.
func (b *refreshBar) start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.program != nil {
		return
	}

	b.program = tea.NewProgram(barModel{bar: newBar(), total: b.total, totalOrgs: b.totalOrgs},
		tea.WithoutSignalHandler(),
		tea.WithInput(nil),
		tea.WithOutput(b.w),
	)
	b.done = make(chan struct{})
	go func(p *tea.Program, done chan struct{}) {
		_, _ = p.Run()
		close(done)
	}(b.program, b.done)
}

func (b *refreshBar) update(u barUpdate) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p != nil {
		p.Send(u)
	}
}

// stop removes the bar and clears its line.
func (b *refreshBar) stop() {
	b.mu.Lock()
	p, done := b.program, b.done
	b.program = nil
	b.mu.Unlock()
	if p == nil {
		return
	}

	p.Quit()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
	}
	fmt.Fprint(b.w, "\r"+ansi.EraseEntireLine)
}
