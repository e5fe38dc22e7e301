package progress

import (
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/raphi011/orgcmp/internal/log"
)

// StepReporter aggregates the step callbacks of several org refreshes into
// one overall progress value. Each org contributes stepsPerOrg steps, and a
// step counts as done when it reports 100 percent. Callbacks may arrive from
// several goroutines at once.
//
// On a terminal the progress is drawn as a bar; otherwise every step start
// is written as a log line.
type StepReporter struct {
	mu    sync.Mutex
	bar   *refreshBar
	l     *log.Logger
	steps int
	done  int
}

// NewStepReporter creates a reporter for orgs refreshes of stepsPerOrg steps.
// The bar is used only when stderr is a terminal and the logger is not quiet.
func NewStepReporter(l *log.Logger, orgs, stepsPerOrg int) *StepReporter {
	stepsPerOrg = max(stepsPerOrg, 1)
	r := &StepReporter{l: l, steps: stepsPerOrg}
	if !l.Quiet() && !l.Verbose() && isTerminal(os.Stderr) {
		r.bar = newRefreshBar(os.Stderr, orgs, stepsPerOrg)
		r.bar.start()
	}
	return r
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Report matches treesync.ProgressFunc.
func (r *StepReporter) Report(step, percent int, message string) {
	r.mu.Lock()
	if percent >= 100 {
		r.done++
	}
	current := r.done * 100
	if percent < 100 {
		current += percent
	}
	orgs := r.done / r.steps
	r.mu.Unlock()

	if r.bar != nil {
		r.bar.update(barUpdate{units: current, orgs: orgs, message: message})
		return
	}
	if percent == 0 {
		r.l.Printf("[%d/%d] %s\n", step, r.steps, message)
	}
}

// Done returns the number of finished steps.
func (r *StepReporter) Done() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Stop removes the bar, if any.
func (r *StepReporter) Stop() {
	if r.bar != nil {
		r.bar.stop()
	}
}
