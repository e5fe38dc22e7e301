package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/raphi011/orgcmp/internal/log"
)

func TestRefreshBar_StopBeforeStart(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	b := newRefreshBar(&buf, 2, 3)
	b.update(barUpdate{units: 50, message: "ignored"})
	b.stop()
	if buf.Len() != 0 {
		t.Errorf("unstarted bar wrote %q", buf.String())
	}
}

func TestFraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		current, total int
		want           float64
	}{
		{0, 0, 0},
		{50, 100, 0.5},
		{150, 100, 1},
		{-1, 100, 0},
	}
	for _, tt := range tests {
		if got := fraction(tt.current, tt.total); got != tt.want {
			t.Errorf("fraction(%d, %d) = %v, want %v", tt.current, tt.total, got, tt.want)
		}
	}
}

func TestBarModel_Render(t *testing.T) {
	t.Parallel()

	m := barModel{bar: newBar(), total: 600, totalOrgs: 2}
	updated, _ := m.Update(barUpdate{units: 300, orgs: 1, message: "Retrieving Prod"})
	got := updated.(barModel).render()
	if !strings.Contains(got, " 50% 1/2 orgs  Retrieving Prod") {
		t.Errorf("render() = %q, want 50%%, org count and message", got)
	}
}

func TestStepReporter_LogFallback(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	// Test output is never a terminal, so the log fallback is used.
	r := NewStepReporter(log.New(&buf, false, false), 2, 3)
	defer r.Stop()

	r.Report(1, 0, "Retrieving Dev")
	r.Report(1, 100, "Retrieved")
	r.Report(2, 0, "Building file tree")

	if r.Done() != 1 {
		t.Errorf("Done() = %d, want 1", r.Done())
	}
	want := "[1/3] Retrieving Dev\n[2/3] Building file tree\n"
	if buf.String() != want {
		t.Errorf("log output = %q, want %q", buf.String(), want)
	}
}

func TestStepReporter_Concurrent(t *testing.T) {
	t.Parallel()

	r := NewStepReporter(log.New(&bytes.Buffer{}, false, true), 4, 3)
	defer r.Stop()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for step := 1; step <= 3; step++ {
				r.Report(step, 0, "start")
				r.Report(step, 100, "done")
			}
		}()
	}
	wg.Wait()

	if r.Done() != 12 {
		t.Errorf("Done() = %d, want 12", r.Done())
	}
}
