package cmd

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestOutputContext(t *testing.T) {
	t.Parallel()
	requireShell(t)

	out, err := OutputContext(context.Background(), "", "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("OutputContext() error = %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("OutputContext() = %q, want hello", out)
	}
}

func TestRunContext_StderrInError(t *testing.T) {
	t.Parallel()
	requireShell(t)

	err := RunContext(context.Background(), "", "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("RunContext() error = nil, want failure")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q does not contain stderr", err)
	}
}

func TestOutputContext_Deadline(t *testing.T) {
	t.Parallel()
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := OutputContext(ctx, "", "sh", "-c", "sleep 5")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("OutputContext() error = %v, want DeadlineExceeded", err)
	}
}
