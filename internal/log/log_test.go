package log

import (
	"bytes"
	"context"
	"testing"
)

func TestLogger_Modes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		verbose bool
		quiet   bool
		want    string
	}{
		{
			name: "default prints only regular output",
			want: "hello\n",
		},
		{
			name:    "verbose adds debug and commands",
			verbose: true,
			want:    "hello\ndebug: refresh org=dev step=retrieve\n$ sf org list --json\n",
		},
		{
			name:  "quiet suppresses everything",
			quiet: true,
			want:  "",
		},
		{
			name:    "quiet wins over verbose",
			verbose: true,
			quiet:   true,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			l := New(&buf, tt.verbose, tt.quiet)
			l.Println("hello")
			l.Debug("refresh", "org", "dev", "step", "retrieve")
			l.Command("sf", "org", "list", "--json")

			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogger_DebugOddKeyvals(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, true, false)
	l.Debug("msg", "dangling")

	if got, want := buf.String(), "debug: msg dangling=?\n"; got != want {
		t.Errorf("Debug() = %q, want %q", got, want)
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	// No logger attached: must not panic and must discard.
	FromContext(context.Background()).Println("discarded")

	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, false, false))
	FromContext(ctx).Printf("%s-%d\n", "dev", 1)

	if got := buf.String(); got != "dev-1\n" {
		t.Errorf("output = %q, want %q", got, "dev-1\n")
	}
}
