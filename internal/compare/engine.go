package compare

import (
	"context"
	"fmt"

	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/selection"
	"github.com/raphi011/orgcmp/internal/tree"
)

// DefaultContext is the number of context lines in unified patches.
const DefaultContext = 3

// Engine compares selected files.
type Engine struct {
	resolver *Resolver
}

// NewEngine creates an Engine resolving content through r.
func NewEngine(r *Resolver) *Engine {
	return &Engine{resolver: r}
}

// Compare resolves refs and classifies their lines.
// It returns selection.ErrNotEnoughFiles for fewer than two refs.
func (e *Engine) Compare(ctx context.Context, refs []tree.FileRef) (*Result, error) {
	if len(refs) < selection.MinFiles {
		return nil, selection.ErrNotEnoughFiles
	}

	inputs, err := e.resolver.ResolveAll(ctx, refs)
	if err != nil {
		return nil, err
	}

	result := Classify(inputs)
	log.FromContext(ctx).Debug("files compared", "type", result.CompareType,
		"lines", result.Stats.TotalLines, "modified", result.Stats.ModifiedLines)
	return &result, nil
}

// Inputs resolves refs without classifying them.
func (e *Engine) Inputs(ctx context.Context, refs []tree.FileRef) ([]Input, error) {
	return e.resolver.ResolveAll(ctx, refs)
}

// Unified renders a unified patch from a to b with the given number of
// context lines (DefaultContext if <= 0). It is a presentation aid and
// independent of Classify.
func Unified(a, b Input, contextLines int) (string, error) {
	if contextLines <= 0 {
		contextLines = DefaultContext
	}

	u := difflib.UnifiedDiff{
		A:        patchLines(a.Content),
		B:        patchLines(b.Content),
		FromFile: a.File.ID,
		ToFile:   b.File.ID,
		Context:  contextLines,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("render unified diff: %w", err)
	}
	return s, nil
}

// patchLines splits content like SplitLines and keeps a newline on every line,
// which difflib expects.
func patchLines(content string) []string {
	lines := SplitLines(content)
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = line + "\n"
	}
	return out
}
