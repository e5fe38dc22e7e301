// Package compare classifies the lines of two or more files position by
// position.
//
// Line i of every file is compared with line i of every other file; there
// is no alignment. Inserting a line near the top of one file therefore
// reports every later line as changed.
package compare

import (
	"fmt"
	"strings"

	"github.com/raphi011/orgcmp/internal/selection"
	"github.com/raphi011/orgcmp/internal/tree"
)

// Classification describes how a line relates to the same position in the
// other files.
type Classification string

const (
	Unchanged Classification = "unchanged"
	Added     Classification = "added"
	Removed   Classification = "removed"
	Modified  Classification = "modified"
)

// Input is a file with its resolved content.
type Input struct {
	File    tree.FileRef
	Content string
}

// DiffLine is one classified line of one file.
type DiffLine struct {
	LineNumber      int            `json:"lineNumber" yaml:"lineNumber"` // 1-based
	Content         string         `json:"content" yaml:"content"`
	Classification  Classification `json:"classification" yaml:"classification"`
	SourceFileIndex int            `json:"sourceFileIndex" yaml:"sourceFileIndex"`
}

// Stats counts classified lines.
type Stats struct {
	TotalLines     int `json:"totalLines" yaml:"totalLines"`
	UnchangedLines int `json:"unchangedLines" yaml:"unchangedLines"`
	AddedLines     int `json:"addedLines" yaml:"addedLines"`
	RemovedLines   int `json:"removedLines" yaml:"removedLines"`
	ModifiedLines  int `json:"modifiedLines" yaml:"modifiedLines"`
}

func (s *Stats) add(c Classification) {
	s.TotalLines++
	switch c {
	case Unchanged:
		s.UnchangedLines++
	case Added:
		s.AddedLines++
	case Removed:
		s.RemovedLines++
	case Modified:
		s.ModifiedLines++
	}
}

func (s *Stats) merge(o Stats) {
	s.TotalLines += o.TotalLines
	s.UnchangedLines += o.UnchangedLines
	s.AddedLines += o.AddedLines
	s.RemovedLines += o.RemovedLines
	s.ModifiedLines += o.ModifiedLines
}

// Changed reports whether any line differs.
func (s Stats) Changed() bool {
	return s.AddedLines+s.RemovedLines+s.ModifiedLines > 0
}

// Summary returns a one-line description of the statistics.
func (s Stats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d lines", s.TotalLines)
	if !s.Changed() {
		b.WriteString(", no differences")
		return b.String()
	}
	fmt.Fprintf(&b, ", %d modified, %d added, %d removed", s.ModifiedLines, s.AddedLines, s.RemovedLines)
	return b.String()
}

// FileResult holds the classified lines of one file.
type FileResult struct {
	File  tree.FileRef `json:"file" yaml:"file"`
	Lines []DiffLine   `json:"lines" yaml:"lines"`
	Stats Stats        `json:"stats" yaml:"stats"`
}

// Result is a complete comparison.
type Result struct {
	CompareType string       `json:"compareType" yaml:"compareType"`
	Files       []FileResult `json:"files" yaml:"files"`
	Stats       Stats        `json:"stats" yaml:"stats"`
}

// Classify compares inputs position by position. For file f and index i
// below the longest file's line count:
//
//   - i within f: unchanged when every other file has the same line,
//     added when every other file is absent or blank there, modified otherwise;
//   - i beyond f: removed (with empty content) when some other file has
//     non-blank content there; otherwise no line is emitted.
//
// A file missing a line counts as an empty line for the unchanged check.
func Classify(inputs []Input) Result {
	lines := make([][]string, len(inputs))
	maxLines := 0
	for i, in := range inputs {
		lines[i] = SplitLines(in.Content)
		maxLines = max(maxLines, len(lines[i]))
	}

	result := Result{
		CompareType: selection.CompareType(len(inputs)),
		Files:       make([]FileResult, len(inputs)),
	}

	for f, in := range inputs {
		fr := FileResult{File: in.File, Lines: []DiffLine{}}

		for i := range maxLines {
			c, ok := classifyAt(lines, f, i)
			if !ok {
				continue
			}
			content := ""
			if i < len(lines[f]) {
				content = lines[f][i]
			}
			fr.Lines = append(fr.Lines, DiffLine{
				LineNumber:      i + 1,
				Content:         content,
				Classification:  c,
				SourceFileIndex: f,
			})
			fr.Stats.add(c)
		}

		result.Files[f] = fr
		result.Stats.merge(fr.Stats)
	}

	return result
}

// classifyAt classifies line i of file f. ok is false when nothing is
// emitted for that position.
func classifyAt(lines [][]string, f, i int) (c Classification, ok bool) {
	if i >= len(lines[f]) {
		for o := range lines {
			if o != f && i < len(lines[o]) && !isBlank(lines[o][i]) {
				return Removed, true
			}
		}
		return "", false
	}

	current := lines[f][i]
	allEqual, othersBlank := true, true
	for o := range lines {
		if o == f {
			continue
		}
		other := ""
		if i < len(lines[o]) {
			other = lines[o][i]
		}
		if other != current {
			allEqual = false
		}
		if !isBlank(other) {
			othersBlank = false
		}
	}

	switch {
	case allEqual:
		return Unchanged, true
	case othersBlank:
		return Added, true
	default:
		return Modified, true
	}
}

// SplitLines splits content on newlines. CRLF is treated as LF and a single
// trailing newline does not produce an empty last line.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
