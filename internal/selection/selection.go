// Package selection tracks the files chosen for comparison.
//
// The selection is an ordered, bounded list of file references without
// duplicates. Adding beyond the bound evicts the oldest entry.
package selection

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/raphi011/orgcmp/internal/tree"
)

const (
	// MinFiles is the smallest allowed bound: a comparison needs two files.
	MinFiles = 2
	// DefaultMaxFiles is the bound of a new selection.
	DefaultMaxFiles = 4
	// HardMaxFiles is the largest allowed bound.
	HardMaxFiles = 10
)

// Compare types derived from the selection size.
const (
	TwoWay   = "two-way"
	ThreeWay = "three-way"
	FourWay  = "four-way"
	MultiWay = "multi-way"
)

// ErrNotEnoughFiles is returned when fewer than two files are selected.
var ErrNotEnoughFiles = errors.New("select at least two files to compare")

// BoundsError is returned by SetMax for a bound outside [Min, Max].
type BoundsError struct {
	Requested int
	Min       int
	Max       int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("max files must be between %d and %d, got %d", e.Min, e.Max, e.Requested)
}

// Manager holds the current selection. It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	files []tree.FileRef
	max   int
}

// New returns an empty selection with the default bound.
func New() *Manager {
	return &Manager{max: DefaultMaxFiles}
}

// Restore rebuilds a selection from persisted state. An invalid bound
// falls back to the default; duplicate entries are dropped and only the
// most recently added files within the bound are kept.
func Restore(files []tree.FileRef, max int) *Manager {
	m := New()
	if checkBounds(max) == nil {
		m.max = max
	}
	for _, f := range files {
		if f.ID == "" || m.containsLocked(f.ID) {
			continue
		}
		m.files = append(m.files, f)
	}
	m.trimLocked()
	return m
}

// Toggle removes ref if it is selected and adds it otherwise, evicting the
// oldest entry when the selection is full. It reports whether ref is
// selected afterwards.
func (m *Manager) Toggle(ref tree.FileRef) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexLocked(ref.ID); i >= 0 {
		m.files = slices.Delete(m.files, i, i+1)
		return false
	}

	if len(m.files) >= m.max {
		m.files = slices.Delete(m.files, 0, len(m.files)-m.max+1)
	}
	m.files = append(m.files, ref)
	return true
}

// Remove deselects id. It reports whether id was selected.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return false
	}
	m.files = slices.Delete(m.files, i, i+1)
	return true
}

// SetMax changes the bound. A bound below the current size keeps the most
// recently added files. Out-of-range values return a *BoundsError and change
// nothing.
func (m *Manager) SetMax(n int) error {
	if err := checkBounds(n); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.max = n
	m.trimLocked()
	return nil
}

// Clear deselects everything.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = nil
}

// Files returns a copy of the selection, oldest first.
func (m *Manager) Files() []tree.FileRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.files)
}

// Len returns the number of selected files.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// Max returns the current bound.
func (m *Manager) Max() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max
}

// Contains reports whether id is selected.
func (m *Manager) Contains(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.containsLocked(id)
}

// CompareType describes the comparison the selection would produce,
// or "" when fewer than two files are selected.
func (m *Manager) CompareType() string {
	return CompareType(m.Len())
}

// CanCompare reports whether at least two files are selected.
func (m *Manager) CanCompare() bool {
	return m.Len() >= MinFiles
}

// CompareType maps a number of files to its compare type.
func CompareType(n int) string {
	switch {
	case n < 2:
		return ""
	case n == 2:
		return TwoWay
	case n == 3:
		return ThreeWay
	case n == 4:
		return FourWay
	default:
		return MultiWay
	}
}

func checkBounds(n int) error {
	if n < MinFiles || n > HardMaxFiles {
		return &BoundsError{Requested: n, Min: MinFiles, Max: HardMaxFiles}
	}
	return nil
}

func (m *Manager) indexLocked(id string) int {
	return slices.IndexFunc(m.files, func(f tree.FileRef) bool { return f.ID == id })
}

func (m *Manager) containsLocked(id string) bool {
	return m.indexLocked(id) >= 0
}

func (m *Manager) trimLocked() {
	if len(m.files) > m.max {
		m.files = slices.Clone(m.files[len(m.files)-m.max:])
	}
}
