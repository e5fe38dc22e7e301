// Package styles provides shared lipgloss styles for UI components.
//
// This package centralizes color definitions and styling so the tree,
// selection, comparison and progress output of orgcmp look the same
// everywhere.
package styles

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

// Palette colors, replaced by Init according to the configured theme.
var (
	// Primary is the main accent color (cyan/teal)
	Primary color.Color = lipgloss.Color("62")

	// Accent is the highlight color for selected items (pink)
	Accent color.Color = lipgloss.Color("212")

	// Success is used for checkmarks and added lines (green)
	Success color.Color = lipgloss.Color("82")

	// Error is used for error messages and removed lines (red)
	Error color.Color = lipgloss.Color("196")

	// Muted is used for placeholders and unchanged lines (gray)
	Muted color.Color = lipgloss.Color("240")

	// Normal is the standard text color (light gray)
	Normal color.Color = lipgloss.Color("252")

	// Info is used for informational text (gray)
	Info color.Color = lipgloss.Color("244")

	// Warning is used for modified lines and stale caches (orange)
	Warning color.Color = lipgloss.Color("214")
)

// Common styles
var (
	// Bold applies bold formatting
	Bold = lipgloss.NewStyle().Bold(true)

	// Italic applies italic formatting
	Italic = lipgloss.NewStyle().Italic(true)

	// PrimaryStyle applies the primary color
	PrimaryStyle = lipgloss.NewStyle().Foreground(Primary)

	// AccentStyle applies the accent color with bold
	AccentStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	// SuccessStyle applies the success color
	SuccessStyle = lipgloss.NewStyle().Foreground(Success)

	// ErrorStyle applies the error color
	ErrorStyle = lipgloss.NewStyle().Foreground(Error)

	// MutedStyle applies the muted color
	MutedStyle = lipgloss.NewStyle().Foreground(Muted)

	// NormalStyle applies the normal text color
	NormalStyle = lipgloss.NewStyle().Foreground(Normal)

	// InfoStyle applies the info color with italic
	InfoStyle = lipgloss.NewStyle().
			Foreground(Info).
			Italic(true)

	// WarningStyle applies the warning color
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
)

// Diff line styles, keyed by classification in the static renderer.
var (
	UnchangedStyle = lipgloss.NewStyle().Foreground(Muted)
	AddedStyle     = lipgloss.NewStyle().Foreground(Success)
	RemovedStyle   = lipgloss.NewStyle().Foreground(Error)
	ModifiedStyle  = lipgloss.NewStyle().Foreground(Warning)
)

// Border styles
var (
	// RoundedBorder creates a rounded border with primary color
	RoundedBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1)
)

// Text highlighting styles
var (
	// HighlightStyle for highlighting fuzzy-matched characters
	HighlightStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true).
			Underline(true)
)
