package styles

// Symbols holds the glyphs used when rendering org trees and selections.
type Symbols struct {
	Org         string
	Folder      string
	File        string
	Placeholder string
	Selected    string
	Live        string
	Cached      string
}

// Default symbols (plain unicode, no special font needed)
var defaultSymbols = Symbols{
	Org:         "◆",
	Folder:      "▸",
	File:        "·",
	Placeholder: "○",
	Selected:    "✓",
	Live:        "●",
	Cached:      "◌",
}

// Nerd font symbols
var nerdfontSymbols = Symbols{
	Org:         "\uf0c2", // nf-fa-cloud
	Folder:      "\uf07b", // nf-fa-folder
	File:        "\uf15b", // nf-fa-file
	Placeholder: "\uf059", // nf-fa-question_circle
	Selected:    "\uf00c", // nf-fa-check
	Live:        "\uf111", // nf-fa-circle
	Cached:      "\uf1da", // nf-fa-history
}

// useNerdfont tracks whether nerd font symbols are enabled
var useNerdfont bool

// currentSymbols holds the active symbol set
var currentSymbols = defaultSymbols

// SetNerdfont enables or disables nerd font symbols
func SetNerdfont(enabled bool) {
	useNerdfont = enabled
	if enabled {
		currentSymbols = nerdfontSymbols
	} else {
		currentSymbols = defaultSymbols
	}
}

// NerdfontEnabled returns whether nerd font symbols are enabled
func NerdfontEnabled() bool {
	return useNerdfont
}

// CurrentSymbols returns the current symbol set
func CurrentSymbols() Symbols {
	return currentSymbols
}
