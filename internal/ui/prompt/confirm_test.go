package prompt

import (
	"fmt"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
)

func press(s string) tea.KeyPressMsg {
	switch s {
	case "ctrl+c":
		return tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl}
	case "enter":
		return tea.KeyPressMsg{Code: tea.KeyEnter}
	case "esc":
		return tea.KeyPressMsg{Code: tea.KeyEscape}
	}
	return tea.KeyPressMsg{Code: rune(s[0]), Text: s}
}

func TestConfirmModel_Keys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want ConfirmResult
		quit bool
	}{
		{key: "y", want: ConfirmResult{Confirmed: true}, quit: true},
		{key: "Y", want: ConfirmResult{Confirmed: true}, quit: true},
		{key: "n", quit: true},
		{key: "enter", quit: true},
		{key: "esc", want: ConfirmResult{Cancelled: true}, quit: true},
		{key: "ctrl+c", want: ConfirmResult{Cancelled: true}, quit: true},
		{key: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()

			updated, cmd := confirmModel{question: "Clear the cache?"}.Update(press(tt.key))
			m := updated.(confirmModel)
			if m.result != tt.want {
				t.Errorf("result = %+v, want %+v", m.result, tt.want)
			}
			if m.done != tt.quit || (cmd != nil) != tt.quit {
				t.Errorf("done = %v, cmd = %v, want quit = %v", m.done, cmd != nil, tt.quit)
			}
		})
	}
}

func TestConfirmModel_ViewListsAffected(t *testing.T) {
	t.Parallel()

	m := confirmModel{question: "Clear 2 orgs?", affected: []string{"Dev (12 files)", "Prod (40 files)"}}
	view := fmt.Sprint(m.View().Content)
	for _, want := range []string{"Dev (12 files)", "Prod (40 files)", "Clear 2 orgs?", "[y/N]"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}

	m.done = true
	if got := fmt.Sprint(m.View().Content); got != "" {
		t.Errorf("View() after answer = %q, want empty", got)
	}
}

func TestPickModel_Cancel(t *testing.T) {
	t.Parallel()

	m := pickModel{picked: -1}
	updated, cmd := m.Update(press("esc"))
	if um := updated.(pickModel); !um.done || um.picked != -1 {
		t.Errorf("esc: done = %v, picked = %d", um.done, um.picked)
	}
	if cmd == nil {
		t.Error("esc should quit")
	}
}

func TestPick_NoChoices(t *testing.T) {
	t.Parallel()

	res, err := Pick("Pick a file", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cancelled || res.Index != -1 {
		t.Errorf("Pick() with no choices = %+v, want cancelled", res)
	}
}
