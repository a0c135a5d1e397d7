package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates() []matcher.Match {
	return []matcher.Match{
		{Name: "go-idioms", Description: "Idiomatic golang code", Relevance: 0.78},
		{Name: "tailwind-styling", Description: strings.Repeat("t", 70), Relevance: 0.98},
		{Name: "docker-deploy", Description: "Container builds", Relevance: 0.5},
	}
}

func press(t *testing.T, m Picker, msg tea.KeyMsg) Picker {
	t.Helper()
	updated, _ := m.Update(msg)
	p, ok := updated.(Picker)
	require.True(t, ok)
	return p
}

var (
	space = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyA  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}}
)

func TestSkillItem(t *testing.T) {
	item := skillItem{match: candidates()[1], selected: true}
	assert.Equal(t, "[x] tailwind-styling", item.Title())
	assert.Equal(t, "tailwind-styling", item.FilterValue())
	assert.Equal(t, "0.98 | "+strings.Repeat("t", 60)+"...", item.Description())

	item.selected = false
	assert.Equal(t, "[ ] tailwind-styling", item.Title())
}

func TestPickerStartsWithEverythingSelected(t *testing.T) {
	m := NewPicker(candidates())
	assert.Nil(t, m.Init())
	assert.Equal(t, []string{"go-idioms", "tailwind-styling", "docker-deploy"}, matcher.Names(m.Selected()))
	assert.Contains(t, m.View(), "go-idioms")
	assert.Contains(t, m.View(), "[space] Toggle")
}

func TestPickerToggle(t *testing.T) {
	m := NewPicker(candidates())

	m = press(t, m, down)
	m = press(t, m, space)
	assert.Equal(t, []string{"go-idioms", "docker-deploy"}, matcher.Names(m.Selected()))

	m = press(t, m, space)
	assert.Len(t, m.Selected(), 3)
}

func TestPickerToggleAll(t *testing.T) {
	m := NewPicker(candidates())

	m = press(t, m, keyA)
	assert.Empty(t, m.Selected())

	m = press(t, m, keyA)
	assert.Len(t, m.Selected(), 3)

	m = press(t, m, space)
	m = press(t, m, keyA)
	assert.Len(t, m.Selected(), 3, "a partial selection is completed first")
}

func TestPickerConfirm(t *testing.T) {
	m := NewPicker(candidates())
	m = press(t, m, space)

	updated, cmd := m.Update(enter)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	final := updated.(Picker)
	assert.False(t, final.Cancelled())
	assert.Empty(t, final.View())
	assert.Equal(t, []string{"tailwind-styling", "docker-deploy"}, matcher.Names(final.Selected()))
}

func TestPickerCancel(t *testing.T) {
	m := NewPicker(candidates())
	m = press(t, m, esc)
	assert.True(t, m.Cancelled())
	assert.Nil(t, m.Selected())
}

func TestPickerWindowSize(t *testing.T) {
	m := NewPicker(candidates())
	updated, cmd := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Nil(t, cmd)
	assert.Equal(t, 120, updated.(Picker).list.Width())
}

func TestRunPickerWithoutCandidates(t *testing.T) {
	chosen, err := RunPicker(nil)
	require.NoError(t, err)
	assert.Nil(t, chosen)
}

func TestSummary(t *testing.T) {
	out := Summary(candidates()[:1])
	assert.Equal(t, "  1. go-idioms\n     Idiomatic golang code\n", out)
}
