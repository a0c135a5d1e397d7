// Package tui provides the interactive skill picker used when suggesting
// global skills for a project.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jingkaihe/docsync/pkg/matcher"
)

const descriptionLimit = 60

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)
)

// skillItem implements list.Item for a candidate skill
type skillItem struct {
	match    matcher.Match
	selected bool
}

func (i skillItem) Title() string {
	box := "[ ]"
	if i.selected {
		box = "[x]"
	}
	return box + " " + i.match.Name
}

func (i skillItem) Description() string {
	return fmt.Sprintf("%.2f | %s", i.match.Relevance, truncate(i.match.Description, descriptionLimit))
}

func (i skillItem) FilterValue() string {
	return i.match.Name
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

// Picker is the bubbletea model of the multi-select skill list. Every
// candidate starts selected.
type Picker struct {
	list      list.Model
	done      bool
	cancelled bool
}

// NewPicker creates a picker over candidates.
func NewPicker(candidates []matcher.Match) Picker {
	items := make([]list.Item, len(candidates))
	for i, c := range candidates {
		items[i] = skillItem{match: c, selected: true}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = selectedStyle
	delegate.Styles.SelectedDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	l := list.New(items, delegate, 80, 20)
	l.Title = "Copy global skills to project"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle

	return Picker{list: l}
}

func (m Picker) Init() tea.Cmd {
	return nil
}

func (m Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case " ", "x":
			idx := m.list.Index()
			if item, ok := m.list.SelectedItem().(skillItem); ok {
				item.selected = !item.selected
				return m, m.list.SetItem(idx, item)
			}
			return m, nil

		case "a":
			all := !m.allSelected()
			var cmds []tea.Cmd
			for i, it := range m.list.Items() {
				item := it.(skillItem)
				item.selected = all
				cmds = append(cmds, m.list.SetItem(i, item))
			}
			return m, tea.Batch(cmds...)

		case "enter":
			m.done = true
			return m, tea.Quit

		case "q", "esc", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Picker) View() string {
	if m.done || m.cancelled {
		return ""
	}

	help := helpStyle.Render("[space] Toggle  [a] All/none  [enter] Install  [q] Skip")
	return m.list.View() + "\n" + help
}

func (m Picker) allSelected() bool {
	for _, it := range m.list.Items() {
		if !it.(skillItem).selected {
			return false
		}
	}
	return true
}

// Selected returns the chosen candidates in their original order. It is
// empty when the picker was cancelled.
func (m Picker) Selected() []matcher.Match {
	if m.cancelled {
		return nil
	}
	var chosen []matcher.Match
	for _, it := range m.list.Items() {
		if item := it.(skillItem); item.selected {
			chosen = append(chosen, item.match)
		}
	}
	return chosen
}

// Cancelled reports whether the user skipped installation.
func (m Picker) Cancelled() bool {
	return m.cancelled
}

// RunPicker runs the interactive picker and returns the chosen skills.
func RunPicker(candidates []matcher.Match, opts ...tea.ProgramOption) ([]matcher.Match, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	p := tea.NewProgram(NewPicker(candidates), opts...)
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	return finalModel.(Picker).Selected(), nil
}

// Summary renders a numbered, non-interactive list of candidates for the
// line based prompt.
func Summary(candidates []matcher.Match) string {
	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, c.Name)
		fmt.Fprintf(&sb, "     %s\n", truncate(c.Description, descriptionLimit))
	}
	return sb.String()
}
