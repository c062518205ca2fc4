package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

type pickerModel struct {
	sources []string
	checked []bool
	cursor  int
	done    bool
	quit    bool
}

func newPickerModel(sources []string) pickerModel {
	checked := make([]bool, len(sources))
	for i := range checked {
		checked[i] = true
	}
	return pickerModel{sources: sources, checked: checked}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.sources)-1 {
				m.cursor++
			}
		case " ", "space", "x":
			if len(m.checked) > 0 {
				m.checked[m.cursor] = !m.checked[m.cursor]
			}
		case "a":
			all := !m.allChecked()
			for i := range m.checked {
				m.checked[i] = all
			}
		case "enter":
			if len(m.selected()) == 0 {
				return m, nil
			}
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) allChecked() bool {
	for _, c := range m.checked {
		if !c {
			return false
		}
	}
	return true
}

func (m pickerModel) selected() []string {
	var out []string
	for i, s := range m.sources {
		if m.checked[i] {
			out = append(out, s)
		}
	}
	return out
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Sync — Select sources")
	s += "\n"

	for i, src := range m.sources {
		box := "[ ]"
		if m.checked[i] {
			box = "[x]"
		}
		label := fmt.Sprintf("%s %s", box, src)
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+label) + "\n"
		} else {
			s += pickerItemStyle.Render(label) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  space toggle  a all/none  enter start  q quit")
	return s
}

// RunSourcePicker shows a checklist of sources, all checked initially.
// Returns the chosen sources, or ok=false if the user quit.
func RunSourcePicker(sources []string) (chosen []string, ok bool, err error) {
	p := tea.NewProgram(newPickerModel(sources))
	result, err := p.Run()
	if err != nil {
		return nil, false, err
	}

	final := result.(pickerModel)
	if final.quit || !final.done {
		return nil, false, nil
	}
	return final.selected(), true, nil
}
