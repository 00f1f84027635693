// Package picker is the interactive file picker used by `merges split` when
// no plan is given on the command line.
package picker

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/merges/internal/errors"
	"github.com/Iron-Ham/merges/internal/planner"
	"github.com/Iron-Ham/merges/internal/tui/styles"
)

// Model is the Bubbletea model for the chunk picker. Files are selected with
// the cursor, then named into a chunk; each file can join only one chunk.
type Model struct {
	files     []string
	owner     map[string]string // file -> chunk name
	selected  map[int]bool
	cursor    int
	offset    int
	height    int
	naming    bool
	input     textinput.Model
	plan      planner.Plan
	errorMsg  string
	done      bool
	cancelled bool
}

// New creates a picker over the changed files.
func New(files []string) Model {
	ti := textinput.New()
	ti.Placeholder = "chunk name"
	ti.CharLimit = 64
	ti.Width = 40

	return Model{
		files:    slices.Clone(files),
		owner:    make(map[string]string),
		selected: make(map[int]bool),
		input:    ti,
	}
}

// Plan returns the chunks named so far.
func (m Model) Plan() planner.Plan {
	return slices.Clone(m.plan)
}

// Cancelled reports whether the user aborted with ctrl+c.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Unassigned returns the files not yet in any chunk.
func (m Model) Unassigned() []string {
	var out []string
	for _, f := range m.files {
		if _, ok := m.owner[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		m.errorMsg = ""
		if m.naming {
			return m.handleNaming(msg)
		}
		return m.handleList(msg)
	}
	return m, nil
}

func (m Model) handleList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.cancelled = true
		return m, tea.Quit

	case "q", "esc":
		m.done = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.files)-1 {
			m.cursor++
		}

	case " ", "x":
		if len(m.files) == 0 {
			break
		}
		if owner, ok := m.owner[m.files[m.cursor]]; ok {
			m.errorMsg = fmt.Sprintf("already in chunk '%s'", owner)
			break
		}
		if m.selected[m.cursor] {
			delete(m.selected, m.cursor)
		} else {
			m.selected[m.cursor] = true
		}

	case "a":
		for i, f := range m.files {
			if _, ok := m.owner[f]; !ok {
				m.selected[i] = true
			}
		}

	case "u":
		m.undoLast()

	case "enter":
		if len(m.selected) == 0 {
			m.errorMsg = "select at least one file first"
			break
		}
		m.naming = true
		m.input.SetValue("")
		cmd := m.input.Focus()
		return m, cmd
	}

	m.clampOffset()
	return m, nil
}

func (m Model) handleNaming(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.cancelled = true
		return m, tea.Quit

	case "esc":
		m.naming = false
		m.input.Blur()
		return m, nil

	case "enter":
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.errorMsg = "chunk name cannot be empty"
			return m, nil
		}
		if m.hasChunk(name) {
			m.errorMsg = fmt.Sprintf("a chunk named '%s' already exists", name)
			return m, nil
		}
		m.addChunk(name)
		m.naming = false
		m.input.Blur()
		if len(m.Unassigned()) == 0 {
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// addChunk turns the current selection into a chunk, keeping diff order.
func (m *Model) addChunk(name string) {
	var files []string
	for i, f := range m.files {
		if m.selected[i] {
			files = append(files, f)
			m.owner[f] = name
		}
	}
	m.plan = append(m.plan, planner.Entry{Name: name, Files: files})
	m.selected = make(map[int]bool)
}

func (m *Model) undoLast() {
	if len(m.plan) == 0 {
		return
	}
	last := m.plan[len(m.plan)-1]
	for _, f := range last.Files {
		delete(m.owner, f)
	}
	m.plan = m.plan[:len(m.plan)-1]
}

func (m Model) hasChunk(name string) bool {
	return slices.ContainsFunc(m.plan, func(e planner.Entry) bool { return e.Name == name })
}

// visibleRows is the number of file rows that fit under the header and help.
func (m Model) visibleRows() int {
	if m.height <= 0 {
		return len(m.files)
	}
	return max(m.height-8, 3)
}

func (m *Model) clampOffset() {
	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

func (m Model) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render("Split changes into chunks"))
	b.WriteString("\n")
	b.WriteString(styles.Subtitle.Render(fmt.Sprintf("%d files, %d chunks, %d unassigned",
		len(m.files), len(m.plan), len(m.Unassigned()))))
	b.WriteString("\n\n")

	end := min(m.offset+m.visibleRows(), len(m.files))
	for i := m.offset; i < end; i++ {
		f := m.files[i]
		cursor := "  "
		if i == m.cursor {
			cursor = styles.Cursor.Render("> ")
		}
		var line string
		switch owner, ok := m.owner[f]; {
		case ok:
			line = styles.Assigned.Render(f) + " " + styles.Muted.Render("("+owner+")")
		case m.selected[i]:
			line = styles.Selected.Render("[x] " + f)
		default:
			line = styles.Text.Render("[ ] " + f)
		}
		b.WriteString(cursor + line + "\n")
	}

	if m.naming {
		b.WriteString("\n")
		b.WriteString(styles.Primary.Render("Chunk name: "))
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.errorMsg != "" {
		b.WriteString("\n" + styles.Error.Render(m.errorMsg) + "\n")
	}

	b.WriteString(styles.HelpBar.Render(m.help()))
	return b.String()
}

func (m Model) help() string {
	key := styles.HelpKey.Render
	if m.naming {
		return key("enter") + " create chunk  " + key("esc") + " back"
	}
	return key("↑/↓") + " move  " + key("space") + " select  " + key("a") + " select rest  " +
		key("enter") + " name chunk  " + key("u") + " undo  " + key("q") + " done"
}

// Run shows the picker and returns the plan the user built. Files left
// unassigned stay on the source branch only.
func Run(files []string) (planner.Plan, error) {
	if len(files) == 0 {
		return nil, errors.NewValidationError("no changed files to pick from").WithCause(errors.ErrEmptyPlan)
	}

	final, err := tea.NewProgram(New(files)).Run()
	if err != nil {
		return nil, errors.Wrap(err, "picker failed")
	}
	m := final.(Model)
	if m.Cancelled() {
		return nil, errors.NewValidationError("split cancelled")
	}
	if len(m.plan) == 0 {
		return nil, errors.NewValidationError("no chunks were created").WithCause(errors.ErrEmptyPlan)
	}
	return m.Plan(), nil
}
