// Package application is the terminal front-end of the import wizard. It
// drives the same core.Wizard as the web server, step by step.
package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).MarginBottom(1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// previewRows is how many rows the preview step prints.
const previewRows = 5

type mode int

const (
	modeMenu mode = iota
	modeFile
	modeWizard
)

// Config wires the model to the import pipeline.
type Config struct {
	// NewWizard opens a wizard for one import.
	NewWizard func() *core.Wizard
	// TemplatePath is where the template action writes the CSV template.
	TemplatePath string
}

// Model is the bubbletea model of the terminal wizard.
type Model struct {
	menu   *Menu
	cursor int
	mode   mode

	input        textinput.Model
	newWizard    func() *core.Wizard
	templatePath string

	wizard       *core.Wizard
	progress     <-chan core.ImportProgress
	stopProgress func()
	last         core.ImportProgress

	status string
	err    error
}

// New returns the model positioned on the main menu.
func New(cfg Config) *Model {
	if cfg.TemplatePath == "" {
		cfg.TemplatePath = core.TemplateFileName
	}

	ti := textinput.New()
	ti.Placeholder = "path/to/processes.csv"
	ti.CharLimit = 512
	ti.Width = 60
	// A static cursor keeps Focus from scheduling blink ticks.
	_ = ti.Cursor.SetMode(cursor.CursorStatic)

	m := &Model{
		input:        ti,
		newWizard:    cfg.NewWizard,
		templatePath: cfg.TemplatePath,
	}
	m.menu = buildMenuTree(m)
	return m
}

// Run starts the program on the terminal.
func Run(cfg Config) error {
	_, err := tea.NewProgram(New(cfg), tea.WithAltScreen()).Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) openWizard() tea.Cmd {
	return func() tea.Msg { return wizardOpenedMsg{} }
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DoneMsg:
		m.status, m.err = string(msg), nil
		return m, nil

	case ErrMsg:
		m.status, m.err = "", msg.Err
		return m, nil

	case wizardOpenedMsg:
		m.wizard = m.newWizard()
		m.mode = modeFile
		m.status, m.err = "", nil
		m.input.SetValue("")
		return m, m.input.Focus()

	case progressMsg:
		m.last = core.ImportProgress(msg)
		return m, waitForProgress(m.progress)

	case importDoneMsg:
		m.stopProgress = nil
		m.progress = nil
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.closeWizard()
			return m, tea.Quit
		}
		switch m.mode {
		case modeMenu:
			return m.updateMenu(msg)
		case modeFile:
			return m.updateFile(msg)
		case modeWizard:
			return m.updateWizard(msg)
		}
	}

	if m.mode == modeFile {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.menu.Items)-1 {
			m.cursor++
		}
	case "esc":
		if m.menu.Parent != nil {
			m.menu, m.cursor = m.menu.Parent, 0
		}
	case "enter":
		item := m.menu.Items[m.cursor]
		switch {
		case item.Submenu != nil:
			m.menu, m.cursor = item.Submenu, 0
		case item.Label == "Back" && m.menu.Parent != nil:
			m.menu, m.cursor = m.menu.Parent, 0
		case item.Action != nil:
			return m, item.Action()
		}
	}
	return m, nil
}

func (m *Model) updateFile(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeWizard()
		return m, nil

	case tea.KeyEnter:
		path := strings.TrimSpace(m.input.Value())
		if path == "" {
			m.err = core.NewUserError(core.ErrNoFile)
			return m, nil
		}
		if err := m.selectFile(path); err != nil {
			m.err = core.NewUserError(err)
			return m, nil
		}
		if err := m.wizard.Next(); err != nil {
			// Stay on the prompt; the snapshot messages say why.
			m.err = nil
			return m, nil
		}
		m.mode = modeWizard
		m.input.Blur()
		m.err = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) selectFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	return m.wizard.SelectFile(core.FileHandle{
		Name: filepath.Base(path),
		Size: int64(len(data)),
		Data: data,
	})
}

func (m *Model) updateWizard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	step := m.wizard.CurrentStep()

	switch msg.String() {
	case "esc", "q":
		m.closeWizard()
		return m, nil

	case "b":
		if step != core.StepPreview {
			return m, nil
		}
		if err := m.wizard.Back(); err != nil {
			m.err = core.NewUserError(err)
			return m, nil
		}
		m.mode = modeFile
		return m, m.input.Focus()

	case "enter", "i":
		if step.Terminal() {
			m.closeWizard()
			return m, nil
		}
		if step != core.StepPreview {
			return m, nil
		}
		if err := m.wizard.StartImport(context.Background()); err != nil {
			m.err = core.NewUserError(err)
			return m, nil
		}
		m.err = nil
		m.progress, m.stopProgress = m.wizard.Subscribe()
		return m, waitForProgress(m.progress)
	}
	return m, nil
}

// closeWizard closes the current wizard, cancelling a running import, and
// returns to the main menu.
func (m *Model) closeWizard() {
	if m.stopProgress != nil {
		m.stopProgress()
		m.stopProgress = nil
	}
	if m.wizard != nil {
		_ = m.wizard.Close()
		m.wizard = nil
	}
	m.progress = nil
	m.last = core.ImportProgress{}
	m.mode = modeMenu
	m.input.Blur()
}

// waitForProgress reads one update from ch.
func waitForProgress(ch <-chan core.ImportProgress) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return importDoneMsg{}
		}
		return progressMsg(p)
	}
}

/* ----------------------------------------
	VIEW
---------------------------------------- */

func (m *Model) View() string {
	var b strings.Builder

	switch m.mode {
	case modeMenu:
		b.WriteString(titleStyle.Render(m.menu.Title) + "\n")
		for i, item := range m.menu.Items {
			if i == m.cursor {
				b.WriteString(selectedStyle.Render("> "+item.Label) + "\n")
			} else {
				b.WriteString("  " + item.Label + "\n")
			}
		}

	case modeFile:
		b.WriteString(titleStyle.Render("Select a CSV file") + "\n")
		b.WriteString(m.input.View() + "\n")
		if m.wizard != nil {
			for _, line := range m.wizard.Snapshot().Messages {
				b.WriteString(errorStyle.Render(line) + "\n")
			}
		}
		b.WriteString(mutedStyle.Render("enter: preview  esc: cancel") + "\n")

	case modeWizard:
		m.viewWizard(&b)
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString("\n" + okStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m *Model) viewWizard(b *strings.Builder) {
	snap := m.wizard.Snapshot()

	switch snap.Step {
	case core.StepPreview:
		b.WriteString(titleStyle.Render(fmt.Sprintf("Preview: %s (%d rows)", snap.FileName, snap.RowCount)) + "\n")
		for i, row := range snap.Rows {
			if i == previewRows {
				b.WriteString(mutedStyle.Render(fmt.Sprintf("... %d more", snap.RowCount-previewRows)) + "\n")
				break
			}
			fmt.Fprintf(b, "%3d  %s | %s | %s\n", i+1,
				row[core.ColProcessName], row[core.ColDepartment], row[core.ColTimeSpent])
		}
		for _, line := range snap.Messages {
			b.WriteString(errorStyle.Render(line) + "\n")
		}
		if snap.CanImport {
			b.WriteString(mutedStyle.Render("enter: import  b: back  esc: close") + "\n")
		} else {
			b.WriteString(mutedStyle.Render("b: back  esc: close") + "\n")
		}

	case core.StepImporting:
		p := m.last
		b.WriteString(titleStyle.Render("Importing") + "\n")
		fmt.Fprintf(b, "%d/%d rows (%d%%)  ok %d  failed %d\n", p.Done, p.Total, p.Percent(), p.Succeeded, p.Failed)
		b.WriteString(mutedStyle.Render("esc: cancel") + "\n")

	case core.StepSuccess, core.StepFailed:
		if snap.Step == core.StepSuccess {
			b.WriteString(titleStyle.Render("Import complete") + "\n")
		} else {
			b.WriteString(titleStyle.Render("Import failed") + "\n")
		}
		if res := snap.Result; res != nil {
			b.WriteString(okStyle.Render(fmt.Sprintf("%d imported", len(res.Succeeded))) + "\n")
			for _, f := range res.Failed {
				b.WriteString(errorStyle.Render(fmt.Sprintf("Row %d: %s", f.RowIndex, f.Reason)) + "\n")
			}
		}
		if snap.Failure != "" {
			b.WriteString(errorStyle.Render(snap.Failure) + "\n")
		}
		b.WriteString(mutedStyle.Render("enter: back to menu") + "\n")
	}
}
