package application

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/bulkimport/internal/core"
	tea "github.com/charmbracelet/bubbletea"
)

/* ----------------------------------------
	MENU TREE
---------------------------------------- */

type MenuItem struct {
	Label   string
	Submenu *Menu
	Action  func() tea.Cmd
}

type Menu struct {
	Title  string
	Items  []MenuItem
	Parent *Menu
}

// linkParents points every "Back" item at the menu that contains its menu.
func linkParents(menu *Menu, parent *Menu) {
	menu.Parent = parent

	for i := range menu.Items {
		item := &menu.Items[i]

		if item.Label == "Back" {
			item.Submenu = parent
			continue
		}

		if item.Submenu != nil {
			linkParents(item.Submenu, menu)
		}
	}
}

/* ----------------------------------------
	MENU TREE DEFINITION
---------------------------------------- */

func buildMenuTree(m *Model) *Menu {
	template := &Menu{
		Title: "CSV Template",
		Items: []MenuItem{
			{Label: "Write " + m.templatePath, Action: m.writeTemplate},
			{Label: "Show columns", Action: showColumns},
			{Label: "Back"},
		},
	}

	root := &Menu{
		Title: "Process Import",
		Items: []MenuItem{
			{Label: "Import processes from CSV", Action: m.openWizard},
			{Label: "Template ->", Submenu: template},
			{Label: "Quit", Action: func() tea.Cmd { return tea.Quit }},
		},
	}

	linkParents(root, nil)
	return root
}

/* ----------------------------------------
	ACTIONS
---------------------------------------- */

func (m *Model) writeTemplate() tea.Cmd {
	path := m.templatePath
	return func() tea.Msg {
		if err := os.WriteFile(path, core.TemplateCSV(), 0o644); err != nil {
			return ErrMsg{Err: fmt.Errorf("write template: %w", err)}
		}
		return DoneMsg(core.TemplateDownloadedMessage + ": " + path)
	}
}

func showColumns() tea.Cmd {
	return func() tea.Msg {
		return DoneMsg(fmt.Sprintf("%d columns: %v", len(core.RequiredColumns), core.RequiredColumns))
	}
}
