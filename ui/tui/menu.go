package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showAssistants() {
	assistants := a.chatService.ListAssistants()

	// Create a selectable list of assistants
	assistantList := tview.NewList()
	assistantList.SetBorder(true).SetTitle("Assistants - Select One to Chat")

	for _, as := range assistants {
		assistantID := as.ID // Capture in closure
		assistantName := as.Name

		secondary := ""
		if as.Provider != "" && as.Model != "" {
			secondary = fmt.Sprintf("%s/%s", as.Provider, as.Model)
		}

		assistantList.AddItem(assistantName, secondary, 0, func() {
			a.showChat(assistantID)
		})
	}

	assistantList.AddItem("Back", "Return to main menu", 'b', func() {
		a.pages.SwitchToPage("main")
		a.app.SetFocus(a.sidebar)
	})

	// Handle Esc key to go back
	assistantList.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEsc {
			a.pages.SwitchToPage("main")
			a.app.SetFocus(a.sidebar)
			return nil
		}
		return ev
	})

	// Create a page for the assistant list
	a.pages.AddPage("assistant_list", assistantList, true, false)
	a.pages.SwitchToPage("assistant_list")
	a.app.SetFocus(assistantList)
}
