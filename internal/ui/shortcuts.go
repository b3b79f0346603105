package ui

import (
	"fyne.io/fyne/v2"
)

type action int

const (
	actionNone action = iota
	actionQuit
	actionFullscreen
	actionRefresh
	actionLogs
	actionLogsOlder
	actionLogsNewer
)

// keyAction maps a typed key to what the kiosk does with it.
func keyAction(name fyne.KeyName) action {
	switch name {
	case fyne.KeyQ, fyne.KeyEscape:
		return actionQuit
	case fyne.KeyF, fyne.KeyF11:
		return actionFullscreen
	case fyne.KeyR:
		return actionRefresh
	case fyne.KeyL:
		return actionLogs
	case fyne.KeyUp:
		return actionLogsOlder
	case fyne.KeyDown:
		return actionLogsNewer
	}
	return actionNone
}

func (k *Kiosk) handleKey(a action) {
	switch a {
	case actionQuit:
		go k.quit()
	case actionFullscreen:
		k.window.SetFullScreen(!k.window.FullScreen())
	case actionRefresh:
		if k.OnRefresh != nil {
			go k.OnRefresh()
		}
	case actionLogs:
		go k.logs.Toggle()
	case actionLogsOlder:
		go k.logs.Scroll(-1)
	case actionLogsNewer:
		go k.logs.Scroll(1)
	}
}
