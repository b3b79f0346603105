package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// kioskTheme wraps an existing theme with a black background and larger
// text, for reading across a room.
type kioskTheme struct {
	fyne.Theme
}

var _ fyne.Theme = (*kioskTheme)(nil)

func (t *kioskTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return t.Theme.Size(name) * 1.6
	case theme.SizeNamePadding:
		return 2
	}
	return t.Theme.Size(name)
}

func (t *kioskTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.Black
	case theme.ColorNameForeground:
		return color.White
	}
	return t.Theme.Color(name, variant)
}

// NewKioskTheme bases the kiosk look on baseTheme.
func NewKioskTheme(baseTheme fyne.Theme) fyne.Theme {
	return &kioskTheme{Theme: baseTheme}
}
