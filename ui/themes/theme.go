package themes

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type ThemeName string

const (
	ThemeClay      ThemeName = "clay"
	ThemeSolarized ThemeName = "solarized"
	ThemeGruvbox   ThemeName = "gruvbox"
	ThemeZenburn   ThemeName = "zenburn"
	ThemeRandom    ThemeName = "random"
)

// themeNames lists valid theme names. ThemeRandom must stay first so
// NewRandom can pick from the concrete themes without recursing.
var themeNames = []ThemeName{ThemeRandom, ThemeClay, ThemeSolarized, ThemeGruvbox, ThemeZenburn}

// Theme represents a color theme for tview applications
type Theme struct {
	PrimitiveBackgroundColor    tcell.Color
	ContrastBackgroundColor     tcell.Color
	MoreContrastBackgroundColor tcell.Color
	BorderColor                 tcell.Color
	TitleColor                  tcell.Color
	GraphicsColor               tcell.Color
	PrimaryTextColor            tcell.Color
	SecondaryTextColor          tcell.Color
	TertiaryTextColor           tcell.Color
	InverseTextColor            tcell.Color
	ContrastSecondaryTextColor  tcell.Color
}

func ApplyByName(app *tview.Application, themeNameStr string) error {
	themeName := ThemeName(themeNameStr)
	if !slices.Contains(themeNames, themeName) {
		return fmt.Errorf("invalid theme name: %s", themeNameStr)
	}
	theme := getThemeByName(themeName)
	theme.Apply(app)
	return nil
}

// NewRandom returns a new Theme configured with a random color palette
func NewRandom() *Theme {
	concrete := themeNames[1:]
	themeName := concrete[rand.IntN(len(concrete))] // #nosec G404 // no need for cryptographically secure random number generator
	return getThemeByName(themeName)
}

// Apply applies the theme to tview.Styles (global styles).
// The app parameter is accepted for API consistency but styles are always applied globally.
func (t *Theme) Apply(app *tview.Application) {
	tview.Styles.PrimitiveBackgroundColor = t.PrimitiveBackgroundColor
	tview.Styles.ContrastBackgroundColor = t.ContrastBackgroundColor
	tview.Styles.MoreContrastBackgroundColor = t.MoreContrastBackgroundColor
	tview.Styles.BorderColor = t.BorderColor
	tview.Styles.TitleColor = t.TitleColor
	tview.Styles.GraphicsColor = t.GraphicsColor
	tview.Styles.PrimaryTextColor = t.PrimaryTextColor
	tview.Styles.SecondaryTextColor = t.SecondaryTextColor
	tview.Styles.TertiaryTextColor = t.TertiaryTextColor
	tview.Styles.InverseTextColor = t.InverseTextColor
	tview.Styles.ContrastSecondaryTextColor = t.ContrastSecondaryTextColor
}

// NewClay returns a new Theme with warm earth tones.
// Dark clay backgrounds with parchment text, terracotta and ochre accents.
func NewClay() *Theme {
	// Clay color palette
	bg0 := tcell.NewRGBColor(43, 33, 24)    // Dark clay background
	bg1 := tcell.NewRGBColor(33, 25, 18)    // Darker background
	bg2 := tcell.NewRGBColor(24, 18, 12)    // Even darker background
	fg0 := tcell.NewRGBColor(222, 205, 175) // Parchment foreground
	fg1 := tcell.NewRGBColor(240, 228, 205) // Brighter parchment

	// Accent colors
	terracotta := tcell.NewRGBColor(201, 112, 73) // Fired clay
	ochre := tcell.NewRGBColor(192, 151, 62)      // Ochre pigment
	sand := tcell.NewRGBColor(160, 140, 110)      // Weathered sand

	return &Theme{
		PrimitiveBackgroundColor:    bg0,
		ContrastBackgroundColor:     bg1,
		MoreContrastBackgroundColor: bg2,
		BorderColor:                 sand,
		TitleColor:                  fg1,
		GraphicsColor:               sand,
		PrimaryTextColor:            fg0,
		SecondaryTextColor:          ochre,
		TertiaryTextColor:           terracotta,
		InverseTextColor:            fg1,
		ContrastSecondaryTextColor:  fg0,
	}
}

// NewSolarized returns a new Theme configured with Solarized Dark colors
func NewSolarized() *Theme {
	// Solarized Dark color palette
	// Base colors
	base03 := tcell.NewRGBColor(0, 43, 54)    // Darkest background
	base02 := tcell.NewRGBColor(7, 54, 66)    // Dark background
	base01 := tcell.NewRGBColor(88, 110, 117) // Dark content
	base0 := tcell.NewRGBColor(131, 148, 150) // Bright content
	base1 := tcell.NewRGBColor(147, 161, 161) // Brighter content
	base2 := tcell.NewRGBColor(238, 232, 213) // Light background
	base3 := tcell.NewRGBColor(253, 246, 227) // Lightest background

	// Accent colors
	yellow := tcell.NewRGBColor(181, 137, 0) // Yellow
	cyan := tcell.NewRGBColor(42, 161, 152)  // Cyan

	return &Theme{
		PrimitiveBackgroundColor:    base03,
		ContrastBackgroundColor:     base02,
		MoreContrastBackgroundColor: base01,
		BorderColor:                 base0,
		TitleColor:                  base1,
		GraphicsColor:               base0,
		PrimaryTextColor:            base0,
		SecondaryTextColor:          yellow,
		TertiaryTextColor:           cyan,
		InverseTextColor:            base3,
		ContrastSecondaryTextColor:  base2,
	}
}

// NewGruvbox returns a new Theme configured with Gruvbox Dark colors
// Based on: https://github.com/morhetz/gruvbox
func NewGruvbox() *Theme {
	// Gruvbox Dark color palette
	bg0 := tcell.NewRGBColor(40, 40, 40)      // Background
	bg1 := tcell.NewRGBColor(60, 56, 54)      // Darker background
	bg2 := tcell.NewRGBColor(80, 73, 69)      // Even darker background
	fg0 := tcell.NewRGBColor(235, 219, 178)   // Foreground
	fg1 := tcell.NewRGBColor(251, 241, 199)   // Brighter foreground
	yellow := tcell.NewRGBColor(215, 153, 33) // Yellow
	aqua := tcell.NewRGBColor(104, 157, 106)  // Cyan/Aqua
	gray := tcell.NewRGBColor(146, 131, 116)  // Gray

	return &Theme{
		PrimitiveBackgroundColor:    bg0,
		ContrastBackgroundColor:     bg1,
		MoreContrastBackgroundColor: bg2,
		BorderColor:                 gray,
		TitleColor:                  fg1,
		GraphicsColor:               gray,
		PrimaryTextColor:            fg0,
		SecondaryTextColor:          yellow,
		TertiaryTextColor:           aqua,
		InverseTextColor:            fg1,
		ContrastSecondaryTextColor:  fg0,
	}
}

// NewZenburn returns a new Theme configured with Zenburn colors
// A low-contrast color scheme designed to be easy on the eyes
func NewZenburn() *Theme {
	// Zenburn color palette
	bg0 := tcell.NewRGBColor(63, 63, 63)       // Background
	bg1 := tcell.NewRGBColor(48, 48, 48)       // Darker background
	bg2 := tcell.NewRGBColor(39, 39, 39)       // Even darker background
	fg0 := tcell.NewRGBColor(220, 220, 204)    // Foreground
	fg1 := tcell.NewRGBColor(255, 255, 255)    // Brighter foreground
	yellow := tcell.NewRGBColor(227, 206, 171) // Yellow
	cyan := tcell.NewRGBColor(147, 224, 227)   // Cyan

	return &Theme{
		PrimitiveBackgroundColor:    bg0,
		ContrastBackgroundColor:     bg1,
		MoreContrastBackgroundColor: bg2,
		BorderColor:                 fg0,
		TitleColor:                  fg1,
		GraphicsColor:               fg0,
		PrimaryTextColor:            fg0,
		SecondaryTextColor:          yellow,
		TertiaryTextColor:           cyan,
		InverseTextColor:            fg1,
		ContrastSecondaryTextColor:  fg0,
	}
}

// getThemeByName returns a theme by name, defaulting to Clay if invalid
func getThemeByName(themeName ThemeName) *Theme {
	switch themeName {
	case ThemeRandom:
		return NewRandom()
	case ThemeClay:
		return NewClay()
	case ThemeSolarized:
		return NewSolarized()
	case ThemeGruvbox:
		return NewGruvbox()
	case ThemeZenburn:
		return NewZenburn()
	}
	return NewClay()
}
