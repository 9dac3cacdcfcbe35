package viz

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors of the reporter and the viewer.
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Reference lipgloss.Color
	Measured  lipgloss.Color
	Error     lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
}

var (
	ThemeDefault = Theme{
		Name:      "default",
		Primary:   lipgloss.Color("86"),
		Reference: lipgloss.Color("#5f87ff"),
		Measured:  lipgloss.Color("#ff5f5f"),
		Error:     lipgloss.Color("#ffaa00"),
		Text:      lipgloss.Color("252"),
		Muted:     lipgloss.Color("240"),
	}

	ThemeRetroGreen = Theme{
		Name:      "retro",
		Primary:   lipgloss.Color("#00ff00"),
		Reference: lipgloss.Color("#88ff88"),
		Measured:  lipgloss.Color("#00cc00"),
		Error:     lipgloss.Color("#ffff00"),
		Text:      lipgloss.Color("#00ff00"),
		Muted:     lipgloss.Color("#005500"),
	}

	ThemeMinimal = Theme{
		Name:      "minimal",
		Primary:   lipgloss.Color("#ffffff"),
		Reference: lipgloss.Color("#0088ff"),
		Measured:  lipgloss.Color("#cccccc"),
		Error:     lipgloss.Color("#ff0000"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#888888"),
	}
)

var AllThemes = []Theme{ThemeDefault, ThemeRetroGreen, ThemeMinimal}

// NextTheme returns the theme after current in AllThemes, wrapping around.
func NextTheme(current Theme) Theme {
	for i, t := range AllThemes {
		if t.Name == current.Name {
			return AllThemes[(i+1)%len(AllThemes)]
		}
	}
	return AllThemes[0]
}

func GetTheme(name string) Theme {
	for _, t := range AllThemes {
		if t.Name == name {
			return t
		}
	}
	return ThemeDefault
}
