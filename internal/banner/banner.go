package banner

import (
	"github.com/charmbracelet/lipgloss"

	"culverin/internal/tui/styles"
)

// GetString renders the startup banner shown by `culverin help`.
func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
              __                _
  _______  __/ /   _____  _____(_)___
 / ___/ / / / / | / / _ \/ ___/ / __ \
/ /__/ /_/ / /| |/ /  __/ /  / / / / /
\___/\__,_/_/ |___/\___/_/  /_/_/ /_/`

	return "\n" + style.Render(ascii) + "\n"
}
