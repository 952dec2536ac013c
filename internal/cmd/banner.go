package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var bannerStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder()).
	Padding(0, 2).
	BorderForeground(lipgloss.Color("63"))

// printBanner prints the startup banner to stdout. Log output goes to
// stderr or a file, so the banner never interleaves with log lines.
func printBanner() {
	banner := fmt.Sprintf("TRC - The Riven Companion v%s\n\nAutomatically fixes failed and stalled items in Riven", Version)
	fmt.Println(bannerStyle.Render(banner))
}
