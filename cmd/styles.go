package main

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = newPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500")

// palette holds the console styles for step markers and headers.
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
}

func newPalette(t, s, e, w string) *palette {
	return &palette{
		title: newBold(t),
		ok:    newBold(s),
		err:   newBold(e),
		warn:  newStyle(w),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

// okMarker renders "[Ok]" or "[Ok: detail]".
func okMarker(detail string) string {
	if detail == "" {
		return styles.ok.Render("[Ok]")
	}
	return styles.ok.Render("[Ok: " + detail + "]")
}

func failedMarker() string {
	return styles.err.Render("[Failed]")
}
