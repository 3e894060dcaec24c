package util

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
)

const (
	ColorReset  = "\x1b[0m"
	ColorRed    = "\x1b[1;31m"
	ColorGreen  = "\x1b[1;32m"
	ColorYellow = "\x1b[1;33m"
	ColorBlue   = "\x1b[1;34m"
	ColorCyan   = "\x1b[1;36m"
)

func colorCode(name string) string {
	switch name {
	case "red":
		return ColorRed
	case "green":
		return ColorGreen
	case "yellow":
		return ColorYellow
	case "blue":
		return ColorBlue
	case "cyan":
		return ColorCyan
	default:
		return ColorReset
	}
}

// PrintBanner prints an ASCII banner in a single color.
func PrintBanner(text string, color string) {
	fig := figure.NewFigure(text, "", true)
	lines := fig.Slicify()

	ansiColor := colorCode(color)
	for _, line := range lines {
		fmt.Println(ansiColor + line + ColorReset)
	}
}
