package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ANSI color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorRed    = "\033[31m"
	ColorCyan   = "\033[36m"
)

// progressBarWidth is the number of cells in a progress bar
const progressBarWidth = 20

// IsOutputPiped detects whether standard output is redirected through a pipe
func IsOutputPiped() bool {
	stat, err := os.Stdout.Stat()
	if err != nil {
		return true
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// ColoredText returns colored text, if output is to a pipe, no color will be added
func ColoredText(text string, color string) string {
	if IsOutputPiped() {
		return text
	}
	return color + text + ColorReset
}

// ProgressBar renders amount (0 to 1) as a fixed-width bar followed by the
// operation, e.g. "[#####...............]  25% loading". Amounts outside
// the range are clamped.
func ProgressBar(operation string, amount float64) string {
	switch {
	case amount < 0:
		amount = 0
	case amount > 1:
		amount = 1
	}
	filled := int(amount * progressBarWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled)
	return fmt.Sprintf("[%s] %3d%% %s", bar, int(amount*100), operation)
}

// PrettyJSON indents a JSON document for display. Input that is not valid
// JSON is returned unchanged.
func PrettyJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}
