package render

import "regexp"

// SGR escape sequences for board styling.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red         = "\033[31m"
	Green       = "\033[32m"
	Yellow      = "\033[33m"
	Blue        = "\033[34m"
	Magenta     = "\033[35m"
	Cyan        = "\033[36m"
	BrightBlack = "\033[90m"
)

// sgr matches one Select Graphic Rendition sequence.
var sgr = regexp.MustCompile("\033\\[[0-9;]*m")

// Colorize wraps text in style and Reset. An empty style leaves text as is.
func Colorize(style, text string) string {
	if style == "" {
		return text
	}
	return style + text + Reset
}

// StripANSI removes every SGR sequence from s, so a coloured board compares
// equal to its plain rendering.
//
// Postcondition: The result contains no "\033[...m" sequence.
func StripANSI(s string) string {
	return sgr.ReplaceAllString(s, "")
}
