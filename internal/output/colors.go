package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Title       *color.Color
	Rule        *color.Color
	Phase       *color.Color
	Label       *color.Color
	Value       *color.Color
	Dim         *color.Color
	StatusOK    *color.Color
	StatusWarn  *color.Color
	StatusError *color.Color
	Success     *color.Color
	Error       *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:       color.New(color.Bold),
		Rule:        color.New(color.FgCyan),
		Phase:       color.New(color.FgMagenta, color.Bold),
		Label:       color.New(color.FgYellow),
		Value:       color.New(color.FgCyan),
		Dim:         color.New(color.Faint),
		StatusOK:    color.New(color.FgGreen, color.Bold),
		StatusWarn:  color.New(color.FgYellow, color.Bold),
		StatusError: color.New(color.FgRed, color.Bold),
		Success:     color.New(color.FgGreen),
		Error:       color.New(color.FgRed),
	}
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{
		s.Title, s.Rule, s.Phase, s.Label, s.Value, s.Dim,
		s.StatusOK, s.StatusWarn, s.StatusError, s.Success, s.Error,
	}
}

// ForcedColorScheme returns the default scheme with colors enabled even
// when stdout is not a terminal.
func ForcedColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.EnableColor()
	}
	return scheme
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

// Status returns the color for a phase status.
func (s *ColorScheme) Status(status string, failed bool) *color.Color {
	switch {
	case failed:
		return s.StatusError
	case status == "TERMINATED":
		return s.StatusOK
	case status == "NOT_STARTED":
		return s.Dim
	default:
		return s.StatusWarn
	}
}

// ErrorRate returns the color for an error ratio between 0 and 1.
func (s *ColorScheme) ErrorRate(rate float64) *color.Color {
	switch {
	case rate > 0.05:
		return s.Error
	case rate > 0.01:
		return s.StatusWarn
	default:
		return s.Success
	}
}

// SuccessIcon returns a checkmark symbol with appropriate color
func SuccessIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return color.New(color.FgGreen).Sprint("✓")
}

// ErrorIcon returns an X symbol with appropriate color
func ErrorIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return color.New(color.FgRed).Sprint("✗")
}
