// Package output renders benchmark progress and reports for the terminal
// and for machine consumption.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/loadphase/internal/engine"
)

// ANSI escape codes for redrawing the live display
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"

	ruleChar = "━"
	ruleLen  = 64
)

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer      io.Writer
	Quiet       bool
	NoColor     bool
	ForceColors bool
	ForceTTY    bool
}

// Console prints the header, live progress and final summary of a run.
type Console struct {
	writer io.Writer
	isTTY  bool
	quiet  bool
	colors *ColorScheme
	plain  bool

	mu          sync.Mutex
	linesOutput int
}

// NewConsole creates a console writer.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	isTTY := cfg.ForceTTY || isTerminal(cfg.Writer)

	c := &Console{writer: cfg.Writer, isTTY: isTTY, quiet: cfg.Quiet}
	switch {
	case cfg.NoColor:
		c.colors, c.plain = NoColorScheme(), true
	case cfg.ForceColors:
		c.colors = ForcedColorScheme()
	case isTTY && supportsColors():
		c.colors = DefaultColorScheme()
	default:
		c.colors, c.plain = NoColorScheme(), true
	}
	return c
}

// isTerminal checks if the writer is a terminal.
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok && (f == os.Stdout || f == os.Stderr) {
		return checkIsTerminal(f)
	}
	return false
}

// supportsColors checks the environment for color preferences.
func supportsColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	term := os.Getenv("TERM")
	return term != "dumb"
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the benchmark header.
func (c *Console) PrintHeader(name, runID string, phases int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rule := c.colors.Rule.Sprint(strings.Repeat(ruleChar, ruleLen))
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - Running %s", c.colors.Title.Sprint(name),
		c.colors.Dim.Sprintf("[%d phases, run %s]", phases, runID)))
	c.writeln(rule)
	c.writeln("")
}

// Update shows the statistics of the last interval. On a terminal the
// previous display is redrawn, otherwise one line per active phase is
// appended.
func (c *Console) Update(p *engine.Progress) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	running := p.Running()
	if !c.isTTY {
		for _, pp := range running {
			c.writeln(c.progressLine(p.Elapsed, pp))
		}
		return
	}

	c.clearLive()
	lines := []string{c.colors.Label.Sprintf("Elapsed: %s", formatDuration(p.Elapsed))}
	for _, pp := range running {
		lines = append(lines, "  "+c.progressLine(0, pp))
	}
	for _, line := range lines {
		c.writeln(line)
	}
	c.linesOutput = len(lines)
}

func (c *Console) progressLine(elapsed time.Duration, pp engine.PhaseProgress) string {
	iv := pp.Interval
	rate := errorRate(iv.Errors, iv.Requests)
	line := fmt.Sprintf("%s %s | sessions: %d | reqs: %s | errors: %s | mean: %s | p99: %s",
		c.colors.Phase.Sprint(pp.Name),
		c.colors.Status(pp.Status.String(), false).Sprint(pp.Status),
		pp.ActiveSessions,
		formatNumber(iv.Requests),
		c.colors.ErrorRate(rate).Sprintf("%d (%.1f%%)", iv.Errors, rate*100),
		formatDurationShort(iv.Latency.Mean),
		formatDurationShort(iv.Latency.P99))
	if elapsed > 0 {
		line = fmt.Sprintf("[%s] %s", formatDuration(elapsed), line)
	}
	return line
}

func (c *Console) clearLive() {
	if !c.isTTY || c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

// PrintSummary prints the final report.
func (c *Console) PrintSummary(r *engine.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quiet {
		if r.Failed() {
			c.writeln(c.colors.Error.Sprint("FAILED"))
		} else {
			c.writeln(c.colors.Success.Sprint("PASSED"))
		}
		return
	}
	c.clearLive()

	status := c.colors.StatusOK.Sprint("Completed " + SuccessIcon(true))
	if r.Failed() {
		status = c.colors.StatusError.Sprint("Failed " + ErrorIcon(true))
	}
	rule := c.colors.Rule.Sprint(strings.Repeat(ruleChar, ruleLen))
	c.writeln("")
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(r.Benchmark), status))
	c.writeln(rule)
	c.writeln("")

	requests, errs := r.Totals()
	rate := errorRate(errs, requests)
	c.writeln(fmt.Sprintf("Run:         %s", c.colors.Dim.Sprint(r.RunID)))
	c.writeln(fmt.Sprintf("Duration:    %s", c.colors.Value.Sprint(formatDuration(r.Duration))))
	c.writeln(fmt.Sprintf("Requests:    %s", c.colors.Value.Sprint(formatNumber(requests))))
	c.writeln(fmt.Sprintf("Errors:      %s", c.colors.ErrorRate(rate).Sprintf("%s (%.1f%%)", formatNumber(errs), rate*100)))
	c.writeln("")

	c.writeln(c.colors.Title.Sprint("Phases:"))
	for _, p := range r.Phases {
		c.writePhase(p)
	}

	if len(r.SLAFailures) > 0 {
		c.writeln(c.colors.Title.Sprint("SLA failures:"))
		for _, f := range r.SLAFailures {
			c.writeln(fmt.Sprintf("  %s %s/%s: %s", c.icon(false), f.Phase, f.Sequence, f.Message))
		}
		c.writeln("")
	}
}

func (c *Console) writePhase(p engine.PhaseReport) {
	failed := p.Error != ""
	c.writeln(fmt.Sprintf("  %s %s %s %s",
		c.icon(!failed),
		c.colors.Phase.Sprint(p.Name),
		c.colors.Status(p.Status, failed).Sprint(p.Status),
		c.colors.Dim.Sprint(formatDuration(p.Duration))))
	if failed {
		c.writeln("      " + c.colors.Error.Sprint(p.Error))
	}
	if len(p.Sequences) == 0 {
		return
	}
	c.writeln(c.colors.Label.Sprintf("      %-20s %10s %8s %9s %9s %9s %9s",
		"sequence", "requests", "errors", "mean", "p50", "p90", "p99"))
	for _, s := range p.Sequences {
		sum := s.Summary
		c.writeln(fmt.Sprintf("      %-20s %10s %8s %9s %9s %9s %9s",
			truncate(s.Name, 20),
			formatNumber(sum.Requests),
			formatNumber(sum.Errors),
			formatDurationShort(sum.Latency.Mean),
			formatDurationShort(sum.Latency.P50),
			formatDurationShort(sum.Latency.P90),
			formatDurationShort(sum.Latency.P99)))
	}
	c.writeln("")
}

func (c *Console) icon(ok bool) string {
	if ok {
		return SuccessIcon(c.plain)
	}
	return ErrorIcon(c.plain)
}

// write writes to the output without a newline.
func (c *Console) write(s string) {
	fmt.Fprint(c.writer, s)
}

// writeln writes to the output with a newline.
func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

func errorRate(errs, requests int64) float64 {
	if requests == 0 {
		return 0
	}
	return float64(errs) / float64(requests)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a latency.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}
