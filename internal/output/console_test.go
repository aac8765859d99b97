package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/loadphase/internal/engine"
	"github.com/wesleyorama2/loadphase/internal/metrics"
	"github.com/wesleyorama2/loadphase/internal/phase"
)

func sampleReport(failed bool) *engine.Report {
	r := &engine.Report{
		RunID:     "run-1",
		Benchmark: "shop",
		Duration:  12 * time.Second,
		Phases: []engine.PhaseReport{
			{
				Name:     "warmup",
				Status:   "TERMINATED",
				Duration: 2 * time.Second,
				Sequences: []engine.SequenceReport{
					{Name: "browse", Summary: metrics.Summary{
						Requests: 1200,
						Errors:   6,
						Latency:  metrics.LatencyStats{Mean: 12 * time.Millisecond, P50: 10 * time.Millisecond, P90: 20 * time.Millisecond, P99: 45 * time.Millisecond},
					}},
				},
			},
			{Name: "steady", Status: "TERMINATED", Duration: 10 * time.Second},
		},
	}
	if failed {
		r.Phases[1].Error = "SLA failure in phase steady, sequence browse: error rate exceeded"
		r.SLAFailures = []engine.SLAFailureReport{{Phase: "steady", Sequence: "browse", Message: "error rate exceeded"}}
	}
	return r
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0ms"},
		{500 * time.Microsecond, "500µs"},
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.50s"},
		{90 * time.Second, "1.5m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDurationShort(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDurationShort(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{0, "0"},
		{100, "100"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatNumber(tt.number)
			if result != tt.expected {
				t.Errorf("formatNumber(%d) = %q, want %q", tt.number, result, tt.expected)
			}
		})
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, NoColor: true})
	c.PrintSummary(sampleReport(false))

	out := buf.String()
	for _, want := range []string{
		"shop - Completed",
		"run-1",
		"Requests:    1,200",
		"Errors:      6 (0.5%)",
		"warmup",
		"browse",
		"45ms",
		"steady",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "SLA failures") {
		t.Errorf("unexpected SLA section:\n%s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("no-color output contains escape codes:\n%s", out)
	}
}

func TestPrintSummaryFailed(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(ConsoleConfig{Writer: &buf, NoColor: true}).PrintSummary(sampleReport(true))

	out := buf.String()
	for _, want := range []string{"shop - Failed", "SLA failures:", "steady/browse: error rate exceeded", "✗"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrintSummaryQuiet(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(ConsoleConfig{Writer: &buf, Quiet: true, NoColor: true}).PrintSummary(sampleReport(true))
	if got := strings.TrimSpace(buf.String()); got != "FAILED" {
		t.Errorf("quiet summary = %q, want FAILED", got)
	}

	buf.Reset()
	NewConsole(ConsoleConfig{Writer: &buf, Quiet: true, NoColor: true}).PrintSummary(sampleReport(false))
	if got := strings.TrimSpace(buf.String()); got != "PASSED" {
		t.Errorf("quiet summary = %q, want PASSED", got)
	}
}

func TestForcedColors(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(ConsoleConfig{Writer: &buf, ForceColors: true}).PrintSummary(sampleReport(false))
	if !strings.Contains(buf.String(), "\033[") {
		t.Error("forced colors produced no escape codes")
	}
}

func progress() *engine.Progress {
	return &engine.Progress{
		Elapsed: 3 * time.Second,
		Phases: []engine.PhaseProgress{
			{Name: "warmup", Status: phase.StatusTerminated},
			{Name: "steady", Status: phase.StatusRunning, ActiveSessions: 7, Interval: metrics.Summary{
				Requests: 250, Errors: 5, Latency: metrics.LatencyStats{Mean: 8 * time.Millisecond, P99: 30 * time.Millisecond},
			}},
			{Name: "later", Status: phase.StatusNotStarted},
		},
	}
}

func TestUpdateNonInteractive(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, NoColor: true})
	if c.IsTTY() {
		t.Fatal("buffer should not be a terminal")
	}
	c.Update(progress())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line per running phase, got %d:\n%s", len(lines), buf.String())
	}
	want := "[3.0s] steady RUNNING | sessions: 7 | reqs: 250 | errors: 5 (2.0%) | mean: 8ms | p99: 30ms"
	if lines[0] != want {
		t.Errorf("progress line = %q, want %q", lines[0], want)
	}
}

func TestUpdateRedrawsOnTTY(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, NoColor: true, ForceTTY: true})
	c.Update(progress())
	if strings.Contains(buf.String(), "\033[2A") {
		t.Error("first update should not move the cursor")
	}
	c.Update(progress())
	if !strings.Contains(buf.String(), "\033[2A") {
		t.Errorf("second update should redraw the previous two lines:\n%q", buf.String())
	}
}

func TestQuietSuppressesProgress(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true})
	c.PrintHeader("shop", "run-1", 2)
	c.Update(progress())
	if buf.Len() != 0 {
		t.Errorf("quiet console wrote %q", buf.String())
	}
}

func TestColorSchemes(t *testing.T) {
	scheme := NoColorScheme()
	if got := scheme.Status("TERMINATED", false).Sprint("x"); got != "x" {
		t.Errorf("disabled color wrapped text: %q", got)
	}
	if scheme.Status("RUNNING", true) != scheme.StatusError {
		t.Error("failed phases should use the error color")
	}
	if scheme.ErrorRate(0.5) != scheme.Error || scheme.ErrorRate(0.02) != scheme.StatusWarn || scheme.ErrorRate(0) != scheme.Success {
		t.Error("unexpected error rate colors")
	}
	if SuccessIcon(true) != "✓" || ErrorIcon(true) != "✗" {
		t.Error("plain icons should not be colored")
	}
}
