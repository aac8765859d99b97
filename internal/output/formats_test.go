package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"junit", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]OutputFormat{
		"report.json": FormatJSON,
		"report.YAML": FormatYAML,
		"report.yml":  FormatYAML,
		"report.txt":  FormatText,
		"report":      FormatJSON,
	}
	for path, want := range tests {
		if got := FormatForPath(path); got != want {
			t.Errorf("FormatForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(true), FormatJSON); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["runId"] != "run-1" {
		t.Errorf("runId = %v", decoded["runId"])
	}
	phases, ok := decoded["phases"].([]any)
	if !ok || len(phases) != 2 {
		t.Fatalf("phases = %v", decoded["phases"])
	}
	failures, ok := decoded["slaFailures"].([]any)
	if !ok || len(failures) != 1 {
		t.Errorf("slaFailures = %v", decoded["slaFailures"])
	}
}

func TestWriteReportYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(false), FormatYAML); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if decoded["benchmark"] != "shop" {
		t.Errorf("benchmark = %v", decoded["benchmark"])
	}
	if _, ok := decoded["slaFailures"]; ok {
		t.Error("empty SLA failures should be omitted")
	}
}

func TestWriteReportText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(false), FormatText); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if !strings.Contains(buf.String(), "shop - Completed") {
		t.Errorf("unexpected text report:\n%s", buf.String())
	}
}

func TestSaveReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.yaml")
	if err := SaveReport(path, sampleReport(false)); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "runId: run-1") {
		t.Errorf("unexpected report file:\n%s", data)
	}

	if err := SaveReport(filepath.Join(dir, "missing", "r.json"), sampleReport(false)); err == nil {
		t.Error("expected error for missing directory")
	}
}
