package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/loadphase/internal/engine"
)

// OutputFormat represents the available report formats
type OutputFormat string

const (
	// FormatText is the human-readable console summary
	FormatText OutputFormat = "text"
	// FormatJSON outputs the report as indented JSON
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs the report as YAML
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat converts a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// FormatForPath picks the format of a report file from its extension.
// Unknown extensions are written as JSON.
func FormatForPath(path string) OutputFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".txt":
		return FormatText
	default:
		return FormatJSON
	}
}

// WriteReport writes r to w in the given format. Text reports are never
// colored.
func WriteReport(w io.Writer, r *engine.Report, format OutputFormat) error {
	switch format {
	case FormatText, "":
		NewConsole(ConsoleConfig{Writer: w, NoColor: true}).PrintSummary(r)
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		doc, err := toYAMLDocument(r)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// toYAMLDocument round-trips through JSON so YAML keys match the JSON
// field names.
func toYAMLDocument(r *engine.Report) (any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert report: %w", err)
	}
	return doc, nil
}

// SaveReport writes r to path in the format matching its extension.
func SaveReport(path string, r *engine.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := WriteReport(f, r, FormatForPath(path)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
