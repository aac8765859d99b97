package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadphase/internal/engine"
	"github.com/wesleyorama2/loadphase/internal/output"
)

var reportCmd = &cobra.Command{
	Use:   "report <report.json>",
	Short: "Render a saved JSON report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		noColor, _ := cmd.Flags().GetBool("no-color")
		format, err := output.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		report, err := loadReport(args[0])
		if err != nil {
			return err
		}
		if format == output.FormatText {
			output.NewConsole(output.ConsoleConfig{Writer: cmd.OutOrStdout(), NoColor: noColor}).PrintSummary(report)
		} else if err := output.WriteReport(cmd.OutOrStdout(), report, format); err != nil {
			return err
		}
		if report.Failed() {
			return ErrBenchmarkFailed
		}
		return nil
	},
}

func loadReport(path string) (*engine.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report engine.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &report, nil
}

func init() {
	reportCmd.Flags().StringP("format", "f", "text", "Output format (text, json, yaml)")
	reportCmd.Flags().Bool("no-color", false, "Disable colored output")
}
