package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadphase/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a benchmark configuration without running it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ %s is valid: %d scenarios, %d phases\n", path, len(cfg.Scenarios), len(cfg.Phases))
		for _, name := range cfg.SortedPhaseNames() {
			fmt.Fprintf(out, "  %s\n", describePhase(name, cfg.Phases[name]))
		}
		return nil
	},
}

// describePhase renders a one-line summary of a validated phase.
func describePhase(name string, p *config.PhaseConfig) string {
	model, _ := p.Model()
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s on %s", name, model.Type, p.Scenario)
	if p.Duration > 0 {
		fmt.Fprintf(&b, ", duration %s", p.Duration)
	}
	if p.MaxDuration != nil {
		fmt.Fprintf(&b, ", max %s", *p.MaxDuration)
	}
	if len(p.StartAfter) > 0 {
		fmt.Fprintf(&b, ", after %s", strings.Join(p.StartAfter, ","))
	}
	if len(p.StartAfterStrict) > 0 {
		fmt.Fprintf(&b, ", strictly after %s", strings.Join(p.StartAfterStrict, ","))
	}
	return b.String()
}

func init() {
	validateCmd.Flags().StringP("config", "c", "", "Benchmark configuration file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}
