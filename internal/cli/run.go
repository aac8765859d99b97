package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadphase/internal/config"
	"github.com/wesleyorama2/loadphase/internal/engine"
	"github.com/wesleyorama2/loadphase/internal/log"
	"github.com/wesleyorama2/loadphase/internal/output"
)

// ErrBenchmarkFailed is returned when the run completed but a phase failed
// or an SLA was violated.
var ErrBenchmarkFailed = errors.New("benchmark failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a benchmark from a configuration file",
	Long: `Run every phase of a benchmark and print a report.

  loadphase run -c shop.yaml
  loadphase run -c shop.yaml --json --output report.yaml
  loadphase run -c shop.yaml --metrics-addr :9090

The command exits non-zero when the run fails, a phase fails or an SLA is
violated. Interrupting the run terminates all phases and still prints the
report.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions{}
		opts.ConfigPath, _ = cmd.Flags().GetString("config")
		opts.Threads, _ = cmd.Flags().GetInt("threads")
		opts.Format, _ = cmd.Flags().GetString("format")
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			opts.Format = string(output.FormatJSON)
		}
		opts.Output, _ = cmd.Flags().GetString("output")
		opts.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
		opts.NoColor, _ = cmd.Flags().GetBool("no-color")
		opts.Quiet, _ = cmd.Flags().GetBool("quiet")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return executeRun(ctx, opts, cmd.OutOrStdout())
	},
}

type runOptions struct {
	ConfigPath  string
	Threads     int
	Format      string
	Output      string
	MetricsAddr string
	NoColor     bool
	Quiet       bool
}

// executeRun loads the benchmark, runs it and writes the report.
func executeRun(ctx context.Context, opts runOptions, out io.Writer) error {
	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	console := output.NewConsole(output.ConsoleConfig{
		Writer:  out,
		Quiet:   opts.Quiet || format != output.FormatText,
		NoColor: opts.NoColor,
	})

	engineOpts := []engine.Option{
		engine.WithRegisterer(reg),
		engine.WithLogger(log.WithComponent("engine")),
		engine.WithProgress(console.Update),
	}
	if opts.Threads > 0 {
		engineOpts = append(engineOpts, engine.WithThreads(opts.Threads))
	}
	eng, err := engine.New(cfg, engineOpts...)
	if err != nil {
		return fmt.Errorf("error creating engine: %w", err)
	}

	if opts.MetricsAddr != "" {
		srv := serveMetrics(opts.MetricsAddr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	console.PrintHeader(cfg.Name, eng.RunID(), len(cfg.Phases))
	report, runErr := eng.Run(ctx)
	if report != nil {
		if err := writeReport(console, out, report, format); err != nil {
			return err
		}
		if opts.Output != "" {
			if err := output.SaveReport(opts.Output, report); err != nil {
				return err
			}
		}
	}

	if runErr != nil {
		return fmt.Errorf("error running benchmark: %w", runErr)
	}
	if report.Failed() {
		return ErrBenchmarkFailed
	}
	return nil
}

func writeReport(console *output.Console, out io.Writer, report *engine.Report, format output.OutputFormat) error {
	if format == output.FormatText {
		console.PrintSummary(report)
		return nil
	}
	return output.WriteReport(out, report, format)
}

// serveMetrics exposes reg on addr until the returned server is shut down.
func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger := log.WithComponent("metrics")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics endpoint failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Benchmark configuration file (required)")
	runCmd.Flags().Int("threads", 0, "Number of event loops (default: from config, else GOMAXPROCS)")
	runCmd.Flags().StringP("format", "f", "text", "Report format (text, json, yaml)")
	runCmd.Flags().Bool("json", false, "Shorthand for --format json")
	runCmd.Flags().StringP("output", "o", "", "Also write the report to this file (.json, .yaml or .txt)")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	runCmd.Flags().Bool("no-color", false, "Disable colored output")
	runCmd.Flags().BoolP("quiet", "q", false, "Disable live progress output, print only PASSED or FAILED")
	_ = runCmd.MarkFlagRequired("config")
}
