package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/vecops/internal/pipeline"
	"github.com/ajitpratap0/vecops/pkg/errors"
	"github.com/ajitpratap0/vecops/pkg/formats/columnar"
	"github.com/ajitpratap0/vecops/pkg/logger"
	"github.com/ajitpratap0/vecops/pkg/metrics"
	"github.com/ajitpratap0/vecops/pkg/observability"
	"github.com/ajitpratap0/vecops/pkg/vecops"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "vecops",
		Short: "vecops - vertical kernels over Arrow list columns",
		Long: `vecops folds list columns position by position across rows.
It reads Arrow, Parquet, Avro or JSON lines tables, applies sum, mean, min,
max or diff to their list columns and writes the result table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vecops v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "ops",
		Short: "List operations and their output types",
		Run: func(cmd *cobra.Command, args []string) {
			printOps(cmd.OutOrStdout())
		},
	})

	root.AddCommand(newApplyCommand())
	return root
}

var opRules = map[vecops.Op]string{
	vecops.OpSum:  "1 row; input element type, overflow is an error",
	vecops.OpMean: "1 row; float64",
	vecops.OpMin:  "1 row; input element type",
	vecops.OpMax:  "1 row; input element type",
	vecops.OpDiff: "same rows; input element type, first row null",
}

func printOps(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OP\tOUTPUT")
	for _, op := range vecops.Ops() {
		fmt.Fprintf(tw, "%s\t%s\n", op, opRules[op])
	}
	_ = tw.Flush()
}

func newApplyCommand() *cobra.Command {
	var opts applyOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a vertical kernel to the list columns of a table",
		Long: `Apply reads a table, runs one operation over its list columns and writes
the result. Columns are processed independently: a failing column is
reported and skipped while the others are still written.

Example:
  vecops apply --op mean --input embeddings.parquet --output centroid.arrow.zst
  vecops apply --op diff --input series.jsonl --columns price,volume`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.op, "op", "", "Operation to apply (sum, mean, min, max, diff)")
	f.StringVarP(&opts.input, "input", "i", "", "Input table path")
	f.StringVarP(&opts.output, "output", "o", "", "Output table path (JSON to stdout when empty)")
	f.StringSliceVar(&opts.columns, "columns", nil, "List columns to process (default all list columns)")
	f.StringVar(&opts.format, "format", "", "Input format, overriding detection (arrow, arrows, parquet, avro, jsonl)")
	f.StringVar(&opts.outputFormat, "output-format", "", "Output format, overriding detection")
	f.StringVar(&opts.elemType, "elem-type", "", "Element type for JSON lines input (e.g. int32, float64)")
	f.StringVarP(&opts.configFile, "config", "c", "", "Path to YAML configuration file")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.Int("parallelism", 0, "Goroutines folding one column (0 uses NumCPU)")
	f.Duration("timeout", 30*time.Minute, "Job timeout")
	_ = cmd.MarkFlagRequired("op")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

type applyOptions struct {
	op           string
	input        string
	output       string
	columns      []string
	format       string
	outputFormat string
	elemType     string
	configFile   string
}

func runApply(cmd *cobra.Command, opts applyOptions) error {
	loaded, err := loadSettings(opts.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	cfg := loaded.Config

	job, err := opts.job()
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("component", "vecops-cli"))

	if err := observability.Init(cfg.Tracing, cfg.Version, os.Stderr); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(ctx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	kernelOpts := []vecops.Option{
		vecops.WithConfig(cfg.Kernel),
		vecops.WithLogger(log),
	}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		kernelOpts = append(kernelOpts, vecops.WithRecorder(metrics.NewPrometheusRecorder(reg, cfg.Metrics.Namespace)))
		if cfg.Metrics.IsServing() {
			stop := serveMetrics(cfg.Metrics.ListenAddress, reg, log)
			defer stop()
		}
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, loaded.Timeout)
	defer cancel()

	runner := pipeline.NewRunner(vecops.New(kernelOpts...), cfg.IO, log)
	runner.SetStdout(cmd.OutOrStdout())

	report, err := runner.Run(ctx, job)
	if err != nil {
		return err
	}
	for _, c := range report.Columns {
		if c.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "column %s: %v\n", c.Name, c.Err)
		}
	}
	if n := report.Failed(); n > 0 {
		return errors.Newf(errors.ErrorTypeValidation, "%d of %d columns failed", n, len(report.Columns))
	}
	return nil
}

func (o applyOptions) job() (pipeline.Job, error) {
	op, err := vecops.ParseOp(o.op)
	if err != nil {
		return pipeline.Job{}, err
	}
	job := pipeline.Job{
		Op:      op,
		Input:   o.input,
		Output:  o.output,
		Columns: o.columns,
	}
	if o.format != "" {
		if job.Format, err = columnar.ParseFormat(o.format); err != nil {
			return pipeline.Job{}, err
		}
	}
	if o.outputFormat != "" {
		if job.OutputFormat, err = columnar.ParseFormat(o.outputFormat); err != nil {
			return pipeline.Job{}, err
		}
	}
	if o.elemType != "" {
		if job.ElemType, err = parseElemType(o.elemType); err != nil {
			return pipeline.Job{}, err
		}
	}
	return job, nil
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("serving metrics", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
