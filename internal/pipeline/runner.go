// Package pipeline runs file-to-file vecops jobs: read a table, apply one
// operation to its list columns, write the surviving result columns.
//
// # Basic Usage
//
//	runner := pipeline.NewRunner(kernel, cfg.IO, logger)
//	report, err := runner.Run(ctx, pipeline.Job{
//	    Op:     vecops.OpMean,
//	    Input:  "embeddings.parquet",
//	    Output: "centroid.arrow.zst",
//	})
//	if err != nil {
//	    // the job could not run at all
//	}
//	if report.Failed() > 0 {
//	    // some columns failed; the others were written
//	}
package pipeline

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/vecops/pkg/compression"
	"github.com/ajitpratap0/vecops/pkg/config"
	"github.com/ajitpratap0/vecops/pkg/errors"
	"github.com/ajitpratap0/vecops/pkg/formats/columnar"
	"github.com/ajitpratap0/vecops/pkg/logger"
	"github.com/ajitpratap0/vecops/pkg/mmap"
	"github.com/ajitpratap0/vecops/pkg/vecops"
)

// Job describes one run over one input file.
type Job struct {
	// ID tags the job in logs; generated when empty
	ID string
	Op vecops.Op
	// Input is the table to read
	Input string
	// Output is the file to write; empty writes one JSON object per column
	// to the runner's stdout
	Output string
	// Columns selects list columns by name; empty selects every list column
	Columns []string
	// Format and OutputFormat override detection from the file extension
	Format       columnar.Format
	OutputFormat columnar.Format
	// ElemType forces the list element type of JSON lines input
	ElemType arrow.DataType
}

// ColumnReport is the outcome of one column.
type ColumnReport struct {
	Name string
	Err  error
}

// Report summarizes a finished job.
type Report struct {
	JobID    string
	Op       vecops.Op
	Rows     int64
	Columns  []ColumnReport
	Written  int
	Duration time.Duration
}

// Failed returns the number of failed columns.
func (r *Report) Failed() int {
	n := 0
	for _, c := range r.Columns {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// Runner executes jobs with a shared kernel.
type Runner struct {
	kernel *vecops.Kernel
	io     config.IOConfig
	logger *zap.Logger
	stdout io.Writer
}

// NewRunner creates a runner. ioCfg supplies the fallback formats and output
// compression.
func NewRunner(kernel *vecops.Kernel, ioCfg config.IOConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{kernel: kernel, io: ioCfg, logger: logger, stdout: os.Stdout}
}

// SetStdout redirects output of jobs without an output file.
func (r *Runner) SetStdout(w io.Writer) {
	r.stdout = w
}

// Run executes job. The error is non-nil only when the job could not run
// (unreadable input, unknown column, unwritable output); per-column kernel
// failures are reported in the Report and do not prevent the other
// columns from being written.
func (r *Runner) Run(ctx context.Context, job Job) (*Report, error) {
	start := time.Now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	ctx = logger.ContextWith(ctx, logger.JobIDKey, job.ID)
	ctx = logger.ContextWith(ctx, logger.OpKey, job.Op.String())
	log := logger.Enrich(ctx, r.logger)

	rec, err := r.read(job)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	log.Info("input loaded",
		zap.String("input", job.Input),
		zap.Int64("rows", rec.NumRows()),
		zap.Int64("columns", rec.NumCols()))

	cols, err := selectColumns(rec, job.Columns)
	if err != nil {
		return nil, err
	}

	results := r.kernel.Apply(ctx, job.Op, cols...)
	defer results.Release()

	report := &Report{JobID: job.ID, Op: job.Op, Rows: rec.NumRows()}
	var (
		fields []arrow.Field
		arrs   []arrow.Array
	)
	for _, res := range results {
		report.Columns = append(report.Columns, ColumnReport{Name: res.Name, Err: res.Err})
		if res.Err != nil {
			log.Error("column failed", zap.String("column", res.Name), zap.Error(res.Err))
			continue
		}
		fields = append(fields, arrow.Field{Name: res.Name, Type: res.Data.DataType(), Nullable: true})
		arrs = append(arrs, res.Data)
	}

	if len(arrs) > 0 {
		nrows := int64(1)
		if !job.Op.IsAggregation() {
			nrows = rec.NumRows()
		}
		out := array.NewRecord(arrow.NewSchema(fields, nil), arrs, nrows)
		defer out.Release()
		if err := r.write(job, out); err != nil {
			return report, err
		}
		report.Written = len(arrs)
	}

	report.Duration = time.Since(start)
	log.Info("job finished",
		zap.Int("written", report.Written),
		zap.Int("failed", report.Failed()),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (r *Runner) read(job Job) (arrow.Record, error) {
	format, alg, err := columnar.DetectFormat(job.Input)
	if job.Format != "" {
		format = job.Format
	} else if err != nil {
		if format, err = columnar.ParseFormat(r.io.Format); err != nil {
			return nil, err
		}
	}

	var src io.Reader
	if alg == compression.None && (format == columnar.Arrow || format == columnar.Parquet) {
		m, err := mmap.NewReader(job.Input)
		if err != nil {
			return nil, err
		}
		defer m.Close()
		src = m.Open()
	} else {
		f, err := os.Open(job.Input)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input").
				WithDetail("path", job.Input)
		}
		defer f.Close()

		dr, err := compression.NewReader(f, alg)
		if err != nil {
			return nil, err
		}
		defer dr.Close()
		src = dr
	}

	rec, err := columnar.ReadTable(src, format, columnar.ReadOptions{ElemType: job.ElemType})
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.WithDetail("path", job.Input)
		}
		return nil, err
	}
	return rec, nil
}

func (r *Runner) write(job Job, rec arrow.Record) error {
	if job.Output == "" {
		return columnar.WriteJSON(r.stdout, rec)
	}

	format, alg, err := columnar.DetectFormat(job.Output)
	if job.OutputFormat != "" {
		format = job.OutputFormat
	} else if err != nil {
		if format, err = columnar.ParseFormat(r.io.OutputFormat); err != nil {
			return err
		}
	}
	if alg == compression.None {
		if alg, err = compression.ParseAlgorithm(r.io.Compression); err != nil {
			return err
		}
	}

	f, err := os.Create(job.Output)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output").
			WithDetail("path", job.Output)
	}
	defer f.Close()

	cw, err := compression.NewWriter(f, alg, compression.Level(r.io.CompressionLevel))
	if err != nil {
		return err
	}
	if err := columnar.WriteTable(cw, format, rec); err != nil {
		cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output").
			WithDetail("path", job.Output)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close output").
			WithDetail("path", job.Output)
	}
	return nil
}

// selectColumns resolves names against rec, or picks every list column.
func selectColumns(rec arrow.Record, names []string) ([]vecops.Column, error) {
	schema := rec.Schema()
	if len(names) == 0 {
		var cols []vecops.Column
		for i, f := range schema.Fields() {
			switch f.Type.ID() {
			case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
				cols = append(cols, vecops.Column{Name: f.Name, Data: rec.Column(i)})
			}
		}
		if len(cols) == 0 {
			return nil, errors.New(errors.ErrorTypeValidation, "input has no list columns")
		}
		return cols, nil
	}

	cols := make([]vecops.Column, 0, len(names))
	for _, name := range names {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column %q not found", name).
				WithDetail("column", name)
		}
		cols = append(cols, vecops.Column{Name: name, Data: rec.Column(idx[0])})
	}
	return cols, nil
}
