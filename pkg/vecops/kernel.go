package vecops

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/vecops/pkg/config"
	"github.com/ajitpratap0/vecops/pkg/errors"
	"github.com/ajitpratap0/vecops/pkg/logger"
	"github.com/ajitpratap0/vecops/pkg/metrics"
	"github.com/ajitpratap0/vecops/pkg/observability"
)

// Kernel applies vertical operations to list columns. A Kernel is
// immutable after New and safe for concurrent use.
type Kernel struct {
	exec     executor
	columns  int
	logger   *zap.Logger
	recorder metrics.Recorder
	tracer   trace.Tracer
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithAllocator sets the allocator used for result arrays.
func WithAllocator(mem memory.Allocator) Option {
	return func(k *Kernel) {
		if mem != nil {
			k.exec.mem = mem
		}
	}
}

// WithLogger sets the logger. Column outcomes are logged at debug and
// failures at warn.
func WithLogger(l *zap.Logger) Option {
	return func(k *Kernel) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(k *Kernel) {
		if r != nil {
			k.recorder = r
		}
	}
}

// WithTracer sets the tracer used for the vecops.apply and vecops.column
// spans.
func WithTracer(t trace.Tracer) Option {
	return func(k *Kernel) {
		if t != nil {
			k.tracer = t
		}
	}
}

// WithConfig applies the scheduling settings of cfg.
func WithConfig(cfg config.KernelConfig) Option {
	return func(k *Kernel) {
		k.exec.parallelism = cfg.GetParallelism()
		k.exec.threshold = cfg.ParallelThreshold
		k.columns = cfg.GetMaxConcurrentColumns()
	}
}

// New creates a Kernel. Without options it uses the default Go allocator,
// config.DefaultKernelConfig, and discards logs, metrics and spans unless a
// global tracer provider is installed.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		exec:     executor{mem: memory.DefaultAllocator},
		logger:   zap.NewNop(),
		recorder: metrics.NopRecorder{},
		tracer:   observability.Tracer(),
	}
	WithConfig(config.DefaultKernelConfig())(k)
	for _, opt := range opts {
		opt(k)
	}
	k.columns = max(k.columns, 1)
	k.exec.parallelism = max(k.exec.parallelism, 1)
	return k
}

// Apply runs op over every column and returns one Result per column in
// input order. Columns are computed independently: an error in one never
// affects another. Columns not yet started when ctx is done fail with a
// canceled error; a column already running is always completed.
func (k *Kernel) Apply(ctx context.Context, op Op, columns ...Column) Results {
	ctx, span := k.tracer.Start(ctx, "vecops.apply", trace.WithAttributes(
		attribute.String("vecops.op", op.String()),
		attribute.Int("vecops.columns", len(columns)),
	))

	results := make(Results, len(columns))
	var g errgroup.Group
	g.SetLimit(k.columns)
	for i, col := range columns {
		results[i].Name = col.Name
		if err := ctx.Err(); err != nil {
			results[i].Err = errors.Wrap(err, errors.ErrorTypeCanceled, "column not started").
				WithDetail("column", col.Name).
				WithDetail("op", op.String())
			continue
		}
		g.Go(func() error {
			results[i].Data, results[i].Err = k.applyColumn(ctx, op, col)
			return nil
		})
	}
	_ = g.Wait()

	err := results.Err()
	if err != nil {
		span.SetAttributes(attribute.Int("vecops.failed_columns", results.Failed()))
	}
	observability.EndSpan(span, err)
	return results
}

func (k *Kernel) applyColumn(ctx context.Context, op Op, col Column) (arrow.Array, error) {
	_, span := k.tracer.Start(ctx, "vecops.column", trace.WithAttributes(
		attribute.String("vecops.op", op.String()),
		attribute.String("vecops.column", col.Name),
	))
	log := logger.Enrich(ctx, k.logger).With(
		zap.String("op", op.String()),
		zap.String("column", col.Name),
	)

	timer := metrics.NewTimer(op.String())
	out, s, err := k.run(op, col.Data)
	elapsed := timer.Stop()

	var rows, length int
	if s != nil {
		rows, length = s.rows, s.length
		span.SetAttributes(attribute.Int("vecops.rows", rows), attribute.Int("vecops.length", length))
	}

	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.WithDetail("column", col.Name)
		}
		k.recorder.ObserveKernel(op.String(), metrics.StatusFailure, rows, length, elapsed)
		log.Warn("vertical kernel failed",
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Error(err))
		observability.EndSpan(span, err)
		return nil, err
	}

	k.recorder.ObserveKernel(op.String(), metrics.StatusSuccess, rows, length, elapsed)
	log.Debug("vertical kernel applied",
		zap.Int("rows", rows),
		zap.Int("length", length),
		zap.Duration("elapsed", elapsed))
	observability.EndSpan(span, nil)
	return out, nil
}

// run validates arr and folds it. The shape is returned whenever
// validation got that far, for instrumentation.
func (k *Kernel) run(op Op, arr arrow.Array) (arrow.Array, *shape, error) {
	if arr == nil {
		return nil, nil, errors.New(errors.ErrorTypeType, "column has no data")
	}
	outType, err := OutputType(op, arr.DataType())
	if err != nil {
		return nil, nil, err
	}
	list, ok := arr.(array.ListLike)
	if !ok {
		return nil, nil, errors.Newf(errors.ErrorTypeType, "expected a list or fixed-size list column, got %s", arr.DataType())
	}
	s, err := validateShape(op, list)
	if err != nil {
		return nil, nil, err
	}
	out, err := dispatch(&k.exec, op, s, list.ListValues(), outType)
	return out, s, err
}

// Do applies op to a single array.
func (k *Kernel) Do(op Op, arr arrow.Array) (arrow.Array, error) {
	r := k.Apply(context.Background(), op, Column{Data: arr})[0]
	return r.Data, r.Err
}

// Sum adds the elements at each list position across the rows of arr.
func (k *Kernel) Sum(arr arrow.Array) (arrow.Array, error) { return k.Do(OpSum, arr) }

// Mean averages the elements at each list position across the non-null
// rows of arr. The result elements are float64.
func (k *Kernel) Mean(arr arrow.Array) (arrow.Array, error) { return k.Do(OpMean, arr) }

// Min takes the smallest element at each list position.
func (k *Kernel) Min(arr arrow.Array) (arrow.Array, error) { return k.Do(OpMin, arr) }

// Max takes the largest element at each list position.
func (k *Kernel) Max(arr arrow.Array) (arrow.Array, error) { return k.Do(OpMax, arr) }

// Diff subtracts each row from the next. Row 0, and every row whose pair
// includes a null row, yields a list of nulls.
func (k *Kernel) Diff(arr arrow.Array) (arrow.Array, error) { return k.Do(OpDiff, arr) }

// ApplyRecord applies op to the named list columns of rec, or to every
// list column when no names are given, and returns a record of the result
// columns under their original names. Aggregations yield a one-row record;
// diff keeps the row count of rec. If any column fails the joined errors
// are returned and no record is built.
func (k *Kernel) ApplyRecord(ctx context.Context, op Op, rec arrow.Record, names ...string) (arrow.Record, error) {
	schema := rec.Schema()
	if len(names) == 0 {
		for _, f := range schema.Fields() {
			if _, err := listElem(f.Type); err == nil {
				names = append(names, f.Name)
			}
		}
		if len(names) == 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "record has no list columns to apply %s to", op)
		}
	}

	cols := make([]Column, 0, len(names))
	for _, name := range names {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column %q not found", name).
				WithDetail("column", name)
		}
		cols = append(cols, Column{Name: name, Data: rec.Column(idx[0])})
	}

	results := k.Apply(ctx, op, cols...)
	defer results.Release()
	if err := results.Err(); err != nil {
		return nil, err
	}

	fields := make([]arrow.Field, len(results))
	arrs := make([]arrow.Array, len(results))
	for i, r := range results {
		fields[i] = arrow.Field{Name: r.Name, Type: r.Data.DataType(), Nullable: true}
		arrs[i] = r.Data
	}
	nrows := int64(1)
	if !op.IsAggregation() {
		nrows = rec.NumRows()
	}
	return array.NewRecord(arrow.NewSchema(fields, nil), arrs, nrows), nil
}

var defaultKernel = New()

// Apply runs op over columns with the default kernel.
func Apply(ctx context.Context, op Op, columns ...Column) Results {
	return defaultKernel.Apply(ctx, op, columns...)
}

// Do is Kernel.Do on the default kernel.
func Do(op Op, arr arrow.Array) (arrow.Array, error) { return defaultKernel.Do(op, arr) }

// Sum is Kernel.Sum on the default kernel.
func Sum(arr arrow.Array) (arrow.Array, error) { return defaultKernel.Sum(arr) }

// Mean is Kernel.Mean on the default kernel.
func Mean(arr arrow.Array) (arrow.Array, error) { return defaultKernel.Mean(arr) }

// Min is Kernel.Min on the default kernel.
func Min(arr arrow.Array) (arrow.Array, error) { return defaultKernel.Min(arr) }

// Max is Kernel.Max on the default kernel.
func Max(arr arrow.Array) (arrow.Array, error) { return defaultKernel.Max(arr) }

// Diff is Kernel.Diff on the default kernel.
func Diff(arr arrow.Array) (arrow.Array, error) { return defaultKernel.Diff(arr) }
