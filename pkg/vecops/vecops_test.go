package vecops

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ajitpratap0/vecops/pkg/config"
	"github.com/ajitpratap0/vecops/pkg/errors"
	"github.com/ajitpratap0/vecops/pkg/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	int64List   = arrow.ListOf(arrow.PrimitiveTypes.Int64)
	float64List = arrow.ListOf(arrow.PrimitiveTypes.Float64)
)

func serialKernel() *Kernel {
	return New(WithConfig(config.KernelConfig{Parallelism: 1, MaxConcurrentColumns: 1}))
}

func TestOperations(t *testing.T) {
	tests := []struct {
		name  string
		op    Op
		input string
		want  string
		out   arrow.DataType
	}{
		{"sum", OpSum, `[[0,1,2],[1,2,3]]`, `[[1,3,5]]`, int64List},
		{"mean of integers is floating", OpMean, `[[0,1,2],[1,2,3]]`, `[[0.5,1.5,2.5]]`, float64List},
		{"min", OpMin, `[[3,5,2],[1,7,4]]`, `[[1,5,2]]`, int64List},
		{"max", OpMax, `[[3,5,2],[1,7,4]]`, `[[3,7,4]]`, int64List},
		{"diff", OpDiff, `[[5,10,15],[2,15,5],[0,0,0]]`, `[[null,null,null],[-3,5,-10],[-2,-15,-5]]`, int64List},
		{"sum skips null rows", OpSum, `[[1,2],null,[3,4]]`, `[[4,6]]`, int64List},
		{"mean counts non-null rows", OpMean, `[[1,2],null,[3,4]]`, `[[2,3]]`, float64List},
		{"min skips null rows", OpMin, `[null,[3,4],[5,1]]`, `[[3,1]]`, int64List},
		{"diff around a null row", OpDiff, `[[1,2],null,[3,4],[4,6]]`, `[[null,null],[null,null],[null,null],[1,2]]`, int64List},
		{"negative values", OpMax, `[[-3,-5],[-1,-7]]`, `[[-1,-5]]`, int64List},
		{"all null rows aggregate to an empty list", OpSum, `[null,null]`, `[[]]`, int64List},
		{"all null rows diff to empty lists", OpDiff, `[null,null]`, `[[],[]]`, int64List},
		{"zero rows aggregate to an empty list", OpMax, `[]`, `[[]]`, int64List},
		{"zero rows diff to zero rows", OpDiff, `[]`, `[]`, int64List},
		{"empty lists", OpSum, `[[],[]]`, `[[]]`, int64List},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := testutil.ArrayFromJSON(t, int64List, tt.input)
			got, err := serialKernel().Do(tt.op, input)
			require.NoError(t, err)
			defer got.Release()
			testutil.AssertArrayEqual(t, testutil.ArrayFromJSON(t, tt.out, tt.want), got)
		})
	}
}

func TestFloatingSumWithinTolerance(t *testing.T) {
	input := testutil.ArrayFromJSON(t, float64List, `[[0.1,1e10],[0.2,1e-10],[0.3,-1e10]]`)
	got, err := Sum(input)
	require.NoError(t, err)
	defer got.Release()

	values := got.(*array.List).ListValues().(*array.Float64).Float64Values()
	assert.InEpsilon(t, 0.6, values[0], 1e-10)
	assert.InDelta(t, 1e-10, values[1], 1e-5)
}

func TestShapeMismatch(t *testing.T) {
	input := testutil.ArrayFromJSON(t, int64List, `[[1,2],[1]]`)

	for _, op := range Ops() {
		t.Run(op.String(), func(t *testing.T) {
			_, err := serialKernel().Do(op, input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrShapeMismatch)
			assert.Contains(t, strings.ToLower(err.Error()), "same length")
		})
	}

	_, err := Sum(input)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "All lists must have the same length for vertical sum. Expected 2, got 1", e.Message)
	assert.Equal(t, 1, e.Details["row"])
}

func TestShapeMismatchIgnoresNullRows(t *testing.T) {
	input := testutil.ArrayFromJSON(t, int64List, `[null,[1,2,3],null,[4,5,6]]`)
	got, err := Sum(input)
	require.NoError(t, err)
	defer got.Release()
	testutil.AssertArrayEqual(t, testutil.ArrayFromJSON(t, int64List, `[[5,7,9]]`), got)
}

func TestSingleRowIdentity(t *testing.T) {
	input := testutil.ArrayFromJSON(t, int64List, `[[4,-2,9]]`)

	for _, op := range []Op{OpSum, OpMin, OpMax} {
		got, err := Do(op, input)
		require.NoError(t, err)
		testutil.AssertArrayEqual(t, input, got)
		got.Release()
	}

	got, err := Mean(input)
	require.NoError(t, err)
	defer got.Release()
	testutil.AssertArrayEqual(t, testutil.ArrayFromJSON(t, float64List, `[[4,-2,9]]`), got)
}

func TestColumnsAreIndependent(t *testing.T) {
	good := testutil.ArrayFromJSON(t, int64List, `[[1,2],[3,4],[5,6]]`)
	bad := testutil.ArrayFromJSON(t, int64List, `[[1,2],[3]]`)
	other := testutil.ArrayFromJSON(t, arrow.ListOf(arrow.PrimitiveTypes.Float32), `[[1.5],[2.5],null]`)

	k := New(WithConfig(config.KernelConfig{Parallelism: 2, MaxConcurrentColumns: 3}))
	for _, op := range Ops() {
		t.Run(op.String(), func(t *testing.T) {
			results := k.Apply(context.Background(), op,
				Column{Name: "good", Data: good},
				Column{Name: "bad", Data: bad},
				Column{Name: "other", Data: other},
			)
			defer results.Release()
			require.Len(t, results, 3)
			assert.Equal(t, 1, results.Failed())
			assert.ErrorIs(t, results[1].Err, ErrShapeMismatch)
			assert.ErrorIs(t, results.Err(), ErrShapeMismatch)

			for i, col := range []arrow.Array{good, nil, other} {
				if col == nil {
					continue
				}
				alone, err := k.Do(op, col)
				require.NoError(t, err)
				require.NoError(t, results[i].Err)
				testutil.AssertArrayEqual(t, alone, results[i].Data)
				alone.Release()
			}
		})
	}
}

func TestOuterKindIsPreserved(t *testing.T) {
	tests := []struct {
		name  string
		in    arrow.DataType
		op    Op
		input string
		want  string
		out   arrow.DataType
	}{
		{
			name: "large list sum", op: OpSum,
			in: arrow.LargeListOf(arrow.PrimitiveTypes.Int32), input: `[[1,2],[3,4]]`,
			out: arrow.LargeListOf(arrow.PrimitiveTypes.Int32), want: `[[4,6]]`,
		},
		{
			name: "large list mean", op: OpMean,
			in: arrow.LargeListOf(arrow.PrimitiveTypes.Int32), input: `[[1,2],[2,4]]`,
			out: arrow.LargeListOf(arrow.PrimitiveTypes.Float64), want: `[[1.5,3]]`,
		},
		{
			name: "fixed size list min", op: OpMin,
			in: arrow.FixedSizeListOf(3, arrow.PrimitiveTypes.Int16), input: `[[3,5,2],null,[1,7,4]]`,
			out: arrow.FixedSizeListOf(3, arrow.PrimitiveTypes.Int16), want: `[[1,5,2]]`,
		},
		{
			name: "fixed size list diff", op: OpDiff,
			in: arrow.FixedSizeListOf(2, arrow.PrimitiveTypes.Float32), input: `[[1,2],[1.5,1]]`,
			out: arrow.FixedSizeListOf(2, arrow.PrimitiveTypes.Float32), want: `[[null,null],[0.5,-1]]`,
		},
		{
			name: "all null fixed size list keeps its width", op: OpSum,
			in: arrow.FixedSizeListOf(3, arrow.PrimitiveTypes.Int64), input: `[null,null]`,
			out: arrow.FixedSizeListOf(3, arrow.PrimitiveTypes.Int64), want: `[[null,null,null]]`,
		},
		{
			name: "zero row fixed size list keeps its width", op: OpMean,
			in: arrow.FixedSizeListOf(2, arrow.PrimitiveTypes.Uint32), input: `[]`,
			out: arrow.FixedSizeListOf(2, arrow.PrimitiveTypes.Float64), want: `[[null,null]]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outType, err := OutputType(tt.op, tt.in)
			require.NoError(t, err)
			assert.True(t, arrow.TypeEqual(tt.out, outType))

			got, err := serialKernel().Do(tt.op, testutil.ArrayFromJSON(t, tt.in, tt.input))
			require.NoError(t, err)
			defer got.Release()
			testutil.AssertArrayEqual(t, testutil.ArrayFromJSON(t, tt.out, tt.want), got)
		})
	}
}

func TestSlicedInput(t *testing.T) {
	full := testutil.ArrayFromJSON(t, int64List, `[[100,100],[1,2],[3,4],[100,100]]`)
	sliced := array.NewSlice(full, 1, 3)
	defer sliced.Release()

	got, err := Sum(sliced)
	require.NoError(t, err)
	defer got.Release()
	testutil.AssertArrayEqual(t, testutil.ArrayFromJSON(t, int64List, `[[4,6]]`), got)

	fixed := testutil.ArrayFromJSON(t, arrow.FixedSizeListOf(2, arrow.PrimitiveTypes.Int64), `[[100,100],[1,2],[3,5]]`)
	fixedSlice := array.NewSlice(fixed, 1, 3)
	defer fixedSlice.Release()

	diff, err := Diff(fixedSlice)
	require.NoError(t, err)
	defer diff.Release()
	testutil.AssertArrayEqual(t, testutil.ArrayFromJSON(t, arrow.FixedSizeListOf(2, arrow.PrimitiveTypes.Int64), `[[null,null],[2,3]]`), diff)
}

func TestNumericOverflow(t *testing.T) {
	tests := []struct {
		name  string
		op    Op
		elem  arrow.DataType
		input string
	}{
		{"int8 sum", OpSum, arrow.PrimitiveTypes.Int8, `[[100],[100]]`},
		{"int8 negative sum", OpSum, arrow.PrimitiveTypes.Int8, `[[-100],[-100]]`},
		{"uint8 sum", OpSum, arrow.PrimitiveTypes.Uint8, `[[200],[100]]`},
		{"int8 diff", OpDiff, arrow.PrimitiveTypes.Int8, `[[-100],[100]]`},
		{"uint8 negative diff", OpDiff, arrow.PrimitiveTypes.Uint8, `[[5],[3]]`},
		{"uint64 negative diff", OpDiff, arrow.PrimitiveTypes.Uint64, `[[1,2],[1,1]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serialKernel().Do(tt.op, testutil.ArrayFromJSON(t, arrow.ListOf(tt.elem), tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNumericOverflow)
			assert.True(t, errors.IsType(err, errors.ErrorTypeNumericOverflow))
		})
	}
}

// buildInt64List builds the column with a builder; FromJSON parses numbers
// as float64 and cannot represent the int64 limits.
func buildInt64List(t *testing.T, rows ...[]int64) arrow.Array {
	t.Helper()
	b := array.NewListBuilder(memory.DefaultAllocator, arrow.PrimitiveTypes.Int64)
	defer b.Release()
	vb := b.ValueBuilder().(*array.Int64Builder)
	for _, row := range rows {
		b.Append(true)
		vb.AppendValues(row, nil)
	}
	arr := b.NewArray()
	t.Cleanup(arr.Release)
	return arr
}

func TestInt64OverflowAtTheLimits(t *testing.T) {
	tests := []struct {
		name  string
		op    Op
		input arrow.Array
		msg   string
	}{
		{"sum past max", OpSum, buildInt64List(t, []int64{math.MaxInt64}, []int64{1}),
			"sum at position 0 overflows int64 at row 1"},
		{"sum past min", OpSum, buildInt64List(t, []int64{math.MinInt64}, []int64{-1}),
			"sum at position 0 overflows int64 at row 1"},
		{"diff past max", OpDiff, buildInt64List(t, []int64{math.MinInt64}, []int64{1}),
			"difference at row 1 position 0 is not representable as int64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serialKernel().Do(tt.op, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNumericOverflow)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	got, err := Sum(buildInt64List(t, []int64{math.MaxInt64 - 1}, []int64{1}))
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, []int64{math.MaxInt64}, got.(*array.List).ListValues().(*array.Int64).Int64Values())
}

func TestNoOverflowAtTheBoundary(t *testing.T) {
	got, err := Sum(testutil.ArrayFromJSON(t, arrow.ListOf(arrow.PrimitiveTypes.Int8), `[[100,-128],[27,0]]`))
	require.NoError(t, err)
	defer got.Release()
	testutil.AssertArrayEqual(t, testutil.ArrayFromJSON(t, arrow.ListOf(arrow.PrimitiveTypes.Int8), `[[127,-128]]`), got)

	diff, err := Diff(testutil.ArrayFromJSON(t, arrow.ListOf(arrow.PrimitiveTypes.Uint8), `[[3],[5],[5]]`))
	require.NoError(t, err)
	defer diff.Release()
	testutil.AssertArrayEqual(t, testutil.ArrayFromJSON(t, arrow.ListOf(arrow.PrimitiveTypes.Uint8), `[[null],[2],[0]]`), diff)
}

func buildFloatList(t *testing.T, rows ...[]float64) arrow.Array {
	t.Helper()
	b := array.NewListBuilder(memory.DefaultAllocator, arrow.PrimitiveTypes.Float64)
	defer b.Release()
	vb := b.ValueBuilder().(*array.Float64Builder)
	for _, row := range rows {
		if row == nil {
			b.AppendNull()
			continue
		}
		b.Append(true)
		vb.AppendValues(row, nil)
	}
	arr := b.NewArray()
	t.Cleanup(arr.Release)
	return arr
}

func floatValues(arr arrow.Array) []float64 {
	return arr.(*array.List).ListValues().(*array.Float64).Float64Values()
}

func TestNaNPropagates(t *testing.T) {
	nan := math.NaN()
	for name, input := range map[string]arrow.Array{
		"nan first": buildFloatList(t, []float64{nan, 1}, []float64{2, 3}),
		"nan last":  buildFloatList(t, []float64{2, 1}, []float64{nan, 3}),
	} {
		t.Run(name, func(t *testing.T) {
			for _, op := range []Op{OpMin, OpMax, OpSum, OpMean} {
				got, err := Do(op, input)
				require.NoError(t, err)
				values := floatValues(got)
				assert.Truef(t, math.IsNaN(values[0]), "%s: want NaN, got %v", op, values[0])
				assert.False(t, math.IsNaN(values[1]))
				got.Release()
			}
		})
	}
}

func TestMeanTolerance(t *testing.T) {
	got, err := Mean(buildFloatList(t, []float64{0.1, 1}, nil, []float64{0.2, 2}, []float64{0.3, 3}))
	require.NoError(t, err)
	defer got.Release()
	assert.InDeltaSlice(t, []float64{0.2, 2}, floatValues(got), 1e-12)
}

func TestIntraListNullIsRejected(t *testing.T) {
	for _, op := range Ops() {
		_, err := Do(op, testutil.ArrayFromJSON(t, int64List, `[[1,null],[2,3]]`))
		require.Error(t, err, op.String())
		assert.ErrorIs(t, err, ErrUnsupportedType)
		assert.Contains(t, err.Error(), "row 0 position 1")
	}
}

func TestUnsupportedTypes(t *testing.T) {
	tests := []struct {
		name string
		arr  arrow.Array
	}{
		{"flat column", testutil.ArrayFromJSON(t, arrow.PrimitiveTypes.Int64, `[1,2,3]`)},
		{"string elements", testutil.ArrayFromJSON(t, arrow.ListOf(arrow.BinaryTypes.String), `[["a"],["b"]]`)},
		{"boolean elements", testutil.ArrayFromJSON(t, arrow.ListOf(arrow.FixedWidthTypes.Boolean), `[[true],[false]]`)},
		{"nested lists", testutil.ArrayFromJSON(t, arrow.ListOf(int64List), `[[[1]],[[2]]]`)},
		{"no data", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sum(tt.arr)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedType)
			assert.NotErrorIs(t, err, ErrShapeMismatch)
		})
	}
}

func TestInvalidOperation(t *testing.T) {
	results := Apply(context.Background(), Op(0), Column{Name: "a", Data: testutil.ArrayFromJSON(t, int64List, `[[1]]`)})
	require.Error(t, results[0].Err)
	assert.True(t, errors.IsType(results[0].Err, errors.ErrorTypeValidation))
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := testutil.ArrayFromJSON(t, int64List, `[[1,2]]`)
	results := New().Apply(ctx, OpSum, Column{Name: "a", Data: input}, Column{Name: "b", Data: input})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Nil(t, r.Data)
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.True(t, errors.IsType(r.Err, errors.ErrorTypeCanceled))
	}
	assert.Equal(t, []string{"a", "b"}, []string{results[0].Name, results[1].Name})
}

func TestPartitionedMatchesSerial(t *testing.T) {
	const rows, width = 257, 37

	b := array.NewListBuilder(memory.DefaultAllocator, arrow.PrimitiveTypes.Int64)
	vb := b.ValueBuilder().(*array.Int64Builder)
	for i := 0; i < rows; i++ {
		if i%11 == 5 {
			b.AppendNull()
			continue
		}
		b.Append(true)
		for k := 0; k < width; k++ {
			vb.Append(int64((i*31+k*17)%97 - 48))
		}
	}
	input := b.NewArray()
	b.Release()
	defer input.Release()

	parallel := New(WithConfig(config.KernelConfig{Parallelism: 8, ParallelThreshold: 1, MaxConcurrentColumns: 2}))
	for _, op := range Ops() {
		want, err := serialKernel().Do(op, input)
		require.NoError(t, err)
		got, err := parallel.Do(op, input)
		require.NoError(t, err)
		testutil.AssertArrayEqual(t, want, got)
		want.Release()
		got.Release()
	}
}

func TestPartitionedOverflow(t *testing.T) {
	parallel := New(WithConfig(config.KernelConfig{Parallelism: 4, ParallelThreshold: 1}))
	_, err := parallel.Sum(testutil.ArrayFromJSON(t, arrow.ListOf(arrow.PrimitiveTypes.Int8), `[[1,2,3,120,5],[1,2,3,120,5]]`))
	assert.ErrorIs(t, err, ErrNumericOverflow)
}

func TestNoAllocationsLeak(t *testing.T) {
	mem := testutil.CheckedAllocator(t)

	input, _, err := array.FromJSON(mem, int64List, strings.NewReader(`[[1,2],null,[3,4]]`))
	require.NoError(t, err)
	defer input.Release()

	k := New(WithAllocator(mem))
	for _, op := range Ops() {
		out, err := k.Do(op, input)
		require.NoError(t, err)
		out.Release()
	}
	_, err = k.Sum(testutil.ArrayFromJSON(t, int64List, `[[1],[1,2]]`))
	require.Error(t, err)
}

func TestApplyRecord(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: int64List, Nullable: true},
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "b", Type: float64List, Nullable: true},
	}, nil)
	a := testutil.ArrayFromJSON(t, int64List, `[[1,2],[3,4],[5,6]]`)
	id := testutil.ArrayFromJSON(t, arrow.PrimitiveTypes.Int64, `[1,2,3]`)
	b := testutil.ArrayFromJSON(t, float64List, `[[0.5],null,[1.5]]`)
	rec := array.NewRecord(schema, []arrow.Array{a, id, b}, 3)
	defer rec.Release()

	k := New()
	ctx := context.Background()

	t.Run("every list column", func(t *testing.T) {
		out, err := k.ApplyRecord(ctx, OpSum, rec)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, int64(1), out.NumRows())
		require.Equal(t, int64(2), out.NumCols())
		assert.Equal(t, "a", out.ColumnName(0))
		assert.Equal(t, "b", out.ColumnName(1))
		testutil.AssertArrayEqual(t, testutil.ArrayFromJSON(t, int64List, `[[9,12]]`), out.Column(0))
		testutil.AssertArrayEqual(t, testutil.ArrayFromJSON(t, float64List, `[[2]]`), out.Column(1))
	})

	t.Run("named column diff keeps rows", func(t *testing.T) {
		out, err := k.ApplyRecord(ctx, OpDiff, rec, "a")
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, int64(3), out.NumRows())
		testutil.AssertArrayEqual(t, testutil.ArrayFromJSON(t, int64List, `[[null,null],[2,2],[2,2]]`), out.Column(0))
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := k.ApplyRecord(ctx, OpSum, rec, "missing")
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})

	t.Run("non-list column", func(t *testing.T) {
		_, err := k.ApplyRecord(ctx, OpSum, rec, "a", "id")
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})
}

func TestApplyRecordWithoutListColumns(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{{Name: "id", Type: arrow.PrimitiveTypes.Int64}}, nil)
	rec := array.NewRecord(schema, []arrow.Array{testutil.ArrayFromJSON(t, arrow.PrimitiveTypes.Int64, `[1]`)}, 1)
	defer rec.Release()

	_, err := New().ApplyRecord(context.Background(), OpSum, rec)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
