package vecops

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/vecops/pkg/errors"
)

// executor owns the allocator and the intra-column partitioning policy.
// It holds no per-call state.
type executor struct {
	mem         memory.Allocator
	parallelism int
	threshold   int
}

type listBuilder interface {
	array.Builder
	Append(bool)
	ValueBuilder() array.Builder
}

type valueBuilder[T Number] interface {
	array.Builder
	AppendValues([]T, []bool)
}

// each runs fn over contiguous chunks of [0, n). Work below the threshold,
// or a parallelism of one, runs inline as a single chunk.
func (e *executor) each(n, work int, fn func(lo, hi int) error) error {
	parts := 1
	if e.parallelism > 1 && work >= e.threshold {
		parts = min(e.parallelism, n)
	}
	if parts <= 1 {
		return fn(0, n)
	}

	var g errgroup.Group
	size := (n + parts - 1) / parts
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			return fn(lo, hi)
		})
	}
	return g.Wait()
}

// dispatch selects the typed fold for the element type once per call.
func dispatch(e *executor, op Op, s *shape, values arrow.Array, outType arrow.DataType) (arrow.Array, error) {
	switch values.DataType().ID() {
	case arrow.INT8:
		return compute(e, op, s, values.(*array.Int8).Int8Values(), signedArith[int8](), outType)
	case arrow.INT16:
		return compute(e, op, s, values.(*array.Int16).Int16Values(), signedArith[int16](), outType)
	case arrow.INT32:
		return compute(e, op, s, values.(*array.Int32).Int32Values(), signedArith[int32](), outType)
	case arrow.INT64:
		return compute(e, op, s, values.(*array.Int64).Int64Values(), signedArith[int64](), outType)
	case arrow.UINT8:
		return compute(e, op, s, values.(*array.Uint8).Uint8Values(), unsignedArith[uint8](), outType)
	case arrow.UINT16:
		return compute(e, op, s, values.(*array.Uint16).Uint16Values(), unsignedArith[uint16](), outType)
	case arrow.UINT32:
		return compute(e, op, s, values.(*array.Uint32).Uint32Values(), unsignedArith[uint32](), outType)
	case arrow.UINT64:
		return compute(e, op, s, values.(*array.Uint64).Uint64Values(), unsignedArith[uint64](), outType)
	case arrow.FLOAT32:
		return compute(e, op, s, values.(*array.Float32).Float32Values(), floatArith[float32](), outType)
	case arrow.FLOAT64:
		return compute(e, op, s, values.(*array.Float64).Float64Values(), floatArith[float64](), outType)
	}
	return nil, errors.Newf(errors.ErrorTypeType, "unsupported element type %s for vertical %s", values.DataType(), op).
		WithDetail("op", op.String())
}

func compute[T Number](e *executor, op Op, s *shape, vals []T, ar arith[T], outType arrow.DataType) (arrow.Array, error) {
	elem := outType.(elemTyped).Elem().String()

	switch op {
	case OpSum:
		acc, err := foldSum(e, s, vals, ar, elem)
		if err != nil {
			return nil, err
		}
		return buildAggregate(e.mem, outType, s.length, acc), nil
	case OpMean:
		return buildAggregate(e.mem, outType, s.length, foldMean(e, s, vals)), nil
	case OpMin:
		return buildAggregate(e.mem, outType, s.length, foldExtremum(e, s, vals, less[T])), nil
	case OpMax:
		return buildAggregate(e.mem, outType, s.length, foldExtremum(e, s, vals, greater[T])), nil
	case OpDiff:
		out, ok, err := diffRows(e, s, vals, ar, elem)
		if err != nil {
			return nil, err
		}
		return buildDiff(e.mem, outType, s, out, ok), nil
	}
	return nil, errors.Newf(errors.ErrorTypeValidation, "invalid operation %d", uint8(op))
}
