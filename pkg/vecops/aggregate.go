package vecops

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// The folds below return nil when the column has no non-null row; the
// output then holds a null at every position.

func foldSum[T Number](e *executor, s *shape, vals []T, ar arith[T], elem string) ([]T, error) {
	if s.nonNull == 0 {
		return nil, nil
	}
	acc := make([]T, s.length)
	err := e.each(s.length, s.nonNull*s.length, func(lo, hi int) error {
		dst := acc[lo:hi]
		for row, start := range s.starts {
			if start < 0 {
				continue
			}
			for k, v := range vals[start+lo : start+hi] {
				sum, overflow := ar.add(dst[k], v)
				if overflow {
					return sumOverflow(elem, row, lo+k)
				}
				dst[k] = sum
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func foldMean[T Number](e *executor, s *shape, vals []T) []float64 {
	if s.nonNull == 0 {
		return nil
	}
	acc := make([]float64, s.length)
	count := float64(s.nonNull)
	_ = e.each(s.length, s.nonNull*s.length, func(lo, hi int) error {
		dst := acc[lo:hi]
		for _, start := range s.starts {
			if start < 0 {
				continue
			}
			for k, v := range vals[start+lo : start+hi] {
				dst[k] += float64(v)
			}
		}
		for k := range dst {
			dst[k] /= count
		}
		return nil
	})
	return acc
}

// foldExtremum seeds every position from the first non-null row and keeps
// a value whenever better reports it should replace the running extremum.
func foldExtremum[T Number](e *executor, s *shape, vals []T, better func(v, acc T) bool) []T {
	first := s.firstValid()
	if first < 0 {
		return nil
	}
	acc := make([]T, s.length)
	_ = e.each(s.length, s.nonNull*s.length, func(lo, hi int) error {
		dst := acc[lo:hi]
		seed := s.starts[first]
		copy(dst, vals[seed+lo:seed+hi])
		for _, start := range s.starts[first+1:] {
			if start < 0 {
				continue
			}
			for k, v := range vals[start+lo : start+hi] {
				if better(v, dst[k]) {
					dst[k] = v
				}
			}
		}
		return nil
	})
	return acc
}

// buildAggregate wraps acc into a single-row list column of type outType.
func buildAggregate[T Number](mem memory.Allocator, outType arrow.DataType, length int, acc []T) arrow.Array {
	b := newListBuilder(mem, outType)
	defer b.Release()

	b.Append(true)
	vb := b.ValueBuilder().(valueBuilder[T])
	if acc == nil {
		for k := 0; k < length; k++ {
			vb.AppendNull()
		}
	} else {
		vb.AppendValues(acc, nil)
	}
	return b.NewArray()
}
