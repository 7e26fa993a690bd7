package vecops

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// diffRows computes row_i - row_{i-1} into a flat rows*length buffer. ok[i]
// is false for row 0 and for every row whose pair contains a null row.
func diffRows[T Number](e *executor, s *shape, vals []T, ar arith[T], elem string) ([]T, []bool, error) {
	width := s.length
	out := make([]T, s.rows*width)
	ok := make([]bool, s.rows)

	err := e.each(s.rows, s.rows*width, func(lo, hi int) error {
		for i := max(lo, 1); i < hi; i++ {
			cur, prev := s.starts[i], s.starts[i-1]
			if cur < 0 || prev < 0 {
				continue
			}
			dst := out[i*width : (i+1)*width]
			for k := range dst {
				d, overflow := ar.sub(vals[cur+k], vals[prev+k])
				if overflow {
					return diffOverflow(elem, i, k)
				}
				dst[k] = d
			}
			ok[i] = true
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, ok, nil
}

// buildDiff emits one non-null list per input row; rows without a valid
// pair hold a null at every position.
func buildDiff[T Number](mem memory.Allocator, outType arrow.DataType, s *shape, out []T, ok []bool) arrow.Array {
	b := newListBuilder(mem, outType)
	defer b.Release()
	b.Reserve(s.rows)

	vb := b.ValueBuilder().(valueBuilder[T])
	width := s.length
	for i := 0; i < s.rows; i++ {
		b.Append(true)
		if ok[i] {
			vb.AppendValues(out[i*width:(i+1)*width], nil)
			continue
		}
		for k := 0; k < width; k++ {
			vb.AppendNull()
		}
	}
	return b.NewArray()
}

func newListBuilder(mem memory.Allocator, outType arrow.DataType) listBuilder {
	return array.NewBuilder(mem, outType).(listBuilder)
}
