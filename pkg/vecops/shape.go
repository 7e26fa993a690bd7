package vecops

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/vecops/pkg/errors"
)

// shape is the validated layout of one list column: the common list
// length and, per row, the offset of its first element in the child
// values array (-1 for a null row).
type shape struct {
	rows    int
	length  int
	nonNull int
	starts  []int
}

// firstValid returns the first non-null row, or -1.
func (s *shape) firstValid() int {
	for i, start := range s.starts {
		if start >= 0 {
			return i
		}
	}
	return -1
}

// validateShape scans every row of list before any accumulation starts.
// Null rows impose no constraint. A column without non-null rows has length
// zero, except fixed-size lists whose length is carried by the type.
func validateShape(op Op, list array.ListLike) (*shape, error) {
	n := list.Len()
	s := &shape{rows: n, length: -1, starts: make([]int, n)}
	if fixed, ok := list.DataType().(*arrow.FixedSizeListType); ok {
		s.length = int(fixed.Len())
	}

	for i := 0; i < n; i++ {
		if list.IsNull(i) {
			s.starts[i] = -1
			continue
		}
		start, end := list.ValueOffsets(i)
		l := int(end - start)
		switch {
		case s.length < 0:
			s.length = l
		case l != s.length:
			return nil, shapeMismatch(op, s.length, l, i)
		}
		s.starts[i] = int(start)
		s.nonNull++
	}
	if s.length < 0 {
		s.length = 0
	}

	values := list.ListValues()
	if values.NullN() == 0 {
		return s, nil
	}
	for i, start := range s.starts {
		if start < 0 {
			continue
		}
		for j := start; j < start+s.length; j++ {
			if values.IsNull(j) {
				return nil, errors.Newf(errors.ErrorTypeType,
					"null element at row %d position %d: nulls inside a non-null list are not supported", i, j-start).
					WithDetail("op", op.String()).
					WithDetail("row", i).
					WithDetail("position", j-start)
			}
		}
	}
	return s, nil
}
