package vecops

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/vecops/pkg/errors"
)

type elemTyped interface {
	Elem() arrow.DataType
}

// listElem returns the element type of a list, large list or fixed-size
// list type.
func listElem(dt arrow.DataType) (arrow.DataType, error) {
	switch dt.ID() {
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		return dt.(elemTyped).Elem(), nil
	}
	return nil, errors.Newf(errors.ErrorTypeType, "expected a list or fixed-size list column, got %s", dt).
		WithDetail("type", dt.String())
}

// isNumeric reports whether the kernels can fold elements of type id.
// Half floats and decimals are rejected.
func isNumeric(id arrow.Type) bool {
	switch id {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64:
		return true
	}
	return false
}

// OutputType returns the type of the column op produces from a column of
// type input. The outer list kind is preserved; mean always yields float64
// elements, every other operation keeps the input element type. For
// unsigned inputs diff subtracts in the signed domain and fails with a
// numeric overflow when a difference is negative.
func OutputType(op Op, input arrow.DataType) (arrow.DataType, error) {
	if !op.Valid() {
		return nil, errors.Newf(errors.ErrorTypeValidation, "invalid operation %d", uint8(op))
	}
	elem, err := listElem(input)
	if err != nil {
		return nil, err
	}
	if !isNumeric(elem.ID()) {
		return nil, errors.Newf(errors.ErrorTypeType, "unsupported element type %s for vertical %s", elem, op).
			WithDetail("op", op.String()).
			WithDetail("type", elem.String())
	}
	if op == OpMean {
		elem = arrow.PrimitiveTypes.Float64
	}

	switch t := input.(type) {
	case *arrow.FixedSizeListType:
		return arrow.FixedSizeListOf(t.Len(), elem), nil
	case *arrow.LargeListType:
		return arrow.LargeListOf(elem), nil
	default:
		return arrow.ListOf(elem), nil
	}
}
