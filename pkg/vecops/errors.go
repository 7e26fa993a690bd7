package vecops

import (
	"github.com/ajitpratap0/vecops/pkg/errors"
)

// Category sentinels. Every error returned by a kernel matches exactly one
// of these with errors.Is.
var (
	ErrShapeMismatch   = errors.Sentinel(errors.ErrorTypeShapeMismatch, "all lists must have the same length")
	ErrUnsupportedType = errors.Sentinel(errors.ErrorTypeType, "unsupported column type")
	ErrNumericOverflow = errors.Sentinel(errors.ErrorTypeNumericOverflow, "numeric overflow")
)

func shapeMismatch(op Op, expected, got, row int) *errors.Error {
	return errors.Newf(errors.ErrorTypeShapeMismatch,
		"All lists must have the same length for vertical %s. Expected %d, got %d", op, expected, got).
		WithDetail("op", op.String()).
		WithDetail("row", row).
		WithDetail("expected_length", expected).
		WithDetail("actual_length", got)
}

func sumOverflow(elem string, row, position int) *errors.Error {
	return errors.Newf(errors.ErrorTypeNumericOverflow,
		"sum at position %d overflows %s at row %d", position, elem, row).
		WithDetail("op", OpSum.String()).
		WithDetail("row", row).
		WithDetail("position", position)
}

func diffOverflow(elem string, row, position int) *errors.Error {
	return errors.Newf(errors.ErrorTypeNumericOverflow,
		"difference at row %d position %d is not representable as %s", row, position, elem).
		WithDetail("op", OpDiff.String()).
		WithDetail("row", row).
		WithDetail("position", position)
}
