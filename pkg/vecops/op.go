package vecops

import (
	"strings"

	"github.com/ajitpratap0/vecops/pkg/errors"
)

// Op selects a vertical kernel. The zero value is not a valid operation.
type Op uint8

const (
	// OpSum adds the elements at each list position across rows.
	OpSum Op = iota + 1
	// OpMean averages the elements at each list position across rows.
	OpMean
	// OpMin takes the smallest element at each list position across rows.
	OpMin
	// OpMax takes the largest element at each list position across rows.
	OpMax
	// OpDiff subtracts each row's list from the following row's list.
	OpDiff
)

var opNames = [...]string{
	OpSum:  "sum",
	OpMean: "mean",
	OpMin:  "min",
	OpMax:  "max",
	OpDiff: "diff",
}

// Ops returns every operation in declaration order.
func Ops() []Op {
	return []Op{OpSum, OpMean, OpMin, OpMax, OpDiff}
}

func (o Op) String() string {
	if !o.Valid() {
		return "unknown"
	}
	return opNames[o]
}

// Valid reports whether o names a known operation.
func (o Op) Valid() bool {
	return o >= OpSum && o <= OpDiff
}

// IsAggregation reports whether o reduces a column to a single row.
func (o Op) IsAggregation() bool {
	return o >= OpSum && o <= OpMax
}

// ParseOp parses an operation name. Matching is case-insensitive and
// "avg" is accepted as an alias of "mean".
func ParseOp(name string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sum":
		return OpSum, nil
	case "mean", "avg":
		return OpMean, nil
	case "min":
		return OpMin, nil
	case "max":
		return OpMax, nil
	case "diff":
		return OpDiff, nil
	}
	return 0, errors.Newf(errors.ErrorTypeValidation, "unknown operation %q", name).
		WithDetail("op", name)
}
