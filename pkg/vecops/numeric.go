package vecops

import (
	"golang.org/x/exp/constraints"
)

// Number is the set of element types the kernels fold over.
type Number interface {
	constraints.Integer | constraints.Float
}

// arith carries the checked arithmetic of one element type. The boolean
// result reports that the true result is not representable in T.
type arith[T Number] struct {
	add func(a, b T) (T, bool)
	sub func(a, b T) (T, bool)
}

func signedArith[T constraints.Signed]() arith[T] {
	return arith[T]{add: addSigned[T], sub: subSigned[T]}
}

func unsignedArith[T constraints.Unsigned]() arith[T] {
	return arith[T]{add: addUnsigned[T], sub: subUnsigned[T]}
}

func floatArith[T constraints.Float]() arith[T] {
	return arith[T]{add: addFloat[T], sub: subFloat[T]}
}

func addSigned[T constraints.Signed](a, b T) (T, bool) {
	s := a + b
	return s, (a >= 0) == (b >= 0) && (s >= 0) != (a >= 0)
}

func subSigned[T constraints.Signed](a, b T) (T, bool) {
	d := a - b
	return d, (a >= 0) != (b >= 0) && (d >= 0) != (a >= 0)
}

func addUnsigned[T constraints.Unsigned](a, b T) (T, bool) {
	s := a + b
	return s, s < a
}

// subUnsigned subtracts as if both operands were promoted to a signed type
// wide enough to hold them; a negative difference cannot be stored back.
func subUnsigned[T constraints.Unsigned](a, b T) (T, bool) {
	if a < b {
		return 0, true
	}
	return a - b, false
}

func addFloat[T constraints.Float](a, b T) (T, bool) {
	return a + b, false
}

func subFloat[T constraints.Float](a, b T) (T, bool) {
	return a - b, false
}

// less and greater treat NaN as absorbing so floating min and max
// propagate NaN independent of row order.
func less[T Number](v, acc T) bool {
	return v < acc || v != v
}

func greater[T Number](v, acc T) bool {
	return v > acc || v != v
}
