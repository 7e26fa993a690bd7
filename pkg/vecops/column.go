package vecops

import (
	stderrors "errors"

	"github.com/apache/arrow-go/v18/arrow"
)

// Column is a named list column handed to the kernel. The kernel reads
// Data but never retains or releases it.
type Column struct {
	Name string
	Data arrow.Array
}

// Result is the outcome of one column. Exactly one of Data and Err is set.
// The caller owns Data and must release it.
type Result struct {
	Name string
	Data arrow.Array
	Err  error
}

// Release releases the result array, if any.
func (r *Result) Release() {
	if r.Data != nil {
		r.Data.Release()
		r.Data = nil
	}
}

// Results holds one Result per input column, in input order.
type Results []Result

// Err joins the errors of every failed column, or returns nil.
func (rs Results) Err() error {
	var errs []error
	for _, r := range rs {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return stderrors.Join(errs...)
}

// Failed returns the number of columns that produced an error.
func (rs Results) Failed() int {
	n := 0
	for _, r := range rs {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Release releases every result array.
func (rs Results) Release() {
	for i := range rs {
		rs[i].Release()
	}
}
