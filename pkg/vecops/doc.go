// Package vecops implements vertical kernels over Arrow list columns.
//
// A list column holds one fixed-length numeric list per row. The
// aggregations fold the elements sharing a list position across rows:
//
//	rows          sum        mean          min        max
//	[0, 1, 2]
//	[1, 2, 3]  -> [1, 3, 5]  [0.5, 1.5, 2.5]  [0, 1, 2]  [1, 2, 3]
//
// Diff subtracts each row from the next, producing as many rows as the
// input; the first row holds nulls.
//
// # Shapes
//
// Every non-null row of a column must have the same length, otherwise the
// column fails with ErrShapeMismatch before any value is folded. Null rows
// are skipped by the aggregations; mean divides by the number of non-null
// rows. Nulls inside a present list are rejected with ErrUnsupportedType.
//
// LIST, LARGE_LIST and FIXED_SIZE_LIST columns are accepted and the output
// keeps the input's outer kind. Elements may be any signed or unsigned
// integer or float32/float64. Integer sums and diffs are checked and fail
// with ErrNumericOverflow rather than wrapping. OutputType reports the
// result type without running a kernel.
//
// # Usage
//
//	k := vecops.New(vecops.WithLogger(log), vecops.WithConfig(cfg.Kernel))
//	results := k.Apply(ctx, vecops.OpMean,
//		vecops.Column{Name: "embedding", Data: emb},
//		vecops.Column{Name: "scores", Data: scores},
//	)
//	defer results.Release()
//	for _, r := range results {
//		if r.Err != nil {
//			// other columns are unaffected
//		}
//	}
//
// Columns of one call are processed concurrently and large columns are
// split across goroutines by list position. Partitions never split rows,
// so each position is still folded in row order.
package vecops
