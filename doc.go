// Package vecops computes vertical operations over Arrow list columns.
//
// A vertical operation folds a column of equal-length lists position by
// position across rows: the sum of [0 1 2] and [1 2 3] is [1 3 5]. The
// aggregations (sum, mean, min, max) reduce a column to a single list;
// diff keeps every row and subtracts each list from the one after it.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/vecops/pkg/vecops"
//	)
//
//	kernel := vecops.New()
//	results := kernel.Apply(context.Background(), vecops.OpMean,
//	    vecops.Column{Name: "embedding", Data: embeddings})
//	defer results.Release()
//	if err := results.Err(); err != nil {
//	    // inspect results[i].Err per column
//	}
//
// # Key Packages
//
//	pkg/vecops        - Vertical kernels, output type rules, shape checks
//	pkg/formats       - Arrow, Parquet, Avro and JSON lines tables
//	pkg/compression   - gzip, zstd, lz4, snappy and s2 file streams
//	pkg/config        - Unified configuration management
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus kernel metrics
//	pkg/observability - OpenTelemetry tracing
//	internal/pipeline - File-to-file jobs used by cmd/vecops
//
// # Semantics
//
// Null rows are skipped. Non-null rows must have the same length or the
// column fails with a shape mismatch naming the expected and actual
// lengths. Results keep the outer list kind (list, large list or fixed
// size list) of the input. Integer sums and differences that leave the
// element type fail instead of wrapping.
//
// # Command Line
//
//	vecops apply --op sum --input vectors.parquet --output totals.arrow
//	vecops ops
//
// Environment variables prefixed with VECOPS_ override the configuration
// file; flags override both.
package vecops
