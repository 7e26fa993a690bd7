// Package columnar reads and writes list-column tables in the file formats
// vecops accepts: Arrow IPC (file and stream), Parquet, Avro object
// container files and JSON lines.
package columnar

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/vecops/pkg/compression"
	"github.com/ajitpratap0/vecops/pkg/errors"
)

// Format represents a table file format
type Format string

const (
	// Arrow is the Arrow IPC file format
	Arrow Format = "arrow"
	// ArrowStream is the Arrow IPC stream format
	ArrowStream Format = "arrows"
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Avro is the Apache Avro object container format
	Avro Format = "avro"
	// JSONL is one JSON object per line, keyed by column name
	JSONL Format = "jsonl"
)

// FormatInfo provides information about a format
type FormatInfo struct {
	Format      Format
	Name        string
	Description string
	Extensions  []string
}

var formatInfos = []FormatInfo{
	{Arrow, "Apache Arrow IPC file", "Random-access Arrow record batches", []string{".arrow", ".feather", ".ipc"}},
	{ArrowStream, "Apache Arrow IPC stream", "Sequential Arrow record batches", []string{".arrows"}},
	{Parquet, "Apache Parquet", "Columnar storage format optimized for analytics", []string{".parquet", ".pq"}},
	{Avro, "Apache Avro", "Row-based object container file with array-typed fields", []string{".avro"}},
	{JSONL, "JSON lines", "One object per row mapping column names to numeric arrays", []string{".jsonl", ".ndjson", ".json"}},
}

// Formats returns information about every supported format
func Formats() []FormatInfo {
	return formatInfos
}

// ParseFormat parses a format name
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, info := range formatInfos {
		if info.Format == f {
			return f, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unsupported format %q", name)
}

// DetectFormat derives the format and compression of path from its
// extensions, e.g. "x.parquet" or "x.arrows.zst".
func DetectFormat(path string) (Format, compression.Algorithm, error) {
	alg, base := compression.AlgorithmFromPath(path)
	ext := strings.ToLower(filepath.Ext(base))
	for _, info := range formatInfos {
		for _, e := range info.Extensions {
			if e == ext {
				return info.Format, alg, nil
			}
		}
	}
	return "", alg, errors.Newf(errors.ErrorTypeConfig, "cannot detect format of %q", path).
		WithDetail("path", path)
}

// ReadOptions configures ReadTable
type ReadOptions struct {
	// Allocator for the returned record; memory.DefaultAllocator when nil
	Allocator memory.Allocator
	// ElemType forces the element type of list columns inferred from JSON
	// lines. It must be a numeric type.
	ElemType arrow.DataType
}

func (o ReadOptions) allocator() memory.Allocator {
	if o.Allocator == nil {
		return memory.DefaultAllocator
	}
	return o.Allocator
}

// ReadTable reads a whole table from r as a single record. Multiple
// record batches or row groups are concatenated. The caller releases the
// record.
//
// Arrow files and Parquet need random access. When r implements
// io.ReaderAt and io.Seeker, such as a bytes.Reader over a memory-mapped
// file, it is read in place; any other reader is first buffered in full.
func ReadTable(r io.Reader, format Format, opts ReadOptions) (arrow.Record, error) {
	switch format {
	case Arrow:
		return readArrowFile(r, opts.allocator())
	case ArrowStream:
		return readArrowStream(r, opts.allocator())
	case Parquet:
		return readParquet(r, opts.allocator())
	case Avro:
		return readAvro(r, opts.allocator())
	case JSONL:
		return readJSONL(r, opts)
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported format %q", format)
}

// WriteTable writes rec to w in format. It does not close w.
func WriteTable(w io.Writer, format Format, rec arrow.Record) error {
	switch format {
	case Arrow:
		return writeArrowFile(w, rec)
	case ArrowStream:
		return writeArrowStream(w, rec)
	case Parquet:
		return writeParquet(w, rec)
	case Avro:
		return writeAvro(w, rec)
	case JSONL:
		return writeJSONL(w, rec)
	}
	return errors.Newf(errors.ErrorTypeConfig, "unsupported format %q", format)
}

// concatRecords merges batches sharing schema into one record and
// releases the batches.
func concatRecords(mem memory.Allocator, schema *arrow.Schema, batches []arrow.Record) (arrow.Record, error) {
	defer releaseAll(batches)

	switch len(batches) {
	case 0:
		b := array.NewRecordBuilder(mem, schema)
		defer b.Release()
		return b.NewRecord(), nil
	case 1:
		batches[0].Retain()
		return batches[0], nil
	}

	cols := make([]arrow.Array, schema.NumFields())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	var rows int64
	for _, b := range batches {
		rows += b.NumRows()
	}
	for i := range cols {
		chunks := make([]arrow.Array, len(batches))
		for j, b := range batches {
			chunks[j] = b.Column(i)
		}
		col, err := array.Concatenate(chunks, mem)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to concatenate record batches").
				WithDetail("column", schema.Field(i).Name)
		}
		cols[i] = col
	}
	return array.NewRecord(schema, cols, rows), nil
}

type readAtSeeker interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

func randomAccess(r io.Reader) (readAtSeeker, error) {
	if ra, ok := r.(readAtSeeker); ok {
		return ra, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func releaseAll(batches []arrow.Record) {
	for _, b := range batches {
		b.Release()
	}
}
