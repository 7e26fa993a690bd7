package mmap

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/vecops/pkg/errors"
	"github.com/ajitpratap0/vecops/pkg/formats/columnar"
	"github.com/ajitpratap0/vecops/pkg/testutil"
)

func TestReader(t *testing.T) {
	path := testutil.WriteFile(t, "data.bin", []byte("vertical kernels"))

	r, err := NewReader(path)
	require.NoError(t, err)
	assert.Equal(t, int64(16), r.Size())
	assert.Equal(t, "vertical kernels", string(r.Bytes()))

	br := r.Open()
	buf := make([]byte, 7)
	_, err = br.ReadAt(buf, 9)
	require.NoError(t, err)
	assert.Equal(t, "kernels", string(buf))

	all, err := io.ReadAll(r.Open())
	require.NoError(t, err)
	assert.Len(t, all, 16)

	require.NoError(t, r.Close())
	assert.Nil(t, r.Bytes())
	require.NoError(t, r.Close())
}

func TestReaderEmptyFile(t *testing.T) {
	path := testutil.WriteFile(t, "empty.bin", nil)

	r, err := NewReader(path)
	require.NoError(t, err)
	assert.Zero(t, r.Size())
	require.NoError(t, r.Close())
}

func TestReaderMissingFile(t *testing.T) {
	_, err := NewReader("/nonexistent/vecops.arrow")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

// The Arrow IPC and Parquet readers copy what they read into allocator
// buffers, so a table read from the mapping outlives Close.
func TestTableOutlivesMapping(t *testing.T) {
	lines := testutil.VectorLines("v", 4, 3, 0)
	src, err := columnar.ReadTable(bytes.NewReader(lines), columnar.JSONL, columnar.ReadOptions{})
	require.NoError(t, err)
	defer src.Release()
	want, err := src.Column(0).MarshalJSON()
	require.NoError(t, err)

	for _, format := range []columnar.Format{columnar.Arrow, columnar.Parquet} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, columnar.WriteTable(&buf, format, src))
			path := testutil.WriteFile(t, "table."+string(format), buf.Bytes())

			r, err := NewReader(path)
			require.NoError(t, err)
			rec, err := columnar.ReadTable(r.Open(), format, columnar.ReadOptions{})
			require.NoError(t, err)
			defer rec.Release()
			require.NoError(t, r.Close())

			// overwrite the file so stale pages could not pass for the table
			require.NoError(t, os.WriteFile(path, make([]byte, buf.Len()), 0o600))

			got, err := rec.Column(0).MarshalJSON()
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(got))
		})
	}
}
