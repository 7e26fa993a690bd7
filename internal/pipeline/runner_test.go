package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ajitpratap0/vecops/pkg/compression"
	"github.com/ajitpratap0/vecops/pkg/config"
	"github.com/ajitpratap0/vecops/pkg/errors"
	"github.com/ajitpratap0/vecops/pkg/formats/columnar"
	"github.com/ajitpratap0/vecops/pkg/testutil"
	"github.com/ajitpratap0/vecops/pkg/vecops"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const input = `{"a":[0,1,2],"b":[1,2],"id":1}
{"a":[1,2,3],"b":[3],"id":2}
`

func newTestRunner(t *testing.T) *Runner {
	return NewRunner(vecops.New(), config.NewDefault().IO, testutil.TestLogger(t))
}

func readOutput(t *testing.T, path string) arrow.Record {
	t.Helper()
	format, alg, err := columnar.DetectFormat(path)
	require.NoError(t, err)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, alg)
	require.NoError(t, err)
	defer r.Close()
	rec, err := columnar.ReadTable(r, format, columnar.ReadOptions{})
	require.NoError(t, err)
	t.Cleanup(rec.Release)
	return rec
}

func TestRunWritesSuccessfulColumns(t *testing.T) {
	in := testutil.WriteFile(t, "in.jsonl", []byte(input))
	out := filepath.Join(t.TempDir(), "out.arrow.zst")

	report, err := newTestRunner(t).Run(context.Background(), Job{ID: "job-1", Op: vecops.OpSum, Input: in, Output: out})
	require.NoError(t, err)

	assert.Equal(t, "job-1", report.JobID)
	assert.Equal(t, int64(2), report.Rows)
	require.Len(t, report.Columns, 2)
	assert.NoError(t, report.Columns[0].Err)
	assert.ErrorIs(t, report.Columns[1].Err, vecops.ErrShapeMismatch)
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 1, report.Written)

	rec := readOutput(t, out)
	require.Equal(t, int64(1), rec.NumCols())
	assert.Equal(t, "a", rec.ColumnName(0))
	raw, err := rec.Column(0).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,3,5]]`, string(raw))
}

func TestRunDiffKeepsRows(t *testing.T) {
	in := testutil.WriteFile(t, "in.jsonl.gz", []byte(""))
	var buf bytes.Buffer
	w, err := compression.NewWriter(&buf, compression.Gzip, compression.Default)
	require.NoError(t, err)
	_, err = w.Write([]byte(input))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(in, buf.Bytes(), 0o600))

	out := filepath.Join(t.TempDir(), "out.parquet")
	report, err := newTestRunner(t).Run(context.Background(), Job{Op: vecops.OpDiff, Input: in, Output: out, Columns: []string{"a"}})
	require.NoError(t, err)
	assert.NotEmpty(t, report.JobID)
	assert.Zero(t, report.Failed())

	rec := readOutput(t, out)
	assert.Equal(t, int64(2), rec.NumRows())
	raw, err := rec.Column(0).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[[null,null,null],[1,1,1]]`, string(raw))
}

func TestRunToStdout(t *testing.T) {
	in := testutil.WriteFile(t, "in.jsonl", []byte(input))
	runner := newTestRunner(t)
	var stdout bytes.Buffer
	runner.SetStdout(&stdout)

	_, err := runner.Run(context.Background(), Job{Op: vecops.OpMean, Input: in, Columns: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"a","type":"list<item: float64, nullable>","rows":[[0.5,1.5,2.5]]}`, strings.TrimSpace(stdout.String()))
}

func TestRunErrors(t *testing.T) {
	in := testutil.WriteFile(t, "in.jsonl", []byte(input))
	runner := newTestRunner(t)
	ctx := context.Background()

	_, err := runner.Run(ctx, Job{Op: vecops.OpSum, Input: filepath.Join(t.TempDir(), "missing.jsonl")})
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	_, err = runner.Run(ctx, Job{Op: vecops.OpSum, Input: in, Columns: []string{"nope"}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	scalars := testutil.WriteFile(t, "scalars.jsonl", []byte(`{"id":1}`))
	_, err = runner.Run(ctx, Job{Op: vecops.OpSum, Input: scalars})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestRunFormatOverride(t *testing.T) {
	in := testutil.WriteFile(t, "in.data", []byte(input))
	out := filepath.Join(t.TempDir(), "out.bin")

	report, err := newTestRunner(t).Run(context.Background(), Job{
		Op:           vecops.OpMax,
		Input:        in,
		Output:       out,
		Columns:      []string{"a"},
		Format:       columnar.JSONL,
		OutputFormat: columnar.ArrowStream,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rec, err := columnar.ReadTable(f, columnar.ArrowStream, columnar.ReadOptions{})
	require.NoError(t, err)
	defer rec.Release()
	raw, err := rec.Column(0).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,2,3]]`, string(raw))
}
