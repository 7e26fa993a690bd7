// Package testutil provides testing utilities for vecops
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// CheckedAllocator returns an allocator that fails the test if any buffer
// allocated from it is still referenced when the test completes.
func CheckedAllocator(t *testing.T) *memory.CheckedAllocator {
	t.Helper()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { mem.AssertSize(t, 0) })
	return mem
}

// ArrayFromJSON builds an array of type dt from its JSON form, e.g.
// `[[1,2],null,[3,4]]` for a list column. The array is released when the
// test completes.
func ArrayFromJSON(t *testing.T, dt arrow.DataType, s string) arrow.Array {
	t.Helper()
	arr, _, err := array.FromJSON(memory.DefaultAllocator, dt, strings.NewReader(s))
	require.NoError(t, err)
	t.Cleanup(arr.Release)
	return arr
}

// AssertArrayEqual asserts that got has the type and values of want.
func AssertArrayEqual(t *testing.T, want, got arrow.Array) {
	t.Helper()
	require.NotNil(t, got)
	assert.Truef(t, arrow.TypeEqual(want.DataType(), got.DataType()), "type: want %s, got %s", want.DataType(), got.DataType())
	assert.Truef(t, array.Equal(want, got), "want %s\n got %s", want, got)
}

// WriteFile writes content to name inside a fresh temporary directory and
// returns its path.
func WriteFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}
