package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite provides base functionality for file based
// integration tests
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "vecops-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir

	s.T().Logf("Integration test suite started in %s", s.tempDir)
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()

	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}

	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the test context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the temporary directory path
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// Path returns the path of name inside the temporary directory
func (s *IntegrationTestSuite) Path(name string) string {
	return filepath.Join(s.tempDir, name)
}

// CreateTempFile creates a temporary file with content
func (s *IntegrationTestSuite) CreateTempFile(name string, content []byte) string {
	path := s.Path(name)
	require.NoError(s.T(), os.WriteFile(path, content, 0o600))
	return path
}

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// VectorLines returns JSON lines with one list column named column. Row r
// holds width integers r*width .. r*width+width-1, so the vertical sum at
// position p is sum over r of (r*width + p). Every nullEvery-th row is
// null when nullEvery is positive.
func VectorLines(column string, rows, width, nullEvery int) []byte {
	var b strings.Builder
	for r := 0; r < rows; r++ {
		if nullEvery > 0 && r%nullEvery == nullEvery-1 {
			fmt.Fprintf(&b, "{%q:null}\n", column)
			continue
		}
		fmt.Fprintf(&b, "{%q:[", column)
		for p := 0; p < width; p++ {
			if p > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%d", r*width+p)
		}
		b.WriteString("]}\n")
	}
	return []byte(b.String())
}
