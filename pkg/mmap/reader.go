// Package mmap provides read-only memory-mapped input files. Formats whose
// footer needs random access (Arrow IPC files, Parquet) read from the
// mapping instead of reading the whole file into a buffer up front. Their
// readers still copy each message or column chunk into allocator buffers,
// so the mapping may be closed once the table is read.
package mmap

import (
	"bytes"
	"os"
	"sync"

	"github.com/ajitpratap0/vecops/pkg/errors"
)

// Reader is a read-only mapping of a whole file.
type Reader struct {
	file *os.File
	data []byte

	mu     sync.Mutex
	mapped bool
}

// NewReader maps filename for reading. Empty files are not mapped and
// yield an empty Reader.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").
			WithDetail("path", filename)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").
			WithDetail("path", filename)
	}
	if stat.Size() == 0 {
		return &Reader{file: file}, nil
	}

	data, mapped, err := mapFile(file, stat.Size())
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to mmap file").
			WithDetail("path", filename)
	}
	// Readers walk footers and then column chunks front to back
	_ = adviseSequential(data)

	return &Reader{file: file, data: data, mapped: mapped}, nil
}

// Bytes returns the mapped file contents. The slice is invalid after Close.
func (r *Reader) Bytes() []byte {
	return r.data
}

// Size returns the file size in bytes.
func (r *Reader) Size() int64 {
	return int64(len(r.data))
}

// Open returns a fresh io.ReadSeeker and io.ReaderAt over the contents.
func (r *Reader) Open() *bytes.Reader {
	return bytes.NewReader(r.data)
}

// Close unmaps the file and closes it. Data read through Bytes or Open must
// not be used afterwards.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.data != nil && r.mapped {
		err = munmap(r.data)
	}
	r.data = nil

	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}
