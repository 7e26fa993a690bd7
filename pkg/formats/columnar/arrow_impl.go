package columnar

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/vecops/pkg/errors"
)

func readArrowFile(r io.Reader, mem memory.Allocator) (arrow.Record, error) {
	// The file format needs random access to its footer
	ra, err := randomAccess(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read Arrow data")
	}

	fr, err := ipc.NewFileReader(ra, ipc.WithAllocator(mem))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Arrow reader")
	}
	defer fr.Close()

	batches := make([]arrow.Record, 0, fr.NumRecords())
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			releaseAll(batches)
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read Arrow record batch").
				WithDetail("batch", i)
		}
		rec.Retain()
		batches = append(batches, rec)
	}
	return concatRecords(mem, fr.Schema(), batches)
}

func readArrowStream(r io.Reader, mem memory.Allocator) (arrow.Record, error) {
	sr, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Arrow stream reader")
	}
	defer sr.Release()

	var batches []arrow.Record
	for sr.Next() {
		rec := sr.Record()
		rec.Retain()
		batches = append(batches, rec)
	}
	if err := sr.Err(); err != nil {
		releaseAll(batches)
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read Arrow stream")
	}
	return concatRecords(mem, sr.Schema(), batches)
}

func writeArrowFile(w io.Writer, rec arrow.Record) error {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create Arrow writer")
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write Arrow record")
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close Arrow writer")
	}
	return nil
}

func writeArrowStream(w io.Writer, rec arrow.Record) error {
	sw := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := sw.Write(rec); err != nil {
		sw.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write Arrow record")
	}
	if err := sw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close Arrow stream writer")
	}
	return nil
}
