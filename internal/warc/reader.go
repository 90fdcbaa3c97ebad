package warc

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/nlnwa/gowarc"
)

// readOptions parse leniently: digests and field syntax are checked but
// problems are only recorded, since records pass through unchanged.
var readOptions = []gowarc.WarcRecordOption{
	gowarc.WithSyntaxErrorPolicy(gowarc.ErrWarn),
	gowarc.WithSpecViolationPolicy(gowarc.ErrWarn),
	gowarc.WithUnknownRecordTypePolicy(gowarc.ErrIgnore),
	gowarc.WithAddMissingDigest(false),
	gowarc.WithFixDigest(false),
}

// Reader iterates the records of a WARC stream
type Reader struct {
	br          *bufio.Reader
	unmarshaler gowarc.Unmarshaler
	current     gowarc.WarcRecord
	count       int // records returned so far, for error messages
}

// NewReader returns a Reader for r. Gzip input, one member per record, is
// detected and decompressed by gowarc.
func NewReader(r io.Reader) (*Reader, error) {
	return &Reader{
		br:          bufio.NewReader(r),
		unmarshaler: gowarc.NewUnmarshaler(readOptions...),
	}, nil
}

// Next returns the next record, or io.EOF when the stream is exhausted.
// Unread content of the previous record is discarded.
func (r *Reader) Next() (*Record, error) {
	if err := r.closeCurrent(); err != nil {
		return nil, err
	}

	if err := r.skipSeparators(); err != nil {
		return nil, err
	}

	rec, _, _, err := r.unmarshaler.Unmarshal(r.br)
	if err != nil {
		return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, r.count+1, err)
	}
	r.current = rec
	r.count++

	content, err := rec.Block().RawBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read record %d block: %w", r.count, err)
	}

	return &Record{
		Version: versionName(rec.Version()),
		Header:  headerFrom(rec.WarcHeader()),
		Content: content,
		block:   rec.Block(),
	}, nil
}

// skipSeparators drops blank lines left between records. It returns io.EOF
// when nothing but blank lines remain.
func (r *Reader) skipSeparators() error {
	for {
		b, err := r.br.Peek(1)
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		if err != nil {
			return fmt.Errorf("failed to read record %d: %w", r.count+1, err)
		}
		if b[0] != '\r' && b[0] != '\n' {
			return nil
		}
		if _, err := r.br.Discard(1); err != nil {
			return err
		}
	}
}

func (r *Reader) closeCurrent() error {
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	if err != nil {
		return fmt.Errorf("%w: record %d: %v", ErrMalformed, r.count, err)
	}
	return nil
}

// Close releases the current record. The underlying reader is not closed.
func (r *Reader) Close() error {
	return r.closeCurrent()
}
