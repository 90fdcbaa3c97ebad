package warc

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/nlnwa/gowarc"
)

// Writer emits WARC records to an underlying stream
type Writer struct {
	w         io.Writer
	compress  bool
	marshaler gowarc.Marshaler
}

// NewWriter returns a Writer. With compress set every record is written as
// its own gzip member, the usual layout of .warc.gz files.
func NewWriter(w io.Writer, compress bool) *Writer {
	return &Writer{w: w, compress: compress, marshaler: gowarc.NewMarshaler()}
}

// WriteRecord writes rec. Records carrying a Content-Length have exactly that
// many bytes of content copied through and keep their digests as they are.
// Records without one get Content-Length and WARC-Block-Digest filled in.
func (w *Writer) WriteRecord(rec *Record) error {
	recordType, ok := recordTypes[strings.ToLower(rec.Type())]
	if !ok {
		return fmt.Errorf("%w: unsupported record type %q", ErrMalformed, rec.Type())
	}

	content := rec.Content
	if content == nil {
		content = strings.NewReader("")
	}

	length := int64(-1)
	if rec.Header.Has(FieldContentLength) {
		n, err := strconv.ParseInt(strings.TrimSpace(rec.Header.Get(FieldContentLength)), 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: invalid Content-Length %q", ErrMalformed, rec.Header.Get(FieldContentLength))
		}
		length = n
		content = io.LimitReader(content, n)
	}
	generated := length < 0

	builder := gowarc.NewRecordBuilder(recordType,
		gowarc.WithVersion(versionOf(rec.Version)),
		gowarc.WithSyntaxErrorPolicy(gowarc.ErrWarn),
		gowarc.WithSpecViolationPolicy(gowarc.ErrWarn),
		gowarc.WithUnknownRecordTypePolicy(gowarc.ErrIgnore),
		gowarc.WithAddMissingContentLength(true),
		gowarc.WithAddMissingRecordId(true),
		gowarc.WithAddMissingDigest(generated),
		gowarc.WithFixDigest(false),
	)
	defer builder.Close()

	for _, f := range rec.Header.Fields() {
		// the builder writes WARC-Type from recordType
		if strings.EqualFold(f.Name, FieldType) {
			continue
		}
		builder.AddWarcHeader(f.Name, f.Value)
	}

	n, err := io.Copy(builder, content)
	if err != nil {
		return fmt.Errorf("failed to read record %s content: %w", rec.RecordID(), err)
	}
	if !generated && n != length {
		return fmt.Errorf("%w: record %s has %d bytes of content, Content-Length says %d", ErrMalformed, rec.RecordID(), n, length)
	}

	built, _, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build record %s: %w", rec.RecordID(), err)
	}
	defer built.Close()

	var gz *gzip.Writer
	dst := w.w
	if w.compress {
		gz = gzip.NewWriter(w.w)
		dst = gz
	}

	if _, _, err := w.marshaler.Marshal(dst, built, 0); err != nil {
		return fmt.Errorf("failed to write record %s: %w", rec.RecordID(), err)
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip member: %w", err)
		}
	}
	return nil
}
