package warc

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/nlnwa/gowarc"
)

// DefaultVersion is written for records created by this package
const DefaultVersion = "WARC/1.0"

const version11 = "WARC/1.1"

// MaxHTTPHeaderSize bounds the HTTP header a revisit record may carry
const MaxHTTPHeaderSize = 1 << 20

// ErrMalformed is returned for input that is not a well-formed WARC stream
var ErrMalformed = errors.New("malformed WARC record")

// Record is one WARC record. Content yields the record block; for records
// returned by a Reader it is only valid until the next call to Next.
type Record struct {
	Version string
	Header  *Header
	Content io.Reader

	block gowarc.Block // parsed block, set for records returned by a Reader
}

// NewRecord creates a record of the given type with a fresh record id and
// the current date.
func NewRecord(recordType string) *Record {
	h := NewHeader()
	h.Set(FieldType, recordType)
	h.Set(FieldRecordID, NewRecordID())
	h.Set(FieldDate, time.Now().UTC().Format("2006-01-02T15:04:05Z"))
	return &Record{Version: DefaultVersion, Header: h}
}

// Type returns the WARC-Type field
func (r *Record) Type() string {
	return r.Header.Get(FieldType)
}

// RecordID returns the WARC-Record-ID field
func (r *Record) RecordID() string {
	return r.Header.Get(FieldRecordID)
}

// TargetURI returns the WARC-Target-URI field
func (r *Record) TargetURI() string {
	return r.Header.Get(FieldTargetURI)
}

// HTTPHeader returns the HTTP message header of the block, status line and
// terminating blank line included. It reports false when the block was not
// parsed as an HTTP message or the header exceeds MaxHTTPHeaderSize.
func (r *Record) HTTPHeader() ([]byte, bool) {
	pb, ok := r.block.(gowarc.ProtocolHeaderBlock)
	if !ok {
		return nil, false
	}
	header := pb.ProtocolHeaderBytes()
	if len(header) == 0 || len(header) > MaxHTTPHeaderSize {
		return nil, false
	}
	out := make([]byte, len(header))
	copy(out, header)
	return out, true
}

// NewRecordID returns a new "<urn:uuid:...>" record identifier
func NewRecordID() string {
	return "<urn:uuid:" + uuid.NewString() + ">"
}

func versionOf(v string) *gowarc.WarcVersion {
	if v == version11 {
		return gowarc.V1_1
	}
	return gowarc.V1_0
}

func versionName(v *gowarc.WarcVersion) string {
	if v == gowarc.V1_1 {
		return version11
	}
	return DefaultVersion
}

// recordTypes maps WARC-Type values to gowarc record types
var recordTypes = map[string]gowarc.RecordType{
	TypeWarcinfo:   gowarc.Warcinfo,
	TypeResponse:   gowarc.Response,
	TypeResource:   gowarc.Resource,
	TypeRequest:    gowarc.Request,
	TypeMetadata:   gowarc.Metadata,
	TypeRevisit:    gowarc.Revisit,
	"conversion":   gowarc.Conversion,
	"continuation": gowarc.Continuation,
}
