// Package warc adapts github.com/nlnwa/gowarc to the record model used by the
// deduplication pipeline.
//
// Records are streamed: a Reader hands out one record at a time with its
// block exposed as an io.Reader. A Writer emits records either plain or as
// one gzip member per record.
package warc

import (
	"github.com/nlnwa/gowarc"
)

// Named header fields used by the deduplication pipeline
const (
	FieldType              = "WARC-Type"
	FieldRecordID          = "WARC-Record-ID"
	FieldDate              = "WARC-Date"
	FieldTargetURI         = "WARC-Target-URI"
	FieldPayloadDigest     = "WARC-Payload-Digest"
	FieldBlockDigest       = "WARC-Block-Digest"
	FieldContentLength     = "Content-Length"
	FieldContentType       = "Content-Type"
	FieldFilename          = "WARC-Filename"
	FieldWarcinfoID        = "WARC-Warcinfo-ID"
	FieldRefersTo          = "WARC-Refers-To"
	FieldRefersToDate      = "WARC-Refers-To-Date"
	FieldRefersToTargetURI = "WARC-Refers-To-Target-URI"
	FieldTruncated         = "WARC-Truncated"
	FieldProfile           = "WARC-Profile"
)

// Record types
const (
	TypeWarcinfo = "warcinfo"
	TypeResponse = "response"
	TypeRequest  = "request"
	TypeRevisit  = "revisit"
	TypeResource = "resource"
	TypeMetadata = "metadata"
)

// Field is a single named header line
type Field struct {
	Name  string
	Value string
}

// Header is an ordered set of WARC named fields backed by gowarc.WarcFields.
// It is detached from any gowarc record, so it can be edited freely.
type Header struct {
	fields gowarc.WarcFields
}

// NewHeader returns an empty header
func NewHeader() *Header {
	return &Header{}
}

// headerFrom copies the fields of a parsed record
func headerFrom(wf *gowarc.WarcFields) *Header {
	h := NewHeader()
	if wf == nil {
		return h
	}
	for _, nv := range *wf {
		h.fields.Add(nv.Name, nv.Value)
	}
	return h
}

// Get returns the value of the first field with the given name, or ""
func (h *Header) Get(name string) string {
	return h.fields.Get(name)
}

// Has reports whether a field with the given name is present
func (h *Header) Has(name string) bool {
	return h.fields.Has(name)
}

// Set replaces the field with the given name, or appends it when absent
func (h *Header) Set(name, value string) {
	h.fields.Set(name, value)
}

// Add appends a field even if one with the same name exists
func (h *Header) Add(name, value string) {
	h.fields.Add(name, value)
}

// Del removes every field with the given name
func (h *Header) Del(name string) {
	h.fields.Delete(name)
}

// Len returns the number of fields
func (h *Header) Len() int {
	return len(h.fields)
}

// Fields returns a copy of the fields in order
func (h *Header) Fields() []Field {
	out := make([]Field, 0, len(h.fields))
	for _, nv := range h.fields {
		out = append(out, Field{Name: nv.Name, Value: nv.Value})
	}
	return out
}

// Clone returns a deep copy of the header
func (h *Header) Clone() *Header {
	return headerFrom(&h.fields)
}
