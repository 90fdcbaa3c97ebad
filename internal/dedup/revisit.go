package dedup

import (
	"bytes"
	"regexp"

	"github.com/thesavant42/warc-dedup/internal/models"
	"github.com/thesavant42/warc-dedup/internal/warc"
)

// ProfileIdenticalPayloadDigest is the WARC-Profile of revisit records
// created from a payload digest match
const ProfileIdenticalPayloadDigest = "http://netpreserve.org/warc/1.0/revisit/identical-payload-digest"

var bracketedURIRe = regexp.MustCompile(`^<(.+)>$`)

// UnwrapURI strips the angle brackets some tools write around
// WARC-Target-URI. The second result reports whether anything changed.
func UnwrapURI(uri string) (string, bool) {
	m := bracketedURIRe.FindStringSubmatch(uri)
	if m == nil {
		return uri, false
	}
	return m[1], true
}

// KeyFor returns the dedup key of a response record
func KeyFor(rec *warc.Record) models.DedupKey {
	uri, _ := UnwrapURI(rec.TargetURI())
	return models.NewDedupKey(rec.Header.Get(warc.FieldPayloadDigest), uri)
}

// BuildRevisit turns a response record into a revisit record pointing at an
// earlier capture of the same payload. httpHeader is the HTTP response header
// of the original block and becomes the whole block of the revisit record.
// The original record is not modified.
func BuildRevisit(original *warc.Record, httpHeader []byte, capture models.Capture) *warc.Record {
	h := original.Header.Clone()

	h.Set(warc.FieldRefersToDate, models.FormatWARCDate(capture.Date))
	h.Set(warc.FieldRefersToTargetURI, capture.URI)
	if capture.RecordID != "" {
		h.Set(warc.FieldRefersTo, capture.RecordID)
	} else {
		h.Del(warc.FieldRefersTo)
	}
	h.Set(warc.FieldType, warc.TypeRevisit)
	h.Set(warc.FieldTruncated, "length")
	h.Set(warc.FieldProfile, ProfileIdenticalPayloadDigest)
	h.Del(warc.FieldBlockDigest)
	h.Del(warc.FieldContentLength)

	block := make([]byte, len(httpHeader))
	copy(block, httpHeader)

	return &warc.Record{
		Version: original.Version,
		Header:  h,
		Content: bytes.NewReader(block),
	}
}
