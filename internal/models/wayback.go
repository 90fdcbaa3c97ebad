package models

import (
	"fmt"
	"time"
)

// cdxTimestampLayout is the 14-digit CDX timestamp format: YYYYMMDDhhmmss
const cdxTimestampLayout = "20060102150405"

// warcDateLayout is the W3C-ISO8601 form used by WARC date fields
const warcDateLayout = "2006-01-02T15:04:05Z"

// Capture represents an earlier capture of a payload found in the CDX index
type Capture struct {
	RecordID string    // optional WARC-Record-ID of the prior capture
	Date     time.Time // capture time, UTC
	URI      string    // original URI the prior capture was made for
}

// ParseCDXTimestamp parses a 14-digit CDX timestamp as UTC
func ParseCDXTimestamp(ts string) (time.Time, error) {
	if len(ts) != len(cdxTimestampLayout) {
		return time.Time{}, fmt.Errorf("invalid CDX timestamp %q: want 14 digits", ts)
	}
	t, err := time.ParseInLocation(cdxTimestampLayout, ts, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid CDX timestamp %q: %w", ts, err)
	}
	return t, nil
}

// FormatCDXTimestamp renders t as a 14-digit CDX timestamp
func FormatCDXTimestamp(t time.Time) string {
	return t.UTC().Format(cdxTimestampLayout)
}

// FormatWARCDate renders t as YYYY-MM-DDThh:mm:ssZ
func FormatWARCDate(t time.Time) string {
	return t.UTC().Format(warcDateLayout)
}

// CachedCapture is a capture held in the local cache together with the key
// it answers
type CachedCapture struct {
	Key       DedupKey
	Capture   Capture
	FetchedAt time.Time // when the lookup that found it ran
}
