package models

import (
	"fmt"
	"strings"
)

// Digest is an algorithm-tagged payload hash as found in WARC-Payload-Digest,
// e.g. "sha1:3I42H3S6NNFQ2MSVX7XZKYAYSCX5QBYJ"
type Digest struct {
	Algorithm string
	Value     string
}

// ParseDigest splits a labelled digest on its first colon.
// A value without a label yields an empty Algorithm.
func ParseDigest(s string) Digest {
	s = strings.TrimSpace(s)
	alg, value, ok := strings.Cut(s, ":")
	if !ok {
		return Digest{Value: s}
	}
	return Digest{Algorithm: strings.ToLower(alg), Value: value}
}

// IsZero reports whether no digest was recorded
func (d Digest) IsZero() bool {
	return d.Algorithm == "" && d.Value == ""
}

// String renders the digest in its labelled form
func (d Digest) String() string {
	if d.Algorithm == "" {
		return d.Value
	}
	return d.Algorithm + ":" + d.Value
}

// DedupKey identifies a payload at a URI. Two response records with equal
// keys are treated as payload-identical.
type DedupKey struct {
	Digest Digest
	URI    string
}

// NewDedupKey builds a key from raw header values
func NewDedupKey(payloadDigest, targetURI string) DedupKey {
	return DedupKey{
		Digest: ParseDigest(payloadDigest),
		URI:    targetURI,
	}
}

// String renders the key for log output
func (k DedupKey) String() string {
	return fmt.Sprintf("(%s, %s)", k.Digest, k.URI)
}
