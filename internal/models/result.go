package models

// LookupStatus qualifies the outcome of resolving a DedupKey
type LookupStatus int

const (
	// StatusUnresolved is the state of a key before the lookup phase runs
	StatusUnresolved LookupStatus = iota
	// StatusNoPriorCapture means the index holds no capture with this payload
	StatusNoPriorCapture
	// StatusLookupFailed means the index could not be definitively queried
	StatusLookupFailed
	// StatusMatched means a usable earlier capture exists
	StatusMatched
)

func (s LookupStatus) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusNoPriorCapture:
		return "no-prior-capture"
	case StatusLookupFailed:
		return "lookup-failed"
	case StatusMatched:
		return "matched"
	default:
		return "unknown"
	}
}

// FailureReason explains a StatusLookupFailed result
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonNoResponse
	ReasonRobotsBlocked
	ReasonExcluded
	ReasonLineTooLarge
	ReasonMalformed
	ReasonMissingDigest
	ReasonHTTPHeader
)

func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoResponse:
		return "no or bad CDX API response"
	case ReasonRobotsBlocked:
		return "blocked by robots.txt"
	case ReasonExcluded:
		return "excluded from the CDX API"
	case ReasonLineTooLarge:
		return "URL too large"
	case ReasonMalformed:
		return "invalid CDX API response"
	case ReasonMissingDigest:
		return "no payload digest"
	case ReasonHTTPHeader:
		return "unreadable HTTP header"
	default:
		return "unknown"
	}
}

// LookupResult is the resolution of one DedupKey
type LookupResult struct {
	Status  LookupStatus
	Capture *Capture      // set only when Status == StatusMatched
	Reason  FailureReason // set only when Status == StatusLookupFailed
}

// NoPriorCapture returns a result for a payload the index has never seen
func NoPriorCapture() LookupResult {
	return LookupResult{Status: StatusNoPriorCapture}
}

// LookupFailed returns a failed result carrying its reason
func LookupFailed(reason FailureReason) LookupResult {
	return LookupResult{Status: StatusLookupFailed, Reason: reason}
}

// Matched returns a result pointing at an earlier capture
func Matched(c Capture) LookupResult {
	return LookupResult{Status: StatusMatched, Capture: &c}
}

// IsMatched reports whether the result can be turned into a revisit record
func (r LookupResult) IsMatched() bool {
	return r.Status == StatusMatched && r.Capture != nil
}

// String renders the result for log output
func (r LookupResult) String() string {
	switch r.Status {
	case StatusMatched:
		if r.Capture == nil {
			return r.Status.String()
		}
		return FormatCDXTimestamp(r.Capture.Date) + " " + r.Capture.URI
	case StatusLookupFailed:
		return r.Status.String() + ": " + r.Reason.String()
	default:
		return r.Status.String()
	}
}
