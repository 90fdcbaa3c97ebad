package api

import (
	"regexp"
	"strings"

	"github.com/thesavant42/warc-dedup/internal/models"
)

// Markers the Wayback CDX server embeds in error bodies
const (
	markerRobots   = "org.archive.wayback.exception.RobotAccessControlException"
	markerExcluded = "org.archive.wayback.exception.AdministrativeAccessControlException"
	markerTooLarge = "Requested Line is too large"
)

var captureLineRe = regexp.MustCompile(`^[0-9]{14}\s+https?://`)

// ClassifyResponse maps a CDX response body to a lookup result. A nil body
// means no response was obtained at all.
func ClassifyResponse(body *string) models.LookupResult {
	if body == nil {
		return models.LookupFailed(models.ReasonNoResponse)
	}
	text := *body
	if strings.TrimSpace(text) == "" {
		return models.NoPriorCapture()
	}
	switch {
	case strings.Contains(text, markerRobots):
		return models.LookupFailed(models.ReasonRobotsBlocked)
	case strings.Contains(text, markerExcluded):
		return models.LookupFailed(models.ReasonExcluded)
	case strings.Contains(text, markerTooLarge):
		return models.LookupFailed(models.ReasonLineTooLarge)
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if !captureLineRe.MatchString(line) {
			continue
		}
		date, err := models.ParseCDXTimestamp(line[:14])
		if err != nil {
			// 14 digits that are not a calendar date
			continue
		}
		return models.Matched(models.Capture{
			Date: date,
			URI:  strings.TrimSpace(line[14:]),
		})
	}

	return models.LookupFailed(models.ReasonMalformed)
}

// ParseResponse classifies body and records the decision for key
func (c *CDXClient) ParseResponse(key models.DedupKey, body *string) models.LookupResult {
	result := ClassifyResponse(body)

	switch {
	case result.IsMatched():
		c.logEvent("Key %s has a prior capture %s.", key, result)
	case result.Status == models.StatusNoPriorCapture:
		c.logEvent("Key %s has no prior capture.", key)
	case result.Reason == models.ReasonMalformed:
		c.logEvent("Key %s got an invalid CDX API response: %q.", key, firstLine(*body))
	default:
		c.logEvent("Key %s could not be looked up: %s.", key, result.Reason)
	}

	if c.logger != nil {
		c.logger.Debug("Classified CDX response", "key", key, "result", result)
	}
	return result
}
