package api

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ExtractRootDomain extracts the registrable domain from a URL or hostname
// Uses publicsuffix to handle complex TLDs like .co.uk
// Examples:
//   - "https://playground.bfl.ai/" -> "bfl.ai"
//   - "test1.dev.pci.westcoast.acme.com" -> "acme.com"
//   - "dns:example.org" -> error (no host)
func ExtractRootDomain(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty input")
	}

	if strings.Contains(input, "://") {
		parsed, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		input = parsed.Hostname()
	}

	input = strings.ToLower(strings.TrimSuffix(input, "."))
	if input == "" || strings.ContainsAny(input, ":/") {
		return "", fmt.Errorf("no host in %q", input)
	}

	rootDomain, err := publicsuffix.EffectiveTLDPlusOne(input)
	if err != nil {
		return "", fmt.Errorf("failed to extract root domain: %w", err)
	}

	return rootDomain, nil
}

// HostKey groups a target URI for statistics: its registrable domain, the
// bare host when that cannot be derived, or "other".
func HostKey(uri string) string {
	if root, err := ExtractRootDomain(uri); err == nil {
		return root
	}
	if parsed, err := url.Parse(uri); err == nil && parsed.Hostname() != "" {
		return strings.ToLower(parsed.Hostname())
	}
	return "other"
}
