// Package privacy scrubs sensitive data from messages bound for telemetry.
// The journal's coordinates identify the keeper's home, so they never leave
// the machine, and neither do deploy hosts, credentials, or local paths.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Pre-compiled patterns, ScrubMessage runs on every reported error.
var (
	// URL pattern covering the schemes the journal talks: weather and
	// taxonomy APIs over HTTPS, deploy targets over FTP and SFTP.
	urlPattern = regexp.MustCompile(`\b(?:https?|ftps?|sftp)://\S+`)

	// Decimal coordinate pair, at least three decimals so version
	// strings and counts are left alone.
	coordPairPattern = regexp.MustCompile(`-?\d{1,3}\.\d{3,}\s*,\s*-?\d{1,3}\.\d{3,}`)

	// Labeled coordinate, as in "latitude=60.1699".
	coordLabelPattern = regexp.MustCompile(`(?i)\b(lat|latitude|lon|lng|longitude)[=:]\s*-?\d{1,3}\.\d+`)

	// Credential-looking values after a telltale label.
	tokenPattern = regexp.MustCompile(`(?i)\b(api[_-]?key|token|auth|secret|password)[=: ]+[A-Za-z0-9_\-]{8,}`)

	// Home directory prefixes in file paths.
	homePattern = regexp.MustCompile(`(?:/home|/Users)/[^/\s]+`)

	ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// ScrubMessage anonymizes URLs and redacts coordinates, credentials, and
// home paths from a message. Safe to call on already-scrubbed text.
func ScrubMessage(message string) string {
	scrubbed := urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	scrubbed = homePattern.ReplaceAllString(scrubbed, "~")
	scrubbed = coordPairPattern.ReplaceAllString(scrubbed, "[LAT],[LON]")
	scrubbed = coordLabelPattern.ReplaceAllString(scrubbed, "$1=[REDACTED]")
	scrubbed = tokenPattern.ReplaceAllString(scrubbed, "$1 [REDACTED]")
	return scrubbed
}

// AnonymizeURL replaces a URL with a stable hash that still tells URLs
// apart. The scheme, host category, port, and path shape feed the hash, so
// repeated failures against one endpoint group together in telemetry
// without revealing the endpoint itself.
func AnonymizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	var normalizedParts []string

	if parsedURL.Scheme != "" {
		normalizedParts = append(normalizedParts, parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	if host != "" {
		normalizedParts = append(normalizedParts, categorizeHost(host))
	}

	if parsedURL.Port() != "" {
		normalizedParts = append(normalizedParts, "port-"+parsedURL.Port())
	}

	if parsedURL.Path != "" && parsedURL.Path != "/" {
		normalizedParts = append(normalizedParts, anonymizePath(parsedURL.Path))
	}

	normalized := strings.Join(normalizedParts, ":")
	hash := sha256.Sum256([]byte(normalized))

	return fmt.Sprintf("url-%x", hash[:12])
}

// categorizeHost anonymizes hostnames while keeping a coarse category
// useful for debugging.
func categorizeHost(host string) string {
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return "localhost"
	}

	if isPrivateIP(host) {
		return "private-ip"
	}

	if isIPAddress(host) {
		return "public-ip"
	}

	// For domain names, preserve the TLD only.
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return "domain-" + parts[len(parts)-1]
	}

	return "unknown-host"
}

// anonymizePath hashes path segments while preserving the path shape.
func anonymizePath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}

	segments := strings.Split(path, "/")
	anonymized := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if isNumeric(segment) {
			anonymized = append(anonymized, "numeric")
			continue
		}
		hash := sha256.Sum256([]byte(segment))
		anonymized = append(anonymized, fmt.Sprintf("seg-%x", hash[:4]))
	}

	return strings.Join(anonymized, "/")
}

func isPrivateIP(host string) bool {
	privateRanges := []string{
		"10.", "172.16.", "172.17.", "172.18.", "172.19.", "172.20.",
		"172.21.", "172.22.", "172.23.", "172.24.", "172.25.", "172.26.",
		"172.27.", "172.28.", "172.29.", "172.30.", "172.31.",
		"192.168.", "169.254.",
		"fc00:", "fd00:", "fe80:", "::1",
	}

	lower := strings.ToLower(host)
	for _, prefix := range privateRanges {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isIPAddress(host string) bool {
	if ipv4Pattern.MatchString(host) {
		return true
	}
	// IPv6 hosts contain colons.
	return strings.Contains(host, ":")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
