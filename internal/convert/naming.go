package convert

import (
	"fmt"
	"strings"
)

// SanitizeHostname turns a hostname into a DNS-1123 label fragment usable
// inside a generated route name. Wildcard markers are spelled out and any
// character outside [a-z0-9] becomes a dash.
func SanitizeHostname(host string) string {
	host = strings.ToLower(host)
	host = strings.ReplaceAll(host, "*", "wildcard")

	var b strings.Builder

	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	return strings.Trim(b.String(), "-")
}

// routeBaseName is the shared name prefix for all routes generated from one
// Ingress rule. Generated names must be a deterministic function of the source
// identity so repeated conversion yields identical names.
func routeBaseName(ingressName, host string) string {
	return ingressName + "-" + SanitizeHostname(host)
}

// httpRouteName names the nth capacity chunk of an unsplit rule. The first
// chunk keeps the bare suffix for compatibility with single-route rules.
func httpRouteName(base string, chunk int) string {
	if chunk == 0 {
		return base + "-http"
	}

	return fmt.Sprintf("%s-http-%d", base, chunk)
}

// splitRouteName names the route for one expanded match in split-paths mode.
func splitRouteName(base string, index int) string {
	return fmt.Sprintf("%s-p%d", base, index)
}

// tcpRouteName names the experimental-channel route for a non-HTTP rule.
func tcpRouteName(base string) string {
	return base + "-tcp"
}
