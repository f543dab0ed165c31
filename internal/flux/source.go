package flux

import (
	"fmt"
	"net/url"
	"strings"
)

// SourceValidator decides which URLs may be used as the flux feed.
type SourceValidator struct {
	allowedSchemes map[string]bool // e.g. "http", "https"
	allowedPorts   map[string]bool // "" allows the scheme default
	allowedHosts   map[string]bool // exact hosts; subdomains match too
}

// NewSourceValidator creates a validator that accepts the given hosts over
// http or https on default or common ports. A "host:port" entry allows
// exactly that host on that port.
func NewSourceValidator(hosts []string) *SourceValidator {
	allowedHosts := make(map[string]bool, len(hosts))
	for _, host := range hosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			allowedHosts[host] = true
		}
	}

	return &SourceValidator{
		allowedSchemes: map[string]bool{
			"http":  true,
			"https": true,
		},
		allowedPorts: map[string]bool{
			"":     true,
			"80":   true,
			"443":  true,
			"8080": true,
		},
		allowedHosts: allowedHosts,
	}
}

// Validate parses raw and checks scheme, port and host. It returns the
// normalized URL.
func (v *SourceValidator) Validate(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("flux source URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid flux source URL: %w", err)
	}

	if !v.allowedSchemes[strings.ToLower(u.Scheme)] {
		return "", fmt.Errorf("flux source scheme %q is not allowed", u.Scheme)
	}

	if u.Port() != "" && v.allowedHosts[strings.ToLower(u.Host)] {
		return u.String(), nil
	}

	if port := u.Port(); !v.allowedPorts[port] {
		return "", fmt.Errorf("flux source port %q is not allowed", port)
	}

	if !v.IsAllowedHost(u.Hostname()) {
		return "", fmt.Errorf("flux source host %q is not allowed", u.Hostname())
	}

	return u.String(), nil
}

// IsAllowedHost reports whether host, or a parent domain of it, is allowed.
func (v *SourceValidator) IsAllowedHost(host string) bool {
	if host == "" {
		return false
	}
	lowerHost := strings.ToLower(host)

	if v.allowedHosts[lowerHost] {
		return true
	}

	for allowed := range v.allowedHosts {
		if strings.HasSuffix(lowerHost, "."+allowed) {
			return true
		}
	}
	return false
}
