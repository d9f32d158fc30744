package webhook

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrInvalidURL is returned when URL parsing fails.
	ErrInvalidURL = errors.New("invalid URL format")
	// ErrInvalidScheme is returned for schemes other than http and https.
	ErrInvalidScheme = errors.New("only http and https allowed")
	// ErrHTTPSRequired is returned for http URLs when HTTPS is enforced.
	ErrHTTPSRequired = errors.New("only HTTPS allowed")
	// ErrEmptyHost is returned when URL has no host.
	ErrEmptyHost = errors.New("URL must have a host")
	// ErrLocalhostBlocked is returned when localhost is used.
	ErrLocalhostBlocked = errors.New("localhost not allowed")
	// ErrPrivateIP is returned when URL resolves to private IP.
	ErrPrivateIP = errors.New("private IP addresses not allowed")
)

// BlockedCIDRs contains private/internal IP ranges.
var BlockedCIDRs = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // link-local, includes cloud metadata
	"100.64.0.0/10",  // carrier-grade NAT
	"0.0.0.0/8",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var blockedNetworks []*net.IPNet

func init() {
	for _, cidr := range BlockedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err == nil {
			blockedNetworks = append(blockedNetworks, network)
		}
	}
}

// Validator checks schedule webhook URLs before they are stored.
type Validator struct {
	requireHTTPS bool
	blockPrivate bool
	lookupIP     func(host string) ([]net.IP, error)
}

// NewValidator creates a Validator. With blockPrivate set, loopback and
// private destinations are rejected.
func NewValidator(requireHTTPS, blockPrivate bool) *Validator {
	return &Validator{
		requireHTTPS: requireHTTPS,
		blockPrivate: blockPrivate,
		lookupIP:     net.LookupIP,
	}
}

// Validate returns nil when targetURL is an acceptable webhook destination.
func (v *Validator) Validate(targetURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(targetURL))
	if err != nil {
		return ErrInvalidURL
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if v.requireHTTPS {
			return ErrHTTPSRequired
		}
	default:
		return ErrInvalidScheme
	}

	host := parsed.Hostname()
	if host == "" {
		return ErrEmptyHost
	}

	if !v.blockPrivate {
		return nil
	}

	if isLocalhostHostname(host) {
		return ErrLocalhostBlocked
	}
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return ErrPrivateIP
		}
		return nil
	}

	// Unresolvable hosts fail at delivery time instead.
	ips, err := v.lookupIP(host)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if isBlockedIP(ip) {
			return ErrPrivateIP
		}
	}
	return nil
}

// isLocalhostHostname checks if hostname is localhost variant.
func isLocalhostHostname(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local") ||
		host == "127.0.0.1" ||
		host == "::1"
}

// isBlockedIP checks if IP is in any blocked CIDR range.
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ExtractHost extracts host from URL for safe logging.
// Webhook URLs often embed tokens in the path, so only the host is logged.
func ExtractHost(targetURL string) string {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return "(invalid)"
	}
	return parsed.Host
}
