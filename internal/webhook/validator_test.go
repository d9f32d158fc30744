package webhook

import (
	"errors"
	"net"
	"testing"
)

func stubLookup(ips map[string][]string) func(string) ([]net.IP, error) {
	return func(host string) ([]net.IP, error) {
		raw, ok := ips[host]
		if !ok {
			return nil, errors.New("no such host")
		}
		out := make([]net.IP, 0, len(raw))
		for _, s := range raw {
			out = append(out, net.ParseIP(s))
		}
		return out, nil
	}
}

func TestValidatorValidate(t *testing.T) {
	lookup := stubLookup(map[string][]string{
		"hooks.example.com":    {"93.184.216.34"},
		"internal.example.com": {"10.1.2.3"},
	})

	tests := []struct {
		name         string
		url          string
		requireHTTPS bool
		blockPrivate bool
		wantErr      error
	}{
		{"https url", "https://hooks.example.com/webhook/abc", false, false, nil},
		{"http allowed by default", "http://hooks.example.com/webhook", false, false, nil},
		{"http rejected when https required", "http://hooks.example.com/webhook", true, false, ErrHTTPSRequired},
		{"ftp rejected", "ftp://hooks.example.com/file", false, false, ErrInvalidScheme},
		{"relative path rejected", "/webhook", false, false, ErrInvalidScheme},
		{"empty host", "https:///webhook", false, false, ErrEmptyHost},
		{"localhost allowed when not blocking", "http://localhost:5678/webhook", false, false, nil},
		{"localhost blocked", "http://localhost:5678/webhook", false, true, ErrLocalhostBlocked},
		{".local blocked", "https://n8n.local/webhook", false, true, ErrLocalhostBlocked},
		{"literal private ip", "https://192.168.0.10/webhook", false, true, ErrPrivateIP},
		{"metadata ip", "http://169.254.169.254/latest", false, true, ErrPrivateIP},
		{"literal public ip", "https://8.8.8.8/webhook", false, true, nil},
		{"resolves private", "https://internal.example.com/hook", false, true, ErrPrivateIP},
		{"resolves public", "https://hooks.example.com/hook", false, true, nil},
		{"unresolvable allowed", "https://nowhere.example.com/hook", false, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(tt.requireHTTPS, tt.blockPrivate)
			v.lookupIP = lookup

			err := v.Validate(tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate(%q) error = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestIsBlockedIP(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		blocked bool
	}{
		{"private 10.x", "10.0.0.1", true},
		{"private 172.16.x", "172.16.0.1", true},
		{"private 192.168.x", "192.168.1.1", true},
		{"loopback", "127.0.0.1", true},
		{"link-local", "169.254.1.1", true},
		{"cgnat", "100.64.0.1", true},
		{"ipv6 loopback", "::1", true},
		{"public IP", "8.8.8.8", false},
		{"public IPv6", "2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("failed to parse IP: %s", tt.ip)
			}
			if got := isBlockedIP(ip); got != tt.blocked {
				t.Errorf("isBlockedIP(%q) = %v, want %v", tt.ip, got, tt.blocked)
			}
		})
	}
}

func TestExtractHost(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://hooks.example.com/webhook/secret-token", "hooks.example.com"},
		{"http://n8n.example.com:5678/webhook", "n8n.example.com:5678"},
		{"invalid-url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := ExtractHost(tt.url); got != tt.want {
				t.Errorf("ExtractHost(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
