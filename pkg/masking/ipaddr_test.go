package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyIP(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		expected IPVersion
	}{
		{"ipv4", "192.168.1.100", IPv4},
		{"ipv4 loopback", "127.0.0.1", IPv4},
		{"ipv6 full", "2001:db8:85a3::8a2e:370:7334", IPv6},
		{"ipv6 loopback", "::1", IPv6},
		{"ipv6 unspecified", "::", IPv6},
		{"ipv4 mapped ipv6 follows the written form", "::ffff:10.0.0.1", IPv6},
		{"octet out of range", "999.1.1.1", IPInvalid},
		{"hostname", "example.com", IPInvalid},
		{"empty", "", IPInvalid},
		{"ipv4 with port", "192.168.1.1:8080", IPInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyIP(tt.ip))
		})
	}
}

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		expected string
	}{
		{"ipv4", "192.168.1.100", "192.168.1.0"},
		{"ipv4 already zero", "192.168.1.0", "192.168.1.0"},
		{"ipv6 compressed", "2001:db8:85a3::8a2e:370:7334", "2001:db8:85a3::8a2e:370:0"},
		{"ipv6 loopback", "::1", "::0"},
		{"ipv6 unspecified stays put", "::", "::"},
		{"ipv6 trailing compression", "2001:db8::", "2001:db8::0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AnonymizeIP(tt.ip)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.True(t, IsMasked(got), "anonymized form %q must trip the detector", got)
		})
	}
}

func TestAnonymizeIPInvalid(t *testing.T) {
	for _, ip := range []string{"", "not an ip", "999.1.1.1", "192.168.1"} {
		t.Run(ip, func(t *testing.T) {
			got, err := AnonymizeIP(ip)
			assert.ErrorIs(t, err, ErrInvalidIP)
			assert.Empty(t, got)
		})
	}
}

func TestMaskIPLastSegment(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		expected string
	}{
		{"ipv4", "192.168.1.100", "192.168.1.***"},
		{"ipv6", "2001:db8::1", "2001:db8::****"},
		{"ipv6 loopback", "::1", "::****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MaskIPLastSegment(tt.ip)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := MaskIPLastSegment("nope")
	assert.ErrorIs(t, err, ErrInvalidIP)
}

func TestAnonymizeIPs(t *testing.T) {
	got := AnonymizeIPs([]string{"192.168.1.100", "garbage", "::1", ""})
	assert.Equal(t, []string{"192.168.1.0", "::0"}, got, "invalid entries are dropped, order is kept")

	assert.Empty(t, AnonymizeIPs(nil))
	assert.Empty(t, AnonymizeIPs([]string{"junk"}))
}

func TestAnonymizeRequestIP(t *testing.T) {
	tests := []struct {
		name     string
		sources  []string
		expected string
		found    bool
	}{
		{
			name:     "first source wins",
			sources:  []string{"203.0.113.7", "10.0.0.5"},
			expected: "203.0.113.0",
			found:    true,
		},
		{
			name:     "forwarding chain takes the first valid hop",
			sources:  []string{"", "203.0.113.7, 70.41.3.18, 150.172.238.178"},
			expected: "203.0.113.0",
			found:    true,
		},
		{
			name:     "garbage entries are skipped within a chain",
			sources:  []string{"unknown, 2001:db8::1"},
			expected: "2001:db8::0",
			found:    true,
		},
		{
			name:     "falls through invalid sources",
			sources:  []string{"unix:", "garbage", "10.1.2.3"},
			expected: "10.1.2.0",
			found:    true,
		},
		{
			name:    "nothing valid anywhere",
			sources: []string{"", "unknown", "unix:"},
		},
		{
			name:    "no sources",
			sources: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := AnonymizeRequestIP(tt.sources)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.expected, got)
		})
	}
}
