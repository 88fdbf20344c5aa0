package masking

import (
	"errors"
	"net"
	"strings"
)

// ErrInvalidIP indicates input that does not parse as an IP address.
var ErrInvalidIP = errors.New("invalid IP address")

// IPVersion classifies an IP address string.
type IPVersion int

const (
	IPInvalid IPVersion = iota
	IPv4
	IPv6
)

// ClassifyIP reports whether the string is a valid IPv4 or IPv6 address.
// Classification follows the written form: anything containing a colon is
// treated as IPv6, including mapped addresses like "::ffff:10.0.0.1".
func ClassifyIP(ip string) IPVersion {
	if net.ParseIP(ip) == nil {
		return IPInvalid
	}
	if strings.Contains(ip, ":") {
		return IPv6
	}
	return IPv4
}

// AnonymizeIP zeroes the host portion of an address while keeping the
// network part readable, operating on the string as written so compressed
// IPv6 forms keep their shape:
//
//	"192.168.1.100"                -> "192.168.1.0"
//	"2001:db8:85a3::8a2e:370:7334" -> "2001:db8:85a3::8a2e:370:0"
//	"::1"                          -> "::0"
//	"::"                           -> "::"
//
// Invalid input returns ErrInvalidIP.
func AnonymizeIP(ip string) (string, error) {
	switch ClassifyIP(ip) {
	case IPv4:
		i := strings.LastIndex(ip, ".")
		return ip[:i] + ".0", nil
	case IPv6:
		// "::" has no final segment to zero.
		if ip == "::" {
			return ip, nil
		}
		i := strings.LastIndex(ip, ":")
		return ip[:i] + ":0", nil
	default:
		return "", ErrInvalidIP
	}
}

// MaskIPLastSegment replaces the final segment with asterisks instead of
// zeroing it: "192.168.1.100" -> "192.168.1.***", "2001:db8::1" ->
// "2001:db8::****". Invalid input returns ErrInvalidIP.
func MaskIPLastSegment(ip string) (string, error) {
	switch ClassifyIP(ip) {
	case IPv4:
		i := strings.LastIndex(ip, ".")
		return ip[:i] + ".***", nil
	case IPv6:
		i := strings.LastIndex(ip, ":")
		return ip[:i] + ":****", nil
	default:
		return "", ErrInvalidIP
	}
}

// AnonymizeIPs anonymizes a list of addresses, dropping invalid entries.
func AnonymizeIPs(ips []string) []string {
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		anonymized, err := AnonymizeIP(ip)
		if err != nil {
			continue
		}
		out = append(out, anonymized)
	}
	return out
}

// AnonymizeRequestIP scans candidate sources in priority order and returns
// the anonymized form of the first syntactically valid address found.
// Sources may be comma-joined forwarding chains; entries are trimmed.
// Returns ("", false) when no source yields a valid address.
func AnonymizeRequestIP(sources []string) (string, bool) {
	for _, source := range sources {
		for _, candidate := range strings.Split(source, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" {
				continue
			}
			if anonymized, err := AnonymizeIP(candidate); err == nil {
				return anonymized, true
			}
		}
	}
	return "", false
}
