package masking

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/privacyops/maskd/pkg/config"
)

// ErrInvalidURL indicates input that does not parse as a URL, or that
// lacks a scheme or host when validation is requested.
var ErrInvalidURL = errors.New("invalid URL")

type uaToken struct {
	token string
	name  string
}

// Browser tokens in match order. Chrome UAs also contain "Safari", so the
// order decides.
var browserTokens = []uaToken{
	{"Chrome", "Chrome"},
	{"Firefox", "Firefox"},
	{"Safari", "Safari"},
	{"Edge", "Edge"},
	{"Opera", "Opera"},
}

// OS tokens in match order.
var osTokens = []uaToken{
	{"Windows", "Windows"},
	{"Mac OS", "macOS"},
	{"Linux", "Linux"},
	{"Android", "Android"},
	{"iPhone", "iOS"},
	{"iPad", "iOS"},
}

// MaskURL masks the request-specific parts of a URL while keeping its
// scheme and host readable. Path segments lose their alphanumerics, query
// values become equal-length asterisk runs (keys stay), and the fragment
// is fully masked:
//
//	"https://example.com/user/123?q=alice#top" ->
//	"https://example.com/****/***?q=*****#***"
//
// With validate set, input must parse and carry a scheme and host;
// otherwise parsing is best-effort and only unparsable input fails.
func MaskURL(rawURL string, validate bool) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if validate && (u.Scheme == "" || u.Host == "") {
		return "", fmt.Errorf("%w: missing scheme or host", ErrInvalidURL)
	}

	if u.Opaque != "" {
		return u.Scheme + ":" + maskAlphanumeric(u.Opaque), nil
	}

	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
	}
	b.WriteString(u.Host)
	b.WriteString(maskAlphanumeric(u.Path))
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(maskQueryValues(u.RawQuery))
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(strings.Repeat("*", utf8.RuneCountInString(u.Fragment)))
	}
	return b.String(), nil
}

// maskAlphanumeric masks letters and digits, keeping separators and
// punctuation so the path shape survives: "/user/123" -> "/****/***".
func maskAlphanumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return '*'
		}
		return r
	}, s)
}

// maskQueryValues blanks each value with an equal-length asterisk run
// while keeping keys as written. Bare tokens without '=' stay untouched.
func maskQueryValues(rawQuery string) string {
	pairs := strings.Split(rawQuery, "&")
	for i, pair := range pairs {
		if key, value, found := strings.Cut(pair, "="); found {
			pairs[i] = key + "=" + strings.Repeat("*", utf8.RuneCountInString(value))
		}
	}
	return strings.Join(pairs, "&")
}

// MaskUserAgent reduces a user-agent string to "{browser} on {os}" using
// ordered substring matching, e.g. "Chrome on Windows". Unrecognized
// strings become "Unknown Browser on Unknown OS".
func MaskUserAgent(ua string) string {
	browser := "Unknown Browser"
	for _, t := range browserTokens {
		if strings.Contains(ua, t.token) {
			browser = t.name
			break
		}
	}
	osName := "Unknown OS"
	for _, t := range osTokens {
		if strings.Contains(ua, t.token) {
			osName = t.name
			break
		}
	}
	return browser + " on " + osName
}

// MaskWebFields masks a map of request metadata fields using the built-in
// classifications: URL-like fields through MaskURL, user-agent fields
// through MaskUserAgent. Unclassified fields pass through unchanged.
func MaskWebFields(fields map[string]string) map[string]string {
	return maskWebFields(fields, config.GetBuiltinConfig().WebFields)
}

func maskWebFields(fields, kinds map[string]string) map[string]string {
	masked := make(map[string]string, len(fields))
	for name, value := range fields {
		masked[name] = maskWebValue(kinds[strings.ToLower(name)], value)
	}
	return masked
}

func maskWebValue(kind, value string) string {
	if value == "" {
		return value
	}
	switch kind {
	case config.WebKindURL:
		if masked, err := MaskURL(value, true); err == nil {
			return masked
		}
		// A URL field that won't parse is still masked, not passed through.
		return MaskText(value)
	case config.WebKindUserAgent:
		return MaskUserAgent(value)
	default:
		return value
	}
}

// WebFieldsMasked reports whether any URL- or user-agent-classified field
// value already looks masked. Unclassified fields are not checked since
// the dispatcher never touches them.
func WebFieldsMasked(fields map[string]string) bool {
	kinds := config.GetBuiltinConfig().WebFields
	for name, value := range fields {
		if _, ok := kinds[strings.ToLower(name)]; ok && IsMasked(value) {
			return true
		}
	}
	return false
}
