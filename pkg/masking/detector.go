package masking

import (
	"regexp"
	"strings"
)

// maskedAgentPhrase matches the "{browser} on {os}" shape produced by
// MaskUserAgent, e.g. "Chrome on Windows" or "Unknown Browser on Unknown OS".
var maskedAgentPhrase = regexp.MustCompile(`^[A-Za-z\s]+ on [A-Za-z\s]+$`)

// IsMasked reports whether a value already looks like masker output.
//
// This is a heuristic over the shapes our maskers produce: asterisk runs,
// the email placeholder, anonymized IP endings, and masked user-agent
// phrases. It can misfire on organic data ("10.0.0.0" networks, a comment
// that happens to read "word on word") and callers must treat a positive
// as "do not trust this value to be raw", never as proof of provenance.
func IsMasked(value string) bool {
	if value == "" {
		return false
	}
	if strings.Contains(value, "*") {
		return true
	}
	if value == PlaceholderAddress {
		return true
	}
	if strings.HasSuffix(value, ".0") || strings.HasSuffix(value, ":0") {
		return true
	}
	if value == "::" {
		return true
	}
	return maskedAgentPhrase.MatchString(value)
}

// AnyMasked reports whether any of the given values looks masked.
// Record-level checks use this: a record counts as masked as soon as one
// of its checked fields does.
func AnyMasked(values ...string) bool {
	for _, value := range values {
		if IsMasked(value) {
			return true
		}
	}
	return false
}
