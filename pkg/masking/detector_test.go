package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMasked(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		masked bool
	}{
		{"empty string", "", false},
		{"asterisk run", "J**n", true},
		{"single asterisk", "*", true},
		{"email placeholder", "deleted@site.invalid", true},
		{"anonymized IPv4", "192.168.1.0", true},
		{"anonymized IPv6", "2001:db8:85a3::8a2e:370:0", true},
		{"zero compressed IPv6", "::", true},
		{"masked user agent", "Chrome on Windows", true},
		{"unknown user agent", "Unknown Browser on Unknown OS", true},
		{"plain name", "John Smith", false},
		{"plain email", "alice@example.com", false},
		{"plain IPv4", "192.168.1.100", false},
		{"plain hostname", "example.com", false},
		{"number without suffix", "12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.masked, IsMasked(tt.value))
		})
	}
}

// The detector is a documented heuristic: organic values that merely look
// like masker output do trip it. These cases pin that down so nobody
// "fixes" them into silent behavior changes.
func TestIsMaskedFalsePositives(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"network address ending in .0", "10.0.0.0"},
		{"version-like token ending in :0", "v1:0"},
		{"prose matching the agent phrase", "logged on server"},
		{"markdown emphasis", "really *important* note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsMasked(tt.value),
				"heuristic is expected to flag %q even though it is organic data", tt.value)
		})
	}
}

func TestAnyMasked(t *testing.T) {
	assert.True(t, AnyMasked("John", "J**n"), "one masked value should flag the set")
	assert.True(t, AnyMasked("", "deleted@site.invalid"))
	assert.False(t, AnyMasked("John", "Smith"))
	assert.False(t, AnyMasked(), "no values means nothing masked")
	assert.False(t, AnyMasked("", ""), "empty values never count as masked")
}
