package masking

import (
	"net/mail"
	"strings"
)

// PlaceholderAddress replaces email addresses during record anonymization.
// The .invalid TLD is reserved (RFC 2606), so the address can never route.
const PlaceholderAddress = "deleted@site.invalid"

// MaskEmail masks an email address while keeping it recognizable as one.
// The local part keeps its first two characters; the first domain label is
// masked the same way and the remaining labels stay readable, so
// "john.doe@example.co.uk" becomes "jo******@ex*****.co.uk".
// Invalid input returns "".
func MaskEmail(email string) string {
	local, domain, ok := splitAddress(email)
	if !ok {
		return ""
	}

	maskedLocal := maskEmailPart(local)

	labels := strings.Split(domain, ".")
	if len(labels) > 1 {
		labels[0] = maskEmailPart(labels[0])
		return maskedLocal + "@" + strings.Join(labels, ".")
	}
	return maskedLocal + "@" + maskEmailPart(domain)
}

// DisplayMask partially masks the local part for UI display, keeping the
// first showFirst and last showLast characters visible and the domain
// untouched. When the window covers the whole local part the address is
// returned unchanged. Invalid input returns "".
func DisplayMask(email string, showFirst, showLast int) string {
	local, domain, ok := splitAddress(email)
	if !ok {
		return ""
	}
	if showFirst < 0 {
		showFirst = 0
	}
	if showLast < 0 {
		showLast = 0
	}

	runes := []rune(local)
	if showFirst+showLast >= len(runes) {
		return email
	}
	hidden := len(runes) - showFirst - showLast
	return string(runes[:showFirst]) + strings.Repeat("*", hidden) +
		string(runes[len(runes)-showLast:]) + "@" + domain
}

// Placeholder returns the non-routable placeholder for a valid address,
// or "" for invalid input.
func Placeholder(email string) string {
	if _, _, ok := splitAddress(email); !ok {
		return ""
	}
	return PlaceholderAddress
}

// maskEmailPart keeps the first two runes (fewer for short parts) and
// covers the remainder with at least three asterisks. The floor keeps
// short parts irreversible and guarantees masked output contains '*'.
func maskEmailPart(part string) string {
	runes := []rune(part)
	visible := 2
	if len(runes) < visible {
		visible = len(runes)
	}
	hidden := len(runes) - visible
	if hidden < 3 {
		hidden = 3
	}
	return string(runes[:visible]) + strings.Repeat("*", hidden)
}

// splitAddress validates a bare email address and splits it at the final
// '@'. Addresses with display names ("Jane <jane@x>") are rejected: this
// package masks stored field values, not message headers.
func splitAddress(email string) (local, domain string, ok bool) {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", false
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", "", false
	}
	return email[:at], email[at+1:], true
}
