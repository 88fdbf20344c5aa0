package masking

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/privacyops/maskd/pkg/config"
)

// ErrUnparsableDate indicates a birth date could not be parsed with any
// known layout. Callers decide the fallback.
var ErrUnparsableDate = errors.New("unparsable date")

const (
	// DefaultPhoneKeepLast is how many trailing digits MaskPhone keeps by default.
	DefaultPhoneKeepLast = 4

	// DefaultZipKeepLast is how many trailing characters MaskZipCode keeps by default.
	DefaultZipKeepLast = 3

	// DefaultPreserveChars are the characters MaskText leaves visible.
	DefaultPreserveChars = " .@-"
)

var digitRunPattern = regexp.MustCompile(`[0-9]+`)

// birthDateLayouts are tried in order by MaskBirthDate. Most-specific
// layouts come first so timestamps aren't truncated by a shorter match.
var birthDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"20060102",
}

// MaskName masks each space-separated word of a name. Words keep their
// first and last character with asterisks between; words of one or two
// characters become all asterisks so they can't be read back.
// "John Smith" -> "J**n S***h", "Jo" -> "**". Unicode-aware.
func MaskName(name string) string {
	words := strings.Split(name, " ")
	for i, word := range words {
		words[i] = maskNameWord(word)
	}
	return strings.Join(words, " ")
}

func maskNameWord(word string) string {
	runes := []rune(word)
	if len(runes) <= 2 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}

// MaskPhone masks a phone number down to its last keepLast digits.
// Formatting characters are stripped first: "555-123-4567" -> "******4567".
// Numbers with keepLast digits or fewer become all asterisks.
func MaskPhone(phone string, keepLast int) string {
	return maskTrailingKeep(phone, unicode.IsDigit, keepLast)
}

// MaskAddress masks a postal address line by line: digit runs become
// equal-length asterisk runs, then remaining letters become asterisks.
// Spaces and punctuation keep the shape readable:
// "123 Main St." -> "*** **** **.".
func MaskAddress(address string) string {
	lines := strings.Split(address, "\n")
	for i, line := range lines {
		lines[i] = maskAddressLine(line)
	}
	return strings.Join(lines, "\n")
}

func maskAddressLine(line string) string {
	line = digitRunPattern.ReplaceAllStringFunc(line, func(run string) string {
		return strings.Repeat("*", len(run))
	})
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return '*'
		}
		return r
	}, line)
}

// MaskBirthDate reduces a birth date to year and month: "1990-05-15" ->
// "1990-05-**". Parsing is permissive over common layouts; input that
// matches none of them returns ErrUnparsableDate.
func MaskBirthDate(date string) (string, error) {
	trimmed := strings.TrimSpace(date)
	if trimmed == "" {
		return "", ErrUnparsableDate
	}
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return fmt.Sprintf("%04d-%02d-**", t.Year(), int(t.Month())), nil
		}
	}
	return "", ErrUnparsableDate
}

// MaskZipCode masks a postal code down to its last keepLast characters
// after stripping separators: "90210" -> "**210", "SW1A 1AA" -> "****1AA".
func MaskZipCode(zip string, keepLast int) string {
	return maskTrailingKeep(zip, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}, keepLast)
}

// MaskText is the catch-all masker: every character outside the default
// preserve set (space, '.', '@', '-') becomes an asterisk.
func MaskText(text string) string {
	return MaskTextPreserving(text, DefaultPreserveChars)
}

// MaskTextPreserving masks text keeping only the runes in preserve visible.
func MaskTextPreserving(text, preserve string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(preserve, r) {
			return r
		}
		return '*'
	}, text)
}

// MaskPersonalFields masks a map of profile fields using the built-in
// field classifications. Field names are matched case-insensitively;
// unclassified fields go through MaskText. Empty values pass through.
func MaskPersonalFields(fields map[string]string) map[string]string {
	return maskPersonalFields(fields, config.GetBuiltinConfig().PersonalFields)
}

func maskPersonalFields(fields, kinds map[string]string) map[string]string {
	masked := make(map[string]string, len(fields))
	for name, value := range fields {
		masked[name] = maskPersonalValue(kinds[strings.ToLower(name)], value)
	}
	return masked
}

func maskPersonalValue(kind, value string) string {
	if value == "" {
		return value
	}
	switch kind {
	case config.PersonalKindName:
		return MaskName(value)
	case config.PersonalKindPhone:
		return MaskPhone(value, DefaultPhoneKeepLast)
	case config.PersonalKindAddress:
		return MaskAddress(value)
	case config.PersonalKindZipCode:
		return MaskZipCode(value, DefaultZipKeepLast)
	case config.PersonalKindBirthDate:
		if masked, err := MaskBirthDate(value); err == nil {
			return masked
		}
		// Unparsable dates still must not leak.
		return MaskText(value)
	default:
		return MaskText(value)
	}
}

// PersonalFieldsMasked reports whether any personal field value already
// looks masked.
func PersonalFieldsMasked(fields map[string]string) bool {
	for _, value := range fields {
		if IsMasked(value) {
			return true
		}
	}
	return false
}

// maskTrailingKeep strips value down to the runes keep accepts, then
// masks all but the trailing keepLast of them. Values at or under the
// keepLast length are fully masked so short inputs never survive intact.
func maskTrailingKeep(value string, keep func(rune) bool, keepLast int) string {
	if keepLast < 0 {
		keepLast = 0
	}
	kept := make([]rune, 0, len(value))
	for _, r := range value {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	if len(kept) <= keepLast {
		return strings.Repeat("*", len(kept))
	}
	return strings.Repeat("*", len(kept)-keepLast) + string(kept[len(kept)-keepLast:])
}
