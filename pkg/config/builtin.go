package config

import (
	"sync"
)

// Field kinds recognized by the personal-data dispatcher.
const (
	PersonalKindName      = "name"
	PersonalKindPhone     = "phone"
	PersonalKindAddress   = "address"
	PersonalKindZipCode   = "zipcode"
	PersonalKindBirthDate = "birth_date"
	PersonalKindText      = "text"
)

// Financial account types recognized by the financial dispatcher.
const (
	FinancialTypeCreditCard  = "credit_card"
	FinancialTypeBankAccount = "bank_account"
	FinancialTypeTaxID       = "tax_id"
)

// Field kinds recognized by the web-artifact dispatcher.
const (
	WebKindURL       = "url"
	WebKindUserAgent = "user_agent"
)

// BuiltinConfig holds all built-in masking data.
// This provides the default field classifications, financial name hints,
// text scrub patterns, and pattern groups.
type BuiltinConfig struct {
	PersonalFields     map[string]string
	FinancialHints     []FinancialHint
	WebFields          map[string]string
	ScrubPatterns      map[string]ScrubPattern
	PatternGroups      map[string][]string
	DefaultScrubGroups []string
}

// FinancialHint maps a field-name substring to a financial account type.
// Hints are evaluated in order; the first match wins.
type FinancialHint struct {
	Substring string
	Type      string
}

// ScrubPattern is a regex-based replacement applied to free text.
// Replacements carry literal asterisks so scrubbed text registers as masked.
type ScrubPattern struct {
	Pattern     string
	Replacement string
	Description string
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized)
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		PersonalFields:     initBuiltinPersonalFields(),
		FinancialHints:     initBuiltinFinancialHints(),
		WebFields:          initBuiltinWebFields(),
		ScrubPatterns:      initBuiltinScrubPatterns(),
		PatternGroups:      initBuiltinPatternGroups(),
		DefaultScrubGroups: []string{"default"},
	}
}

// initBuiltinPersonalFields maps field names (lowercase) to personal kinds.
// Unlisted fields fall back to the generic text masker.
func initBuiltinPersonalFields() map[string]string {
	return map[string]string{
		"name":         PersonalKindName,
		"first_name":   PersonalKindName,
		"last_name":    PersonalKindName,
		"display_name": PersonalKindName,

		"phone":     PersonalKindPhone,
		"telephone": PersonalKindPhone,
		"mobile":    PersonalKindPhone,

		"address":          PersonalKindAddress,
		"billing_address":  PersonalKindAddress,
		"shipping_address": PersonalKindAddress,

		"zipcode":     PersonalKindZipCode,
		"postal_code": PersonalKindZipCode,
		"zip":         PersonalKindZipCode,

		"birth_date":    PersonalKindBirthDate,
		"birthday":      PersonalKindBirthDate,
		"date_of_birth": PersonalKindBirthDate,
	}
}

// initBuiltinFinancialHints returns the ordered substring rules for
// classifying financial field names. Evaluated top to bottom against the
// lowercased field name; fields matching nothing are treated as credit
// cards, which over-masks rather than leaking.
func initBuiltinFinancialHints() []FinancialHint {
	return []FinancialHint{
		{Substring: "credit", Type: FinancialTypeCreditCard},
		{Substring: "card", Type: FinancialTypeCreditCard},
		{Substring: "bank", Type: FinancialTypeBankAccount},
		{Substring: "account", Type: FinancialTypeBankAccount},
		{Substring: "tax", Type: FinancialTypeTaxID},
		{Substring: "ein", Type: FinancialTypeTaxID},
	}
}

// initBuiltinWebFields maps field names (lowercase) to web kinds.
// Unlisted fields pass through the web dispatcher unchanged.
func initBuiltinWebFields() map[string]string {
	return map[string]string{
		"url":          WebKindURL,
		"request_uri":  WebKindURL,
		"redirect_url": WebKindURL,
		"referrer":     WebKindURL,

		"user_agent":      WebKindUserAgent,
		"http_user_agent": WebKindUserAgent,
	}
}

func initBuiltinScrubPatterns() map[string]ScrubPattern {
	return map[string]ScrubPattern{
		"email": {
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
			Replacement: `***@***.***`,
			Description: "Email addresses",
		},
		"phone": {
			Pattern:     `\b\+?[0-9][0-9()\s.-]{7,18}[0-9]\b`,
			Replacement: `***-***-****`,
			Description: "Phone numbers",
		},
		"ssn": {
			Pattern:     `\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`,
			Replacement: `***-**-****`,
			Description: "US social security numbers",
		},
		"credit_card": {
			Pattern:     `\b(?:[0-9][ -]?){12,18}[0-9]\b`,
			Replacement: `****-****-****-****`,
			Description: "Payment card numbers",
		},
		"ip_address": {
			Pattern:     `\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`,
			Replacement: `***.***.***.***`,
			Description: "IPv4 addresses",
		},
	}
}

// initBuiltinPatternGroups returns predefined groups of scrub patterns.
// Group members reference ScrubPatterns by name; custom patterns from the
// policy file can be referenced alongside them in text_scrub settings.
func initBuiltinPatternGroups() map[string][]string {
	return map[string][]string{
		"contact":   {"email", "phone"},     // Reachability data
		"financial": {"ssn", "credit_card"}, // Account and ID numbers
		"network":   {"ip_address"},         // Addresses

		// The broad phone shape runs last so SSNs and card numbers get
		// their own replacements first.
		"default": {"email", "ssn", "credit_card", "phone"},
	}
}
