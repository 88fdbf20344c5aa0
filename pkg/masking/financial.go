package masking

import (
	"strings"
	"unicode"

	"github.com/privacyops/maskd/pkg/config"
)

// FinancialType identifies which masker a financial field gets.
type FinancialType string

const (
	FinancialCreditCard  FinancialType = config.FinancialTypeCreditCard
	FinancialBankAccount FinancialType = config.FinancialTypeBankAccount
	FinancialTaxID       FinancialType = config.FinancialTypeTaxID
)

// financialKeepDigits is how many trailing digits financial maskers keep.
const financialKeepDigits = 4

// MaskCreditCard masks a card number down to its last four digits:
// "4532-1234-5678-9012" -> "************9012".
func MaskCreditCard(value string) string {
	return maskTrailingKeep(value, unicode.IsDigit, financialKeepDigits)
}

// MaskBankAccount masks an account number down to its last four digits.
func MaskBankAccount(value string) string {
	return maskTrailingKeep(value, unicode.IsDigit, financialKeepDigits)
}

// MaskTaxID masks a tax identifier (SSN, EIN) down to its last four digits.
func MaskTaxID(value string) string {
	return maskTrailingKeep(value, unicode.IsDigit, financialKeepDigits)
}

// MaskFinancialFields masks a map of financial fields. Types come from
// explicitTypes first, then from the built-in name hints; fields matching
// nothing are masked as credit cards, which over-masks rather than leaking.
// Lookups are case-insensitive.
func MaskFinancialFields(fields map[string]string, explicitTypes map[string]FinancialType) map[string]string {
	return maskFinancialFields(fields, normalizeExplicitTypes(explicitTypes), config.GetBuiltinConfig().FinancialHints)
}

func maskFinancialFields(fields map[string]string, explicit map[string]FinancialType, hints []config.FinancialHint) map[string]string {
	masked := make(map[string]string, len(fields))
	for name, value := range fields {
		if value == "" {
			masked[name] = value
			continue
		}
		masked[name] = maskFinancialValue(classifyFinancialField(name, explicit, hints), value)
	}
	return masked
}

func maskFinancialValue(t FinancialType, value string) string {
	switch t {
	case FinancialBankAccount:
		return MaskBankAccount(value)
	case FinancialTaxID:
		return MaskTaxID(value)
	default:
		return MaskCreditCard(value)
	}
}

func classifyFinancialField(name string, explicit map[string]FinancialType, hints []config.FinancialHint) FinancialType {
	lower := strings.ToLower(name)
	if t, ok := explicit[lower]; ok {
		return t
	}
	for _, hint := range hints {
		if strings.Contains(lower, hint.Substring) {
			return FinancialType(hint.Type)
		}
	}
	return FinancialCreditCard
}

func normalizeExplicitTypes(explicit map[string]FinancialType) map[string]FinancialType {
	if len(explicit) == 0 {
		return nil
	}
	normalized := make(map[string]FinancialType, len(explicit))
	for name, t := range explicit {
		normalized[strings.ToLower(name)] = t
	}
	return normalized
}

// FinancialFieldsMasked reports whether any financial field value already
// looks masked.
func FinancialFieldsMasked(fields map[string]string) bool {
	for _, value := range fields {
		if IsMasked(value) {
			return true
		}
	}
	return false
}
