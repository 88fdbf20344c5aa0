package config

import (
	"fmt"
	"regexp"
	"strings"
)

// MaskingPolicy holds the user-tunable masking settings from maskd.yaml.
// Everything here layers on top of the built-in tables: custom patterns
// extend the scrub set, field overrides extend (or reclassify) the
// dispatch tables.
type MaskingPolicy struct {
	TextScrub      TextScrubConfig `yaml:"text_scrub"`
	CustomPatterns []CustomPattern `yaml:"custom_patterns"`
	FieldOverrides FieldOverrides  `yaml:"field_overrides"`
}

// TextScrubConfig selects which patterns run over free-text content
// (comment bodies and similar) during anonymization.
type TextScrubConfig struct {
	// Enabled toggles text scrubbing. Nil means enabled.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Groups are built-in pattern group names. Empty means the default set.
	Groups []string `yaml:"groups,omitempty"`

	// Patterns are individual pattern names (built-in or custom) applied
	// in addition to the groups.
	Patterns []string `yaml:"patterns,omitempty"`
}

// IsEnabled reports whether text scrubbing is on (default true).
func (t *TextScrubConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// CustomPattern is a user-supplied scrub pattern.
type CustomPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Description string `yaml:"description,omitempty"`
}

// FieldOverrides adds or reclassifies field names in the dispatch tables.
// Keys are field names, values are the kind constants for the category.
type FieldOverrides struct {
	Personal  map[string]string `yaml:"personal,omitempty"`
	Financial map[string]string `yaml:"financial,omitempty"`
	Web       map[string]string `yaml:"web,omitempty"`
}

var (
	validPersonalKinds = map[string]bool{
		PersonalKindName:      true,
		PersonalKindPhone:     true,
		PersonalKindAddress:   true,
		PersonalKindZipCode:   true,
		PersonalKindBirthDate: true,
		PersonalKindText:      true,
	}
	validFinancialTypes = map[string]bool{
		FinancialTypeCreditCard:  true,
		FinancialTypeBankAccount: true,
		FinancialTypeTaxID:       true,
	}
	validWebKinds = map[string]bool{
		WebKindURL:       true,
		WebKindUserAgent: true,
	}
)

// Validate checks the policy for compile errors and dangling references.
// Returns the first problem found as a *ValidationError.
func (p *MaskingPolicy) Validate() error {
	builtin := GetBuiltinConfig()

	customNames := make(map[string]bool, len(p.CustomPatterns))
	for i, cp := range p.CustomPatterns {
		id := cp.Name
		if id == "" {
			id = fmt.Sprintf("#%d", i)
			return NewValidationError("custom_pattern", id, "name", ErrMissingRequiredField)
		}
		if cp.Pattern == "" {
			return NewValidationError("custom_pattern", id, "pattern", ErrMissingRequiredField)
		}
		if _, err := regexp.Compile(cp.Pattern); err != nil {
			return NewValidationError("custom_pattern", id, "pattern",
				fmt.Errorf("%w: %v", ErrInvalidPattern, err))
		}
		if cp.Replacement == "" {
			return NewValidationError("custom_pattern", id, "replacement", ErrMissingRequiredField)
		}
		customNames[cp.Name] = true
	}

	for _, group := range p.TextScrub.Groups {
		if _, ok := builtin.PatternGroups[group]; !ok {
			return NewValidationError("text_scrub", group, "groups", ErrPatternGroupNotFound)
		}
	}
	for _, name := range p.TextScrub.Patterns {
		if _, ok := builtin.ScrubPatterns[name]; !ok && !customNames[name] {
			return NewValidationError("text_scrub", name, "patterns", ErrPatternNotFound)
		}
	}

	if err := validateOverrideKinds("personal", p.FieldOverrides.Personal, validPersonalKinds); err != nil {
		return err
	}
	if err := validateOverrideKinds("financial", p.FieldOverrides.Financial, validFinancialTypes); err != nil {
		return err
	}
	if err := validateOverrideKinds("web", p.FieldOverrides.Web, validWebKinds); err != nil {
		return err
	}

	return nil
}

func validateOverrideKinds(category string, overrides map[string]string, valid map[string]bool) error {
	for field, kind := range overrides {
		if strings.TrimSpace(field) == "" {
			return NewValidationError("field_override", category, "field", ErrMissingRequiredField)
		}
		if !valid[kind] {
			return NewValidationError("field_override", category, field,
				fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, kind))
		}
	}
	return nil
}
