// Package masking provides the PII masking primitives used across the
// application: per-category maskers (email, personal, network, financial,
// web), a masked-value detector, and a policy-driven Engine for record
// anonymization and free-text scrubbing.
//
// Masking functions are pure string transforms. They never log and never
// touch I/O; invalid input yields an explicit failure value that callers
// can tell apart from an empty result.
package masking

import (
	"fmt"
	"strings"

	"github.com/privacyops/maskd/pkg/config"
)

// Engine applies a masking policy: the resolved scrub-pattern set for
// free text plus the field-classification tables with policy overrides
// merged in. A zero policy yields an engine running on built-ins only.
//
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	scrubEnabled  bool
	scrubPatterns []*CompiledPattern

	personalFields     map[string]string
	financialOverrides map[string]FinancialType
	financialHints     []config.FinancialHint
	webFields          map[string]string
}

// NewEngine compiles a policy into an Engine. Policy errors (bad regex,
// dangling pattern references) are returned, not logged.
func NewEngine(policy *config.MaskingPolicy) (*Engine, error) {
	if policy == nil {
		policy = &config.MaskingPolicy{}
	}
	builtin := config.GetBuiltinConfig()

	builtinCompiled, err := compileBuiltinPatterns(builtin.ScrubPatterns)
	if err != nil {
		return nil, fmt.Errorf("compiling built-in scrub patterns: %w", err)
	}
	customCompiled, err := compileCustomPatterns(policy.CustomPatterns)
	if err != nil {
		return nil, fmt.Errorf("compiling custom scrub patterns: %w", err)
	}

	groups := policy.TextScrub.Groups
	if len(groups) == 0 {
		groups = builtin.DefaultScrubGroups
	}
	customOrder := make([]string, 0, len(policy.CustomPatterns))
	for _, cp := range policy.CustomPatterns {
		customOrder = append(customOrder, cp.Name)
	}

	scrubSet, err := resolveScrubSet(groups, policy.TextScrub.Patterns, customOrder,
		builtin.PatternGroups, builtinCompiled, customCompiled)
	if err != nil {
		return nil, fmt.Errorf("resolving scrub patterns: %w", err)
	}

	financialOverrides := make(map[string]FinancialType, len(policy.FieldOverrides.Financial))
	for name, t := range policy.FieldOverrides.Financial {
		financialOverrides[strings.ToLower(name)] = FinancialType(t)
	}

	return &Engine{
		scrubEnabled:       policy.TextScrub.IsEnabled(),
		scrubPatterns:      scrubSet,
		personalFields:     mergeFieldTable(builtin.PersonalFields, policy.FieldOverrides.Personal),
		financialOverrides: financialOverrides,
		financialHints:     builtin.FinancialHints,
		webFields:          mergeFieldTable(builtin.WebFields, policy.FieldOverrides.Web),
	}, nil
}

// mergeFieldTable layers override classifications over the built-in
// table. Override keys are lowercased to match dispatcher lookups.
func mergeFieldTable(builtin, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(builtin)+len(overrides))
	for name, kind := range builtin {
		merged[name] = kind
	}
	for name, kind := range overrides {
		merged[strings.ToLower(name)] = kind
	}
	return merged
}

// ScrubText runs every resolved scrub pattern over free text (comment
// bodies, bio fields). Returns the input unchanged when scrubbing is
// disabled or the text is empty.
func (e *Engine) ScrubText(text string) string {
	if text == "" || !e.scrubEnabled {
		return text
	}
	for _, cp := range e.scrubPatterns {
		text = cp.Regex.ReplaceAllString(text, cp.Replacement)
	}
	return text
}

// MaskPersonalFields masks profile fields with the policy's field
// overrides layered over the built-in classifications.
func (e *Engine) MaskPersonalFields(fields map[string]string) map[string]string {
	return maskPersonalFields(fields, e.personalFields)
}

// MaskFinancialFields masks financial fields with the policy's overrides
// applied. Call-site explicitTypes win over policy overrides.
func (e *Engine) MaskFinancialFields(fields map[string]string, explicitTypes map[string]FinancialType) map[string]string {
	explicit := e.financialOverrides
	if len(explicitTypes) > 0 {
		merged := make(map[string]FinancialType, len(explicit)+len(explicitTypes))
		for name, t := range explicit {
			merged[name] = t
		}
		for name, t := range explicitTypes {
			merged[strings.ToLower(name)] = t
		}
		explicit = merged
	}
	return maskFinancialFields(fields, explicit, e.financialHints)
}

// MaskWebFields masks request metadata fields with the policy's field
// overrides applied.
func (e *Engine) MaskWebFields(fields map[string]string) map[string]string {
	return maskWebFields(fields, e.webFields)
}

// ScrubPatternCount returns the number of active scrub patterns, for
// startup logging.
func (e *Engine) ScrubPatternCount() int {
	return len(e.scrubPatterns)
}

// ScrubPatternNames returns the active scrub pattern names in application
// order.
func (e *Engine) ScrubPatternNames() []string {
	names := make([]string, 0, len(e.scrubPatterns))
	for _, cp := range e.scrubPatterns {
		names = append(names, cp.Name)
	}
	return names
}
