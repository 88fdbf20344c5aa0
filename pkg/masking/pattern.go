package masking

import (
	"fmt"
	"regexp"

	"github.com/privacyops/maskd/pkg/config"
)

// CompiledPattern holds a pre-compiled scrub regex with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// compileBuiltinPatterns compiles the built-in scrub patterns. A compile
// failure here means the built-in table itself is broken, so it is an
// error, not a skip.
func compileBuiltinPatterns(patterns map[string]config.ScrubPattern) (map[string]*CompiledPattern, error) {
	compiled := make(map[string]*CompiledPattern, len(patterns))
	for name, pattern := range patterns {
		re, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			return nil, fmt.Errorf("built-in pattern %q: %w", name, err)
		}
		compiled[name] = &CompiledPattern{
			Name:        name,
			Regex:       re,
			Replacement: pattern.Replacement,
			Description: pattern.Description,
		}
	}
	return compiled, nil
}

// compileCustomPatterns compiles policy-supplied patterns, keyed by name.
func compileCustomPatterns(patterns []config.CustomPattern) (map[string]*CompiledPattern, error) {
	compiled := make(map[string]*CompiledPattern, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			return nil, fmt.Errorf("custom pattern %q: %w", pattern.Name, err)
		}
		compiled[pattern.Name] = &CompiledPattern{
			Name:        pattern.Name,
			Regex:       re,
			Replacement: pattern.Replacement,
			Description: pattern.Description,
		}
	}
	return compiled, nil
}

// resolveScrubSet expands group references and pattern names into an
// ordered, deduplicated pattern list: groups first, then the individually
// named patterns, then every custom pattern (custom patterns always
// participate). Names resolve against built-ins before customs.
func resolveScrubSet(groups, names, customOrder []string, groupTable map[string][]string,
	builtin, custom map[string]*CompiledPattern) ([]*CompiledPattern, error) {

	seen := make(map[string]bool)
	var resolved []*CompiledPattern

	add := func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		if cp, ok := builtin[name]; ok {
			resolved = append(resolved, cp)
			return nil
		}
		if cp, ok := custom[name]; ok {
			resolved = append(resolved, cp)
			return nil
		}
		return fmt.Errorf("%w: %s", config.ErrPatternNotFound, name)
	}

	for _, groupName := range groups {
		members, ok := groupTable[groupName]
		if !ok {
			return nil, fmt.Errorf("%w: %s", config.ErrPatternGroupNotFound, groupName)
		}
		for _, name := range members {
			if err := add(name); err != nil {
				return nil, err
			}
		}
	}

	for _, name := range names {
		if err := add(name); err != nil {
			return nil, err
		}
	}

	for _, name := range customOrder {
		if err := add(name); err != nil {
			return nil, err
		}
	}

	return resolved, nil
}
