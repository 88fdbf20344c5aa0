package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacyops/maskd/pkg/config"
)

func TestCompileBuiltinPatterns(t *testing.T) {
	builtin := config.GetBuiltinConfig()

	compiled, err := compileBuiltinPatterns(builtin.ScrubPatterns)
	require.NoError(t, err, "the built-in table must always compile")
	assert.Len(t, compiled, len(builtin.ScrubPatterns))

	for name, cp := range compiled {
		assert.Equal(t, name, cp.Name)
		assert.NotNil(t, cp.Regex, "pattern %s should have a compiled regex", name)
		assert.Contains(t, cp.Replacement, "*",
			"pattern %s replacement should register as masked", name)
	}
}

func TestCompileBuiltinPatternsBadRegex(t *testing.T) {
	_, err := compileBuiltinPatterns(map[string]config.ScrubPattern{
		"broken": {Pattern: `[unclosed`, Replacement: "***"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `built-in pattern "broken"`)
}

func TestCompileCustomPatterns(t *testing.T) {
	compiled, err := compileCustomPatterns([]config.CustomPattern{
		{Name: "employee_id", Pattern: `EMP-[0-9]{6}`, Replacement: "EMP-******", Description: "Employee IDs"},
		{Name: "ticket", Pattern: `TKT-[0-9]+`, Replacement: "TKT-***"},
	})
	require.NoError(t, err)
	require.Len(t, compiled, 2)

	cp := compiled["employee_id"]
	require.NotNil(t, cp)
	assert.Equal(t, "EMP-******", cp.Replacement)
	assert.True(t, cp.Regex.MatchString("EMP-123456"))
	assert.False(t, cp.Regex.MatchString("EMP-12"))
}

func TestCompileCustomPatternsInvalidRegex(t *testing.T) {
	_, err := compileCustomPatterns([]config.CustomPattern{
		{Name: "broken", Pattern: `(`, Replacement: "***"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `custom pattern "broken"`)
}

func TestResolveScrubSet(t *testing.T) {
	builtinTable := config.GetBuiltinConfig()
	builtin, err := compileBuiltinPatterns(builtinTable.ScrubPatterns)
	require.NoError(t, err)
	custom, err := compileCustomPatterns([]config.CustomPattern{
		{Name: "employee_id", Pattern: `EMP-[0-9]{6}`, Replacement: "EMP-******"},
	})
	require.NoError(t, err)

	t.Run("groups expand in order and dedupe", func(t *testing.T) {
		resolved, err := resolveScrubSet(
			[]string{"contact", "default"}, nil, nil,
			builtinTable.PatternGroups, builtin, custom)
		require.NoError(t, err)

		// contact lists email and phone; default lists them again, so the
		// expansion must not repeat them.
		assert.Equal(t, []string{"email", "phone", "ssn", "credit_card"},
			resolvedNames(resolved))
	})

	t.Run("individual names resolve after groups", func(t *testing.T) {
		resolved, err := resolveScrubSet(
			[]string{"network"}, []string{"ssn"}, nil,
			builtinTable.PatternGroups, builtin, custom)
		require.NoError(t, err)
		assert.Equal(t, []string{"ip_address", "ssn"}, resolvedNames(resolved))
	})

	t.Run("custom patterns always participate", func(t *testing.T) {
		resolved, err := resolveScrubSet(
			[]string{"network"}, nil, []string{"employee_id"},
			builtinTable.PatternGroups, builtin, custom)
		require.NoError(t, err)
		assert.Equal(t, []string{"ip_address", "employee_id"}, resolvedNames(resolved))
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := resolveScrubSet([]string{"badgers"}, nil, nil,
			builtinTable.PatternGroups, builtin, custom)
		require.ErrorIs(t, err, config.ErrPatternGroupNotFound)
	})

	t.Run("unknown pattern name", func(t *testing.T) {
		_, err := resolveScrubSet(nil, []string{"retina_scan"}, nil,
			builtinTable.PatternGroups, builtin, custom)
		require.ErrorIs(t, err, config.ErrPatternNotFound)
	})
}

func resolvedNames(patterns []*CompiledPattern) []string {
	names := make([]string, 0, len(patterns))
	for _, cp := range patterns {
		names = append(names, cp.Name)
	}
	return names
}
