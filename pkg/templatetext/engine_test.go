package templatetext

import (
	"testing"

	"github.com/oasforge/templatecore/pkg/condition"
	"github.com/oasforge/templatecore/pkg/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseCtx() *condition.EvalCtx {
	return &condition.EvalCtx{GeneratorVersion: "4.3.0", Features: map[string]bool{}}
}

func TestApplyEmptyStackIsByteForByteCopy(t *testing.T) {
	out, report, err := Apply("HELLO", nil, baseCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
	assert.Equal(t, 0, report.Attempted)
}

func TestApplySingleInsertionAtStart(t *testing.T) {
	d, err := descriptor.Load([]byte(`
insertions:
  - at: start
    content: "A"
`), "d.yaml")
	require.NoError(t, err)

	out, report, err := Apply("B", []StackEntry{{Descriptor: d}}, baseCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, "AB", out)
	assert.Equal(t, 1, report.Applied)
}

func TestApplyTwoSourceStackOrderDeterminesDominance(t *testing.T) {
	plugin, err := descriptor.Load([]byte("insertions:\n  - at: start\n    content: \"P\"\n"), "plugin.yaml")
	require.NoError(t, err)
	user, err := descriptor.Load([]byte("insertions:\n  - at: start\n    content: \"U\"\n"), "user.yaml")
	require.NoError(t, err)

	out, _, err := Apply("B", []StackEntry{{Descriptor: plugin}, {Descriptor: user}}, baseCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, "UPB", out)
}

func TestApplyLiteralReplacementWithVariableExpansion(t *testing.T) {
	out, _, err := Apply("{{copyright}} class X", nil, baseCtx(), map[string]string{
		"copyright": "(c) 2025",
	})
	require.NoError(t, err)
	assert.Equal(t, "(c) 2025 class X", out)
}

func TestApplyAfterPatternAffectsOnlyFirstOccurrence(t *testing.T) {
	d, err := descriptor.Load([]byte(`
insertions:
  - after: "X"
    content: "!"
`), "d.yaml")
	require.NoError(t, err)
	out, _, err := Apply("XaXb", []StackEntry{{Descriptor: d}}, baseCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, "X!aXb", out)
}

func TestApplyRegexReplacementNoMatchIsNonFatal(t *testing.T) {
	d, err := descriptor.Load([]byte(`
replacements:
  - find: "nomatch[0-9]+"
    replace: "x"
    kind: regex
`), "d.yaml")
	require.NoError(t, err)
	out, report, err := Apply("unchanged text", []StackEntry{{Descriptor: d}}, baseCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, "unchanged text", out)
	assert.Equal(t, 1, report.Skipped)
	assert.Contains(t, report.SkipReasons[0], "PatternNotFound")
}

func TestApplyDescriptorWithFalseTopLevelConditionContributesNothing(t *testing.T) {
	d, err := descriptor.Load([]byte(`
conditions:
  hasFeature: missing_feature
insertions:
  - at: start
    content: "SHOULD_NOT_APPEAR"
`), "d.yaml")
	require.NoError(t, err)
	out, _, err := Apply("BASE", []StackEntry{{Descriptor: d}}, baseCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, "BASE", out)
}

func TestApplyRegexBackreference(t *testing.T) {
	d, err := descriptor.Load([]byte(`
replacements:
  - find: "class (\\w+)"
    replace: "@Data\nclass $1"
    kind: regex
`), "d.yaml")
	require.NoError(t, err)
	out, _, err := Apply("class Foo {}", []StackEntry{{Descriptor: d}}, baseCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, "@Data\nclass Foo {}", out)
}

func TestApplyLiteralReplacementIsIdempotent(t *testing.T) {
	d, err := descriptor.Load([]byte(`
replacements:
  - find: "A"
    replace: "B"
`), "d.yaml")
	require.NoError(t, err)
	stack := []StackEntry{{Descriptor: d}}

	once, _, err := Apply("A", stack, baseCtx(), nil)
	require.NoError(t, err)
	twice, _, err := Apply(once, stack, baseCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestExpandVariablesFixedPointResolvesChain(t *testing.T) {
	out, err := ExpandVariablesFixedPoint(map[string]string{
		"copyright": "(c) {{year}}",
		"year":      "2025",
	})
	require.NoError(t, err)
	assert.Equal(t, "(c) 2025", out["copyright"])
}

func TestExpandVariablesFixedPointDetectsCycle(t *testing.T) {
	_, err := ExpandVariablesFixedPoint(map[string]string{
		"a": "{{b}}",
		"b": "{{a}}",
	})
	assert.Error(t, err)
}

func TestApplyUnresolvedVariableLeftVerbatim(t *testing.T) {
	out, _, err := Apply("{{unknown}}", nil, baseCtx(), map[string]string{"other": "x"})
	require.NoError(t, err)
	assert.Equal(t, "{{unknown}}", out)
}

func TestApplySmartReplacementsFirstMatchWins(t *testing.T) {
	d, err := descriptor.Load([]byte(`
smart_replacements:
  - find_any: ["notfound", "class Foo"]
    replace: "class Bar"
`), "d.yaml")
	require.NoError(t, err)
	out, report, err := Apply("class Foo {}", []StackEntry{{Descriptor: d}}, baseCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, "class Bar {}", out)
	assert.Equal(t, 1, report.Applied)
}

func TestApplySmartInsertionUnknownAnchorIsFatal(t *testing.T) {
	d, err := descriptor.Load([]byte(`
smart_insertions:
  - semantic_anchor: "nonexistent anchor"
    content: "x"
`), "d.yaml")
	require.NoError(t, err)
	_, _, err = Apply("BASE", []StackEntry{{Descriptor: d}}, baseCtx(), nil)
	assert.Error(t, err)
}

func TestApplySmartInsertionAfterImportsBlock(t *testing.T) {
	d, err := descriptor.Load([]byte(`
smart_insertions:
  - semantic_anchor: "after imports block"
    content: "import lombok.Data;\n"
`), "d.yaml")
	require.NoError(t, err)
	out, report, err := Apply("package com.example;\n\nclass Foo {}", []StackEntry{{Descriptor: d}}, baseCtx(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "import lombok.Data;")
	assert.Equal(t, 1, report.Applied)
}
