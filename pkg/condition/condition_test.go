package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func ctx() *EvalCtx {
	return &EvalCtx{
		GeneratorVersion: "4.3.1",
		TemplateText:     "import java.util.List;\nclass Foo {}",
		Features:         map[string]bool{"lombok": true},
		ProjectProps:     map[string]string{"group": "com.example"},
		Env:              map[string]string{"ENABLE_CUSTOM_TEMPLATES": "true"},
		BuildType:        "release",
	}
}

func TestAllOfEmptyIsTrue(t *testing.T) {
	assert.True(t, AllOf{}.Eval(ctx()))
}

func TestAnyOfEmptyIsFalse(t *testing.T) {
	assert.False(t, AnyOf{}.Eval(ctx()))
}

func TestNotInverts(t *testing.T) {
	assert.False(t, Not{Child: AllOf{}}.Eval(ctx()))
}

func TestGeneratorVersionTilde(t *testing.T) {
	assert.True(t, GeneratorVersion{Range: "~4.3.0"}.Eval(ctx()))
	assert.False(t, GeneratorVersion{Range: "~4.4.0"}.Eval(ctx()))
}

func TestGeneratorVersionCaret(t *testing.T) {
	assert.True(t, GeneratorVersion{Range: "^4.0.0"}.Eval(ctx()))
	assert.False(t, GeneratorVersion{Range: "^5.0.0"}.Eval(ctx()))
}

func TestGeneratorVersionMalformedDegradesToFalse(t *testing.T) {
	c := ctx()
	result := GeneratorVersion{Range: "not-a-range!!"}.Eval(c)
	assert.False(t, result)
	assert.NotEmpty(t, c.Diagnostics)
}

func TestTemplateContains(t *testing.T) {
	assert.True(t, TemplateContains{Text: "class Foo"}.Eval(ctx()))
	assert.True(t, TemplateNotContains{Text: "missing"}.Eval(ctx()))
}

func TestHasFeatureUnknownIsFalse(t *testing.T) {
	assert.False(t, HasFeature{Name: "unknown"}.Eval(ctx()))
	assert.True(t, HasFeature{Name: "lombok"}.Eval(ctx()))
}

func TestProjectPropertyWithValue(t *testing.T) {
	assert.True(t, ProjectProperty{Name: "group", Value: "com.example", HasValue: true}.Eval(ctx()))
	assert.False(t, ProjectProperty{Name: "group", Value: "other", HasValue: true}.Eval(ctx()))
	assert.False(t, ProjectProperty{Name: "missing"}.Eval(ctx()))
}

func TestEnvVarExistence(t *testing.T) {
	assert.True(t, EnvVar{Name: "ENABLE_CUSTOM_TEMPLATES"}.Eval(ctx()))
}

func TestBuildType(t *testing.T) {
	assert.True(t, BuildType{Type: "release"}.Eval(ctx()))
	assert.False(t, BuildType{Type: "debug"}.Eval(ctx()))
}

func TestParseNodeAllOf(t *testing.T) {
	var node yaml.Node
	src := `
allOf:
  - hasFeature: lombok
  - templateContains: "class Foo"
`
	assert.NoError(t, yaml.Unmarshal([]byte(src), &node))
	cond, err := ParseNode(node.Content[0])
	assert.NoError(t, err)
	assert.True(t, cond.Eval(ctx()))
}

func TestParseNodeUnknownKey(t *testing.T) {
	var node yaml.Node
	assert.NoError(t, yaml.Unmarshal([]byte("bogusKey: x\n"), &node))
	_, err := ParseNode(node.Content[0])
	assert.Error(t, err)
}

func TestParseNodeNot(t *testing.T) {
	var node yaml.Node
	assert.NoError(t, yaml.Unmarshal([]byte("not:\n  hasFeature: missing\n"), &node))
	cond, err := ParseNode(node.Content[0])
	assert.NoError(t, err)
	assert.True(t, cond.Eval(ctx()))
}
