package condition

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseNode decodes a YAML mapping node using the on-disk camelCase
// condition schema (templateContains, hasFeature, generatorVersion,
// allOf, anyOf, not, ...) into a Cond tree. Errors it returns begin with
// the offending node's line ("line N: ...") for SchemaError context.
func ParseNode(node *yaml.Node) (Cond, error) {
	if node == nil {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: condition must be a mapping", node.Line)
	}
	if len(node.Content) != 2 {
		return nil, fmt.Errorf("line %d: condition mapping must have exactly one key", node.Line)
	}
	key := node.Content[0].Value
	val := node.Content[1]

	switch key {
	case "generatorVersion":
		return GeneratorVersion{Range: val.Value}, nil
	case "templateContains":
		return TemplateContains{Text: val.Value}, nil
	case "templateNotContains":
		return TemplateNotContains{Text: val.Value}, nil
	case "templateContainsAll":
		texts, err := decodeStrings(val)
		if err != nil {
			return nil, err
		}
		return TemplateContainsAll{Texts: texts}, nil
	case "templateContainsAny":
		texts, err := decodeStrings(val)
		if err != nil {
			return nil, err
		}
		return TemplateContainsAny{Texts: texts}, nil
	case "hasFeature":
		return HasFeature{Name: val.Value}, nil
	case "hasAllFeatures":
		names, err := decodeStrings(val)
		if err != nil {
			return nil, err
		}
		return HasAllFeatures{Names: names}, nil
	case "hasAnyFeatures":
		names, err := decodeStrings(val)
		if err != nil {
			return nil, err
		}
		return HasAnyFeatures{Names: names}, nil
	case "projectProperty":
		name, value, hasValue := splitNameValue(val.Value)
		return ProjectProperty{Name: name, Value: value, HasValue: hasValue}, nil
	case "envVar":
		name, value, hasValue := splitNameValue(val.Value)
		return EnvVar{Name: name, Value: value, HasValue: hasValue}, nil
	case "buildType":
		return BuildType{Type: val.Value}, nil
	case "allOf":
		children, err := decodeCondList(val)
		if err != nil {
			return nil, err
		}
		return AllOf{Children: children}, nil
	case "anyOf":
		children, err := decodeCondList(val)
		if err != nil {
			return nil, err
		}
		return AnyOf{Children: children}, nil
	case "not":
		child, err := ParseNode(val)
		if err != nil {
			return nil, err
		}
		return Not{Child: child}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown condition key %q", node.Line, key)
	}
}

func decodeStrings(node *yaml.Node) ([]string, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a sequence of strings", node.Line)
	}
	out := make([]string, len(node.Content))
	for i, c := range node.Content {
		out[i] = c.Value
	}
	return out, nil
}

func decodeCondList(node *yaml.Node) ([]Cond, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a sequence of conditions", node.Line)
	}
	out := make([]Cond, len(node.Content))
	for i, c := range node.Content {
		cond, err := ParseNode(c)
		if err != nil {
			return nil, err
		}
		out[i] = cond
	}
	return out, nil
}

// splitNameValue parses "name=value" or bare "name" forms used by
// projectProperty/envVar leaves.
func splitNameValue(raw string) (name, value string, hasValue bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '=' {
			return raw[:i], raw[i+1:], true
		}
	}
	return raw, "", false
}
