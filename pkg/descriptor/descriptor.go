// Package descriptor defines the Customization Descriptor data model and
// the YAML loader that parses one on-disk descriptor file into it. The
// loader enforces descriptor-level structural rules (exactly one anchor
// kind per insertion, required fields per operation kind) at load time so
// later components can assume a well-formed descriptor.
package descriptor

import (
	"fmt"

	"github.com/oasforge/templatecore/pkg/condition"
	coreerrors "github.com/oasforge/templatecore/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ReplacementKind distinguishes literal byte-exact matching from regex
// matching in replacement operations.
type ReplacementKind string

const (
	KindLiteral ReplacementKind = "literal"
	KindRegex   ReplacementKind = "regex"
)

// AnchorKind identifies where an insertion is positioned relative to the
// template text.
type AnchorKind string

const (
	AnchorAfter  AnchorKind = "after"
	AnchorBefore AnchorKind = "before"
	AnchorStart  AnchorKind = "start"
	AnchorEnd    AnchorKind = "end"
)

// Metadata is the optional descriptor-level identification block.
type Metadata struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Version     string `yaml:"version,omitempty"`
	Author      string `yaml:"author,omitempty"`
}

// Insertion adds content relative to an anchor point in the template.
type Insertion struct {
	Anchor     AnchorKind
	Pattern    string // set when Anchor is After or Before
	Content    string
	Conditions condition.Cond
	Fallback   *Insertion
	Line       int
}

// Replacement substitutes the first occurrence of Find with Replace.
type Replacement struct {
	Find       string
	Replace    string
	Kind       ReplacementKind
	Conditions condition.Cond
	Fallback   *Replacement
	Line       int
}

// SmartReplacement tries each pattern in FindAny in order and applies the
// first one that matches.
type SmartReplacement struct {
	FindAny    []string
	Replace    string
	Conditions condition.Cond
	Line       int
}

// SmartInsertion inserts Content at a named semantic anchor, whose
// concrete candidate patterns are resolved by the Template Text Engine.
type SmartInsertion struct {
	SemanticAnchor string
	Content        string
	Conditions     condition.Cond
	Line           int
}

// Descriptor is one parsed customization YAML file.
type Descriptor struct {
	Metadata   Metadata
	Conditions condition.Cond

	Insertions        []Insertion
	Replacements      []Replacement
	SmartReplacements []SmartReplacement
	SmartInsertions   []SmartInsertion
	Partials          map[string]string

	SourceFile string

	// Raw is the exact bytes the descriptor was parsed from, retained so
	// callers can fingerprint a customization stack by content rather than
	// by source path alone.
	Raw []byte
}

// Load parses raw YAML bytes from sourceFile into a Descriptor, enforcing
// the structural rules from the customization descriptor schema.
func Load(raw []byte, sourceFile string) (*Descriptor, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindSchemaError, err, "invalid YAML").WithSource(sourceFile, 0)
	}
	if len(root.Content) == 0 {
		return &Descriptor{SourceFile: sourceFile, Raw: raw}, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, coreerrors.New(coreerrors.KindSchemaError, "document root must be a mapping").WithSource(sourceFile, doc.Line)
	}

	d := &Descriptor{SourceFile: sourceFile, Raw: raw, Partials: map[string]string{}}

	for i := 0; i < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		val := doc.Content[i+1]
		var err error
		switch key {
		case "metadata":
			err = val.Decode(&d.Metadata)
		case "conditions":
			d.Conditions, err = condition.ParseNode(val)
		case "insertions":
			err = d.loadInsertions(val, sourceFile)
		case "replacements":
			err = d.loadReplacements(val, sourceFile)
		case "smart_replacements":
			err = d.loadSmartReplacements(val, sourceFile)
		case "smart_insertions":
			err = d.loadSmartInsertions(val, sourceFile)
		case "partials":
			err = val.Decode(&d.Partials)
		default:
			err = fmt.Errorf("unknown top-level key %q", key)
		}
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindSchemaError, err, "%s", err.Error()).WithSource(sourceFile, val.Line)
		}
	}
	return d, nil
}

func (d *Descriptor) loadInsertions(seq *yaml.Node, sourceFile string) error {
	if seq.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: insertions must be a sequence", seq.Line)
	}
	for _, node := range seq.Content {
		ins, err := parseInsertion(node)
		if err != nil {
			return err
		}
		d.Insertions = append(d.Insertions, *ins)
	}
	return nil
}

func parseInsertion(node *yaml.Node) (*Insertion, error) {
	var raw struct {
		After      string    `yaml:"after"`
		Before     string    `yaml:"before"`
		At         string    `yaml:"at"`
		Content    string    `yaml:"content"`
		Conditions yaml.Node `yaml:"conditions"`
		Fallback   *yaml.Node `yaml:"fallback"`
	}
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("line %d: %w", node.Line, err)
	}

	anchorCount := 0
	ins := &Insertion{Content: raw.Content, Line: node.Line}
	if raw.After != "" {
		anchorCount++
		ins.Anchor = AnchorAfter
		ins.Pattern = raw.After
	}
	if raw.Before != "" {
		anchorCount++
		ins.Anchor = AnchorBefore
		ins.Pattern = raw.Before
	}
	if raw.At != "" {
		anchorCount++
		switch raw.At {
		case "start":
			ins.Anchor = AnchorStart
		case "end":
			ins.Anchor = AnchorEnd
		default:
			return nil, fmt.Errorf("line %d: \"at\" must be \"start\" or \"end\", got %q", node.Line, raw.At)
		}
	}
	if anchorCount != 1 {
		return nil, fmt.Errorf("line %d: insertion must have exactly one of after/before/at, found %d", node.Line, anchorCount)
	}
	if raw.Content == "" {
		return nil, fmt.Errorf("line %d: insertion requires non-empty content", node.Line)
	}
	if raw.Conditions.Kind != 0 {
		cond, err := condition.ParseNode(&raw.Conditions)
		if err != nil {
			return nil, err
		}
		ins.Conditions = cond
	}
	if raw.Fallback != nil {
		fb, err := parseInsertion(raw.Fallback)
		if err != nil {
			return nil, err
		}
		ins.Fallback = fb
	}
	return ins, nil
}

func (d *Descriptor) loadReplacements(seq *yaml.Node, sourceFile string) error {
	if seq.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: replacements must be a sequence", seq.Line)
	}
	for _, node := range seq.Content {
		rep, err := parseReplacement(node)
		if err != nil {
			return err
		}
		d.Replacements = append(d.Replacements, *rep)
	}
	return nil
}

func parseReplacement(node *yaml.Node) (*Replacement, error) {
	var raw struct {
		Find       string     `yaml:"find"`
		Replace    string     `yaml:"replace"`
		Kind       string     `yaml:"kind"`
		Conditions yaml.Node  `yaml:"conditions"`
		Fallback   *yaml.Node `yaml:"fallback"`
	}
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("line %d: %w", node.Line, err)
	}
	if raw.Find == "" {
		return nil, fmt.Errorf("line %d: replacement requires non-empty find", node.Line)
	}
	kind := ReplacementKind(raw.Kind)
	if kind == "" {
		kind = KindLiteral
	}
	if kind != KindLiteral && kind != KindRegex {
		return nil, fmt.Errorf("line %d: unknown replacement kind %q", node.Line, raw.Kind)
	}
	rep := &Replacement{Find: raw.Find, Replace: raw.Replace, Kind: kind, Line: node.Line}
	if raw.Conditions.Kind != 0 {
		cond, err := condition.ParseNode(&raw.Conditions)
		if err != nil {
			return nil, err
		}
		rep.Conditions = cond
	}
	if raw.Fallback != nil {
		fb, err := parseReplacement(raw.Fallback)
		if err != nil {
			return nil, err
		}
		rep.Fallback = fb
	}
	return rep, nil
}

func (d *Descriptor) loadSmartReplacements(seq *yaml.Node, sourceFile string) error {
	if seq.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: smart_replacements must be a sequence", seq.Line)
	}
	for _, node := range seq.Content {
		var raw struct {
			FindAny    []string  `yaml:"find_any"`
			Replace    string    `yaml:"replace"`
			Conditions yaml.Node `yaml:"conditions"`
		}
		if err := node.Decode(&raw); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		if len(raw.FindAny) == 0 {
			return fmt.Errorf("line %d: smart_replacements entry requires a non-empty find_any", node.Line)
		}
		sr := SmartReplacement{FindAny: raw.FindAny, Replace: raw.Replace, Line: node.Line}
		if raw.Conditions.Kind != 0 {
			cond, err := condition.ParseNode(&raw.Conditions)
			if err != nil {
				return err
			}
			sr.Conditions = cond
		}
		d.SmartReplacements = append(d.SmartReplacements, sr)
	}
	return nil
}

func (d *Descriptor) loadSmartInsertions(seq *yaml.Node, sourceFile string) error {
	if seq.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: smart_insertions must be a sequence", seq.Line)
	}
	for _, node := range seq.Content {
		var raw struct {
			SemanticAnchor string    `yaml:"semantic_anchor"`
			Content        string    `yaml:"content"`
			Conditions     yaml.Node `yaml:"conditions"`
		}
		if err := node.Decode(&raw); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		if raw.SemanticAnchor == "" {
			return fmt.Errorf("line %d: smart_insertions entry requires semantic_anchor", node.Line)
		}
		si := SmartInsertion{SemanticAnchor: raw.SemanticAnchor, Content: raw.Content, Line: node.Line}
		if raw.Conditions.Kind != 0 {
			cond, err := condition.ParseNode(&raw.Conditions)
			if err != nil {
				return err
			}
			si.Conditions = cond
		}
		d.SmartInsertions = append(d.SmartInsertions, si)
	}
	return nil
}
