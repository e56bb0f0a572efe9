// Package templatetext implements the Template Text Engine: applying a
// customization stack (insertions, replacements, smart variants) to a
// single template's text, with partial inlining, condition gating and
// fallback, and final variable expansion.
package templatetext

import (
	"regexp"
	"strings"

	"github.com/oasforge/templatecore/pkg/condition"
	coreerrors "github.com/oasforge/templatecore/pkg/errors"
	"github.com/oasforge/templatecore/pkg/descriptor"
)

const maxPartialDepth = 16

// StackEntry wraps one descriptor of a customization stack. Its bodies see
// only that descriptor's own Partials map.
type StackEntry struct {
	Descriptor *descriptor.Descriptor
}

// Report summarizes the engine's work on one template.
type Report struct {
	Attempted    int
	Applied      int
	Skipped      int
	SkipReasons  []string
	BytesAdded   int
	BytesRemoved int
}

var semanticAnchors = map[string][]string{
	"after imports block": {
		`(?m)^import [^\n]*;\n(?:\n*import [^\n]*;\n)*`,
		`(?m)^package [^\n]*;\n`,
	},
	"before class body": {
		`\{`,
	},
	"end of file": {
		`$`,
	},
}

// Apply runs the full pipeline for one template: partial inlining,
// structural edits in stack order, then variable expansion. stack is
// ordered least dominant first (index 0 applies first).
func Apply(baseText string, stack []StackEntry, ctx *condition.EvalCtx, variables map[string]string) (string, *Report, error) {
	text := baseText
	report := &Report{}

	for _, entry := range stack {
		d := entry.Descriptor
		evalCtx := *ctx
		evalCtx.TemplateText = text
		if d.Conditions != nil && !d.Conditions.Eval(&evalCtx) {
			continue
		}

		var err error
		text, err = applyInsertions(text, d, &evalCtx, report)
		if err != nil {
			return "", report, err
		}
		text, err = applyReplacements(text, d, &evalCtx, report)
		if err != nil {
			return "", report, err
		}
		text = applySmartReplacements(text, d, &evalCtx, report)
		text, err = applySmartInsertions(text, d, &evalCtx, report)
		if err != nil {
			return "", report, err
		}
	}

	final := expandVariables(text, variables)
	if len(final) > len(baseText) {
		report.BytesAdded = len(final) - len(baseText)
	} else {
		report.BytesRemoved = len(baseText) - len(final)
	}
	return final, report, nil
}

func resolvePartials(content string, partials map[string]string, depth int) string {
	if depth >= maxPartialDepth {
		return content
	}
	var b strings.Builder
	i := 0
	for i < len(content) {
		idx := strings.Index(content[i:], "{{>")
		if idx < 0 {
			b.WriteString(content[i:])
			break
		}
		b.WriteString(content[i : i+idx])
		rest := content[i+idx+3:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			b.WriteString(content[i+idx:])
			break
		}
		name := strings.TrimSpace(rest[:end])
		if frag, ok := partials[name]; ok {
			b.WriteString(resolvePartials(frag, partials, depth+1))
		} else {
			// Not a descriptor partial: keep the include for the generator.
			b.WriteString(content[i+idx : i+idx+3+end+2])
		}
		i = i + idx + 3 + end + 2
	}
	return b.String()
}

func evalLeaf(cond condition.Cond, ctx *condition.EvalCtx) bool {
	if cond == nil {
		return true
	}
	return cond.Eval(ctx)
}

func applyInsertions(text string, d *descriptor.Descriptor, ctx *condition.EvalCtx, report *Report) (string, error) {
	for _, ins := range d.Insertions {
		report.Attempted++
		ins := ins
		if !evalLeaf(ins.Conditions, ctx) {
			if ins.Fallback != nil {
				applied, newText, reason := tryInsertion(text, ins.Fallback, d.Partials, ctx)
				if applied {
					text = newText
					report.Applied++
					continue
				}
				report.Skipped++
				report.SkipReasons = append(report.SkipReasons, reason)
				continue
			}
			report.Skipped++
			report.SkipReasons = append(report.SkipReasons, "condition false")
			continue
		}
		applied, newText, reason := tryInsertion(text, &ins, d.Partials, ctx)
		if applied {
			text = newText
			report.Applied++
			continue
		}
		if ins.Fallback != nil {
			applied, newText, reason = tryInsertion(text, ins.Fallback, d.Partials, ctx)
			if applied {
				text = newText
				report.Applied++
				continue
			}
		}
		report.Skipped++
		report.SkipReasons = append(report.SkipReasons, reason)
	}
	return text, nil
}

func tryInsertion(text string, ins *descriptor.Insertion, partials map[string]string, ctx *condition.EvalCtx) (bool, string, string) {
	content := resolvePartials(ins.Content, partials, 0)
	switch ins.Anchor {
	case descriptor.AnchorStart:
		return true, content + text, ""
	case descriptor.AnchorEnd:
		return true, text + content, ""
	case descriptor.AnchorAfter:
		idx := strings.Index(text, ins.Pattern)
		if idx < 0 {
			return false, text, "PatternNotFound: after(" + ins.Pattern + ")"
		}
		pos := idx + len(ins.Pattern)
		return true, text[:pos] + content + text[pos:], ""
	case descriptor.AnchorBefore:
		idx := strings.Index(text, ins.Pattern)
		if idx < 0 {
			return false, text, "PatternNotFound: before(" + ins.Pattern + ")"
		}
		return true, text[:idx] + content + text[idx:], ""
	default:
		return false, text, "unknown anchor kind"
	}
}

func applyReplacements(text string, d *descriptor.Descriptor, ctx *condition.EvalCtx, report *Report) (string, error) {
	for _, rep := range d.Replacements {
		report.Attempted++
		rep := rep
		if !evalLeaf(rep.Conditions, ctx) {
			if rep.Fallback != nil {
				applied, newText, reason := tryReplacement(text, rep.Fallback, d.Partials)
				if applied {
					text = newText
					report.Applied++
					continue
				}
				report.Skipped++
				report.SkipReasons = append(report.SkipReasons, reason)
				continue
			}
			report.Skipped++
			report.SkipReasons = append(report.SkipReasons, "condition false")
			continue
		}
		applied, newText, reason := tryReplacement(text, &rep, d.Partials)
		if applied {
			text = newText
			report.Applied++
			continue
		}
		if rep.Fallback != nil {
			applied, newText, reason = tryReplacement(text, rep.Fallback, d.Partials)
			if applied {
				text = newText
				report.Applied++
				continue
			}
		}
		report.Skipped++
		report.SkipReasons = append(report.SkipReasons, reason)
	}
	return text, nil
}

func tryReplacement(text string, rep *descriptor.Replacement, partials map[string]string) (bool, string, string) {
	replace := resolvePartials(rep.Replace, partials, 0)
	if rep.Kind == descriptor.KindRegex {
		re, err := regexp.Compile(rep.Find)
		if err != nil {
			return false, text, "PatternNotFound: invalid regex " + rep.Find
		}
		loc := re.FindStringIndex(text)
		if loc == nil {
			return false, text, "PatternNotFound: regex " + rep.Find
		}
		expanded := re.ReplaceAllString(text[loc[0]:loc[1]], replace)
		return true, text[:loc[0]] + expanded + text[loc[1]:], ""
	}
	idx := strings.Index(text, rep.Find)
	if idx < 0 {
		return false, text, "PatternNotFound: literal " + rep.Find
	}
	return true, text[:idx] + replace + text[idx+len(rep.Find):], ""
}

func applySmartReplacements(text string, d *descriptor.Descriptor, ctx *condition.EvalCtx, report *Report) string {
	for _, sr := range d.SmartReplacements {
		report.Attempted++
		if !evalLeaf(sr.Conditions, ctx) {
			report.Skipped++
			report.SkipReasons = append(report.SkipReasons, "condition false")
			continue
		}
		replace := resolvePartials(sr.Replace, d.Partials, 0)
		matched := false
		for _, pattern := range sr.FindAny {
			if idx := strings.Index(text, pattern); idx >= 0 {
				text = text[:idx] + replace + text[idx+len(pattern):]
				matched = true
				break
			}
		}
		if matched {
			report.Applied++
		} else {
			report.Skipped++
			report.SkipReasons = append(report.SkipReasons, "PatternNotFound: smart_replacements find_any exhausted")
		}
	}
	return text
}

func applySmartInsertions(text string, d *descriptor.Descriptor, ctx *condition.EvalCtx, report *Report) (string, error) {
	for _, si := range d.SmartInsertions {
		report.Attempted++
		candidates, ok := semanticAnchors[si.SemanticAnchor]
		if !ok {
			return text, coreerrors.New(coreerrors.KindSchemaError, "unknown semantic anchor %q", si.SemanticAnchor)
		}
		if !evalLeaf(si.Conditions, ctx) {
			report.Skipped++
			report.SkipReasons = append(report.SkipReasons, "condition false")
			continue
		}
		content := resolvePartials(si.Content, d.Partials, 0)
		applied := false
		for _, pattern := range candidates {
			re, err := regexp.Compile(pattern)
			if err != nil {
				continue
			}
			loc := re.FindStringIndex(text)
			if loc == nil {
				continue
			}
			text = text[:loc[1]] + content + text[loc[1]:]
			applied = true
			break
		}
		if applied {
			report.Applied++
		} else {
			report.Skipped++
			report.SkipReasons = append(report.SkipReasons, "PatternNotFound: smart_insertions "+si.SemanticAnchor)
		}
	}
	return text, nil
}

// expandVariables substitutes {{name}} tokens using variables, leaving
// unresolved tokens verbatim.
func expandVariables(text string, variables map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(text) {
		idx := strings.Index(text[i:], "{{")
		if idx < 0 {
			b.WriteString(text[i:])
			break
		}
		if idx > 0 && text[i+idx-1] == '>' {
			// partial token that survived (unresolved partial); leave as-is.
		}
		b.WriteString(text[i : i+idx])
		rest := text[i+idx+2:]
		if strings.HasPrefix(rest, ">") {
			// partial marker left unresolved; copy verbatim.
			end := strings.Index(rest, "}}")
			if end < 0 {
				b.WriteString(text[i+idx:])
				break
			}
			b.WriteString("{{" + rest[:end+2])
			i = i + idx + 2 + end + 2
			continue
		}
		end := strings.Index(rest, "}}")
		if end < 0 {
			b.WriteString(text[i+idx:])
			break
		}
		name := strings.TrimSpace(rest[:end])
		if v, ok := variables[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString("{{" + name + "}}")
		}
		i = i + idx + 2 + end + 2
	}
	return b.String()
}

// ExpandVariablesFixedPoint expands variable references that may
// themselves contain other variable references, to a fixed point in at
// most 10 passes. If the 10th pass still changes a value, an 11th pass is
// run, and VariableCycle is returned if that pass changes a value too.
func ExpandVariablesFixedPoint(variables map[string]string) (map[string]string, error) {
	current := make(map[string]string, len(variables))
	for k, v := range variables {
		current[k] = v
	}
	for pass := 0; pass < 10; pass++ {
		next := make(map[string]string, len(current))
		changed := false
		for k, v := range current {
			expanded := expandVariables(v, current)
			if expanded != v {
				changed = true
			}
			next[k] = expanded
		}
		current = next
		if !changed {
			return current, nil
		}
	}
	// One more pass to detect whether convergence would have happened on
	// an 11th pass (i.e. the cycle is genuine, not merely slow).
	next := make(map[string]string, len(current))
	changed := false
	for k, v := range current {
		expanded := expandVariables(v, current)
		if expanded != v {
			changed = true
		}
		next[k] = expanded
	}
	if changed {
		return nil, coreerrors.New(coreerrors.KindVariableCycle, "template variable expansion did not converge in 10 passes")
	}
	return next, nil
}
