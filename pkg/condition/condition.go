// Package condition implements the algebraic condition tree used to gate
// customization descriptors, insertions, and replacements: version range
// checks, template content predicates, feature flags, and environment or
// project property checks, combined with AllOf/AnyOf/Not.
//
// Evaluation is total: it never panics or returns an error. A malformed
// leaf (an unparsable version or constraint) degrades to false and is
// reported through the Diagnostics channel on the EvalCtx rather than
// aborting the surrounding build.
package condition

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Cond is the algebraic condition tree grammar from the customization
// descriptor schema.
type Cond interface {
	Eval(ctx *EvalCtx) bool
}

// EvalCtx carries everything a condition might need to evaluate against.
type EvalCtx struct {
	GeneratorVersion string
	TemplateText     string
	Features         map[string]bool
	ProjectProps     map[string]string
	Env              map[string]string
	BuildType        string

	// Diagnostics accumulates warnings for malformed leaves (e.g. an
	// unparsable version constraint) without aborting evaluation.
	Diagnostics []string
}

func (c *EvalCtx) warn(msg string) {
	c.Diagnostics = append(c.Diagnostics, msg)
}

// AllOf is true iff every child is true; AllOf([]) is true.
type AllOf struct{ Children []Cond }

func (a AllOf) Eval(ctx *EvalCtx) bool {
	for _, c := range a.Children {
		if !c.Eval(ctx) {
			return false
		}
	}
	return true
}

// AnyOf is true iff at least one child is true; AnyOf([]) is false.
type AnyOf struct{ Children []Cond }

func (a AnyOf) Eval(ctx *EvalCtx) bool {
	for _, c := range a.Children {
		if c.Eval(ctx) {
			return true
		}
	}
	return false
}

// Not inverts its child's total result.
type Not struct{ Child Cond }

func (n Not) Eval(ctx *EvalCtx) bool {
	return !n.Child.Eval(ctx)
}

// GeneratorVersion admits when ctx.GeneratorVersion satisfies the given
// range expression (e.g. ">=4.3.0", "~1.2.3", "^1.2.3"). A malformed
// version on either side degrades the leaf to false.
type GeneratorVersion struct{ Range string }

func (g GeneratorVersion) Eval(ctx *EvalCtx) bool {
	ok, err := versionSatisfies(ctx.GeneratorVersion, g.Range)
	if err != nil {
		ctx.warn("GeneratorVersion: " + err.Error())
		return false
	}
	return ok
}

// versionSatisfies parses version and constraint using Masterminds/semver.
// The range string is passed unchanged to semver.NewConstraint, which
// handles the "~"/"^" shorthand and the comparison operators itself.
func versionSatisfies(version, rng string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, err
	}
	c, err := semver.NewConstraint(rng)
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}

// TemplateContains is true iff ctx.TemplateText contains the substring.
type TemplateContains struct{ Text string }

func (t TemplateContains) Eval(ctx *EvalCtx) bool {
	return strings.Contains(ctx.TemplateText, t.Text)
}

// TemplateNotContains is true iff ctx.TemplateText does not contain the
// substring.
type TemplateNotContains struct{ Text string }

func (t TemplateNotContains) Eval(ctx *EvalCtx) bool {
	return !strings.Contains(ctx.TemplateText, t.Text)
}

// TemplateContainsAll is true iff ctx.TemplateText contains every
// substring.
type TemplateContainsAll struct{ Texts []string }

func (t TemplateContainsAll) Eval(ctx *EvalCtx) bool {
	for _, s := range t.Texts {
		if !strings.Contains(ctx.TemplateText, s) {
			return false
		}
	}
	return true
}

// TemplateContainsAny is true iff ctx.TemplateText contains at least one
// substring.
type TemplateContainsAny struct{ Texts []string }

func (t TemplateContainsAny) Eval(ctx *EvalCtx) bool {
	for _, s := range t.Texts {
		if strings.Contains(ctx.TemplateText, s) {
			return true
		}
	}
	return false
}

// HasFeature is true iff ctx.Features[name] is true. An unknown feature
// evaluates to false, never an error.
type HasFeature struct{ Name string }

func (h HasFeature) Eval(ctx *EvalCtx) bool {
	return ctx.Features[h.Name]
}

// HasAllFeatures is true iff every named feature is enabled.
type HasAllFeatures struct{ Names []string }

func (h HasAllFeatures) Eval(ctx *EvalCtx) bool {
	for _, n := range h.Names {
		if !ctx.Features[n] {
			return false
		}
	}
	return true
}

// HasAnyFeatures is true iff at least one named feature is enabled.
type HasAnyFeatures struct{ Names []string }

func (h HasAnyFeatures) Eval(ctx *EvalCtx) bool {
	for _, n := range h.Names {
		if ctx.Features[n] {
			return true
		}
	}
	return false
}

// ProjectProperty is true iff the named property exists, or (when
// HasValue is set) equals Value exactly.
type ProjectProperty struct {
	Name  string
	Value string
	HasValue bool
}

func (p ProjectProperty) Eval(ctx *EvalCtx) bool {
	v, ok := ctx.ProjectProps[p.Name]
	if !ok {
		return false
	}
	if p.HasValue {
		return v == p.Value
	}
	return true
}

// EnvVar is true iff the named environment variable exists, or (when
// HasValue is set) equals Value exactly.
type EnvVar struct {
	Name     string
	Value    string
	HasValue bool
}

func (e EnvVar) Eval(ctx *EvalCtx) bool {
	v, ok := ctx.Env[e.Name]
	if !ok {
		return false
	}
	if e.HasValue {
		return v == e.Value
	}
	return true
}

// BuildType is true iff ctx.BuildType equals Type exactly.
type BuildType struct{ Type string }

func (b BuildType) Eval(ctx *EvalCtx) bool {
	return ctx.BuildType == b.Type
}
