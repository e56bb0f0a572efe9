// Package resolver implements the Template Resolver: given a resolved
// spec configuration and the set of available sources, it produces the
// template plan — for every required logical name, the base text and the
// ordered customization stack to apply atop it, plus the provenance trail
// documenting which source tags contributed.
package resolver

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oasforge/templatecore/pkg/descriptor"
	coreerrors "github.com/oasforge/templatecore/pkg/errors"
	"github.com/oasforge/templatecore/pkg/generatordefault"
	"github.com/oasforge/templatecore/pkg/models"
	"github.com/oasforge/templatecore/pkg/utils"
)

// StackedDescriptor pairs a customization descriptor with the source tag
// it was resolved from.
type StackedDescriptor struct {
	SourceTag  models.SourceTag
	Descriptor *descriptor.Descriptor
}

// TemplateEntry is one template required for a spec.
type TemplateEntry struct {
	LogicalName        string
	BaseSourceTag      models.SourceTag
	BaseText           string
	CustomizationStack []StackedDescriptor
	ProvenanceTrail    []models.SourceTag
}

// PlanResult is the pure, serializable output of planning.
type PlanResult struct {
	SpecName    string
	Generator   string
	Entries     map[string]*TemplateEntry
	Diagnostics []string
}

// Sources names every concrete place templates and customizations for one
// spec can come from. Library directories are given in resolved-classpath
// order: within library-templates the last directory in the slice that
// provides a template wins; within library-customizations every
// directory's descriptor is stacked, in slice order.
type Sources struct {
	UserTemplatesDir          string
	UserCustomizationsDir     string
	LibraryTemplatesDirs      []string
	LibraryCustomizationsDirs []string
	PluginCustomizationsDir   string
}

// Resolver implements the 6-source precedence model described in §4.8.
type Resolver struct {
	Extractor *generatordefault.Extractor
}

// New builds a Resolver backed by extractor for openapi-generator
// fallback lookups.
func New(extractor *generatordefault.Extractor) *Resolver {
	return &Resolver{Extractor: extractor}
}

// Plan produces the template plan for spec.
func (r *Resolver) Plan(spec *models.ResolvedSpecConfig, sources Sources) (*PlanResult, error) {
	plan := &PlanResult{SpecName: spec.SpecName, Generator: spec.GeneratorName, Entries: map[string]*TemplateEntry{}}

	names, err := r.customizedLogicalNames(spec, sources)
	if err != nil {
		return nil, err
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		entry, diag, err := r.resolveOne(spec, sources, name)
		if err != nil {
			return nil, err.WithSpec(spec.SpecName).WithTemplate(name)
		}
		plan.Entries[name] = entry
		plan.Diagnostics = append(plan.Diagnostics, diag...)
	}
	return plan, nil
}

// ResolveAdditional resolves a single logical name outside the initial
// customized set — used by the Orchestrator for transitively discovered
// dependency includes, which carry no customizations of their own unless
// one happens to exist for them too.
func (r *Resolver) ResolveAdditional(spec *models.ResolvedSpecConfig, sources Sources, name string) (*TemplateEntry, []string, *coreerrors.CoreError) {
	return r.resolveOne(spec, sources, name)
}

func (r *Resolver) customizedLogicalNames(spec *models.ResolvedSpecConfig, sources Sources) (map[string]bool, error) {
	names := map[string]bool{}
	if spec.HasSourceTag(models.SourceUserCustomizations) && sources.UserCustomizationsDir != "" {
		if err := collectCustomizationNames(sources.UserCustomizationsDir, names); err != nil {
			return nil, err
		}
	}
	if spec.UseLibraryCustomizations && spec.HasSourceTag(models.SourceLibraryCustomizations) {
		for _, dir := range sources.LibraryCustomizationsDirs {
			if err := collectCustomizationNames(dir, names); err != nil {
				return nil, err
			}
		}
	}
	if spec.ApplyPluginCustomizations && spec.HasSourceTag(models.SourcePluginCustomizations) && sources.PluginCustomizationsDir != "" {
		if err := collectCustomizationNames(sources.PluginCustomizationsDir, names); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func collectCustomizationNames(dir string, into map[string]bool) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return coreerrors.Wrap(coreerrors.KindIoError, err, "listing customizations directory %s", dir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		into[strings.TrimSuffix(e.Name(), ".yaml")] = true
	}
	return nil
}

func (r *Resolver) resolveOne(spec *models.ResolvedSpecConfig, sources Sources, name string) (*TemplateEntry, []string, *coreerrors.CoreError) {
	entry := &TemplateEntry{LogicalName: name}
	var diagnostics []string

	// Walk from lowest to highest precedence (§4.8) so that a higher-
	// priority source's contribution is applied last and dominates,
	// regardless of the order the caller happened to list tags in.
	order := append([]models.SourceTag(nil), spec.TemplateSourceOrder...)
	sort.Slice(order, func(i, j int) bool { return order[i].Precedence() > order[j].Precedence() })
	for _, tag := range order {
		if tag.IsFullTemplateSource() {
			text, found, d, err := r.lookupFullTemplate(spec, sources, tag, name)
			if err != nil {
				return nil, nil, coreerrors.Wrap(coreerrors.KindIoError, err, "reading base template %s from %s", name, tag)
			}
			diagnostics = append(diagnostics, d...)
			if found {
				entry.BaseText = text
				entry.BaseSourceTag = tag
				entry.CustomizationStack = nil
				entry.ProvenanceTrail = []models.SourceTag{tag}
			}
			continue
		}
		descs, err := r.lookupCustomizations(spec, sources, tag, name)
		if err != nil {
			return nil, nil, coreerrors.Wrap(coreerrors.KindIoError, err, "reading customizations for %s from %s", name, tag)
		}
		for _, d := range descs {
			entry.CustomizationStack = append(entry.CustomizationStack, StackedDescriptor{SourceTag: tag, Descriptor: d})
			entry.ProvenanceTrail = append(entry.ProvenanceTrail, tag)
		}
	}

	if entry.BaseSourceTag == "" {
		if r.Extractor == nil {
			return nil, nil, coreerrors.New(coreerrors.KindBaseTemplateMissing, "no source supplied a base template for %q", name)
		}
		text, found, err := r.Extractor.Load(spec.GeneratorName, name)
		if err != nil {
			return nil, nil, coreerrors.Wrap(coreerrors.KindIoError, err, "loading generator default for %s", name)
		}
		if !found {
			return nil, nil, coreerrors.New(coreerrors.KindBaseTemplateMissing, "no source supplied a base template for %q", name)
		}
		entry.BaseText = text
		entry.BaseSourceTag = models.SourceOpenAPIGenerator
		entry.ProvenanceTrail = append([]models.SourceTag{models.SourceOpenAPIGenerator}, entry.ProvenanceTrail...)
	}

	return entry, diagnostics, nil
}

func (r *Resolver) lookupFullTemplate(spec *models.ResolvedSpecConfig, sources Sources, tag models.SourceTag, name string) (string, bool, []string, error) {
	switch tag {
	case models.SourceUserTemplates:
		if sources.UserTemplatesDir == "" {
			return "", false, nil, nil
		}
		return readTemplateFile(sources.UserTemplatesDir, name)
	case models.SourceLibraryTemplates:
		if !spec.UseLibraryTemplates {
			return "", false, nil, nil
		}
		var found bool
		var text string
		for _, dir := range sources.LibraryTemplatesDirs {
			t, ok, _, err := readTemplateFile(dir, name)
			if err != nil {
				return "", false, nil, err
			}
			if ok {
				text, found = t, true
			}
		}
		return text, found, nil, nil
	case models.SourceOpenAPIGenerator:
		if r.Extractor == nil {
			return "", false, nil, nil
		}
		text, found, err := r.Extractor.Load(spec.GeneratorName, name)
		return text, found, nil, err
	default:
		return "", false, nil, nil
	}
}

func readTemplateFile(dir, name string) (string, bool, []string, error) {
	if dir == "" {
		return "", false, nil, nil
	}
	path := filepath.Join(dir, name)
	data, err := utils.SafeReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil, nil
		}
		return "", false, nil, err
	}
	return string(data), true, nil, nil
}

func (r *Resolver) lookupCustomizations(spec *models.ResolvedSpecConfig, sources Sources, tag models.SourceTag, name string) ([]*descriptor.Descriptor, error) {
	switch tag {
	case models.SourceUserCustomizations:
		if sources.UserCustomizationsDir == "" {
			return nil, nil
		}
		d, ok, err := readDescriptor(sources.UserCustomizationsDir, name)
		if err != nil || !ok {
			return nil, err
		}
		return []*descriptor.Descriptor{d}, nil
	case models.SourceLibraryCustomizations:
		if !spec.UseLibraryCustomizations {
			return nil, nil
		}
		var out []*descriptor.Descriptor
		for _, dir := range sources.LibraryCustomizationsDirs {
			d, ok, err := readDescriptor(dir, name)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, d)
			}
		}
		return out, nil
	case models.SourcePluginCustomizations:
		if !spec.ApplyPluginCustomizations || sources.PluginCustomizationsDir == "" {
			return nil, nil
		}
		d, ok, err := readDescriptor(sources.PluginCustomizationsDir, name)
		if err != nil || !ok {
			return nil, err
		}
		return []*descriptor.Descriptor{d}, nil
	default:
		return nil, nil
	}
}

func readDescriptor(dir, name string) (*descriptor.Descriptor, bool, error) {
	if dir == "" {
		return nil, false, nil
	}
	path := filepath.Join(dir, name+".yaml")
	data, err := utils.SafeReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	d, loadErr := descriptor.Load(data, path)
	if loadErr != nil {
		return nil, false, loadErr
	}
	return d, true, nil
}
