// Package models defines the data model shared by every component in the
// orchestration core: the resolved per-spec configuration, the template
// source precedence tags, and the build-level configuration document a
// host tool (or the CLI harness) assembles specs from.
package models

import "time"

// SourceTag identifies one of the six ranked tiers a template or
// customization can come from. Lower Precedence means higher priority: a
// template from a lower-precedence-number tag wins, and a customization
// from a lower-precedence-number tag is applied later (dominates).
type SourceTag string

const (
	SourceUserTemplates        SourceTag = "user-templates"
	SourceUserCustomizations   SourceTag = "user-customizations"
	SourceLibraryTemplates     SourceTag = "library-templates"
	SourceLibraryCustomizations SourceTag = "library-customizations"
	SourcePluginCustomizations SourceTag = "plugin-customizations"
	SourceOpenAPIGenerator     SourceTag = "openapi-generator"
)

// precedence maps each tag to its precedence integer; lower wins.
var precedence = map[SourceTag]int{
	SourceUserTemplates:         1,
	SourceUserCustomizations:    2,
	SourceLibraryTemplates:      3,
	SourceLibraryCustomizations: 4,
	SourcePluginCustomizations:  5,
	SourceOpenAPIGenerator:      6,
}

// Precedence returns the precedence integer for the tag, or 0 if the tag
// is not one of the six known tags.
func (t SourceTag) Precedence() int {
	return precedence[t]
}

// Valid reports whether t is one of the six known source tags.
func (t SourceTag) Valid() bool {
	_, ok := precedence[t]
	return ok
}

// IsFullTemplateSource reports whether a source of this tag provides a
// full base template (as opposed to a customization descriptor layered
// atop a base from elsewhere).
func (t SourceTag) IsFullTemplateSource() bool {
	return t == SourceUserTemplates || t == SourceLibraryTemplates || t == SourceOpenAPIGenerator
}

// AllSourceTags lists the six tags in default (highest-precedence-first)
// order.
var AllSourceTags = []SourceTag{
	SourceUserTemplates,
	SourceUserCustomizations,
	SourceLibraryTemplates,
	SourceLibraryCustomizations,
	SourcePluginCustomizations,
	SourceOpenAPIGenerator,
}

// ResolvedSpecConfig is the immutable input describing one OpenAPI
// specification to generate templates for. Once constructed at planning
// time it is never mutated.
type ResolvedSpecConfig struct {
	SpecName        string   `yaml:"spec_name" json:"spec_name" validate:"required,spec_identifier"`
	GeneratorName   string   `yaml:"generator_name" json:"generator_name" validate:"required"`
	APIDocumentPath string   `yaml:"api_document_path" json:"api_document_path" validate:"required"`
	ModelPackage    string   `yaml:"model_package" json:"model_package" validate:"required,java_package"`
	OutputDirectory string   `yaml:"output_directory" json:"output_directory" validate:"required"`

	UserTemplateDir       string `yaml:"user_template_dir,omitempty" json:"user_template_dir,omitempty"`
	UserCustomizationsDir string `yaml:"user_customizations_dir,omitempty" json:"user_customizations_dir,omitempty"`

	TemplateSourceOrder []SourceTag `yaml:"template_source_order" json:"template_source_order" validate:"required,min=1,dive,source_tag"`

	ApplyPluginCustomizations bool `yaml:"apply_plugin_customizations" json:"apply_plugin_customizations"`
	UseLibraryTemplates       bool `yaml:"use_library_templates" json:"use_library_templates"`
	UseLibraryCustomizations  bool `yaml:"use_library_customizations" json:"use_library_customizations"`

	TemplateVariables map[string]string `yaml:"template_variables,omitempty" json:"template_variables,omitempty"`

	GeneratorOptions      map[string]string `yaml:"generator_options,omitempty" json:"generator_options,omitempty"`
	GlobalProperties      map[string]string `yaml:"global_properties,omitempty" json:"global_properties,omitempty"`
	ImportMappings        map[string]string `yaml:"import_mappings,omitempty" json:"import_mappings,omitempty"`
	TypeMappings          map[string]string `yaml:"type_mappings,omitempty" json:"type_mappings,omitempty"`
	AdditionalProperties  map[string]string `yaml:"additional_properties,omitempty" json:"additional_properties,omitempty"`
}

// HasSourceTag reports whether tag appears in TemplateSourceOrder.
func (c *ResolvedSpecConfig) HasSourceTag(tag SourceTag) bool {
	for _, t := range c.TemplateSourceOrder {
		if t == tag {
			return true
		}
	}
	return false
}

// BuildConfig is the top-level document the CLI harness reads: global
// defaults merged into every spec, plus the list of per-spec overrides.
// It exists purely for the non-production CLI harness and local testing;
// a real build-tool integration constructs ResolvedSpecConfig values
// in-process instead.
type BuildConfig struct {
	PluginVersion string `yaml:"plugin_version" json:"plugin_version"`

	Defaults SpecDefaults `yaml:"defaults" json:"defaults"`
	Specs    []SpecOverride `yaml:"specs" json:"specs" validate:"required,min=1,dive"`
}

// SpecDefaults holds the mapping fields that are merged into every spec,
// with per-spec overrides replacing individual keys.
type SpecDefaults struct {
	GeneratorOptions     map[string]string `yaml:"generator_options,omitempty" json:"generator_options,omitempty"`
	GlobalProperties     map[string]string `yaml:"global_properties,omitempty" json:"global_properties,omitempty"`
	ImportMappings       map[string]string `yaml:"import_mappings,omitempty" json:"import_mappings,omitempty"`
	TypeMappings         map[string]string `yaml:"type_mappings,omitempty" json:"type_mappings,omitempty"`
	AdditionalProperties map[string]string `yaml:"additional_properties,omitempty" json:"additional_properties,omitempty"`
	TemplateVariables    map[string]string `yaml:"template_variables,omitempty" json:"template_variables,omitempty"`
}

// SpecOverride is one entry in BuildConfig.Specs: the spec-specific
// fields plus any per-key overrides of the defaults.
type SpecOverride struct {
	SpecName        string `yaml:"spec_name" json:"spec_name"`
	GeneratorName   string `yaml:"generator_name" json:"generator_name"`
	APIDocumentPath string `yaml:"api_document_path" json:"api_document_path"`
	ModelPackage    string `yaml:"model_package" json:"model_package"`
	OutputDirectory string `yaml:"output_directory" json:"output_directory"`

	UserTemplateDir       string `yaml:"user_template_dir,omitempty" json:"user_template_dir,omitempty"`
	UserCustomizationsDir string `yaml:"user_customizations_dir,omitempty" json:"user_customizations_dir,omitempty"`

	TemplateSourceOrder []SourceTag `yaml:"template_source_order,omitempty" json:"template_source_order,omitempty"`

	ApplyPluginCustomizations *bool `yaml:"apply_plugin_customizations,omitempty" json:"apply_plugin_customizations,omitempty"`
	UseLibraryTemplates       *bool `yaml:"use_library_templates,omitempty" json:"use_library_templates,omitempty"`
	UseLibraryCustomizations  *bool `yaml:"use_library_customizations,omitempty" json:"use_library_customizations,omitempty"`

	GeneratorOptions     map[string]string `yaml:"generator_options,omitempty" json:"generator_options,omitempty"`
	GlobalProperties     map[string]string `yaml:"global_properties,omitempty" json:"global_properties,omitempty"`
	ImportMappings       map[string]string `yaml:"import_mappings,omitempty" json:"import_mappings,omitempty"`
	TypeMappings         map[string]string `yaml:"type_mappings,omitempty" json:"type_mappings,omitempty"`
	AdditionalProperties map[string]string `yaml:"additional_properties,omitempty" json:"additional_properties,omitempty"`
	TemplateVariables    map[string]string `yaml:"template_variables,omitempty" json:"template_variables,omitempty"`
}

// Resolve merges o atop d's defaults (o.TemplateSourceOrder defaults to
// AllSourceTags when unset) and returns the equivalent ResolvedSpecConfig.
func (o SpecOverride) Resolve(d SpecDefaults) *ResolvedSpecConfig {
	order := o.TemplateSourceOrder
	if order == nil {
		order = AllSourceTags
	}
	r := &ResolvedSpecConfig{
		SpecName:        o.SpecName,
		GeneratorName:   o.GeneratorName,
		APIDocumentPath: o.APIDocumentPath,
		ModelPackage:    o.ModelPackage,
		OutputDirectory: o.OutputDirectory,

		UserTemplateDir:       o.UserTemplateDir,
		UserCustomizationsDir: o.UserCustomizationsDir,

		TemplateSourceOrder: order,

		ApplyPluginCustomizations: boolOrDefault(o.ApplyPluginCustomizations, true),
		UseLibraryTemplates:       boolOrDefault(o.UseLibraryTemplates, false),
		UseLibraryCustomizations:  boolOrDefault(o.UseLibraryCustomizations, false),

		TemplateVariables: mergeMaps(d.TemplateVariables, o.TemplateVariables),

		GeneratorOptions:     mergeMaps(d.GeneratorOptions, o.GeneratorOptions),
		GlobalProperties:     mergeMaps(d.GlobalProperties, o.GlobalProperties),
		ImportMappings:       mergeMaps(d.ImportMappings, o.ImportMappings),
		TypeMappings:         mergeMaps(d.TypeMappings, o.TypeMappings),
		AdditionalProperties: mergeMaps(d.AdditionalProperties, o.AdditionalProperties),
	}
	return r
}

func boolOrDefault(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func mergeMaps(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// LibraryManifest describes one archive dependency's compatibility
// contract, read from META-INF/openapi-library.yaml.
type LibraryManifest struct {
	Name                string   `yaml:"name" json:"name" validate:"required"`
	Version             string   `yaml:"version" json:"version" validate:"required"`
	Description         string   `yaml:"description,omitempty" json:"description,omitempty"`
	SupportedGenerators []string `yaml:"supported_generators,omitempty" json:"supported_generators,omitempty"`
	MinGeneratorVersion string   `yaml:"min_generator_version,omitempty" json:"min_generator_version,omitempty"`
	MaxGeneratorVersion string   `yaml:"max_generator_version,omitempty" json:"max_generator_version,omitempty"`
	MinPluginVersion    string   `yaml:"min_plugin_version,omitempty" json:"min_plugin_version,omitempty"`
	RequiredFeatures    []string `yaml:"required_features,omitempty" json:"required_features,omitempty"`
	ProvidedFeatures    []string `yaml:"provided_features,omitempty" json:"provided_features,omitempty"`
}

// SupportsGenerator reports whether the manifest permits use with the
// named generator (an empty SupportedGenerators list means "all").
func (m *LibraryManifest) SupportsGenerator(generator string) bool {
	if len(m.SupportedGenerators) == 0 {
		return true
	}
	for _, g := range m.SupportedGenerators {
		if g == generator {
			return true
		}
	}
	return false
}

// CacheStatus reports whether an orchestration reused an existing working
// directory or rebuilt it.
type CacheStatus string

const (
	CacheHit  CacheStatus = "hit"
	CacheMiss CacheStatus = "miss"
)

// TemplateReport summarizes the Template Text Engine's work on one
// template: how many operations were attempted, applied, and skipped.
type TemplateReport struct {
	LogicalName string
	Attempted   int
	Applied     int
	Skipped     int
	SkipReasons []string
	BytesAdded  int
	BytesRemoved int
}

// BuildResult is the per-spec outcome returned by the Orchestrator.
type BuildResult struct {
	SpecName        string
	WorkingDirectory string
	CacheStatus     CacheStatus
	TemplateReports []TemplateReport
	Diagnostics     []string
	BuiltAt         time.Time
}
