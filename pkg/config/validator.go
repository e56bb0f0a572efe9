// Package config implements the Configuration Validator: it checks every
// resolved spec configuration end-to-end before any orchestration begins,
// accumulating every violation instead of stopping at the first one.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	coreerrors "github.com/oasforge/templatecore/pkg/errors"
	"github.com/oasforge/templatecore/pkg/models"
)

var specIdentifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
var javaSegmentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var javaReservedWords = map[string]bool{
	"abstract": true, "assert": true, "boolean": true, "break": true, "byte": true,
	"case": true, "catch": true, "char": true, "class": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extends": true, "final": true, "finally": true, "float": true,
	"for": true, "goto": true, "if": true, "implements": true, "import": true,
	"instanceof": true, "int": true, "interface": true, "long": true, "native": true,
	"new": true, "package": true, "private": true, "protected": true, "public": true,
	"return": true, "short": true, "static": true, "strictfp": true, "super": true,
	"switch": true, "synchronized": true, "this": true, "throw": true, "throws": true,
	"transient": true, "try": true, "void": true, "volatile": true, "while": true,
	"true": true, "false": true, "null": true, "var": true, "record": true, "yield": true,
}

var allowedDateLibraries = map[string]bool{
	"java8": true, "java8-localdatetime": true, "joda": true, "legacy": true,
}

var allowedAPIDocumentExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Validator validates ResolvedSpecConfig values using go-playground/
// validator struct tags for the checks the tag language expresses
// directly, plus hand-written checks for cross-field and filesystem
// rules it cannot.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator with its custom tag validators registered.
func New() *Validator {
	v := validator.New()
	v.RegisterValidation("spec_identifier", func(fl validator.FieldLevel) bool {
		return specIdentifierPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("java_package", func(fl validator.FieldLevel) bool {
		return validJavaPackage(fl.Field().String())
	})
	v.RegisterValidation("source_tag", func(fl validator.FieldLevel) bool {
		return models.SourceTag(fl.Field().String()).Valid()
	})
	return &Validator{v: v}
}

func validJavaPackage(pkg string) bool {
	if pkg == "" {
		return false
	}
	for _, seg := range strings.Split(pkg, ".") {
		if !javaSegmentPattern.MatchString(seg) {
			return false
		}
		if javaReservedWords[seg] {
			return false
		}
	}
	return true
}

// ValidateSpec runs every check from §4.11 against spec and returns a
// single ConfigurationInvalid error listing every violation, or nil.
func (vd *Validator) ValidateSpec(spec *models.ResolvedSpecConfig) error {
	var acc coreerrors.Accumulator

	if err := vd.v.Struct(spec); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "field %s failed %s", fe.Namespace(), fe.Tag()).WithSpec(spec.SpecName))
		}
	}

	validateAPIDocumentPath(spec, &acc)
	validateSourceOrderConsistency(spec, &acc)
	validateGeneratorOptions(spec, &acc)
	validateUserDirs(spec, &acc)

	return acc.Err()
}

func validateAPIDocumentPath(spec *models.ResolvedSpecConfig, acc *coreerrors.Accumulator) {
	if spec.APIDocumentPath == "" {
		return
	}
	info, err := os.Stat(spec.APIDocumentPath)
	if err != nil {
		acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "api_document_path %q does not exist", spec.APIDocumentPath).WithSpec(spec.SpecName))
		return
	}
	if !info.Mode().IsRegular() {
		acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "api_document_path %q is not a regular file", spec.APIDocumentPath).WithSpec(spec.SpecName))
	}
	ext := strings.ToLower(filepath.Ext(spec.APIDocumentPath))
	if !allowedAPIDocumentExtensions[ext] {
		acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "api_document_path %q has unsupported extension %q", spec.APIDocumentPath, ext).WithSpec(spec.SpecName))
	}
}

func validateSourceOrderConsistency(spec *models.ResolvedSpecConfig, acc *coreerrors.Accumulator) {
	seen := map[models.SourceTag]bool{}
	for _, tag := range spec.TemplateSourceOrder {
		if !tag.Valid() {
			acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "unknown template source tag %q", tag).WithSpec(spec.SpecName))
			continue
		}
		if seen[tag] {
			acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "template_source_order contains duplicate tag %q", tag).WithSpec(spec.SpecName))
		}
		seen[tag] = true
	}
	if spec.UseLibraryTemplates && !seen[models.SourceLibraryTemplates] {
		acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "use_library_templates is true but %q is not in template_source_order", models.SourceLibraryTemplates).WithSpec(spec.SpecName))
	}
	if spec.UseLibraryCustomizations && !seen[models.SourceLibraryCustomizations] {
		acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "use_library_customizations is true but %q is not in template_source_order", models.SourceLibraryCustomizations).WithSpec(spec.SpecName))
	}
	if spec.ApplyPluginCustomizations && !seen[models.SourcePluginCustomizations] {
		acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "apply_plugin_customizations is true but %q is not in template_source_order", models.SourcePluginCustomizations).WithSpec(spec.SpecName))
	}
}

func validateGeneratorOptions(spec *models.ResolvedSpecConfig, acc *coreerrors.Accumulator) {
	for key, value := range spec.GeneratorOptions {
		if isBooleanOption(key) && value != "true" && value != "false" {
			acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "generator option %q must be \"true\" or \"false\", got %q", key, value).WithSpec(spec.SpecName))
		}
	}
	if dl, ok := spec.GeneratorOptions["date_library"]; ok && !allowedDateLibraries[dl] {
		acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "unsupported date_library %q", dl).WithSpec(spec.SpecName))
	}
	if spec.GeneratorOptions["use_spring_boot_3"] == "false" && spec.GeneratorOptions["use_jakarta_ee"] == "true" {
		acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "use_spring_boot_3=false conflicts with use_jakarta_ee=true").WithSpec(spec.SpecName))
	}
}

var booleanGeneratorOptions = map[string]bool{
	"use_spring_boot_3": true, "use_jakarta_ee": true, "use_tags": true,
	"use_bean_validation": true, "serializable_model": true, "hide_generation_timestamp": true,
}

func isBooleanOption(key string) bool {
	return booleanGeneratorOptions[key]
}

func validateUserDirs(spec *models.ResolvedSpecConfig, acc *coreerrors.Accumulator) {
	checkDir := func(path, label string) {
		if path == "" {
			return
		}
		info, err := os.Stat(path)
		if err != nil {
			acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "%s %q does not exist", label, path).WithSpec(spec.SpecName))
			return
		}
		if !info.IsDir() {
			acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "%s %q is not a directory", label, path).WithSpec(spec.SpecName))
		}
	}
	checkDir(spec.UserTemplateDir, "user_template_dir")
	checkDir(spec.UserCustomizationsDir, "user_customizations_dir")
}

// ValidateBuild validates every spec in a BuildConfig and checks
// spec-name uniqueness (case-insensitive) across the whole build.
func (vd *Validator) ValidateBuild(specs []*models.ResolvedSpecConfig) error {
	var acc coreerrors.Accumulator
	seen := map[string]string{}
	for _, spec := range specs {
		lower := strings.ToLower(spec.SpecName)
		if original, dup := seen[lower]; dup {
			acc.Add(coreerrors.New(coreerrors.KindConfigurationInvalid, "spec name %q duplicates %q (case-insensitive)", spec.SpecName, original))
		}
		seen[lower] = spec.SpecName

		if err := vd.ValidateSpec(spec); err != nil {
			acc.Add(err.(*coreerrors.CoreError))
		}
	}
	return acc.Err()
}
