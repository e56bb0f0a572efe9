// Package orchestrator implements the Orchestrator: the public entry
// point that, per spec, builds the working directory containing the
// exact templates the downstream generator will consume.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oasforge/templatecore/pkg/cache"
	"github.com/oasforge/templatecore/pkg/condition"
	"github.com/oasforge/templatecore/pkg/config"
	"github.com/oasforge/templatecore/pkg/depscan"
	coreerrors "github.com/oasforge/templatecore/pkg/errors"
	"github.com/oasforge/templatecore/pkg/generatordefault"
	"github.com/oasforge/templatecore/pkg/hashutil"
	"github.com/oasforge/templatecore/pkg/library"
	"github.com/oasforge/templatecore/pkg/logger"
	"github.com/oasforge/templatecore/pkg/models"
	"github.com/oasforge/templatecore/pkg/resolver"
	"github.com/oasforge/templatecore/pkg/templatetext"
	"github.com/oasforge/templatecore/pkg/utils"
)

// Orchestrator wires every component together into the per-spec build
// sequence described in SPEC_FULL §4.10.
type Orchestrator struct {
	Session       *cache.Session
	Global        *cache.Global
	Validator     *config.Validator
	Resolver      *resolver.Resolver
	Extractor     *generatordefault.Extractor
	Loader        *library.Loader
	Logger        *logger.Logger
	PluginVersion string

	// WorkingDirectoryRoot is the parent of every per-spec working
	// directory: <build>/template-work/.
	WorkingDirectoryRoot string
}

// SpecInputs bundles everything BuildSpec needs for one spec beyond the
// ResolvedSpecConfig itself.
type SpecInputs struct {
	Spec    *models.ResolvedSpecConfig
	Sources resolver.Sources

	// LibraryArchivePaths are the resolved-classpath archive dependencies
	// to load for this spec, in classpath order. The Orchestrator loads
	// each one, enforces its compatibility manifest, and folds its
	// extracted template/customization directories into Sources.
	LibraryArchivePaths []string

	Features     map[string]bool
	ProjectProps map[string]string
	Env          map[string]string
	BuildType    string
}

// applyResult is what a memoized templatetext.Apply call caches in the
// session tier.
type applyResult struct {
	text   string
	report *templatetext.Report
}

// New builds an Orchestrator. log may be nil, in which case a default
// discard-free stderr logger is created.
func New(session *cache.Session, global *cache.Global, validator *config.Validator, res *resolver.Resolver, extractor *generatordefault.Extractor, loader *library.Loader, log *logger.Logger, pluginVersion, workingDirectoryRoot string) *Orchestrator {
	if log == nil {
		log = logger.New(logger.DefaultConfig("orchestrator"))
	}
	return &Orchestrator{
		Session: session, Global: global, Validator: validator, Resolver: res,
		Extractor: extractor, Loader: loader, Logger: log,
		PluginVersion: pluginVersion, WorkingDirectoryRoot: workingDirectoryRoot,
	}
}

// BuildSpec runs the full per-spec orchestration sequence: validate,
// expand variables, check cache, plan, materialize, commit.
func (o *Orchestrator) BuildSpec(ctx context.Context, in SpecInputs) (*models.BuildResult, error) {
	spec := in.Spec
	buildID := uuid.New().String()
	log := o.Logger.WithComponent("orchestrator:" + buildID[:8])

	if err := o.Validator.ValidateSpec(spec); err != nil {
		return nil, err
	}

	variables, err := templatetext.ExpandVariablesFixedPoint(spec.TemplateVariables)
	if err != nil {
		return nil, err.(*coreerrors.CoreError).WithSpec(spec.SpecName)
	}

	workDir := filepath.Join(o.WorkingDirectoryRoot, spec.GeneratorName+"-"+spec.SpecName)
	local := cache.NewLocal(workDir)

	generatorVersion, gvErr := o.Extractor.GeneratorVersion()
	if gvErr != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIoError, gvErr, "reading generator version").WithSpec(spec.SpecName)
	}

	apiDocHash, hashErr := hashutil.HashFile(spec.APIDocumentPath)
	if hashErr != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIoError, hashErr, "hashing api document %s", spec.APIDocumentPath).WithSpec(spec.SpecName)
	}

	userTemplatesHash, _ := cache.HashTree(spec.UserTemplateDir)
	userCustomizationsHash, _ := cache.HashTree(spec.UserCustomizationsDir)
	pluginCustomizationsHash, _ := cache.HashTree(in.Sources.PluginCustomizationsDir)

	var manifestNames, archiveHashes []string
	if (spec.UseLibraryTemplates || spec.UseLibraryCustomizations) && o.Loader != nil {
		for _, archivePath := range in.LibraryArchivePaths {
			loaded, loadErr := o.Loader.Load(archivePath, spec.GeneratorName)
			if loadErr != nil {
				return nil, loadErr.(*coreerrors.CoreError).WithSpec(spec.SpecName)
			}
			if compatErr := library.CheckCompatibility(loaded.Manifest, generatorVersion, o.PluginVersion); compatErr != nil {
				return nil, compatErr.(*coreerrors.CoreError).WithSpec(spec.SpecName)
			}
			manifestNames = append(manifestNames, loaded.Manifest.Name+"@"+loaded.Manifest.Version)
			archiveHashes = append(archiveHashes, loaded.ArchiveHash)
			if !loaded.AppliesToGenerator {
				continue
			}
			if spec.UseLibraryTemplates {
				in.Sources.LibraryTemplatesDirs = append(in.Sources.LibraryTemplatesDirs, loaded.TemplatesDir)
			}
			if spec.UseLibraryCustomizations {
				in.Sources.LibraryCustomizationsDirs = append(in.Sources.LibraryCustomizationsDirs, loaded.CustomizationsDir)
			}
		}
	}
	libraryManifestSetHash := hashutil.HashSequence(manifestNames)
	libraryContentsSetHash := hashutil.HashSequenceOfHashes(archiveHashes)

	cacheKey := cache.ComputeKey(cache.KeyInputs{
		PluginVersion:                     o.PluginVersion,
		GeneratorName:                     spec.GeneratorName,
		GeneratorVersion:                  generatorVersion,
		APIDocumentHash:                   apiDocHash,
		TemplateSourceOrder:               spec.TemplateSourceOrder,
		ApplyPluginCustomizations:         spec.ApplyPluginCustomizations,
		UserTemplatesTreeHash:             userTemplatesHash,
		UserCustomizationsTreeHash:        userCustomizationsHash,
		PluginCustomizationsResourcesHash: pluginCustomizationsHash,
		LibraryManifestSetHash:            libraryManifestSetHash,
		LibraryContentsSetHash:            libraryContentsSetHash,
		TemplateVariables:                 variables,
		GeneratorOptions:                  spec.GeneratorOptions,
	})

	if valid, _ := local.IsValid(cacheKey); valid {
		log.Info("cache hit", map[string]any{"spec": spec.SpecName, "cache_key": cacheKey, "build_id": buildID})
		return &models.BuildResult{
			SpecName: spec.SpecName, WorkingDirectory: workDir,
			CacheStatus: models.CacheHit, BuiltAt: time.Now(),
		}, nil
	}

	if err := local.Clean(); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIoError, err, "cleaning working directory %s", workDir).WithSpec(spec.SpecName)
	}

	evalCtx := &condition.EvalCtx{
		GeneratorVersion: generatorVersion,
		Features:         in.Features,
		ProjectProps:     in.ProjectProps,
		Env:              in.Env,
		BuildType:        in.BuildType,
	}

	plan, planErr := o.Resolver.Plan(spec, in.Sources)
	if planErr != nil {
		return nil, planErr
	}
	if ctx.Err() != nil {
		return nil, coreerrors.New(coreerrors.KindCancelled, "build cancelled").WithSpec(spec.SpecName)
	}

	result := &models.BuildResult{SpecName: spec.SpecName, WorkingDirectory: workDir, CacheStatus: models.CacheMiss}
	contentHashes := map[string]string{}
	sourcePlan := map[string]string{}

	// pending is a worklist, not a fixed set: materializing a template's
	// final text can reveal {{>name}} includes (§4.5 requires scanning the
	// final, post-customization text, since a customization can introduce
	// or remove an include) that resolve to logical names outside the
	// initial plan. Each name is applied and scanned exactly once.
	pending := make([]string, 0, len(plan.Entries))
	enqueued := map[string]bool{}
	for name := range plan.Entries {
		pending = append(pending, name)
		enqueued[name] = true
	}
	sort.Strings(pending)

	for i := 0; i < len(pending); i++ {
		if ctx.Err() != nil {
			return nil, coreerrors.New(coreerrors.KindCancelled, "build cancelled").WithSpec(spec.SpecName)
		}
		name := pending[i]
		entry := plan.Entries[name]

		var finalText string
		var report *templatetext.Report
		if len(entry.CustomizationStack) > 0 {
			origPath := filepath.Join(workDir, "orig", spec.GeneratorName, name+".orig")
			if err := utils.SafeWriteFile(origPath, []byte(entry.BaseText)); err != nil {
				return nil, coreerrors.Wrap(coreerrors.KindIoError, err, "writing %s", origPath).WithSpec(spec.SpecName).WithTemplate(name)
			}

			stack := make([]templatetext.StackEntry, len(entry.CustomizationStack))
			stackHashes := make([]string, len(entry.CustomizationStack))
			for j, sd := range entry.CustomizationStack {
				stack[j] = templatetext.StackEntry{Descriptor: sd.Descriptor}
				stackHashes[j] = hashutil.HashBytes(sd.Descriptor.Raw)
			}

			ar, applyErr := o.applyCustomizations(entry.BaseText, stack, stackHashes, evalCtx, variables)
			if applyErr != nil {
				return nil, applyErr.(*coreerrors.CoreError).WithSpec(spec.SpecName).WithTemplate(name)
			}
			finalText, report = ar.text, ar.report
		} else {
			finalText = expandOnly(entry.BaseText, variables)
			report = &templatetext.Report{}
		}

		destPath := filepath.Join(workDir, name)
		if err := utils.SafeWriteFile(destPath, []byte(finalText)); err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindIoError, err, "writing %s", destPath).WithSpec(spec.SpecName).WithTemplate(name)
		}

		contentHashes[name] = hashutil.HashBytes([]byte(finalText))
		sourcePlan[name] = provenanceString(entry.ProvenanceTrail)

		tr := models.TemplateReport{
			LogicalName: name, Attempted: report.Attempted, Applied: report.Applied,
			Skipped: report.Skipped, SkipReasons: report.SkipReasons,
			BytesAdded: report.BytesAdded, BytesRemoved: report.BytesRemoved,
		}
		result.TemplateReports = append(result.TemplateReports, tr)
		for _, reason := range report.SkipReasons {
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("%s: %s", name, reason))
		}

		for depName := range depscan.Scan(finalText) {
			if enqueued[depName] {
				continue
			}
			enqueued[depName] = true
			depEntry, diag, err := o.Resolver.ResolveAdditional(spec, in.Sources, depName)
			if err != nil {
				return nil, err.WithSpec(spec.SpecName).WithTemplate(depName)
			}
			plan.Entries[depName] = depEntry
			plan.Diagnostics = append(plan.Diagnostics, diag...)
			pending = append(pending, depName)
		}
	}
	result.Diagnostics = append(result.Diagnostics, plan.Diagnostics...)

	if err := local.Commit(sourcePlan, contentHashes, cacheKey); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIoError, err, "committing local cache for %s", workDir).WithSpec(spec.SpecName)
	}
	if o.Global != nil {
		hashes := make([]string, 0, len(contentHashes))
		for _, h := range contentHashes {
			hashes = append(hashes, h)
		}
		_ = o.Global.Put(cacheKey, hashes)
	}

	result.BuiltAt = time.Now()
	log.Info("build complete", map[string]any{"spec": spec.SpecName, "templates": len(pending), "build_id": buildID})
	return result, nil
}

// applyCustomizations runs the Template Text Engine over baseText with
// stack, memoized in the session tier keyed by the fingerprint of the base
// text and the descriptor stack: identical (base, stack) pairs — common
// when several specs share a template and its customizations — apply
// exactly once per process even under concurrent multi-spec builds.
func (o *Orchestrator) applyCustomizations(baseText string, stack []templatetext.StackEntry, stackHashes []string, evalCtx *condition.EvalCtx, variables map[string]string) (applyResult, error) {
	compute := func() (any, error) {
		text, report, err := templatetext.Apply(baseText, stack, evalCtx, variables)
		if err != nil {
			return nil, err
		}
		return applyResult{text: text, report: report}, nil
	}

	if o.Session == nil {
		v, err := compute()
		if err != nil {
			return applyResult{}, err
		}
		return v.(applyResult), nil
	}

	// The core identity is hash(base_text) ⊕ hash(descriptor_stack) (§4.9);
	// the variable set is folded in too since Apply's final expansion pass
	// also depends on it and two specs can share a template/stack while
	// supplying different template_variables.
	key := "apply:" + hashutil.HashBytes([]byte(baseText)) + ":" +
		hashutil.HashSequenceOfHashes(stackHashes) + ":" + hashutil.HashOrderedMap(variables)
	v, err := o.Session.ComputeIfAbsent(key, compute)
	if err != nil {
		return applyResult{}, err
	}
	return v.(applyResult), nil
}

// expandOnly applies only the final variable-expansion pass, used for
// templates that received no customizations at all.
func expandOnly(text string, variables map[string]string) string {
	out, _, _ := templatetext.Apply(text, nil, &condition.EvalCtx{}, variables)
	return out
}

func provenanceString(trail []models.SourceTag) string {
	parts := make([]string, len(trail))
	for i, t := range trail {
		parts[i] = string(t)
	}
	return strings.Join(parts, ">")
}
