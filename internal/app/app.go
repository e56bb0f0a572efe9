// Package app ties the dependency injection container to the CLI
// harness: it loads a build configuration, validates every spec
// up front, and fans the per-spec builds out across a bounded worker
// pool.
package app

import (
	"context"
	"fmt"

	"github.com/oasforge/templatecore/internal/container"
	"github.com/oasforge/templatecore/pkg/config"
	"github.com/oasforge/templatecore/pkg/models"
	"github.com/oasforge/templatecore/pkg/orchestrator"
	"github.com/oasforge/templatecore/pkg/resolver"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxParallelSpecs bounds how many specs build concurrently when
// the CLI harness doesn't override it.
const DefaultMaxParallelSpecs = 4

// App is the CLI harness's entry point into the orchestration core.
type App struct {
	Container       *container.Container
	MaxParallelSpecs int
}

// New builds an App from an already-configured container.
func New(c *container.Container) *App {
	return &App{Container: c, MaxParallelSpecs: DefaultMaxParallelSpecs}
}

// BuildOptions supplies the per-spec inputs the orchestration core needs
// beyond what a BuildConfig document itself carries (template/library
// source directories, condition evaluation inputs).
type BuildOptions struct {
	SourcesBySpec map[string]resolver.Sources

	// LibraryArchivePathsBySpec names the resolved-classpath archive
	// dependencies to load for each spec, keyed by spec name. A host build
	// tool supplies this from its own dependency resolution; the CLI
	// harness's --library-archives flag applies the same list to every
	// spec in the build document.
	LibraryArchivePathsBySpec map[string][]string

	Features     map[string]bool
	ProjectProps map[string]string
	Env          map[string]string
	BuildType    string
}

// RunBuildConfig validates and builds every spec in path's build
// configuration, returning one BuildResult per spec in input order. The
// first spec-level error is returned, but every spec that was already in
// flight is allowed to finish before RunBuildConfig returns (errgroup's
// contract): cooperative cancellation via the group's context stops
// specs that haven't started their per-template loop yet.
func (a *App) RunBuildConfig(ctx context.Context, path string, opts BuildOptions) ([]*models.BuildResult, error) {
	build, err := config.LoadBuildConfig(path)
	if err != nil {
		return nil, err
	}
	specs := config.ResolveSpecs(build)

	validator, err := a.Container.GetValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateBuild(specs); err != nil {
		return nil, err
	}

	orch, err := a.Container.GetOrchestrator()
	if err != nil {
		return nil, err
	}
	// A plugin version configured on the container (the CLI's
	// --plugin-version) takes precedence over the build document's.
	if orch.PluginVersion == "" {
		orch.PluginVersion = build.PluginVersion
	}

	results := make([]*models.BuildResult, len(specs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.MaxParallelSpecs)

	for i, spec := range specs {
		i, spec := i, spec
		group.Go(func() error {
			result, err := orch.BuildSpec(groupCtx, orchestrator.SpecInputs{
				Spec:                spec,
				Sources:             opts.SourcesBySpec[spec.SpecName],
				LibraryArchivePaths: opts.LibraryArchivePathsBySpec[spec.SpecName],
				Features:            opts.Features,
				ProjectProps:        opts.ProjectProps,
				Env:                 opts.Env,
				BuildType:           opts.BuildType,
			})
			if err != nil {
				return fmt.Errorf("spec %q: %w", spec.SpecName, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
