package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oasforge/templatecore/internal/app"
	"github.com/oasforge/templatecore/internal/container"
	"github.com/oasforge/templatecore/pkg/config"
	"github.com/oasforge/templatecore/pkg/generatordefault"
	"github.com/oasforge/templatecore/pkg/resolver"
	"github.com/spf13/cobra"
)

func newBuildCommand() *cobra.Command {
	var (
		generatorDefaultsDir string
		generatorVersion     string
		cacheDir             string
		workers              int
		pluginVersionFlag    string
		libraryArchives      []string
	)

	cmd := &cobra.Command{
		Use:   "build <build-config.yaml>",
		Short: "Build every spec in a build configuration document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			facade := generatordefault.NewStaticFacade(generatorVersion)
			if generatorDefaultsDir != "" {
				loaded, err := loadStaticFacade(generatorDefaultsDir, generatorVersion)
				if err != nil {
					return fmt.Errorf("loading generator defaults: %w", err)
				}
				facade = loaded
			}

			c := container.New(container.Options{
				PluginVersion:   pluginVersionFlag,
				GeneratorFacade: facade,
				GlobalCacheDir:  cacheDir,
			})
			a := app.New(c)
			if workers > 0 {
				a.MaxParallelSpecs = workers
			}

			var archivePathsBySpec map[string][]string
			if len(libraryArchives) > 0 {
				build, loadErr := config.LoadBuildConfig(args[0])
				if loadErr != nil {
					return fmt.Errorf("loading build config: %w", loadErr)
				}
				archivePathsBySpec = make(map[string][]string, len(build.Specs))
				for _, s := range build.Specs {
					archivePathsBySpec[s.SpecName] = libraryArchives
				}
			}

			results, err := a.RunBuildConfig(context.Background(), args[0], app.BuildOptions{
				SourcesBySpec:             map[string]resolver.Sources{},
				LibraryArchivePathsBySpec: archivePathsBySpec,
			})
			for _, r := range results {
				if r == nil {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s), %d templates\n",
					r.SpecName, r.WorkingDirectory, r.CacheStatus, len(r.TemplateReports))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&generatorDefaultsDir, "generator-defaults", "", "directory of generator/logicalName default template files (offline mode)")
	cmd.Flags().StringVar(&generatorVersion, "generator-version", "0.0.0", "version reported to GeneratorVersion conditions")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "global cache directory (defaults to ~/.templatecore-cache)")
	cmd.Flags().IntVar(&workers, "workers", 0, "max specs built concurrently (0 uses the harness default)")
	cmd.Flags().StringVar(&pluginVersionFlag, "plugin-version", "", "overrides the build config's plugin_version")
	cmd.Flags().StringSliceVar(&libraryArchives, "library-archives", nil, "resolved-classpath archive dependencies to load for every spec (repeatable)")

	return cmd
}

// loadStaticFacade walks dir expecting one subdirectory per generator
// name, each containing the generator's default template files keyed by
// their logical (relative) path.
func loadStaticFacade(dir, version string) (*generatordefault.StaticFacade, error) {
	facade := generatordefault.NewStaticFacade(version)
	generators, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, gen := range generators {
		if !gen.IsDir() {
			continue
		}
		genDir := filepath.Join(dir, gen.Name())
		err := filepath.Walk(genDir, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(genDir, path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			facade.WithTemplate(gen.Name(), filepath.ToSlash(rel), string(data))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return facade, nil
}
