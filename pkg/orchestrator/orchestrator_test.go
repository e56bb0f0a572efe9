package orchestrator

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oasforge/templatecore/pkg/cache"
	"github.com/oasforge/templatecore/pkg/condition"
	"github.com/oasforge/templatecore/pkg/config"
	"github.com/oasforge/templatecore/pkg/descriptor"
	"github.com/oasforge/templatecore/pkg/generatordefault"
	"github.com/oasforge/templatecore/pkg/hashutil"
	"github.com/oasforge/templatecore/pkg/library"
	"github.com/oasforge/templatecore/pkg/models"
	"github.com/oasforge/templatecore/pkg/resolver"
	"github.com/oasforge/templatecore/pkg/templatetext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, workRoot string) *Orchestrator {
	t.Helper()
	facade := generatordefault.NewStaticFacade("7.5.0").
		WithTemplate("spring", "pojo.mustache", "class {{className}} {}\n")
	extractor := generatordefault.NewExtractor(facade)
	res := resolver.New(extractor)
	loader := library.NewLoader(filepath.Join(workRoot, "global-cache"))
	return New(cache.NewSession(), nil, config.New(), res, extractor, loader, nil, "1.0.0", workRoot)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func buildArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestBuildSpecCacheMissThenHit(t *testing.T) {
	dir := t.TempDir()
	apiDoc := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(apiDoc, []byte("openapi: 3.0.0\n"), 0o600))

	workRoot := filepath.Join(dir, "work")
	orch := newTestOrchestrator(t, workRoot)

	spec := &models.ResolvedSpecConfig{
		SpecName:            "petstore",
		GeneratorName:       "spring",
		APIDocumentPath:     apiDoc,
		ModelPackage:        "com.example.model",
		OutputDirectory:     dir,
		TemplateSourceOrder: models.AllSourceTags,
		TemplateVariables:   map[string]string{"className": "Pet"},
	}

	in := SpecInputs{Spec: spec, Sources: resolver.Sources{}}

	result, err := orch.BuildSpec(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.CacheMiss, result.CacheStatus)

	result2, err := orch.BuildSpec(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.CacheHit, result2.CacheStatus)
}

func TestBuildSpecRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	workRoot := filepath.Join(dir, "work")
	orch := newTestOrchestrator(t, workRoot)

	spec := &models.ResolvedSpecConfig{
		SpecName:      "1-bad",
		GeneratorName: "spring",
	}
	_, err := orch.BuildSpec(context.Background(), SpecInputs{Spec: spec, Sources: resolver.Sources{}})
	assert.Error(t, err)
}

func TestBuildSpecCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	apiDoc := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(apiDoc, []byte("openapi: 3.0.0\n"), 0o600))

	workRoot := filepath.Join(dir, "work")
	orch := newTestOrchestrator(t, workRoot)

	spec := &models.ResolvedSpecConfig{
		SpecName:            "petstore",
		GeneratorName:       "spring",
		APIDocumentPath:     apiDoc,
		ModelPackage:        "com.example.model",
		OutputDirectory:     dir,
		TemplateSourceOrder: models.AllSourceTags,
		TemplateVariables:   map[string]string{"className": "Pet"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := orch.BuildSpec(ctx, SpecInputs{Spec: spec, Sources: resolver.Sources{}})
	assert.Error(t, err)
}

// TestBuildSpecDiscoversIncludeIntroducedByCustomization makes sure
// dependency closure scans the final, post-customization text: the base
// template carries no {{>...}} token, only the customization's inserted
// content does.
func TestBuildSpecDiscoversIncludeIntroducedByCustomization(t *testing.T) {
	dir := t.TempDir()
	apiDoc := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(apiDoc, []byte("openapi: 3.0.0\n"), 0o600))

	userCustom := filepath.Join(dir, "user-customizations")
	writeFile(t, filepath.Join(userCustom, "pojo.mustache.yaml"),
		"insertions:\n  - at: end\n    content: \"{{>extra.mustache}}\"\n")

	workRoot := filepath.Join(dir, "work")
	orch := newTestOrchestrator(t, workRoot)
	orch.Extractor = generatordefault.NewExtractor(
		generatordefault.NewStaticFacade("7.5.0").
			WithTemplate("spring", "pojo.mustache", "class {{className}} {}\n").
			WithTemplate("spring", "extra.mustache", "EXTRA\n"))
	orch.Resolver = resolver.New(orch.Extractor)

	spec := &models.ResolvedSpecConfig{
		SpecName:              "petstore",
		GeneratorName:         "spring",
		APIDocumentPath:       apiDoc,
		ModelPackage:          "com.example.model",
		OutputDirectory:       dir,
		UserCustomizationsDir: userCustom,
		TemplateSourceOrder:   models.AllSourceTags,
		TemplateVariables:     map[string]string{"className": "Pet"},
	}

	in := SpecInputs{Spec: spec, Sources: resolver.Sources{UserCustomizationsDir: userCustom}}
	result, err := orch.BuildSpec(context.Background(), in)
	require.NoError(t, err)

	names := make([]string, 0, len(result.TemplateReports))
	for _, tr := range result.TemplateReports {
		names = append(names, tr.LogicalName)
	}
	assert.Contains(t, names, "pojo.mustache")
	assert.Contains(t, names, "extra.mustache")

	data, err := os.ReadFile(filepath.Join(workRoot, "spring-petstore", "extra.mustache"))
	require.NoError(t, err)
	assert.Equal(t, "EXTRA\n", string(data))
}

// TestBuildSpecLoadsAndValidatesLibraryArchives wires a real library archive
// through Loader.Load and CheckCompatibility: its templates participate in
// planning and its manifest gates the build on generator compatibility.
func TestBuildSpecLoadsAndValidatesLibraryArchives(t *testing.T) {
	dir := t.TempDir()
	apiDoc := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(apiDoc, []byte("openapi: 3.0.0\n"), 0o600))

	archivePath := filepath.Join(dir, "lombok-support.jar")
	buildArchive(t, archivePath, map[string]string{
		"META-INF/openapi-library.yaml":                   "name: lombok-support\nversion: \"1.0.0\"\nsupported_generators: [\"spring\"]\nmin_generator_version: \"1.0.0\"\n",
		"META-INF/openapi-templates/spring/pojo.mustache": "class {{className}} { lombok }\n",
		"META-INF/openapi-customizations/spring/pojo.mustache.yaml": "insertions: []\n",
	})

	workRoot := filepath.Join(dir, "work")
	orch := newTestOrchestrator(t, workRoot)

	spec := &models.ResolvedSpecConfig{
		SpecName:            "petstore",
		GeneratorName:       "spring",
		APIDocumentPath:     apiDoc,
		ModelPackage:        "com.example.model",
		OutputDirectory:     dir,
		UseLibraryTemplates: true,
		UseLibraryCustomizations: true,
		TemplateSourceOrder: models.AllSourceTags,
		TemplateVariables:   map[string]string{"className": "Pet"},
	}

	in := SpecInputs{
		Spec:                spec,
		Sources:             resolver.Sources{},
		LibraryArchivePaths: []string{archivePath},
	}
	result, err := orch.BuildSpec(context.Background(), in)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(workRoot, "spring-petstore", "pojo.mustache"))
	require.NoError(t, err)
	assert.Equal(t, "class Pet { lombok }\n", string(data))
	assert.Equal(t, models.CacheMiss, result.CacheStatus)
}

// TestBuildSpecRejectsIncompatibleLibrary aborts pre-generation when a
// library's manifest declares a minimum generator version the active
// generator doesn't meet.
func TestBuildSpecRejectsIncompatibleLibrary(t *testing.T) {
	dir := t.TempDir()
	apiDoc := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(apiDoc, []byte("openapi: 3.0.0\n"), 0o600))

	archivePath := filepath.Join(dir, "needs-newer.jar")
	buildArchive(t, archivePath, map[string]string{
		"META-INF/openapi-library.yaml": "name: needs-newer\nversion: \"1.0.0\"\nsupported_generators: [\"spring\"]\nmin_generator_version: \"99.0.0\"\n",
	})

	workRoot := filepath.Join(dir, "work")
	orch := newTestOrchestrator(t, workRoot)

	spec := &models.ResolvedSpecConfig{
		SpecName:            "petstore",
		GeneratorName:       "spring",
		APIDocumentPath:     apiDoc,
		ModelPackage:        "com.example.model",
		OutputDirectory:     dir,
		UseLibraryTemplates: true,
		TemplateSourceOrder: models.AllSourceTags,
		TemplateVariables:   map[string]string{"className": "Pet"},
	}

	in := SpecInputs{
		Spec:                spec,
		Sources:             resolver.Sources{},
		LibraryArchivePaths: []string{archivePath},
	}
	_, err := orch.BuildSpec(context.Background(), in)
	assert.Error(t, err)
}

// TestApplyCustomizationsReusesSessionEntry verifies the session tier is
// actually consulted: calling applyCustomizations twice with the same base
// text and descriptor stack returns the identical cached report pointer
// rather than recomputing.
func TestApplyCustomizationsReusesSessionEntry(t *testing.T) {
	dir := t.TempDir()
	orch := newTestOrchestrator(t, filepath.Join(dir, "work"))

	desc, err := descriptor.Load([]byte("insertions:\n  - at: start\n    content: \"X\"\n"), "fixture.yaml")
	require.NoError(t, err)
	stack := []templatetext.StackEntry{{Descriptor: desc}}
	stackHashes := []string{hashutil.HashBytes(desc.Raw)}
	evalCtx := &condition.EvalCtx{}
	variables := map[string]string{}

	first, err := orch.applyCustomizations("base text", stack, stackHashes, evalCtx, variables)
	require.NoError(t, err)
	second, err := orch.applyCustomizations("base text", stack, stackHashes, evalCtx, variables)
	require.NoError(t, err)

	assert.Same(t, first.report, second.report)
	assert.Equal(t, "Xbase text", second.text)
}
