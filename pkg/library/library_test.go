package library

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/oasforge/templatecore/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func TestLoadExtractsManifestAndTemplates(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "lombok-support.jar")
	buildArchive(t, archivePath, map[string]string{
		"META-INF/openapi-library.yaml":                            "name: lombok-support\nversion: \"1.0.0\"\nsupported_generators: [\"spring\"]\n",
		"META-INF/openapi-templates/spring/pojo.mustache":          "class {{classname}} {}",
		"META-INF/openapi-customizations/spring/pojo.mustache.yaml": "insertions: []\n",
	})

	cacheDir := filepath.Join(dir, "cache")
	loader := NewLoader(cacheDir)

	loaded, err := loader.Load(archivePath, "spring")
	require.NoError(t, err)
	assert.Equal(t, "lombok-support", loaded.Manifest.Name)
	assert.True(t, loaded.AppliesToGenerator)

	data, err := os.ReadFile(filepath.Join(loaded.TemplatesDir, "pojo.mustache"))
	require.NoError(t, err)
	assert.Equal(t, "class {{classname}} {}", string(data))
}

func TestLoadRejectsMissingManifest(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "bad.jar")
	buildArchive(t, archivePath, map[string]string{
		"META-INF/openapi-templates/spring/pojo.mustache": "x",
	})

	loader := NewLoader(filepath.Join(dir, "cache"))
	_, err := loader.Load(archivePath, "spring")
	assert.Error(t, err)
}

func TestLoadReportsGeneratorNotSupported(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "mobile-only.jar")
	buildArchive(t, archivePath, map[string]string{
		"META-INF/openapi-library.yaml": "name: mobile-only\nversion: \"1.0.0\"\nsupported_generators: [\"kotlin\"]\n",
	})

	loader := NewLoader(filepath.Join(dir, "cache"))
	loaded, err := loader.Load(archivePath, "spring")
	require.NoError(t, err)
	assert.False(t, loaded.AppliesToGenerator)
}

func TestLoadReusesExtractionOnSecondCall(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "lib.jar")
	buildArchive(t, archivePath, map[string]string{
		"META-INF/openapi-library.yaml": "name: lib\nversion: \"1.0.0\"\n",
	})

	cacheDir := filepath.Join(dir, "cache")
	loader := NewLoader(cacheDir)

	first, err := loader.Load(archivePath, "spring")
	require.NoError(t, err)
	second, err := loader.Load(archivePath, "spring")
	require.NoError(t, err)
	assert.Equal(t, first.ArchiveHash, second.ArchiveHash)
}

func TestCheckCompatibilityRejectsTooOldGenerator(t *testing.T) {
	manifest := models.LibraryManifest{Name: "lib", Version: "1.0.0", MinGeneratorVersion: "5.0.0"}
	err := CheckCompatibility(manifest, "4.0.0", "1.0.0")
	assert.Error(t, err)
}

func TestCheckCompatibilityAcceptsInRangeGenerator(t *testing.T) {
	manifest := models.LibraryManifest{Name: "lib", Version: "1.0.0", MinGeneratorVersion: "4.0.0", MaxGeneratorVersion: "6.0.0"}
	err := CheckCompatibility(manifest, "5.0.0", "1.0.0")
	assert.NoError(t, err)
}
