// Package library implements the Library Loader: it reads template and
// customization bundles out of archive dependencies on the resolved
// classpath, validates each library's compatibility manifest, and
// extracts contents into the global cache, once per archive, for reuse
// across builds.
package library

import (
	"archive/zip"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	coreerrors "github.com/oasforge/templatecore/pkg/errors"
	"github.com/oasforge/templatecore/pkg/hashutil"
	"github.com/oasforge/templatecore/pkg/models"
	"github.com/oasforge/templatecore/pkg/utils"
	"gopkg.in/yaml.v3"
)

const (
	manifestEntryPath      = "META-INF/openapi-library.yaml"
	templatesEntryPrefix   = "META-INF/openapi-templates/"
	customizationsEntryPfx = "META-INF/openapi-customizations/"
)

// LibrarySource abstracts how the resolved classpath of archive
// dependencies is discovered, so the Loader does not depend on any
// particular build tool's dependency-resolution API.
type LibrarySource interface {
	ArchivePaths() ([]string, error)
}

// StaticLibrarySource is a LibrarySource over a fixed, caller-ordered
// list of archive paths — the dependency order referenced by the
// resolver's precedence rules.
type StaticLibrarySource []string

func (s StaticLibrarySource) ArchivePaths() ([]string, error) {
	return []string(s), nil
}

// Loaded is one library's contribution for the active generator: its
// manifest plus the directories its templates/customizations were
// extracted to (empty if the library does not target this generator).
type Loaded struct {
	ArchivePath       string
	ArchiveHash       string
	Manifest          models.LibraryManifest
	TemplatesDir      string
	CustomizationsDir string
	AppliesToGenerator bool
}

// Loader extracts and caches library archive contents under
// <globalCacheDir>/library-extracts/<archive-hash>/.
type Loader struct {
	globalCacheDir string

	mu         sync.Mutex
	inProgress map[string]*sync.WaitGroup
}

// NewLoader builds a Loader rooted at globalCacheDir (the tool's
// `~/.<tool>-cache/` directory).
func NewLoader(globalCacheDir string) *Loader {
	return &Loader{globalCacheDir: globalCacheDir, inProgress: map[string]*sync.WaitGroup{}}
}

// Load reads archivePath's manifest, checks it against generatorName, and
// extracts its templates/customizations for that generator if not already
// cached. Concurrent calls for the same archive hash coordinate so
// extraction happens exactly once.
func (l *Loader) Load(archivePath, generatorName string) (*Loaded, error) {
	archiveHash, err := hashutil.HashFile(archivePath)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIoError, err, "hashing library archive %s", archivePath)
	}

	wg, owner := l.claim(archiveHash)
	if !owner {
		wg.Wait()
	}

	extractDir := filepath.Join(l.globalCacheDir, "library-extracts", archiveHash)
	manifestPath := filepath.Join(extractDir, "META-INF", "openapi-library.yaml")

	if owner {
		defer l.release(archiveHash, wg)
		if !fileExists(manifestPath) {
			if err := l.extract(archivePath, extractDir); err != nil {
				return nil, err
			}
		}
	}

	raw, err := utils.SafeReadFile(manifestPath)
	if err != nil {
		return nil, coreerrors.New(coreerrors.KindLibraryManifestMissing, "archive %s has no %s", archivePath, manifestEntryPath)
	}
	var manifest models.LibraryManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindSchemaError, err, "parsing library manifest for %s", archivePath)
	}

	loaded := &Loaded{
		ArchivePath: archivePath,
		ArchiveHash: archiveHash,
		Manifest:    manifest,
	}

	if !manifest.SupportsGenerator(generatorName) {
		return loaded, nil
	}
	loaded.AppliesToGenerator = true
	loaded.TemplatesDir = filepath.Join(extractDir, "META-INF", "openapi-templates", generatorName)
	loaded.CustomizationsDir = filepath.Join(extractDir, "META-INF", "openapi-customizations", generatorName)
	return loaded, nil
}

func (l *Loader) claim(archiveHash string) (*sync.WaitGroup, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if wg, ok := l.inProgress[archiveHash]; ok {
		return wg, false
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	l.inProgress[archiveHash] = wg
	return wg, true
}

func (l *Loader) release(archiveHash string, wg *sync.WaitGroup) {
	l.mu.Lock()
	delete(l.inProgress, archiveHash)
	l.mu.Unlock()
	wg.Done()
}

func (l *Loader) extract(archivePath, extractDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIoError, err, "opening library archive %s", archivePath)
	}
	defer r.Close()

	foundManifest := false
	for _, f := range r.File {
		name := path.Clean(f.Name)
		if name == manifestEntryPath {
			foundManifest = true
		}
		if !(name == manifestEntryPath || strings.HasPrefix(name, templatesEntryPrefix) || strings.HasPrefix(name, customizationsEntryPfx)) {
			continue
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if err := extractEntry(f, extractDir, name); err != nil {
			return err
		}
	}
	if !foundManifest {
		return coreerrors.New(coreerrors.KindLibraryManifestMissing, "archive %s has no %s", archivePath, manifestEntryPath)
	}
	return nil
}

func extractEntry(f *zip.File, extractDir, cleanName string) error {
	destPath := filepath.Join(extractDir, filepath.FromSlash(cleanName))
	rc, err := f.Open()
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIoError, err, "reading archive entry %s", cleanName)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindIoError, err, "reading archive entry %s", cleanName)
	}
	if err := utils.SafeMkdirAll(filepath.Dir(destPath)); err != nil {
		return err
	}
	if err := utils.SafeWriteFile(destPath, data); err != nil {
		return err
	}
	return nil
}

func fileExists(path string) bool {
	_, err := utils.SafeReadFile(path)
	return err == nil
}

// CheckCompatibility enforces the manifest's min/max generator version and
// min plugin version constraints against the active environment, raising
// LibraryIncompatible on violation.
func CheckCompatibility(manifest models.LibraryManifest, generatorVersion, pluginVersion string) error {
	gv, err := semver.NewVersion(generatorVersion)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindLibraryIncompatible, err, "library %s: cannot parse generator version %q", manifest.Name, generatorVersion)
	}
	if manifest.MinGeneratorVersion != "" {
		min, err := semver.NewVersion(manifest.MinGeneratorVersion)
		if err == nil && gv.LessThan(min) {
			return coreerrors.New(coreerrors.KindLibraryIncompatible, "library %s requires generator >= %s, got %s", manifest.Name, manifest.MinGeneratorVersion, generatorVersion)
		}
	}
	if manifest.MaxGeneratorVersion != "" {
		max, err := semver.NewVersion(manifest.MaxGeneratorVersion)
		if err == nil && gv.GreaterThan(max) {
			return coreerrors.New(coreerrors.KindLibraryIncompatible, "library %s requires generator <= %s, got %s", manifest.Name, manifest.MaxGeneratorVersion, generatorVersion)
		}
	}
	if manifest.MinPluginVersion != "" && pluginVersion != "" {
		pv, err := semver.NewVersion(pluginVersion)
		if err == nil {
			minPlugin, err := semver.NewVersion(manifest.MinPluginVersion)
			if err == nil && pv.LessThan(minPlugin) {
				return coreerrors.New(coreerrors.KindLibraryIncompatible, "library %s requires plugin >= %s, got %s", manifest.Name, manifest.MinPluginVersion, pluginVersion)
			}
		}
	}
	return nil
}
