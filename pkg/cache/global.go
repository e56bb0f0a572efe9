package cache

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/oasforge/templatecore/pkg/utils"
)

const templateHashesFile = "template-hashes.properties"

// Global is the cross-project cache rooted at the user's home directory
// (`~/.<tool>-cache/`): a persistent map from working-directory cache key
// to the sorted set of content hashes it produced, enabling fast
// "nothing changed" detection across separate project checkouts.
type Global struct {
	Dir string
	mu  sync.Mutex
}

// NewGlobal builds a Global cache rooted at dir (the tool's cache
// directory, not its parent home directory).
func NewGlobal(dir string) *Global {
	return &Global{Dir: dir}
}

func (g *Global) path() string {
	return filepath.Join(g.Dir, templateHashesFile)
}

// Get returns the sorted content-hash list recorded for cacheKey, if any.
func (g *Global) Get(cacheKey string) ([]string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, err := readProperties(g.path())
	if err != nil {
		return nil, false, nil
	}
	raw, ok := m[cacheKey]
	if !ok {
		return nil, false, nil
	}
	if raw == "" {
		return []string{}, true, nil
	}
	return strings.Split(raw, ","), true, nil
}

// Put records the sorted content-hash list for cacheKey, persisting the
// whole map via write-to-temp-then-rename.
func (g *Global) Put(cacheKey string, contentHashes []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, err := readProperties(g.path())
	if err != nil {
		m = map[string]string{}
	}
	sorted := append([]string(nil), contentHashes...)
	sort.Strings(sorted)
	m[cacheKey] = strings.Join(sorted, ",")
	return utils.WriteFileAtomic(g.path(), encodeProperties(m))
}

// LibraryExtractsDir returns the directory extracted library archives are
// cached under, keyed by archive hash: the same layout pkg/library's Loader
// extracts into when rooted at the same directory.
func (g *Global) LibraryExtractsDir() string {
	return filepath.Join(g.Dir, "library-extracts")
}
