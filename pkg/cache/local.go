package cache

import (
	"path/filepath"
	"strings"

	"github.com/oasforge/templatecore/pkg/hashutil"
	"github.com/oasforge/templatecore/pkg/utils"
)

const (
	cacheKeyFile      = ".cache-key"
	contentHashesFile = ".content-hashes"
	sourcePlanFile    = ".source-plan"
)

// Local is the per-working-directory cache tier: the `.cache-key`,
// `.content-hashes`, and `.source-plan` marker files alongside the
// materialized templates.
type Local struct {
	WorkingDirectory string
}

// NewLocal builds a Local cache rooted at workDir.
func NewLocal(workDir string) *Local {
	return &Local{WorkingDirectory: workDir}
}

func (l *Local) path(name string) string {
	return filepath.Join(l.WorkingDirectory, name)
}

// ReadCacheKey reads the recorded cache key, if any.
func (l *Local) ReadCacheKey() (string, bool, error) {
	data, err := utils.SafeReadFile(l.path(cacheKeyFile))
	if err != nil {
		return "", false, nil
	}
	return strings.TrimSpace(string(data)), true, nil
}

// ReadContentHashes reads the recorded logical_name -> sha256 map.
func (l *Local) ReadContentHashes() (map[string]string, error) {
	m, err := readProperties(l.path(contentHashesFile))
	if err != nil {
		return map[string]string{}, nil
	}
	return m, nil
}

// ReadSourcePlan reads the recorded logical_name -> provenance trail map.
func (l *Local) ReadSourcePlan() (map[string]string, error) {
	m, err := readProperties(l.path(sourcePlanFile))
	if err != nil {
		return map[string]string{}, nil
	}
	return m, nil
}

// IsValid reports whether the working directory can be reused: the
// recorded cache key matches expectedKey and every file listed in
// .content-hashes still matches its recorded hash on disk.
func (l *Local) IsValid(expectedKey string) (bool, error) {
	recordedKey, ok, err := l.ReadCacheKey()
	if err != nil {
		return false, err
	}
	if !ok || recordedKey != expectedKey {
		return false, nil
	}
	hashes, err := l.ReadContentHashes()
	if err != nil {
		return false, err
	}
	for logicalName, expectedHash := range hashes {
		actual, err := hashutil.HashFile(l.path(logicalName))
		if err != nil {
			return false, nil
		}
		if actual != expectedHash {
			return false, nil
		}
	}
	return true, nil
}

// Commit writes .source-plan, .content-hashes, and .cache-key atomically,
// in that order, so .cache-key (the last file written) is the single
// signal of build completeness — matching the cancellation contract that
// a partially-completed build never presents as valid.
func (l *Local) Commit(sourcePlan, contentHashes map[string]string, cacheKey string) error {
	if err := writePropertiesAtomic(l.path(sourcePlanFile), sourcePlan); err != nil {
		return err
	}
	if err := writePropertiesAtomic(l.path(contentHashesFile), contentHashes); err != nil {
		return err
	}
	return utils.WriteFileAtomic(l.path(cacheKeyFile), []byte(cacheKey+"\n"))
}

// Clean removes every materialized file except the cache-key placeholder,
// preparing the directory for a rebuild on cache miss.
func (l *Local) Clean() error {
	entries, err := readDir(l.WorkingDirectory)
	if err != nil {
		return nil
	}
	for _, name := range entries {
		if name == cacheKeyFile {
			continue
		}
		if err := removeAll(filepath.Join(l.WorkingDirectory, name)); err != nil {
			return err
		}
	}
	return nil
}
