package cache

import (
	"strconv"

	"github.com/oasforge/templatecore/pkg/hashutil"
	"github.com/oasforge/templatecore/pkg/models"
)

// KeyInputs is the ordered tuple of build inputs that determines whether
// an existing working directory can be reused.
type KeyInputs struct {
	PluginVersion                  string
	GeneratorName                  string
	GeneratorVersion               string
	APIDocumentHash                string
	TemplateSourceOrder            []models.SourceTag
	ApplyPluginCustomizations      bool
	UserTemplatesTreeHash          string
	UserCustomizationsTreeHash     string
	PluginCustomizationsResourcesHash string
	LibraryManifestSetHash         string
	LibraryContentsSetHash         string
	TemplateVariables              map[string]string
	GeneratorOptions               map[string]string
}

// ComputeKey folds every input into a single SHA-256 digest via
// HashSequence over each field's own stable representation, so changing
// any single input changes the key.
func ComputeKey(in KeyInputs) string {
	order := make([]string, len(in.TemplateSourceOrder))
	for i, t := range in.TemplateSourceOrder {
		order[i] = string(t)
	}

	elements := []string{
		in.PluginVersion,
		in.GeneratorName,
		in.GeneratorVersion,
		in.APIDocumentHash,
		hashutil.HashSequence(order),
		strconv.FormatBool(in.ApplyPluginCustomizations),
		in.UserTemplatesTreeHash,
		in.UserCustomizationsTreeHash,
		in.PluginCustomizationsResourcesHash,
		in.LibraryManifestSetHash,
		in.LibraryContentsSetHash,
		hashutil.HashOrderedMap(in.TemplateVariables),
		hashutil.HashOrderedMap(in.GeneratorOptions),
	}
	return hashutil.HashSequence(elements)
}

// HashTree hashes every regular file under dir (relative path -> file
// hash, folded via HashOrderedMap) so directory contents can participate
// in the cache key tuple. An empty or missing dir hashes to a fixed
// constant for an empty ordered map.
func HashTree(dir string) (string, error) {
	if dir == "" {
		return hashutil.HashOrderedMap(nil), nil
	}
	files, err := walkFiles(dir)
	if err != nil {
		return "", err
	}
	hashes := make(map[string]string, len(files))
	for rel, abs := range files {
		h, err := hashutil.HashFile(abs)
		if err != nil {
			return "", err
		}
		hashes[rel] = h
	}
	return hashutil.HashOrderedMap(hashes), nil
}
