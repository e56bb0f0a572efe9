package config

import (
	coreerrors "github.com/oasforge/templatecore/pkg/errors"
	"github.com/oasforge/templatecore/pkg/models"
	"github.com/oasforge/templatecore/pkg/utils"
	"gopkg.in/yaml.v3"
)

// LoadBuildConfig reads and parses the YAML build document a host build
// tool (or the CLI harness) provides, shaped as described in SPEC_FULL §3.
func LoadBuildConfig(path string) (*models.BuildConfig, error) {
	raw, err := utils.SafeReadFile(path)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIoError, err, "reading build config %s", path)
	}
	var build models.BuildConfig
	if err := yaml.Unmarshal(raw, &build); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindSchemaError, err, "parsing build config %s", path)
	}
	return &build, nil
}

// ResolveSpecs merges each spec override atop the build's defaults.
func ResolveSpecs(build *models.BuildConfig) []*models.ResolvedSpecConfig {
	out := make([]*models.ResolvedSpecConfig, len(build.Specs))
	for i, override := range build.Specs {
		out[i] = override.Resolve(build.Defaults)
	}
	return out
}
