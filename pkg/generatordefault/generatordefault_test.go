package generatordefault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticFacadeLookup(t *testing.T) {
	f := NewStaticFacade("4.3.0").WithTemplate("spring", "pojo.mustache", "HELLO")
	text, found, err := f.TemplateDefault("spring", "pojo.mustache")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "HELLO", text)

	_, found, err = f.TemplateDefault("spring", "missing.mustache")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExtractorCachesLookups(t *testing.T) {
	f := NewStaticFacade("4.3.0").WithTemplate("spring", "pojo.mustache", "HELLO")
	e := NewExtractor(f)

	text1, found1, err := e.Load("spring", "pojo.mustache")
	require.NoError(t, err)
	text2, found2, err := e.Load("spring", "pojo.mustache")
	require.NoError(t, err)

	assert.Equal(t, text1, text2)
	assert.Equal(t, found1, found2)
}

func TestExtractorGeneratorVersion(t *testing.T) {
	e := NewExtractor(NewStaticFacade("4.3.0"))
	v, err := e.GeneratorVersion()
	require.NoError(t, err)
	assert.Equal(t, "4.3.0", v)
}

func TestExtractorCachesNotFound(t *testing.T) {
	f := NewStaticFacade("4.3.0")
	e := NewExtractor(f)
	_, found, err := e.Load("spring", "missing.mustache")
	require.NoError(t, err)
	assert.False(t, found)
}
