// Package generatordefault loads base template text from the downstream
// code generator's own embedded resources, through a narrow facade that
// replaces what would otherwise be reflective scanning of generator
// internals.
package generatordefault

import "sync"

// Facade is the two-operation interface the orchestration core needs
// from the downstream code generator: a way to fetch one named template's
// default text, and a way to learn the generator's own version for
// GeneratorVersion condition checks.
type Facade interface {
	TemplateDefault(generatorName, logicalName string) (string, bool, error)
	GeneratorVersion() (string, error)
}

// StaticFacade is an in-memory Facade backed by a fixed
// generator -> logical name -> text table. It stands in for the real
// generator's embedded-resource API in tests and in the CLI harness's
// offline mode.
type StaticFacade struct {
	Version   string
	Templates map[string]map[string]string
}

// NewStaticFacade builds a StaticFacade for the given generator version.
func NewStaticFacade(version string) *StaticFacade {
	return &StaticFacade{Version: version, Templates: map[string]map[string]string{}}
}

// WithTemplate registers a default template body, returning the receiver
// for chaining.
func (f *StaticFacade) WithTemplate(generatorName, logicalName, text string) *StaticFacade {
	if f.Templates[generatorName] == nil {
		f.Templates[generatorName] = map[string]string{}
	}
	f.Templates[generatorName][logicalName] = text
	return f
}

func (f *StaticFacade) TemplateDefault(generatorName, logicalName string) (string, bool, error) {
	gen, ok := f.Templates[generatorName]
	if !ok {
		return "", false, nil
	}
	text, ok := gen[logicalName]
	return text, ok, nil
}

func (f *StaticFacade) GeneratorVersion() (string, error) {
	return f.Version, nil
}

// Extractor wraps a Facade with a process-lifetime cache so repeated
// lookups of the same (generator, logical name) pair cost one facade call.
type Extractor struct {
	facade Facade
	mu     sync.Mutex
	cache  map[string]cacheEntry
}

type cacheEntry struct {
	text  string
	found bool
}

// NewExtractor builds an Extractor over facade.
func NewExtractor(facade Facade) *Extractor {
	return &Extractor{facade: facade, cache: map[string]cacheEntry{}}
}

// Load returns the named template's default text, caching the result
// (including "not found") for the process lifetime.
func (e *Extractor) Load(generatorName, logicalName string) (string, bool, error) {
	key := generatorName + "\x00" + logicalName
	e.mu.Lock()
	if entry, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return entry.text, entry.found, nil
	}
	e.mu.Unlock()

	text, found, err := e.facade.TemplateDefault(generatorName, logicalName)
	if err != nil {
		return "", false, err
	}

	e.mu.Lock()
	e.cache[key] = cacheEntry{text: text, found: found}
	e.mu.Unlock()
	return text, found, nil
}

// GeneratorVersion delegates to the underlying facade.
func (e *Extractor) GeneratorVersion() (string, error) {
	return e.facade.GeneratorVersion()
}
