// Package container provides a small dependency injection container for
// wiring the orchestration core's services together. Every service is
// registered as a lazily-created singleton, mirroring the container
// pattern the rest of this codebase's sibling tools use.
package container

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oasforge/templatecore/pkg/cache"
	"github.com/oasforge/templatecore/pkg/config"
	"github.com/oasforge/templatecore/pkg/generatordefault"
	"github.com/oasforge/templatecore/pkg/library"
	"github.com/oasforge/templatecore/pkg/logger"
	"github.com/oasforge/templatecore/pkg/orchestrator"
	"github.com/oasforge/templatecore/pkg/resolver"
)

// ServiceFactory creates a service instance, or returns an error if
// creation fails. Factories run lazily on first GetService; when several
// goroutines request the same uncached service at once each may run the
// factory, and every caller receives the first instance cached.
type ServiceFactory func() (interface{}, error)

// Container manages service registration, lazy creation, and singleton
// caching. All methods are safe for concurrent use.
type Container struct {
	mu           sync.RWMutex
	factories    map[string]ServiceFactory
	serviceCache map[string]interface{}

	pluginVersion string
	generatorFacade generatordefault.Facade
}

// Options configures the services the container wires together.
type Options struct {
	PluginVersion   string
	GeneratorFacade generatordefault.Facade
	GlobalCacheDir  string
	LogComponent    string
}

// New builds a Container with its service factories registered but not
// yet instantiated.
func New(opts Options) *Container {
	if opts.GlobalCacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		opts.GlobalCacheDir = filepath.Join(home, ".templatecore-cache")
	}
	if opts.LogComponent == "" {
		opts.LogComponent = "templatecore"
	}

	c := &Container{
		factories:       make(map[string]ServiceFactory),
		serviceCache:    make(map[string]interface{}),
		pluginVersion:   opts.PluginVersion,
		generatorFacade: opts.GeneratorFacade,
	}
	c.registerAll(opts)
	return c
}

func (c *Container) registerAll(opts Options) {
	c.register("logger", func() (interface{}, error) {
		return logger.New(logger.DefaultConfig(opts.LogComponent)), nil
	})
	c.register("session", func() (interface{}, error) {
		return cache.NewSession(), nil
	})
	c.register("globalCache", func() (interface{}, error) {
		return cache.NewGlobal(opts.GlobalCacheDir), nil
	})
	c.register("validator", func() (interface{}, error) {
		return config.New(), nil
	})
	c.register("extractor", func() (interface{}, error) {
		if c.generatorFacade == nil {
			return nil, fmt.Errorf("container: no generator facade configured")
		}
		return generatordefault.NewExtractor(c.generatorFacade), nil
	})
	c.register("libraryLoader", func() (interface{}, error) {
		return library.NewLoader(opts.GlobalCacheDir), nil
	})
	c.register("resolver", func() (interface{}, error) {
		extractor, err := c.GetExtractor()
		if err != nil {
			return nil, err
		}
		return resolver.New(extractor), nil
	})
	c.register("orchestrator", func() (interface{}, error) {
		return c.buildOrchestrator()
	})
}

func (c *Container) buildOrchestrator() (interface{}, error) {
	session, err := c.GetService("session")
	if err != nil {
		return nil, err
	}
	global, err := c.GetService("globalCache")
	if err != nil {
		return nil, err
	}
	validator, err := c.GetService("validator")
	if err != nil {
		return nil, err
	}
	res, err := c.GetService("resolver")
	if err != nil {
		return nil, err
	}
	extractor, err := c.GetService("extractor")
	if err != nil {
		return nil, err
	}
	loader, err := c.GetService("libraryLoader")
	if err != nil {
		return nil, err
	}
	log, err := c.GetService("logger")
	if err != nil {
		return nil, err
	}

	workRoot, werr := os.Getwd()
	if werr != nil {
		workRoot = "."
	}
	workRoot = filepath.Join(workRoot, "template-work")

	return orchestrator.New(
		session.(*cache.Session), global.(*cache.Global), validator.(*config.Validator),
		res.(*resolver.Resolver), extractor.(*generatordefault.Extractor), loader.(*library.Loader),
		log.(*logger.Logger), c.pluginVersion, workRoot,
	), nil
}

func (c *Container) register(name string, factory ServiceFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// GetService retrieves (creating if necessary) the named service.
func (c *Container) GetService(name string) (interface{}, error) {
	c.mu.RLock()
	if cached, ok := c.serviceCache[name]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	factory, ok := c.factories[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("container: service %q not registered", name)
	}

	service, err := factory()
	if err != nil {
		return nil, fmt.Errorf("container: failed to create service %q: %w", name, err)
	}

	c.mu.Lock()
	if existing, ok := c.serviceCache[name]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.serviceCache[name] = service
	c.mu.Unlock()
	return service, nil
}

// GetOrchestrator returns the fully-wired Orchestrator singleton.
func (c *Container) GetOrchestrator() (*orchestrator.Orchestrator, error) {
	s, err := c.GetService("orchestrator")
	if err != nil {
		return nil, err
	}
	return s.(*orchestrator.Orchestrator), nil
}

// GetValidator returns the Configuration Validator singleton.
func (c *Container) GetValidator() (*config.Validator, error) {
	s, err := c.GetService("validator")
	if err != nil {
		return nil, err
	}
	return s.(*config.Validator), nil
}

// GetResolver returns the Template Resolver singleton.
func (c *Container) GetResolver() (*resolver.Resolver, error) {
	s, err := c.GetService("resolver")
	if err != nil {
		return nil, err
	}
	return s.(*resolver.Resolver), nil
}

// GetExtractor returns the generator-default Extractor singleton.
func (c *Container) GetExtractor() (*generatordefault.Extractor, error) {
	s, err := c.GetService("extractor")
	if err != nil {
		return nil, err
	}
	return s.(*generatordefault.Extractor), nil
}

// GetLibraryLoader returns the Library Loader singleton.
func (c *Container) GetLibraryLoader() (*library.Loader, error) {
	s, err := c.GetService("libraryLoader")
	if err != nil {
		return nil, err
	}
	return s.(*library.Loader), nil
}

// GetLogger returns the Logger singleton.
func (c *Container) GetLogger() (*logger.Logger, error) {
	s, err := c.GetService("logger")
	if err != nil {
		return nil, err
	}
	return s.(*logger.Logger), nil
}

// ServiceExists reports whether name has a registered factory.
func (c *Container) ServiceExists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.factories[name]
	return ok
}

// ClearServiceCache drops every cached singleton, forcing recreation on
// next access.
func (c *Container) ClearServiceCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serviceCache = make(map[string]interface{})
}
