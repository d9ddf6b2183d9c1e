package conductor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sync"
)

// ModuleLoader resolves a handler module, addressed by file path, to its
// single renderer entry point.
type ModuleLoader interface {
	Load(path string) (Renderer, error)
}

// Registry is a ModuleLoader backed by explicit registration. A module
// registers its one renderer under its own file path, usually from init:
//
//	func init() {
//		conductor.RegisterRenderer("renderers/random.go", RandomFruit)
//	}
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Renderer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Renderer)}
}

// DefaultRegistry is the registry used by RegisterRenderer and by routers
// created without WithLoader.
var DefaultRegistry = NewRegistry()

// RegisterRenderer registers fn as the entry point of the module at path in
// DefaultRegistry. It panics when the module already has an entry point.
func RegisterRenderer(path string, fn Renderer) {
	if err := DefaultRegistry.Register(path, fn); err != nil {
		panic(err)
	}
}

// Register records fn as the entry point of the module at path. A module
// has exactly one entry point.
func (r *Registry) Register(path string, fn Renderer) error {
	if fn == nil {
		return fmt.Errorf("conductor: register %s: nil renderer", path)
	}
	key, err := moduleKey(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[key]; exists {
		return fmt.Errorf("conductor: module %s already has a renderer registered", path)
	}
	r.modules[key] = fn
	return nil
}

// Load implements ModuleLoader.
func (r *Registry) Load(path string) (Renderer, error) {
	key, err := moduleKey(path)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	fn, ok := r.modules[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("conductor: no renderer registered for %s: %w", path, ErrHandlerNotFound)
	}
	return fn, nil
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// PluginSymbol is the symbol a renderer plugin must export.
const PluginSymbol = "Render"

// PluginLoader loads renderers from Go plugins (.so files built with
// -buildmode=plugin). The plugin exports
//
//	func Render(*conductor.Context) error
type PluginLoader struct {
	// Symbol overrides PluginSymbol.
	Symbol string
}

// Load implements ModuleLoader.
func (l PluginLoader) Load(path string) (Renderer, error) {
	if filepath.Ext(path) != ".so" {
		return nil, fmt.Errorf("conductor: %s is not a plugin: %w", path, ErrHandlerNotFound)
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("conductor: open plugin %s: %w", path, err)
	}

	symbol := l.Symbol
	if symbol == "" {
		symbol = PluginSymbol
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("conductor: plugin %s: %w: %v", path, ErrHandlerNotFound, err)
	}

	switch fn := sym.(type) {
	case func(*Context) error:
		return fn, nil
	case *Renderer:
		return *fn, nil
	case *func(*Context) error:
		return *fn, nil
	default:
		return nil, fmt.Errorf("conductor: plugin %s: symbol %s has type %T: %w", path, symbol, sym, ErrHandlerNotFound)
	}
}

// ChainLoader tries each loader in order. A loader answering
// ErrHandlerNotFound passes the module on to the next one.
type ChainLoader []ModuleLoader

// Load implements ModuleLoader.
func (c ChainLoader) Load(path string) (Renderer, error) {
	for _, l := range c {
		fn, err := l.Load(path)
		if err == nil {
			return fn, nil
		}
		if !errors.Is(err, ErrHandlerNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("conductor: no renderer entry point in %s: %w", path, ErrHandlerNotFound)
}

// defaultLoader consults explicit registrations first, then plugins.
func defaultLoader() ModuleLoader {
	return ChainLoader{DefaultRegistry, PluginLoader{}}
}

// loadModule resolves path, requires it to exist and asks loader for the
// module's entry point.
func loadModule(loader ModuleLoader, path string) (Renderer, error) {
	abs, err := moduleKey(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("conductor: renderer file %s not found: %w", path, ErrFileNotFound)
	}
	return loader.Load(abs)
}

func moduleKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("conductor: resolve %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}
