package require

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Engine implements require(path) on top of a Resolver. It owns the
// registered-module table and the result cache for one runtime instance.
//
// Engine is not safe for concurrent use. The host runtime runs one
// execution context at a time; a suspended require is completed through
// its Suspension.
type Engine[V any] struct {
	resolver Resolver[V]
	logger   zerolog.Logger

	// cache maps a module's cache key to its completed result.
	cache map[string]V
	// registered maps lower-cased "@..." paths to pre-supplied results.
	registered map[string]V
}

type options struct {
	logger zerolog.Logger
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger used for debug tracing of resolutions.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates an Engine bound to r.
func New[V any](r Resolver[V], opts ...Option) *Engine[V] {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[V]{
		resolver:   r,
		logger:     o.logger,
		cache:      make(map[string]V),
		registered: make(map[string]V),
	}
}

// Suspension is a require whose loader reported ErrPending. The calling
// execution context must wait until the module result is available and
// then call Resume exactly once.
type Suspension[V any] struct {
	// Path is the path passed to require.
	Path string
	// Module is the module being loaded.
	Module Module

	engine  *Engine[V]
	resumed bool
}

// Resume completes the suspended require with the values the module
// produced. Exactly one value is required; it is cached under the module's
// cache key and returned.
func (s *Suspension[V]) Resume(values ...V) (V, error) {
	if s.resumed {
		var zero V
		return zero, newError(KindContract, "require for %s was already resumed", s.Module.ChunkName)
	}
	s.resumed = true
	s.engine.logger.Debug().
		Str("chunk", s.Module.ChunkName).
		Int("results", len(values)).
		Msg("resuming suspended require")
	return s.engine.complete(s.Module, values)
}

// Require resolves path on behalf of requirer and returns the module's
// result. When the loader reports ErrPending the returned Suspension is
// non-nil, the value is the zero value, and the caller must suspend until
// it can call Suspension.Resume.
func (e *Engine[V]) Require(ctx context.Context, requirer, path string) (V, *Suspension[V], error) {
	var zero V

	if v, ok := e.lookupRegistered(path); ok {
		e.logger.Debug().Str("path", path).Msg("registered module")
		return v, nil, nil
	}

	mod, err := Resolve(e.resolver, requirer, path)
	if err != nil {
		return zero, nil, err
	}

	if v, ok := e.cache[mod.CacheKey]; ok {
		e.logger.Debug().Str("path", path).Str("cache_key", mod.CacheKey).Msg("cache hit")
		return v, nil, nil
	}

	e.logger.Debug().
		Str("path", path).
		Str("chunk", mod.ChunkName).
		Str("load_name", mod.LoadName).
		Msg("loading module")

	values, err := e.resolver.Load(ctx, path, mod.ChunkName, mod.LoadName)
	switch {
	case errors.Is(err, ErrPending):
		if len(values) != 0 {
			return zero, nil, newError(KindContract, "loader cannot return values when require yields")
		}
		e.logger.Debug().Str("chunk", mod.ChunkName).Msg("require suspended")
		return zero, &Suspension[V]{Path: path, Module: mod, engine: e}, nil
	case err != nil:
		return zero, nil, &Error{
			Kind: KindLoad,
			Msg:  fmt.Sprintf("error loading %s: %v", mod.ChunkName, err),
			Err:  err,
		}
	}

	v, err := e.complete(mod, values)
	return v, nil, err
}

// Resolve navigates l to the module path names from requirer and returns
// its descriptor without loading it.
func Resolve(l Locator, requirer, path string) (Module, error) {
	if !l.IsRequireAllowed(requirer) {
		return Module{}, newError(KindContract, "require is not supported in this context")
	}

	if err := Navigate(l, requirer, path); err != nil {
		return Module{}, err
	}

	mod, ok := l.Module()
	if !ok {
		return Module{}, newError(KindContract, "no module present at resolved path")
	}
	switch {
	case mod.ChunkName == "":
		return Module{}, newError(KindContract, "could not get chunk name for module")
	case mod.LoadName == "":
		return Module{}, newError(KindContract, "could not get load name for module")
	case mod.CacheKey == "":
		return Module{}, newError(KindContract, "could not get cache key for module")
	}
	return mod, nil
}

// complete applies the single-result rule and caches the result.
func (e *Engine[V]) complete(mod Module, values []V) (V, error) {
	if len(values) != 1 {
		var zero V
		return zero, newError(KindContract, "module must return a single value")
	}
	e.cache[mod.CacheKey] = values[0]
	return values[0], nil
}

func (e *Engine[V]) lookupRegistered(path string) (V, bool) {
	if !strings.HasPrefix(path, "@") {
		var zero V
		return zero, false
	}
	v, ok := e.registered[strings.ToLower(path)]
	return v, ok
}

// Register pre-seeds the result for an exact alias path. Registered
// results bypass navigation and the cache. Matching is case-insensitive.
func (e *Engine[V]) Register(path string, value V) error {
	if !strings.HasPrefix(path, "@") {
		return newError(KindPath, "path must begin with '@'")
	}
	e.registered[strings.ToLower(path)] = value
	return nil
}

// Cached returns the cached result for cacheKey.
func (e *Engine[V]) Cached(cacheKey string) (V, bool) {
	v, ok := e.cache[cacheKey]
	return v, ok
}

// Invalidate removes one entry from the result cache.
func (e *Engine[V]) Invalidate(cacheKey string) {
	e.logger.Debug().Str("cache_key", cacheKey).Msg("invalidating cache entry")
	delete(e.cache, cacheKey)
}

// ClearCache drops every cached result. Registered modules are kept.
func (e *Engine[V]) ClearCache() {
	e.logger.Debug().Int("entries", len(e.cache)).Msg("clearing require cache")
	e.cache = make(map[string]V)
}
