// Package runtime embeds a Risor VM whose scripts load each other through
// require. Module files are resolved with the filesystem resolver and
// cached by the require engine.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/rs/zerolog"

	"github.com/jward/tether/internal/fsresolver"
	"github.com/jward/tether/internal/require"
)

// ScriptExtension is the module file extension used by the runtime.
const ScriptExtension = ".risor"

// Runtime runs Risor scripts from an fs.FS and gives each of them a
// require builtin. A Runtime runs one top-level script at a time.
type Runtime struct {
	fsys     fs.FS
	resolver *fsresolver.Resolver
	engine   *require.Engine[object.Object]
	logger   zerolog.Logger
	async    bool

	// mu serializes engine access when modules load on their own
	// goroutines.
	mu sync.Mutex
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger routes require tracing and the script-level log global to l.
func WithLogger(l zerolog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithAsyncLoads makes every module load on its own goroutine. The
// requiring script suspends until the module finishes and is then resumed
// with its result.
func WithAsyncLoads() RuntimeOption {
	return func(r *Runtime) {
		r.async = true
	}
}

// NewRuntime creates a Runtime that loads modules from fsys.
func NewRuntime(fsys fs.FS, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		fsys:   fsys,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resolver = fsresolver.New(fsys,
		fsresolver.WithExtensions(ScriptExtension),
		fsresolver.WithLogger(r.logger),
	)
	r.engine = require.New[object.Object](&loader{Resolver: r.resolver, rt: r}, require.WithLogger(r.logger))
	return r
}

// Engine exposes the require engine backing this runtime.
func (r *Runtime) Engine() *require.Engine[object.Object] {
	return r.engine
}

// RunScript loads and executes the script at scriptPath in the runtime's
// file system. The script may require modules relative to its own location.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) (object.Object, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, fsresolver.ChunkName(scriptPath), src, extraGlobals)
}

// RunSource executes source as if it were the chunk chunkName. Chunk names
// of the form "@dir/name" may require modules relative to dir; any other
// chunk name may not use require at all.
func (r *Runtime) RunSource(ctx context.Context, chunkName, source string, extraGlobals map[string]any) (object.Object, error) {
	return r.eval(ctx, chunkName, source, extraGlobals)
}

// RegisterModule makes require(path) return value without touching the
// file system. path must start with '@'.
func (r *Runtime) RegisterModule(path string, value object.Object) error {
	defer r.lock()()
	if err := r.engine.Register(path, value); err != nil {
		return fmt.Errorf("runtime: register %s: %w", path, err)
	}
	return nil
}

// ClearCacheEntry forgets the cached result of the module stored at
// modulePath so the next require loads it again.
func (r *Runtime) ClearCacheEntry(modulePath string) {
	defer r.lock()()
	r.engine.Invalidate(strings.TrimPrefix(path.Clean(modulePath), "/"))
}

// ClearCache forgets every cached module result.
func (r *Runtime) ClearCache() {
	defer r.lock()()
	r.engine.ClearCache()
}

// LoadScript reads a script from the runtime's file system.
func (r *Runtime) LoadScript(scriptPath string) (string, error) {
	fsPath := strings.TrimPrefix(path.Clean(scriptPath), "/")
	data, err := fs.ReadFile(r.fsys, fsPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fsPath, err)
	}
	return string(data), nil
}

func (r *Runtime) eval(ctx context.Context, chunkName, source string, extraGlobals map[string]any) (object.Object, error) {
	globals := r.buildGlobals(chunkName, extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve against the same
	// file system as require.
	opts = append(opts, risor.WithImporter(r.buildImporter(globals)))

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", chunkName, err)
	}
	return result, nil
}

func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}
	return importer.NewFSImporter(importer.FSImporterOptions{
		GlobalNames: globalNames,
		SourceFS:    r.fsys,
		Extensions:  []string{ScriptExtension},
	})
}

// buildGlobals constructs the globals of one chunk. require is bound to the
// chunk so relative paths resolve from its location.
func (r *Runtime) buildGlobals(chunkName string, extra map[string]any) map[string]any {
	globals := map[string]any{
		"require": r.makeRequireFn(chunkName),
		"log":     mustProxy(&logObject{logger: r.logger.With().Str("chunk", chunkName).Logger()}),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

// lock serializes engine access in async mode. Synchronous loads re-enter
// the engine from within Load and must not take the lock.
func (r *Runtime) lock() func() {
	if !r.async {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
