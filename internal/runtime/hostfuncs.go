package runtime

import (
	"context"
	"errors"
	"io/fs"

	"github.com/risor-io/risor/object"
	"github.com/rs/zerolog"

	"github.com/jward/tether/internal/fsresolver"
	"github.com/jward/tether/internal/require"
)

// loadResult is what an asynchronous module evaluation hands back to the
// suspended require.
type loadResult struct {
	values []object.Object
	err    error
}

// pendingLoad carries an asynchronous load from Load back to the require
// builtin that started it. done is buffered so the loading goroutine never
// blocks on a caller that went away.
type pendingLoad struct {
	done chan loadResult
}

type pendingKey struct{}

type depthKey struct{}

// maxRequireDepth bounds nested requires. Modules are cached only after
// they finish loading, so a require cycle would otherwise recurse forever.
const maxRequireDepth = 200

func requireDepth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// loader is the filesystem resolver plus Risor evaluation.
type loader struct {
	*fsresolver.Resolver
	rt *Runtime
}

// Load evaluates the module file. In async mode evaluation moves to a new
// goroutine and Load reports require.ErrPending.
func (l *loader) Load(ctx context.Context, _, chunkName, loadName string) ([]object.Object, error) {
	if !l.rt.async {
		return l.rt.evalModule(ctx, chunkName, loadName)
	}

	p, ok := ctx.Value(pendingKey{}).(*pendingLoad)
	if !ok {
		return nil, errors.New("runtime: async load outside of require")
	}
	p.done = make(chan loadResult, 1)
	go func() {
		values, err := l.rt.evalModule(ctx, chunkName, loadName)
		p.done <- loadResult{values: values, err: err}
	}()
	return nil, require.ErrPending
}

// evalModule runs a module file and returns its results. A module whose
// last expression is nil produces no results.
func (r *Runtime) evalModule(ctx context.Context, chunkName, loadName string) ([]object.Object, error) {
	src, err := fs.ReadFile(r.fsys, loadName)
	if err != nil {
		return nil, err
	}
	result, err := r.eval(ctx, chunkName, string(src), nil)
	if err != nil {
		return nil, err
	}
	if result == nil || result == object.Nil {
		return nil, nil
	}
	return []object.Object{result}, nil
}

// makeRequireFn creates the "require" builtin for one chunk.
//
// require(path) → module result
func (r *Runtime) makeRequireFn(chunkName string) *object.Builtin {
	return object.NewBuiltin("require", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("require", 1, len(args))
		}

		pathStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("require: path must be a string, got %s", args[0].Type())
		}

		depth := requireDepth(ctx) + 1
		if depth > maxRequireDepth {
			return object.Errorf("require: maximum require depth (%d) exceeded requiring %q from %s",
				maxRequireDepth, pathStr.Value(), chunkName)
		}
		ctx = context.WithValue(ctx, depthKey{}, depth)

		p := &pendingLoad{}
		unlock := r.lock()
		v, susp, err := r.engine.Require(context.WithValue(ctx, pendingKey{}, p), chunkName, pathStr.Value())
		unlock()
		if err != nil {
			return object.Errorf("%s", err)
		}
		if susp == nil {
			return v
		}

		res := <-p.done
		if res.err != nil {
			return object.Errorf("error loading %s: %v", susp.Module.ChunkName, res.err)
		}

		defer r.lock()()
		v, err = susp.Resume(res.values...)
		if err != nil {
			return object.Errorf("%s", err)
		}
		return v
	})
}

// logObject provides log.Info/Warn/Error/Debug methods for Risor scripts.
type logObject struct {
	logger zerolog.Logger
}

func (l *logObject) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

func (l *logObject) Info(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error().Msg(msg)
}
