// Package tether resolves require-by-string module paths the way Luau does
// and keeps a queryable index of the require graph of a Lua or Luau project.
//
// # Pipeline
//
// Indexing runs in two phases:
//
//  1. Extract: For each source file, parse with tree-sitter and record
//     every require call with a string literal argument in SQLite.
//
//  2. Resolve: Walk each recorded require through the navigator over the
//     project's file system (relative paths, @self and .luaurc aliases)
//     and store the module it names, or the reason it could not be found.
//     Nothing is executed.
//
// # Usage
//
//	e, err := tether.New("tether.db", "path/to/project")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.IndexDirectory(ctx)
//
//	q := e.Query()
//	deps, err := q.Dependencies("src/main.luau")
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] provides:
//
//   - [QueryBuilder.Dependencies]: what a file requires.
//   - [QueryBuilder.Dependents]: who requires a module.
//   - [QueryBuilder.TransitiveDependents]: everything affected by a module.
//   - [QueryBuilder.Unresolved]: requires that do not resolve, with errors.
//   - [QueryBuilder.Modules]: every indexed module with its degree.
//
// # Incremental Indexing
//
// [Engine.IndexFiles] detects unchanged files via content hashing and skips
// them. [Engine.Resolve] re-resolves only the requires of changed files
// unless a module was added or removed or an alias configuration changed,
// in which case every require is resolved again.
//
// # Executing modules
//
// The resolution and caching engine lives in internal/require and is
// generic over the loaded value type. internal/runtime binds it to the
// Risor scripting language so that scripts can require each other.
package tether
