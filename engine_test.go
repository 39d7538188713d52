package tether

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(s string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(s)}
}

// projectFS is a small Luau project: main requires app (which requires
// util) and the shared library through an alias, plus one broken require.
func projectFS() fstest.MapFS {
	return fstest.MapFS{
		".luaurc": file(`{"aliases": {"shared": "./shared"}}`),
		"main.luau": file(`local app = require("./src/app")
local strings = require("@shared/strings")
local missing = require("./nope")
`),
		"src/app.luau":        file("local util = require(\"./util\")\nreturn {}\n"),
		"src/util.lua":        file("return {}\n"),
		"shared/init.luau":    file("return require(\"@self/strings\")\n"),
		"shared/strings.luau": file("return {}\n"),
		"vendor/pkg/init.lua": file("return {}\n"),
		".hidden/x.lua":       file("return {}\n"),
		"README.md":           file("# project\n"),
	}
}

func newTestEngine(t *testing.T, fsys fstest.MapFS, opts ...Option) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := New(dbPath, t.TempDir(), append([]Option{WithFS(fsys)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func indexedPaths(t *testing.T, e *Engine) []string {
	t.Helper()
	files, err := e.Store().Files()
	require.NoError(t, err)
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths
}

// targets maps each require path of file to its target, or to "!"+error.
func targets(t *testing.T, e *Engine, file string) map[string]string {
	t.Helper()
	deps, err := e.Query().Dependencies(file)
	require.NoError(t, err)
	out := make(map[string]string, len(deps))
	for _, d := range deps {
		if d.Resolved() {
			out[d.Path] = d.Target
		} else {
			out[d.Path] = "!" + d.Error
		}
	}
	return out
}

func TestNew_CreatesStore(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	root := t.TempDir()
	e, err := New(dbPath, root)
	require.NoError(t, err)
	defer e.Close()

	require.NotNil(t, e.Store())
	assert.Equal(t, root, e.Root())
	assert.True(t, e.useParallel, "parallel extraction is the default")
	assert.True(t, e.useGit)
}

func TestNew_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := New("/nonexistent/dir/db.sqlite", t.TempDir())
	require.Error(t, err)
}

func TestWithLanguages(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, projectFS(), WithLanguages("lua"))

	assert.True(t, e.languages["lua"])
	assert.False(t, e.languages["luau"])
	assert.False(t, e.useGit, "WithFS disables git discovery")

	require.NoError(t, e.IndexDirectory(context.Background()))
	assert.Equal(t, []string{"src/util.lua"}, indexedPaths(t, e))
}

func TestIndexDirectory_IndexesAndResolves(t *testing.T) {
	t.Parallel()

	for _, parallel := range []bool{true, false} {
		name := "serial"
		if parallel {
			name = "parallel"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(t, projectFS(), WithParallel(parallel))
			require.NoError(t, e.IndexDirectory(context.Background()))

			assert.Equal(t, []string{
				"main.luau",
				"shared/init.luau",
				"shared/strings.luau",
				"src/app.luau",
				"src/util.lua",
			}, indexedPaths(t, e), "hidden, vendor, and non-Lua files are skipped")

			assert.Equal(t, map[string]string{
				"./src/app":       "src/app.luau",
				"@shared/strings": "shared/strings.luau",
				"./nope":          `!could not resolve child component "nope"`,
			}, targets(t, e, "main.luau"))
			assert.Equal(t, map[string]string{"./util": "src/util.lua"}, targets(t, e, "src/app.luau"))
			assert.Equal(t, map[string]string{"@self/strings": "shared/strings.luau"}, targets(t, e, "shared/init.luau"))

			f, err := e.Store().FileByPath("main.luau")
			require.NoError(t, err)
			assert.Equal(t, "@main.luau", f.ChunkName)
			assert.Equal(t, "luau", f.Language)

			root, err := e.Store().GetMetadata("root")
			require.NoError(t, err)
			assert.Equal(t, e.Root(), root)
		})
	}
}

func TestIndexFiles_RecordsPositions(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, projectFS())
	require.NoError(t, e.IndexFiles(context.Background(), []string{"main.luau"}))

	deps, err := e.Query().Dependencies("main.luau")
	require.NoError(t, err)
	require.Len(t, deps, 3)
	assert.Equal(t, 1, deps[0].Line)
	assert.Equal(t, 13, deps[0].Col)
	assert.Equal(t, 2, deps[1].Line)
	assert.False(t, deps[0].Resolved(), "IndexFiles leaves resolution to Resolve")

	require.NoError(t, e.Resolve(context.Background()))
	deps, err = e.Query().Dependencies("main.luau")
	require.NoError(t, err)
	assert.Equal(t, "src/app.luau", deps[0].Target)
}

func TestIndexFiles_SkipsUnsupportedExtensions(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, projectFS())
	require.NoError(t, e.IndexFiles(context.Background(), []string{"README.md"}))
	assert.Empty(t, indexedPaths(t, e))
}

func TestIndexFiles_AbsolutePath(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, projectFS())
	abs := filepath.Join(e.Root(), "src", "app.luau")
	require.NoError(t, e.IndexFiles(context.Background(), []string{abs}))
	assert.Equal(t, []string{"src/app.luau"}, indexedPaths(t, e))
}

func TestIndexFiles_MissingFile(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, projectFS())
	err := e.IndexFiles(context.Background(), []string{"gone.luau"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone.luau")

	serial := newTestEngine(t, projectFS(), WithParallel(false))
	err = serial.IndexFiles(context.Background(), []string{"gone.luau", "main.luau"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexing had 1 error(s)")
	assert.Equal(t, []string{"main.luau"}, indexedPaths(t, serial), "other files are still indexed")
}

func TestIndexFiles_SkipsUnchangedFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t, projectFS())
	require.NoError(t, e.IndexDirectory(ctx))

	before, err := e.Store().FileByPath("main.luau")
	require.NoError(t, err)

	require.NoError(t, e.IndexFiles(ctx, []string{"main.luau"}))
	assert.Empty(t, e.changed, "unchanged file is not re-extracted")

	after, err := e.Store().FileByPath("main.luau")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.True(t, before.LastIndexed.Equal(after.LastIndexed))
}

func TestIndexFiles_ReindexesChangedFiles(t *testing.T) {
	t.Parallel()

	for _, parallel := range []bool{true, false} {
		t.Run(map[bool]string{true: "parallel", false: "serial"}[parallel], func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			fsys := projectFS()
			e := newTestEngine(t, fsys, WithParallel(parallel))
			require.NoError(t, e.IndexDirectory(ctx))

			fsys["main.luau"] = file(`return require("@shared")`)
			require.NoError(t, e.IndexDirectory(ctx))

			assert.Equal(t, map[string]string{"@shared": "shared/init.luau"}, targets(t, e, "main.luau"))
			assert.Equal(t, map[string]string{"./util": "src/util.lua"}, targets(t, e, "src/app.luau"),
				"other files keep their resolutions")
		})
	}
}

func TestIndexDirectory_PrunesRemovedFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := projectFS()
	e := newTestEngine(t, fsys)
	require.NoError(t, e.IndexDirectory(ctx))

	delete(fsys, "src/util.lua")
	require.NoError(t, e.IndexDirectory(ctx))

	assert.NotContains(t, indexedPaths(t, e), "src/util.lua")
	assert.Equal(t, map[string]string{"./util": `!could not resolve child component "util"`},
		targets(t, e, "src/app.luau"), "dependents of a removed module are relinked")
}

func TestResolve_NewModuleSatisfiesRequire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := projectFS()
	e := newTestEngine(t, fsys)
	require.NoError(t, e.IndexDirectory(ctx))

	fsys["nope.luau"] = file("return 0\n")
	require.NoError(t, e.IndexDirectory(ctx))

	assert.Equal(t, "nope.luau", targets(t, e, "main.luau")["./nope"])
}

func TestResolve_ModuleInHiddenDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := fstest.MapFS{
		"main.luau": file("local m = require(\"./.lune/m\")\n"),
	}
	e := newTestEngine(t, fsys)
	require.NoError(t, e.IndexDirectory(ctx))
	assert.Equal(t, `!could not resolve child component ".lune"`, targets(t, e, "main.luau")["./.lune/m"])

	fsys[".lune/m.luau"] = file("return {}\n")
	require.NoError(t, e.IndexDirectory(ctx))
	assert.Equal(t, ".lune/m.luau", targets(t, e, "main.luau")["./.lune/m"])

	delete(fsys, ".lune/m.luau")
	require.NoError(t, e.IndexDirectory(ctx))
	assert.Equal(t, `!could not resolve child component ".lune"`, targets(t, e, "main.luau")["./.lune/m"])
}

func TestResolve_AliasChangeRelinks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := projectFS()
	e := newTestEngine(t, fsys)
	require.NoError(t, e.IndexDirectory(ctx))

	fsys[".luaurc"] = file(`{"aliases": {"shared": "./src"}}`)
	require.NoError(t, e.IndexDirectory(ctx))

	assert.Equal(t, `!could not resolve child component "strings"`,
		targets(t, e, "main.luau")["@shared/strings"])
}

func TestResolve_NothingChanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t, projectFS())
	require.NoError(t, e.IndexDirectory(ctx))

	layout, err := e.Store().GetMetadata("layout_hash")
	require.NoError(t, err)
	require.NotEmpty(t, layout)

	require.NoError(t, e.IndexDirectory(ctx))
	again, err := e.Store().GetMetadata("layout_hash")
	require.NoError(t, err)
	assert.Equal(t, layout, again)
}

func TestLocate(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, projectFS())

	mod, err := e.Locate("src/app.luau", "./util")
	require.NoError(t, err)
	assert.Equal(t, "src/util.lua", mod.CacheKey)
	assert.Equal(t, "@src/util.lua", mod.ChunkName)

	mod, err = e.Locate("@main.luau", "@shared")
	require.NoError(t, err)
	assert.Equal(t, "shared/init.luau", mod.LoadName)

	_, err = e.Locate("@main.luau", "@bogus")
	assert.EqualError(t, err, "@bogus is not a valid alias")

	_, err = e.Locate("@main.luau", "util")
	assert.EqualError(t, err, "require path must start with a valid prefix: ./, ../, or @")
}

func TestIndexDirectory_OnDisk(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	for name, f := range projectFS() {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, f.Data, 0o644))
	}

	e, err := New(filepath.Join(t.TempDir(), "test.db"), root)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.IndexDirectory(context.Background()))
	assert.Equal(t, "shared/strings.luau", targets(t, e, "main.luau")["@shared/strings"])
}
