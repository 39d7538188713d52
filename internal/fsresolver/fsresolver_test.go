package fsresolver

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	req "github.com/jward/tether/internal/require"
)

func file(s string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(s)}
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"main.luau":               file("return 1"),
		"src/app.luau":            file(""),
		"src/util.lua":            file(""),
		"src/.luaurc":             file(`{"aliases": {"Shared": "../shared", "vendored": "/vendor/pkg"}}`),
		"shared/init.luau":        file(""),
		"shared/strings.luau":     file(""),
		"vendor/pkg/init.lua":     file(""),
		"dup/mod.luau":            file(""),
		"dup/mod/init.luau":       file(""),
		"cfg/both/.luaurc":        file(`{"aliases": {}}`),
		"cfg/both/.config.luau":   file(""),
		"cfg/luau/.config.luau":   file(""),
		"cfg/broken/.luaurc":      file("{aliases: [unterminated"),
		"scripts/placeholder.txt": file(""),
		"jsonc/.luaurc": file(`{
	// shared helpers
	"aliases": {
		"pkg": "./pkg", /* local copy */
		"url": "https://example.com//x",
	},
}`),
		"jsonc/pkg/init.luau": file(""),
		"jsonc/main.luau":     file(""),
		"case/.luaurc":        file(`{"aliases": {"lib": "./a", "Lib": "./b"}}`),
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		requirer string
		want     req.Outcome
		pos      string
	}{
		{"@main.luau", req.Present, "main"},
		{"@src/util.lua", req.Present, "src/util"},
		{"@shared/init.luau", req.Present, "shared"},
		{"@/src/app.luau", req.Present, "src/app"},
		{"@scripts/inline", req.Present, "scripts/inline"},
		{"@nowhere/inline", req.NotFound, ""},
		{"src/app.luau", req.NotFound, ""},
		{"@", req.NotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.requirer, func(t *testing.T) {
			t.Parallel()
			r := New(testFS())
			assert.Equal(t, tt.want, r.Reset(tt.requirer))
			if tt.want == req.Present {
				assert.Equal(t, tt.pos, r.Position())
			}
		})
	}
}

func TestParentAndChild(t *testing.T) {
	t.Parallel()

	r := New(testFS())
	require.Equal(t, req.Present, r.Reset("@src/app.luau"))

	assert.Equal(t, req.Present, r.ToParent())
	assert.Equal(t, "src", r.Position())
	assert.Equal(t, req.Present, r.ToParent())
	assert.Equal(t, "", r.Position())
	assert.Equal(t, req.NotFound, r.ToParent())

	assert.Equal(t, req.NotFound, r.ToChild("missing"))
	assert.Equal(t, "", r.Position(), "a failed move leaves the cursor in place")

	assert.Equal(t, req.Ambiguous, r.ToChild("dup/mod"), "dup/mod is both a file and a directory module")
	assert.Equal(t, req.Present, r.ToChild("dup"))
	assert.Equal(t, req.Ambiguous, r.ToChild("mod"))
}

func TestModule(t *testing.T) {
	t.Parallel()

	r := New(testFS())
	require.Equal(t, req.Present, r.Reset("@main.luau"))
	require.Equal(t, req.Present, r.ToParent())

	_, ok := r.Module()
	assert.False(t, ok, "the root has no init module")

	require.Equal(t, req.Present, r.ToChild("shared"))
	mod, ok := r.Module()
	require.True(t, ok)
	assert.Equal(t, req.Module{
		ChunkName: "@shared/init.luau",
		LoadName:  "shared/init.luau",
		CacheKey:  "shared/init.luau",
	}, mod)
}

func TestExtensions(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"a.luau": file(""),
		"a.lua":  file(""),
	}

	r := New(fsys)
	assert.Equal(t, req.Ambiguous, r.ToChild("a"))

	r = New(fsys, WithExtensions(".lua"))
	require.Equal(t, req.Present, r.ToChild("a"))
	mod, ok := r.Module()
	require.True(t, ok)
	assert.Equal(t, "a.lua", mod.LoadName)
}

func TestConfigStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dir  string
		want req.Outcome
	}{
		{"src", req.Present},
		{"shared", req.NotFound},
		{"cfg/both", req.Ambiguous},
		{"cfg/luau", req.Ambiguous},
	}
	for _, tt := range tests {
		r := New(testFS())
		require.Equal(t, req.Present, r.JumpToAlias("/"+tt.dir))
		assert.Equal(t, tt.want, r.ConfigStatus(), tt.dir)
	}
}

func TestResolveAlias(t *testing.T) {
	t.Parallel()

	r := New(testFS())
	require.Equal(t, req.Present, r.JumpToAlias("/src"))

	target, ok := r.ResolveAlias("shared")
	assert.True(t, ok)
	assert.Equal(t, "../shared", target)

	_, ok = r.ResolveAlias("missing")
	assert.False(t, ok)

	require.Equal(t, req.Present, r.JumpToAlias("/cfg/broken"))
	_, ok = r.ResolveAlias("anything")
	assert.False(t, ok, "malformed configuration declares no aliases")
}

func TestResolveAlias_CommentsAndTrailingCommas(t *testing.T) {
	t.Parallel()

	r := New(testFS())
	require.Equal(t, req.Present, r.JumpToAlias("/jsonc"))

	target, ok := r.ResolveAlias("pkg")
	assert.True(t, ok)
	assert.Equal(t, "./pkg", target)

	target, ok = r.ResolveAlias("url")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com//x", target)

	mod, err := req.Resolve(New(testFS()), "@jsonc/main.luau", "@pkg")
	require.NoError(t, err)
	assert.Equal(t, "jsonc/pkg/init.luau", mod.LoadName)
}

func TestResolveAlias_CaseCollision(t *testing.T) {
	t.Parallel()

	for range 10 {
		r := New(testFS())
		require.Equal(t, req.Present, r.JumpToAlias("/case"))
		target, ok := r.ResolveAlias("LIB")
		assert.True(t, ok)
		assert.Equal(t, "./b", target, "first name in sorted order wins")
	}
}

func TestStripJSONC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"{\"a\": 1, // x\n}", "{\"a\": 1 \n}"},
		{`{"a": [1, 2,],}`, `{"a": [1, 2]}`},
		{`{"a": "b,}"}`, `{"a": "b,}"}`},
		{`{"a": "x\"//y"}`, `{"a": "x\"//y"}`},
		{`{/* c */"a": 1}`, `{ "a": 1}`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, string(stripJSONC([]byte(tt.in))), tt.in)
	}
}

func TestJumpToAlias(t *testing.T) {
	t.Parallel()

	r := New(testFS())
	assert.Equal(t, req.Present, r.JumpToAlias("/vendor/pkg"))
	assert.Equal(t, "vendor/pkg", r.Position())
	assert.Equal(t, req.Present, r.JumpToAlias("/"))
	assert.Equal(t, "", r.Position())
	assert.Equal(t, req.NotFound, r.JumpToAlias("/nope"))
	assert.Equal(t, req.NotFound, r.JumpToAlias("vendor/pkg"))
}

func TestResolveThroughEngine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		requirer string
		path     string
		want     string
		wantErr  string
	}{
		{name: "sibling", requirer: "@src/app.luau", path: "./util", want: "src/util.lua"},
		{name: "parent", requirer: "@src/app.luau", path: "../main", want: "main.luau"},
		{name: "directory module", requirer: "@main.luau", path: "./shared", want: "shared/init.luau"},
		{name: "alias", requirer: "@src/app.luau", path: "@shared/strings", want: "shared/strings.luau"},
		{name: "alias case", requirer: "@src/app.luau", path: "@SHARED", want: "shared/init.luau"},
		{name: "absolute alias", requirer: "@src/app.luau", path: "@vendored", want: "vendor/pkg/init.lua"},
		{name: "self from init", requirer: "@shared/init.luau", path: "@self/strings", want: "shared/strings.luau"},
		{name: "init sees siblings of its directory", requirer: "@shared/init.luau", path: "./main", want: "main.luau"},
		{name: "unknown alias", requirer: "@main.luau", path: "@shared", wantErr: "@shared is not a valid alias"},
		{name: "missing child", requirer: "@main.luau", path: "./nope", wantErr: `could not resolve child component "nope"`},
		{name: "ambiguous child", requirer: "@dup/mod/init.luau", path: "./mod", wantErr: "could not resolve child component \"mod\" (ambiguous)"},
		{name: "directory without module", requirer: "@main.luau", path: "./src", wantErr: "no module present at resolved path"},
		{name: "not a file chunk", requirer: "=stdin", path: "./main", wantErr: "require is not supported in this context"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mod, err := req.Resolve(New(testFS()), tt.requirer, tt.path)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mod.LoadName)
			assert.Equal(t, "@"+tt.want, mod.ChunkName)
		})
	}
}

func TestChunkName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "@lib/util.luau", ChunkName("lib/util.luau"))
	assert.Equal(t, "@lib/util.luau", ChunkName("/lib/./util.luau"))
}

func TestRequirerChunkName(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "proj")
	assert.Equal(t, "@src/app.luau", RequirerChunkName(root, "@src/app.luau"))
	assert.Equal(t, "@src/app.luau", RequirerChunkName(root, "src/app.luau"))
	assert.Equal(t, "@src/app.luau", RequirerChunkName(root, "./src/../src/app.luau"))
	assert.Equal(t, "@src/app.luau", RequirerChunkName(root, filepath.Join(root, "src", "app.luau")))
}
