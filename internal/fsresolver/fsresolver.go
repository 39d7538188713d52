// Package fsresolver implements the require resolver contract over an
// fs.FS. Modules are files with one of the configured extensions, a
// directory may act as a module through an init file, and aliases are read
// from .luaurc files.
package fsresolver

import (
	"bytes"
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/jward/tether/internal/require"
)

const (
	configFile       = ".luaurc"
	luauConfigFile   = ".config.luau"
	initName         = "init"
	chunkPrefix      = "@"
	jumpTargetPrefix = "/"
)

// DefaultExtensions are the module extensions tried, in order, when no
// WithExtensions option is given.
var DefaultExtensions = []string{".luau", ".lua"}

// Resolver is a require cursor over a file system. Positions are slash
// paths relative to the FS root without a module extension; "" is the root.
//
// A Resolver holds a single mutable position and is not safe for
// concurrent use.
type Resolver struct {
	fsys   fs.FS
	exts   []string
	logger zerolog.Logger

	pos     string
	configs map[string]map[string]string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithExtensions sets the module file extensions. Each must include the
// leading dot.
func WithExtensions(exts ...string) Option {
	return func(r *Resolver) {
		r.exts = append([]string(nil), exts...)
	}
}

// WithLogger sets the logger used for configuration diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a Resolver rooted at fsys.
func New(fsys fs.FS, opts ...Option) *Resolver {
	r := &Resolver{
		fsys:    fsys,
		exts:    DefaultExtensions,
		logger:  zerolog.Nop(),
		configs: make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ require.Locator = (*Resolver)(nil)

// RequirerChunkName returns the chunk name for a requirer given either as
// a chunk name or as a file path. Absolute paths are made relative to root.
func RequirerChunkName(root, requirer string) string {
	if strings.HasPrefix(requirer, chunkPrefix) {
		return requirer
	}
	if filepath.IsAbs(requirer) && root != "" {
		if rel, err := filepath.Rel(root, requirer); err == nil {
			requirer = rel
		}
	}
	return ChunkName(filepath.ToSlash(requirer))
}

// ChunkName returns the chunk name of the module stored at file.
func ChunkName(file string) string {
	return chunkPrefix + strings.TrimPrefix(path.Clean(file), "/")
}

// Position returns the cursor's current position.
func (r *Resolver) Position() string {
	return r.pos
}

// IsRequireAllowed reports whether requirer names a file-backed chunk.
func (r *Resolver) IsRequireAllowed(requirer string) bool {
	return strings.HasPrefix(requirer, chunkPrefix)
}

// Reset positions the cursor at the module named by the chunk name
// requirer. A chunk whose file does not exist is accepted as long as its
// directory does, so inline sources can be given a location.
func (r *Resolver) Reset(requirer string) require.Outcome {
	if !r.IsRequireAllowed(requirer) {
		return require.NotFound
	}
	file := strings.TrimPrefix(requirer, chunkPrefix)
	file = path.Clean(strings.TrimPrefix(file, "/"))
	if file == "." {
		return require.NotFound
	}

	pos := r.trimExtension(file)
	if r.isFile(file) {
		if path.Base(pos) == initName {
			pos = parent(pos)
		}
		r.pos = pos
		return require.Present
	}

	if !r.isDir(parent(file)) {
		return require.NotFound
	}
	r.pos = pos
	return require.Present
}

// ToParent moves one directory up.
func (r *Resolver) ToParent() require.Outcome {
	if r.pos == "" {
		return require.NotFound
	}
	r.pos = parent(r.pos)
	return require.Present
}

// ToChild moves into name when it is a directory or a module.
func (r *Resolver) ToChild(name string) require.Outcome {
	p := join(r.pos, name)
	switch n := len(r.moduleFiles(p)); {
	case n > 1:
		return require.Ambiguous
	case n == 0 && !r.isDir(p):
		return require.NotFound
	}
	r.pos = p
	return require.Present
}

// JumpToAlias accepts FS-absolute targets such as "/vendor/pkg".
func (r *Resolver) JumpToAlias(target string) require.Outcome {
	if !strings.HasPrefix(target, jumpTargetPrefix) {
		return require.NotFound
	}
	p := path.Clean(strings.TrimPrefix(target, jumpTargetPrefix))
	if p == "." {
		p = ""
	}
	if len(r.moduleFiles(p)) == 0 && !r.isDir(p) {
		return require.NotFound
	}
	r.pos = p
	return require.Present
}

// ConfigStatus reports whether a configuration file is present in the
// directory at the cursor. A .config.luau file is not supported and is
// reported as Ambiguous so the navigator surfaces a configuration error.
func (r *Resolver) ConfigStatus() require.Outcome {
	rc := r.isFile(join(r.pos, configFile))
	luau := r.isFile(join(r.pos, luauConfigFile))
	switch {
	case rc && luau:
		return require.Ambiguous
	case luau:
		r.logger.Debug().Str("dir", r.pos).Msg("unsupported configuration format " + luauConfigFile)
		return require.Ambiguous
	case rc:
		return require.Present
	default:
		return require.NotFound
	}
}

// ResolveAlias returns the raw target of alias from the .luaurc at the
// cursor. Alias names are compared case-insensitively.
func (r *Resolver) ResolveAlias(alias string) (string, bool) {
	target, ok := r.aliasesAt(r.pos)[strings.ToLower(alias)]
	return target, ok
}

// Module describes the module at the cursor.
func (r *Resolver) Module() (require.Module, bool) {
	files := r.moduleFiles(r.pos)
	if len(files) != 1 {
		return require.Module{}, false
	}
	file := files[0]
	return require.Module{
		ChunkName: ChunkName(file),
		LoadName:  file,
		CacheKey:  file,
	}, true
}

// moduleFiles returns every file that could back the module at p.
func (r *Resolver) moduleFiles(p string) []string {
	var files []string
	for _, ext := range r.exts {
		if p != "" && r.isFile(p+ext) {
			files = append(files, p+ext)
		}
		if f := join(p, initName+ext); r.isFile(f) {
			files = append(files, f)
		}
	}
	return files
}

type luaurc struct {
	Aliases map[string]string `yaml:"aliases"`
}

// aliasesAt parses and caches the .luaurc in dir. Alias names are folded to
// lower case. A malformed file yields no aliases.
func (r *Resolver) aliasesAt(dir string) map[string]string {
	if aliases, ok := r.configs[dir]; ok {
		return aliases
	}

	file := join(dir, configFile)
	aliases := map[string]string{}
	data, err := fs.ReadFile(r.fsys, file)
	if err == nil {
		var rc luaurc
		if err = yaml.Unmarshal(stripJSONC(data), &rc); err == nil {
			r.foldAliases(file, rc.Aliases, aliases)
		}
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Warn().Err(err).Str("file", file).Msg("ignoring unreadable configuration")
	}
	r.configs[dir] = aliases
	return aliases
}

// foldAliases copies raw into dst keyed by lower-cased name. Names that
// collide after folding keep the target of the first name in sorted order.
func (r *Resolver) foldAliases(file string, raw, dst map[string]string) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := strings.ToLower(name)
		if _, dup := dst[key]; dup {
			r.logger.Warn().Str("file", file).Str("alias", name).Msg("duplicate alias ignored")
			continue
		}
		dst[key] = raw[name]
	}
}

// stripJSONC removes // and /* */ comments and trailing commas, which
// .luaurc files may contain. String contents are left untouched.
func stripJSONC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	// pendingComma is the index in out of a comma that is dropped if the
	// next significant byte closes an object or array.
	pendingComma := -1
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '"':
			pendingComma = -1
			j := i + 1
			for j < len(data) && data[j] != '"' {
				if data[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(data) {
				j = len(data) - 1
			}
			out = append(out, data[i:j+1]...)
			i = j
		case c == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
			i--
		case c == '/' && i+1 < len(data) && data[i+1] == '*':
			end := bytes.Index(data[i+2:], []byte("*/"))
			if end < 0 {
				return out
			}
			i += end + 3
			out = append(out, ' ')
		case c == ',':
			pendingComma = len(out)
			out = append(out, c)
		case c == '}' || c == ']':
			if pendingComma >= 0 {
				out = append(out[:pendingComma], out[pendingComma+1:]...)
				pendingComma = -1
			}
			out = append(out, c)
		default:
			if !unicode.IsSpace(rune(c)) {
				pendingComma = -1
			}
			out = append(out, c)
		}
	}
	return out
}

func (r *Resolver) trimExtension(file string) string {
	for _, ext := range r.exts {
		if strings.HasSuffix(file, ext) {
			return strings.TrimSuffix(file, ext)
		}
	}
	return strings.TrimSuffix(file, path.Ext(file))
}

func (r *Resolver) isFile(p string) bool {
	info, err := fs.Stat(r.fsys, fsPath(p))
	return err == nil && !info.IsDir()
}

func (r *Resolver) isDir(p string) bool {
	info, err := fs.Stat(r.fsys, fsPath(p))
	return err == nil && info.IsDir()
}

func fsPath(p string) string {
	if p == "" {
		return "."
	}
	return p
}

func parent(p string) string {
	d := path.Dir(p)
	if d == "." || d == "/" {
		return ""
	}
	return d
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
