package tether

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/rs/zerolog"

	"github.com/jward/tether/internal/fsresolver"
	"github.com/jward/tether/internal/require"
	"github.com/jward/tether/internal/scan"
	"github.com/jward/tether/internal/store"
)

// Metadata keys written by Resolve.
const (
	metaRoot   = "root"
	metaLayout = "layout_hash"
)

// Engine orchestrates the tether pipeline: file discovery, change
// detection, require extraction, resolution, and query access.
type Engine struct {
	store     *store.Store
	root      string
	fsys      fs.FS
	useGit    bool
	logger    zerolog.Logger
	languages map[string]bool // nil means all languages

	// changed accumulates file IDs whose requires need resolving after
	// indexing. nil means "resolve everything" (first run).
	changed map[int64]bool

	// useParallel enables the parallel extraction pipeline.
	useParallel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will index.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			e.languages[lang] = true
		}
	}
}

// WithParallel controls parallel extraction. When true (default), IndexFiles
// parses files on a worker pool and commits batches serially. Set to false
// for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithFS reads sources from fsys instead of the root directory on disk.
// File discovery then walks fsys and never shells out to git.
func WithFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.fsys = fsys
		e.useGit = false
	}
}

// WithLogger sets the logger for indexing and resolution diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine that indexes the project under root into a SQLite
// database at dbPath.
func New(dbPath, root string, opts ...Option) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("tether: root %s: %w", root, err)
	}

	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("tether: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("tether: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		root:        abs,
		fsys:        os.DirFS(abs),
		useGit:      true,
		logger:      zerolog.Nop(),
		useParallel: true, // default to parallel extraction
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Root returns the absolute project directory.
func (e *Engine) Root() string {
	return e.root
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// Locate resolves path as if required from requirer without loading
// anything. requirer may be a chunk name or a project-relative file path.
func (e *Engine) Locate(requirer, path string) (Module, error) {
	return require.Resolve(e.newLocator(), fsresolver.RequirerChunkName(e.root, requirer), path)
}

func (e *Engine) newLocator() *fsresolver.Resolver {
	return fsresolver.New(e.fsys, fsresolver.WithLogger(e.logger))
}

// relPath turns p into a slash path relative to the project root.
func (e *Engine) relPath(p string) string {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(e.root, p); err == nil {
			p = rel
		}
	}
	return path.Clean(filepath.ToSlash(p))
}

// IndexFiles indexes the given file paths, relative to the project root or
// absolute inside it. When WithParallel is enabled, uses a worker pool for
// concurrent extraction with batched SQLite writes. Otherwise falls back to
// the serial path.
//
// For each file:
// 1. Detect language from extension
// 2. Skip unsupported or filtered-out languages
// 3. Skip unchanged files (same content hash)
// 4. Replace the file record and its requires
//
// Requires are stored unresolved; call Resolve afterwards.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	if e.changed == nil {
		e.changed = make(map[int64]bool)
	}
	if e.useParallel {
		return e.IndexFilesParallel(ctx, paths)
	}
	return e.indexFilesSerial(ctx, paths)
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := e.indexFile(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", p, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (e *Engine) indexFile(ctx context.Context, p string) error {
	item, skip, err := e.prepareFile(ctx, p)
	if err != nil || skip {
		return err
	}

	if item.existingID != 0 {
		if err := e.store.DeleteFileData(item.existingID); err != nil {
			return fmt.Errorf("delete old data: %w", err)
		}
	}
	fileID, err := extractRequires(ctx, e.store, item)
	if err != nil {
		return err
	}
	e.changed[fileID] = true
	return nil
}

// extractRequires records the file and its require calls in ds.
func extractRequires(ctx context.Context, ds store.DataStore, item workItem) (int64, error) {
	assert.NotEmpty(ctx, item.path, "work item path must be set")
	assert.NotEmpty(ctx, item.lang, "work item language must be set")

	reqs, err := scan.Requires(ctx, item.content, item.lang)
	if err != nil {
		return 0, fmt.Errorf("scan: %w", err)
	}

	fileID, err := ds.InsertFile(&store.File{
		Path:        item.path,
		ChunkName:   fsresolver.ChunkName(item.path),
		Language:    item.lang,
		Hash:        item.hash,
		LastIndexed: time.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	for _, r := range reqs {
		if _, err := ds.InsertRequire(&store.Require{
			FileID: fileID,
			Path:   r.Path,
			Line:   r.Line,
			Col:    r.Col,
		}); err != nil {
			return 0, fmt.Errorf("insert require %q: %w", r.Path, err)
		}
	}
	return fileID, nil
}

// skipDirs lists directories excluded from the fallback walk.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// IndexDirectory indexes every Lua and Luau file under the root, removes
// files that no longer exist from the index, and resolves requires. If the
// root is inside a git repository, uses git ls-files to respect .gitignore.
// Falls back to a filesystem walk (skipping hidden dirs, node_modules,
// vendor, __pycache__) if git is unavailable.
func (e *Engine) IndexDirectory(ctx context.Context) error {
	paths, err := e.listFiles()
	if err != nil {
		return err
	}
	if err := e.IndexFiles(ctx, paths); err != nil {
		return err
	}
	if err := e.prune(paths); err != nil {
		return err
	}
	return e.Resolve(ctx)
}

func (e *Engine) listFiles() ([]string, error) {
	if e.useGit {
		paths, err := e.gitListFiles()
		if err == nil {
			return paths, nil
		}
		// Not a git repo or git not available, fall back to walk.
		e.logger.Debug().Err(err).Msg("git listing unavailable, walking")
	}
	return e.walkListFiles()
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under the root, filtered to supported languages.
func (e *Engine) gitListFiles() ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = e.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if e.wants(line) {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// vcsDirs holds version control metadata directories, which never contain
// modules.
var vcsDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
}

// walkListFiles discovers files by walking the source FS. Skips hidden
// directories, node_modules, vendor, and __pycache__.
func (e *Engine) walkListFiles() ([]string, error) {
	var paths []string
	err := fs.WalkDir(e.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != "." && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return fs.SkipDir
			}
			return nil
		}
		if e.wants(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

func (e *Engine) wants(p string) bool {
	lang, ok := scan.LanguageForFile(p)
	return ok && (e.languages == nil || e.languages[lang])
}

// prune removes indexed files that are not in paths.
func (e *Engine) prune(paths []string) error {
	keep := make(map[string]bool, len(paths))
	for _, p := range paths {
		keep[e.relPath(p)] = true
	}

	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	var stale []int64
	for _, f := range files {
		if !keep[f.Path] && (e.languages == nil || e.languages[f.Language]) {
			stale = append(stale, f.ID)
			e.logger.Debug().Str("file", f.Path).Msg("pruning removed file")
		}
	}
	if err := e.store.DeleteFiles(stale); err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	return nil
}

// Resolve links stored requires to the modules they name. When neither the
// module layout nor any alias configuration changed since the last run,
// only requires of files indexed since then are resolved; otherwise every
// require is resolved again, since adding or removing a module or alias can
// change the outcome for any of them.
func (e *Engine) Resolve(ctx context.Context) error {
	defer func() { e.changed = nil }()

	layout, err := e.layoutHash()
	if err != nil {
		return fmt.Errorf("tether: layout: %w", err)
	}
	stored, err := e.store.GetMetadata(metaLayout)
	if err != nil {
		return fmt.Errorf("tether: read metadata: %w", err)
	}
	full := e.changed == nil || stored != layout

	// Non-nil empty change set and a stable layout means nothing to do.
	if !full && len(e.changed) == 0 {
		return nil
	}

	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("tether: list files: %w", err)
	}
	byID := make(map[int64]*store.File, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}

	var reqs []*store.Require
	if full {
		reqs, err = e.store.AllRequires()
		if err != nil {
			return fmt.Errorf("tether: list requires: %w", err)
		}
	} else {
		ids := make([]int64, 0, len(e.changed))
		for id := range e.changed {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			rs, err := e.store.RequiresByFile(id)
			if err != nil {
				return fmt.Errorf("tether: requires of file %d: %w", id, err)
			}
			reqs = append(reqs, rs...)
		}
	}

	loc := e.newLocator()
	resolutions := make([]store.Resolution, 0, len(reqs))
	for _, r := range reqs {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := byID[r.FileID]
		if f == nil {
			continue
		}
		res := store.Resolution{RequireID: r.ID}
		mod, err := require.Resolve(loc, f.ChunkName, r.Path)
		if err != nil {
			res.Error = err.Error()
			e.logger.Debug().Str("file", f.Path).Str("path", r.Path).Err(err).Msg("unresolved require")
		} else {
			res.Target = mod.CacheKey
		}
		resolutions = append(resolutions, res)
	}

	if err := e.store.ApplyResolutions(resolutions); err != nil {
		return fmt.Errorf("tether: %w", err)
	}
	if err := e.store.SetMetadata(metaLayout, layout); err != nil {
		return fmt.Errorf("tether: write metadata: %w", err)
	}
	if err := e.store.SetMetadata(metaRoot, e.root); err != nil {
		return fmt.Errorf("tether: write metadata: %w", err)
	}
	e.logger.Debug().Int("requires", len(resolutions)).Bool("full", full).Msg("resolved requires")
	return nil
}

// layoutHash fingerprints everything resolution depends on besides the
// require strings: the set of module paths and the content of every alias
// configuration file. Hidden directories are included because requires may
// name them; only version control metadata is skipped.
func (e *Engine) layoutHash() (string, error) {
	var paths []string
	err := fs.WalkDir(e.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p == "." {
				return nil
			}
			if vcsDirs[name] {
				return fs.SkipDir
			}
			// Directories alone can satisfy navigation, so they are part
			// of the layout too.
			paths = append(paths, p+"/")
			return nil
		}
		if isConfigFile(name) {
			paths = append(paths, p)
			return nil
		}
		for _, ext := range fsresolver.DefaultExtensions {
			if strings.HasSuffix(name, ext) {
				paths = append(paths, p)
				break
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte{0})
		if isConfigFile(path.Base(p)) {
			src, err := fs.ReadFile(e.fsys, p)
			if err != nil {
				return "", err
			}
			h.Write(src)
			h.Write([]byte{0})
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func isConfigFile(name string) bool {
	return name == ".luaurc" || name == ".config.luau"
}
