package tether

import (
	"fmt"
	"strings"

	"github.com/jward/tether/internal/store"
)

// QueryBuilder provides a read-only query API over the require graph.
type QueryBuilder struct {
	store *store.Store
}

// NewQueryBuilder creates a QueryBuilder over an already indexed Store.
func NewQueryBuilder(s *Store) *QueryBuilder {
	return &QueryBuilder{store: s}
}

// Dependency is one require call site together with its resolution.
type Dependency struct {
	// File is the path of the requiring file.
	File string
	// Path is the require string as written.
	Path string
	Line int
	Col  int
	// Target is the cache key (file path) of the required module. Empty
	// when resolution failed, in which case Error holds the reason.
	Target string
	Error  string
}

// Resolved reports whether the require points at a module.
func (d Dependency) Resolved() bool {
	return d.Target != ""
}

// ModuleSummary describes an indexed module and its degree in the graph.
type ModuleSummary struct {
	Path      string
	ChunkName string
	Language  string
	// Requires counts the module's own require calls.
	Requires int
	// Dependents counts files with a resolved require of this module.
	Dependents int
}

// Dependencies returns the requires made by file. file may be a path or a
// chunk name. Returns nil when the file is not indexed.
func (q *QueryBuilder) Dependencies(file string) ([]Dependency, error) {
	f, err := q.store.FileByPath(strings.TrimPrefix(file, "@"))
	if err != nil {
		return nil, fmt.Errorf("dependencies: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	reqs, err := q.store.RequiresByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("dependencies: %w", err)
	}
	out := make([]Dependency, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toDependency(f.Path, r))
	}
	return out, nil
}

// Dependents returns every require that resolved to the module with the
// given cache key.
func (q *QueryBuilder) Dependents(cacheKey string) ([]Dependency, error) {
	reqs, err := q.store.RequiresByTarget(strings.TrimPrefix(cacheKey, "@"))
	if err != nil {
		return nil, fmt.Errorf("dependents: %w", err)
	}
	return q.withFiles(reqs)
}

// TransitiveDependents returns the files that depend on the module with the
// given cache key directly or through other modules, nearest first. A
// maxDepth of 0 means unlimited.
func (q *QueryBuilder) TransitiveDependents(cacheKey string, maxDepth int) ([]*Dependent, error) {
	return q.store.TransitiveDependents(strings.TrimPrefix(cacheKey, "@"), maxDepth)
}

// Unresolved returns every require that could not be resolved.
func (q *QueryBuilder) Unresolved() ([]Dependency, error) {
	reqs, err := q.store.UnresolvedRequires()
	if err != nil {
		return nil, fmt.Errorf("unresolved: %w", err)
	}
	return q.withFiles(reqs)
}

// Modules lists every indexed file ordered by path.
func (q *QueryBuilder) Modules() ([]ModuleSummary, error) {
	rows, err := q.store.DB().Query(`
SELECT f.path, f.chunk_name, f.language,
  (SELECT COUNT(*) FROM requires r WHERE r.file_id = f.id),
  (SELECT COUNT(DISTINCT r.file_id) FROM requires r WHERE r.target = f.path)
FROM files f
ORDER BY f.path`)
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	defer rows.Close()

	var out []ModuleSummary
	for rows.Next() {
		var m ModuleSummary
		if err := rows.Scan(&m.Path, &m.ChunkName, &m.Language, &m.Requires, &m.Dependents); err != nil {
			return nil, fmt.Errorf("modules: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// withFiles converts requires made by arbitrary files, looking up each
// requiring file once.
func (q *QueryBuilder) withFiles(reqs []*store.Require) ([]Dependency, error) {
	paths := make(map[int64]string)
	out := make([]Dependency, 0, len(reqs))
	for _, r := range reqs {
		p, ok := paths[r.FileID]
		if !ok {
			f, err := q.store.FileByID(r.FileID)
			if err != nil {
				return nil, fmt.Errorf("lookup file %d: %w", r.FileID, err)
			}
			if f != nil {
				p = f.Path
			}
			paths[r.FileID] = p
		}
		out = append(out, toDependency(p, r))
	}
	return out, nil
}

func toDependency(file string, r *store.Require) Dependency {
	return Dependency{
		File:   file,
		Path:   r.Path,
		Line:   r.Line,
		Col:    r.Col,
		Target: r.Target,
		Error:  r.Error,
	}
}
