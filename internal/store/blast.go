package store

import "fmt"

// TransitiveDependents returns the files that require the module with cache
// key target, directly or through other modules, with the number of require
// edges between them. A maxDepth of 0 means unlimited. Each file appears
// once, at its shortest distance. Module cache keys are file paths, which
// is what links a require's target back to the files table.
func (s *Store) TransitiveDependents(target string, maxDepth int) ([]*Dependent, error) {
	const query = `
WITH RECURSIVE dependents(file_id, depth) AS (
  SELECT r.file_id, 1 FROM requires r WHERE r.target = ?
  UNION
  SELECT r.file_id, d.depth + 1
  FROM dependents d
  JOIN files f ON f.id = d.file_id
  JOIN requires r ON r.target = f.path
  WHERE d.depth < CASE WHEN ? > 0 THEN ? ELSE (SELECT COUNT(*) FROM files) END
)
SELECT f.id, f.path, f.chunk_name, f.language, f.hash, f.last_indexed, d.depth
FROM files f
JOIN (SELECT file_id, MIN(depth) AS depth FROM dependents GROUP BY file_id) d ON d.file_id = f.id
WHERE f.path <> ?
ORDER BY d.depth, f.path`

	rows, err := s.db.Query(query, target, maxDepth, maxDepth, target)
	if err != nil {
		return nil, fmt.Errorf("transitive dependents: %w", err)
	}
	defer rows.Close()

	var out []*Dependent
	for rows.Next() {
		d := &Dependent{}
		f, err := scanFile(dependentScanner{rows: rows, depth: &d.Depth})
		if err != nil {
			return nil, fmt.Errorf("scan dependent: %w", err)
		}
		d.File = f
		out = append(out, d)
	}
	return out, rows.Err()
}

// dependentScanner appends the depth column to a file row scan.
type dependentScanner struct {
	rows  interface{ Scan(...any) error }
	depth *int
}

func (d dependentScanner) Scan(dest ...any) error {
	return d.rows.Scan(append(dest, d.depth)...)
}
