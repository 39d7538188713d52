package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, chunk_name, language, hash, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.ChunkName, f.Language, f.Hash, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileColumns = "id, path, chunk_name, language, hash, last_indexed"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	var hash sql.NullString
	var indexed sql.NullTime
	if err := scanner.Scan(&f.ID, &f.Path, &f.ChunkName, &f.Language, &hash, &indexed); err != nil {
		return nil, err
	}
	f.Hash = hash.String
	f.LastIndexed = indexed.Time
	return f, nil
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileByPath returns the file stored at path, or nil when it is not indexed.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// FileByID returns the file with id, or nil.
func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	files, err := s.queryFiles("SELECT " + fileColumns + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}

// FilesByLanguage returns the indexed files of one language.
func (s *Store) FilesByLanguage(language string) ([]*File, error) {
	files, err := s.queryFiles("SELECT "+fileColumns+" FROM files WHERE language = ? ORDER BY path", language)
	if err != nil {
		return nil, fmt.Errorf("files by language: %w", err)
	}
	return files, nil
}

// --- Require operations ---

func (s *Store) InsertRequire(r *Require) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO requires (file_id, path, line, col, target, error) VALUES (?, ?, ?, ?, ?, ?)",
		r.FileID, r.Path, r.Line, r.Col, nullString(r.Target), nullString(r.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("insert require: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	return id, nil
}

const requireColumns = "id, file_id, path, line, col, target, error"

func scanRequire(scanner interface{ Scan(...any) error }) (*Require, error) {
	r := &Require{}
	var target, errMsg sql.NullString
	if err := scanner.Scan(&r.ID, &r.FileID, &r.Path, &r.Line, &r.Col, &target, &errMsg); err != nil {
		return nil, err
	}
	r.Target = target.String
	r.Error = errMsg.String
	return r, nil
}

func (s *Store) queryRequires(query string, args ...any) ([]*Require, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reqs []*Require
	for rows.Next() {
		r, err := scanRequire(rows)
		if err != nil {
			return nil, fmt.Errorf("scan require: %w", err)
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// RequiresByFile returns the require calls of one file in source order.
func (s *Store) RequiresByFile(fileID int64) ([]*Require, error) {
	reqs, err := s.queryRequires(
		"SELECT "+requireColumns+" FROM requires WHERE file_id = ? ORDER BY line, col", fileID)
	if err != nil {
		return nil, fmt.Errorf("requires by file: %w", err)
	}
	return reqs, nil
}

// AllRequires returns every stored require.
func (s *Store) AllRequires() ([]*Require, error) {
	reqs, err := s.queryRequires("SELECT " + requireColumns + " FROM requires ORDER BY file_id, line, col")
	if err != nil {
		return nil, fmt.Errorf("all requires: %w", err)
	}
	return reqs, nil
}
