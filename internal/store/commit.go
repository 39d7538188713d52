package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch writes all buffered data from a BatchedStore to SQLite within
// a single transaction. A file that is already indexed under the same path
// is replaced along with its requires. Fake (negative) IDs are remapped to
// real IDs and the batch is updated in place.
//
// Insert order respects FK dependencies:
//  1. Files
//  2. Requires (depend on file_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)

	// 1. Files
	for i := range batch.Files {
		f := &batch.Files[i]
		if _, err := tx.Exec("DELETE FROM files WHERE path = ?", f.Path); err != nil {
			return fmt.Errorf("commit batch: replace file %q: %w", f.Path, err)
		}
		realID, err := insertFileTx(tx, f)
		if err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
		fakeToReal[f.ID] = realID
		f.ID = realID
	}

	// 2. Requires
	for i := range batch.Requires {
		r := &batch.Requires[i]
		if r.FileID < 0 {
			realID, ok := fakeToReal[r.FileID]
			if !ok {
				return fmt.Errorf("commit batch: require %q: unknown file %d", r.Path, r.FileID)
			}
			r.FileID = realID
		}
		realID, err := insertRequireTx(tx, r)
		if err != nil {
			return fmt.Errorf("commit batch: require %q: %w", r.Path, err)
		}
		r.ID = realID
	}

	return tx.Commit()
}

func insertFileTx(tx *sql.Tx, f *File) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO files (path, chunk_name, language, hash, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.ChunkName, f.Language, f.Hash, f.LastIndexed,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertRequireTx(tx *sql.Tx, r *Require) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO requires (file_id, path, line, col, target, error) VALUES (?, ?, ?, ?, ?, ?)",
		r.FileID, r.Path, r.Line, r.Col, nullString(r.Target), nullString(r.Error),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
