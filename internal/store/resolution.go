package store

import "fmt"

// RequiresByTarget returns the requires that resolved to the module with
// cache key target.
func (s *Store) RequiresByTarget(target string) ([]*Require, error) {
	reqs, err := s.queryRequires(
		"SELECT "+requireColumns+" FROM requires WHERE target = ? ORDER BY file_id, line, col", target)
	if err != nil {
		return nil, fmt.Errorf("requires by target: %w", err)
	}
	return reqs, nil
}

// UnresolvedRequires returns every require whose path did not resolve.
func (s *Store) UnresolvedRequires() ([]*Require, error) {
	reqs, err := s.queryRequires(
		"SELECT " + requireColumns + " FROM requires WHERE target IS NULL ORDER BY file_id, line, col")
	if err != nil {
		return nil, fmt.Errorf("unresolved requires: %w", err)
	}
	return reqs, nil
}

// ApplyResolutions rewrites the target and error of existing requires in a
// single transaction.
func (s *Store) ApplyResolutions(resolutions []Resolution) error {
	if len(resolutions) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("apply resolutions: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("UPDATE requires SET target = ?, error = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("apply resolutions: prepare: %w", err)
	}
	defer stmt.Close()

	for _, res := range resolutions {
		if _, err := stmt.Exec(nullString(res.Target), nullString(res.Error), res.RequireID); err != nil {
			return fmt.Errorf("apply resolutions: require %d: %w", res.RequireID, err)
		}
	}
	return tx.Commit()
}
