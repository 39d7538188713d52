package store

// DataStore is the interface for scan-phase writes. Both Store (direct
// SQLite) and BatchedStore (in-memory buffering for parallel scanning)
// implement this interface.
type DataStore interface {
	// Each insert returns the assigned ID.
	InsertFile(f *File) (int64, error)
	InsertRequire(r *Require) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
