package store

import "time"

// File is an indexed Lua or Luau source file.
type File struct {
	ID          int64
	Path        string
	ChunkName   string
	Language    string
	Hash        string
	LastIndexed time.Time
}

// Require is one require call site. Target is the cache key of the module
// the path resolved to; it is empty and Error is set when resolution
// failed.
type Require struct {
	ID     int64
	FileID int64
	Path   string
	Line   int
	Col    int
	Target string
	Error  string
}

// Resolved reports whether the require points at a module.
func (r *Require) Resolved() bool {
	return r.Target != ""
}

// Resolution is the outcome of resolving one stored require.
type Resolution struct {
	RequireID int64
	Target    string
	Error     string
}

// Dependent is a file reached by walking require edges backwards.
type Dependent struct {
	File  *File
	Depth int
}
