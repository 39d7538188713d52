package tether

import (
	"github.com/jward/tether/internal/require"
	"github.com/jward/tether/internal/store"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder APIs. External consumers use these names; no conversion is
// needed.

type Store = store.Store
type File = store.File
type Require = store.Require
type Dependent = store.Dependent
type Module = require.Module
