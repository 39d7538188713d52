package require

import "context"

// Outcome is the result of every cursor-moving operation.
type Outcome int

const (
	// Present means the cursor moved, or the thing asked about exists.
	Present Outcome = iota
	// NotFound means there is no such target. The cursor did not move.
	NotFound
	// Ambiguous means more than one candidate exists.
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Present:
		return "present"
	case NotFound:
		return "not found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Module identifies the module at the cursor's position.
type Module struct {
	// ChunkName is the human readable name used in diagnostics and as the
	// requirer name when the module itself calls require.
	ChunkName string
	// LoadName is the opaque locator handed to Load.
	LoadName string
	// CacheKey is the identity under which the module's result is cached.
	CacheKey string
}

// Cursor is the navigation half of the resolver contract. Implementations
// own a single mutable position in a hierarchy of modules and
// configurations; the navigator only issues commands and reacts to the
// returned outcomes.
type Cursor interface {
	// Reset moves the cursor to the module identified by requirer.
	Reset(requirer string) Outcome
	// ToParent moves the cursor one level up. NotFound at the root.
	ToParent() Outcome
	// ToChild moves the cursor to the named child.
	ToChild(name string) Outcome
	// JumpToAlias moves the cursor to an alias target that cannot be
	// expressed as a relative path or another alias.
	JumpToAlias(target string) Outcome
	// ConfigStatus reports whether a configuration exists at the cursor.
	ConfigStatus() Outcome
	// ResolveAlias reads the raw target of alias from the configuration at
	// the cursor. Only called after ConfigStatus returned Present.
	ResolveAlias(alias string) (string, bool)
}

// Locator is a Cursor that can also describe the module it points at.
type Locator interface {
	Cursor
	// IsRequireAllowed reports whether requirer may call require at all.
	IsRequireAllowed(requirer string) bool
	// Module returns the module at the cursor, if any.
	Module() (Module, bool)
}

// Resolver is the full contract consumed by Engine.
type Resolver[V any] interface {
	Locator
	// Load executes the module and returns its results. Returning
	// ErrPending (with no values) makes the require suspend.
	Load(ctx context.Context, path, chunkName, loadName string) ([]V, error)
}
