package require

import "strings"

// PathKind classifies a require path by its prefix.
type PathKind int

const (
	Unsupported PathKind = iota
	RelativeCurrent
	RelativeParent
	Aliased
)

func (k PathKind) String() string {
	switch k {
	case RelativeCurrent:
		return "relative-current"
	case RelativeParent:
		return "relative-parent"
	case Aliased:
		return "aliased"
	default:
		return "unsupported"
	}
}

// Relative reports whether k is one of the two relative kinds.
func (k PathKind) Relative() bool {
	return k == RelativeCurrent || k == RelativeParent
}

// Classify determines the kind of path from its prefix alone.
func Classify(path string) PathKind {
	switch {
	case strings.HasPrefix(path, "./"):
		return RelativeCurrent
	case strings.HasPrefix(path, "../"):
		return RelativeParent
	case strings.HasPrefix(path, "@"):
		return Aliased
	default:
		return Unsupported
	}
}

// Split cuts path at its first '/'. When there is no separator the whole
// path is the head and rest is empty.
func Split(path string) (head, rest string) {
	head, rest, _ = strings.Cut(path, "/")
	return head, rest
}

// aliasName returns the alias of an aliased path: everything after the
// leading '@' up to the first '/'.
func aliasName(path string) string {
	head, _ := Split(strings.TrimPrefix(path, "@"))
	return head
}

// stripAlias drops the leading alias component of an aliased path.
func stripAlias(path string) string {
	_, rest := Split(path)
	return rest
}
