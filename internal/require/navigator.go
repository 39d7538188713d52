package require

import "strings"

// aliasTable maps lower-cased alias names to their raw targets. It lives
// for one top-level alias lookup.
type aliasTable map[string]string

// navigator drives a Cursor from the requirer's position to the module a
// require path names.
type navigator struct {
	cursor   Cursor
	requirer string
}

// Navigate moves c to the module that path names when required from
// requirer. On failure the returned error is an *Error and the cursor is
// left wherever navigation stopped.
func Navigate(c Cursor, requirer, path string) error {
	n := &navigator{cursor: c, requirer: requirer}
	return n.navigate(path)
}

func (n *navigator) navigate(path string) error {
	path = strings.ReplaceAll(path, `\`, "/")

	if err := n.resetToRequirer(); err != nil {
		return err
	}

	kind := Classify(path)
	switch {
	case kind == Aliased:
		return n.navigateAliased(path)
	case kind.Relative():
		if err := n.toParent(""); err != nil {
			return err
		}
		return n.walk(path)
	default:
		return newError(KindPath, "require path must start with a valid prefix: ./, ../, or @")
	}
}

func (n *navigator) navigateAliased(path string) error {
	alias := strings.ToLower(aliasName(path))

	aliases := aliasTable{}
	if err := n.searchAlias(alias, aliases); err != nil {
		return err
	}

	if _, ok := aliases[alias]; !ok {
		if alias != "self" {
			return invalidAlias(alias)
		}
		// @self is the requirer itself unless a configuration says otherwise.
		if err := n.resetToRequirer(); err != nil {
			return err
		}
		return n.walk(stripAlias(path))
	}

	if err := n.toAlias(alias, aliases, newAliasCycleTracker()); err != nil {
		return err
	}
	return n.walk(stripAlias(path))
}

// walk follows the components of a relative path from the cursor.
func (n *navigator) walk(path string) error {
	var previous string
	head, rest := Split(path)
	for head != "" || rest != "" {
		switch head {
		case ".", "":
			head, rest = Split(rest)
			continue
		case "..":
			if err := n.toParent(previous); err != nil {
				return err
			}
		default:
			if err := n.toChild(head); err != nil {
				return err
			}
		}
		previous = head
		head, rest = Split(rest)
	}
	return nil
}

// toAlias moves the cursor to the target of alias, following chained
// aliases until a relative path or an opaque target is reached.
func (n *navigator) toAlias(alias string, aliases aliasTable, cycles *aliasCycleTracker) error {
	target := aliases[alias]

	kind := Classify(target)
	switch {
	case kind.Relative():
		// Relative targets start at the configuration that declared them,
		// which is where the cursor already is.
		return n.walk(target)
	case kind == Aliased:
		if err := cycles.add(alias); err != nil {
			return err
		}

		next := strings.ToLower(aliasName(target))
		if _, ok := aliases[next]; !ok {
			if err := n.lookupChained(next, aliases); err != nil {
				return err
			}
			if _, ok := aliases[next]; !ok {
				return invalidAlias(next)
			}
		}

		if err := n.toAlias(next, aliases, cycles); err != nil {
			return err
		}
		return n.walk(stripAlias(target))
	default:
		return n.jumpToAlias(target)
	}
}

// lookupChained finds the target of an alias named by another alias. The
// configuration at the cursor is consulted first, then the search continues
// toward the root.
func (n *navigator) lookupChained(alias string, aliases aliasTable) error {
	switch n.cursor.ConfigStatus() {
	case Ambiguous:
		return ambiguousConfig(alias)
	case Present:
		if target, ok := n.cursor.ResolveAlias(alias); ok {
			aliases[alias] = target
			return nil
		}
	}
	return n.searchAlias(alias, aliases)
}

// searchAlias walks toward the root until a configuration is found or the
// root is reached, recording at most one entry for alias. Reaching the root
// is not an error.
func (n *navigator) searchAlias(alias string, aliases aliasTable) error {
	for {
		switch n.cursor.ToParent() {
		case Ambiguous:
			return newError(KindNavigation,
				"could not navigate up the ancestry chain during search for alias %q (ambiguous)", alias)
		case NotFound:
			return nil
		}

		switch n.cursor.ConfigStatus() {
		case NotFound:
			continue
		case Ambiguous:
			return ambiguousConfig(alias)
		}

		if target, ok := n.cursor.ResolveAlias(alias); ok {
			aliases[alias] = target
		}
		return nil
	}
}

func (n *navigator) resetToRequirer() error {
	o := n.cursor.Reset(n.requirer)
	if o == Present {
		return nil
	}
	return newError(KindNavigation, "could not reset to requiring context%s", ambiguousSuffix(o))
}

func (n *navigator) jumpToAlias(target string) error {
	o := n.cursor.JumpToAlias(target)
	if o == Present {
		return nil
	}
	return newError(KindNavigation, "could not jump to alias %q%s", target, ambiguousSuffix(o))
}

func (n *navigator) toParent(previous string) error {
	o := n.cursor.ToParent()
	if o == Present {
		return nil
	}
	if previous != "" {
		return newError(KindNavigation, "could not get parent of component %q%s", previous, ambiguousSuffix(o))
	}
	return newError(KindNavigation, "could not get parent of requiring context%s", ambiguousSuffix(o))
}

func (n *navigator) toChild(name string) error {
	o := n.cursor.ToChild(name)
	if o == Present {
		return nil
	}
	return newError(KindNavigation, "could not resolve child component %q%s", name, ambiguousSuffix(o))
}

func invalidAlias(alias string) *Error {
	return newError(KindAlias, "@%s is not a valid alias", alias)
}

func ambiguousConfig(alias string) *Error {
	return newError(KindAlias, "could not resolve alias %q (ambiguous configuration file)", alias)
}
