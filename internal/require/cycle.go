package require

import "strings"

// aliasCycleTracker records the aliases visited while following one alias
// chain and reports the first repetition.
type aliasCycleTracker struct {
	seen    map[string]struct{}
	ordered []string
}

func newAliasCycleTracker() *aliasCycleTracker {
	return &aliasCycleTracker{seen: make(map[string]struct{})}
}

// add records alias. If it was already visited, the returned error
// describes the cycle from the first visit of alias back to itself.
func (t *aliasCycleTracker) add(alias string) error {
	if _, ok := t.seen[alias]; ok {
		return newError(KindAlias, "detected alias cycle (%s)", t.cycle(alias))
	}
	t.seen[alias] = struct{}{}
	t.ordered = append(t.ordered, alias)
	return nil
}

func (t *aliasCycleTracker) cycle(repeated string) string {
	var b strings.Builder
	inCycle := false
	for _, alias := range t.ordered {
		if alias == repeated {
			inCycle = true
		}
		if inCycle {
			b.WriteString("@")
			b.WriteString(alias)
			b.WriteString(" -> ")
		}
	}
	b.WriteString("@")
	b.WriteString(repeated)
	return b.String()
}
