package require

import (
	"context"
	"strings"
)

// fakeResolver is an in-memory module tree. Positions are slash paths with
// "" as the root; chunk names are "@" + position.
type fakeResolver struct {
	dirs         map[string]bool
	modules      map[string]bool
	configs      map[string]map[string]string
	ambiguous    map[string]bool
	ambiguousCfg map[string]bool
	jumps        map[string]string
	denied       bool
	descriptor   func(pos string) Module

	load  func(ctx context.Context, path, chunkName, loadName string) ([]string, error)
	loads []string

	pos   string
	calls []string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		dirs:         map[string]bool{"": true},
		modules:      map[string]bool{},
		configs:      map[string]map[string]string{},
		ambiguous:    map[string]bool{},
		ambiguousCfg: map[string]bool{},
		jumps:        map[string]string{},
	}
}

// withModules registers module positions and all of their ancestor
// directories.
func (f *fakeResolver) withModules(positions ...string) *fakeResolver {
	for _, p := range positions {
		f.modules[p] = true
		for dir := parentOf(p); dir != ""; dir = parentOf(dir) {
			f.dirs[dir] = true
		}
	}
	return f
}

func (f *fakeResolver) withConfig(dir string, aliases map[string]string) *fakeResolver {
	f.dirs[dir] = true
	f.configs[dir] = aliases
	return f
}

func parentOf(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}

func joinPos(pos, name string) string {
	if pos == "" {
		return name
	}
	return pos + "/" + name
}

func (f *fakeResolver) IsRequireAllowed(requirer string) bool {
	f.calls = append(f.calls, "allowed "+requirer)
	return !f.denied
}

func (f *fakeResolver) Reset(requirer string) Outcome {
	f.calls = append(f.calls, "reset "+requirer)
	p := strings.TrimPrefix(requirer, "@")
	if !f.modules[p] {
		return NotFound
	}
	f.pos = p
	return Present
}

func (f *fakeResolver) ToParent() Outcome {
	f.calls = append(f.calls, "parent")
	if f.pos == "" {
		return NotFound
	}
	f.pos = parentOf(f.pos)
	return Present
}

func (f *fakeResolver) ToChild(name string) Outcome {
	f.calls = append(f.calls, "child "+name)
	p := joinPos(f.pos, name)
	if f.ambiguous[p] {
		return Ambiguous
	}
	if !f.dirs[p] && !f.modules[p] {
		return NotFound
	}
	f.pos = p
	return Present
}

func (f *fakeResolver) JumpToAlias(target string) Outcome {
	f.calls = append(f.calls, "jump "+target)
	p, ok := f.jumps[target]
	if !ok {
		return NotFound
	}
	f.pos = p
	return Present
}

func (f *fakeResolver) ConfigStatus() Outcome {
	f.calls = append(f.calls, "config")
	if f.ambiguousCfg[f.pos] {
		return Ambiguous
	}
	if _, ok := f.configs[f.pos]; ok {
		return Present
	}
	return NotFound
}

func (f *fakeResolver) ResolveAlias(alias string) (string, bool) {
	f.calls = append(f.calls, "alias "+alias)
	target, ok := f.configs[f.pos][alias]
	return target, ok
}

func (f *fakeResolver) Module() (Module, bool) {
	if !f.modules[f.pos] {
		return Module{}, false
	}
	if f.descriptor != nil {
		return f.descriptor(f.pos), true
	}
	return Module{ChunkName: "@" + f.pos, LoadName: f.pos, CacheKey: f.pos}, true
}

func (f *fakeResolver) Load(ctx context.Context, path, chunkName, loadName string) ([]string, error) {
	f.loads = append(f.loads, loadName)
	if f.load != nil {
		return f.load(ctx, path, chunkName, loadName)
	}
	return []string{"result of " + loadName}, nil
}
