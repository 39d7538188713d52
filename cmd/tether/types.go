package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIModule is a resolved module descriptor.
type CLIModule struct {
	ChunkName string `json:"chunk_name"`
	LoadName  string `json:"load_name"`
	CacheKey  string `json:"cache_key"`
}

// CLIDependency is one require call site and its resolution.
type CLIDependency struct {
	File   string `json:"file"`
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Col    int    `json:"col"`
	Target string `json:"target,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CLIDependent is a file reached by following require edges backwards.
type CLIDependent struct {
	File  string `json:"file"`
	Depth int    `json:"depth"`
}

// CLIModuleSummary is an indexed module with its degree in the graph.
type CLIModuleSummary struct {
	Path       string `json:"path"`
	ChunkName  string `json:"chunk_name"`
	Language   string `json:"language"`
	Requires   int    `json:"requires"`
	Dependents int    `json:"dependents"`
}

// CLIIndexSummary reports what an index run produced.
type CLIIndexSummary struct {
	Root       string `json:"root"`
	Database   string `json:"database"`
	Modules    int    `json:"modules"`
	Requires   int    `json:"requires"`
	Unresolved int    `json:"unresolved"`
	DurationMS int64  `json:"duration_ms"`
}

// CLIRunResult is the value a script evaluated to.
type CLIRunResult struct {
	Script string `json:"script"`
	Type   string `json:"type,omitempty"`
	Value  string `json:"value,omitempty"`
}
