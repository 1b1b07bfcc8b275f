// Package stdlib is the packaged, read-only builtin module tree `stdlib.*`
// resolves against (spec §4.1). Grounded on the teacher's
// internal/stdlib/init.go layout: one file per builtin module, a registry
// populated once, looked up by name rather than a filesystem path.
package stdlib

// Module is a packaged builtin QSOL module: a name and its source text.
type Module struct {
	Name   string
	Source string
}

var registry = map[string]Module{}

// register adds a builtin module to the packaged tree. Called from each
// builtin module's init().
func register(name, source string) {
	registry[name] = Module{Name: name, Source: source}
}

// Lookup resolves "card" (for `use stdlib.card;`) against the packaged tree.
func Lookup(name string) (Module, bool) {
	m, ok := registry[name]
	return m, ok
}

// Names returns every registered builtin module name, sorted by
// registration order is not guaranteed; callers that need a stable order
// should sort the result themselves.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
