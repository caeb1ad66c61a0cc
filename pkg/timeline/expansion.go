package timeline

import "sort"

// Expansion tracks which timeline groups are expanded. Keys come from
// ExpansionKey.
type Expansion struct {
	open map[string]struct{}
}

func NewExpansion() *Expansion {
	return &Expansion{open: make(map[string]struct{})}
}

func (e *Expansion) Reset() {
	e.open = make(map[string]struct{})
}

// Seed replaces the whole set with a single key.
func (e *Expansion) Seed(key string) {
	e.Reset()
	e.open[key] = struct{}{}
}

func (e *Expansion) Add(key string) {
	e.open[key] = struct{}{}
}

// Toggle flips the key and reports whether it is now expanded.
func (e *Expansion) Toggle(key string) bool {
	if _, ok := e.open[key]; ok {
		delete(e.open, key)
		return false
	}
	e.open[key] = struct{}{}
	return true
}

func (e *Expansion) Contains(key string) bool {
	_, ok := e.open[key]
	return ok
}

func (e *Expansion) Len() int {
	return len(e.open)
}

// Keys returns the expanded keys in lexical order.
func (e *Expansion) Keys() []string {
	keys := make([]string, 0, len(e.open))
	for k := range e.open {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
