package kernel

import "strconv"

// Registry maps long mangled kernel signatures to dense integer IDs for
// the lifetime of one compilation run. Registration is define-or-reuse:
// the first registration of a name binds the next counter value and every
// later registration returns that same ID. Stages share one registry per
// run and never reset it between stages.
//
// The registry is not safe for concurrent use; stages run in sequence.
type Registry struct {
	ids   map[string]int
	names []string
}

// NewRegistry returns an empty registry. IDs start at zero.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]int)}
}

// Register binds longName to an ID, minting a fresh one on first sight.
func (r *Registry) Register(longName string) int {
	if id, ok := r.ids[longName]; ok {
		return id
	}
	id := len(r.names)
	r.ids[longName] = id
	r.names = append(r.names, longName)
	return id
}

// LongName returns the signature bound to id, or "" when id was never
// minted.
func (r *Registry) LongName(id int) string {
	if id < 0 || id >= len(r.names) {
		return ""
	}
	return r.names[id]
}

// Len returns the number of registered kernels.
func (r *Registry) Len() int {
	return len(r.names)
}

// RegisterAndShortName registers longName and returns its short name.
func (r *Registry) RegisterAndShortName(longName string) string {
	return ShortName(r.Register(longName))
}

// ShortName formats the compact ABI-safe name for a kernel ID. Pure: any
// holder of an ID can recreate the name without the registry.
func ShortName(id int) string {
	return ShortNamePrefix + strconv.Itoa(id)
}
