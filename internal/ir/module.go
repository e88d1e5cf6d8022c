package ir

import "fmt"

// Linkage classifies a global object's visibility to later link steps.
type Linkage uint8

const (
	// LinkageExternal keeps the object visible to external consumers.
	LinkageExternal Linkage = iota
	// LinkageInternal makes the object a candidate for dead code elimination.
	LinkageInternal
)

// String returns the textual linkage tag.
func (l Linkage) String() string {
	switch l {
	case LinkageExternal:
		return "external"
	case LinkageInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// MDNode is a flat metadata operand list: a run of strings, a run of
// integers, or both.
type MDNode struct {
	Strings []string
	Ints    []int64
}

// NamedMD is one module-level metadata entry.
type NamedMD struct {
	Key   string
	Nodes []MDNode
}

// Global is a module-level variable. Initializer payloads are opaque to the
// pipeline except for string constants, which the marshalling rewriter
// creates itself.
type Global struct {
	Name    string
	Type    TypeID
	Linkage Linkage
	IsDecl  bool
	// Str holds the content of a string-constant initializer, when the
	// global is one.
	Str string
}

// Alias is a module-level alias to another global object, tracked by name.
type Alias struct {
	Name    string
	Target  string
	Linkage Linkage
}

// Module is the compiled unit under transformation. It owns its functions
// and globals and is mutated destructively in place by every stage.
type Module struct {
	Name         string
	TargetTriple string
	Types        *TypeInterner
	Funcs        []*Func
	Globals      []*Global
	Aliases      []*Alias
	NamedMD      []NamedMD
}

// NewModule creates an empty module with a fresh type interner.
func NewModule(name string) *Module {
	return &Module{Name: name, Types: NewTypeInterner()}
}

// FuncByName returns the function with the given linkage name, or nil.
// Functions are renamed mid-pipeline, so lookup scans rather than caching.
func (m *Module) FuncByName(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AddFunc appends a function to the module.
func (m *Module) AddFunc(f *Func) *Func {
	m.Funcs = append(m.Funcs, f)
	return f
}

// RemoveFunc erases the function with the given name. Reports whether
// anything was removed.
func (m *Module) RemoveFunc(name string) bool {
	for i, f := range m.Funcs {
		if f.Name == name {
			m.Funcs = append(m.Funcs[:i], m.Funcs[i+1:]...)
			return true
		}
	}
	return false
}

// GlobalByName returns the global with the given name, or nil.
func (m *Module) GlobalByName(name string) *Global {
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// AddGlobal appends a global variable to the module.
func (m *Module) AddGlobal(g *Global) *Global {
	m.Globals = append(m.Globals, g)
	return g
}

// RemoveGlobal erases the global with the given name. Reports whether
// anything was removed.
func (m *Module) RemoveGlobal(name string) bool {
	for i, g := range m.Globals {
		if g.Name == name {
			m.Globals = append(m.Globals[:i], m.Globals[i+1:]...)
			return true
		}
	}
	return false
}

// AddGlobalString interns a private string constant and returns an opaque
// byte pointer to it. Names are drawn from a per-module ".str" counter.
func (m *Module) AddGlobalString(content string) Value {
	name := ".str"
	for n := 1; m.GlobalByName(name) != nil; n++ {
		name = fmt.Sprintf(".str.%d", n)
	}
	lenContent := len(content) + 1 // trailing NUL
	g := m.AddGlobal(&Global{
		Name:    name,
		Type:    m.Types.Array(m.Types.Builtins().I8, uint32(lenContent)), //nolint:gosec // G115: string lengths fit
		Linkage: LinkageInternal,
		Str:     content,
	})
	return Value{Kind: ValueGlobal, Type: m.Types.Builtins().BytePtr, Global: g}
}

// AddNamedMD appends a node under a module-level metadata key, creating the
// entry on first use.
func (m *Module) AddNamedMD(key string, node MDNode) {
	for i := range m.NamedMD {
		if m.NamedMD[i].Key == key {
			m.NamedMD[i].Nodes = append(m.NamedMD[i].Nodes, node)
			return
		}
	}
	m.NamedMD = append(m.NamedMD, NamedMD{Key: key, Nodes: []MDNode{node}})
}

// NamedMDByKey returns the nodes stored under a module-level metadata key.
func (m *Module) NamedMDByKey(key string) ([]MDNode, bool) {
	for i := range m.NamedMD {
		if m.NamedMD[i].Key == key {
			return m.NamedMD[i].Nodes, true
		}
	}
	return nil, false
}
