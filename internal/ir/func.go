package ir

// CallConv tags a function with its calling convention.
type CallConv uint8

const (
	// CallConvC is the host default convention.
	CallConvC CallConv = iota
	// CallConvSPIRFunc is the target's plain-function convention.
	CallConvSPIRFunc
	// CallConvSPIRKernel is the target's kernel-entry convention.
	CallConvSPIRKernel
)

// String returns the textual convention tag.
func (c CallConv) String() string {
	switch c {
	case CallConvC:
		return "ccc"
	case CallConvSPIRFunc:
		return "spir_func"
	case CallConvSPIRKernel:
		return "spir_kernel"
	default:
		return "unknown"
	}
}

// AttrFlags is a bit set of function attributes.
type AttrFlags uint8

const (
	// AttrNoInline forbids inlining.
	AttrNoInline AttrFlags = 1 << iota
	// AttrAlwaysInline requests unconditional inlining.
	AttrAlwaysInline
)

// Param is one typed function argument.
type Param struct {
	Name string
	Type TypeID
	// ReadOnly marks an argument that only reads the memory it points to.
	ReadOnly bool
	// NoAlias marks an argument that does not alias other arguments.
	NoAlias bool
}

// FuncMD is one function-level metadata entry. Kept as an ordered slice so
// dumps stay deterministic.
type FuncMD struct {
	Key  string
	Node MDNode
}

// Func is a function in the module: a declaration when it has no blocks, a
// definition otherwise.
type Func struct {
	Name           string
	Linkage        Linkage
	CallConv       CallConv
	Params         []Param
	Result         TypeID
	Blocks         []*Block
	Metadata       []FuncMD
	Attrs          AttrFlags
	HasPersonality bool
}

// IsDeclaration reports whether the function has no body.
func (f *Func) IsDeclaration() bool {
	return len(f.Blocks) == 0
}

// EraseBody drops every basic block, turning the function into a shell the
// caller is expected to refill before the module is validated again.
func (f *Func) EraseBody() {
	f.Blocks = nil
}

// AddBlock appends a basic block to the function.
func (f *Func) AddBlock(name string) *Block {
	bb := &Block{Name: name}
	f.Blocks = append(f.Blocks, bb)
	return bb
}

// SetMetadata replaces the node under key, appending on first use.
func (f *Func) SetMetadata(key string, node MDNode) {
	for i := range f.Metadata {
		if f.Metadata[i].Key == key {
			f.Metadata[i].Node = node
			return
		}
	}
	f.Metadata = append(f.Metadata, FuncMD{Key: key, Node: node})
}

// GetMetadata returns the node stored under key.
func (f *Func) GetMetadata(key string) (MDNode, bool) {
	for i := range f.Metadata {
		if f.Metadata[i].Key == key {
			return f.Metadata[i].Node, true
		}
	}
	return MDNode{}, false
}

// HasAttr reports whether all given attribute bits are set.
func (f *Func) HasAttr(a AttrFlags) bool {
	return f.Attrs&a == a
}

// AddAttr sets the given attribute bits.
func (f *Func) AddAttr(a AttrFlags) {
	f.Attrs |= a
}

// ParamValue returns the SSA value of the i-th parameter.
func (f *Func) ParamValue(i int) Value {
	if i < 0 || i >= len(f.Params) {
		return Value{}
	}
	return Value{Kind: ValueParam, Type: f.Params[i].Type, Param: i}
}
