package ir

// Builder eases emitting instructions into a basic block.
type Builder struct {
	m  *Module
	f  *Func
	bb *Block
}

// NewBuilder creates a builder for f without an insertion point.
func NewBuilder(m *Module, f *Func) *Builder {
	return &Builder{m: m, f: f}
}

// CreateBlock appends a block to the function and moves the insertion point
// to its end.
func (b *Builder) CreateBlock(name string) *Block {
	b.bb = b.f.AddBlock(name)
	return b.bb
}

// SetInsertPoint moves the insertion point to the end of bb.
func (b *Builder) SetInsertPoint(bb *Block) {
	b.bb = bb
}

// CreateAlloca reserves stack storage for one ty and returns its address.
func (b *Builder) CreateAlloca(ty TypeID) Value {
	i := b.bb.Append(NewAlloca(ty))
	return InstrValue(i, b.m.Types.Pointer(ty, 0))
}

// CreateStore writes val through ptr.
func (b *Builder) CreateStore(val, ptr Value) {
	b.bb.Append(NewStore(val, ptr))
}

// CreateLoad reads a ty through ptr.
func (b *Builder) CreateLoad(ptr Value, ty TypeID) Value {
	i := b.bb.Append(NewLoad(ptr, ty))
	return InstrValue(i, ty)
}

// CreatePointerCast reinterprets val as pointer type to.
func (b *Builder) CreatePointerCast(val Value, to TypeID) Value {
	i := b.bb.Append(NewPtrCast(val, to))
	return InstrValue(i, to)
}

// CreateCall invokes callee with args.
func (b *Builder) CreateCall(callee *Func, args ...Value) *Instr {
	return b.bb.Append(NewCall(callee, args...))
}

// CreateRetVoid terminates the current block with a value-less return.
func (b *Builder) CreateRetVoid() {
	b.bb.Append(NewRetVoid())
}

// CreateGlobalStringPtr interns content as a private string constant and
// returns an opaque byte pointer to it.
func (b *Builder) CreateGlobalStringPtr(content string) Value {
	return b.m.AddGlobalString(content)
}

// Int64 builds an i64 constant.
func (b *Builder) Int64(v int64) Value {
	return ConstInt(b.m.Types.Builtins().I64, v)
}

// Int32 builds an i32 constant.
func (b *Builder) Int32(v int64) Value {
	return ConstInt(b.m.Types.Builtins().I32, v)
}
