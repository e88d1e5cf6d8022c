package ir

// InstrKind enumerates instruction kinds.
type InstrKind uint8

const (
	// InstrInvalid is the zero, unusable kind.
	InstrInvalid InstrKind = iota
	// InstrCall invokes another function.
	InstrCall
	// InstrAlloca reserves stack storage for one value.
	InstrAlloca
	// InstrStore writes a value through a pointer.
	InstrStore
	// InstrLoad reads a value through a pointer.
	InstrLoad
	// InstrPtrCast reinterprets a pointer as another pointer type.
	InstrPtrCast
	// InstrRet terminates a block by returning.
	InstrRet
	// InstrUnreachable terminates a block that cannot be reached.
	InstrUnreachable
)

// ValueKind distinguishes operand sources.
type ValueKind uint8

const (
	// ValueInvalid is the zero, unusable kind.
	ValueInvalid ValueKind = iota
	// ValueConstInt is an integer constant.
	ValueConstInt
	// ValueParam names a parameter of the enclosing function by index.
	ValueParam
	// ValueInstr is the result of another instruction in the same function.
	ValueInstr
	// ValueGlobal is the address of a module global.
	ValueGlobal
	// ValueFunc is the address of a function.
	ValueFunc
)

// Value is an operand.
type Value struct {
	Kind   ValueKind
	Type   TypeID
	Int    int64
	Param  int
	Instr  *Instr
	Global *Global
	Func   *Func
}

// ConstInt builds an integer constant operand.
func ConstInt(ty TypeID, v int64) Value {
	return Value{Kind: ValueConstInt, Type: ty, Int: v}
}

// InstrValue builds an operand referring to an instruction result.
func InstrValue(i *Instr, ty TypeID) Value {
	return Value{Kind: ValueInstr, Type: ty, Instr: i}
}

// CallInstr invokes Callee with Args.
type CallInstr struct {
	Callee *Func
	Args   []Value
}

// AllocaInstr reserves storage for one value of Ty; its result is a pointer
// to Ty in address space 0.
type AllocaInstr struct {
	Ty TypeID
}

// StoreInstr writes Val through Ptr.
type StoreInstr struct {
	Val Value
	Ptr Value
}

// LoadInstr reads a Ty through Ptr.
type LoadInstr struct {
	Ptr Value
	Ty  TypeID
}

// PtrCastInstr reinterprets Val as pointer type To.
type PtrCastInstr struct {
	Val Value
	To  TypeID
}

// RetInstr returns from the function, optionally with a value.
type RetInstr struct {
	HasValue bool
	Value    Value
}

// Instr is one instruction, a tagged union over the per-kind payloads.
type Instr struct {
	Kind InstrKind

	Call    CallInstr
	Alloca  AllocaInstr
	Store   StoreInstr
	Load    LoadInstr
	PtrCast PtrCastInstr
	Ret     RetInstr
}

// IsTerminator reports whether the instruction legally ends a block.
func (i *Instr) IsTerminator() bool {
	return i.Kind == InstrRet || i.Kind == InstrUnreachable
}

// NewCall builds a call instruction.
func NewCall(callee *Func, args ...Value) *Instr {
	return &Instr{Kind: InstrCall, Call: CallInstr{Callee: callee, Args: args}}
}

// NewAlloca builds a stack allocation for one value of ty.
func NewAlloca(ty TypeID) *Instr {
	return &Instr{Kind: InstrAlloca, Alloca: AllocaInstr{Ty: ty}}
}

// NewStore builds a store of val through ptr.
func NewStore(val, ptr Value) *Instr {
	return &Instr{Kind: InstrStore, Store: StoreInstr{Val: val, Ptr: ptr}}
}

// NewLoad builds a load of ty through ptr.
func NewLoad(ptr Value, ty TypeID) *Instr {
	return &Instr{Kind: InstrLoad, Load: LoadInstr{Ptr: ptr, Ty: ty}}
}

// NewPtrCast builds a pointer reinterpretation of val to type to.
func NewPtrCast(val Value, to TypeID) *Instr {
	return &Instr{Kind: InstrPtrCast, PtrCast: PtrCastInstr{Val: val, To: to}}
}

// NewRetVoid builds a value-less return terminator.
func NewRetVoid() *Instr {
	return &Instr{Kind: InstrRet}
}

// NewRet builds a return terminator carrying a value.
func NewRet(v Value) *Instr {
	return &Instr{Kind: InstrRet, Ret: RetInstr{HasValue: true, Value: v}}
}

// NewUnreachable builds an unreachable terminator.
func NewUnreachable() *Instr {
	return &Instr{Kind: InstrUnreachable}
}
