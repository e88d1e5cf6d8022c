package ir

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// TypeID identifies an interned type descriptor.
type TypeID uint32

// NoTypeID marks an absent or unresolved type.
const NoTypeID TypeID = ^TypeID(0)

// Kind enumerates type kinds.
type Kind uint8

const (
	// KindInvalid is the zero, unusable kind.
	KindInvalid Kind = iota
	// KindVoid is the empty result type.
	KindVoid
	// KindInt is a fixed-width integer (Bits holds the width).
	KindInt
	// KindFloat is a fixed-width float (Bits holds the width).
	KindFloat
	// KindPointer points to Elem in address space AddrSpace.
	KindPointer
	// KindArray is Count elements of Elem.
	KindArray
	// KindStruct references a StructInfo slot.
	KindStruct
)

// Type is a structural type descriptor. Comparable so it can key the
// interner index.
type Type struct {
	Kind      Kind
	Bits      uint32
	Elem      TypeID
	AddrSpace uint32
	Count     uint32
	Struct    uint32
}

// StructInfo carries the named-field payload a flat Type cannot hold.
type StructInfo struct {
	Name   string
	Fields []TypeID
}

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Void    TypeID
	I1      TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
	F32     TypeID
	F64     TypeID
	BytePtr TypeID
}

// TypeInterner provides stable TypeIDs by hashing structural descriptors.
type TypeInterner struct {
	types    []Type
	index    map[Type]TypeID
	structs  []StructInfo
	builtins Builtins
}

// NewTypeInterner constructs an interner seeded with built-in primitives.
func NewTypeInterner() *TypeInterner {
	in := &TypeInterner{
		index: make(map[Type]TypeID, 32),
	}
	in.structs = append(in.structs, StructInfo{}) // reserve 0 as invalid sentinel
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.I1 = in.Int(1)
	in.builtins.I8 = in.Int(8)
	in.builtins.I16 = in.Int(16)
	in.builtins.I32 = in.Int(32)
	in.builtins.I64 = in.Int(64)
	in.builtins.F32 = in.Float(32)
	in.builtins.F64 = in.Float(64)
	in.builtins.BytePtr = in.Pointer(in.builtins.I8, 0)
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *TypeInterner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *TypeInterner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *TypeInterner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Int interns an integer type of the given bit width.
func (in *TypeInterner) Int(bits uint32) TypeID {
	return in.Intern(Type{Kind: KindInt, Bits: bits})
}

// Float interns a float type of the given bit width.
func (in *TypeInterner) Float(bits uint32) TypeID {
	return in.Intern(Type{Kind: KindFloat, Bits: bits})
}

// Pointer interns a pointer to elem in the given address space.
func (in *TypeInterner) Pointer(elem TypeID, addrSpace uint32) TypeID {
	return in.Intern(Type{Kind: KindPointer, Elem: elem, AddrSpace: addrSpace})
}

// Array interns an array of count elements of elem.
func (in *TypeInterner) Array(elem TypeID, count uint32) TypeID {
	return in.Intern(Type{Kind: KindArray, Elem: elem, Count: count})
}

// Struct interns a named struct with the given field types. Two calls with
// the same name and fields yield distinct IDs only if called twice; callers
// are expected to intern each struct once.
func (in *TypeInterner) Struct(name string, fields []TypeID) TypeID {
	slot, err := safecast.Conv[uint32](len(in.structs))
	if err != nil {
		panic(fmt.Errorf("len(structs) overflow: %w", err))
	}
	in.structs = append(in.structs, StructInfo{Name: name, Fields: append([]TypeID(nil), fields...)})
	return in.internRaw(Type{Kind: KindStruct, Struct: slot})
}

// Lookup returns the descriptor for a TypeID.
func (in *TypeInterner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *TypeInterner) MustLookup(id TypeID) Type {
	t, ok := in.Lookup(id)
	if !ok {
		panic("ir: invalid TypeID")
	}
	return t
}

// StructInfoOf returns the struct payload for a struct-kinded TypeID.
func (in *TypeInterner) StructInfoOf(id TypeID) (StructInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindStruct || int(t.Struct) >= len(in.structs) {
		return StructInfo{}, false
	}
	return in.structs[t.Struct], true
}

// pointerSize is the storage size of any pointer under the target data
// layout. The downstream consumer is 64-bit only.
const pointerSize = 8

// AllocSize returns the in-memory storage size of a type in bytes under the
// target data layout. Used to measure serialized kernel arguments.
func (in *TypeInterner) AllocSize(id TypeID) uint64 {
	t, ok := in.Lookup(id)
	if !ok {
		return 0
	}
	switch t.Kind {
	case KindVoid:
		return 0
	case KindInt, KindFloat:
		return scalarSize(t.Bits)
	case KindPointer:
		return pointerSize
	case KindArray:
		return uint64(t.Count) * in.AllocSize(t.Elem)
	case KindStruct:
		info, ok := in.StructInfoOf(id)
		if !ok {
			return 0
		}
		var size uint64
		var maxAlign uint64 = 1
		for _, f := range info.Fields {
			align := in.AlignOf(f)
			if align > maxAlign {
				maxAlign = align
			}
			size = roundUp(size, align) + in.AllocSize(f)
		}
		return roundUp(size, maxAlign)
	default:
		return 0
	}
}

// AlignOf returns the ABI alignment of a type in bytes.
func (in *TypeInterner) AlignOf(id TypeID) uint64 {
	t, ok := in.Lookup(id)
	if !ok {
		return 1
	}
	switch t.Kind {
	case KindInt, KindFloat:
		return scalarSize(t.Bits)
	case KindPointer:
		return pointerSize
	case KindArray:
		return in.AlignOf(t.Elem)
	case KindStruct:
		info, ok := in.StructInfoOf(id)
		if !ok {
			return 1
		}
		var maxAlign uint64 = 1
		for _, f := range info.Fields {
			if a := in.AlignOf(f); a > maxAlign {
				maxAlign = a
			}
		}
		return maxAlign
	default:
		return 1
	}
}

// scalarSize rounds a bit width up to a whole power-of-two byte count.
func scalarSize(bits uint32) uint64 {
	bytes := uint64((bits + 7) / 8)
	size := uint64(1)
	for size < bytes {
		size <<= 1
	}
	return size
}

func roundUp(n, align uint64) uint64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// String renders a type in the engine's internal spelling ("i32",
// "float addrspace(1)*", "[4 x i8]"). Target-facing pretty printing is a
// separate concern built on top of this form.
func (in *TypeInterner) String(id TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return "?"
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindInt:
		return fmt.Sprintf("i%d", t.Bits)
	case KindFloat:
		switch t.Bits {
		case 32:
			return "float"
		case 64:
			return "double"
		default:
			return fmt.Sprintf("f%d", t.Bits)
		}
	case KindPointer:
		elem := in.String(t.Elem)
		if t.AddrSpace != 0 {
			return fmt.Sprintf("%s addrspace(%d)*", elem, t.AddrSpace)
		}
		return elem + "*"
	case KindArray:
		return fmt.Sprintf("[%d x %s]", t.Count, in.String(t.Elem))
	case KindStruct:
		info, ok := in.StructInfoOf(id)
		if !ok {
			return "%?"
		}
		if info.Name != "" {
			return "%" + info.Name
		}
		parts := make([]string, len(info.Fields))
		for i, f := range info.Fields {
			parts[i] = in.String(f)
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return "?"
	}
}
