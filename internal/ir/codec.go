package ir

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the snapshot format changes.
const snapshotSchemaVersion uint16 = 1

// The module snapshot is the host-facing seam: the host toolchain hands the
// program over as one flat msgpack payload and receives the rewritten one
// the same way. Pointer-linked structures (callees, instruction results)
// are flattened to indices.

type typePayload struct {
	Kind      uint8
	Bits      uint32
	Elem      uint32
	AddrSpace uint32
	Count     uint32
	Struct    uint32
}

type structPayload struct {
	Name   string
	Fields []uint32
}

type valuePayload struct {
	Kind   uint8
	Type   uint32
	Int    int64
	Param  int32
	Global int32
	Func   int32
	// Block/Index locate an instruction result within the enclosing
	// function.
	Block int32
	Index int32
}

type instrPayload struct {
	Kind     uint8
	Callee   int32
	Args     []valuePayload
	Ty       uint32
	Val      valuePayload
	Ptr      valuePayload
	HasValue bool
	RetVal   valuePayload
}

type blockPayload struct {
	Name   string
	Instrs []instrPayload
}

type paramPayload struct {
	Name     string
	Type     uint32
	ReadOnly bool
	NoAlias  bool
}

type funcMDPayload struct {
	Key     string
	Strings []string
	Ints    []int64
}

type funcPayload struct {
	Name           string
	Linkage        uint8
	CallConv       uint8
	Attrs          uint8
	HasPersonality bool
	Result         uint32
	Params         []paramPayload
	Metadata       []funcMDPayload
	Blocks         []blockPayload
}

type globalPayload struct {
	Name    string
	Type    uint32
	Linkage uint8
	IsDecl  bool
	Str     string
}

type aliasPayload struct {
	Name    string
	Target  string
	Linkage uint8
}

type namedMDPayload struct {
	Key   string
	Nodes []funcMDPayload
}

type modulePayload struct {
	Schema       uint16
	Name         string
	TargetTriple string
	Types        []typePayload
	Structs      []structPayload
	Funcs        []funcPayload
	Globals      []globalPayload
	Aliases      []aliasPayload
	NamedMD      []namedMDPayload
}

// EncodeModule serializes the module as a msgpack snapshot.
func EncodeModule(w io.Writer, m *Module) error {
	payload, err := moduleToPayload(m)
	if err != nil {
		return err
	}
	return msgpack.NewEncoder(w).Encode(payload)
}

// DecodeModule rebuilds a module from a msgpack snapshot.
func DecodeModule(r io.Reader) (*Module, error) {
	var payload modulePayload
	if err := msgpack.NewDecoder(r).Decode(&payload); err != nil {
		return nil, err
	}
	return payloadToModule(&payload)
}

// instrPos locates one instruction inside its function.
type instrPos struct {
	block int32
	index int32
}

func moduleToPayload(m *Module) (*modulePayload, error) {
	if m == nil {
		return nil, fmt.Errorf("nil module")
	}
	p := &modulePayload{
		Schema:       snapshotSchemaVersion,
		Name:         m.Name,
		TargetTriple: m.TargetTriple,
	}

	p.Types = make([]typePayload, len(m.Types.types))
	for i, t := range m.Types.types {
		p.Types[i] = typePayload{
			Kind: uint8(t.Kind), Bits: t.Bits, Elem: uint32(t.Elem),
			AddrSpace: t.AddrSpace, Count: t.Count, Struct: t.Struct,
		}
	}
	p.Structs = make([]structPayload, len(m.Types.structs))
	for i, s := range m.Types.structs {
		fields := make([]uint32, len(s.Fields))
		for j, f := range s.Fields {
			fields[j] = uint32(f)
		}
		p.Structs[i] = structPayload{Name: s.Name, Fields: fields}
	}

	funcIdx := make(map[*Func]int32, len(m.Funcs))
	for i, f := range m.Funcs {
		funcIdx[f] = int32(i) //nolint:gosec // G115: bounded by function count
	}
	globalIdx := make(map[*Global]int32, len(m.Globals))
	for i, g := range m.Globals {
		globalIdx[g] = int32(i) //nolint:gosec // G115: bounded by global count
	}

	for _, g := range m.Globals {
		p.Globals = append(p.Globals, globalPayload{
			Name: g.Name, Type: uint32(g.Type), Linkage: uint8(g.Linkage),
			IsDecl: g.IsDecl, Str: g.Str,
		})
	}
	for _, a := range m.Aliases {
		p.Aliases = append(p.Aliases, aliasPayload{Name: a.Name, Target: a.Target, Linkage: uint8(a.Linkage)})
	}
	for _, md := range m.NamedMD {
		entry := namedMDPayload{Key: md.Key}
		for _, n := range md.Nodes {
			entry.Nodes = append(entry.Nodes, funcMDPayload{Strings: n.Strings, Ints: n.Ints})
		}
		p.NamedMD = append(p.NamedMD, entry)
	}

	for _, f := range m.Funcs {
		fp, err := funcToPayload(f, funcIdx, globalIdx)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Name, err)
		}
		p.Funcs = append(p.Funcs, fp)
	}
	return p, nil
}

func funcToPayload(f *Func, funcIdx map[*Func]int32, globalIdx map[*Global]int32) (funcPayload, error) {
	fp := funcPayload{
		Name:           f.Name,
		Linkage:        uint8(f.Linkage),
		CallConv:       uint8(f.CallConv),
		Attrs:          uint8(f.Attrs),
		HasPersonality: f.HasPersonality,
		Result:         uint32(f.Result),
	}
	for _, prm := range f.Params {
		fp.Params = append(fp.Params, paramPayload{
			Name: prm.Name, Type: uint32(prm.Type), ReadOnly: prm.ReadOnly, NoAlias: prm.NoAlias,
		})
	}
	for _, md := range f.Metadata {
		fp.Metadata = append(fp.Metadata, funcMDPayload{Key: md.Key, Strings: md.Node.Strings, Ints: md.Node.Ints})
	}

	pos := make(map[*Instr]instrPos)
	for bi, bb := range f.Blocks {
		for ii, ins := range bb.Instrs {
			pos[ins] = instrPos{block: int32(bi), index: int32(ii)} //nolint:gosec // G115: bounded
		}
	}

	encodeValue := func(v Value) (valuePayload, error) {
		vp := valuePayload{
			Kind: uint8(v.Kind), Type: uint32(v.Type), Int: v.Int,
			Param: int32(v.Param), Global: -1, Func: -1, Block: -1, Index: -1, //nolint:gosec // G115: bounded
		}
		switch v.Kind {
		case ValueInstr:
			ref, ok := pos[v.Instr]
			if !ok {
				return vp, fmt.Errorf("value references instruction outside the function")
			}
			vp.Block, vp.Index = ref.block, ref.index
		case ValueGlobal:
			idx, ok := globalIdx[v.Global]
			if !ok {
				return vp, fmt.Errorf("value references unknown global")
			}
			vp.Global = idx
		case ValueFunc:
			idx, ok := funcIdx[v.Func]
			if !ok {
				return vp, fmt.Errorf("value references unknown function")
			}
			vp.Func = idx
		}
		return vp, nil
	}

	for _, bb := range f.Blocks {
		bp := blockPayload{Name: bb.Name}
		for _, ins := range bb.Instrs {
			ip := instrPayload{Kind: uint8(ins.Kind), Callee: -1}
			var err error
			switch ins.Kind {
			case InstrCall:
				if ins.Call.Callee != nil {
					idx, ok := funcIdx[ins.Call.Callee]
					if !ok {
						return fp, fmt.Errorf("call references unknown function")
					}
					ip.Callee = idx
				}
				for _, a := range ins.Call.Args {
					var vp valuePayload
					if vp, err = encodeValue(a); err != nil {
						return fp, err
					}
					ip.Args = append(ip.Args, vp)
				}
			case InstrAlloca:
				ip.Ty = uint32(ins.Alloca.Ty)
			case InstrStore:
				if ip.Val, err = encodeValue(ins.Store.Val); err != nil {
					return fp, err
				}
				if ip.Ptr, err = encodeValue(ins.Store.Ptr); err != nil {
					return fp, err
				}
			case InstrLoad:
				ip.Ty = uint32(ins.Load.Ty)
				if ip.Ptr, err = encodeValue(ins.Load.Ptr); err != nil {
					return fp, err
				}
			case InstrPtrCast:
				ip.Ty = uint32(ins.PtrCast.To)
				if ip.Val, err = encodeValue(ins.PtrCast.Val); err != nil {
					return fp, err
				}
			case InstrRet:
				ip.HasValue = ins.Ret.HasValue
				if ins.Ret.HasValue {
					if ip.RetVal, err = encodeValue(ins.Ret.Value); err != nil {
						return fp, err
					}
				}
			}
			bp.Instrs = append(bp.Instrs, ip)
		}
		fp.Blocks = append(fp.Blocks, bp)
	}
	return fp, nil
}

func payloadToModule(p *modulePayload) (*Module, error) {
	if p.Schema != snapshotSchemaVersion {
		return nil, fmt.Errorf("unsupported snapshot schema %d (want %d)", p.Schema, snapshotSchemaVersion)
	}
	m := &Module{Name: p.Name, TargetTriple: p.TargetTriple}

	in := &TypeInterner{index: make(map[Type]TypeID, len(p.Types))}
	for i, tp := range p.Types {
		t := Type{
			Kind: Kind(tp.Kind), Bits: tp.Bits, Elem: TypeID(tp.Elem),
			AddrSpace: tp.AddrSpace, Count: tp.Count, Struct: tp.Struct,
		}
		in.types = append(in.types, t)
		in.index[t] = TypeID(uint32(i)) //nolint:gosec // G115: bounded
	}
	for _, sp := range p.Structs {
		fields := make([]TypeID, len(sp.Fields))
		for j, f := range sp.Fields {
			fields[j] = TypeID(f)
		}
		in.structs = append(in.structs, StructInfo{Name: sp.Name, Fields: fields})
	}
	if len(in.structs) == 0 {
		in.structs = append(in.structs, StructInfo{}) // slot 0 stays the invalid sentinel
	}
	in.builtins = Builtins{
		Void:    in.Intern(Type{Kind: KindVoid}),
		I1:      in.Int(1),
		I8:      in.Int(8),
		I16:     in.Int(16),
		I32:     in.Int(32),
		I64:     in.Int(64),
		F32:     in.Float(32),
		F64:     in.Float(64),
	}
	in.builtins.BytePtr = in.Pointer(in.builtins.I8, 0)
	m.Types = in

	for i := range p.Globals {
		gp := &p.Globals[i]
		m.Globals = append(m.Globals, &Global{
			Name: gp.Name, Type: TypeID(gp.Type), Linkage: Linkage(gp.Linkage),
			IsDecl: gp.IsDecl, Str: gp.Str,
		})
	}
	for _, ap := range p.Aliases {
		m.Aliases = append(m.Aliases, &Alias{Name: ap.Name, Target: ap.Target, Linkage: Linkage(ap.Linkage)})
	}
	for _, md := range p.NamedMD {
		entry := NamedMD{Key: md.Key}
		for _, n := range md.Nodes {
			entry.Nodes = append(entry.Nodes, MDNode{Strings: n.Strings, Ints: n.Ints})
		}
		m.NamedMD = append(m.NamedMD, entry)
	}

	// Pass 1: function shells, so callee and function-value references can
	// resolve regardless of order.
	for i := range p.Funcs {
		fp := &p.Funcs[i]
		f := &Func{
			Name:           fp.Name,
			Linkage:        Linkage(fp.Linkage),
			CallConv:       CallConv(fp.CallConv),
			Attrs:          AttrFlags(fp.Attrs),
			HasPersonality: fp.HasPersonality,
			Result:         TypeID(fp.Result),
		}
		for _, prm := range fp.Params {
			f.Params = append(f.Params, Param{
				Name: prm.Name, Type: TypeID(prm.Type), ReadOnly: prm.ReadOnly, NoAlias: prm.NoAlias,
			})
		}
		for _, md := range fp.Metadata {
			f.Metadata = append(f.Metadata, FuncMD{Key: md.Key, Node: MDNode{Strings: md.Strings, Ints: md.Ints}})
		}
		m.Funcs = append(m.Funcs, f)
	}

	// Pass 2: instruction skeletons per function, then operand fixup.
	for i := range p.Funcs {
		if err := payloadToBody(m, &p.Funcs[i], m.Funcs[i]); err != nil {
			return nil, fmt.Errorf("function %s: %w", m.Funcs[i].Name, err)
		}
	}
	return m, nil
}

func payloadToBody(m *Module, fp *funcPayload, f *Func) error {
	instrs := make([][]*Instr, len(fp.Blocks))
	for bi := range fp.Blocks {
		bb := f.AddBlock(fp.Blocks[bi].Name)
		for range fp.Blocks[bi].Instrs {
			ins := &Instr{}
			bb.Instrs = append(bb.Instrs, ins)
		}
		instrs[bi] = bb.Instrs
	}

	decodeValue := func(vp valuePayload) (Value, error) {
		v := Value{Kind: ValueKind(vp.Kind), Type: TypeID(vp.Type), Int: vp.Int, Param: int(vp.Param)}
		switch v.Kind {
		case ValueInstr:
			if vp.Block < 0 || int(vp.Block) >= len(instrs) ||
				vp.Index < 0 || int(vp.Index) >= len(instrs[vp.Block]) {
				return v, fmt.Errorf("instruction reference bb%d[%d] out of range", vp.Block, vp.Index)
			}
			v.Instr = instrs[vp.Block][vp.Index]
		case ValueGlobal:
			if vp.Global < 0 || int(vp.Global) >= len(m.Globals) {
				return v, fmt.Errorf("global reference %d out of range", vp.Global)
			}
			v.Global = m.Globals[vp.Global]
		case ValueFunc:
			if vp.Func < 0 || int(vp.Func) >= len(m.Funcs) {
				return v, fmt.Errorf("function reference %d out of range", vp.Func)
			}
			v.Func = m.Funcs[vp.Func]
		}
		return v, nil
	}

	for bi := range fp.Blocks {
		for ii := range fp.Blocks[bi].Instrs {
			ip := &fp.Blocks[bi].Instrs[ii]
			ins := instrs[bi][ii]
			ins.Kind = InstrKind(ip.Kind)
			var err error
			switch ins.Kind {
			case InstrCall:
				if ip.Callee >= 0 {
					if int(ip.Callee) >= len(m.Funcs) {
						return fmt.Errorf("callee reference %d out of range", ip.Callee)
					}
					ins.Call.Callee = m.Funcs[ip.Callee]
				}
				for _, ap := range ip.Args {
					var v Value
					if v, err = decodeValue(ap); err != nil {
						return err
					}
					ins.Call.Args = append(ins.Call.Args, v)
				}
			case InstrAlloca:
				ins.Alloca.Ty = TypeID(ip.Ty)
			case InstrStore:
				if ins.Store.Val, err = decodeValue(ip.Val); err != nil {
					return err
				}
				if ins.Store.Ptr, err = decodeValue(ip.Ptr); err != nil {
					return err
				}
			case InstrLoad:
				ins.Load.Ty = TypeID(ip.Ty)
				if ins.Load.Ptr, err = decodeValue(ip.Ptr); err != nil {
					return err
				}
			case InstrPtrCast:
				ins.PtrCast.To = TypeID(ip.Ty)
				if ins.PtrCast.Val, err = decodeValue(ip.Val); err != nil {
					return err
				}
			case InstrRet:
				ins.Ret.HasValue = ip.HasValue
				if ip.HasValue {
					if ins.Ret.Value, err = decodeValue(ip.RetVal); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
