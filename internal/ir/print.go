package ir

import (
	"fmt"
	"io"
	"strings"
)

// DumpOptions configures module dumping.
type DumpOptions struct{}

// DumpModule writes a human-readable representation of a module.
func DumpModule(w io.Writer, m *Module, _ DumpOptions) error {
	if w == nil || m == nil {
		return nil
	}

	fmt.Fprintf(w, "module %s\n", m.Name)
	if m.TargetTriple != "" {
		fmt.Fprintf(w, "target triple = %q\n", m.TargetTriple)
	}
	for _, md := range m.NamedMD {
		for _, node := range md.Nodes {
			fmt.Fprintf(w, "!%s = %s\n", md.Key, formatMDNode(node))
		}
	}

	if len(m.Globals) > 0 {
		fmt.Fprintf(w, "globals=%d\n", len(m.Globals))
		for i, g := range m.Globals {
			decl := ""
			if g.IsDecl {
				decl = " decl"
			}
			init := ""
			if g.Str != "" {
				init = fmt.Sprintf(" = %q", g.Str)
			}
			fmt.Fprintf(w, "  G%d: @%s %s %s%s%s\n", i, g.Name, g.Linkage, m.Types.String(g.Type), decl, init)
		}
	}
	for _, a := range m.Aliases {
		fmt.Fprintf(w, "alias @%s = %s @%s\n", a.Name, a.Linkage, a.Target)
	}

	fmt.Fprintf(w, "funcs=%d\n", len(m.Funcs))
	for _, f := range m.Funcs {
		if err := dumpFunc(w, m, f); err != nil {
			return err
		}
	}
	return nil
}

func dumpFunc(w io.Writer, m *Module, f *Func) error {
	if w == nil || f == nil {
		return nil
	}
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		quals := ""
		if p.ReadOnly {
			quals += " readonly"
		}
		if p.NoAlias {
			quals += " noalias"
		}
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		params[i] = fmt.Sprintf("%s%s %%%s", m.Types.String(p.Type), quals, name)
	}
	kind := "define"
	if f.IsDeclaration() {
		kind = "declare"
	}
	fmt.Fprintf(w, "\n%s %s %s @%s(%s)%s\n",
		kind, f.Linkage, f.CallConv, f.Name, strings.Join(params, ", "), formatAttrs(f.Attrs))
	for _, md := range f.Metadata {
		fmt.Fprintf(w, "  !%s = %s\n", md.Key, formatMDNode(md.Node))
	}

	if f.IsDeclaration() {
		return nil
	}

	names := instrNames(f)
	for _, bb := range f.Blocks {
		fmt.Fprintf(w, "%s:\n", bb.Name)
		for _, ins := range bb.Instrs {
			fmt.Fprintf(w, "  %s\n", formatInstr(m, f, names, ins))
		}
	}
	return nil
}

// instrNames assigns sequential result names to value-producing
// instructions so dumps can reference them.
func instrNames(f *Func) map[*Instr]string {
	names := make(map[*Instr]string)
	n := 0
	for _, bb := range f.Blocks {
		for _, ins := range bb.Instrs {
			switch ins.Kind {
			case InstrAlloca, InstrLoad, InstrPtrCast:
				names[ins] = fmt.Sprintf("%%t%d", n)
				n++
			}
		}
	}
	return names
}

func formatAttrs(a AttrFlags) string {
	var parts []string
	if a&AttrNoInline != 0 {
		parts = append(parts, "noinline")
	}
	if a&AttrAlwaysInline != 0 {
		parts = append(parts, "alwaysinline")
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func formatMDNode(n MDNode) string {
	parts := make([]string, 0, len(n.Strings)+len(n.Ints))
	for _, s := range n.Strings {
		parts = append(parts, fmt.Sprintf("%q", s))
	}
	for _, v := range n.Ints {
		parts = append(parts, fmt.Sprintf("%d", v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatInstr(m *Module, f *Func, names map[*Instr]string, ins *Instr) string {
	if ins == nil {
		return "<instr?>"
	}
	switch ins.Kind {
	case InstrCall:
		args := make([]string, len(ins.Call.Args))
		for i := range ins.Call.Args {
			args[i] = formatValue(m, f, names, ins.Call.Args[i])
		}
		callee := "<callee?>"
		if ins.Call.Callee != nil {
			callee = "@" + ins.Call.Callee.Name
		}
		return fmt.Sprintf("call %s(%s)", callee, strings.Join(args, ", "))
	case InstrAlloca:
		return fmt.Sprintf("%s = alloca %s", names[ins], m.Types.String(ins.Alloca.Ty))
	case InstrStore:
		return fmt.Sprintf("store %s, %s",
			formatValue(m, f, names, ins.Store.Val), formatValue(m, f, names, ins.Store.Ptr))
	case InstrLoad:
		return fmt.Sprintf("%s = load %s, %s",
			names[ins], m.Types.String(ins.Load.Ty), formatValue(m, f, names, ins.Load.Ptr))
	case InstrPtrCast:
		return fmt.Sprintf("%s = ptrcast %s to %s",
			names[ins], formatValue(m, f, names, ins.PtrCast.Val), m.Types.String(ins.PtrCast.To))
	case InstrRet:
		if !ins.Ret.HasValue {
			return "ret void"
		}
		return fmt.Sprintf("ret %s", formatValue(m, f, names, ins.Ret.Value))
	case InstrUnreachable:
		return "unreachable"
	default:
		return "<instr?>"
	}
}

func formatValue(m *Module, f *Func, names map[*Instr]string, v Value) string {
	switch v.Kind {
	case ValueConstInt:
		return fmt.Sprintf("%s %d", m.Types.String(v.Type), v.Int)
	case ValueParam:
		if v.Param >= 0 && v.Param < len(f.Params) && f.Params[v.Param].Name != "" {
			return "%" + f.Params[v.Param].Name
		}
		return fmt.Sprintf("%%arg%d", v.Param)
	case ValueInstr:
		if name, ok := names[v.Instr]; ok {
			return name
		}
		return "%t?"
	case ValueGlobal:
		if v.Global != nil {
			return "@" + v.Global.Name
		}
		return "@?"
	case ValueFunc:
		if v.Func != nil {
			return "@" + v.Func.Name
		}
		return "@?"
	default:
		return "<value?>"
	}
}
