package passes

import (
	"strings"

	"offspir/internal/ir"
)

// EliminateDeadGlobals removes internal functions, globals and aliases
// nothing references anymore. Runs to a fixpoint: removing a function can
// strand the globals only it referenced.
//
// External objects survive unconditionally; after partitioning that means
// kernels and the runtime contract declarations. Intrinsic-prefixed
// globals survive because the host toolchain owns them.
func EliminateDeadGlobals(m *ir.Module) bool {
	changed := false
	for removeDeadOnce(m) {
		changed = true
	}
	return changed
}

func removeDeadOnce(m *ir.Module) bool {
	usedFuncs := make(map[*ir.Func]bool)
	usedGlobals := make(map[*ir.Global]bool)
	usedNames := make(map[string]bool)

	note := func(v ir.Value) {
		switch v.Kind {
		case ir.ValueFunc:
			usedFuncs[v.Func] = true
		case ir.ValueGlobal:
			usedGlobals[v.Global] = true
		}
	}
	for _, f := range m.Funcs {
		for _, bb := range f.Blocks {
			for _, ins := range bb.Instrs {
				switch ins.Kind {
				case ir.InstrCall:
					usedFuncs[ins.Call.Callee] = true
					for _, a := range ins.Call.Args {
						note(a)
					}
				case ir.InstrStore:
					note(ins.Store.Val)
					note(ins.Store.Ptr)
				case ir.InstrLoad:
					note(ins.Load.Ptr)
				case ir.InstrPtrCast:
					note(ins.PtrCast.Val)
				case ir.InstrRet:
					if ins.Ret.HasValue {
						note(ins.Ret.Value)
					}
				}
			}
		}
	}
	for _, a := range m.Aliases {
		usedNames[a.Target] = true
	}

	changed := false

	kept := m.Funcs[:0]
	for _, f := range m.Funcs {
		dead := f.Linkage == ir.LinkageInternal &&
			!usedFuncs[f] && !usedNames[f.Name] &&
			!strings.HasPrefix(f.Name, intrinsicPrefix)
		if dead {
			changed = true
			continue
		}
		kept = append(kept, f)
	}
	m.Funcs = kept

	keptGlobals := m.Globals[:0]
	for _, g := range m.Globals {
		dead := g.Linkage == ir.LinkageInternal &&
			!usedGlobals[g] && !usedNames[g.Name] &&
			!strings.HasPrefix(g.Name, intrinsicPrefix)
		if dead {
			changed = true
			continue
		}
		keptGlobals = append(keptGlobals, g)
	}
	m.Globals = keptGlobals

	keptAliases := m.Aliases[:0]
	for _, a := range m.Aliases {
		targetLives := m.FuncByName(a.Target) != nil || m.GlobalByName(a.Target) != nil
		if a.Linkage == ir.LinkageInternal && !targetLives {
			changed = true
			continue
		}
		keptAliases = append(keptAliases, a)
	}
	m.Aliases = keptAliases

	return changed
}
