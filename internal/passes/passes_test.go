package passes_test

import (
	"strings"

	"offspir/internal/ir"
	"offspir/internal/kernel"
)

// testMatcher demangles deterministically: names starting with "_Zkern"
// decode to the kernel instantiation template, other "_Z" names decode to
// plain signatures, everything else fails to demangle.
func testMatcher() *kernel.Matcher {
	return kernel.NewMatcher(func(mangled string) (string, bool) {
		switch {
		case strings.HasPrefix(mangled, "_Zkern"):
			return "void cl::sycl::detail::instantiate_kernel<" + mangled + ">()", true
		case strings.HasPrefix(mangled, "_Z"):
			return "void " + mangled + "()", true
		default:
			return "", false
		}
	})
}

// declareContract adds the runtime contract declarations a marshalling
// rewrite expects to find.
func declareContract(m *ir.Module, names ...string) {
	for _, n := range names {
		m.AddFunc(&ir.Func{Name: n, Result: m.Types.Builtins().Void})
	}
}

// defineFunc adds a defined void function with one ret-terminated entry
// block and the given params.
func defineFunc(m *ir.Module, name string, params ...ir.Param) *ir.Func {
	f := m.AddFunc(&ir.Func{Name: name, Params: params, Result: m.Types.Builtins().Void})
	entry := f.AddBlock("entry")
	entry.Append(ir.NewRetVoid())
	return f
}

// addCall prepends a call to callee in f's entry block, before the
// terminator.
func addCall(f *ir.Func, callee *ir.Func, args ...ir.Value) *ir.Instr {
	bb := f.Blocks[0]
	call := ir.NewCall(callee, args...)
	bb.Instrs = append([]*ir.Instr{call}, bb.Instrs...)
	return call
}

func callsTo(f *ir.Func, calleeName string) []*ir.Instr {
	var calls []*ir.Instr
	for _, bb := range f.Blocks {
		for _, ins := range bb.Instrs {
			if ins.Kind == ir.InstrCall && ins.Call.Callee != nil && ins.Call.Callee.Name == calleeName {
				calls = append(calls, ins)
			}
		}
	}
	return calls
}
