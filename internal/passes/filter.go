package passes

import (
	"strings"

	"offspir/internal/ir"
	"offspir/internal/kernel"
)

// intrinsicPrefix marks runtime-reserved globals and functions the
// partitioner must not touch.
const intrinsicPrefix = "llvm."

// PartitionVisibility splits the module for the downstream dead code
// eliminator: kernels become external and take their registry short name,
// everything else becomes internal.
//
// Defined globals keep their visibility only when they carry the reserved
// intrinsic prefix. Aliases always become internal. Empty static
// constructor and destructor lists are dropped because the downstream
// format rejects them.
//
// Running the pass twice changes nothing the second time: renamed kernels
// match through the short-name fast path and resolve to their existing ID.
func PartitionVisibility(m *ir.Module, matcher *kernel.Matcher, reg *kernel.Registry) bool {
	changed := false

	for _, f := range m.Funcs {
		if f.IsDeclaration() {
			continue
		}
		if matcher.IsKernel(f.Name) {
			if f.Linkage != ir.LinkageExternal {
				f.Linkage = ir.LinkageExternal
				changed = true
			}
			short := registerKernel(reg, f.Name)
			if f.Name != short {
				f.Name = short
				changed = true
			}
			continue
		}
		if f.Linkage != ir.LinkageInternal {
			f.Linkage = ir.LinkageInternal
			changed = true
		}
	}

	for _, g := range m.Globals {
		if g.IsDecl || strings.HasPrefix(g.Name, intrinsicPrefix) {
			continue
		}
		if g.Linkage != ir.LinkageInternal {
			g.Linkage = ir.LinkageInternal
			changed = true
		}
	}

	for _, a := range m.Aliases {
		if a.Linkage != ir.LinkageInternal {
			a.Linkage = ir.LinkageInternal
			changed = true
		}
	}

	if RemoveEmptyGlobalCtorDtors(m) {
		changed = true
	}
	return changed
}

// registerKernel binds a kernel name to its registry identity. A name that
// already is a short name maps to the ID embedded in it, keeping
// registration idempotent across repeated partitioning.
func registerKernel(reg *kernel.Registry, name string) string {
	if strings.HasPrefix(name, kernel.ShortNamePrefix) {
		return name
	}
	return reg.RegisterAndShortName(name)
}
