package passes

import "offspir/internal/ir"

// Names of the static initializer and finalizer entry-point lists.
const (
	GlobalCtorsName = "llvm.global_ctors"
	GlobalDtorsName = "llvm.global_dtors"
)

// RemoveEmptyGlobalCtorDtors drops the module's static constructor and
// destructor lists when they hold no entries. The downstream format
// rejects zero-length lists outright; non-empty lists are left alone and
// are expected not to occur in offloaded code.
func RemoveEmptyGlobalCtorDtors(m *ir.Module) bool {
	changed := false
	for _, name := range []string{GlobalCtorsName, GlobalDtorsName} {
		g := m.GlobalByName(name)
		if g == nil || !ctorListEmpty(m, g) {
			continue
		}
		m.RemoveGlobal(name)
		changed = true
	}
	return changed
}

// ctorListEmpty reports whether a ctor/dtor list global holds no entries.
// The list is modeled as an array of entry structs; zero length means
// empty.
func ctorListEmpty(m *ir.Module, g *ir.Global) bool {
	t, ok := m.Types.Lookup(g.Type)
	if !ok {
		return false
	}
	return t.Kind == ir.KindArray && t.Count == 0
}
