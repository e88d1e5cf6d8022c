package passes

import (
	"offspir/internal/ir"
	"offspir/internal/kernel"
)

// HintInlineIntoKernels marks every defined non-kernel function reachable
// from a kernel as always-inline. The target backend handles flat kernels
// far better than call trees, so everything a kernel pulls in should fold
// into it. Functions explicitly marked no-inline keep their choice.
func HintInlineIntoKernels(m *ir.Module, matcher *kernel.Matcher, set *ReachableSet) bool {
	changed := false
	for _, f := range m.Funcs {
		if f.IsDeclaration() || !set.Contains(f) || matcher.IsKernel(f.Name) {
			continue
		}
		if f.HasAttr(ir.AttrNoInline) || f.HasAttr(ir.AttrAlwaysInline) {
			continue
		}
		f.AddAttr(ir.AttrAlwaysInline)
		changed = true
	}
	return changed
}
