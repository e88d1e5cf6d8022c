package passes

import (
	"fmt"
	"strconv"
	"strings"

	"offspir/internal/ir"
	"offspir/internal/kernel"
)

// FuncNamePrefix starts every sanitized non-kernel function name.
const FuncNamePrefix = "sycl_func_"

// BlockNamePrefix starts every sanitized basic block name.
const BlockNamePrefix = "bb"

// SanitizeNames rewrites the linkage names of every reachable function and
// the labels of their basic blocks into an alphabet the downstream
// toolchain accepts. Mangled C++ names carry punctuation the target
// assembler rejects, and block labels leak into derived function names
// when the target splitter runs.
//
// Kernels take their registry short name. Other reachable functions draw
// from one decimal counter shared across the whole module. Block labels
// restart from zero inside each function.
func SanitizeNames(m *ir.Module, matcher *kernel.Matcher, reg *kernel.Registry, set *ReachableSet) bool {
	changed := false
	next := nextFuncCounter(m)

	for _, f := range m.Funcs {
		// Declarations keep their linkage names: they are the link-time
		// contract with the runtime and the host libraries.
		if f.IsDeclaration() || !set.Contains(f) {
			continue
		}
		if matcher.IsKernel(f.Name) {
			short := registerKernel(reg, f.Name)
			if f.Name != short {
				f.Name = short
				changed = true
			}
		} else if !strings.HasPrefix(f.Name, FuncNamePrefix) {
			f.Name = FuncNamePrefix + strconv.Itoa(next)
			next++
			changed = true
		}
		for i, bb := range f.Blocks {
			label := fmt.Sprintf("%s%d", BlockNamePrefix, i)
			if bb.Name != label {
				bb.Name = label
				changed = true
			}
		}
	}
	return changed
}

// nextFuncCounter returns the first counter value that cannot collide with
// a name minted by an earlier sanitizer run over the same module.
func nextFuncCounter(m *ir.Module) int {
	next := 0
	for _, f := range m.Funcs {
		suffix, ok := strings.CutPrefix(f.Name, FuncNamePrefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}
