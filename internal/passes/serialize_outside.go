package passes

import (
	"fmt"

	"fortio.org/safecast"

	"offspir/internal/ir"
	"offspir/internal/kernel"
)

// SerializeKernelArgsOutside rewrites every kernel call site into argument
// marshalling code. This is the discipline for directly-called kernels:
// the runtime task context is the operand of a task marker call planted
// just before the kernel invocation, and that marker is consumed here.
//
// Call sites are snapshotted per kernel before any mutation so the rewrite
// never iterates a block it is editing. Every site of a kernel is
// processed, not just the first.
func SerializeKernelArgsOutside(m *ir.Module, matcher *kernel.Matcher, reg *kernel.Registry) (bool, error) {
	var kernels []*ir.Func
	for _, f := range m.Funcs {
		if matcher.IsKernel(f.Name) {
			kernels = append(kernels, f)
		}
	}
	if len(kernels) == 0 {
		return false, nil
	}

	contract, err := ResolveOutsideContract(m)
	if err != nil {
		return false, err
	}

	changed := false
	for _, f := range kernels {
		sites := ir.CallSitesOf(m, f)
		// Walk sites backward: splicing a site leaves every lower index in
		// the same block untouched.
		for i := len(sites) - 1; i >= 0; i-- {
			if err := rewriteCallSite(m, contract, reg, f, sites[i]); err != nil {
				return changed, err
			}
			changed = true
		}
	}
	return changed, nil
}

func rewriteCallSite(m *ir.Module, contract Contract, reg *kernel.Registry, f *ir.Func, site ir.CallSite) error {
	markerIdx := -1
	for i := site.Index - 1; i >= 0; i-- {
		ins := site.Block.Instrs[i]
		if ins.Kind == ir.InstrCall && ins.Call.Callee == contract.TaskMark {
			markerIdx = i
			break
		}
	}
	if markerIdx < 0 {
		return fmt.Errorf("%w: kernel %s in %s", ErrMissingTaskMarker, f.Name, site.Caller.Name)
	}
	marker := site.Block.Instrs[markerIdx]
	if len(marker.Call.Args) == 0 {
		return fmt.Errorf("task marker before kernel %s carries no task operand", f.Name)
	}
	task := marker.Call.Args[0]

	var emitted []*ir.Instr
	for idx, arg := range site.Instr.Call.Args {
		ptr, size, err := marshalValueAt(m, &emitted, arg)
		if err != nil {
			return fmt.Errorf("kernel %s call argument %d: %w", f.Name, idx, err)
		}
		i64 := m.Types.Builtins().I64
		emitted = append(emitted, ir.NewCall(contract.SerializeArg,
			task, ir.ConstInt(i64, int64(idx)), ptr, ir.ConstInt(i64, size)))
	}
	name := m.AddGlobalString(registerKernel(reg, f.Name))
	emitted = append(emitted, ir.NewCall(contract.SetKernel, task, name))

	// Splice: keep everything except the marker and the kernel call, with
	// the marshalling sequence in the call's place.
	old := site.Block.Instrs
	merged := make([]*ir.Instr, 0, len(old)+len(emitted)-2)
	merged = append(merged, old[:markerIdx]...)
	merged = append(merged, old[markerIdx+1:site.Index]...)
	merged = append(merged, emitted...)
	merged = append(merged, old[site.Index+1:]...)
	site.Block.Instrs = merged
	return nil
}

// marshalValueAt is the out-of-line twin of marshalValue: it appends the
// cast and spill instructions to a pending slice instead of a block, so
// the caller can splice them mid-block.
func marshalValueAt(m *ir.Module, emitted *[]*ir.Instr, v ir.Value) (ir.Value, int64, error) {
	bytePtr := m.Types.Builtins().BytePtr

	t, ok := m.Types.Lookup(v.Type)
	if !ok {
		return ir.Value{}, 0, fmt.Errorf("argument has no type")
	}

	var ptr ir.Value
	var bytes uint64
	if t.Kind == ir.KindPointer {
		cast := ir.NewPtrCast(v, bytePtr)
		*emitted = append(*emitted, cast)
		ptr = ir.InstrValue(cast, bytePtr)
		bytes = m.Types.AllocSize(t.Elem)
	} else {
		slot := ir.NewAlloca(v.Type)
		slotVal := ir.InstrValue(slot, m.Types.Pointer(v.Type, 0))
		cast := ir.NewPtrCast(slotVal, bytePtr)
		*emitted = append(*emitted, slot, ir.NewStore(v, slotVal), cast)
		ptr = ir.InstrValue(cast, bytePtr)
		bytes = m.Types.AllocSize(v.Type)
	}

	size, err := safecast.Conv[int64](bytes)
	if err != nil {
		return ir.Value{}, 0, fmt.Errorf("storage size overflow: %w", err)
	}
	return ptr, size, nil
}
