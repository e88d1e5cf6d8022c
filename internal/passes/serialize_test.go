package passes_test

import (
	"errors"
	"testing"

	"offspir/internal/ir"
	"offspir/internal/kernel"
	"offspir/internal/passes"
)

func TestSerializeInsideTwoPointerArgs(t *testing.T) {
	m := ir.NewModule("ser")
	matcher := testMatcher()
	reg := kernel.NewRegistry()
	bt := m.Types.Builtins()

	task := ir.Param{Name: "task", Type: bt.BytePtr}
	p0 := ir.Param{Name: "a", Type: m.Types.Pointer(bt.I32, 0)}
	p1 := ir.Param{Name: "b", Type: m.Types.Pointer(bt.F64, 0)}
	kern := defineFunc(m, "_Zkern0", task, p0, p1)
	kern.Blocks[0].Instrs = append([]*ir.Instr{ir.NewAlloca(bt.I32)}, kern.Blocks[0].Instrs...)
	declareContract(m, passes.SerializeArgName, passes.SetKernelName, passes.LaunchKernelName)

	passes.PartitionVisibility(m, matcher, reg)
	changed, err := passes.SerializeKernelArgsInside(m, matcher, reg)
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if !changed {
		t.Fatalf("rewrite reported no change")
	}

	if kern.Linkage != ir.LinkageExternal {
		t.Fatalf("kernel linkage = %s, want external", kern.Linkage)
	}

	sers := callsTo(kern, passes.SerializeArgName)
	if len(sers) != 2 {
		t.Fatalf("serialize_arg calls = %d, want 2", len(sers))
	}
	for want, call := range sers {
		if got := call.Call.Args[1].Int; got != int64(want) {
			t.Fatalf("serialize index = %d, want %d", got, want)
		}
	}
	// Pointee sizes: i32 is 4 bytes, double is 8.
	if sers[0].Call.Args[3].Int != 4 || sers[1].Call.Args[3].Int != 8 {
		t.Fatalf("pointee sizes = %d, %d; want 4, 8",
			sers[0].Call.Args[3].Int, sers[1].Call.Args[3].Int)
	}

	if n := len(callsTo(kern, passes.SetKernelName)); n != 1 {
		t.Fatalf("set_kernel calls = %d, want 1", n)
	}
	if n := len(callsTo(kern, passes.LaunchKernelName)); n != 1 {
		t.Fatalf("launch_kernel calls = %d, want 1", n)
	}

	// Original body gone: the surviving instructions are exactly the
	// marshalling sequence, no stray alloca from the old body.
	if len(kern.Blocks) != 1 {
		t.Fatalf("kernel has %d blocks, want 1", len(kern.Blocks))
	}
	for _, ins := range kern.Blocks[0].Instrs {
		if ins.Kind == ir.InstrAlloca {
			t.Fatalf("original body instruction survived the rewrite")
		}
	}
	if !kern.Blocks[0].Terminated() {
		t.Fatalf("rewritten kernel body not terminated")
	}
}

func TestSerializeInsideValueArgSpilled(t *testing.T) {
	m := ir.NewModule("ser")
	matcher := testMatcher()
	reg := kernel.NewRegistry()
	bt := m.Types.Builtins()

	kern := defineFunc(m, "_Zkern0",
		ir.Param{Name: "task", Type: bt.BytePtr},
		ir.Param{Name: "n", Type: bt.I64},
		ir.Param{Name: "p", Type: m.Types.Pointer(bt.I8, 1)},
	)
	declareContract(m, passes.SerializeArgName, passes.SetKernelName, passes.LaunchKernelName)

	if _, err := passes.SerializeKernelArgsInside(m, matcher, reg); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}

	sers := callsTo(kern, passes.SerializeArgName)
	if len(sers) != 2 {
		t.Fatalf("serialize_arg calls = %d, want 2", len(sers))
	}
	// Value arg spills through an alloca; its serialized size is its own
	// storage size.
	if sers[0].Call.Args[2].Kind != ir.ValueInstr {
		t.Fatalf("value arg not passed through a cast instruction")
	}
	if sers[0].Call.Args[3].Int != 8 {
		t.Fatalf("i64 storage size = %d, want 8", sers[0].Call.Args[3].Int)
	}
	var allocas int
	for _, ins := range kern.Blocks[0].Instrs {
		if ins.Kind == ir.InstrAlloca {
			allocas++
		}
	}
	if allocas != 1 {
		t.Fatalf("allocas = %d, want 1 (value arg only)", allocas)
	}
}

func TestSerializeInsideMissingContractSymbol(t *testing.T) {
	m := ir.NewModule("ser")
	defineFunc(m, "_Zkern0", ir.Param{Name: "task", Type: m.Types.Builtins().BytePtr})
	declareContract(m, passes.SerializeArgName, passes.SetKernelName) // no launch_kernel

	_, err := passes.SerializeKernelArgsInside(m, testMatcher(), kernel.NewRegistry())
	if !errors.Is(err, passes.ErrMissingContractSymbol) {
		t.Fatalf("err = %v, want ErrMissingContractSymbol", err)
	}
}

func TestSerializeInsideZeroKernels(t *testing.T) {
	m := ir.NewModule("ser")
	defineFunc(m, "_Zhost")
	// Contract deliberately absent: with no kernels the rewrite must not
	// even resolve it.
	changed, err := passes.SerializeKernelArgsInside(m, testMatcher(), kernel.NewRegistry())
	if err != nil {
		t.Fatalf("kernel-free rewrite failed: %v", err)
	}
	if changed {
		t.Fatalf("kernel-free rewrite reported changes")
	}
}

func TestSerializeOutsideCallSite(t *testing.T) {
	m := ir.NewModule("ser")
	matcher := testMatcher()
	reg := kernel.NewRegistry()
	bt := m.Types.Builtins()

	kern := defineFunc(m, "_Zkern0",
		ir.Param{Name: "a", Type: m.Types.Pointer(bt.I32, 0)},
		ir.Param{Name: "n", Type: bt.I32},
	)
	declareContract(m, passes.SerializeArgName, passes.SetKernelName, passes.TaskMarkName)
	taskMark := m.FuncByName(passes.TaskMarkName)

	host := defineFunc(m, "_Zhost",
		ir.Param{Name: "task", Type: bt.BytePtr},
		ir.Param{Name: "buf", Type: m.Types.Pointer(bt.I32, 0)},
	)
	// Host body: task_mark(task); kern(buf, 7); ret.
	bb := host.Blocks[0]
	bb.Instrs = []*ir.Instr{
		ir.NewCall(taskMark, host.ParamValue(0)),
		ir.NewCall(kern, host.ParamValue(1), ir.ConstInt(bt.I32, 7)),
		ir.NewRetVoid(),
	}

	changed, err := passes.SerializeKernelArgsOutside(m, matcher, reg)
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if !changed {
		t.Fatalf("rewrite reported no change")
	}

	if len(callsTo(host, passes.TaskMarkName)) != 0 {
		t.Fatalf("task marker call not consumed")
	}
	if len(callsTo(host, kern.Name)) != 0 {
		t.Fatalf("kernel call not erased")
	}
	sers := callsTo(host, passes.SerializeArgName)
	if len(sers) != 2 {
		t.Fatalf("serialize_arg calls = %d, want 2", len(sers))
	}
	for want, call := range sers {
		if got := call.Call.Args[1].Int; got != int64(want) {
			t.Fatalf("serialize index = %d, want %d", got, want)
		}
		if call.Call.Args[0] != host.ParamValue(0) {
			t.Fatalf("serialize call %d does not use the marker task operand", want)
		}
	}
	if n := len(callsTo(host, passes.SetKernelName)); n != 1 {
		t.Fatalf("set_kernel calls = %d, want 1", n)
	}
	if !bb.Terminated() {
		t.Fatalf("host block lost its terminator")
	}
}

func TestSerializeOutsideEverySite(t *testing.T) {
	m := ir.NewModule("ser")
	bt := m.Types.Builtins()

	kern := defineFunc(m, "_Zkern0", ir.Param{Name: "n", Type: bt.I32})
	declareContract(m, passes.SerializeArgName, passes.SetKernelName, passes.TaskMarkName)
	taskMark := m.FuncByName(passes.TaskMarkName)

	host := defineFunc(m, "_Zhost", ir.Param{Name: "task", Type: bt.BytePtr})
	host.Blocks[0].Instrs = []*ir.Instr{
		ir.NewCall(taskMark, host.ParamValue(0)),
		ir.NewCall(kern, ir.ConstInt(bt.I32, 1)),
		ir.NewCall(taskMark, host.ParamValue(0)),
		ir.NewCall(kern, ir.ConstInt(bt.I32, 2)),
		ir.NewRetVoid(),
	}

	if _, err := passes.SerializeKernelArgsOutside(m, testMatcher(), kernel.NewRegistry()); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if n := len(callsTo(host, passes.SetKernelName)); n != 2 {
		t.Fatalf("set_kernel calls = %d, want 2 (one per site)", n)
	}
	if n := len(callsTo(host, passes.TaskMarkName)); n != 0 {
		t.Fatalf("%d task markers survived", n)
	}
}

func TestSerializeOutsideMissingTaskMarker(t *testing.T) {
	m := ir.NewModule("ser")
	bt := m.Types.Builtins()

	kern := defineFunc(m, "_Zkern0", ir.Param{Name: "n", Type: bt.I32})
	declareContract(m, passes.SerializeArgName, passes.SetKernelName, passes.TaskMarkName)

	host := defineFunc(m, "_Zhost")
	addCall(host, kern, ir.ConstInt(bt.I32, 1))

	_, err := passes.SerializeKernelArgsOutside(m, testMatcher(), kernel.NewRegistry())
	if !errors.Is(err, passes.ErrMissingTaskMarker) {
		t.Fatalf("err = %v, want ErrMissingTaskMarker", err)
	}
}
