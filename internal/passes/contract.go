package passes

import (
	"errors"
	"fmt"

	"offspir/internal/ir"
)

// Mangled linkage names of the runtime functions the marshalling rewriter
// relies on. The runtime library defines them; the rewriter only emits
// calls.
const (
	SerializeArgName = "_ZN2cl4sycl3drt13serialize_argERNS0_6detail4taskEmPvm"
	SetKernelName    = "_ZN2cl4sycl3drt10set_kernelERNS0_6detail4taskEPKc"
	LaunchKernelName = "_ZN2cl4sycl3drt13launch_kernelERNS0_6detail4taskEPKc"
	TaskMarkName     = "_ZN2cl4sycl3drt9task_markERNS0_6detail4taskE"
)

// ErrMissingContractSymbol reports a runtime contract function absent from
// the module. The pipeline cannot produce a valid marshalled program
// without it.
var ErrMissingContractSymbol = errors.New("runtime contract symbol not found")

// ErrMissingTaskMarker reports a kernel call site with no preceding task
// marker call in its block.
var ErrMissingTaskMarker = errors.New("kernel call site has no preceding task marker")

// Contract bundles the resolved runtime functions for one rewriter run.
// Resolution happens once per run so every missing symbol surfaces before
// any mutation starts.
type Contract struct {
	SerializeArg *ir.Func
	SetKernel    *ir.Func
	LaunchKernel *ir.Func
	TaskMark     *ir.Func
}

// ResolveInsideContract looks up the runtime functions the
// rewrite-from-inside discipline calls.
func ResolveInsideContract(m *ir.Module) (Contract, error) {
	var c Contract
	var err error
	if c.SerializeArg, err = resolveSymbol(m, SerializeArgName); err != nil {
		return c, err
	}
	if c.SetKernel, err = resolveSymbol(m, SetKernelName); err != nil {
		return c, err
	}
	if c.LaunchKernel, err = resolveSymbol(m, LaunchKernelName); err != nil {
		return c, err
	}
	return c, nil
}

// ResolveOutsideContract looks up the runtime functions the
// rewrite-from-outside discipline calls, plus the task marker it consumes.
func ResolveOutsideContract(m *ir.Module) (Contract, error) {
	var c Contract
	var err error
	if c.SerializeArg, err = resolveSymbol(m, SerializeArgName); err != nil {
		return c, err
	}
	if c.SetKernel, err = resolveSymbol(m, SetKernelName); err != nil {
		return c, err
	}
	if c.TaskMark, err = resolveSymbol(m, TaskMarkName); err != nil {
		return c, err
	}
	return c, nil
}

func resolveSymbol(m *ir.Module, name string) (*ir.Func, error) {
	if f := m.FuncByName(name); f != nil {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingContractSymbol, name)
}
