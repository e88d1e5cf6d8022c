package passes

import (
	"fmt"

	"fortio.org/safecast"

	"offspir/internal/ir"
	"offspir/internal/kernel"
)

// SerializeKernelArgsInside rewrites every kernel body into argument
// marshalling code. This is the discipline for kernels invoked indirectly
// through late-bound runtime dispatch: the host calls the kernel shell,
// the shell serializes its own arguments and asks the runtime to launch
// the real device code.
//
// The kernel's first argument is the runtime task context. Each remaining
// argument is serialized by increasing position index: pointer arguments
// pass their address and pointee storage size, value arguments are spilled
// to the stack first. The original body is erased before the marshalling
// block is built.
func SerializeKernelArgsInside(m *ir.Module, matcher *kernel.Matcher, reg *kernel.Registry) (bool, error) {
	var kernels []*ir.Func
	for _, f := range m.Funcs {
		if !f.IsDeclaration() && matcher.IsKernel(f.Name) {
			kernels = append(kernels, f)
		}
	}
	if len(kernels) == 0 {
		return false, nil
	}

	contract, err := ResolveInsideContract(m)
	if err != nil {
		return false, err
	}
	for _, f := range kernels {
		if err := rewriteKernelInside(m, contract, reg, f); err != nil {
			return false, err
		}
	}
	return true, nil
}

func rewriteKernelInside(m *ir.Module, contract Contract, reg *kernel.Registry, f *ir.Func) error {
	if len(f.Params) == 0 {
		return fmt.Errorf("kernel %s: no task context argument", f.Name)
	}
	short := registerKernel(reg, f.Name)
	task := f.ParamValue(0)

	f.EraseBody()
	b := ir.NewBuilder(m, f)
	b.CreateBlock("serialize")

	for i := 1; i < len(f.Params); i++ {
		index := int64(i - 1)
		ptr, size, err := marshalValue(m, b, f.ParamValue(i))
		if err != nil {
			return fmt.Errorf("kernel %s argument %d: %w", f.Name, index, err)
		}
		b.CreateCall(contract.SerializeArg, task, b.Int64(index), ptr, b.Int64(size))
	}

	name := b.CreateGlobalStringPtr(short)
	b.CreateCall(contract.SetKernel, task, name)
	b.CreateCall(contract.LaunchKernel, task, name)
	b.CreateRetVoid()

	if f.IsDeclaration() {
		return fmt.Errorf("kernel %s: empty after serialization", f.Name)
	}
	return nil
}

// marshalValue turns one kernel argument into an opaque byte pointer plus
// the storage size the runtime must copy. Pointer arguments are passed
// through a cast; value arguments are spilled to fresh stack storage and
// their address taken.
func marshalValue(m *ir.Module, b *ir.Builder, v ir.Value) (ir.Value, int64, error) {
	bytePtr := m.Types.Builtins().BytePtr

	t, ok := m.Types.Lookup(v.Type)
	if !ok {
		return ir.Value{}, 0, fmt.Errorf("argument has no type")
	}

	var ptr ir.Value
	var bytes uint64
	if t.Kind == ir.KindPointer {
		ptr = b.CreatePointerCast(v, bytePtr)
		bytes = m.Types.AllocSize(t.Elem)
	} else {
		slot := b.CreateAlloca(v.Type)
		b.CreateStore(v, slot)
		ptr = b.CreatePointerCast(slot, bytePtr)
		bytes = m.Types.AllocSize(v.Type)
	}

	size, err := safecast.Conv[int64](bytes)
	if err != nil {
		return ir.Value{}, 0, fmt.Errorf("storage size overflow: %w", err)
	}
	return ptr, size, nil
}
