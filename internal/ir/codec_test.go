package ir_test

import (
	"bytes"
	"testing"

	"offspir/internal/ir"
)

// buildSnapshotFixture assembles a module touching every encodable
// construct: params, every instruction kind, globals, an alias, function
// and module metadata.
func buildSnapshotFixture() *ir.Module {
	m := ir.NewModule("fixture")
	m.TargetTriple = "spir64"
	bt := m.Types.Builtins()

	callee := m.AddFunc(&ir.Func{
		Name:   "callee",
		Result: bt.Void,
		Params: []ir.Param{{Name: "task", Type: bt.BytePtr}},
	})

	f := m.AddFunc(&ir.Func{
		Name:     "worker",
		Linkage:  ir.LinkageInternal,
		CallConv: ir.CallConvSPIRFunc,
		Result:   bt.Void,
		Params: []ir.Param{
			{Name: "p", Type: m.Types.Pointer(bt.I32, 1), ReadOnly: true, NoAlias: true},
			{Name: "n", Type: bt.I64},
		},
	})
	f.AddAttr(ir.AttrAlwaysInline)
	f.SetMetadata("kernel_arg_addr_space", ir.MDNode{Ints: []int64{1, 0}})

	b := ir.NewBuilder(m, f)
	b.CreateBlock("bb0")
	slot := b.CreateAlloca(bt.I64)
	b.CreateStore(f.ParamValue(1), slot)
	b.CreateLoad(slot, bt.I64)
	cast := b.CreatePointerCast(slot, bt.BytePtr)
	b.CreateCall(callee, cast)
	str := b.CreateGlobalStringPtr("TRISYCL_kernel_0")
	b.CreateCall(callee, str)
	b.CreateRetVoid()

	m.AddGlobal(&ir.Global{Name: "state", Type: bt.I32, Linkage: ir.LinkageInternal})
	m.Aliases = append(m.Aliases, &ir.Alias{Name: "alt", Target: "state", Linkage: ir.LinkageInternal})
	m.AddNamedMD("opencl.spir.version", ir.MDNode{Ints: []int64{2, 0}})

	return m
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := buildSnapshotFixture()

	var buf bytes.Buffer
	if err := ir.EncodeModule(&buf, m); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := ir.DecodeModule(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if err := ir.Validate(got); err != nil {
		t.Fatalf("decoded module invalid: %v", err)
	}

	// The dump renders every name, type, operand and metadata node, so
	// identical dumps mean an identical module.
	var want, have bytes.Buffer
	if err := ir.DumpModule(&want, m, ir.DumpOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := ir.DumpModule(&have, got, ir.DumpOptions{}); err != nil {
		t.Fatal(err)
	}
	if want.String() != have.String() {
		t.Fatalf("round trip changed the module\n--- original\n%s--- decoded\n%s", want.String(), have.String())
	}
}

func TestSnapshotRoundTripTwice(t *testing.T) {
	m := buildSnapshotFixture()

	var first bytes.Buffer
	if err := ir.EncodeModule(&first, m); err != nil {
		t.Fatal(err)
	}
	decoded, err := ir.DecodeModule(bytes.NewReader(first.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	var second bytes.Buffer
	if err := ir.EncodeModule(&second, decoded); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("snapshot not stable across a round trip")
	}
}

func TestDecodeRejectsWrongSchema(t *testing.T) {
	if _, err := ir.DecodeModule(bytes.NewReader([]byte{0xc0})); err == nil {
		t.Fatalf("garbage snapshot accepted")
	}
}
