package pipeline_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"offspir/internal/ir"
	"offspir/internal/kernel"
	"offspir/internal/passes"
	"offspir/internal/pipeline"
)

// buildProgram assembles a module with one kernel taking a task context
// and two pointer arguments, a helper the kernel calls, a host-only
// function, and the runtime contract declarations for both disciplines.
func buildProgram(t *testing.T) (*ir.Module, *ir.Func) {
	t.Helper()
	m := ir.NewModule("prog")
	bt := m.Types.Builtins()

	for _, n := range []string{
		passes.SerializeArgName, passes.SetKernelName,
		passes.LaunchKernelName, passes.TaskMarkName,
	} {
		m.AddFunc(&ir.Func{Name: n, Result: bt.Void})
	}

	helper := m.AddFunc(&ir.Func{Name: "_ZN4demo6helperEv", Result: bt.Void})
	helper.AddBlock("entry").Append(ir.NewRetVoid())

	kern := m.AddFunc(&ir.Func{
		Name: kernelMangled,
		Params: []ir.Param{
			{Name: "task", Type: bt.BytePtr},
			{Name: "in", Type: m.Types.Pointer(bt.I32, 1)},
			{Name: "out", Type: m.Types.Pointer(bt.F64, 1)},
		},
		Result: bt.Void,
	})
	kb := kern.AddBlock("entry")
	kb.Append(ir.NewCall(helper))
	kb.Append(ir.NewRetVoid())

	host := m.AddFunc(&ir.Func{Name: "_ZN4demo4hostEv", Result: bt.Void})
	host.AddBlock("entry").Append(ir.NewRetVoid())

	return m, kern
}

// kernelMangled demangles (via the Itanium decoder) to
// "void cl::sycl::detail::instantiate_kernel<demo::add>()".
const kernelMangled = "_ZN2cl4sycl6detail18instantiate_kernelIN4demo3addEEEvv"

func TestKernelNameDemanglesToTemplate(t *testing.T) {
	pretty, ok := kernel.ItaniumDemangle(kernelMangled)
	if !ok {
		t.Fatalf("fixture name does not demangle")
	}
	if !strings.HasPrefix(pretty, kernel.InstantiateKernelPrefix) {
		t.Fatalf("fixture demangles to %q, want the instantiation template", pretty)
	}
}

func TestExecuteInsideDiscipline(t *testing.T) {
	m, kern := buildProgram(t)

	run, err := pipeline.Execute(m, pipeline.Options{GlobalDCE: true})
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	if kern.Linkage != ir.LinkageExternal {
		t.Fatalf("kernel linkage = %s, want external", kern.Linkage)
	}
	if !strings.HasPrefix(kern.Name, kernel.ShortNamePrefix) {
		t.Fatalf("kernel name = %q, want short name", kern.Name)
	}
	if kern.CallConv != ir.CallConvSPIRKernel {
		t.Fatalf("kernel cc = %s, want spir_kernel", kern.CallConv)
	}
	if m.TargetTriple != passes.SPIRTriple {
		t.Fatalf("triple = %q, want %q", m.TargetTriple, passes.SPIRTriple)
	}

	var serialize int
	for _, bb := range kern.Blocks {
		for _, ins := range bb.Instrs {
			if ins.Kind == ir.InstrCall && ins.Call.Callee.Name == passes.SerializeArgName {
				serialize++
			}
		}
	}
	if serialize != 2 {
		t.Fatalf("serialize_arg calls = %d, want 2", serialize)
	}

	if run.Registry.Len() != 1 {
		t.Fatalf("registered kernels = %d, want 1", run.Registry.Len())
	}
	// Host-only code is internal and uncalled after marshalling; DCE
	// removes it.
	if m.FuncByName("_ZN4demo4hostEv") != nil {
		t.Fatalf("host function survived global dce")
	}
	if err := ir.Validate(m); err != nil {
		t.Fatalf("module invalid after run: %v", err)
	}
}

func TestExecuteOutsideDiscipline(t *testing.T) {
	m, kern := buildProgram(t)
	bt := m.Types.Builtins()

	// Give the host a marked call site for the outside rewrite.
	host := m.FuncByName("_ZN4demo4hostEv")
	host.Params = []ir.Param{{Name: "task", Type: bt.BytePtr}}
	taskMark := m.FuncByName(passes.TaskMarkName)
	host.Blocks[0].Instrs = []*ir.Instr{
		ir.NewCall(taskMark, host.ParamValue(0)),
		ir.NewCall(kern, host.ParamValue(0),
			ir.ConstInt(bt.I32, 0), ir.ConstInt(bt.I32, 0)),
		ir.NewRetVoid(),
	}

	_, err := pipeline.Execute(m, pipeline.Options{Discipline: pipeline.DisciplineOutside})
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	var marks, kernCalls int
	for _, bb := range host.Blocks {
		for _, ins := range bb.Instrs {
			if ins.Kind != ir.InstrCall {
				continue
			}
			switch ins.Call.Callee {
			case taskMark:
				marks++
			case kern:
				kernCalls++
			}
		}
	}
	if marks != 0 {
		t.Fatalf("task markers left: %d", marks)
	}
	if kernCalls != 0 {
		t.Fatalf("kernel calls left: %d", kernCalls)
	}
}

func TestExecuteMissingContractAborts(t *testing.T) {
	m, _ := buildProgram(t)
	m.RemoveFunc(passes.LaunchKernelName)

	_, err := pipeline.Execute(m, pipeline.Options{})
	if err == nil {
		t.Fatalf("pipeline succeeded without the launch symbol")
	}
	if !strings.Contains(err.Error(), passes.LaunchKernelName) {
		t.Fatalf("error does not name the missing symbol: %v", err)
	}
}

func TestExecuteUnknownDiscipline(t *testing.T) {
	m, _ := buildProgram(t)
	if _, err := pipeline.Execute(m, pipeline.Options{Discipline: "sideways"}); err == nil {
		t.Fatalf("unknown discipline accepted")
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.toml")
	content := `
discipline = "outside"
reqd_work_group_size = true
inline_hints = true
global_dce = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := pipeline.LoadManifest(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if opts.Discipline != pipeline.DisciplineOutside {
		t.Fatalf("discipline = %q", opts.Discipline)
	}
	if !opts.ReqdWorkGroupSize || !opts.InlineHints || !opts.GlobalDCE {
		t.Fatalf("toggles not decoded: %+v", opts)
	}
}

func TestLoadManifestRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.toml")
	if err := os.WriteFile(path, []byte("disciplin = \"inside\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := pipeline.LoadManifest(path); err == nil {
		t.Fatalf("misspelled key accepted")
	}
}

func TestLoadManifestRejectsBadDiscipline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.toml")
	if err := os.WriteFile(path, []byte("discipline = \"sideways\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := pipeline.LoadManifest(path); err == nil {
		t.Fatalf("unknown discipline accepted")
	}
}

func TestTimerRecordsStages(t *testing.T) {
	m, _ := buildProgram(t)
	run, err := pipeline.Execute(m, pipeline.Options{})
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	report := run.Timer.Report()
	if len(report.Stages) == 0 {
		t.Fatalf("no stages timed")
	}
	names := make(map[string]bool, len(report.Stages))
	for _, s := range report.Stages {
		names[s.Name] = true
	}
	for _, want := range []string{"reachability", "partition", "sanitize", "marshal-inside", "lower-spir", "verify"} {
		if !names[want] {
			t.Fatalf("stage %q not timed (got %v)", want, report.Stages)
		}
	}
}
