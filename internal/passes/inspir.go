package passes

import (
	"regexp"
	"strings"

	"offspir/internal/ir"
	"offspir/internal/kernel"
)

// SPIRTriple is the target identifier stamped on lowered modules.
const SPIRTriple = "spir64"

// Module-level version metadata for the target representation and its
// host environment.
var (
	spirVersion = []int64{2, 0}
	oclVersion  = []int64{1, 2}
)

// LowerOptions configures target-convention lowering.
type LowerOptions struct {
	// ReqdWorkGroupSize stamps every kernel with a required launch
	// geometry of 1x1x1.
	ReqdWorkGroupSize bool
}

// typeSubstitutions rewrites the engine's internal type spellings into the
// target's primitive names. Applied in order; results are deterministic.
var typeSubstitutions = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\bi8\b`), "char"},
	{regexp.MustCompile(`\bi16\b`), "short"},
	{regexp.MustCompile(`\bi32\b`), "int"},
	{regexp.MustCompile(`\bi64\b`), "long"},
	{regexp.MustCompile(`\bi1\b`), "bool"},
	{regexp.MustCompile(` addrspace\(\d+\)`), ""},
}

// LowerToSPIR retargets the module at the SPIR representation.
//
// Kernels take the kernel-entry calling convention, lose any exception
// personality (the target has none) and gain the per-argument descriptor
// metadata the target consumers read. Every other reachable non-intrinsic
// function takes the plain-function convention. The module is stamped with
// the target triple and version metadata.
func LowerToSPIR(m *ir.Module, matcher *kernel.Matcher, set *ReachableSet, opts LowerOptions) bool {
	changed := false

	for _, f := range m.Funcs {
		if matcher.IsKernel(f.Name) {
			if !f.IsDeclaration() && lowerKernel(m, f, opts) {
				changed = true
			}
			continue
		}
		if !set.Contains(f) || strings.HasPrefix(f.Name, intrinsicPrefix) {
			continue
		}
		if f.CallConv != ir.CallConvSPIRFunc {
			f.CallConv = ir.CallConvSPIRFunc
			changed = true
		}
	}

	if m.TargetTriple != SPIRTriple {
		m.TargetTriple = SPIRTriple
		changed = true
	}
	if _, ok := m.NamedMDByKey("opencl.spir.version"); !ok {
		m.AddNamedMD("opencl.spir.version", ir.MDNode{Ints: spirVersion})
		changed = true
	}
	if _, ok := m.NamedMDByKey("opencl.ocl.version"); !ok {
		m.AddNamedMD("opencl.ocl.version", ir.MDNode{Ints: oclVersion})
		changed = true
	}
	return changed
}

func lowerKernel(m *ir.Module, f *ir.Func, opts LowerOptions) bool {
	changed := false
	if f.CallConv != ir.CallConvSPIRKernel {
		f.CallConv = ir.CallConvSPIRKernel
		changed = true
	}
	if f.HasPersonality {
		f.HasPersonality = false
		changed = true
	}

	addrSpaces := make([]int64, len(f.Params))
	accessQuals := make([]string, len(f.Params))
	typeNames := make([]string, len(f.Params))
	typeQuals := make([]string, len(f.Params))
	for i, p := range f.Params {
		if t, ok := m.Types.Lookup(p.Type); ok && t.Kind == ir.KindPointer {
			addrSpaces[i] = int64(t.AddrSpace)
		}
		accessQuals[i] = "read_write"
		typeNames[i] = targetTypeName(m, p.Type)
		typeQuals[i] = argTypeQual(p)
	}
	f.SetMetadata("kernel_arg_addr_space", ir.MDNode{Ints: addrSpaces})
	f.SetMetadata("kernel_arg_access_qual", ir.MDNode{Strings: accessQuals})
	f.SetMetadata("kernel_arg_type", ir.MDNode{Strings: typeNames})
	f.SetMetadata("kernel_arg_base_type", ir.MDNode{Strings: typeNames})
	f.SetMetadata("kernel_arg_type_qual", ir.MDNode{Strings: typeQuals})

	if opts.ReqdWorkGroupSize {
		f.SetMetadata("reqd_work_group_size", ir.MDNode{Ints: []int64{1, 1, 1}})
	}
	return changed
}

// targetTypeName pretty-prints a type for the descriptor metadata.
func targetTypeName(m *ir.Module, id ir.TypeID) string {
	name := m.Types.String(id)
	for _, sub := range typeSubstitutions {
		name = sub.re.ReplaceAllString(name, sub.repl)
	}
	return name
}

// argTypeQual space-joins the qualifiers that apply to one argument.
// Absent qualifiers are simply omitted.
func argTypeQual(p ir.Param) string {
	var quals []string
	if p.ReadOnly {
		quals = append(quals, "const")
	}
	if p.NoAlias {
		quals = append(quals, "restrict")
	}
	return strings.Join(quals, " ")
}
