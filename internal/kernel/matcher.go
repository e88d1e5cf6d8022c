// Package kernel identifies offload kernels by name and assigns them
// their compact process-wide identities.
package kernel

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// InstantiateKernelPrefix is the demangled-name marker of the kernel
// instantiation template. The match is an exact case-sensitive prefix
// test, never a substring search.
const InstantiateKernelPrefix = "void cl::sycl::detail::instantiate_kernel<"

// ShortNamePrefix starts every registry-assigned kernel name. Matching on
// it lets already-renamed kernels skip demangling entirely.
const ShortNamePrefix = "TRISYCL_kernel_"

// DemangleFunc turns a mangled linkage name into a human-readable
// signature. Implementations return ok=false for names they cannot
// decode; they never panic on malformed input.
type DemangleFunc func(mangled string) (string, bool)

// ItaniumDemangle decodes Itanium C++ ABI mangled names.
func ItaniumDemangle(mangled string) (string, bool) {
	out, err := demangle.ToString(mangled)
	if err != nil {
		return "", false
	}
	return out, true
}

// Matcher is the pure kernel predicate shared by every pipeline stage.
type Matcher struct {
	demangle DemangleFunc
}

// NewMatcher builds a matcher around the given demangler. A nil demangler
// selects the Itanium decoder.
func NewMatcher(d DemangleFunc) *Matcher {
	if d == nil {
		d = ItaniumDemangle
	}
	return &Matcher{demangle: d}
}

// IsKernel reports whether a linkage name denotes a kernel.
//
// Names already carrying the registry short prefix are kernels that a
// previous stage renamed; they are accepted without demangling. Names the
// demangler cannot decode are never kernels.
func (m *Matcher) IsKernel(name string) bool {
	if strings.HasPrefix(name, ShortNamePrefix) {
		return true
	}
	pretty, ok := m.demangle(name)
	if !ok {
		return false
	}
	return strings.HasPrefix(pretty, InstantiateKernelPrefix)
}
