// Package passes holds the offload transformations: kernel visibility
// partitioning, reachability, name sanitizing, argument marshalling and
// target-convention lowering. Each pass mutates the module in place and
// reports whether it changed anything, the way the rest of the compiler
// phases do.
package passes

import (
	"offspir/internal/ir"
	"offspir/internal/kernel"
)

// ReachableSet records which functions are transitively invoked by at
// least one kernel. Membership is monotonic for the duration of a run:
// functions are only ever added.
type ReachableSet struct {
	members map[*ir.Func]bool
}

// NewReachableSet returns an empty set.
func NewReachableSet() *ReachableSet {
	return &ReachableSet{members: make(map[*ir.Func]bool)}
}

// Add inserts f. Reports whether f was new.
func (s *ReachableSet) Add(f *ir.Func) bool {
	if s.members[f] {
		return false
	}
	s.members[f] = true
	return true
}

// Contains reports membership.
func (s *ReachableSet) Contains(f *ir.Func) bool {
	return s.members[f]
}

// Len returns the member count.
func (s *ReachableSet) Len() int {
	return len(s.members)
}

// ComputeReachable classifies every function in the module and returns the
// set of functions reachable from a kernel.
//
// Components of the call graph are visited in caller-before-callee order,
// so a function joins the set when it is itself a kernel or when any of
// its callers already joined. Mutually recursive functions share one
// component and join together.
func ComputeReachable(m *ir.Module, matcher *kernel.Matcher) *ReachableSet {
	set := NewReachableSet()
	g := ir.NewCallGraph(m)
	sccs := g.BottomUpSCCs()

	// Walk top-down: reverse of the callee-before-caller order.
	for i := len(sccs) - 1; i >= 0; i-- {
		scc := sccs[i]
		qualified := false
		for _, f := range scc {
			if matcher.IsKernel(f.Name) {
				qualified = true
				break
			}
			for _, caller := range g.Callers(f) {
				if set.Contains(caller) {
					qualified = true
					break
				}
			}
			if qualified {
				break
			}
		}
		if !qualified {
			continue
		}
		for _, f := range scc {
			set.Add(f)
		}
	}
	return set
}

// OnFunctionCreated classifies a function added after ComputeReachable ran
// (cloning, splitting) and adds it to the set when it qualifies, without
// recomputing the whole graph. Reports whether the set grew.
func OnFunctionCreated(m *ir.Module, matcher *kernel.Matcher, set *ReachableSet, f *ir.Func) bool {
	if set.Contains(f) {
		return false
	}
	if matcher.IsKernel(f.Name) {
		return set.Add(f)
	}
	for _, site := range ir.CallSitesOf(m, f) {
		if set.Contains(site.Caller) {
			return set.Add(f)
		}
	}
	return false
}
