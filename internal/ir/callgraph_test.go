package ir_test

import (
	"testing"

	"offspir/internal/ir"
)

func defineVoid(m *ir.Module, name string) *ir.Func {
	f := m.AddFunc(&ir.Func{Name: name, Result: m.Types.Builtins().Void})
	f.AddBlock("entry").Append(ir.NewRetVoid())
	return f
}

func link(caller, callee *ir.Func) {
	bb := caller.Blocks[0]
	bb.Instrs = append([]*ir.Instr{ir.NewCall(callee)}, bb.Instrs...)
}

func TestCallSitesOf(t *testing.T) {
	m := ir.NewModule("cg")
	callee := defineVoid(m, "callee")
	a := defineVoid(m, "a")
	b := defineVoid(m, "b")
	link(a, callee)
	link(b, callee)
	link(b, callee)

	sites := ir.CallSitesOf(m, callee)
	if len(sites) != 3 {
		t.Fatalf("call sites = %d, want 3", len(sites))
	}
	if sites[0].Caller != a || sites[1].Caller != b || sites[2].Caller != b {
		t.Fatalf("call sites out of module order")
	}
	for _, s := range sites {
		if s.Block.Instrs[s.Index] != s.Instr {
			t.Fatalf("site index does not locate its instruction")
		}
	}
}

func TestCallGraphEdges(t *testing.T) {
	m := ir.NewModule("cg")
	a := defineVoid(m, "a")
	b := defineVoid(m, "b")
	c := defineVoid(m, "c")
	link(a, b)
	link(a, b) // duplicate edge
	link(b, c)

	g := ir.NewCallGraph(m)
	if got := g.Callees(a); len(got) != 1 || got[0] != b {
		t.Fatalf("Callees(a) = %v", got)
	}
	if got := g.Callers(b); len(got) != 1 || got[0] != a {
		t.Fatalf("Callers(b) = %v", got)
	}
	if got := g.Callers(a); len(got) != 0 {
		t.Fatalf("Callers(a) = %v, want none", got)
	}
}

func TestBottomUpSCCs(t *testing.T) {
	m := ir.NewModule("cg")
	a := defineVoid(m, "a")
	b := defineVoid(m, "b")
	c := defineVoid(m, "c")
	d := defineVoid(m, "d")
	e := defineVoid(m, "e")
	// a -> b -> c, plus a cycle d <-> e hanging off b.
	link(a, b)
	link(b, c)
	link(b, d)
	link(d, e)
	link(e, d)

	sccs := ir.NewCallGraph(m).BottomUpSCCs()

	pos := make(map[*ir.Func]int)
	for i, scc := range sccs {
		for _, f := range scc {
			pos[f] = i
		}
	}
	if len(pos) != 5 {
		t.Fatalf("SCCs cover %d functions, want 5", len(pos))
	}
	if pos[d] != pos[e] {
		t.Fatalf("cycle members in different SCCs")
	}
	if !(pos[c] < pos[b] && pos[b] < pos[a]) {
		t.Fatalf("chain not in callee-before-caller order: c=%d b=%d a=%d", pos[c], pos[b], pos[a])
	}
	if !(pos[d] < pos[b]) {
		t.Fatalf("cycle not before its caller: d=%d b=%d", pos[d], pos[b])
	}
}
