package ir

// CallSite locates one call instruction inside its enclosing function.
type CallSite struct {
	Caller *Func
	Block  *Block
	Index  int
	Instr  *Instr
}

// CallSitesOf returns every call site in the module whose callee is f, in
// module iteration order. The slice is a snapshot: callers may mutate the
// module freely while walking it.
func CallSitesOf(m *Module, f *Func) []CallSite {
	var sites []CallSite
	for _, caller := range m.Funcs {
		for _, bb := range caller.Blocks {
			for i, ins := range bb.Instrs {
				if ins.Kind == InstrCall && ins.Call.Callee == f {
					sites = append(sites, CallSite{Caller: caller, Block: bb, Index: i, Instr: ins})
				}
			}
		}
	}
	return sites
}

// CallGraph is the derived directed graph whose nodes are functions and
// whose edges are call sites. It is a snapshot; rebuild it after the module
// gains or loses functions.
type CallGraph struct {
	funcs   []*Func
	callees map[*Func][]*Func
	callers map[*Func][]*Func
}

// NewCallGraph builds the call graph of m. Edges are deduplicated and kept
// in discovery order so traversals stay deterministic.
func NewCallGraph(m *Module) *CallGraph {
	g := &CallGraph{
		funcs:   append([]*Func(nil), m.Funcs...),
		callees: make(map[*Func][]*Func, len(m.Funcs)),
		callers: make(map[*Func][]*Func, len(m.Funcs)),
	}
	type edge struct{ from, to *Func }
	seen := make(map[edge]bool)
	for _, caller := range m.Funcs {
		for _, bb := range caller.Blocks {
			for _, ins := range bb.Instrs {
				if ins.Kind != InstrCall || ins.Call.Callee == nil {
					continue
				}
				e := edge{caller, ins.Call.Callee}
				if seen[e] {
					continue
				}
				seen[e] = true
				g.callees[caller] = append(g.callees[caller], ins.Call.Callee)
				g.callers[ins.Call.Callee] = append(g.callers[ins.Call.Callee], caller)
			}
		}
	}
	return g
}

// Callees returns the direct call targets of f in discovery order.
func (g *CallGraph) Callees(f *Func) []*Func {
	return g.callees[f]
}

// Callers returns the functions containing a call site naming f as callee,
// in discovery order.
func (g *CallGraph) Callers(f *Func) []*Func {
	return g.callers[f]
}

// BottomUpSCCs returns the strongly-connected components of the call graph
// in callee-before-caller order: a component is listed before every
// component that calls into it.
func (g *CallGraph) BottomUpSCCs() [][]*Func {
	t := &tarjan{
		graph:   g,
		index:   make(map[*Func]int, len(g.funcs)),
		lowlink: make(map[*Func]int, len(g.funcs)),
		onStack: make(map[*Func]bool, len(g.funcs)),
	}
	for _, f := range g.funcs {
		if _, visited := t.index[f]; !visited {
			t.strongConnect(f)
		}
	}
	return t.sccs
}

// tarjan holds the state of Tarjan's algorithm. Components are emitted when
// complete, which yields the bottom-up order directly.
type tarjan struct {
	graph   *CallGraph
	counter int
	index   map[*Func]int
	lowlink map[*Func]int
	stack   []*Func
	onStack map[*Func]bool
	sccs    [][]*Func
}

func (t *tarjan) strongConnect(f *Func) {
	t.index[f] = t.counter
	t.lowlink[f] = t.counter
	t.counter++
	t.stack = append(t.stack, f)
	t.onStack[f] = true

	for _, callee := range t.graph.Callees(f) {
		if _, visited := t.index[callee]; !visited {
			t.strongConnect(callee)
			if t.lowlink[callee] < t.lowlink[f] {
				t.lowlink[f] = t.lowlink[callee]
			}
		} else if t.onStack[callee] && t.index[callee] < t.lowlink[f] {
			t.lowlink[f] = t.index[callee]
		}
	}

	if t.lowlink[f] == t.index[f] {
		var scc []*Func
		for {
			top := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[top] = false
			scc = append(scc, top)
			if top == f {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}
