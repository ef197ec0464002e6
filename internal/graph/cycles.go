package graph

// ---------------------------------------------------------------------------
// Cycle Detector: circular flow of funds
// DFS from every unvisited node. A neighbor that is on the current path is a
// back edge; the path from that neighbor onward is the cycle. Each root stops
// at its first cycle, so this flags wallets, it does not enumerate cycles.
// ---------------------------------------------------------------------------

// CycleReport lists the wallets found on a directed cycle.
type CycleReport struct {
	Wallets []string   `json:"wallets"` // in the order they were first flagged
	Cycles  [][]string `json:"cycles"`  // each path ends with its closing wallet

	members map[string]struct{}
}

// Contains reports whether addr was flagged as circular.
func (r CycleReport) Contains(addr string) bool {
	_, ok := r.members[addr]
	return ok
}

// frame is one level of the explicit DFS stack.
type frame struct {
	addr string
	next int // index of the next successor to visit
}

// cycleSearch carries all traversal state for one DetectCycles call.
type cycleSearch struct {
	g       *Graph
	visited map[string]bool
	onStack map[string]bool
	report  *CycleReport
}

// DetectCycles scans the whole graph and returns every wallet that sits on a
// cycle reachable from some root. Traversal is iterative; state is local to
// the call so concurrent calls on distinct graphs never interfere.
func (g *Graph) DetectCycles() CycleReport {
	report := CycleReport{members: make(map[string]struct{})}
	s := &cycleSearch{
		g:       g,
		visited: make(map[string]bool, len(g.order)),
		onStack: make(map[string]bool),
		report:  &report,
	}

	for _, addr := range g.order {
		if !s.visited[addr] {
			s.run(addr)
		}
	}
	return report
}

// run explores from root and reports whether a cycle was found.
func (s *cycleSearch) run(root string) bool {
	s.enter(root)
	stack := []frame{{addr: root}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succ := s.g.nodes[top.addr].Out.items

		if top.next >= len(succ) {
			s.onStack[top.addr] = false
			stack = stack[:len(stack)-1]
			continue
		}

		next := succ[top.next]
		top.next++

		if !s.visited[next] {
			s.enter(next)
			stack = append(stack, frame{addr: next})
			continue
		}

		if s.onStack[next] {
			s.record(stack, next)
			// Unwind: nothing on this path stays on the stack for later roots.
			for _, f := range stack {
				s.onStack[f.addr] = false
			}
			return true
		}
		// Visited but off the stack: a cross or forward edge, not a cycle.
	}
	return false
}

func (s *cycleSearch) enter(addr string) {
	s.visited[addr] = true
	s.onStack[addr] = true
}

// record reconstructs the cycle closed by the back edge to closing.
func (s *cycleSearch) record(stack []frame, closing string) {
	start := -1
	for i, f := range stack {
		if f.addr == closing {
			start = i
			break
		}
	}
	if start == -1 {
		return
	}

	cycle := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		cycle = append(cycle, f.addr)
	}
	cycle = append(cycle, closing)
	s.report.Cycles = append(s.report.Cycles, cycle)

	for _, addr := range cycle {
		if _, seen := s.report.members[addr]; seen {
			continue
		}
		s.report.members[addr] = struct{}{}
		s.report.Wallets = append(s.report.Wallets, addr)
	}
}
