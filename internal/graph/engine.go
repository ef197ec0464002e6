package graph

// ---------------------------------------------------------------------------
// Transaction Graph: directed wallet adjacency built per analysis run
// Distinct counterparts only: repeated transfers between a pair collapse to
// one edge. Iteration is insertion ordered so every run is reproducible.
// ---------------------------------------------------------------------------

// Set is an insertion-ordered set of wallet hashes.
type Set struct {
	items []string
	index map[string]struct{}
}

func newSet() *Set {
	return &Set{index: make(map[string]struct{})}
}

// Add inserts addr and reports whether it was new.
func (s *Set) Add(addr string) bool {
	if _, ok := s.index[addr]; ok {
		return false
	}
	s.index[addr] = struct{}{}
	s.items = append(s.items, addr)
	return true
}

// Has reports whether addr is in the set.
func (s *Set) Has(addr string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[addr]
	return ok
}

// Len returns the number of members. A nil set is empty.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns a copy of the members in insertion order.
func (s *Set) Items() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// First returns the earliest inserted member.
func (s *Set) First() (string, bool) {
	if s.Len() == 0 {
		return "", false
	}
	return s.items[0], true
}

// Node is a wallet in the graph with its distinct counterparts.
type Node struct {
	Address string
	In      *Set // hashes it received from
	Out     *Set // hashes it sent to
}

// Graph is the in-memory adjacency view of one transaction snapshot.
// It is not safe for concurrent mutation; build one per analysis.
type Graph struct {
	nodes     map[string]*Node
	order     []string // first-seen order
	edges     int
	selfLoops int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddTransfer records a directed transfer from -> to. Both endpoints are
// materialized on first sight. Self-loops are kept like any other edge.
func (g *Graph) AddTransfer(from, to string) {
	src := g.ensureNode(from)
	dst := g.ensureNode(to)

	if src.Out.Add(to) {
		g.edges++
		if from == to {
			g.selfLoops++
		}
	}
	dst.In.Add(from)
}

// Node returns the node for addr, or nil if it never appeared.
func (g *Graph) Node(addr string) *Node {
	return g.nodes[addr]
}

// Has reports whether addr is a node of the graph.
func (g *Graph) Has(addr string) bool {
	_, ok := g.nodes[addr]
	return ok
}

// Nodes returns every wallet hash in first-seen order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// OutDegree is the number of distinct recipients of addr.
func (g *Graph) OutDegree(addr string) int {
	if n := g.nodes[addr]; n != nil {
		return n.Out.Len()
	}
	return 0
}

// InDegree is the number of distinct senders to addr.
func (g *Graph) InDegree(addr string) int {
	if n := g.nodes[addr]; n != nil {
		return n.In.Len()
	}
	return 0
}

// Successors returns the distinct recipients of addr in insertion order.
func (g *Graph) Successors(addr string) []string {
	if n := g.nodes[addr]; n != nil {
		return n.Out.Items()
	}
	return nil
}

// Predecessors returns the distinct senders to addr in insertion order.
func (g *Graph) Predecessors(addr string) []string {
	if n := g.nodes[addr]; n != nil {
		return n.In.Items()
	}
	return nil
}

// Len returns the node count.
func (g *Graph) Len() int {
	return len(g.order)
}

func (g *Graph) ensureNode(addr string) *Node {
	if n, ok := g.nodes[addr]; ok {
		return n
	}
	n := &Node{
		Address: addr,
		In:      newSet(),
		Out:     newSet(),
	}
	g.nodes[addr] = n
	g.order = append(g.order, addr)
	return n
}

// GraphStats summarizes the shape of a graph.
type GraphStats struct {
	NodeCount int `json:"nodeCount"`
	EdgeCount int `json:"edgeCount"`
	SelfLoops int `json:"selfLoops"`
	Isolated  int `json:"isolated"` // nodes with only a self-loop or no counterparts
}

func (g *Graph) Stats() GraphStats {
	isolated := 0
	for _, addr := range g.order {
		n := g.nodes[addr]
		if countOthers(n.In, addr) == 0 && countOthers(n.Out, addr) == 0 {
			isolated++
		}
	}
	return GraphStats{
		NodeCount: len(g.order),
		EdgeCount: g.edges,
		SelfLoops: g.selfLoops,
		Isolated:  isolated,
	}
}

func countOthers(s *Set, self string) int {
	n := s.Len()
	if s.Has(self) {
		n--
	}
	return n
}
