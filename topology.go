package rwasim

// topology.go builds the static graph the router searches.  Vertices are the
// optical nodes 0..N-1 and edges the fibers between them.  The graph itself comes
// from gonum's simple package; on top of it we keep a per-vertex neighbor list in
// ascending index order, so that breadth-first searches visit neighbors in the
// same order on every run, and the Resource slice whose meaning depends on
// the Placement chosen at construction

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	// ErrDegenerateTopology is returned for a network with fewer than two nodes
	ErrDegenerateTopology = errors.New("topology needs at least two nodes")

	// ErrBadEdge is returned for self loops, repeated or out-of-range edges
	ErrBadEdge = errors.New("bad edge")

	// ErrBadParameter is returned for simulation parameters out of their domain
	ErrBadParameter = errors.New("bad parameter")
)

// Placement selects which graph element carries the wavelength inventory
type Placement int

const (
	OnLinks Placement = iota
	OnNodes
	unknownPlacement
)

// placementFromStr returns the Placement corresponding to a string name for it.
// The empty string selects the default, OnLinks
func placementFromStr(place string) Placement {
	switch place {
	case "", "links", "Links", "link", "edges":
		return OnLinks
	case "nodes", "Nodes", "node", "vertices":
		return OnNodes
	default:
		return unknownPlacement
	}
}

// String returns the name used for the placement in descriptions
func (place Placement) String() string {
	switch place {
	case OnLinks:
		return "links"
	case OnNodes:
		return "nodes"
	default:
		return "unknown"
	}
}

// fiber is the graph.Edge stored in the gonum graph.  It remembers the index of
// the link so a traversal can find the link's Resource without a map lookup
type fiber struct {
	F, T graph.Node
	idx  int
}

func (f fiber) From() graph.Node         { return f.F }
func (f fiber) To() graph.Node           { return f.T }
func (f fiber) ReversedEdge() graph.Edge { return fiber{F: f.T, T: f.F, idx: f.idx} }

// orderedView presents the topology to gonum's traversals with neighbors
// enumerated in ascending vertex order
type orderedView struct {
	*simple.UndirectedGraph
	adj [][]graph.Node
}

// From returns the neighbors of vertex id, ascending
func (ov orderedView) From(id int64) graph.Nodes {
	if id < 0 || int(id) >= len(ov.adj) {
		return iterator.NewOrderedNodes(nil)
	}
	return iterator.NewOrderedNodes(ov.adj[id])
}

// Topology is the undirected network graph plus its Resources.  The structure is
// fixed once built; only the Resources' lock state changes during a simulation
type Topology struct {
	name    string
	place   Placement
	graph   *simple.UndirectedGraph
	view    orderedView
	links   [][2]int       // endpoints of each link, smaller index first
	linkIdx map[[2]int]int // endpoints -> link index
	rsrcs   []*Resource    // indexed by link or by node, per place
}

// CreateTopology builds a Topology from its description.  Every link (OnLinks) or
// every node (OnNodes) gets a Resource with channels 1..wavelengths.
func CreateTopology(desc *TopoDesc, wavelengths int, converter bool, place Placement) (*Topology, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil topology description", ErrDegenerateTopology)
	}
	if desc.NumNodes < 2 {
		return nil, fmt.Errorf("%w: %d nodes", ErrDegenerateTopology, desc.NumNodes)
	}
	if wavelengths < 1 {
		return nil, fmt.Errorf("%w: %d wavelengths per resource", ErrBadParameter, wavelengths)
	}
	if place != OnLinks && place != OnNodes {
		return nil, fmt.Errorf("%w: unknown resource placement", ErrBadParameter)
	}

	tp := new(Topology)
	tp.name = desc.Name
	tp.place = place
	tp.graph = simple.NewUndirectedGraph()
	tp.linkIdx = make(map[[2]int]int)
	tp.links = make([][2]int, 0, len(desc.Edges))

	for nodeID := 0; nodeID < desc.NumNodes; nodeID++ {
		tp.graph.AddNode(simple.Node(nodeID))
	}

	for _, edge := range desc.Edges {
		a, b := edge.A, edge.B
		if a < 0 || b < 0 || a >= desc.NumNodes || b >= desc.NumNodes {
			return nil, fmt.Errorf("%w: %d-%d out of range for %d nodes", ErrBadEdge, a, b, desc.NumNodes)
		}
		if a == b {
			return nil, fmt.Errorf("%w: self loop at %d", ErrBadEdge, a)
		}
		key := linkKey(a, b)
		if _, present := tp.linkIdx[key]; present {
			return nil, fmt.Errorf("%w: %d-%d listed twice", ErrBadEdge, a, b)
		}
		idx := len(tp.links)
		tp.linkIdx[key] = idx
		tp.links = append(tp.links, key)
		tp.graph.SetEdge(fiber{F: simple.Node(a), T: simple.Node(b), idx: idx})
	}

	// neighbor lists, ascending, for deterministic traversal
	adj := make([][]graph.Node, desc.NumNodes)
	for nodeID := 0; nodeID < desc.NumNodes; nodeID++ {
		nbrs := graph.NodesOf(tp.graph.From(int64(nodeID)))
		slices.SortFunc(nbrs, func(x, y graph.Node) int {
			return int(x.ID() - y.ID())
		})
		adj[nodeID] = nbrs
	}
	tp.view = orderedView{UndirectedGraph: tp.graph, adj: adj}

	numRsrcs := len(tp.links)
	if place == OnNodes {
		numRsrcs = desc.NumNodes
	}
	tp.rsrcs = make([]*Resource, numRsrcs)
	for idx := 0; idx < numRsrcs; idx++ {
		tp.rsrcs[idx] = CreateResource(idx, wavelengths, converter)
	}

	return tp, nil
}

// linkKey orders the endpoints of an undirected link
func linkKey(a, b int) [2]int {
	if b < a {
		a, b = b, a
	}
	return [2]int{a, b}
}

// Name of the topology, as given in its description
func (tp *Topology) Name() string {
	return tp.name
}

// Placement tells which graph element holds the Resources
func (tp *Topology) Placement() Placement {
	return tp.place
}

// NumNodes is the number of vertices
func (tp *Topology) NumNodes() int {
	return len(tp.view.adj)
}

// NumLinks is the number of edges
func (tp *Topology) NumLinks() int {
	return len(tp.links)
}

// Link returns the endpoints of link idx, smaller index first
func (tp *Topology) Link(idx int) (int, int) {
	return tp.links[idx][0], tp.links[idx][1]
}

// LinkBetween returns the index of the link joining a and b, if there is one
func (tp *Topology) LinkBetween(a, b int) (int, bool) {
	idx, present := tp.linkIdx[linkKey(a, b)]
	return idx, present
}

// Degree is the number of links attached to vertex v
func (tp *Topology) Degree(v int) int {
	if !tp.validNode(v) {
		return 0
	}
	return len(tp.view.adj[v])
}

// Neighbors returns the vertices adjacent to v in ascending order
func (tp *Topology) Neighbors(v int) []int {
	if !tp.validNode(v) {
		return nil
	}
	rtn := make([]int, 0, len(tp.view.adj[v]))
	for _, nbr := range tp.view.adj[v] {
		rtn = append(rtn, int(nbr.ID()))
	}
	return rtn
}

// Resource returns the Resource of path element elmnt: a link index when the
// placement is OnLinks, a node index when it is OnNodes
func (tp *Topology) Resource(elmnt int) *Resource {
	if elmnt < 0 || elmnt >= len(tp.rsrcs) {
		return nil
	}
	return tp.rsrcs[elmnt]
}

// Resources returns every Resource of the topology, indexed by element
func (tp *Topology) Resources() []*Resource {
	return tp.rsrcs
}

// Connected reports whether every node can reach every other one when all
// channels are free
func (tp *Topology) Connected() bool {
	return len(topo.ConnectedComponents(tp.graph)) == 1
}

// Components returns the connected components of the graph, each listing its
// vertices ascending, ordered by their smallest vertex
func (tp *Topology) Components() [][]int {
	ccs := topo.ConnectedComponents(tp.graph)
	rtn := make([][]int, 0, len(ccs))
	for _, cc := range ccs {
		members := make([]int, 0, len(cc))
		for _, nd := range cc {
			members = append(members, int(nd.ID()))
		}
		slices.Sort(members)
		rtn = append(rtn, members)
	}
	slices.SortFunc(rtn, func(x, y []int) int {
		return x[0] - y[0]
	})
	return rtn
}

// MarshalDOT renders the vertex/edge structure in graphviz form, for
// visualization.  Resource state is not part of the output
func (tp *Topology) MarshalDOT(name string) ([]byte, error) {
	if name == "" {
		name = tp.name
	}
	return dot.Marshal(tp.graph, name, "", "    ")
}

func (tp *Topology) validNode(v int) bool {
	return v >= 0 && v < len(tp.view.adj)
}
