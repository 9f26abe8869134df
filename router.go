package rwasim

// router.go provides the routing and wavelength assignment for connection requests.
//
// A request from a to b is satisfied by a wavelength wl and a path from a to b every
// element of which can carry wl.  The candidate wavelengths are those a could put on
// the network: the free channels of a itself when Resources sit on nodes, or the
// union of the free channels of the links leaving a when they sit on links.
// Candidates are tried lowest first, and for each one a breadth-first search runs
// over the topology with every element that cannot carry the candidate filtered out.
// The first candidate reaching b wins, so the chosen path is a fewest-hop path
// among those usable on that channel.  The search is gonum's traverse.BreadthFirst
// with the filter supplied as its Traverse predicate.

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// Path is the route of one connection.  Nodes is the vertex sequence from source
// to destination, inclusive.  Elements lists the graph elements holding the
// Resources the connection occupies: link indices when Resources sit on links,
// the vertices themselves when they sit on nodes
type Path struct {
	Nodes    []int `json:"nodes" yaml:"nodes"`
	Elements []int `json:"elements" yaml:"elements"`
}

// Empty is true for the path returned with NoWavelength
func (p Path) Empty() bool {
	return len(p.Nodes) == 0
}

// Hops is the number of links traversed
func (p Path) Hops() int {
	if len(p.Nodes) == 0 {
		return 0
	}
	return len(p.Nodes) - 1
}

// Len is the number of Resources on the path
func (p Path) Len() int {
	return len(p.Elements)
}

// String lists the vertices on the path, comma separated
func (p Path) String() string {
	pathString := make([]string, 0, len(p.Nodes))
	for _, v := range p.Nodes {
		pathString = append(pathString, strconv.Itoa(v))
	}
	return strings.Join(pathString, ",")
}

// Router holds the network state, finds paths for connection requests, and owns
// the random number stream from which requests are drawn
type Router struct {
	topo         *Topology
	lambda       float64 // arrival rate of connection requests
	durationMean float64 // mean holding time of a connection
	rng          Source
}

// CreateRouter is a constructor.  lambda is the arrival rate of requests and
// durationMean the mean connection holding time, both must be positive
func CreateRouter(topo *Topology, lambda, durationMean float64, rng Source) (*Router, error) {
	if topo == nil {
		return nil, fmt.Errorf("%w: nil topology", ErrDegenerateTopology)
	}
	if topo.NumNodes() < 2 {
		return nil, fmt.Errorf("%w: %d nodes", ErrDegenerateTopology, topo.NumNodes())
	}
	if !(lambda > 0) {
		return nil, fmt.Errorf("%w: arrival rate %v", ErrBadParameter, lambda)
	}
	if !(durationMean > 0) {
		return nil, fmt.Errorf("%w: mean duration %v", ErrBadParameter, durationMean)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrBadParameter)
	}

	rtr := new(Router)
	rtr.topo = topo
	rtr.lambda = lambda
	rtr.durationMean = durationMean
	rtr.rng = rng
	return rtr, nil
}

// Topology returns the network the router manages
func (rtr *Router) Topology() *Topology {
	return rtr.topo
}

// RandomEndpoints draws a source and a destination uniformly among the vertices,
// redrawing the destination until the two differ
func (rtr *Router) RandomEndpoints() (int, int) {
	n := rtr.topo.NumNodes()
	a := uniformIndex(rtr.rng, n)
	b := uniformIndex(rtr.rng, n)
	for a == b {
		b = uniformIndex(rtr.rng, n)
	}
	return a, b
}

// NextArrival is the time until the next connection request, exponentially
// distributed with rate lambda
func (rtr *Router) NextArrival() float64 {
	return expRV(rtr.rng.RandU01(), rtr.lambda)
}

// NextDuration is the holding time of a connection, exponentially distributed
// with mean durationMean
func (rtr *Router) NextDuration() float64 {
	return expRV(rtr.rng.RandU01(), 1.0/rtr.durationMean)
}

// PathBetween returns a path from a to b and a wavelength every Resource on it can
// carry.  The wavelength is NoWavelength (and the path empty) when there is none,
// when a equals b, or when either vertex does not exist.  Nothing is locked
func (rtr *Router) PathBetween(a, b int) (Path, Wavelength) {
	if a == b || !rtr.topo.validNode(a) || !rtr.topo.validNode(b) {
		return Path{}, NoWavelength
	}

	for _, wl := range rtr.candidates(a) {
		path, found := rtr.searchPath(a, b, wl)
		if !found {
			continue
		}
		if rtr.usable(path, wl) {
			return path, wl
		}
	}
	return Path{}, NoWavelength
}

// HasPathBetween tells whether a connection from a to b could be made now
func (rtr *Router) HasPathBetween(a, b int) bool {
	_, wl := rtr.PathBetween(a, b)
	return wl != NoWavelength
}

// MakeConnection finds a path and wavelength from a to b and locks the wavelength
// on every Resource of the path.  On failure it returns NoWavelength and leaves
// every Resource as it was
func (rtr *Router) MakeConnection(a, b int) (Path, Wavelength) {
	path, wl := rtr.PathBetween(a, b)
	if wl == NoWavelength {
		return Path{}, NoWavelength
	}

	for idx, elmnt := range path.Elements {
		if !rtr.topo.rsrcs[elmnt].Lock(wl) {
			// undo the partial reservation
			for _, done := range path.Elements[:idx] {
				rtr.topo.rsrcs[done].Release(wl)
			}
			return Path{}, NoWavelength
		}
	}
	return path, wl
}

// RemoveConnection releases wl on every Resource of path.  The caller must release
// a connection exactly once: a second call could free a channel that another
// connection has since locked under the same nominal wavelength
func (rtr *Router) RemoveConnection(path Path, wl Wavelength) {
	for _, elmnt := range path.Elements {
		if rsrc := rtr.topo.Resource(elmnt); rsrc != nil {
			rsrc.Release(wl)
		}
	}
}

// Occupancy is the fraction of all channels in the network currently locked
func (rtr *Router) Occupancy() float64 {
	var total, used int
	for _, rsrc := range rtr.topo.rsrcs {
		total += rsrc.NumWavelengths()
		used += rsrc.NumUsed()
	}
	if total == 0 {
		return 0.0
	}
	return float64(used) / float64(total)
}

// candidates returns, ascending, the wavelengths vertex a could start a connection on
func (rtr *Router) candidates(a int) []Wavelength {
	if rtr.topo.place == OnNodes {
		return rtr.topo.rsrcs[a].Available()
	}

	union := make(map[Wavelength]bool)
	for _, nbr := range rtr.topo.view.adj[a] {
		idx, _ := rtr.topo.LinkBetween(a, int(nbr.ID()))
		for _, wl := range rtr.topo.rsrcs[idx].Available() {
			union[wl] = true
		}
	}
	return sortedWavelengths(union, nil)
}

// admits is the filter applied to the topology for wavelength wl: a link may be
// crossed if its own Resource, or the Resources of both its ends, can carry wl
func (rtr *Router) admits(f fiber, wl Wavelength) bool {
	if rtr.topo.place == OnNodes {
		return rtr.topo.rsrcs[f.F.ID()].CanUse(wl) && rtr.topo.rsrcs[f.T.ID()].CanUse(wl)
	}
	return rtr.topo.rsrcs[f.idx].CanUse(wl)
}

// searchPath runs a breadth-first search from a over the links admitted for wl,
// recording for each vertex reached the vertex it was first reached from.  If b
// is reached the path is rebuilt by walking those predecessors back from b
func (rtr *Router) searchPath(a, b int, wl Wavelength) (Path, bool) {
	n := rtr.topo.NumNodes()
	pred := make([]int, n)
	via := make([]int, n)
	seen := make([]bool, n)
	for idx := range pred {
		pred[idx] = idx
		via[idx] = -1
	}
	seen[a] = true

	bf := traverse.BreadthFirst{
		Traverse: func(e graph.Edge) bool {
			f, ok := e.(fiber)
			if !ok || !rtr.admits(f, wl) {
				return false
			}
			u, v := int(f.F.ID()), int(f.T.ID())

			// the vertex being expanded has been seen already, the other end
			// is reached through this link if it has not
			if !seen[v] {
				seen[v] = true
				pred[v], via[v] = u, f.idx
			} else if !seen[u] {
				seen[u] = true
				pred[u], via[u] = v, f.idx
			}
			return true
		},
	}

	reached := bf.Walk(rtr.topo.view, simple.Node(a), func(nd graph.Node, _ int) bool {
		return int(nd.ID()) == b
	})
	if reached == nil || pred[b] == b {
		return Path{}, false
	}

	// walk back from b, then turn the sequence around
	rev := []int{b}
	links := []int{}
	for here := b; here != a; here = pred[here] {
		links = append(links, via[here])
		rev = append(rev, pred[here])
	}

	path := Path{Nodes: make([]int, 0, len(rev))}
	for idx := len(rev) - 1; idx > -1; idx-- {
		path.Nodes = append(path.Nodes, rev[idx])
	}

	if rtr.topo.place == OnNodes {
		path.Elements = append([]int{}, path.Nodes...)
	} else {
		path.Elements = make([]int, 0, len(links))
		for idx := len(links) - 1; idx > -1; idx-- {
			path.Elements = append(path.Elements, links[idx])
		}
	}
	return path, true
}

// usable re-checks that every Resource on path can carry wl
func (rtr *Router) usable(path Path, wl Wavelength) bool {
	for _, elmnt := range path.Elements {
		if !rtr.topo.rsrcs[elmnt].CanUse(wl) {
			return false
		}
	}
	return true
}
