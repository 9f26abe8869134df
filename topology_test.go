package rwasim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeDesc builds a TopoDesc from "a b" pairs
func makeDesc(name string, numNodes int, edges ...[2]int) *TopoDesc {
	td := CreateTopoDesc(name, numNodes)
	for _, e := range edges {
		td.AddEdge(e[0], e[1])
	}
	return td
}

// crossDesc is a star around vertex 2: 0-2, 1-2, 2-3, 2-4
func crossDesc() *TopoDesc {
	return makeDesc("cross", 5, [2]int{0, 2}, [2]int{1, 2}, [2]int{2, 3}, [2]int{2, 4})
}

// diamondDesc adds a ring 0-1-4-3-0 around the cross
func diamondDesc() *TopoDesc {
	td := crossDesc()
	td.Name = "diamond"
	td.AddEdge(0, 1)
	td.AddEdge(0, 3)
	td.AddEdge(1, 4)
	td.AddEdge(3, 4)
	return td
}

func mustTopology(t *testing.T, desc *TopoDesc, wavelengths int, converter bool, place Placement) *Topology {
	t.Helper()
	tp, err := CreateTopology(desc, wavelengths, converter, place)
	require.NoError(t, err)
	return tp
}

func TestCreateTopologyValidation(t *testing.T) {
	cases := []struct {
		name        string
		desc        *TopoDesc
		wavelengths int
		place       Placement
		want        error
	}{
		{"nil description", nil, 1, OnLinks, ErrDegenerateTopology},
		{"single node", makeDesc("one", 1), 1, OnLinks, ErrDegenerateTopology},
		{"no nodes", makeDesc("none", 0), 1, OnNodes, ErrDegenerateTopology},
		{"self loop", makeDesc("loop", 3, [2]int{1, 1}), 1, OnLinks, ErrBadEdge},
		{"out of range", makeDesc("far", 3, [2]int{0, 3}), 1, OnLinks, ErrBadEdge},
		{"negative endpoint", makeDesc("neg", 3, [2]int{-1, 2}), 1, OnLinks, ErrBadEdge},
		{"duplicate", makeDesc("dup", 3, [2]int{0, 1}, [2]int{1, 0}), 1, OnLinks, ErrBadEdge},
		{"no wavelengths", makeDesc("dark", 2, [2]int{0, 1}), 0, OnLinks, ErrBadParameter},
		{"bad placement", makeDesc("where", 2, [2]int{0, 1}), 1, unknownPlacement, ErrBadParameter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tp, err := CreateTopology(tc.desc, tc.wavelengths, false, tc.place)
			require.ErrorIs(t, err, tc.want)
			assert.Nil(t, tp)
		})
	}
}

func TestTopologyStructure(t *testing.T) {
	tp := mustTopology(t, diamondDesc(), 3, false, OnLinks)

	assert.Equal(t, "diamond", tp.Name())
	assert.Equal(t, OnLinks, tp.Placement())
	assert.Equal(t, 5, tp.NumNodes())
	assert.Equal(t, 8, tp.NumLinks())
	assert.Len(t, tp.Resources(), 8)

	assert.Equal(t, []int{1, 2, 3}, tp.Neighbors(0))
	assert.Equal(t, []int{0, 1, 3, 4}, tp.Neighbors(2))
	assert.Equal(t, 4, tp.Degree(2))
	assert.Zero(t, tp.Degree(9))
	assert.Nil(t, tp.Neighbors(-1))

	idx, ok := tp.LinkBetween(4, 1)
	require.True(t, ok)
	a, b := tp.Link(idx)
	assert.Equal(t, 1, a)
	assert.Equal(t, 4, b)
	_, ok = tp.LinkBetween(0, 4)
	assert.False(t, ok)

	for elmnt, rsrc := range tp.Resources() {
		assert.Equal(t, elmnt, rsrc.ID())
		assert.Equal(t, 3, rsrc.NumWavelengths())
		assert.Zero(t, rsrc.NumUsed())
	}
	assert.Nil(t, tp.Resource(8))
	assert.Nil(t, tp.Resource(-1))
}

func TestTopologyNodePlacement(t *testing.T) {
	tp := mustTopology(t, crossDesc(), 2, true, OnNodes)
	require.Len(t, tp.Resources(), 5)
	for _, rsrc := range tp.Resources() {
		assert.True(t, rsrc.HasConverter())
		assert.Equal(t, 2, rsrc.NumWavelengths())
	}
}

func TestTopologyConnected(t *testing.T) {
	assert.True(t, mustTopology(t, crossDesc(), 1, false, OnLinks).Connected())

	split := makeDesc("split", 4, [2]int{0, 1}, [2]int{2, 3})
	tp := mustTopology(t, split, 1, false, OnLinks)
	assert.False(t, tp.Connected())
	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, tp.Components())
	assert.Equal(t, []int{2, 3}, checkConnections(tp))

	// vertex 0 need not sit in the first component listed by the graph
	islands := makeDesc("islands", 6, [2]int{5, 1}, [2]int{0, 4}, [2]int{2, 3})
	tp = mustTopology(t, islands, 1, false, OnLinks)
	assert.Equal(t, [][]int{{0, 4}, {1, 5}, {2, 3}}, tp.Components())
	assert.Equal(t, []int{1, 2, 3, 5}, checkConnections(tp))

	whole := mustTopology(t, diamondDesc(), 1, false, OnLinks)
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4}}, whole.Components())
	assert.Empty(t, checkConnections(whole))
}

func TestTopologyMarshalDOT(t *testing.T) {
	tp := mustTopology(t, makeDesc("tri", 3, [2]int{0, 1}, [2]int{1, 2}, [2]int{0, 2}), 1, false, OnLinks)

	bytes, err := tp.MarshalDOT("")
	require.NoError(t, err)
	out := string(bytes)
	assert.Contains(t, out, "graph tri {")
	assert.Contains(t, out, "0 -- 1")
	assert.Contains(t, out, "1 -- 2")

	bytes, err = tp.MarshalDOT("other")
	require.NoError(t, err)
	assert.Contains(t, string(bytes), "graph other {")
}

func TestPlacementNames(t *testing.T) {
	assert.Equal(t, OnLinks, placementFromStr(""))
	assert.Equal(t, OnLinks, placementFromStr("links"))
	assert.Equal(t, OnNodes, placementFromStr("nodes"))
	assert.Equal(t, unknownPlacement, placementFromStr("wires"))
	assert.Equal(t, "nodes", OnNodes.String())
	assert.Equal(t, OnLinks, placementFromStr(OnLinks.String()))
}
