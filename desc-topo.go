package rwasim

// desc-topo.go holds the serializable description of a network topology, and the
// functions that read it from file, write it to file, and generate one at random.
// The description is what gets handed to CreateTopology; wavelength inventory
// and converter presence are simulation-wide parameters, not part of it

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// EdgeDesc names the two endpoints of an undirected fiber link
type EdgeDesc struct {
	A int `json:"a" yaml:"a"`
	B int `json:"b" yaml:"b"`
}

// TopoDesc is the serializable form of a topology
type TopoDesc struct {
	// Name is an identifier for the topology, used in trace and dot output
	Name string `json:"name" yaml:"name"`

	// NumNodes is the vertex count; vertices are numbered 0..NumNodes-1
	NumNodes int `json:"numnodes" yaml:"numnodes"`

	// Edges lists the links
	Edges []EdgeDesc `json:"edges" yaml:"edges"`
}

// CreateTopoDesc is a constructor
func CreateTopoDesc(name string, numNodes int) *TopoDesc {
	td := new(TopoDesc)
	td.Name = name
	td.NumNodes = numNodes
	td.Edges = make([]EdgeDesc, 0)
	return td
}

// AddEdge appends a link between a and b.  Nothing checks the edge here,
// CreateTopology rejects bad ones
func (td *TopoDesc) AddEdge(a, b int) {
	td.Edges = append(td.Edges, EdgeDesc{A: a, B: b})
}

// WriteToFile stores the TopoDesc struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (td *TopoDesc) WriteToFile(filename string) error {
	return writeDescFile(filename, td)
}

// ReadTopoDesc deserializes a byte slice holding a representation of a TopoDesc struct.
// If the input argument of dict (those bytes) is empty, the file whose name is given is read
// to acquire them.
func ReadTopoDesc(filename string, useYAML bool, dict []byte) (*TopoDesc, error) {
	example := TopoDesc{}
	if err := readDescFile(filename, useYAML, dict, &example); err != nil {
		return nil, err
	}
	return &example, nil
}

// ParseEdgeList reads the plain text topology format: a header line holding the
// vertex and edge counts, then one "a b" pair per edge
func ParseEdgeList(name string, rdr io.Reader) (*TopoDesc, error) {
	in := bufio.NewReader(rdr)

	var numNodes, numEdges int
	if _, err := fmt.Fscan(in, &numNodes, &numEdges); err != nil {
		return nil, fmt.Errorf("reading topology header: %w", err)
	}
	if numNodes < 0 || numEdges < 0 {
		return nil, fmt.Errorf("%w: header %d %d", ErrBadParameter, numNodes, numEdges)
	}

	td := CreateTopoDesc(name, numNodes)
	for idx := 0; idx < numEdges; idx++ {
		var a, b int
		if _, err := fmt.Fscan(in, &a, &b); err != nil {
			return nil, fmt.Errorf("reading edge %d of %d: %w", idx+1, numEdges, err)
		}
		td.AddEdge(a, b)
	}
	return td, nil
}

// WriteEdgeList writes td in the format ParseEdgeList reads
func (td *TopoDesc) WriteEdgeList(w io.Writer) error {
	out := bufio.NewWriter(w)
	fmt.Fprintf(out, "%d %d\n", td.NumNodes, len(td.Edges))
	for _, edge := range td.Edges {
		fmt.Fprintf(out, "%d %d\n", edge.A, edge.B)
	}
	return out.Flush()
}

// ReadEdgeListFile opens filename and parses it with ParseEdgeList
func ReadEdgeListFile(filename string) (*TopoDesc, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseEdgeList(path.Base(filename), f)
}

// LoadTopoDesc picks the reader by file extension: yaml and json descriptions,
// anything else is taken to be an edge list
func LoadTopoDesc(filename string) (*TopoDesc, error) {
	switch path.Ext(filename) {
	case ".yaml", ".YAML", ".yml":
		return ReadTopoDesc(filename, true, nil)
	case ".json", ".JSON":
		return ReadTopoDesc(filename, false, nil)
	default:
		return ReadEdgeListFile(filename)
	}
}

// GenerateTopoDesc draws numEdges distinct links among numNodes vertices, uniformly
// at random from rng.  The edges come back sorted by endpoints
func GenerateTopoDesc(name string, numNodes, numEdges int, rng Source) (*TopoDesc, error) {
	if numNodes < 2 {
		return nil, fmt.Errorf("%w: %d nodes", ErrDegenerateTopology, numNodes)
	}
	maxEdges := numNodes * (numNodes - 1) / 2
	if numEdges < 0 || numEdges > maxEdges {
		return nil, fmt.Errorf("%w: %d edges on %d nodes", ErrBadParameter, numEdges, numNodes)
	}

	chosen := make(map[[2]int]bool)
	keys := make([][2]int, 0, numEdges)
	for len(keys) < numEdges {
		a := uniformIndex(rng, numNodes)
		b := uniformIndex(rng, numNodes)
		if a == b {
			continue
		}
		key := linkKey(a, b)
		if chosen[key] {
			continue
		}
		chosen[key] = true
		keys = append(keys, key)
	}

	slices.SortFunc(keys, func(x, y [2]int) int {
		if x[0] != y[0] {
			return x[0] - y[0]
		}
		return x[1] - y[1]
	})

	td := CreateTopoDesc(name, numNodes)
	for _, key := range keys {
		td.AddEdge(key[0], key[1])
	}
	return td, nil
}

// errUnknownFormat is returned when a file extension selects neither json nor yaml
var errUnknownFormat = errors.New("file extension selects neither json nor yaml")

// writeDescFile serializes desc to filename, as yaml or json per the file extension
func writeDescFile(filename string, desc any) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(desc)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(desc, "", "\t")
	} else {
		return fmt.Errorf("%s: %w", filename, errUnknownFormat)
	}

	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0o644)
}

// readDescFile deserializes dict into example, reading dict from filename first
// if it is empty
func readDescFile(filename string, useYAML bool, dict []byte, example any) error {
	var err error

	// read from the file only if the byte slice is empty
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return err
		}
	}

	if useYAML {
		err = yaml.Unmarshal(dict, example)
	} else {
		err = json.Unmarshal(dict, example)
	}
	return err
}
