package metacluster

import (
	"fmt"
	"sort"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
)

// Graph holds the per-node state of the classifier over a dense 0..N-1
// renumbering of the cluster ids found in the edges.
type Graph struct {
	NumNodes    int       `json:"num_nodes"`
	NumEdges    int       `json:"num_edges"`
	IDs         []uint32  `json:"ids"` // IDs[i] = original id of node i, ascending
	Density     []uint32  `json:"density"`
	MinDistance []float64 `json:"min_distance"`
	Labels      []int32   `json:"labels"`
	DistToPeak  []float64 `json:"-"`

	index map[uint32]int
}

// NewGraph builds the id dictionary from every endpoint in src and
// initializes node state.
func NewGraph(src EdgeSource) (*Graph, error) {
	seen := make(map[uint32]struct{})
	edges := 0
	err := src.Each(func(p models.NormalizedPair) {
		edges++
		seen[p.ID1] = struct{}{}
		seen[p.ID2] = struct{}{}
	})
	if err != nil {
		return nil, err
	}

	ids := make([]uint32, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	n := len(ids)
	g := &Graph{
		NumNodes:    n,
		NumEdges:    edges,
		IDs:         ids,
		Density:     make([]uint32, n),
		MinDistance: make([]float64, n),
		Labels:      make([]int32, n),
		DistToPeak:  make([]float64, n),
		index:       make(map[uint32]int, n),
	}
	for i, id := range ids {
		g.index[id] = i
		g.Density[i] = 1
		g.MinDistance[i] = 1
		g.Labels[i] = models.LabelNone
		g.DistToPeak[i] = unreachedDistance
	}
	return g, nil
}

// Node returns the dense index of an original id.
func (g *Graph) Node(id uint32) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// nodes maps both endpoints of an edge seen while building the graph.
func (g *Graph) nodes(p models.NormalizedPair) (int, int) {
	return g.index[p.ID1], g.index[p.ID2]
}

// Validate checks graph consistency
func (g *Graph) Validate() error {
	if g.NumNodes <= 0 {
		return fmt.Errorf("graph must have positive number of nodes")
	}
	for _, s := range []int{len(g.IDs), len(g.Density), len(g.MinDistance), len(g.Labels), len(g.DistToPeak)} {
		if s != g.NumNodes {
			return fmt.Errorf("node state of length %d, expected %d", s, g.NumNodes)
		}
	}
	for i := 1; i < len(g.IDs); i++ {
		if g.IDs[i-1] >= g.IDs[i] {
			return fmt.Errorf("ids not strictly ascending at node %d", i)
		}
	}
	return nil
}
