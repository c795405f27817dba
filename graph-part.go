package netsplit

// file graph-part.go reduces a topology to the undirected graph handed to a
// balanced graph partitioner, and holds the partitioner adapters

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// GraphEdge is an undirected edge between two node indices
type GraphEdge struct {
	From int
	To   int
}

// PartitionGraph is the adjacency structure of one planning run.  Node i is the
// node the IdentityMap gave index i.  Edges from links come first (LinkEdges of them),
// then the switch-host containment edges.
type PartitionGraph struct {
	Nodes     []TopoNode
	Adjacency [][]int
	Edges     []GraphEdge
	LinkEdges int
}

// BuildPartitionGraph enumerates the links and then the switches of topo, indexing every
// node on first sight.  Every switch gets an index even when it has neither links nor hosts.
func BuildPartitionGraph(topo Topology, ids *IdentityMap) *PartitionGraph {
	g := new(PartitionGraph)
	for _, l := range topo.Links() {
		lIdx := ids.ToIndex(l.Left)
		rIdx := ids.ToIndex(l.Right)
		g.Edges = append(g.Edges, GraphEdge{From: lIdx, To: rIdx})
	}
	g.LinkEdges = len(g.Edges)

	for _, sw := range topo.Switches() {
		swIdx := ids.ToIndex(sw)
		for _, h := range sw.Hosts() {
			g.Edges = append(g.Edges, GraphEdge{From: swIdx, To: ids.ToIndex(h)})
		}
	}

	g.Nodes = make([]TopoNode, ids.Len())
	for _, entry := range ids.Entries() {
		g.Nodes[entry.Index] = entry.Node
	}
	g.Adjacency = make([][]int, len(g.Nodes))
	for _, e := range g.Edges {
		g.Adjacency[e.From] = append(g.Adjacency[e.From], e.To)
		g.Adjacency[e.To] = append(g.Adjacency[e.To], e.From)
	}
	return g
}

// NodeCount is the number of indexed nodes, switches plus hosts
func (g *PartitionGraph) NodeCount() int {
	return len(g.Nodes)
}

// Weighted returns the graph in gonum form, one simple.Node per index.
// Parallel edges collapse into one edge whose weight is their multiplicity.
func (g *PartitionGraph) Weighted() *simple.WeightedUndirectedGraph {
	wg := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for idx := range g.Nodes {
		wg.AddNode(simple.Node(idx))
	}
	for _, e := range g.Edges {
		w := 1.0
		if prev := wg.WeightedEdgeBetween(int64(e.From), int64(e.To)); prev != nil {
			w += prev.Weight()
		}
		wg.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(e.From), T: simple.Node(e.To), W: w})
	}
	return wg
}

// GraphPartitioner is a balanced min-cut partitioner.  Partition returns one partition
// index in [0,parts) for each node of g.
type GraphPartitioner interface {
	Partition(ctx context.Context, g *PartitionGraph, parts int) ([]int, error)
}

// PartitionerFunc adapts a function, e.g. a binding to an external partitioning library,
// to the GraphPartitioner interface
type PartitionerFunc func(ctx context.Context, g *PartitionGraph, parts int) ([]int, error)

func (f PartitionerFunc) Partition(ctx context.Context, g *PartitionGraph, parts int) ([]int, error) {
	return f(ctx, g, parts)
}

// partitionGraph produces the assignment of one planning run.  A single part never
// reaches the partitioner.
func partitionGraph(ctx context.Context, p GraphPartitioner, g *PartitionGraph, parts int) ([]int, error) {
	if parts == 1 {
		return make([]int, g.NodeCount()), nil
	}
	if p == nil {
		return nil, &PartitionerFailure{Reason: "no partitioner configured"}
	}
	if err := ctx.Err(); err != nil {
		return nil, &PartitionerFailure{Reason: "cancelled before partitioning", Err: err}
	}
	assign, err := p.Partition(ctx, g, parts)
	if err != nil {
		return nil, &PartitionerFailure{Reason: "partitioner returned an error", Err: err}
	}
	if err := validateAssignment(assign, g.NodeCount(), parts); err != nil {
		return nil, err
	}
	return assign, nil
}

func validateAssignment(assign []int, nodeCount, parts int) error {
	if len(assign) != nodeCount {
		return &PartitionerFailure{Reason: fmt.Sprintf("assignment has %d entries for %d nodes", len(assign), nodeCount)}
	}
	for idx, p := range assign {
		if p < 0 || p >= parts {
			return &PartitionerFailure{Reason: fmt.Sprintf("node %d assigned to partition %d outside [0,%d)", idx, p, parts)}
		}
	}
	return nil
}

// StaticPartitioner applies a fixed node to partition map.  A host missing from the map
// follows its switch; any other missing node goes to Default.
type StaticPartitioner struct {
	Assignment map[TopoNode]int
	Default    int
}

func (sp *StaticPartitioner) Partition(_ context.Context, g *PartitionGraph, parts int) ([]int, error) {
	assign := make([]int, g.NodeCount())
	for idx, n := range g.Nodes {
		p, present := sp.Assignment[n]
		if !present {
			p = sp.Default
			if h, ok := n.(*Host); ok && h.parent != nil {
				if pp, ok := sp.Assignment[h.parent]; ok {
					p = pp
				}
			}
		}
		assign[idx] = p
	}
	return assign, nil
}

// ModularityPartitioner groups nodes into Louvain communities and packs the communities
// into parts balanced bins, splitting communities bigger than a bin.  Every bin is
// non-empty.
type ModularityPartitioner struct {
	// Resolution of the modularity score, 1 when zero
	Resolution float64
	Seed       uint64
}

func (mp *ModularityPartitioner) Partition(ctx context.Context, g *PartitionGraph, parts int) ([]int, error) {
	nodeCount := g.NodeCount()
	if parts < 1 || parts > nodeCount {
		return nil, fmt.Errorf("cannot split %d nodes into %d parts", nodeCount, parts)
	}

	communities := mp.communities(g)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capacity := (nodeCount + parts - 1) / parts
	pieces := [][]int{}
	for _, comm := range communities {
		ordered := bfsOrder(g, comm)
		for len(ordered) > capacity {
			pieces = append(pieces, ordered[:capacity])
			ordered = ordered[capacity:]
		}
		pieces = append(pieces, ordered)
	}
	sort.SliceStable(pieces, func(i, j int) bool { return len(pieces[i]) > len(pieces[j]) })

	bins := make([][]int, parts)
	for _, piece := range pieces {
		target := -1
		for b := range bins {
			if len(bins[b])+len(piece) <= capacity && (target < 0 || len(bins[b]) < len(bins[target])) {
				target = b
			}
		}
		if target < 0 {
			target = 0
			for b := range bins {
				if len(bins[b]) < len(bins[target]) {
					target = b
				}
			}
		}
		bins[target] = append(bins[target], piece...)
	}

	// fewer pieces than bins leaves some empty; feed them from the fullest
	for b := range bins {
		for len(bins[b]) == 0 {
			donor := 0
			for d := range bins {
				if len(bins[d]) > len(bins[donor]) {
					donor = d
				}
			}
			last := len(bins[donor]) - 1
			bins[b] = append(bins[b], bins[donor][last])
			bins[donor] = bins[donor][:last]
		}
	}

	assign := make([]int, nodeCount)
	for b, members := range bins {
		for _, idx := range members {
			assign[idx] = b
		}
	}
	return assign, nil
}

// communities returns the Louvain communities of g as sorted index lists, largest first
func (mp *ModularityPartitioner) communities(g *PartitionGraph) [][]int {
	comms := [][]int{}
	if len(g.Edges) == 0 {
		for idx := range g.Nodes {
			comms = append(comms, []int{idx})
		}
		return comms
	}

	resolution := mp.Resolution
	if resolution == 0 {
		resolution = 1
	}
	src := rand.NewPCG(mp.Seed, mp.Seed^0x9e3779b97f4a7c15)
	reduced := community.Modularize(g.Weighted(), resolution, src)
	for _, nodes := range reduced.Communities() {
		comm := make([]int, 0, len(nodes))
		for _, n := range nodes {
			comm = append(comm, int(n.ID()))
		}
		sort.Ints(comm)
		comms = append(comms, comm)
	}
	sort.SliceStable(comms, func(i, j int) bool {
		if len(comms[i]) != len(comms[j]) {
			return len(comms[i]) > len(comms[j])
		}
		return comms[i][0] < comms[j][0]
	})
	return comms
}

// bfsOrder lists the members of comm in breadth-first order over edges internal to comm,
// so that consecutive chunks stay connected where possible
func bfsOrder(g *PartitionGraph, comm []int) []int {
	member := make(map[int]bool, len(comm))
	for _, idx := range comm {
		member[idx] = true
	}
	visited := make(map[int]bool, len(comm))
	order := make([]int, 0, len(comm))
	for _, start := range comm {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			here := queue[0]
			queue = queue[1:]
			order = append(order, here)
			for _, nbr := range g.Adjacency[here] {
				if member[nbr] && !visited[nbr] {
					visited[nbr] = true
					queue = append(queue, nbr)
				}
			}
		}
	}
	return order
}
