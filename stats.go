package netsplit

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// PartitionStats describe the quality of one partitioning
type PartitionStats struct {
	Parts          int     `json:"parts" yaml:"parts"`
	Nodes          int     `json:"nodes" yaml:"nodes"`
	Edges          int     `json:"edges" yaml:"edges"`
	PartitionSizes []int   `json:"partitionsizes" yaml:"partitionsizes"` // nodes per partition
	EdgeCuts       []int   `json:"edgecuts" yaml:"edgecuts"`             // cut edges touching each partition
	Fragments      []int   `json:"fragments" yaml:"fragments"`           // connected pieces inside each partition
	TotalCut       int     `json:"totalcut" yaml:"totalcut"`
	CutRatio       float64 `json:"cutratio" yaml:"cutratio"`       // fraction of edges that are cut
	LoadBalance    float64 `json:"loadbalance" yaml:"loadbalance"` // 0-1 (1 = perfect balance)
	PlainLinks     int     `json:"plainlinks" yaml:"plainlinks"`
	Bridges        int     `json:"bridges" yaml:"bridges"` // bridge pairs
}

// ComputePartitionStats measures a placement (partition per graph node) and the
// sub-networks assembled from it
func ComputePartitionStats(g *PartitionGraph, placement []int, nets []*SubNetwork) PartitionStats {
	parts := len(nets)
	st := PartitionStats{
		Parts:          parts,
		Nodes:          g.NodeCount(),
		Edges:          len(g.Edges),
		PartitionSizes: make([]int, parts),
		EdgeCuts:       make([]int, parts),
		Fragments:      make([]int, parts),
	}

	for _, p := range placement {
		st.PartitionSizes[p]++
	}

	inner := make([]*simple.UndirectedGraph, parts)
	for p := range inner {
		inner[p] = simple.NewUndirectedGraph()
	}
	for idx, p := range placement {
		inner[p].AddNode(simple.Node(idx))
	}
	for _, e := range g.Edges {
		pf, pt := placement[e.From], placement[e.To]
		if pf != pt {
			st.EdgeCuts[pf]++
			st.EdgeCuts[pt]++
			st.TotalCut++
			continue
		}
		if e.From != e.To {
			inner[pf].SetEdge(simple.Edge{F: simple.Node(e.From), T: simple.Node(e.To)})
		}
	}
	for p := range inner {
		st.Fragments[p] = len(topo.ConnectedComponents(inner[p]))
	}

	if st.Edges > 0 {
		st.CutRatio = float64(st.TotalCut) / float64(st.Edges)
	}

	st.LoadBalance = 1.0
	if parts > 0 && st.Nodes > 0 {
		avgSize := float64(st.Nodes) / float64(parts)
		variance := 0.0
		for _, size := range st.PartitionSizes {
			diff := float64(size) - avgSize
			variance += diff * diff
		}
		variance /= float64(parts)
		st.LoadBalance = 1.0 / (1.0 + variance/avgSize)
	}

	for _, net := range nets {
		st.PlainLinks += len(net.Links())
		st.Bridges += len(net.Initiators())
	}
	return st
}
