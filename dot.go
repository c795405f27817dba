package netsplit

// file dot.go renders a partitioned topology in Graphviz DOT form for inspection.
// The output format is informational and may change.

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// a handful of distinguishable fill colors, reused cyclically
var partColors = []string{"lightblue", "palegreen", "lightsalmon", "khaki", "plum", "lightgrey", "aquamarine", "pink"}

type dotNode struct {
	id   int64
	name string
	kind string
	part int
}

func (n dotNode) ID() int64     { return n.id }
func (n dotNode) DOTID() string { return fmt.Sprintf("n%d", n.id) }

func (n dotNode) Attributes() []encoding.Attribute {
	shape := "ellipse"
	if n.kind == "Switch" {
		shape = "box"
	}
	return []encoding.Attribute{
		{Key: "label", Value: fmt.Sprintf("%q", fmt.Sprintf("%s [%d]", n.name, n.part))},
		{Key: "shape", Value: shape},
		{Key: "style", Value: "filled"},
		{Key: "fillcolor", Value: partColors[n.part%len(partColors)]},
	}
}

type dotEdge struct {
	f, t  dotNode
	cross bool
}

func (e dotEdge) From() graph.Node         { return e.f }
func (e dotEdge) To() graph.Node           { return e.t }
func (e dotEdge) ReversedEdge() graph.Edge { return dotEdge{f: e.t, t: e.f, cross: e.cross} }

func (e dotEdge) Attributes() []encoding.Attribute {
	if !e.cross {
		return nil
	}
	return []encoding.Attribute{{Key: "style", Value: "dashed"}, {Key: "color", Value: "red"}}
}

type dotAttrs []encoding.Attribute

func (a dotAttrs) Attributes() []encoding.Attribute { return a }

// dotCluster holds the nodes of one sub-network; edges are drawn at the top level
type dotCluster struct {
	*simple.UndirectedGraph
	part int
}

func (c dotCluster) DOTID() string { return fmt.Sprintf("cluster_%d", c.part) }

func (c dotCluster) DOTAttributers() (graph, node, edge encoding.Attributer) {
	label := dotAttrs{{Key: "label", Value: fmt.Sprintf("%q", networkName(c.part))}}
	return label, dotAttrs(nil), dotAttrs(nil)
}

// dotPartition is the whole graph with one cluster subgraph per sub-network
type dotPartition struct {
	*simple.UndirectedGraph
	clusters []dot.Graph
}

func (p dotPartition) Structure() []dot.Graph { return p.clusters }

// DotTopology renders the partition graph of a plan.  Nodes are labeled with their
// name and partition, and grouped into one cluster per sub-network; edges crossing
// partitions are dashed.
func DotTopology(plan *Plan) ([]byte, error) {
	g := simple.NewUndirectedGraph()
	clusters := make([]dotCluster, len(plan.Networks))
	for p := range clusters {
		clusters[p] = dotCluster{UndirectedGraph: simple.NewUndirectedGraph(), part: p}
	}
	nodes := make([]dotNode, len(plan.Graph.Nodes))
	for idx, n := range plan.Graph.Nodes {
		nodes[idx] = dotNode{id: int64(idx), name: n.CompID(), kind: n.DevType(), part: plan.Placement[idx]}
		g.AddNode(nodes[idx])
		if p := nodes[idx].part; p >= 0 && p < len(clusters) {
			clusters[p].AddNode(nodes[idx])
		}
	}
	for _, e := range plan.Graph.Edges {
		if e.From == e.To {
			continue
		}
		f, t := nodes[e.From], nodes[e.To]
		g.SetEdge(dotEdge{f: f, t: t, cross: f.part != t.part})
	}
	dp := dotPartition{UndirectedGraph: g}
	for _, c := range clusters {
		if c.Nodes().Len() > 0 {
			dp.clusters = append(dp.clusters, c)
		}
	}
	return dot.Marshal(dp, "partition", "", "\t")
}

// WriteDot writes DotTopology output to the named file
func WriteDot(plan *Plan, filename string) error {
	bytes, err := DotTopology(plan)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytes, 0o644)
}
