package netsplit

// routes.go finds hop-count shortest routes through a partitioned topology and counts
// how many bridges each route crosses.  Traffic crossing many bridges pays the
// synchronization delay of each, so this is a quick way to judge a partitioning for a
// given set of applications.

import (
	"fmt"
	"net/netip"
	"strings"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// RouteFinder computes routes over the partition graph of a plan.  Shortest-path trees
// are cached per source.
type RouteFinder struct {
	plan     *Plan
	connG    *simple.UndirectedGraph
	cachedSP map[int64]path.Shortest
}

// AppRoute describes the route taken from an application's host to one of its remotes
type AppRoute struct {
	App        string `json:"app" yaml:"app"`
	Host       string `json:"host" yaml:"host"`
	Remote     string `json:"remote" yaml:"remote"`
	RemoteHost string `json:"remotehost" yaml:"remotehost"`
	Hops       int    `json:"hops" yaml:"hops"`
	Crossings  int    `json:"crossings" yaml:"crossings"`
}

// NewRouteFinder is a constructor
func NewRouteFinder(plan *Plan) *RouteFinder {
	rf := &RouteFinder{plan: plan, connG: simple.NewUndirectedGraph(), cachedSP: make(map[int64]path.Shortest)}
	for idx := range plan.Graph.Nodes {
		rf.connG.AddNode(simple.Node(idx))
	}
	for _, e := range plan.Graph.Edges {
		if e.From != e.To {
			rf.connG.SetEdge(simple.Edge{F: simple.Node(e.From), T: simple.Node(e.To)})
		}
	}
	return rf
}

// getSPTree returns the shortest path tree rooted at from, computing and caching it
// when needed
func (rf *RouteFinder) getSPTree(from int64) path.Shortest {
	spTree, present := rf.cachedSP[from]
	if present {
		return spTree
	}
	spTree = path.DijkstraFrom(simple.Node(from), rf.connG)
	rf.cachedSP[from] = spTree
	return spTree
}

// Route returns the nodes on a shortest route from src to dst, inclusive, and the number
// of partition boundaries it crosses
func (rf *RouteFinder) Route(src, dst TopoNode) ([]TopoNode, int, error) {
	srcID, sok := rf.plan.IDs.Lookup(src)
	dstID, dok := rf.plan.IDs.Lookup(dst)
	if !sok || !dok {
		return nil, 0, fmt.Errorf("route endpoints %s, %s are not both in the plan", src.CompID(), dst.CompID())
	}

	// a tree already computed from dst gives the reversed route by symmetry
	var ids []int64
	if spTree, present := rf.cachedSP[int64(dstID)]; present {
		nodes, _ := spTree.To(int64(srcID))
		for idx := len(nodes) - 1; idx >= 0; idx-- {
			ids = append(ids, nodes[idx].ID())
		}
	} else {
		nodes, _ := rf.getSPTree(int64(srcID)).To(int64(dstID))
		for _, n := range nodes {
			ids = append(ids, n.ID())
		}
	}
	if len(ids) == 0 {
		return nil, 0, fmt.Errorf("no route from %s to %s", src.CompID(), dst.CompID())
	}

	route := make([]TopoNode, len(ids))
	crossings := 0
	for idx, id := range ids {
		route[idx] = rf.plan.Graph.Nodes[id]
		if idx > 0 && rf.plan.Placement[id] != rf.plan.Placement[ids[idx-1]] {
			crossings++
		}
	}
	return route, crossings, nil
}

// ShowRoute joins the names of the nodes on a route
func ShowRoute(route []TopoNode) string {
	return strings.Join(compNames(route), ",")
}

// AppRoutes finds, for every application with remotes, the route to each remote whose
// address belongs to a host of the plan
func (rf *RouteFinder) AppRoutes() []AppRoute {
	byAddr := make(map[netip.Addr]*Host)
	hosts := []*Host{}
	for _, n := range rf.plan.Graph.Nodes {
		h, ok := n.(*Host)
		if !ok {
			continue
		}
		hosts = append(hosts, h)
		if prefix, err := netip.ParsePrefix(h.IP); err == nil {
			byAddr[prefix.Addr()] = h
		}
	}

	routes := []AppRoute{}
	for _, h := range hosts {
		for _, app := range h.Apps() {
			for _, remote := range app.Remotes {
				ap, err := netip.ParseAddrPort(remote)
				if err != nil {
					continue
				}
				rh, present := byAddr[ap.Addr()]
				if !present {
					continue
				}
				route, crossings, err := rf.Route(h, rh)
				if err != nil {
					continue
				}
				routes = append(routes, AppRoute{
					App: app.ID, Host: h.ID, Remote: remote, RemoteHost: rh.ID,
					Hops: len(route) - 1, Crossings: crossings,
				})
			}
		}
	}
	return routes
}
