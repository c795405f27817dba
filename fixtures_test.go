package netsplit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// listTopology is a Topology over explicit switch and link lists
type listTopology struct {
	switches []*Switch
	links    []*Link
}

func (lt *listTopology) Switches() []*Switch { return lt.switches }
func (lt *listTopology) Links() []*Link      { return lt.links }

func (lt *listTopology) AddToNetwork(net *SubNetwork) error {
	return addAll(net, lt.switches, lt.links)
}

// twoRacks is switch A with hosts A1,A2 and switch B with hosts B1,B2, joined by one link
func twoRacks(t *testing.T) (*listTopology, *Switch, *Switch) {
	t.Helper()
	a := CreateSwitch("A")
	b := CreateSwitch("B")
	for _, name := range []string{"A1", "A2"} {
		require.NoError(t, a.AddComponent(CreateHost(name)))
	}
	for _, name := range []string{"B1", "B2"} {
		require.NoError(t, b.AddComponent(CreateHost(name)))
	}
	l := CreateLink("AB", a, b)
	l.Delay = "2us"
	return &listTopology{switches: []*Switch{a, b}, links: []*Link{l}}, a, b
}

// chain is n switches s0..s(n-1) joined in a line, each with hostsPer hosts
func chain(t *testing.T, n, hostsPer int) *listTopology {
	t.Helper()
	topo := &listTopology{}
	for i := 0; i < n; i++ {
		sw := CreateSwitch(fmt.Sprintf("s%d", i))
		for j := 0; j < hostsPer; j++ {
			require.NoError(t, sw.AddComponent(CreateHost(fmt.Sprintf("s%d_h%d", i, j))))
		}
		topo.switches = append(topo.switches, sw)
		if i > 0 {
			l := CreateLink(fmt.Sprintf("l%d", i), topo.switches[i-1], sw)
			l.Delay = "1us"
			topo.links = append(topo.links, l)
		}
	}
	return topo
}

// byName is a partitioner assigning nodes by component id, 0 when unlisted
func byName(parts map[string]int) GraphPartitioner {
	return PartitionerFunc(func(_ context.Context, g *PartitionGraph, _ int) ([]int, error) {
		assign := make([]int, g.NodeCount())
		for idx, n := range g.Nodes {
			assign[idx] = parts[n.CompID()]
		}
		return assign, nil
	})
}
