package netsplit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleTwoRacks(t *testing.T) {
	topo, a, b := twoRacks(t)
	planner := NewPlanner(byName(map[string]int{"A": 0, "B": 1}))

	plan, err := planner.Plan(context.Background(), topo, 2)
	require.NoError(t, err)
	require.Len(t, plan.Networks, 2)

	net0, net1 := plan.Networks[0], plan.Networks[1]
	assert.Equal(t, "netpart_0", net0.Name)
	assert.Equal(t, []*Switch{a}, net0.Switches())
	assert.Equal(t, []*Switch{b}, net1.Switches())
	assert.Equal(t, []string{"A1", "A2"}, compNames(net0.Hosts()))
	assert.Equal(t, []string{"B1", "B2"}, compNames(net1.Hosts()))
	assert.Empty(t, net0.Links())
	assert.Empty(t, net1.Links())

	require.Len(t, net0.Bridges(), 1)
	require.Len(t, net1.Bridges(), 1)
	initiator, responder := net0.Bridges()[0], net1.Bridges()[0]

	assert.Equal(t, Initiator, initiator.Role)
	assert.Equal(t, "NicIf", initiator.CompType())
	assert.Equal(t, 1, initiator.Peer)
	assert.Same(t, a, initiator.Owner)
	assert.Equal(t, Responder, responder.Role)
	assert.Equal(t, "NetIf", responder.CompType())
	assert.Equal(t, 0, responder.Peer)
	assert.Same(t, b, responder.Owner)

	assert.Equal(t, initiator.BridgeID, responder.BridgeID)
	assert.Equal(t, "cross_0_1", initiator.BridgeID)
	assert.Equal(t, "2us", initiator.Delay)
	assert.Equal(t, "2us", responder.Delay)
	assert.Equal(t, "2us", responder.SyncDelay)

	// endpoints hang off their switches
	assert.Contains(t, a.Components(), Component(initiator))
	assert.Contains(t, b.Components(), Component(responder))
	assert.Equal(t, []int{1}, net0.Peers())
	assert.Equal(t, []int{0}, net1.Peers())
}

func TestAssembleInitiatorOnLowerPartition(t *testing.T) {
	topo, a, b := twoRacks(t)
	plan, err := NewPlanner(byName(map[string]int{"A": 1, "B": 0})).Plan(context.Background(), topo, 2)
	require.NoError(t, err)

	init0 := plan.Networks[0].Initiators()
	require.Len(t, init0, 1)
	assert.Same(t, b, init0[0].Owner)
	resp1 := plan.Networks[1].Responders()
	require.Len(t, resp1, 1)
	assert.Same(t, a, resp1[0].Owner)
}

func TestAssembleParallelLinksGetDistinctBridges(t *testing.T) {
	a := CreateSwitch("a")
	b := CreateSwitch("b")
	l1 := CreateLink("l1", a, b)
	l1.Delay = "1us"
	l2 := CreateLink("l2", a, b)
	l2.Delay = "3us"
	l2.SyncDelay = "500ns"
	topo := &listTopology{switches: []*Switch{a, b}, links: []*Link{l1, l2}}

	plan, err := NewPlanner(byName(map[string]int{"a": 0, "b": 1})).Plan(context.Background(), topo, 2)
	require.NoError(t, err)

	bridges := plan.Networks[0].Bridges()
	require.Len(t, bridges, 2)
	assert.Equal(t, "cross_0_1", bridges[0].BridgeID)
	assert.Equal(t, "cross_0_1.1", bridges[1].BridgeID)
	assert.Equal(t, "1us", bridges[0].SyncDelay)
	assert.Equal(t, "500ns", bridges[1].SyncDelay)
	assert.Equal(t, "3us", bridges[1].Delay)
}

func TestAssembleReplanDetachesStaleBridges(t *testing.T) {
	topo, a, b := twoRacks(t)
	planner := NewPlanner(byName(map[string]int{"A": 0, "B": 1}))

	_, err := planner.Plan(context.Background(), topo, 2)
	require.NoError(t, err)
	require.Len(t, a.Components(), 3)

	plan, err := planner.Plan(context.Background(), topo, 1)
	require.NoError(t, err)
	assert.Len(t, a.Components(), 2)
	assert.Len(t, b.Components(), 2)
	assert.Empty(t, plan.Networks[0].Bridges())
	assert.Equal(t, []*Link{topo.links[0]}, plan.Networks[0].Links())
}

func TestAssembleFreeHosts(t *testing.T) {
	sw := CreateSwitch("sw")
	free := CreateHost("free")
	l := CreateLink("l", sw, free)
	l.Delay = "1us"
	topo := &listTopology{switches: []*Switch{sw}, links: []*Link{l}}

	plan, err := NewPlanner(byName(map[string]int{"sw": 0, "free": 1})).Plan(context.Background(), topo, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"free"}, compNames(plan.Networks[1].Hosts()))
	assert.Empty(t, plan.Networks[1].Switches())
	require.Len(t, plan.Networks[1].Responders(), 1)
	assert.Same(t, free, plan.Networks[1].Responders()[0].Owner)

	p, ok := plan.PartitionOf(free)
	assert.True(t, ok)
	assert.Equal(t, 1, p)
}

func TestAssembleFailureLeavesTopologyUntouched(t *testing.T) {
	topo, a, b := twoRacks(t)
	ids := NewIdentityMap()
	g := BuildPartitionGraph(topo, ids)

	// an assignment that names a partition beyond parts, as if validation were skipped
	assign := make([]int, g.NodeCount())
	bIdx, _ := ids.Lookup(b)
	assign[bIdx] = 5

	_, _, err := assemble(topo, g, ids, assign, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInternalConsistency))
	assert.Len(t, a.Components(), 2)
	assert.Len(t, b.Components(), 2)
}

func TestSubNetworkAddComponent(t *testing.T) {
	net := CreateSubNetwork(3)
	assert.Equal(t, "netpart_3", net.Name)

	sw := CreateSwitch("sw")
	require.NoError(t, sw.AddComponent(CreateHost("h")))
	require.NoError(t, net.AddComponent(sw))
	assert.Error(t, net.AddComponent(sw))
	assert.Error(t, net.AddComponent(nil))
	assert.Equal(t, []string{"h"}, compNames(net.Hosts()))
}
