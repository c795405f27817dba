package netsplit

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPartitionGraph(t *testing.T) {
	topo, a, b := twoRacks(t)
	ids := NewIdentityMap()
	g := BuildPartitionGraph(topo, ids)

	assert.Equal(t, 6, g.NodeCount())
	assert.Equal(t, 1, g.LinkEdges)
	assert.Len(t, g.Edges, 5)

	// link endpoints are seen first
	assert.Equal(t, GraphEdge{From: 0, To: 1}, g.Edges[0])
	aIdx, _ := ids.Lookup(a)
	bIdx, _ := ids.Lookup(b)
	assert.Equal(t, 0, aIdx)
	assert.Equal(t, 1, bIdx)

	for idx, n := range g.Nodes {
		got, present := ids.Lookup(n)
		require.True(t, present)
		assert.Equal(t, idx, got)
	}
	assert.Len(t, g.Adjacency[aIdx], 3)
}

func TestBuildPartitionGraphIsolatedSwitch(t *testing.T) {
	lonely := CreateSwitch("lonely")
	topo := &listTopology{switches: []*Switch{lonely}}
	ids := NewIdentityMap()
	g := BuildPartitionGraph(topo, ids)

	assert.Equal(t, 1, g.NodeCount())
	assert.Empty(t, g.Edges)
	_, present := ids.Lookup(lonely)
	assert.True(t, present)
}

func TestWeightedParallelLinks(t *testing.T) {
	a := CreateSwitch("a")
	b := CreateSwitch("b")
	topo := &listTopology{
		switches: []*Switch{a, b},
		links:    []*Link{CreateLink("l1", a, b), CreateLink("l2", b, a)},
	}
	g := BuildPartitionGraph(topo, NewIdentityMap())
	wg := g.Weighted()

	e := wg.WeightedEdgeBetween(0, 1)
	require.NotNil(t, e)
	assert.Equal(t, 2.0, e.Weight())
}

func TestPartitionGraphSinglePartBypassesPartitioner(t *testing.T) {
	topo := chain(t, 3, 1)
	g := BuildPartitionGraph(topo, NewIdentityMap())

	called := false
	p := PartitionerFunc(func(context.Context, *PartitionGraph, int) ([]int, error) {
		called = true
		return nil, errors.New("should not be called")
	})
	assign, err := partitionGraph(context.Background(), p, g, 1)
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, make([]int, g.NodeCount()), assign)
}

func TestPartitionGraphRejectsMalformedAssignment(t *testing.T) {
	topo := chain(t, 3, 0)
	g := BuildPartitionGraph(topo, NewIdentityMap())

	tests := []struct {
		name   string
		result []int
		err    error
	}{
		{"too short", []int{0, 1}, nil},
		{"too long", []int{0, 1, 1, 0}, nil},
		{"out of range", []int{0, 1, 2}, nil},
		{"negative", []int{0, -1, 1}, nil},
		{"partitioner error", nil, errors.New("library crashed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PartitionerFunc(func(context.Context, *PartitionGraph, int) ([]int, error) {
				return tt.result, tt.err
			})
			_, err := partitionGraph(context.Background(), p, g, 2)
			require.Error(t, err)
			var pf *PartitionerFailure
			assert.True(t, errors.As(err, &pf))
			assert.True(t, errors.Is(err, ErrPartitionerFailure))
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
			}
		})
	}
}

func TestPartitionGraphCancelled(t *testing.T) {
	g := BuildPartitionGraph(chain(t, 2, 0), NewIdentityMap())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := partitionGraph(ctx, &ModularityPartitioner{}, g, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, ErrPartitionerFailure))
}

func TestStaticPartitionerHostsFollowSwitch(t *testing.T) {
	topo, a, b := twoRacks(t)
	g := BuildPartitionGraph(topo, NewIdentityMap())
	sp := &StaticPartitioner{Assignment: map[TopoNode]int{a: 1, b: 0}}

	assign, err := sp.Partition(context.Background(), g, 2)
	require.NoError(t, err)
	for idx, n := range g.Nodes {
		switch v := n.(type) {
		case *Switch:
			assert.Equal(t, sp.Assignment[v], assign[idx])
		case *Host:
			assert.Equal(t, sp.Assignment[v.Parent()], assign[idx], v.ID)
		}
	}
}

func TestModularityPartitionerEdgeless(t *testing.T) {
	topo := &listTopology{}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		topo.switches = append(topo.switches, CreateSwitch(name))
	}
	g := BuildPartitionGraph(topo, NewIdentityMap())

	assign, err := (&ModularityPartitioner{}).Partition(context.Background(), g, 2)
	require.NoError(t, err)
	counts := map[int]int{}
	for _, p := range assign {
		counts[p]++
	}
	assert.Equal(t, map[int]int{0: 3, 1: 2}, counts)
}

func TestModularityPartitionerRejectsBadCounts(t *testing.T) {
	g := BuildPartitionGraph(chain(t, 2, 0), NewIdentityMap())
	for _, parts := range []int{0, 3} {
		_, err := (&ModularityPartitioner{}).Partition(context.Background(), g, parts)
		assert.Error(t, err, "parts=%d", parts)
	}
}

// TestModularityPartitionerFillsBins checks that every bin of a modularity
// partitioning is used and every node lands in range
func TestModularityPartitionerFillsBins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("every partition non-empty", prop.ForAll(
		func(switches, hostsPer, parts int, seed uint64) bool {
			topo := chain(t, switches, hostsPer)
			g := BuildPartitionGraph(topo, NewIdentityMap())
			if parts > g.NodeCount() {
				parts = g.NodeCount()
			}
			mp := &ModularityPartitioner{Seed: seed}
			assign, err := mp.Partition(context.Background(), g, parts)
			if err != nil || len(assign) != g.NodeCount() {
				return false
			}
			used := make([]bool, parts)
			for _, p := range assign {
				if p < 0 || p >= parts {
					return false
				}
				used[p] = true
			}
			for _, u := range used {
				if !u {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 12),
		gen.IntRange(0, 4),
		gen.IntRange(1, 6),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
