package netsplit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFatTreePartitions(t *testing.T) {
	ft := smallFatTree(t, 2)
	_, err := AddContigBackground(ft, DefaultBackgroundParams())
	require.NoError(t, err)

	schemes := FatTreePartitions(ft)
	assert.Equal(t, []string{"racks", "single", "spine-blocks"}, SchemeNames(schemes))

	tests := []struct {
		scheme  string
		parts   int
		bridges int
	}{
		// every agg-spine link is cut
		{"spine-blocks", 3, 4},
		// every tor-agg link is cut
		{"racks", 5, 4},
		{"single", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.scheme, func(t *testing.T) {
			sa := schemes[tt.scheme]
			assert.Equal(t, tt.parts, sa.Parts)

			plan, err := NewPlanner(nil).Instantiate(context.Background(), ft, sa)
			require.NoError(t, err)
			assert.Len(t, plan.Networks, tt.parts)
			assert.Equal(t, tt.bridges, plan.Stats.Bridges)
			assert.Equal(t, len(ft.Links()), plan.Stats.PlainLinks+plan.Stats.Bridges)

			hosts := 0
			for _, net := range plan.Networks {
				hosts += len(net.Hosts())
			}
			assert.Equal(t, len(ft.Hosts()), hosts)
		})
	}
}

func TestFatTreeRacksKeepHostsWithToR(t *testing.T) {
	ft := smallFatTree(t, 2)
	_, err := AddContigBackground(ft, DefaultBackgroundParams())
	require.NoError(t, err)

	plan, err := NewPlanner(nil).Instantiate(context.Background(), ft, FatTreePartitions(ft)["racks"])
	require.NoError(t, err)
	for _, ab := range ft.AggBlocks {
		for _, r := range ab.Racks {
			torPart, _ := plan.PartitionOf(r.ToR)
			assert.NotZero(t, torPart)
			for _, h := range r.Hosts {
				p, _ := plan.PartitionOf(h)
				assert.Equal(t, torPart, p)
			}
		}
	}
}

func TestHomaPartitions(t *testing.T) {
	tests := []struct {
		name    string
		racks   int
		schemes []string
	}{
		{"one rack", 1, []string{"single", "tors"}},
		{"three racks", 3, []string{"halves", "single", "tors"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ht := smallHoma(t, tt.racks, 2)
			schemes := HomaPartitions(ht)
			assert.Equal(t, tt.schemes, SchemeNames(schemes))
			assert.Equal(t, tt.racks+1, schemes["tors"].Parts)
		})
	}

	ht := smallHoma(t, 3, 2)
	halves := HomaPartitions(ht)["halves"]
	assert.Equal(t, 2, halves.Parts)
	plan, err := NewPlanner(nil).Instantiate(context.Background(), ht, halves)
	require.NoError(t, err)

	// two agg switches reach the one tor in the upper half
	assert.Equal(t, 2, plan.Stats.Bridges)
	assert.Len(t, plan.Networks[1].Hosts(), 2)
}
