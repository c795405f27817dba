package netsplit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallFatTree(t *testing.T, hostsPerRack int) *FatTree {
	t.Helper()
	params := DefaultFatTreeParams()
	params.SpineSwitches = 2
	params.AggBlocks = 2
	params.AggSwitches = 1
	params.AggRacks = 2
	params.HostsPerRack = hostsPerRack
	ft, err := CreateFatTree("t", params)
	require.NoError(t, err)
	return ft
}

func TestCreateFatTreeShape(t *testing.T) {
	ft := smallFatTree(t, 3)

	// 2 spine + 2 agg + 4 tor
	assert.Len(t, ft.Switches(), 8)
	assert.Len(t, ft.SpineAggLinks, 4)
	assert.Len(t, ft.AggTorLinks, 4)
	assert.Len(t, ft.Links(), 8)
	assert.Equal(t, 12, ft.Capacity())
	assert.NoError(t, ValidateTopology(ft))
}

func TestCreateFatTreeRejectsBadParams(t *testing.T) {
	params := DefaultFatTreeParams()
	params.AggBlocks = 0
	params.SpineLinkDelay = "soon"
	_, err := CreateFatTree("", params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AggBlocks")
	assert.Contains(t, err.Error(), "SpineLinkDelay")
}

func TestFatTreeAddHostCapacity(t *testing.T) {
	ft := smallFatTree(t, 1)
	require.NoError(t, ft.AddHost(0, 0, CreateHost("h0")))

	err := ft.AddHost(0, 0, CreateHost("h1"))
	var ce *CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Limit)

	assert.Error(t, ft.AddHost(7, 0, CreateHost("h2")))
	assert.Len(t, ft.RacksWithCapacity(), 3)
}

func TestFatTreeAddHostRandomFills(t *testing.T) {
	ft := smallFatTree(t, 2)
	for i := 0; i < 8; i++ {
		_, _, err := ft.AddHostRandom(CreateHost("h"))
		require.NoError(t, err)
	}
	assert.Zero(t, ft.Capacity())
	assert.Empty(t, ft.RacksWithCapacity())

	_, _, err := ft.AddHostRandom(CreateHost("extra"))
	assert.True(t, errors.Is(err, ErrCapacity))
}

func TestFatTreeSimbricksHosts(t *testing.T) {
	ft := smallFatTree(t, 2)
	h, err := ft.AddSimbricksHost(1, 1, "i40e")
	require.NoError(t, err)
	assert.Equal(t, SimbricksHost, h.Kind)
	assert.Equal(t, "i40e", h.NIC)
	assert.Equal(t, ft.Params.SimbricksSyncDelay, h.SyncDelay)
	assert.Same(t, ft.AggBlocks[1].Racks[1].ToR, h.Parent())

	h2, _, _, err := ft.AddSimbricksHostRandom("cd_bm")
	require.NoError(t, err)
	assert.NotEqual(t, h.ID, h2.ID)
}

func TestAddContigBackground(t *testing.T) {
	ft := smallFatTree(t, 3)
	pairs, err := AddContigBackground(ft, DefaultBackgroundParams())
	require.NoError(t, err)
	assert.Equal(t, 6, pairs)
	assert.Zero(t, ft.Capacity())

	senders := 0
	for _, h := range ft.Hosts() {
		for _, app := range h.Apps() {
			if app.Type == "BulkSend" {
				senders++
				assert.Len(t, app.Remotes, 1)
			}
		}
	}
	assert.Equal(t, 6, senders)
}

func TestAddContigBackgroundSubnetTooSmall(t *testing.T) {
	ft := smallFatTree(t, 3)
	params := DefaultBackgroundParams()
	params.Subnet = "10.0.0.0/30"
	_, err := AddContigBackground(ft, params)
	assert.True(t, errors.Is(err, ErrCapacity))
}

func TestAddHomaBackground(t *testing.T) {
	ft := smallFatTree(t, 2)
	params := DefaultHomaBackgroundParams()
	params.Remotes = 3
	params.AppProto = "tcp"
	n, err := AddHomaBackground(ft, params)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	for _, h := range ft.Hosts() {
		apps := h.Apps()
		require.Len(t, apps, 1)
		assert.Equal(t, "MsgGenTCP", apps[0].Type)
		assert.Len(t, apps[0].Remotes, 3)
	}
}

func smallHoma(t *testing.T, racks, hostsPerRack int) *HomaTopology {
	t.Helper()
	params := DefaultHomaParams()
	params.AggSwitches = 2
	params.AggRacks = racks
	params.HostsPerRack = hostsPerRack
	params.Remotes = 2
	ht, err := CreateHomaTopology("", params)
	require.NoError(t, err)
	require.NoError(t, ht.AddHomaHosts("10.1.0.0/24"))
	return ht
}

func TestHomaTopology(t *testing.T) {
	ht := smallHoma(t, 3, 2)
	assert.Len(t, ht.Switches(), 5)
	assert.Len(t, ht.Links(), 6)
	require.Len(t, ht.Hosts(), 6)
	assert.Equal(t, "10.1.0.1/24", ht.Hosts()[0].IP)
	assert.Same(t, ht.TorSwitches[2], ht.Hosts()[5].Parent())
}

func TestAddHomaApps(t *testing.T) {
	ht := smallHoma(t, 2, 2)
	require.NoError(t, ht.AddHomaApps("MsgGen", nil, -1))

	for _, h := range ht.Hosts() {
		var gen *Application
		pings := 0
		for _, app := range h.Apps() {
			switch app.Type {
			case "MsgGen":
				gen = app
			case "Generic":
				pings++
			}
		}
		require.NotNil(t, gen, h.ID)
		assert.Len(t, gen.Remotes, 2)
		assert.NotContains(t, gen.Remotes, gen.Mapping["Ip"]+":"+gen.Mapping["Port"])
		assert.Equal(t, 2, pings)
		assert.Equal(t, "1460", gen.Mapping["PayloadSize"])
	}
}

func TestAddHomaAppsRemotePool(t *testing.T) {
	ht := smallHoma(t, 2, 2)

	err := ht.AddHomaApps("MsgGen", []int{0, 1}, 2)
	var ce *CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "remote pool", ce.Where)
	assert.Equal(t, 1, ce.Limit)

	assert.Error(t, ht.AddHomaApps("MsgGen", []int{0, 9}, 1))
	assert.NoError(t, ht.AddHomaApps("MsgGen", []int{0, 3}, 1))
}

func TestHomaHostsSubnetTooSmall(t *testing.T) {
	params := DefaultHomaParams()
	ht, err := CreateHomaTopology("", params)
	require.NoError(t, err)
	assert.True(t, errors.Is(ht.AddHomaHosts("10.1.0.0/28"), ErrCapacity))
}

func TestScaleSyncDelays(t *testing.T) {
	db, err := CreateDumbbell(DefaultDumbbellParams())
	require.NoError(t, err)
	assert.Equal(t, "1us", db.Link.EffectiveSyncDelay())

	require.NoError(t, ScaleSyncDelays(db, 0.5))
	assert.Equal(t, "500ns", db.Link.SyncDelay)
	assert.Equal(t, "1us", db.Link.Delay)

	assert.Error(t, ScaleSyncDelays(db, 0))

	db.Link.Delay = "later"
	assert.Error(t, ScaleSyncDelays(db, 2))
	assert.Equal(t, "500ns", db.Link.SyncDelay)
}

func TestValidateTopology(t *testing.T) {
	a := CreateSwitch("a")
	stray := CreateSwitch("x")
	orphan := CreateHost("orphan")
	require.NoError(t, stray.AddComponent(orphan))
	tests := []struct {
		name string
		topo Topology
	}{
		{"nil topology", nil},
		{"unlisted switch", &listTopology{switches: []*Switch{a}, links: []*Link{CreateLink("ax", a, stray)}}},
		{"host of unlisted switch", &listTopology{switches: []*Switch{a}, links: []*Link{CreateLink("ah", a, orphan)}}},
		{"switch listed twice", &listTopology{switches: []*Switch{a, a}}},
		{"missing endpoint", &listTopology{switches: []*Switch{a}, links: []*Link{CreateLink("l", a, nil)}}},
		{"self loop", &listTopology{switches: []*Switch{a}, links: []*Link{CreateLink("l", a, a)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(ValidateTopology(tt.topo), ErrInvalidTopology))
		})
	}
}

func TestSwitchSingleParent(t *testing.T) {
	a := CreateSwitch("a")
	b := CreateSwitch("b")
	h := CreateHost("h")
	require.NoError(t, a.AddComponent(h))
	assert.Error(t, b.AddComponent(h))
	assert.Error(t, a.AddComponent(h))
	assert.Same(t, a, h.Parent())
}
