package netsplit

// file assemble.go builds the sub-networks of a partition assignment and replaces every
// link that crosses a partition boundary with an Initiator/Responder bridge pair

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"
)

// BridgeRole says which side of a bridge listens and which connects
type BridgeRole int

const (
	// Initiator is the side in the lower-indexed partition; it listens
	Initiator BridgeRole = iota
	// Responder is the side in the higher-indexed partition; it connects to its Initiator
	Responder
)

func (r BridgeRole) String() string {
	if r == Initiator {
		return "Initiator"
	}
	return "Responder"
}

// BridgeEndpoint is one side of a cross-partition link, attached to the link's endpoint
// node in its own partition
type BridgeEndpoint struct {
	BridgeID  string
	Role      BridgeRole
	Local     int
	Peer      int
	Delay     string
	SyncDelay string
	Link      *Link
	Owner     TopoNode
}

func (be *BridgeEndpoint) CompID() string          { return be.BridgeID }
func (be *BridgeEndpoint) CompCategory() string    { return CategoryNetwork }
func (be *BridgeEndpoint) Components() []Component { return nil }

// CompType is the simulator adapter type: the listening side is a NIC interface,
// the connecting side a network interface
func (be *BridgeEndpoint) CompType() string {
	if be.Role == Initiator {
		return "NicIf"
	}
	return "NetIf"
}

func (be *BridgeEndpoint) AddComponent(c Component) error {
	return fmt.Errorf("bridge endpoint %s cannot hold component %s", be.BridgeID, c.CompID())
}

// PeerName is the name of the sub-network holding the other side
func (be *BridgeEndpoint) PeerName() string { return networkName(be.Peer) }

func networkName(p int) string { return fmt.Sprintf("netpart_%d", p) }

// SubNetwork is one independently runnable part of a partitioned topology
type SubNetwork struct {
	Index int
	Name  string

	switches   []*Switch
	links      []*Link
	bridges    []*BridgeEndpoint
	freeHosts  []*Host
	components []Component
}

// CreateSubNetwork is a constructor
func CreateSubNetwork(idx int) *SubNetwork {
	return &SubNetwork{Index: idx, Name: networkName(idx)}
}

// AddComponent places c in the sub-network.  Switches bring their hosts along.
func (net *SubNetwork) AddComponent(c Component) error {
	if c == nil {
		return fmt.Errorf("nil component added to %s", net.Name)
	}
	if slices.Contains(net.components, c) {
		return fmt.Errorf("component %s already in %s", c.CompID(), net.Name)
	}
	switch v := c.(type) {
	case *Switch:
		net.switches = append(net.switches, v)
	case *Link:
		net.links = append(net.links, v)
	case *BridgeEndpoint:
		net.bridges = append(net.bridges, v)
	case *Host:
		net.freeHosts = append(net.freeHosts, v)
	}
	net.components = append(net.components, c)
	return nil
}

func (net *SubNetwork) Components() []Component    { return net.components }
func (net *SubNetwork) Switches() []*Switch        { return net.switches }
func (net *SubNetwork) Links() []*Link             { return net.links }
func (net *SubNetwork) Bridges() []*BridgeEndpoint { return net.bridges }

// Hosts lists the hosts of every switch in the sub-network, then any free hosts
func (net *SubNetwork) Hosts() []*Host {
	hosts := []*Host{}
	for _, sw := range net.switches {
		hosts = append(hosts, sw.Hosts()...)
	}
	return append(hosts, net.freeHosts...)
}

func (net *SubNetwork) Initiators() []*BridgeEndpoint { return net.bridgesWith(Initiator) }
func (net *SubNetwork) Responders() []*BridgeEndpoint { return net.bridgesWith(Responder) }

func (net *SubNetwork) bridgesWith(role BridgeRole) []*BridgeEndpoint {
	out := []*BridgeEndpoint{}
	for _, be := range net.bridges {
		if be.Role == role {
			out = append(out, be)
		}
	}
	return out
}

// BridgesTo lists the bridge endpoints whose other side is in partition peer
func (net *SubNetwork) BridgesTo(peer int) []*BridgeEndpoint {
	out := []*BridgeEndpoint{}
	for _, be := range net.bridges {
		if be.Peer == peer {
			out = append(out, be)
		}
	}
	return out
}

// Peers lists, in increasing order, the partitions this one shares a bridge with
func (net *SubNetwork) Peers() []int {
	seen := map[int]bool{}
	peers := []int{}
	for _, be := range net.bridges {
		if !seen[be.Peer] {
			seen[be.Peer] = true
			peers = append(peers, be.Peer)
		}
	}
	sort.Ints(peers)
	return peers
}

// placer resolves the partition a node is realized in.  A host attached to one of the
// topology's switches lives where its switch lives.
type placer struct {
	ids      *IdentityMap
	assign   []int
	switches map[*Switch]bool
}

func (pl *placer) partition(n TopoNode) (int, error) {
	if h, ok := n.(*Host); ok && h.parent != nil && pl.switches[h.parent] {
		n = h.parent
	}
	idx, present := pl.ids.Lookup(n)
	if !present {
		return -1, &InternalConsistencyError{Msg: fmt.Sprintf("node %s was never indexed", n.CompID())}
	}
	if idx >= len(pl.assign) {
		return -1, &InternalConsistencyError{Msg: fmt.Sprintf("node %s has index %d beyond the assignment", n.CompID(), idx)}
	}
	return pl.assign[idx], nil
}

type staged struct {
	net  int
	comp Component
}

// assemble builds parts sub-networks from the assignment and reports the partition each
// graph node is realized in.  All placement decisions are made before the topology is
// touched; on error nothing has been modified.
func assemble(topo Topology, g *PartitionGraph, ids *IdentityMap, assign []int, parts int) ([]*SubNetwork, []int, error) {
	pl := &placer{ids: ids, assign: assign, switches: make(map[*Switch]bool)}
	for _, sw := range topo.Switches() {
		pl.switches[sw] = true
	}

	placement := make([]int, len(g.Nodes))
	for idx, n := range g.Nodes {
		p, err := pl.partition(n)
		if err != nil {
			return nil, nil, err
		}
		placement[idx] = p
	}

	plan := []staged{}
	for _, sw := range topo.Switches() {
		p, err := pl.partition(sw)
		if err != nil {
			return nil, nil, err
		}
		plan = append(plan, staged{net: p, comp: sw})
	}

	// hosts reachable only through links are placed on their own
	free := []*Host{}
	for _, l := range topo.Links() {
		for _, end := range []TopoNode{l.Left, l.Right} {
			if h, ok := end.(*Host); ok && (h.parent == nil || !pl.switches[h.parent]) && !slices.Contains(free, h) {
				free = append(free, h)
			}
		}
	}
	for _, h := range free {
		p, err := pl.partition(h)
		if err != nil {
			return nil, nil, err
		}
		plan = append(plan, staged{net: p, comp: h})
	}

	bridges := []*BridgeEndpoint{}
	idUses := make(map[string]int)
	for _, l := range topo.Links() {
		lp, err := pl.partition(l.Left)
		if err != nil {
			return nil, nil, err
		}
		rp, err := pl.partition(l.Right)
		if err != nil {
			return nil, nil, err
		}
		if lp == rp {
			plan = append(plan, staged{net: lp, comp: l})
			continue
		}

		lIdx, _ := ids.Lookup(l.Left)
		rIdx, _ := ids.Lookup(l.Right)
		bridgeID := fmt.Sprintf("cross_%d_%d", lIdx, rIdx)
		if uses := idUses[bridgeID]; uses > 0 {
			idUses[bridgeID]++
			bridgeID = fmt.Sprintf("%s.%d", bridgeID, uses)
		} else {
			idUses[bridgeID] = 1
		}

		lo, hi, loP, hiP := l.Left, l.Right, lp, rp
		if rp < lp {
			lo, hi, loP, hiP = l.Right, l.Left, rp, lp
		}
		initiator := &BridgeEndpoint{BridgeID: bridgeID, Role: Initiator, Local: loP, Peer: hiP,
			Delay: l.Delay, SyncDelay: l.EffectiveSyncDelay(), Link: l, Owner: lo}
		responder := &BridgeEndpoint{BridgeID: bridgeID, Role: Responder, Local: hiP, Peer: loP,
			Delay: l.Delay, SyncDelay: l.EffectiveSyncDelay(), Link: l, Owner: hi}
		bridges = append(bridges, initiator, responder)
		plan = append(plan, staged{net: loP, comp: initiator}, staged{net: hiP, comp: responder})
	}

	for _, s := range plan {
		if s.net < 0 || s.net >= parts {
			return nil, nil, &InternalConsistencyError{Msg: fmt.Sprintf("component %s placed in partition %d of %d", s.comp.CompID(), s.net, parts)}
		}
	}

	// commit
	for _, n := range g.Nodes {
		detachBridges(n)
	}
	for _, be := range bridges {
		if err := be.Owner.AddComponent(be); err != nil {
			return nil, nil, &InternalConsistencyError{Msg: err.Error()}
		}
	}
	nets := make([]*SubNetwork, parts)
	for p := range nets {
		nets[p] = CreateSubNetwork(p)
	}
	for _, s := range plan {
		if err := nets[s.net].AddComponent(s.comp); err != nil {
			return nil, nil, &InternalConsistencyError{Msg: err.Error()}
		}
	}
	return nets, placement, nil
}

// detachBridges removes endpoints left on a node by an earlier planning run
func detachBridges(n TopoNode) {
	var base *compBase
	switch v := n.(type) {
	case *Switch:
		base = &v.compBase
	case *Host:
		base = &v.compBase
	default:
		return
	}
	kept := make([]Component, 0, len(base.attached))
	for _, c := range base.attached {
		if _, ok := c.(*BridgeEndpoint); !ok {
			kept = append(kept, c)
		}
	}
	base.attached = kept
}
