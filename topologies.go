package netsplit

// file topologies.go holds the Topology interface and the built-in topology
// variants: dumbbell, data-center fat tree, and the Homa benchmark cluster

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"github.com/iti/rngstream"
)

// Topology is what the planner partitions.  Switches and Links are read-only views in a
// stable order; AddToNetwork places the whole topology into one sub-network.
type Topology interface {
	Switches() []*Switch
	Links() []*Link
	AddToNetwork(net *SubNetwork) error
}

func addAll(net *SubNetwork, switches []*Switch, links []*Link) error {
	errs := []error{}
	for _, sw := range switches {
		errs = append(errs, net.AddComponent(sw))
	}
	for _, l := range links {
		errs = append(errs, net.AddComponent(l))
	}
	return ReportErrs(errs)
}

// ValidateTopology checks the structural preconditions of partitioning: no switch is
// listed twice, and every link has two distinct endpoints, each a listed switch or a host
// that is free standing or attached to a listed switch
func ValidateTopology(topo Topology) error {
	if topo == nil {
		return fmt.Errorf("%w: nil topology", ErrInvalidTopology)
	}
	errs := []error{}
	seen := make(map[*Switch]bool)
	for _, sw := range topo.Switches() {
		if sw == nil {
			errs = append(errs, errors.New("nil switch"))
			continue
		}
		if seen[sw] {
			errs = append(errs, fmt.Errorf("switch %s listed twice", sw.ID))
		}
		seen[sw] = true
	}
	for _, l := range topo.Links() {
		switch {
		case l == nil:
			errs = append(errs, errors.New("nil link"))
		case l.Left == nil || l.Right == nil:
			errs = append(errs, fmt.Errorf("link %s has a missing endpoint", l.ID))
		case l.Left == l.Right:
			errs = append(errs, fmt.Errorf("link %s connects %s to itself", l.ID, l.Left.CompID()))
		default:
			for _, end := range []TopoNode{l.Left, l.Right} {
				if err := checkEndpoint(end, seen); err != nil {
					errs = append(errs, fmt.Errorf("link %s: %w", l.ID, err))
				}
			}
		}
	}
	if err := ReportErrs(errs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTopology, err)
	}
	return nil
}

// checkEndpoint reports a link end the assembler could not place in a sub-network
func checkEndpoint(end TopoNode, listed map[*Switch]bool) error {
	switch n := end.(type) {
	case *Switch:
		if !listed[n] {
			return fmt.Errorf("switch %s is not part of the topology", n.ID)
		}
	case *Host:
		if n.parent != nil && !listed[n.parent] {
			return fmt.Errorf("host %s hangs off switch %s, which is not part of the topology", n.ID, n.parent.ID)
		}
	default:
		return fmt.Errorf("endpoint %s has unsupported device type %s", end.CompID(), end.DevType())
	}
	return nil
}

// ScaleSyncDelays sets the synchronization delay of every link to factor times its
// propagation delay
func ScaleSyncDelays(topo Topology, factor float64) error {
	if factor <= 0 {
		return fmt.Errorf("sync factor %g must be positive", factor)
	}
	links := topo.Links()
	scaled := make([]string, len(links))
	for idx, l := range links {
		d, err := ParseNs3Time(l.Delay)
		if err != nil {
			return fmt.Errorf("link %s: %w", l.ID, err)
		}
		scaled[idx] = FormatNs3Time(time.Duration(float64(d) * factor))
	}
	for idx, l := range links {
		l.SyncDelay = scaled[idx]
	}
	return nil
}

// pick draws a uniform index in [0,n)
func pick(rng *rngstream.RngStream, n int) int {
	idx := int(rng.RandU01() * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// sample draws k distinct indices from [0,n) by partial Fisher-Yates
func sample(rng *rngstream.RngStream, n, k int) []int {
	perm := make([]int, n)
	for idx := range perm {
		perm[idx] = idx
	}
	for idx := 0; idx < k; idx++ {
		j := idx + pick(rng, n-idx)
		perm[idx], perm[j] = perm[j], perm[idx]
	}
	return perm[:k]
}

// hostAddrs returns the first n host addresses of subnet (network and broadcast
// addresses skipped on IPv4) and the prefix length
func hostAddrs(subnet string, n int) ([]netip.Addr, int, error) {
	prefix, err := netip.ParsePrefix(subnet)
	if err != nil {
		return nil, 0, err
	}
	prefix = prefix.Masked()
	bits := prefix.Addr().BitLen() - prefix.Bits()
	if bits < 62 {
		avail := 1 << bits
		if prefix.Addr().Is4() && bits >= 2 {
			avail -= 2
		}
		if n > avail {
			return nil, 0, &CapacityError{Where: "subnet " + subnet, Limit: avail}
		}
	}

	addrs := make([]netip.Addr, 0, n)
	addr := prefix.Addr()
	if bits >= 2 {
		addr = addr.Next()
	}
	for len(addrs) < n {
		addrs = append(addrs, addr)
		addr = addr.Next()
	}
	return addrs, prefix.Bits(), nil
}

// Dumbbell is two switches joined by a single link
type Dumbbell struct {
	LeftSwitch  *Switch
	RightSwitch *Switch
	Link        *Link
}

// CreateDumbbell is a constructor
func CreateDumbbell(params DumbbellParams) (*Dumbbell, error) {
	if err := ValidateParams(&params); err != nil {
		return nil, err
	}
	db := new(Dumbbell)
	db.LeftSwitch = CreateSwitch("_leftSwitch")
	db.RightSwitch = CreateSwitch("_rightSwitch")
	db.LeftSwitch.MTU = params.MTU
	db.RightSwitch.MTU = params.MTU
	db.Link = CreateLink("_link", db.LeftSwitch, db.RightSwitch)
	db.Link.DataRate = params.DataRate
	db.Link.QueueSize = params.QueueSize
	db.Link.Delay = params.Delay
	db.Link.MTU = params.MTU
	return db, nil
}

func (db *Dumbbell) Switches() []*Switch { return []*Switch{db.LeftSwitch, db.RightSwitch} }
func (db *Dumbbell) Links() []*Link      { return []*Link{db.Link} }

func (db *Dumbbell) AddToNetwork(net *SubNetwork) error {
	return addAll(net, db.Switches(), db.Links())
}

// AddLeftComponent attaches a host (or other component) to the left switch
func (db *Dumbbell) AddLeftComponent(c Component) error { return db.LeftSwitch.AddComponent(c) }

// AddRightComponent attaches a host (or other component) to the right switch
func (db *Dumbbell) AddRightComponent(c Component) error { return db.RightSwitch.AddComponent(c) }

// Rack is a top-of-rack switch and the hosts below it
type Rack struct {
	ID    string
	ToR   *Switch
	Hosts []*Host
}

// AggBlock is a group of aggregation switches and the racks they serve
type AggBlock struct {
	ID       string
	Switches []*Switch
	Racks    []*Rack
}

// RackCapacity names a rack and the number of free host slots in it
type RackCapacity struct {
	Agg  int
	Rack int
	Free int
}

// FatTree is a three-level data-center topology: spine switches, aggregation
// blocks, and racks
type FatTree struct {
	Params   FatTreeParams
	Basename string

	SpineSwitches []*Switch
	AggBlocks     []*AggBlock
	SpineAggLinks []*Link
	AggTorLinks   []*Link

	switches   []*Switch
	links      []*Link
	hosts      []*Host
	nSimbricks int
	rng        *rngstream.RngStream
}

// CreateFatTree builds the switches and links of a fat tree; hosts are added afterwards
func CreateFatTree(basename string, params FatTreeParams) (*FatTree, error) {
	if err := ValidateParams(&params); err != nil {
		return nil, err
	}
	ft := new(FatTree)
	ft.Params = params
	ft.Basename = basename
	ft.rng = rngstream.New("fattree" + basename)
	bn := basename

	for i := 0; i < params.SpineSwitches; i++ {
		sw := CreateSwitch(fmt.Sprintf("_%sspine%d", bn, i))
		sw.Weight = params.AggBlocks * params.AggSwitches * params.AggRacks * params.HostsPerRack
		sw.MTU = params.MTU
		ft.SpineSwitches = append(ft.SpineSwitches, sw)
		ft.switches = append(ft.switches, sw)
	}

	for i := 0; i < params.AggBlocks; i++ {
		ab := &AggBlock{ID: fmt.Sprintf("agg%d", i)}
		for j := 0; j < params.AggSwitches; j++ {
			sw := CreateSwitch(fmt.Sprintf("_%sagg%d_%d", bn, i, j))
			sw.Weight = params.AggRacks * params.HostsPerRack
			sw.MTU = params.MTU
			ab.Switches = append(ab.Switches, sw)
			ft.switches = append(ft.switches, sw)
		}
		for j := 0; j < params.AggRacks; j++ {
			tor := CreateSwitch(fmt.Sprintf("_%stor%d_%d", bn, i, j))
			tor.Weight = params.HostsPerRack
			tor.MTU = params.MTU
			ab.Racks = append(ab.Racks, &Rack{ID: fmt.Sprintf("rack%d_%d", i, j), ToR: tor})
			ft.switches = append(ft.switches, tor)
		}
		ft.AggBlocks = append(ft.AggBlocks, ab)
	}

	for i, ab := range ft.AggBlocks {
		for j, aggSw := range ab.Switches {
			for si, spineSw := range ft.SpineSwitches {
				l := CreateLink(fmt.Sprintf("_%slink_sp_ab%d_as%d_s%d", bn, i, j, si), aggSw, spineSw)
				l.Delay = params.SpineLinkDelay
				l.DataRate = params.SpineLinkRate
				l.QueueType = params.QueueType
				l.QueueSize = params.SpineLinkQueue
				ft.links = append(ft.links, l)
				ft.SpineAggLinks = append(ft.SpineAggLinks, l)
			}
			for ti, r := range ab.Racks {
				l := CreateLink(fmt.Sprintf("_%slink_ab%d_as%d_tor%d", bn, i, j, ti), r.ToR, aggSw)
				l.Delay = params.AggLinkDelay
				l.DataRate = params.AggLinkRate
				l.QueueType = params.QueueType
				l.QueueSize = params.AggLinkQueue
				ft.links = append(ft.links, l)
				ft.AggTorLinks = append(ft.AggTorLinks, l)
			}
		}
	}
	return ft, nil
}

func (ft *FatTree) Switches() []*Switch { return ft.switches }
func (ft *FatTree) Links() []*Link      { return ft.links }
func (ft *FatTree) Hosts() []*Host      { return ft.hosts }

func (ft *FatTree) AddToNetwork(net *SubNetwork) error {
	return addAll(net, ft.switches, ft.links)
}

// Capacity is the number of host slots still free in the whole tree
func (ft *FatTree) Capacity() int {
	maxHosts := ft.Params.AggBlocks * ft.Params.AggRacks * ft.Params.HostsPerRack
	return maxHosts - len(ft.hosts)
}

// RacksWithCapacity lists the racks that still have a free slot
func (ft *FatTree) RacksWithCapacity() []RackCapacity {
	racks := []RackCapacity{}
	for i, ab := range ft.AggBlocks {
		for j, r := range ab.Racks {
			free := ft.Params.HostsPerRack - len(r.Hosts)
			if free <= 0 {
				continue
			}
			racks = append(racks, RackCapacity{Agg: i, Rack: j, Free: free})
		}
	}
	return racks
}

// AddHost places h in the given rack, failing with a CapacityError when the rack is full
func (ft *FatTree) AddHost(agg, rack int, h *Host) error {
	if agg < 0 || agg >= len(ft.AggBlocks) || rack < 0 || rack >= len(ft.AggBlocks[agg].Racks) {
		return fmt.Errorf("no rack %d in aggregation block %d", rack, agg)
	}
	r := ft.AggBlocks[agg].Racks[rack]
	if len(r.Hosts) >= ft.Params.HostsPerRack {
		return &CapacityError{Where: "rack " + r.ID, Limit: ft.Params.HostsPerRack}
	}
	if err := r.ToR.AddComponent(h); err != nil {
		return err
	}
	r.Hosts = append(r.Hosts, h)
	ft.hosts = append(ft.hosts, h)
	return nil
}

// AddHostRandom places h in a rack drawn uniformly from those with a free slot
func (ft *FatTree) AddHostRandom(h *Host) (int, int, error) {
	racks := ft.RacksWithCapacity()
	if len(racks) == 0 {
		return -1, -1, &CapacityError{Where: "network", Limit: ft.Params.AggBlocks * ft.Params.AggRacks * ft.Params.HostsPerRack}
	}
	rc := racks[pick(ft.rng, len(racks))]
	if err := ft.AddHost(rc.Agg, rc.Rack, h); err != nil {
		return -1, -1, err
	}
	return rc.Agg, rc.Rack, nil
}

// WrapSimbricksHost creates a host standing in for an external NIC simulator
func (ft *FatTree) WrapSimbricksHost(nic string) *Host {
	i := ft.nSimbricks
	ft.nSimbricks++
	h := CreateSimbricksHost(fmt.Sprintf("_sbh-%d-%s", i, nic), nic)
	h.EthLatency = ft.Params.SimbricksEthLatency
	h.SyncDelay = ft.Params.SimbricksSyncDelay
	return h
}

func (ft *FatTree) AddSimbricksHost(agg, rack int, nic string) (*Host, error) {
	h := ft.WrapSimbricksHost(nic)
	if err := ft.AddHost(agg, rack, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (ft *FatTree) AddSimbricksHostRandom(nic string) (*Host, int, int, error) {
	h := ft.WrapSimbricksHost(nic)
	agg, rack, err := ft.AddHostRandom(h)
	if err != nil {
		return nil, -1, -1, err
	}
	return h, agg, rack, nil
}

// AddContigBackground fills the fat tree with bulk-send/packet-sink host pairs at
// random racks.  It returns the number of pairs added.
func AddContigBackground(ft *FatTree, params BackgroundParams) (int, error) {
	if err := ValidateParams(&params); err != nil {
		return 0, err
	}
	pairs := ft.Capacity() / 2
	addrs, prefixLen, err := hostAddrs(params.Subnet, 2*pairs)
	if err != nil {
		return 0, err
	}
	suffix := "/" + strconv.Itoa(prefixLen)

	bgHost := func(name string, addr netip.Addr) *Host {
		h := CreateHost(name)
		h.Delay = params.LinkDelay
		h.DataRate = params.LinkRate
		h.IP = addr.String() + suffix
		h.QueueSize = params.LinkQueueSize
		h.QueueType = params.LinkQueueType
		h.CongestionControl = params.CongestionControl
		return h
	}

	for i := 0; i < pairs; i++ {
		sIP, cIP := addrs[2*i], addrs[2*i+1]

		sHost := bgHost(fmt.Sprintf("bg_s-%d", i), sIP)
		sApp := CreateApplication("sink", "PacketSink")
		sApp.Set("Local", "0.0.0.0:5000")
		sApp.Set("ProbeRx", "100ms")
		sApp.Set("ProbeFile", fmt.Sprintf("sink-rx-%d", i))
		sApp.StopTime = params.AppStopTime
		if err := sHost.AddComponent(sApp); err != nil {
			return i, err
		}
		if _, _, err := ft.AddHostRandom(sHost); err != nil {
			return i, err
		}

		cHost := bgHost(fmt.Sprintf("bg_c-%d", i), cIP)
		cApp := CreateApplication("sender", "BulkSend")
		cApp.Remotes = []string{sIP.String() + ":5000"}
		cApp.StopTime = params.AppStopTime
		if err := cHost.AddComponent(cApp); err != nil {
			return i, err
		}
		if _, _, err := ft.AddHostRandom(cHost); err != nil {
			return i, err
		}
	}
	return pairs, nil
}

// AddHomaBackground fills the fat tree with message-generator hosts that each send to
// params.Remotes peers drawn with replacement.  It returns the number of hosts added.
func AddHomaBackground(ft *FatTree, params HomaBackgroundParams) (int, error) {
	if err := ValidateParams(&params); err != nil {
		return 0, err
	}
	n := ft.Capacity()
	addrs, prefixLen, err := hostAddrs(params.Subnet, n)
	if err != nil {
		return 0, err
	}
	suffix := "/" + strconv.Itoa(prefixLen)
	remotes := make([]string, n)
	for i, addr := range addrs {
		remotes[i] = addr.String() + ":3000"
	}

	appType := "MsgGen"
	if params.AppProto == "tcp" {
		appType = "MsgGenTCP"
	}

	for i := 0; i < n; i++ {
		h := CreateHost(fmt.Sprintf("bg_h-%d", i))
		h.Delay = params.LinkDelay
		h.DataRate = params.LinkRate
		h.IP = addrs[i].String() + suffix
		h.QueueSize = params.LinkQueueSize
		h.QueueType = params.LinkQueueType

		app := CreateApplication("msggen", appType)
		app.StopTime = params.AppStopTime
		for k := 0; k < params.Remotes; k++ {
			app.Remotes = append(app.Remotes, remotes[pick(ft.rng, n)])
		}
		app.Set("ProbeRx", "500ms")
		app.Set("ProbeFile", fmt.Sprintf("%s_sink-rx-%d", params.ExpName, i))
		if err := h.AddComponent(app); err != nil {
			return i, err
		}
		if _, _, err := ft.AddHostRandom(h); err != nil {
			return i, err
		}
	}
	return n, nil
}

// HomaTopology is a two-level cluster: aggregation switches over top-of-rack switches
type HomaTopology struct {
	Params   HomaParams
	Basename string

	AggSwitches []*Switch
	TorSwitches []*Switch

	switches []*Switch
	links    []*Link
	hosts    []*Host
	rng      *rngstream.RngStream
}

// CreateHomaTopology builds the switches and links; hosts come from AddHomaHosts
func CreateHomaTopology(basename string, params HomaParams) (*HomaTopology, error) {
	if err := ValidateParams(&params); err != nil {
		return nil, err
	}
	ht := new(HomaTopology)
	ht.Params = params
	ht.Basename = basename
	ht.rng = rngstream.New("homa" + basename)
	bn := basename

	for i := 0; i < params.AggSwitches; i++ {
		sw := CreateSwitch(fmt.Sprintf("_%sagg%d", bn, i))
		sw.MTU = params.MTU
		ht.AggSwitches = append(ht.AggSwitches, sw)
		ht.switches = append(ht.switches, sw)
	}
	for i := 0; i < params.AggRacks; i++ {
		sw := CreateSwitch(fmt.Sprintf("_%stor%d", bn, i))
		sw.MTU = params.MTU
		ht.TorSwitches = append(ht.TorSwitches, sw)
		ht.switches = append(ht.switches, sw)
	}
	for i, aggSw := range ht.AggSwitches {
		for j, torSw := range ht.TorSwitches {
			l := CreateLink(fmt.Sprintf("_%slink_agg%d_tor%d", bn, i, j), torSw, aggSw)
			l.Delay = params.AggLinkDelay
			l.DataRate = params.AggLinkRate
			l.QueueType = params.AggLinkQueueType
			l.QueueSize = params.AggLinkQueueSize
			l.MTU = params.MTU
			ht.links = append(ht.links, l)
		}
	}
	return ht, nil
}

func (ht *HomaTopology) Switches() []*Switch { return ht.switches }
func (ht *HomaTopology) Links() []*Link      { return ht.links }
func (ht *HomaTopology) Hosts() []*Host      { return ht.hosts }

func (ht *HomaTopology) AddToNetwork(net *SubNetwork) error {
	return addAll(net, ht.switches, ht.links)
}

// AddHomaHosts puts HostsPerRack hosts under every ToR, numbered from subnet
func (ht *HomaTopology) AddHomaHosts(subnet string) error {
	addrs, prefixLen, err := hostAddrs(subnet, len(ht.TorSwitches)*ht.Params.HostsPerRack)
	if err != nil {
		return err
	}
	suffix := "/" + strconv.Itoa(prefixLen)

	next := 0
	for i, tor := range ht.TorSwitches {
		for j := 0; j < ht.Params.HostsPerRack; j++ {
			h := CreateHost(fmt.Sprintf("_%stor%d_host%d", ht.Basename, i, j))
			h.Delay = ht.Params.TorLinkDelay
			h.DataRate = ht.Params.TorLinkRate
			h.IP = addrs[next].String() + suffix
			next++
			h.Set("InnerQueueType", ht.Params.HostLinkQueueType)
			h.Set("InnerQueue-MaxSize", ht.Params.HostLinkQueueSize)
			h.Set("InnerQueue-NumBands", ht.Params.PfifoNumBands)
			h.Set("OuterQueueType", ht.Params.TorLinkQueueType)
			h.Set("OuterQueue-MaxSize", ht.Params.TorLinkQueueSize)
			h.MTU = ht.Params.MTU
			if err := tor.AddComponent(h); err != nil {
				return err
			}
			ht.hosts = append(ht.hosts, h)
		}
	}
	return nil
}

// AddHomaApps installs a message generator of type appType on each selected host
// (all hosts when selected is empty).  Every generator sends to nRemotes peers drawn
// without replacement, and gets one ping app per peer to warm up ARP.  A negative
// nRemotes means Params.Remotes.
func (ht *HomaTopology) AddHomaApps(appType string, selected []int, nRemotes int) error {
	if nRemotes < 0 {
		nRemotes = ht.Params.Remotes
	}
	hosts := ht.hosts
	if len(selected) > 0 {
		hosts = make([]*Host, 0, len(selected))
		for _, idx := range selected {
			if idx < 0 || idx >= len(ht.hosts) {
				return fmt.Errorf("no host %d (have %d)", idx, len(ht.hosts))
			}
			hosts = append(hosts, ht.hosts[idx])
		}
	}
	if len(hosts)-1 < nRemotes {
		return &CapacityError{Where: "remote pool", Limit: max(len(hosts)-1, 0)}
	}

	mtu, err := strconv.Atoi(ht.Params.MTU)
	if err != nil {
		return err
	}

	addresses := make([]string, len(hosts))
	for i, h := range hosts {
		prefix, err := netip.ParsePrefix(h.IP)
		if err != nil {
			return fmt.Errorf("host %s: %w", h.ID, err)
		}
		addresses[i] = prefix.Addr().String() + ":" + strconv.Itoa(2000+i)
	}

	for i, h := range hosts {
		app := CreateApplication(fmt.Sprintf("_%shost%d_homa_app", ht.Basename, i), appType)
		app.StartTime = ht.Params.StartTime
		app.StopTime = ht.Params.StopTime
		ipPort := addresses[i]
		ap, err := netip.ParseAddrPort(ipPort)
		if err != nil {
			return err
		}
		app.Set("Ip", ap.Addr().String())
		app.Set("Port", strconv.Itoa(int(ap.Port())))
		app.Set("Load", ht.Params.NetworkLoad)
		app.Set("PayloadSize", strconv.Itoa(mtu-20-20))
		app.Set("MsgSizeDistFile", ht.Params.MsgSizeDistFile)

		others := make([]string, 0, len(addresses)-1)
		others = append(others, addresses[:i]...)
		others = append(others, addresses[i+1:]...)

		stop := 100*time.Millisecond + time.Duration(nRemotes)*time.Millisecond + 2*time.Second
		for j, pidx := range sample(ht.rng, len(others), nRemotes) {
			remote := others[pidx]
			app.Remotes = append(app.Remotes, remote)

			rap, err := netip.ParseAddrPort(remote)
			if err != nil {
				return err
			}
			ping := CreateApplication(fmt.Sprintf("_%shost%d_ping_app_%d", ht.Basename, i, j), "Generic")
			ping.StartTime = FormatNs3Time(100*time.Millisecond + time.Duration(j)*time.Millisecond)
			ping.StopTime = FormatNs3Time(stop)
			ping.Set("TypeId", "ns3::Ping")
			ping.Set("Destination(Ipv4Address)", rap.Addr().String())
			ping.Set("Size", "16")
			ping.Set("Count", "1")
			ping.Set("Timeout", "1s")
			ping.Set("VerboseMode", "Silent")
			if err := h.AddComponent(ping); err != nil {
				return err
			}
		}
		if err := h.AddComponent(app); err != nil {
			return err
		}
	}
	return nil
}
