package netsplit

// file desc-topo.go holds the flat, serializable description of a topology,
// the transformation of an in-memory topology into one, and the construction
// of a topology from one

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// AppDesc is the serializable form of an Application
type AppDesc struct {
	Name      string            `json:"name" yaml:"name" validate:"required"`
	Type      string            `json:"type" yaml:"type" validate:"required"`
	StartTime string            `json:"starttime,omitempty" yaml:"starttime,omitempty" validate:"omitempty,ns3time"`
	StopTime  string            `json:"stoptime,omitempty" yaml:"stoptime,omitempty" validate:"omitempty,ns3time"`
	Remotes   []string          `json:"remotes,omitempty" yaml:"remotes,omitempty"`
	Mapping   map[string]string `json:"mapping,omitempty" yaml:"mapping,omitempty"`
}

// HostDesc is the serializable form of a Host
type HostDesc struct {
	Name              string            `json:"name" yaml:"name" validate:"required"`
	Kind              string            `json:"kind" yaml:"kind" validate:"omitempty,oneof=SimpleNs3 Simbricks"`
	IP                string            `json:"ip,omitempty" yaml:"ip,omitempty" validate:"omitempty,cidr"`
	DataRate          string            `json:"datarate,omitempty" yaml:"datarate,omitempty" validate:"omitempty,ns3rate"`
	QueueSize         string            `json:"queuesize,omitempty" yaml:"queuesize,omitempty"`
	QueueType         string            `json:"queuetype,omitempty" yaml:"queuetype,omitempty"`
	Delay             string            `json:"delay,omitempty" yaml:"delay,omitempty" validate:"omitempty,ns3time"`
	MTU               string            `json:"mtu,omitempty" yaml:"mtu,omitempty"`
	CongestionControl string            `json:"cc,omitempty" yaml:"cc,omitempty"`
	EthLatency        string            `json:"ethlatency,omitempty" yaml:"ethlatency,omitempty" validate:"omitempty,ns3time"`
	SyncDelay         string            `json:"syncdelay,omitempty" yaml:"syncdelay,omitempty" validate:"omitempty,ns3time"`
	NIC               string            `json:"nic,omitempty" yaml:"nic,omitempty"`
	Mapping           map[string]string `json:"mapping,omitempty" yaml:"mapping,omitempty"`
	Apps              []AppDesc         `json:"apps,omitempty" yaml:"apps,omitempty" validate:"dive"`
}

// SwitchDesc is the serializable form of a Switch and the hosts attached to it
type SwitchDesc struct {
	Name   string     `json:"name" yaml:"name" validate:"required"`
	MTU    string     `json:"mtu,omitempty" yaml:"mtu,omitempty"`
	Weight int        `json:"weight,omitempty" yaml:"weight,omitempty" validate:"min=0"`
	Hosts  []HostDesc `json:"hosts,omitempty" yaml:"hosts,omitempty" validate:"dive"`
}

// LinkDesc is the serializable form of a Link; endpoints are named
type LinkDesc struct {
	Name      string `json:"name" yaml:"name" validate:"required"`
	Left      string `json:"left" yaml:"left" validate:"required"`
	Right     string `json:"right" yaml:"right" validate:"required,nefield=Left"`
	Delay     string `json:"delay" yaml:"delay" validate:"required,ns3time"`
	SyncDelay string `json:"syncdelay,omitempty" yaml:"syncdelay,omitempty" validate:"omitempty,ns3time"`
	DataRate  string `json:"datarate,omitempty" yaml:"datarate,omitempty" validate:"omitempty,ns3rate"`
	QueueSize string `json:"queuesize,omitempty" yaml:"queuesize,omitempty"`
	QueueType string `json:"queuetype,omitempty" yaml:"queuetype,omitempty"`
	MTU       string `json:"mtu,omitempty" yaml:"mtu,omitempty"`
}

// TopologyDesc describes a whole topology.  FreeHosts are hosts not attached to any
// switch, reachable only through links.
type TopologyDesc struct {
	Name      string       `json:"name" yaml:"name"`
	Switches  []SwitchDesc `json:"switches" yaml:"switches" validate:"dive"`
	FreeHosts []HostDesc   `json:"freehosts,omitempty" yaml:"freehosts,omitempty" validate:"dive"`
	Links     []LinkDesc   `json:"links" yaml:"links" validate:"dive"`
}

// Transform returns a serializable description of the application
func (app *Application) Transform() AppDesc {
	return AppDesc{
		Name:      app.ID,
		Type:      app.Type,
		StartTime: app.StartTime,
		StopTime:  app.StopTime,
		Remotes:   slices.Clone(app.Remotes),
		Mapping:   maps.Clone(app.Mapping),
	}
}

// Transform returns a serializable description of the host and its applications
func (h *Host) Transform() HostDesc {
	hd := HostDesc{
		Name:              h.ID,
		Kind:              h.Kind,
		IP:                h.IP,
		DataRate:          h.DataRate,
		QueueSize:         h.QueueSize,
		QueueType:         h.QueueType,
		Delay:             h.Delay,
		MTU:               h.MTU,
		CongestionControl: h.CongestionControl,
		EthLatency:        h.EthLatency,
		SyncDelay:         h.SyncDelay,
		NIC:               h.NIC,
		Mapping:           maps.Clone(h.Mapping),
	}
	for _, app := range h.Apps() {
		hd.Apps = append(hd.Apps, app.Transform())
	}
	return hd
}

// Transform returns a serializable description of the switch.  Bridge endpoints
// attached by a planning run are not part of the topology and are left out.
func (sw *Switch) Transform() SwitchDesc {
	sd := SwitchDesc{Name: sw.ID, MTU: sw.MTU, Weight: sw.Weight}
	for _, h := range sw.Hosts() {
		sd.Hosts = append(sd.Hosts, h.Transform())
	}
	return sd
}

// Transform returns a serializable description of the link
func (l *Link) Transform() LinkDesc {
	return LinkDesc{
		Name:      l.ID,
		Left:      l.Left.CompID(),
		Right:     l.Right.CompID(),
		Delay:     l.Delay,
		SyncDelay: l.SyncDelay,
		DataRate:  l.DataRate,
		QueueSize: l.QueueSize,
		QueueType: l.QueueType,
		MTU:       l.MTU,
	}
}

// TransformTopology builds the serializable description of any Topology
func TransformTopology(name string, topo Topology) TopologyDesc {
	td := TopologyDesc{Name: name, Switches: []SwitchDesc{}, Links: []LinkDesc{}}
	for _, sw := range topo.Switches() {
		td.Switches = append(td.Switches, sw.Transform())
	}
	free := []*Host{}
	for _, l := range topo.Links() {
		td.Links = append(td.Links, l.Transform())
		for _, end := range []TopoNode{l.Left, l.Right} {
			if h, ok := end.(*Host); ok && h.parent == nil && !slices.Contains(free, h) {
				free = append(free, h)
			}
		}
	}
	for _, h := range free {
		td.FreeHosts = append(td.FreeHosts, h.Transform())
	}
	return td
}

// WriteToFile stores the TopologyDesc struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (td *TopologyDesc) WriteToFile(filename string) error {
	return writeDesc(filename, td)
}

// ReadTopologyDesc deserializes a byte slice holding a representation of a TopologyDesc struct.
// If the input argument of dict (those bytes) is empty, the file whose name is given is read
// to acquire them.  The description is validated before it is returned.
func ReadTopologyDesc(filename string, useYAML bool, dict []byte) (*TopologyDesc, error) {
	td := TopologyDesc{}
	if err := readDesc(filename, useYAML, dict, &td); err != nil {
		return nil, err
	}
	if err := ValidateParams(&td); err != nil {
		return nil, err
	}
	return &td, nil
}

func writeDesc(filename string, desc any) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	switch pathExt {
	case ".yaml", ".YAML", ".yml":
		bytes, merr = yaml.Marshal(desc)
	case ".json", ".JSON":
		bytes, merr = json.MarshalIndent(desc, "", "\t")
	default:
		return fmt.Errorf("file %s: extension must be .yaml, .yml or .json", filename)
	}
	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0o644)
}

func readDesc(filename string, useYAML bool, dict []byte, out any) error {
	var err error

	// if the dict slice of bytes is empty we get them from the file whose name is an argument
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return err
		}
	}

	if useYAML {
		return yaml.Unmarshal(dict, out)
	}
	return json.Unmarshal(dict, out)
}

// DescTopology is a Topology built from a TopologyDesc
type DescTopology struct {
	Name string

	switches  []*Switch
	links     []*Link
	freeHosts []*Host
	byName    map[string]TopoNode
}

func (dt *DescTopology) Switches() []*Switch { return dt.switches }
func (dt *DescTopology) Links() []*Link      { return dt.links }

// Node looks up a switch or host by name
func (dt *DescTopology) Node(name string) (TopoNode, bool) {
	n, present := dt.byName[name]
	return n, present
}

// FreeHosts are the hosts not attached to any switch
func (dt *DescTopology) FreeHosts() []*Host { return dt.freeHosts }

func (dt *DescTopology) AddToNetwork(net *SubNetwork) error {
	errs := []error{addAll(net, dt.switches, dt.links)}
	for _, h := range dt.freeHosts {
		errs = append(errs, net.AddComponent(h))
	}
	return ReportErrs(errs)
}

func (hd *HostDesc) build() (*Host, error) {
	h := CreateHost(hd.Name)
	if hd.Kind != "" {
		h.Kind = hd.Kind
	}
	h.IP = hd.IP
	h.DataRate = hd.DataRate
	h.QueueSize = hd.QueueSize
	h.QueueType = hd.QueueType
	h.Delay = hd.Delay
	h.MTU = hd.MTU
	h.CongestionControl = hd.CongestionControl
	h.EthLatency = hd.EthLatency
	h.SyncDelay = hd.SyncDelay
	h.NIC = hd.NIC
	h.Mapping = maps.Clone(hd.Mapping)
	for _, ad := range hd.Apps {
		app := CreateApplication(ad.Name, ad.Type)
		app.StartTime = ad.StartTime
		app.StopTime = ad.StopTime
		app.Remotes = slices.Clone(ad.Remotes)
		app.Mapping = maps.Clone(ad.Mapping)
		if err := h.AddComponent(app); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// BuildTopology turns a description into an in-memory topology.  Switch and host names
// must be unique, and link endpoints must name one of them.
func BuildTopology(td *TopologyDesc) (*DescTopology, error) {
	if err := ValidateParams(td); err != nil {
		return nil, err
	}
	dt := &DescTopology{Name: td.Name, byName: make(map[string]TopoNode)}
	errs := []error{}

	register := func(name string, n TopoNode) bool {
		if _, present := dt.byName[name]; present {
			errs = append(errs, fmt.Errorf("name %s used twice", name))
			return false
		}
		dt.byName[name] = n
		return true
	}

	for _, sd := range td.Switches {
		sw := CreateSwitch(sd.Name)
		sw.MTU = sd.MTU
		sw.Weight = sd.Weight
		if !register(sd.Name, sw) {
			continue
		}
		dt.switches = append(dt.switches, sw)
		for idx := range sd.Hosts {
			h, err := sd.Hosts[idx].build()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if register(h.ID, h) {
				errs = append(errs, sw.AddComponent(h))
			}
		}
	}
	for idx := range td.FreeHosts {
		h, err := td.FreeHosts[idx].build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if register(h.ID, h) {
			dt.freeHosts = append(dt.freeHosts, h)
		}
	}

	for _, ld := range td.Links {
		left, lok := dt.byName[ld.Left]
		right, rok := dt.byName[ld.Right]
		if !lok || !rok {
			errs = append(errs, fmt.Errorf("link %s names an unknown endpoint", ld.Name))
			continue
		}
		l := CreateLink(ld.Name, left, right)
		l.Delay = ld.Delay
		l.SyncDelay = ld.SyncDelay
		l.DataRate = ld.DataRate
		l.QueueSize = ld.QueueSize
		l.QueueType = ld.QueueType
		l.MTU = ld.MTU
		dt.links = append(dt.links, l)
	}

	for _, h := range dt.freeHosts {
		used := slices.ContainsFunc(dt.links, func(l *Link) bool { return l.Left == h || l.Right == h })
		if !used {
			errs = append(errs, fmt.Errorf("free host %s is on no link", h.ID))
		}
	}

	if err := ReportErrs(errs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTopology, err)
	}
	return dt, nil
}
