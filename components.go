package netsplit

// file components.go holds the in-memory topology model: switches, hosts, links,
// applications, and the interfaces through which the partitioner sees them

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/exp/slices"
)

// component categories, reported by CompCategory
const (
	CategoryNode    = "TopologyNode"
	CategoryChannel = "TopologyChannel"
	CategoryHost    = "Host"
	CategoryApp     = "App"
	CategoryNetwork = "Network"
)

// host kinds
const (
	SimpleNs3Host = "SimpleNs3"
	SimbricksHost = "Simbricks"
)

// Component is anything that can be placed in a sub-network or attached to
// another component
type Component interface {
	CompID() string
	CompCategory() string
	CompType() string
	Components() []Component
	AddComponent(Component) error
}

// TopoNode is a vertex of the topology graph, a *Switch or a *Host.
// Nodes are compared by identity.
type TopoNode interface {
	Component
	DevType() string
}

// compBase carries the fields every component shares
type compBase struct {
	ID       string
	Mapping  map[string]string
	attached []Component

	// set while a planning run may attach to or detach from this component
	planning atomic.Bool
}

func (cb *compBase) CompID() string { return cb.ID }

func (cb *compBase) Components() []Component { return cb.attached }

// Set records a free-form attribute, passed through to the simulator configuration
func (cb *compBase) Set(key, value string) {
	if cb.Mapping == nil {
		cb.Mapping = make(map[string]string)
	}
	cb.Mapping[key] = value
}

func (cb *compBase) attach(owner string, c Component) error {
	if c == nil {
		return fmt.Errorf("nil component attached to %s", owner)
	}
	if slices.Contains(cb.attached, c) {
		return fmt.Errorf("component %s already attached to %s", c.CompID(), owner)
	}
	cb.attached = append(cb.attached, c)
	return nil
}

func (cb *compBase) claim() bool { return cb.planning.CompareAndSwap(false, true) }
func (cb *compBase) release()    { cb.planning.Store(false) }

func (cb *compBase) detach(c Component) bool {
	idx := slices.Index(cb.attached, c)
	if idx < 0 {
		return false
	}
	cb.attached = slices.Delete(cb.attached, idx, idx+1)
	return true
}

// Switch is a network switch; hosts and bridge endpoints hang off it
type Switch struct {
	compBase
	MTU string

	// number of hosts the switch ultimately aggregates, informational
	Weight int
}

// CreateSwitch is a constructor
func CreateSwitch(name string) *Switch {
	sw := new(Switch)
	sw.ID = name
	return sw
}

func (sw *Switch) CompCategory() string { return CategoryNode }
func (sw *Switch) CompType() string     { return "Switch" }
func (sw *Switch) DevType() string      { return "Switch" }

// AddComponent attaches c to the switch.  A host may be attached to one switch only.
func (sw *Switch) AddComponent(c Component) error {
	if h, ok := c.(*Host); ok {
		if h.parent != nil && h.parent != sw {
			return fmt.Errorf("host %s already attached to switch %s", h.ID, h.parent.ID)
		}
		if err := sw.attach(sw.ID, c); err != nil {
			return err
		}
		h.parent = sw
		return nil
	}
	return sw.attach(sw.ID, c)
}

// Hosts returns the attached hosts, in attachment order
func (sw *Switch) Hosts() []*Host {
	hosts := []*Host{}
	for _, c := range sw.attached {
		if h, ok := c.(*Host); ok {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// Host is an end host, either simulated inside ns-3 (SimpleNs3) or a full-system
// host bridged in through a NIC simulator (Simbricks)
type Host struct {
	compBase
	Kind              string
	DataRate          string
	QueueSize         string
	QueueType         string
	Delay             string
	IP                string
	MTU               string
	CongestionControl string

	// Simbricks hosts only
	EthLatency string
	SyncDelay  string
	NIC        string

	parent *Switch
}

// CreateHost is a constructor for an ns-3 simulated host
func CreateHost(name string) *Host {
	h := new(Host)
	h.ID = name
	h.Kind = SimpleNs3Host
	return h
}

// CreateSimbricksHost wraps an external NIC simulator as a host
func CreateSimbricksHost(name, nic string) *Host {
	h := new(Host)
	h.ID = name
	h.Kind = SimbricksHost
	h.NIC = nic
	return h
}

func (h *Host) CompCategory() string { return CategoryHost }
func (h *Host) CompType() string     { return h.Kind }
func (h *Host) DevType() string      { return "Host" }

func (h *Host) AddComponent(c Component) error { return h.attach(h.ID, c) }

// Parent is the switch the host is attached to, nil when free standing
func (h *Host) Parent() *Switch { return h.parent }

// Apps returns the applications installed on the host
func (h *Host) Apps() []*Application {
	apps := []*Application{}
	for _, c := range h.attached {
		if app, ok := c.(*Application); ok {
			apps = append(apps, app)
		}
	}
	return apps
}

// Application is a traffic source or sink installed on a host
type Application struct {
	compBase
	Type      string
	StartTime string
	StopTime  string
	Remotes   []string
}

// CreateApplication is a constructor
func CreateApplication(name, appType string) *Application {
	app := new(Application)
	app.ID = name
	app.Type = appType
	return app
}

func (app *Application) CompCategory() string { return CategoryApp }
func (app *Application) CompType() string     { return app.Type }

func (app *Application) AddComponent(c Component) error { return app.attach(app.ID, c) }

// Link is an undirected point-to-point channel between two nodes.  Left and Right
// are labels only.
type Link struct {
	compBase
	Left      TopoNode
	Right     TopoNode
	Delay     string
	SyncDelay string
	DataRate  string
	QueueSize string
	QueueType string
	MTU       string
}

// CreateLink is a constructor
func CreateLink(name string, left, right TopoNode) *Link {
	l := new(Link)
	l.ID = name
	l.Left = left
	l.Right = right
	return l
}

func (l *Link) CompCategory() string { return CategoryChannel }
func (l *Link) CompType() string     { return "Simple" }

func (l *Link) AddComponent(c Component) error { return l.attach(l.ID, c) }

// EffectiveSyncDelay is the synchronization delay a bridge replacing this link uses,
// the link delay when no explicit one is set
func (l *Link) EffectiveSyncDelay() string {
	if l.SyncDelay != "" {
		return l.SyncDelay
	}
	return l.Delay
}
