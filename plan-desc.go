package netsplit

// file plan-desc.go holds the serializable record of a plan: which switches, hosts,
// links and bridge endpoints went to which sub-network

import "time"

// BridgeDesc is the serializable form of a BridgeEndpoint
type BridgeDesc struct {
	ID        string `json:"id" yaml:"id"`
	Role      string `json:"role" yaml:"role"`
	Type      string `json:"type" yaml:"type"`
	Owner     string `json:"owner" yaml:"owner"`
	Link      string `json:"link" yaml:"link"`
	Peer      int    `json:"peer" yaml:"peer"`
	PeerNet   string `json:"peernet" yaml:"peernet"`
	Delay     string `json:"delay" yaml:"delay"`
	SyncDelay string `json:"syncdelay" yaml:"syncdelay"`
}

// SubNetworkDesc is the serializable membership of one sub-network
type SubNetworkDesc struct {
	Name     string       `json:"name" yaml:"name"`
	Index    int          `json:"index" yaml:"index"`
	Switches []string     `json:"switches" yaml:"switches"`
	Hosts    []string     `json:"hosts" yaml:"hosts"`
	Links    []string     `json:"links" yaml:"links"`
	Bridges  []BridgeDesc `json:"bridges" yaml:"bridges"`
}

// PlanDesc is the serializable form of a Plan
type PlanDesc struct {
	ID       string           `json:"id" yaml:"id"`
	Created  string           `json:"created" yaml:"created"`
	Topology string           `json:"topology" yaml:"topology"`
	Parts    int              `json:"parts" yaml:"parts"`
	Networks []SubNetworkDesc `json:"networks" yaml:"networks"`
	Stats    PartitionStats   `json:"stats" yaml:"stats"`
}

// Transform returns a serializable description of the bridge endpoint
func (be *BridgeEndpoint) Transform() BridgeDesc {
	return BridgeDesc{
		ID:        be.BridgeID,
		Role:      be.Role.String(),
		Type:      be.CompType(),
		Owner:     be.Owner.CompID(),
		Link:      be.Link.ID,
		Peer:      be.Peer,
		PeerNet:   be.PeerName(),
		Delay:     be.Delay,
		SyncDelay: be.SyncDelay,
	}
}

// Transform returns a serializable description of the sub-network
func (net *SubNetwork) Transform() SubNetworkDesc {
	snd := SubNetworkDesc{
		Name:     net.Name,
		Index:    net.Index,
		Switches: compNames(net.Switches()),
		Hosts:    compNames(net.Hosts()),
		Links:    compNames(net.Links()),
		Bridges:  []BridgeDesc{},
	}
	for _, be := range net.Bridges() {
		snd.Bridges = append(snd.Bridges, be.Transform())
	}
	return snd
}

// Transform returns a serializable description of the plan, naming the topology it came from
func (pl *Plan) Transform(topoName string) PlanDesc {
	pd := PlanDesc{
		ID:       pl.ID,
		Created:  pl.CreatedAt.Format(time.RFC3339),
		Topology: topoName,
		Parts:    len(pl.Networks),
		Stats:    pl.Stats,
	}
	for _, net := range pl.Networks {
		pd.Networks = append(pd.Networks, net.Transform())
	}
	return pd
}

// WriteToFile stores the PlanDesc struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (pd *PlanDesc) WriteToFile(filename string) error {
	return writeDesc(filename, pd)
}

// ReadPlanDesc deserializes a PlanDesc from dict, or from the named file when dict is empty
func ReadPlanDesc(filename string, useYAML bool, dict []byte) (*PlanDesc, error) {
	pd := PlanDesc{}
	if err := readDesc(filename, useYAML, dict, &pd); err != nil {
		return nil, err
	}
	return &pd, nil
}
