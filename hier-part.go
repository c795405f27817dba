package netsplit

// file hier-part.go holds named, structure-aware partitionings of the built-in
// topologies, used in place of a min-cut partitioner when the cut is known in advance

import "sort"

// StaticAssignment is a fixed partitioning of a topology into Parts sub-networks.
// Hosts left out of Of follow their switch.
type StaticAssignment struct {
	Parts int
	Of    map[TopoNode]int
}

func newStatic() StaticAssignment {
	return StaticAssignment{Of: make(map[TopoNode]int)}
}

func (sa *StaticAssignment) put(p int, switches ...*Switch) {
	for _, sw := range switches {
		sa.Of[sw] = p
	}
	if p+1 > sa.Parts {
		sa.Parts = p + 1
	}
}

// SchemeNames lists the names of a scheme table in sorted order
func SchemeNames(schemes map[string]StaticAssignment) []string {
	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FatTreePartitions returns the named partitionings of a fat tree:
//
//	single       everything in one sub-network
//	spine-blocks spine switches in 0, aggregation block i (switches, racks, hosts) in i+1
//	racks        spine and aggregation switches in 0, every rack in its own sub-network
func FatTreePartitions(ft *FatTree) map[string]StaticAssignment {
	schemes := make(map[string]StaticAssignment)

	single := newStatic()
	single.put(0, ft.switches...)
	schemes["single"] = single

	blocks := newStatic()
	blocks.put(0, ft.SpineSwitches...)
	for i, ab := range ft.AggBlocks {
		blocks.put(i+1, ab.Switches...)
		for _, r := range ab.Racks {
			blocks.put(i+1, r.ToR)
		}
	}
	schemes["spine-blocks"] = blocks

	racks := newStatic()
	racks.put(0, ft.SpineSwitches...)
	next := 1
	for _, ab := range ft.AggBlocks {
		racks.put(0, ab.Switches...)
		for _, r := range ab.Racks {
			racks.put(next, r.ToR)
			next++
		}
	}
	schemes["racks"] = racks

	return schemes
}

// HomaPartitions returns the named partitionings of a Homa cluster:
//
//	single  everything in one sub-network
//	tors    aggregation switches in 0, every ToR and its hosts in its own sub-network
//	halves  first half of the ToRs (with the aggregation switches) in 0, the rest in 1
func HomaPartitions(ht *HomaTopology) map[string]StaticAssignment {
	schemes := make(map[string]StaticAssignment)

	single := newStatic()
	single.put(0, ht.switches...)
	schemes["single"] = single

	tors := newStatic()
	tors.put(0, ht.AggSwitches...)
	for i, tor := range ht.TorSwitches {
		tors.put(i+1, tor)
	}
	schemes["tors"] = tors

	if len(ht.TorSwitches) >= 2 {
		halves := newStatic()
		halves.put(0, ht.AggSwitches...)
		mid := (len(ht.TorSwitches) + 1) / 2
		halves.put(0, ht.TorSwitches[:mid]...)
		halves.put(1, ht.TorSwitches[mid:]...)
		schemes["halves"] = halves
	}

	return schemes
}
