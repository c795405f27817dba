package netsplit

import "fmt"

// IdentityEntry pairs a node with the dense index it was given
type IdentityEntry struct {
	Node  TopoNode
	Index int
}

// IdentityMap gives every node seen during edge enumeration a dense integer index,
// in order of first sight.  Nodes are keyed by identity (pointer), not by value.
// An IdentityMap lives for one planning run; there is no removal.
type IdentityMap struct {
	index map[TopoNode]int
	nodes []TopoNode
}

// NewIdentityMap is a constructor
func NewIdentityMap() *IdentityMap {
	return &IdentityMap{index: make(map[TopoNode]int)}
}

// ToIndex returns the index of node, assigning the next unused one on first sight
func (im *IdentityMap) ToIndex(node TopoNode) int {
	if idx, present := im.index[node]; present {
		return idx
	}
	idx := len(im.nodes)
	im.index[node] = idx
	im.nodes = append(im.nodes, node)
	return idx
}

// Lookup reports the index of a node without assigning one
func (im *IdentityMap) Lookup(node TopoNode) (int, bool) {
	idx, present := im.index[node]
	return idx, present
}

// FromIndex is the inverse of ToIndex
func (im *IdentityMap) FromIndex(idx int) (TopoNode, error) {
	if idx < 0 || idx >= len(im.nodes) {
		return nil, &InternalConsistencyError{Msg: fmt.Sprintf("index %d was never assigned (have %d)", idx, len(im.nodes))}
	}
	return im.nodes[idx], nil
}

// Entries lists (node, index) pairs in assignment order
func (im *IdentityMap) Entries() []IdentityEntry {
	entries := make([]IdentityEntry, len(im.nodes))
	for idx, node := range im.nodes {
		entries[idx] = IdentityEntry{Node: node, Index: idx}
	}
	return entries
}

// Len is the number of nodes indexed so far
func (im *IdentityMap) Len() int {
	return len(im.nodes)
}
