package model

// NodeIndex is the bidirectional mapping between node names and dense integer ids.
// Ids are handed out in the order names are first offered, starting at 0, and never change.
type NodeIndex struct {
	names []string
	ids   map[string]int
}

// NewNodeIndex builds an index from names in encounter order. Repeated names keep their
// first id.
func NewNodeIndex(names ...string) *NodeIndex {
	idx := &NodeIndex{
		names: make([]string, 0, len(names)),
		ids:   make(map[string]int, len(names)),
	}
	for _, name := range names {
		idx.add(name)
	}
	return idx
}

// NodeIndexFromLinks scans links row by row, source before target.
func NodeIndexFromLinks(links []Link) *NodeIndex {
	idx := &NodeIndex{
		names: make([]string, 0, len(links)),
		ids:   make(map[string]int, len(links)),
	}
	for _, l := range links {
		idx.add(l.Source)
		idx.add(l.Target)
	}
	return idx
}

func (idx *NodeIndex) add(name string) {
	if _, exists := idx.ids[name]; exists {
		return
	}
	idx.ids[name] = len(idx.names)
	idx.names = append(idx.names, name)
}

// ID returns the id for a name
func (idx *NodeIndex) ID(name string) (int, bool) {
	id, ok := idx.ids[name]
	return id, ok
}

// Name returns the name for an id
func (idx *NodeIndex) Name(id int) (string, bool) {
	if id < 0 || id >= len(idx.names) {
		return "", false
	}
	return idx.names[id], true
}

// Names returns a copy of all names, where element i is the name of id i
func (idx *NodeIndex) Names() []string {
	out := make([]string, len(idx.names))
	copy(out, idx.names)
	return out
}

// Len returns the number of distinct names
func (idx *NodeIndex) Len() int {
	return len(idx.names)
}
