package cluster

import "sort"

// Rack identifies a rack and the non-empty set of Node identifiers (an
// IP-like string) it holds. A node belongs to exactly one rack.
type Rack struct {
	ID    string
	Nodes []string
}

// Topology is the rack -> nodes map the Placement Planner consumes.
type Topology struct {
	Racks map[string]*Rack
}

// NewTopology builds an empty topology.
func NewTopology() *Topology {
	return &Topology{Racks: make(map[string]*Rack)}
}

// AddRack registers a rack and its nodes, replacing any prior definition.
func (t *Topology) AddRack(id string, nodes ...string) {
	cp := make([]string, len(nodes))
	copy(cp, nodes)
	t.Racks[id] = &Rack{ID: id, Nodes: cp}
}

// RackOf returns the rack ID owning node, or "" if unknown.
func (t *Topology) RackOf(node string) string {
	for _, r := range t.Racks {
		for _, n := range r.Nodes {
			if n == node {
				return r.ID
			}
		}
	}
	return ""
}

// SortedRacks returns racks sorted by descending node count, stable by
// name on ties (spec.md §4.2: "Racks are first sorted by descending node
// count (stable by name on ties)").
func (t *Topology) SortedRacks() []*Rack {
	out := make([]*Rack, 0, len(t.Racks))
	for _, r := range t.Racks {
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := len(out[i].Nodes), len(out[j].Nodes)
		if ni != nj {
			return ni > nj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Snapshot returns a defensive copy of the topology. Meta.Snapshot does not
// use it: it builds a fresh Topology from the store on every call.
func (t *Topology) Snapshot() *Topology {
	cp := NewTopology()
	for id, r := range t.Racks {
		cp.AddRack(id, r.Nodes...)
	}
	return cp
}
