// Package cluster implements the Grid Cluster (C4) and Cluster
// Registry (C5): an ordered collection of grid keys with inside/outside
// classification per member, and the indexed sequence of clusters that
// owns them.
package cluster

import "github.com/fidde/dstream/internal/grid"

// Cluster is a labelled collection of grid keys, each tagged with a
// boolean inside flag (spec §3, Definition 3.6). Members are kept in
// insertion order, except that Remove moves the last member into the
// removed member's position; membership tests are O(1) via the index
// map.
type Cluster struct {
	Label int

	order []grid.GridKey
	index map[grid.GridKey]int // position in order, for O(1) removal
	inside map[grid.GridKey]bool
}

// NewCluster creates an empty cluster with the given label.
func NewCluster(label int) *Cluster {
	return &Cluster{
		Label:  label,
		index:  make(map[grid.GridKey]int),
		inside: make(map[grid.GridKey]bool),
	}
}

// Weight returns the number of member grids.
func (c *Cluster) Weight() int { return len(c.order) }

// Has reports whether key is a member.
func (c *Cluster) Has(key grid.GridKey) bool {
	_, ok := c.index[key]
	return ok
}

// Inside reports whether key is currently an inside member. False for
// non-members too.
func (c *Cluster) Inside(key grid.GridKey) bool {
	return c.inside[key]
}

// Members returns a snapshot of member keys in their stored order:
// insertion order until a Remove, which fills the gap with the last
// member.
func (c *Cluster) Members() []grid.GridKey {
	out := make([]grid.GridKey, len(c.order))
	copy(out, c.order)
	return out
}

// Add inserts key as a member, initially outside (caller recomputes
// inside/outside afterward per spec §4.2). No-op if already present.
func (c *Cluster) Add(key grid.GridKey) {
	if c.Has(key) {
		return
	}
	c.index[key] = len(c.order)
	c.order = append(c.order, key)
	c.inside[key] = false
}

// Remove deletes key from the cluster, if present.
func (c *Cluster) Remove(key grid.GridKey) {
	pos, ok := c.index[key]
	if !ok {
		return
	}
	last := len(c.order) - 1
	c.order[pos] = c.order[last]
	c.index[c.order[pos]] = pos
	c.order = c.order[:last]
	delete(c.index, key)
	delete(c.inside, key)
}

// SetInside sets the inside flag for an existing member. No-op if key
// is not a member.
func (c *Cluster) SetInside(key grid.GridKey, inside bool) {
	if !c.Has(key) {
		return
	}
	c.inside[key] = inside
}

// Absorb adds every member of other to c (other itself is left
// unchanged), marking all newly admitted members outside (the caller recomputes inside flags
// afterward, per Merge's step 2 in spec §4.2).
func (c *Cluster) Absorb(other *Cluster) {
	for _, key := range other.order {
		c.Add(key)
	}
}
